package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/BenSwartz123/partner-backend/internal/store"
)

// Leaderboard weights. Accepted partnerships dominate because a partnership
// is a sustained commitment, not a one-off action.
const (
	noteWeight        = 1
	partnershipWeight = 5
	meetingWeight     = 3
)

// trailingWindow is how far back the weekly volume chart reaches.
const trailingWindow = 56 * 24 * time.Hour

type Aggregator interface {
	CountSubmissionsBy(ctx context.Context, column string) (map[string]int, error)
	GetRatingStats(ctx context.Context) (store.RatingStats, error)
	RecentSubmissionTimes(ctx context.Context, since time.Time) ([]time.Time, error)
	LeaderboardActivity(ctx context.Context) ([]store.LeaderboardRow, error)
}

type Service struct {
	store Aggregator
	cache *Cache
	now   func() time.Time
}

func NewService(aggregator Aggregator, cache *Cache) *Service {
	return &Service{store: aggregator, cache: cache, now: time.Now}
}

// Snapshot returns the dashboard payload, serving a cached copy when one is
// fresh. Cache failures degrade to recomputing, never to an error.
func (s *Service) Snapshot(ctx context.Context) (map[string]any, error) {
	if data, ok, err := s.cache.Get(ctx); err != nil {
		slog.Warn("analytics: cache read failed", "error", err)
	} else if ok {
		var snapshot map[string]any
		if err := json.Unmarshal(data, &snapshot); err != nil {
			slog.Warn("analytics: discarding unreadable cached snapshot", "error", err)
		} else {
			return snapshot, nil
		}
	}

	snapshot, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snapshot); err == nil {
		if err := s.cache.Set(ctx, data); err != nil {
			slog.Warn("analytics: cache write failed", "error", err)
		}
	}
	return snapshot, nil
}

func (s *Service) compute(ctx context.Context) (map[string]any, error) {
	statusCounts, err := s.store.CountSubmissionsBy(ctx, "status")
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	industryCounts, err := s.store.CountSubmissionsBy(ctx, "industry")
	if err != nil {
		return nil, fmt.Errorf("industry counts: %w", err)
	}
	stageCounts, err := s.store.CountSubmissionsBy(ctx, "stage")
	if err != nil {
		return nil, fmt.Errorf("stage counts: %w", err)
	}
	ratings, err := s.store.GetRatingStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("rating stats: %w", err)
	}

	now := s.now()
	times, err := s.store.RecentSubmissionTimes(ctx, now.Add(-trailingWindow))
	if err != nil {
		return nil, fmt.Errorf("recent submissions: %w", err)
	}
	activity, err := s.store.LeaderboardActivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard activity: %w", err)
	}

	total := 0
	for _, n := range statusCounts {
		total += n
	}

	return map[string]any{
		"totalSubmissions": total,
		"statusCounts":     statusCounts,
		"industryCounts":   industryCounts,
		"stageCounts":      stageCounts,
		"approvalRate":     ApprovalRate(statusCounts["approved"], statusCounts["passed"]),
		"avgRating":        AverageRating(ratings),
		"weeklyVolume":     WeeklyVolume(times, now),
		"leaderboard":      Leaderboard(activity),
	}, nil
}

// ApprovalRate is the share of settled decisions that were approvals,
// rounded to a whole percent. No decisions yet means 0, not an error.
func ApprovalRate(approved, passed int) int {
	settled := approved + passed
	if settled == 0 {
		return 0
	}
	return int(math.Round(float64(approved) / float64(settled) * 100))
}

// AverageRating reports the mean of assigned ratings rounded to one
// decimal, or the sentinel "N/A" when nothing has been rated.
func AverageRating(stats store.RatingStats) any {
	if stats.Rated == 0 {
		return "N/A"
	}
	avg := float64(stats.Sum) / float64(stats.Rated)
	return math.Round(avg*10) / 10
}

// WeekBucket is one point on the weekly volume chart, keyed by ISO year and
// week so the chart stays correct across year boundaries.
type WeekBucket struct {
	Year  int `json:"year"`
	Week  int `json:"week"`
	Count int `json:"count"`
}

// WeeklyVolume buckets timestamps by ISO week over the trailing window
// ending at now. Weeks with no submissions appear with a zero count.
func WeeklyVolume(times []time.Time, now time.Time) []WeekBucket {
	type key struct{ year, week int }

	start := now.Add(-trailingWindow)
	order := make([]key, 0, 9)
	index := make(map[key]int)
	for d := start; !d.After(now); d = d.AddDate(0, 0, 7) {
		y, w := d.ISOWeek()
		k := key{y, w}
		if _, ok := index[k]; !ok {
			index[k] = len(order)
			order = append(order, k)
		}
	}
	// Stepping by 7 days can skip the current week when the window does not
	// divide evenly.
	nowYear, nowWeek := now.ISOWeek()
	nowKey := key{nowYear, nowWeek}
	if _, ok := index[nowKey]; !ok {
		index[nowKey] = len(order)
		order = append(order, nowKey)
	}

	counts := make([]int, len(order))
	for _, ts := range times {
		if ts.Before(start) || ts.After(now) {
			continue
		}
		y, w := ts.ISOWeek()
		if i, ok := index[key{y, w}]; ok {
			counts[i]++
		}
	}

	buckets := make([]WeekBucket, len(order))
	for i, k := range order {
		buckets[i] = WeekBucket{Year: k.year, Week: k.week, Count: counts[i]}
	}
	return buckets
}

// LeaderboardEntry is one scored row of the engagement leaderboard.
type LeaderboardEntry struct {
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	Specialty    string `json:"specialty"`
	Notes        int    `json:"notes"`
	Partnerships int    `json:"partnerships"`
	Meetings     int    `json:"meetings"`
	Score        int    `json:"score"`
}

// Leaderboard scores raw activity and sorts by score descending, name
// ascending on ties so the ordering is stable.
func Leaderboard(rows []store.LeaderboardRow) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, LeaderboardEntry{
			UserID:       row.UserID,
			Name:         row.Name,
			Specialty:    row.Specialty,
			Notes:        row.Notes,
			Partnerships: row.Partnerships,
			Meetings:     row.Meetings,
			Score:        row.Notes*noteWeight + row.Partnerships*partnershipWeight + row.Meetings*meetingWeight,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}
