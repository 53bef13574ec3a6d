package store

import (
	"context"
	"fmt"
	"time"
)

func (s *PostgresStore) CountSubmissionsBy(ctx context.Context, column string) (map[string]int, error) {
	var query string
	switch column {
	case "status":
		query = `SELECT status, COUNT(*) FROM submissions GROUP BY status`
	case "industry":
		query = `SELECT industry, COUNT(*) FROM submissions GROUP BY industry`
	case "stage":
		query = `SELECT stage, COUNT(*) FROM submissions GROUP BY stage`
	default:
		return nil, fmt.Errorf("count submissions: unsupported column %q", column)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count submissions by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) GetRatingStats(ctx context.Context) (RatingStats, error) {
	var stats RatingStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(rating), COALESCE(SUM(rating), 0) FROM submissions WHERE rating IS NOT NULL
	`).Scan(&stats.Rated, &stats.Sum)
	if err != nil {
		return RatingStats{}, fmt.Errorf("rating stats: %w", err)
	}
	return stats, nil
}

// RecentSubmissionTimes returns submission timestamps since the cutoff.
// Weekly bucketing happens in the analytics package where it can be tested
// without a database.
func (s *PostgresStore) RecentSubmissionTimes(ctx context.Context, since time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT submitted_at FROM submissions WHERE submitted_at >= $1 ORDER BY submitted_at ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("recent submission times: %w", err)
	}
	defer rows.Close()

	times := make([]time.Time, 0)
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan submission time: %w", err)
		}
		times = append(times, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission times: %w", err)
	}
	return times, nil
}

// LeaderboardActivity tallies raw per-member activity counts. Members with
// no activity still appear with zeroes.
func (s *PostgresStore) LeaderboardActivity(ctx context.Context) ([]LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.specialty,
			(SELECT COUNT(*) FROM board_notes n WHERE n.author_id = u.id),
			(SELECT COUNT(*) FROM partnerships p WHERE p.board_user_id = u.id AND p.status = 'accepted'),
			(SELECT COUNT(*) FROM meeting_requests m WHERE m.requested_by = u.id)
		FROM users u
		WHERE u.role IN ('board', 'admin')
		ORDER BY u.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("leaderboard activity: %w", err)
	}
	defer rows.Close()

	items := make([]LeaderboardRow, 0)
	for rows.Next() {
		var item LeaderboardRow
		if err := rows.Scan(&item.UserID, &item.Name, &item.Specialty, &item.Notes, &item.Partnerships, &item.Meetings); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard rows: %w", err)
	}
	return items, nil
}
