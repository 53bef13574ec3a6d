package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BenSwartz123/partner-backend/internal/ai"
	"github.com/BenSwartz123/partner-backend/internal/policy"
	"github.com/BenSwartz123/partner-backend/internal/search"
	"github.com/BenSwartz123/partner-backend/internal/store"
	"github.com/BenSwartz123/partner-backend/internal/util"
)

var allowedStatuses = map[string]struct{}{
	"new":          {},
	"under_review": {},
	"more_info":    {},
	"approved":     {},
	"passed":       {},
}

type SubmissionInput struct {
	CompanyName string   `json:"companyName"`
	OneLiner    string   `json:"oneLiner"`
	Description string   `json:"description"`
	Industry    string   `json:"industry"`
	Stage       string   `json:"stage"`
	Website     string   `json:"website"`
	LookingFor  []string `json:"lookingFor"`
}

type SubmissionListInput struct {
	Status   string
	Industry string
	Query    string
}

func (s *Service) CreateSubmission(ctx context.Context, session Session, input SubmissionInput) (map[string]any, error) {
	if !policy.CanCreateSubmission(session.actor()) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "only founders can submit companies", nil)
	}
	if strings.TrimSpace(input.CompanyName) == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "companyName is required", nil)
	}
	lookingFor := input.LookingFor
	if lookingFor == nil {
		lookingFor = []string{}
	}
	item, err := s.store.InsertSubmission(ctx, store.Submission{
		ID:          util.NewID("sub"),
		FounderID:   session.UserID,
		CompanyName: strings.TrimSpace(input.CompanyName),
		OneLiner:    strings.TrimSpace(input.OneLiner),
		Description: input.Description,
		Industry:    strings.TrimSpace(input.Industry),
		Stage:       strings.TrimSpace(input.Stage),
		Website:     strings.TrimSpace(input.Website),
		LookingFor:  lookingFor,
		Status:      "new",
	})
	if err != nil {
		return nil, err
	}
	s.search.IndexSubmission(searchRecord(item))
	return map[string]any{"submission": submissionView(item)}, nil
}

// ListSubmissions scopes to the caller first, then applies the optional
// filters. Founders only ever see their own rows.
func (s *Service) ListSubmissions(ctx context.Context, session Session, input SubmissionListInput) (map[string]any, error) {
	founderScope := ""
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		founderScope = session.UserID
	}

	var items []store.Submission
	var err error
	if q := strings.TrimSpace(input.Query); q != "" {
		if ids, ok := s.search.Search(search.Query{
			Text:      q,
			Status:    input.Status,
			Industry:  input.Industry,
			FounderID: founderScope,
			Limit:     100,
		}); ok {
			items, err = s.store.ListSubmissionsByIDs(ctx, ids)
		} else {
			items, err = s.store.ListSubmissions(ctx, store.SubmissionFilter{
				FounderID: founderScope,
				Status:    input.Status,
				Industry:  input.Industry,
				Query:     q,
			})
		}
	} else {
		items, err = s.store.ListSubmissions(ctx, store.SubmissionFilter{
			FounderID: founderScope,
			Status:    input.Status,
			Industry:  input.Industry,
		})
	}
	if err != nil {
		return nil, err
	}

	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, submissionView(item))
	}
	return map[string]any{"submissions": views}, nil
}

// GetSubmission returns 403 rather than 404 for a non-owning founder. The
// resource's existence is not treated as a secret.
func (s *Service) GetSubmission(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !policy.CanReadSubmission(session.actor(), item.FounderID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return map[string]any{"submission": submissionView(item)}, nil
}

func (s *Service) UpdateSubmission(ctx context.Context, session Session, submissionID string, input SubmissionInput) (map[string]any, error) {
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !policy.CanEditSubmission(session.actor(), item.FounderID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "only the owning founder can edit a submission", nil)
	}
	if strings.TrimSpace(input.CompanyName) == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "companyName is required", nil)
	}
	lookingFor := input.LookingFor
	if lookingFor == nil {
		lookingFor = []string{}
	}
	updated, err := s.store.UpdateSubmissionContent(ctx, store.Submission{
		ID:          submissionID,
		CompanyName: strings.TrimSpace(input.CompanyName),
		OneLiner:    strings.TrimSpace(input.OneLiner),
		Description: input.Description,
		Industry:    strings.TrimSpace(input.Industry),
		Stage:       strings.TrimSpace(input.Stage),
		Website:     strings.TrimSpace(input.Website),
		LookingFor:  lookingFor,
	})
	if err != nil {
		return nil, err
	}
	s.search.IndexSubmission(searchRecord(updated))
	return map[string]any{"submission": submissionView(updated)}, nil
}

func (s *Service) SetSubmissionStatus(ctx context.Context, session Session, submissionID, status string) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if _, ok := allowedStatuses[status]; !ok {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "status must be one of new, under_review, more_info, approved, passed", nil)
	}
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.UpdateSubmissionStatus(ctx, submissionID, status); err != nil {
		return nil, err
	}
	item.Status = status
	s.search.IndexSubmission(searchRecord(item))

	if founder, err := s.store.GetUserByID(ctx, item.FounderID); err == nil {
		s.notifier.StatusChanged(founder.Email, founder.Name, item.CompanyName, status, item.ID)
	}
	return map[string]any{"submission": submissionView(item)}, nil
}

func (s *Service) SetSubmissionRating(ctx context.Context, session Session, submissionID string, rating int) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if rating < 1 || rating > 5 {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "rating must be between 1 and 5", nil)
	}
	if _, err := s.store.UpdateSubmissionRating(ctx, submissionID, rating); err != nil {
		return nil, err
	}
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"submission": submissionView(item)}, nil
}

// AnalyzeSubmission runs the pitch through the model. Synchronous: the
// caller asked for the analysis and waits for it.
func (s *Service) AnalyzeSubmission(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if s.ai == nil {
		return nil, domainError(http.StatusBadRequest, "AI_NOT_CONFIGURED", "submission analysis is not configured", nil)
	}
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	analysis, err := s.ai.AnalyzeSubmission(ctx, ai.Pitch{
		CompanyName: item.CompanyName,
		OneLiner:    item.OneLiner,
		Description: item.Description,
		Industry:    item.Industry,
		Stage:       item.Stage,
		LookingFor:  item.LookingFor,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze submission: %w", err)
	}
	return map[string]any{"analysis": analysis}, nil
}

func (s *Service) UploadDeck(ctx context.Context, session Session, submissionID, contentType string, body io.Reader, size int64) (map[string]any, error) {
	if !s.decks.IsConfigured() {
		return nil, domainError(http.StatusBadRequest, "STORAGE_NOT_CONFIGURED", "deck storage is not configured", nil)
	}
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !policy.CanEditSubmission(session.actor(), item.FounderID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "only the owning founder can upload a deck", nil)
	}
	key := "decks/" + submissionID
	if err := s.decks.Upload(ctx, key, body, size, contentType); err != nil {
		return nil, fmt.Errorf("upload deck: %w", err)
	}
	if _, err := s.store.SetSubmissionDeck(ctx, submissionID, key, ""); err != nil {
		return nil, err
	}
	return map[string]any{"deckKey": key}, nil
}

// DeckDownloadURL hands out a short-lived presigned URL. The bucket itself
// is never made publicly readable.
func (s *Service) DeckDownloadURL(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	if !s.decks.IsConfigured() {
		return nil, domainError(http.StatusBadRequest, "STORAGE_NOT_CONFIGURED", "deck storage is not configured", nil)
	}
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !policy.CanReadSubmission(session.actor(), item.FounderID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if item.DeckKey == "" {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "no deck uploaded for this submission", nil)
	}
	url, err := s.decks.PresignedURL(ctx, item.DeckKey, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("presign deck url: %w", err)
	}
	return map[string]any{"url": url}, nil
}

func searchRecord(item store.Submission) search.Record {
	return search.Record{
		ID:          item.ID,
		CompanyName: item.CompanyName,
		OneLiner:    item.OneLiner,
		Description: item.Description,
		Industry:    item.Industry,
		Stage:       item.Stage,
		Status:      item.Status,
		FounderID:   item.FounderID,
	}
}

func submissionView(item store.Submission) map[string]any {
	view := map[string]any{
		"id":          item.ID,
		"founderId":   item.FounderID,
		"founderName": item.FounderName,
		"companyName": item.CompanyName,
		"oneLiner":    item.OneLiner,
		"description": item.Description,
		"industry":    item.Industry,
		"stage":       item.Stage,
		"website":     item.Website,
		"lookingFor":  item.LookingFor,
		"status":      item.Status,
		"hasDeck":     item.DeckKey != "",
		"submittedAt": item.SubmittedAt.Format(time.RFC3339),
		"updatedAt":   item.UpdatedAt.Format(time.RFC3339),
	}
	if item.Rating != nil {
		view["rating"] = *item.Rating
	} else {
		view["rating"] = nil
	}
	return view
}
