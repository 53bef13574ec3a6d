package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/BenSwartz123/partner-backend/internal/policy"
	"github.com/BenSwartz123/partner-backend/internal/store"
	"github.com/BenSwartz123/partner-backend/internal/util"
)

// ClaimPartner takes one of the submission's three partner slots. The cap
// check and insert run in one transaction in the store, so two concurrent
// claims cannot both take the last slot.
func (s *Service) ClaimPartner(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	partnership, err := s.store.ClaimPartnership(ctx, util.NewID("prt"), submissionID, session.UserID)
	if errors.Is(err, store.ErrPartnerExists) {
		return nil, domainError(http.StatusConflict, "CONFLICT", "you already have a partnership claim on this submission", nil)
	}
	if errors.Is(err, store.ErrPartnerLimit) {
		return nil, domainError(http.StatusBadRequest, "PARTNER_LIMIT_REACHED", "this submission already has 3 active partner claims", nil)
	}
	if err != nil {
		return nil, err
	}

	member, err := s.store.GetUserByID(ctx, session.UserID)
	if err == nil {
		partnership.MemberName = member.Name
		partnership.MemberSpecialty = member.Specialty
	}
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err == nil {
		partnership.CompanyName = item.CompanyName
		partnership.FounderID = item.FounderID
		if founder, err := s.store.GetUserByID(ctx, item.FounderID); err == nil {
			s.notifier.PartnerRequested(founder.Email, founder.Name, session.UserName, item.CompanyName, item.ID)
		}
	}
	return map[string]any{"partnership": partnershipView(partnership)}, nil
}

// WithdrawPartner deletes the caller's pending claim. A missing pending row
// reads as a bad request, not a missing resource: the caller cannot tell
// "never claimed" from "already resolved" and should not need to.
func (s *Service) WithdrawPartner(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	withdrawn, err := s.store.WithdrawPartnership(ctx, submissionID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !withdrawn {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "no pending partnership claim to withdraw", nil)
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) ListSubmissionPartners(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if _, err := s.store.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	partnerships, err := s.store.ListSubmissionPartners(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"partnerships": partnershipViews(partnerships)}, nil
}

// ListMyPartnerships is the caller's partnership inbox. Founders see claims
// against their own submissions; board members see the claims they made.
func (s *Service) ListMyPartnerships(ctx context.Context, session Session) (map[string]any, error) {
	var partnerships []store.Partnership
	var err error
	if policy.Can(policy.Role(session.Role), policy.ActionReview) {
		partnerships, err = s.store.ListBoardPartnerships(ctx, session.UserID)
	} else {
		partnerships, err = s.store.ListFounderPartnerships(ctx, session.UserID)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"partnerships": partnershipViews(partnerships)}, nil
}

// RespondPartnership accepts or declines a pending claim. Only the founder
// who owns the submission may respond, and only once per claim; an admin
// gets no override here.
func (s *Service) RespondPartnership(ctx context.Context, session Session, partnershipID, status string) (map[string]any, error) {
	if status != "accepted" && status != "declined" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "status must be accepted or declined", nil)
	}
	partnership, err := s.store.GetPartnership(ctx, partnershipID)
	if err != nil {
		return nil, err
	}
	if !policy.CanRespondPartnership(session.actor(), partnership.FounderID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "only the submission's founder can respond to a claim", nil)
	}
	updated, err := s.store.RespondPartnership(ctx, partnershipID, status)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domainError(http.StatusConflict, "CONFLICT", "this claim has already been resolved", nil)
	}
	partnership.Status = status
	now := time.Now().UTC()
	partnership.RespondedAt = &now

	if member, err := s.store.GetUserByID(ctx, partnership.BoardUserID); err == nil {
		s.notifier.PartnerResponded(member.Email, member.Name, partnership.CompanyName, status)
	}
	return map[string]any{"partnership": partnershipView(partnership)}, nil
}

func partnershipView(partnership store.Partnership) map[string]any {
	view := map[string]any{
		"id":              partnership.ID,
		"submissionId":    partnership.SubmissionID,
		"boardUserId":     partnership.BoardUserID,
		"memberName":      partnership.MemberName,
		"memberSpecialty": partnership.MemberSpecialty,
		"companyName":     partnership.CompanyName,
		"status":          partnership.Status,
		"createdAt":       partnership.CreatedAt.Format(time.RFC3339),
	}
	if partnership.RespondedAt != nil {
		view["respondedAt"] = partnership.RespondedAt.Format(time.RFC3339)
	} else {
		view["respondedAt"] = nil
	}
	return view
}

func partnershipViews(partnerships []store.Partnership) []map[string]any {
	views := make([]map[string]any, 0, len(partnerships))
	for _, partnership := range partnerships {
		views = append(views, partnershipView(partnership))
	}
	return views
}
