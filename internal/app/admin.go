package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/BenSwartz123/partner-backend/internal/identity"
	"github.com/BenSwartz123/partner-backend/internal/notify"
	"github.com/BenSwartz123/partner-backend/internal/policy"
	"github.com/BenSwartz123/partner-backend/internal/store"
	"github.com/BenSwartz123/partner-backend/internal/util"
)

type BoardMemberInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Specialty string `json:"specialty"`
}

type SettingInput struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type InvitationInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type BroadcastInput struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *Service) Analytics(ctx context.Context, session Session) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return s.analytics.Snapshot(ctx)
}

// ListBoardMembers is the admin roster view, email included.
func (s *Service) ListBoardMembers(ctx context.Context, session Session) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionManage) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	members, err := s.store.ListUsersByRole(ctx, string(policy.RoleBoard))
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(members))
	for _, member := range members {
		views = append(views, profileView(member))
	}
	return map[string]any{"members": views}, nil
}

func (s *Service) CreateBoardMember(ctx context.Context, session Session, input BoardMemberInput) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionManage) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	user, err := s.identity.Register(ctx, identity.RegisterRequest{
		Name:      input.Name,
		Email:     input.Email,
		Password:  input.Password,
		Role:      string(policy.RoleBoard),
		Specialty: strings.TrimSpace(input.Specialty),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"member": profileView(user)}, nil
}

// RemoveBoardMember hard-deletes the account. This is the only user
// deletion on the platform; founders and admins are never deleted.
func (s *Service) RemoveBoardMember(ctx context.Context, session Session, userID string) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionManage) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	removed, err := s.store.RemoveBoardMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "board member not found", nil)
	}
	return map[string]any{"ok": true}, nil
}

// BoardDirectory is the authenticated directory: every signed-in user can
// see who is on the board, but not their email addresses.
func (s *Service) BoardDirectory(ctx context.Context, _ Session) (map[string]any, error) {
	members, err := s.store.ListUsersByRole(ctx, string(policy.RoleBoard))
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(members))
	for _, member := range members {
		views = append(views, memberView(member))
	}
	return map[string]any{"members": views}, nil
}

func (s *Service) ListSettings(ctx context.Context, session Session) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionManage) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	settings, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(settings))
	for _, setting := range settings {
		views = append(views, settingView(setting))
	}
	return map[string]any{"settings": views}, nil
}

func (s *Service) PutSetting(ctx context.Context, session Session, input SettingInput) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionManage) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "key is required", nil)
	}
	setting, err := s.store.UpsertSetting(ctx, store.Setting{
		Key:       key,
		Value:     input.Value,
		UpdatedBy: session.UserID,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"setting": settingView(setting)}, nil
}

func (s *Service) ListInvitations(ctx context.Context, session Session) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionManage) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	invitations, err := s.store.ListInvitations(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(invitations))
	for _, inv := range invitations {
		views = append(views, invitationView(inv))
	}
	return map[string]any{"invitations": views}, nil
}

func (s *Service) CreateInvitation(ctx context.Context, session Session, input InvitationInput) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionManage) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "email is required", nil)
	}
	role := strings.TrimSpace(input.Role)
	if role != string(policy.RoleBoard) && role != string(policy.RoleAdmin) {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "role must be board or admin", nil)
	}

	inv, err := s.store.InsertInvitation(ctx, store.Invitation{
		ID:        util.NewID("inv"),
		Email:     strings.ToLower(email),
		Role:      role,
		Token:     randomToken(),
		InvitedBy: session.UserID,
		ExpiresAt: time.Now().UTC().Add(7 * 24 * time.Hour),
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Invitation(inv.Email, inv.Role, inv.Token, "7 days")
	return map[string]any{"invitation": invitationView(inv)}, nil
}

// Broadcast emails every board member. Sends are fire-and-forget; a partial
// delivery failure never surfaces to the admin.
func (s *Service) Broadcast(ctx context.Context, session Session, input BroadcastInput) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionManage) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if strings.TrimSpace(input.Subject) == "" || strings.TrimSpace(input.Body) == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "subject and body are required", nil)
	}
	members, err := s.store.ListUsersByRole(ctx, string(policy.RoleBoard))
	if err != nil {
		return nil, err
	}
	recipients := make([]notify.Recipient, 0, len(members))
	for _, member := range members {
		recipients = append(recipients, notify.Recipient{Email: member.Email, Name: member.Name})
	}
	s.notifier.Broadcast(recipients, input.Subject, input.Body)
	return map[string]any{"recipients": len(recipients)}, nil
}

func randomToken() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func settingView(setting store.Setting) map[string]any {
	return map[string]any{
		"key":       setting.Key,
		"value":     setting.Value,
		"updatedBy": setting.UpdatedBy,
		"updatedAt": setting.UpdatedAt.Format(time.RFC3339),
	}
}

func invitationView(inv store.Invitation) map[string]any {
	view := map[string]any{
		"id":        inv.ID,
		"email":     inv.Email,
		"role":      inv.Role,
		"invitedBy": inv.InvitedBy,
		"createdAt": inv.CreatedAt.Format(time.RFC3339),
		"expiresAt": inv.ExpiresAt.Format(time.RFC3339),
	}
	if inv.UsedAt != nil {
		view["usedAt"] = inv.UsedAt.Format(time.RFC3339)
	} else {
		view["usedAt"] = nil
	}
	return view
}
