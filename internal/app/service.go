package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BenSwartz123/partner-backend/internal/ai"
	"github.com/BenSwartz123/partner-backend/internal/analytics"
	"github.com/BenSwartz123/partner-backend/internal/auth"
	"github.com/BenSwartz123/partner-backend/internal/config"
	"github.com/BenSwartz123/partner-backend/internal/identity"
	"github.com/BenSwartz123/partner-backend/internal/notify"
	"github.com/BenSwartz123/partner-backend/internal/policy"
	"github.com/BenSwartz123/partner-backend/internal/search"
	"github.com/BenSwartz123/partner-backend/internal/storage"
	"github.com/BenSwartz123/partner-backend/internal/store"
)

// Session is the caller identity extracted from a verified token.
type Session struct {
	UserID   string
	UserName string
	Role     string
}

func (s Session) actor() policy.Actor {
	return policy.Actor{ID: s.UserID, Role: policy.Role(s.Role)}
}

type dataStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	UpdateUserProfile(ctx context.Context, userID string, patch store.UserPatch) (store.User, error)
	ListUsersByRole(ctx context.Context, role string) ([]store.User, error)
	RemoveBoardMember(ctx context.Context, userID string) (bool, error)

	InsertSubmission(ctx context.Context, item store.Submission) (store.Submission, error)
	GetSubmission(ctx context.Context, submissionID string) (store.Submission, error)
	ListSubmissions(ctx context.Context, filter store.SubmissionFilter) ([]store.Submission, error)
	ListSubmissionsByIDs(ctx context.Context, ids []string) ([]store.Submission, error)
	UpdateSubmissionContent(ctx context.Context, item store.Submission) (store.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, submissionID, status string) (bool, error)
	UpdateSubmissionRating(ctx context.Context, submissionID string, rating int) (bool, error)
	SetSubmissionDeck(ctx context.Context, submissionID, deckKey, deckURL string) (bool, error)

	ClaimPartnership(ctx context.Context, id, submissionID, boardUserID string) (store.Partnership, error)
	GetPartnership(ctx context.Context, partnershipID string) (store.Partnership, error)
	RespondPartnership(ctx context.Context, partnershipID, status string) (bool, error)
	WithdrawPartnership(ctx context.Context, submissionID, boardUserID string) (bool, error)
	ListSubmissionPartners(ctx context.Context, submissionID string) ([]store.Partnership, error)
	ListFounderPartnerships(ctx context.Context, founderID string) ([]store.Partnership, error)
	ListBoardPartnerships(ctx context.Context, boardUserID string) ([]store.Partnership, error)
	HasAcceptedPartner(ctx context.Context, submissionID, boardUserID string) (bool, error)

	InsertBoardNote(ctx context.Context, note store.BoardNote) (store.BoardNote, error)
	ListBoardNotes(ctx context.Context, submissionID string, founderVisibleOnly bool) ([]store.BoardNote, error)
	TagMember(ctx context.Context, submissionID, userID, taggedBy string) error
	UntagMember(ctx context.Context, submissionID, userID string) (bool, error)
	ListTaggedMembers(ctx context.Context, submissionID string) ([]store.TaggedMember, error)
	InsertChatMessage(ctx context.Context, msg store.ChatMessage) (store.ChatMessage, error)
	ListChatMessages(ctx context.Context, submissionID string) ([]store.ChatMessage, error)
	InsertMeetingRequest(ctx context.Context, meeting store.MeetingRequest) (store.MeetingRequest, error)
	ListSubmissionMeetings(ctx context.Context, submissionID string) ([]store.MeetingRequest, error)
	ListFounderMeetings(ctx context.Context, founderID string) ([]store.MeetingRequest, error)
	ListRequesterMeetings(ctx context.Context, userID string) ([]store.MeetingRequest, error)
	InsertPartnershipMessage(ctx context.Context, msg store.PartnershipMessage) (store.PartnershipMessage, error)
	ListPartnershipMessages(ctx context.Context, submissionID string) ([]store.PartnershipMessage, error)
	InsertSharedLink(ctx context.Context, link store.SharedLink) (store.SharedLink, error)
	ListSharedLinks(ctx context.Context, submissionID string) ([]store.SharedLink, error)

	UpsertSetting(ctx context.Context, setting store.Setting) (store.Setting, error)
	ListSettings(ctx context.Context) ([]store.Setting, error)
	InsertInvitation(ctx context.Context, inv store.Invitation) (store.Invitation, error)
	ListInvitations(ctx context.Context) ([]store.Invitation, error)

	Ping(ctx context.Context) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	identity  *identity.Service
	analytics *analytics.Service
	search    *search.Service
	notifier  *notify.Notifier
	ai        *ai.Engine
	decks     *storage.DeckStore
}

// Options carries the optional subsystems. Nil fields disable the
// corresponding feature rather than failing requests.
type Options struct {
	Analytics *analytics.Service
	Search    *search.Service
	Notifier  *notify.Notifier
	AI        *ai.Engine
	Decks     *storage.DeckStore
}

func New(cfg config.Config, dataStore *store.PostgresStore, opts Options) *Service {
	svc := &Service{
		cfg:       cfg,
		store:     dataStore,
		identity:  identity.NewService(dataStore),
		analytics: opts.Analytics,
		search:    opts.Search,
		notifier:  opts.Notifier,
		ai:        opts.AI,
		decks:     opts.Decks,
	}
	if svc.analytics == nil {
		svc.analytics = analytics.NewService(dataStore, nil)
	}
	if svc.search == nil {
		svc.search = search.NewService(nil)
	}
	if svc.notifier == nil {
		svc.notifier = notify.New(nil, cfg.AppURL)
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SignUp registers an account and signs it in. Self-service signup only
// issues founder accounts; board and admin users are created by an admin.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (map[string]any, error) {
	user, err := s.identity.Register(ctx, identity.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     string(policy.RoleFounder),
	})
	if err != nil {
		return nil, err
	}
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Name, user.Role, s.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"token": token,
		"user":  userView(user),
	}, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (map[string]any, error) {
	user, err := s.identity.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Name, user.Role, s.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"token": token,
		"user":  userView(user),
	}, nil
}

// SessionFromToken verifies a bearer token and returns the caller identity.
// Tokens are stateless; there is no server-side revocation.
func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:   claims.Subject,
		UserName: claims.Name,
		Role:     claims.Role,
	}, nil
}

func (s *Service) GetProfile(ctx context.Context, session Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": profileView(user)}, nil
}

// ProfilePatch carries a partial profile update. Nil means not provided;
// a pointer to "" clears the field.
type ProfilePatch struct {
	Name      *string `json:"name"`
	Bio       *string `json:"bio"`
	LinkedIn  *string `json:"linkedin"`
	Website   *string `json:"website"`
	Location  *string `json:"location"`
	Specialty *string `json:"specialty"`
}

func (s *Service) UpdateProfile(ctx context.Context, session Session, patch ProfilePatch) (map[string]any, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "name cannot be empty", nil)
	}
	user, err := s.store.UpdateUserProfile(ctx, session.UserID, store.UserPatch{
		Name:      patch.Name,
		Bio:       patch.Bio,
		LinkedIn:  patch.LinkedIn,
		Website:   patch.Website,
		Location:  patch.Location,
		Specialty: patch.Specialty,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": profileView(user)}, nil
}

func userView(user store.User) map[string]any {
	return map[string]any{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	}
}

func profileView(user store.User) map[string]any {
	return map[string]any{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"role":      user.Role,
		"specialty": user.Specialty,
		"bio":       user.Bio,
		"linkedin":  user.LinkedIn,
		"website":   user.Website,
		"location":  user.Location,
		"createdAt": user.CreatedAt.Format(time.RFC3339),
	}
}

// memberView is the directory shape: public-to-authenticated fields only,
// no email address.
func memberView(user store.User) map[string]any {
	return map[string]any{
		"id":        user.ID,
		"name":      user.Name,
		"specialty": user.Specialty,
		"bio":       user.Bio,
		"linkedin":  user.LinkedIn,
		"location":  user.Location,
	}
}
