package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BenSwartz123/partner-backend/internal/analytics"
	"github.com/BenSwartz123/partner-backend/internal/config"
	"github.com/BenSwartz123/partner-backend/internal/identity"
	"github.com/BenSwartz123/partner-backend/internal/notify"
	"github.com/BenSwartz123/partner-backend/internal/search"
	"github.com/BenSwartz123/partner-backend/internal/store"
)

type fakeStore struct {
	createUserFn        func(context.Context, store.User) (store.User, error)
	getUserByEmailFn    func(context.Context, string) (store.User, error)
	getUserByIDFn       func(context.Context, string) (store.User, error)
	updateUserProfileFn func(context.Context, string, store.UserPatch) (store.User, error)
	listUsersByRoleFn   func(context.Context, string) ([]store.User, error)
	removeBoardMemberFn func(context.Context, string) (bool, error)

	insertSubmissionFn        func(context.Context, store.Submission) (store.Submission, error)
	getSubmissionFn           func(context.Context, string) (store.Submission, error)
	listSubmissionsFn         func(context.Context, store.SubmissionFilter) ([]store.Submission, error)
	listSubmissionsByIDsFn    func(context.Context, []string) ([]store.Submission, error)
	updateSubmissionContentFn func(context.Context, store.Submission) (store.Submission, error)
	updateSubmissionStatusFn  func(context.Context, string, string) (bool, error)
	updateSubmissionRatingFn  func(context.Context, string, int) (bool, error)

	claimPartnershipFn        func(context.Context, string, string, string) (store.Partnership, error)
	getPartnershipFn          func(context.Context, string) (store.Partnership, error)
	respondPartnershipFn      func(context.Context, string, string) (bool, error)
	withdrawPartnershipFn     func(context.Context, string, string) (bool, error)
	listSubmissionPartnersFn  func(context.Context, string) ([]store.Partnership, error)
	listFounderPartnershipsFn func(context.Context, string) ([]store.Partnership, error)
	listBoardPartnershipsFn   func(context.Context, string) ([]store.Partnership, error)
	hasAcceptedPartnerFn      func(context.Context, string, string) (bool, error)

	insertBoardNoteFn    func(context.Context, store.BoardNote) (store.BoardNote, error)
	listBoardNotesFn     func(context.Context, string, bool) ([]store.BoardNote, error)
	tagMemberFn          func(context.Context, string, string, string) error
	untagMemberFn        func(context.Context, string, string) (bool, error)
	listTaggedMembersFn  func(context.Context, string) ([]store.TaggedMember, error)
	insertChatMessageFn  func(context.Context, store.ChatMessage) (store.ChatMessage, error)
	listChatMessagesFn   func(context.Context, string) ([]store.ChatMessage, error)
	insertMeetingFn      func(context.Context, store.MeetingRequest) (store.MeetingRequest, error)
	listUsersInvitedFn   func(context.Context) ([]store.Invitation, error)
	insertInvitationFn   func(context.Context, store.Invitation) (store.Invitation, error)
	upsertSettingFn      func(context.Context, store.Setting) (store.Setting, error)
	listSettingsFn       func(context.Context) ([]store.Setting, error)
	countSubmissionsByFn func(context.Context, string) (map[string]int, error)
}

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateUserProfile(ctx context.Context, userID string, patch store.UserPatch) (store.User, error) {
	if f.updateUserProfileFn != nil {
		return f.updateUserProfileFn(ctx, userID, patch)
	}
	return store.User{ID: userID}, nil
}

func (f *fakeStore) ListUsersByRole(ctx context.Context, role string) ([]store.User, error) {
	if f.listUsersByRoleFn != nil {
		return f.listUsersByRoleFn(ctx, role)
	}
	return nil, nil
}

func (f *fakeStore) RemoveBoardMember(ctx context.Context, userID string) (bool, error) {
	if f.removeBoardMemberFn != nil {
		return f.removeBoardMemberFn(ctx, userID)
	}
	return false, nil
}

func (f *fakeStore) InsertSubmission(ctx context.Context, item store.Submission) (store.Submission, error) {
	if f.insertSubmissionFn != nil {
		return f.insertSubmissionFn(ctx, item)
	}
	return item, nil
}

func (f *fakeStore) GetSubmission(ctx context.Context, submissionID string) (store.Submission, error) {
	if f.getSubmissionFn != nil {
		return f.getSubmissionFn(ctx, submissionID)
	}
	return store.Submission{}, sql.ErrNoRows
}

func (f *fakeStore) ListSubmissions(ctx context.Context, filter store.SubmissionFilter) ([]store.Submission, error) {
	if f.listSubmissionsFn != nil {
		return f.listSubmissionsFn(ctx, filter)
	}
	return nil, nil
}

func (f *fakeStore) ListSubmissionsByIDs(ctx context.Context, ids []string) ([]store.Submission, error) {
	if f.listSubmissionsByIDsFn != nil {
		return f.listSubmissionsByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (f *fakeStore) UpdateSubmissionContent(ctx context.Context, item store.Submission) (store.Submission, error) {
	if f.updateSubmissionContentFn != nil {
		return f.updateSubmissionContentFn(ctx, item)
	}
	return item, nil
}

func (f *fakeStore) UpdateSubmissionStatus(ctx context.Context, submissionID, status string) (bool, error) {
	if f.updateSubmissionStatusFn != nil {
		return f.updateSubmissionStatusFn(ctx, submissionID, status)
	}
	return true, nil
}

func (f *fakeStore) UpdateSubmissionRating(ctx context.Context, submissionID string, rating int) (bool, error) {
	if f.updateSubmissionRatingFn != nil {
		return f.updateSubmissionRatingFn(ctx, submissionID, rating)
	}
	return true, nil
}

func (f *fakeStore) SetSubmissionDeck(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func (f *fakeStore) ClaimPartnership(ctx context.Context, id, submissionID, boardUserID string) (store.Partnership, error) {
	if f.claimPartnershipFn != nil {
		return f.claimPartnershipFn(ctx, id, submissionID, boardUserID)
	}
	return store.Partnership{ID: id, SubmissionID: submissionID, BoardUserID: boardUserID, Status: "pending"}, nil
}

func (f *fakeStore) GetPartnership(ctx context.Context, partnershipID string) (store.Partnership, error) {
	if f.getPartnershipFn != nil {
		return f.getPartnershipFn(ctx, partnershipID)
	}
	return store.Partnership{}, sql.ErrNoRows
}

func (f *fakeStore) RespondPartnership(ctx context.Context, partnershipID, status string) (bool, error) {
	if f.respondPartnershipFn != nil {
		return f.respondPartnershipFn(ctx, partnershipID, status)
	}
	return true, nil
}

func (f *fakeStore) WithdrawPartnership(ctx context.Context, submissionID, boardUserID string) (bool, error) {
	if f.withdrawPartnershipFn != nil {
		return f.withdrawPartnershipFn(ctx, submissionID, boardUserID)
	}
	return true, nil
}

func (f *fakeStore) ListSubmissionPartners(ctx context.Context, submissionID string) ([]store.Partnership, error) {
	if f.listSubmissionPartnersFn != nil {
		return f.listSubmissionPartnersFn(ctx, submissionID)
	}
	return nil, nil
}

func (f *fakeStore) ListFounderPartnerships(ctx context.Context, founderID string) ([]store.Partnership, error) {
	if f.listFounderPartnershipsFn != nil {
		return f.listFounderPartnershipsFn(ctx, founderID)
	}
	return nil, nil
}

func (f *fakeStore) ListBoardPartnerships(ctx context.Context, boardUserID string) ([]store.Partnership, error) {
	if f.listBoardPartnershipsFn != nil {
		return f.listBoardPartnershipsFn(ctx, boardUserID)
	}
	return nil, nil
}

func (f *fakeStore) HasAcceptedPartner(ctx context.Context, submissionID, boardUserID string) (bool, error) {
	if f.hasAcceptedPartnerFn != nil {
		return f.hasAcceptedPartnerFn(ctx, submissionID, boardUserID)
	}
	return false, nil
}

func (f *fakeStore) InsertBoardNote(ctx context.Context, note store.BoardNote) (store.BoardNote, error) {
	if f.insertBoardNoteFn != nil {
		return f.insertBoardNoteFn(ctx, note)
	}
	return note, nil
}

func (f *fakeStore) ListBoardNotes(ctx context.Context, submissionID string, founderVisibleOnly bool) ([]store.BoardNote, error) {
	if f.listBoardNotesFn != nil {
		return f.listBoardNotesFn(ctx, submissionID, founderVisibleOnly)
	}
	return nil, nil
}

func (f *fakeStore) TagMember(ctx context.Context, submissionID, userID, taggedBy string) error {
	if f.tagMemberFn != nil {
		return f.tagMemberFn(ctx, submissionID, userID, taggedBy)
	}
	return nil
}

func (f *fakeStore) UntagMember(ctx context.Context, submissionID, userID string) (bool, error) {
	if f.untagMemberFn != nil {
		return f.untagMemberFn(ctx, submissionID, userID)
	}
	return false, nil
}

func (f *fakeStore) ListTaggedMembers(ctx context.Context, submissionID string) ([]store.TaggedMember, error) {
	if f.listTaggedMembersFn != nil {
		return f.listTaggedMembersFn(ctx, submissionID)
	}
	return nil, nil
}

func (f *fakeStore) InsertChatMessage(ctx context.Context, msg store.ChatMessage) (store.ChatMessage, error) {
	if f.insertChatMessageFn != nil {
		return f.insertChatMessageFn(ctx, msg)
	}
	return msg, nil
}

func (f *fakeStore) ListChatMessages(ctx context.Context, submissionID string) ([]store.ChatMessage, error) {
	if f.listChatMessagesFn != nil {
		return f.listChatMessagesFn(ctx, submissionID)
	}
	return nil, nil
}

func (f *fakeStore) InsertMeetingRequest(ctx context.Context, meeting store.MeetingRequest) (store.MeetingRequest, error) {
	if f.insertMeetingFn != nil {
		return f.insertMeetingFn(ctx, meeting)
	}
	return meeting, nil
}

func (f *fakeStore) ListSubmissionMeetings(context.Context, string) ([]store.MeetingRequest, error) {
	return nil, nil
}

func (f *fakeStore) ListFounderMeetings(context.Context, string) ([]store.MeetingRequest, error) {
	return nil, nil
}

func (f *fakeStore) ListRequesterMeetings(context.Context, string) ([]store.MeetingRequest, error) {
	return nil, nil
}

func (f *fakeStore) InsertPartnershipMessage(ctx context.Context, msg store.PartnershipMessage) (store.PartnershipMessage, error) {
	return msg, nil
}

func (f *fakeStore) ListPartnershipMessages(context.Context, string) ([]store.PartnershipMessage, error) {
	return nil, nil
}

func (f *fakeStore) InsertSharedLink(ctx context.Context, link store.SharedLink) (store.SharedLink, error) {
	return link, nil
}

func (f *fakeStore) ListSharedLinks(context.Context, string) ([]store.SharedLink, error) {
	return nil, nil
}

func (f *fakeStore) UpsertSetting(ctx context.Context, setting store.Setting) (store.Setting, error) {
	if f.upsertSettingFn != nil {
		return f.upsertSettingFn(ctx, setting)
	}
	return setting, nil
}

func (f *fakeStore) ListSettings(ctx context.Context) ([]store.Setting, error) {
	if f.listSettingsFn != nil {
		return f.listSettingsFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) InsertInvitation(ctx context.Context, inv store.Invitation) (store.Invitation, error) {
	if f.insertInvitationFn != nil {
		return f.insertInvitationFn(ctx, inv)
	}
	return inv, nil
}

func (f *fakeStore) ListInvitations(ctx context.Context) ([]store.Invitation, error) {
	if f.listUsersInvitedFn != nil {
		return f.listUsersInvitedFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) CountSubmissionsBy(ctx context.Context, column string) (map[string]int, error) {
	if f.countSubmissionsByFn != nil {
		return f.countSubmissionsByFn(ctx, column)
	}
	return map[string]int{}, nil
}

func (f *fakeStore) GetRatingStats(context.Context) (store.RatingStats, error) {
	return store.RatingStats{}, nil
}

func (f *fakeStore) RecentSubmissionTimes(context.Context, time.Time) ([]time.Time, error) {
	return nil, nil
}

func (f *fakeStore) LeaderboardActivity(context.Context) ([]store.LeaderboardRow, error) {
	return nil, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func newTestService(fs *fakeStore) *Service {
	cfg := config.Config{
		JWTSecret: strings.Repeat("k", 32),
		TokenTTL:  time.Hour,
	}
	return &Service{
		cfg:       cfg,
		store:     fs,
		identity:  identity.NewService(fs),
		analytics: analytics.NewService(fs, nil),
		search:    search.NewService(nil),
		notifier:  notify.New(nil, "http://localhost:3000"),
	}
}

func assertDomainCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error with code %s, got %v", code, err)
	}
	if domainErr.Status != status || domainErr.Code != code {
		t.Fatalf("expected %d/%s, got %d/%s", status, code, domainErr.Status, domainErr.Code)
	}
}

var (
	founderSession = Session{UserID: "usr_founder", UserName: "Ava", Role: "founder"}
	boardSession   = Session{UserID: "usr_board", UserName: "Bram", Role: "board"}
	adminSession   = Session{UserID: "usr_admin", UserName: "Cleo", Role: "admin"}
)

func ownedSubmission() store.Submission {
	return store.Submission{
		ID:          "sub_1",
		FounderID:   founderSession.UserID,
		CompanyName: "NeuralPay",
		Status:      "new",
		LookingFor:  []string{"Investment", "Mentorship"},
	}
}

func TestCreateSubmissionRequiresFounder(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.CreateSubmission(context.Background(), boardSession, SubmissionInput{CompanyName: "X"})
	assertDomainCode(t, err, 403, "FORBIDDEN")

	_, err = svc.CreateSubmission(context.Background(), founderSession, SubmissionInput{})
	assertDomainCode(t, err, 400, "VALIDATION_ERROR")
}

func TestCreateSubmissionDefaults(t *testing.T) {
	var inserted store.Submission
	svc := newTestService(&fakeStore{
		insertSubmissionFn: func(_ context.Context, item store.Submission) (store.Submission, error) {
			inserted = item
			return item, nil
		},
	})

	result, err := svc.CreateSubmission(context.Background(), founderSession, SubmissionInput{CompanyName: "  NeuralPay  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted.Status != "new" {
		t.Fatalf("expected status new, got %q", inserted.Status)
	}
	if inserted.FounderID != founderSession.UserID {
		t.Fatalf("expected owner %s, got %s", founderSession.UserID, inserted.FounderID)
	}
	if inserted.CompanyName != "NeuralPay" {
		t.Fatalf("expected trimmed company name, got %q", inserted.CompanyName)
	}
	if inserted.LookingFor == nil {
		t.Fatal("expected lookingFor to default to an empty list, got nil")
	}
	view := result["submission"].(map[string]any)
	if view["status"] != "new" {
		t.Fatalf("expected view status new, got %v", view["status"])
	}
}

func TestListSubmissionsScopesFounders(t *testing.T) {
	var gotFilter store.SubmissionFilter
	fs := &fakeStore{
		listSubmissionsFn: func(_ context.Context, filter store.SubmissionFilter) ([]store.Submission, error) {
			gotFilter = filter
			return nil, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.ListSubmissions(context.Background(), founderSession, SubmissionListInput{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFilter.FounderID != founderSession.UserID {
		t.Fatalf("expected founder scoping, got %q", gotFilter.FounderID)
	}

	if _, err := svc.ListSubmissions(context.Background(), boardSession, SubmissionListInput{Status: "approved"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFilter.FounderID != "" {
		t.Fatalf("board listing should not be founder scoped, got %q", gotFilter.FounderID)
	}
	if gotFilter.Status != "approved" {
		t.Fatalf("expected status filter to pass through, got %q", gotFilter.Status)
	}
}

func TestGetSubmissionRevealsExistenceToNonOwner(t *testing.T) {
	fs := &fakeStore{
		getSubmissionFn: func(_ context.Context, id string) (store.Submission, error) {
			if id == "sub_1" {
				return ownedSubmission(), nil
			}
			return store.Submission{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	otherFounder := Session{UserID: "usr_other", Role: "founder"}
	_, err := svc.GetSubmission(context.Background(), otherFounder, "sub_1")
	assertDomainCode(t, err, 403, "FORBIDDEN")

	if _, err := svc.GetSubmission(context.Background(), boardSession, "sub_1"); err != nil {
		t.Fatalf("board should read any submission: %v", err)
	}
	if _, err := svc.GetSubmission(context.Background(), founderSession, "sub_1"); err != nil {
		t.Fatalf("owner should read own submission: %v", err)
	}

	_, err = svc.GetSubmission(context.Background(), boardSession, "sub_missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for a missing submission, got %v", err)
	}
}

func TestSetSubmissionStatus(t *testing.T) {
	var gotStatus string
	fs := &fakeStore{
		getSubmissionFn: func(context.Context, string) (store.Submission, error) {
			return ownedSubmission(), nil
		},
		updateSubmissionStatusFn: func(_ context.Context, _ string, status string) (bool, error) {
			gotStatus = status
			return true, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.SetSubmissionStatus(context.Background(), founderSession, "sub_1", "approved")
	assertDomainCode(t, err, 403, "FORBIDDEN")

	_, err = svc.SetSubmissionStatus(context.Background(), boardSession, "sub_1", "archived")
	assertDomainCode(t, err, 400, "VALIDATION_ERROR")

	result, err := svc.SetSubmissionStatus(context.Background(), boardSession, "sub_1", "under_review")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != "under_review" {
		t.Fatalf("expected store update to under_review, got %q", gotStatus)
	}
	view := result["submission"].(map[string]any)
	if view["status"] != "under_review" {
		t.Fatalf("expected returned status under_review, got %v", view["status"])
	}
}

func TestSetSubmissionRatingBounds(t *testing.T) {
	fs := &fakeStore{
		getSubmissionFn: func(context.Context, string) (store.Submission, error) {
			return ownedSubmission(), nil
		},
	}
	svc := newTestService(fs)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.SetSubmissionRating(context.Background(), boardSession, "sub_1", rating)
		assertDomainCode(t, err, 400, "VALIDATION_ERROR")
	}
	if _, err := svc.SetSubmissionRating(context.Background(), adminSession, "sub_1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNotesVisibility(t *testing.T) {
	var gotVisibleOnly bool
	fs := &fakeStore{
		getSubmissionFn: func(context.Context, string) (store.Submission, error) {
			return ownedSubmission(), nil
		},
		listBoardNotesFn: func(_ context.Context, _ string, founderVisibleOnly bool) ([]store.BoardNote, error) {
			gotVisibleOnly = founderVisibleOnly
			return nil, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.ListNotes(context.Background(), boardSession, "sub_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotVisibleOnly {
		t.Fatal("board should see all notes")
	}

	if _, err := svc.ListNotes(context.Background(), founderSession, "sub_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotVisibleOnly {
		t.Fatal("owning founder should only see founder-visible notes")
	}

	otherFounder := Session{UserID: "usr_other", Role: "founder"}
	_, err := svc.ListNotes(context.Background(), otherFounder, "sub_1")
	assertDomainCode(t, err, 403, "FORBIDDEN")

	_, err = svc.CreateNote(context.Background(), founderSession, "sub_1", NoteInput{Body: "note"})
	assertDomainCode(t, err, 403, "FORBIDDEN")
}

func TestTaggingIsIdempotent(t *testing.T) {
	calls := 0
	fs := &fakeStore{
		getSubmissionFn: func(context.Context, string) (store.Submission, error) {
			return ownedSubmission(), nil
		},
		tagMemberFn: func(context.Context, string, string, string) error {
			calls++
			return nil
		},
		listTaggedMembersFn: func(context.Context, string) ([]store.TaggedMember, error) {
			return []store.TaggedMember{{SubmissionID: "sub_1", UserID: "usr_tagged"}}, nil
		},
	}
	svc := newTestService(fs)

	for i := 0; i < 2; i++ {
		result, err := svc.TagMember(context.Background(), boardSession, "sub_1", "usr_tagged")
		if err != nil {
			t.Fatalf("tag attempt %d failed: %v", i+1, err)
		}
		tag := result["tag"].(map[string]any)
		if tag["userId"] != "usr_tagged" {
			t.Fatalf("expected tagged row back, got %v", tag)
		}
	}
	if calls != 2 {
		t.Fatalf("expected the store to be asked twice, got %d", calls)
	}

	// Untagging something that is not tagged is a no-op, not an error.
	if _, err := svc.UntagMember(context.Background(), boardSession, "sub_1", "usr_never"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMeetingRequestAppendsSystemChat(t *testing.T) {
	var chat store.ChatMessage
	fs := &fakeStore{
		getSubmissionFn: func(context.Context, string) (store.Submission, error) {
			return ownedSubmission(), nil
		},
		insertChatMessageFn: func(_ context.Context, msg store.ChatMessage) (store.ChatMessage, error) {
			chat = msg
			return msg, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.RequestMeeting(context.Background(), founderSession, "sub_1", MeetingInput{Agenda: "intro call"})
	assertDomainCode(t, err, 403, "FORBIDDEN")

	_, err = svc.RequestMeeting(context.Background(), boardSession, "sub_1", MeetingInput{})
	assertDomainCode(t, err, 400, "VALIDATION_ERROR")

	if _, err := svc.RequestMeeting(context.Background(), boardSession, "sub_1", MeetingInput{Agenda: "intro call"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !chat.System {
		t.Fatal("expected a system chat message")
	}
	if !strings.Contains(chat.Body, "requested a meeting: intro call") {
		t.Fatalf("unexpected system message body: %q", chat.Body)
	}
}

func TestClaimPartnerMapsStoreErrors(t *testing.T) {
	cases := []struct {
		name       string
		claimErr   error
		wantStatus int
		wantCode   string
	}{
		{name: "duplicate pair", claimErr: store.ErrPartnerExists, wantStatus: 409, wantCode: "CONFLICT"},
		{name: "cap reached", claimErr: store.ErrPartnerLimit, wantStatus: 400, wantCode: "PARTNER_LIMIT_REACHED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(&fakeStore{
				claimPartnershipFn: func(context.Context, string, string, string) (store.Partnership, error) {
					return store.Partnership{}, tc.claimErr
				},
			})
			_, err := svc.ClaimPartner(context.Background(), boardSession, "sub_1")
			assertDomainCode(t, err, tc.wantStatus, tc.wantCode)
		})
	}
}

func TestClaimPartnerRejectsFounders(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.ClaimPartner(context.Background(), founderSession, "sub_1")
	assertDomainCode(t, err, 403, "FORBIDDEN")
}

func TestClaimPartnerMissingSubmission(t *testing.T) {
	svc := newTestService(&fakeStore{
		claimPartnershipFn: func(context.Context, string, string, string) (store.Partnership, error) {
			return store.Partnership{}, sql.ErrNoRows
		},
	})
	_, err := svc.ClaimPartner(context.Background(), boardSession, "sub_missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestWithdrawPartnerWithoutPendingClaim(t *testing.T) {
	svc := newTestService(&fakeStore{
		withdrawPartnershipFn: func(context.Context, string, string) (bool, error) {
			return false, nil
		},
	})
	_, err := svc.WithdrawPartner(context.Background(), boardSession, "sub_1")
	assertDomainCode(t, err, 400, "VALIDATION_ERROR")
}

func TestListMyPartnershipsScopesByRole(t *testing.T) {
	var founderCalled, boardCalled string
	svc := newTestService(&fakeStore{
		listFounderPartnershipsFn: func(ctx context.Context, founderID string) ([]store.Partnership, error) {
			founderCalled = founderID
			return nil, nil
		},
		listBoardPartnershipsFn: func(ctx context.Context, boardUserID string) ([]store.Partnership, error) {
			boardCalled = boardUserID
			return []store.Partnership{{ID: "prt_1", BoardUserID: boardUserID, Status: "pending"}}, nil
		},
	})

	out, err := svc.ListMyPartnerships(context.Background(), boardSession)
	if err != nil {
		t.Fatalf("board ListMyPartnerships: %v", err)
	}
	if boardCalled != boardSession.UserID {
		t.Fatalf("board query scoped to %q, want %q", boardCalled, boardSession.UserID)
	}
	if founderCalled != "" {
		t.Fatal("board caller must not hit the founder inbox query")
	}
	if views := out["partnerships"].([]map[string]any); len(views) != 1 {
		t.Fatalf("board partnerships = %d, want 1", len(views))
	}

	if _, err := svc.ListMyPartnerships(context.Background(), founderSession); err != nil {
		t.Fatalf("founder ListMyPartnerships: %v", err)
	}
	if founderCalled != founderSession.UserID {
		t.Fatalf("founder query scoped to %q, want %q", founderCalled, founderSession.UserID)
	}
}

func TestRespondPartnership(t *testing.T) {
	pending := store.Partnership{
		ID:           "prt_1",
		SubmissionID: "sub_1",
		BoardUserID:  boardSession.UserID,
		FounderID:    founderSession.UserID,
		Status:       "pending",
	}
	fs := &fakeStore{
		getPartnershipFn: func(context.Context, string) (store.Partnership, error) {
			return pending, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.RespondPartnership(context.Background(), founderSession, "prt_1", "maybe")
	assertDomainCode(t, err, 400, "VALIDATION_ERROR")

	// Neither the claimant nor an admin can respond for the founder.
	_, err = svc.RespondPartnership(context.Background(), boardSession, "prt_1", "accepted")
	assertDomainCode(t, err, 403, "FORBIDDEN")
	_, err = svc.RespondPartnership(context.Background(), adminSession, "prt_1", "accepted")
	assertDomainCode(t, err, 403, "FORBIDDEN")

	result, err := svc.RespondPartnership(context.Background(), founderSession, "prt_1", "accepted")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	view := result["partnership"].(map[string]any)
	if view["status"] != "accepted" {
		t.Fatalf("expected accepted, got %v", view["status"])
	}
	if view["respondedAt"] == nil {
		t.Fatal("expected respondedAt to be set")
	}
}

func TestRespondPartnershipAlreadyResolved(t *testing.T) {
	svc := newTestService(&fakeStore{
		getPartnershipFn: func(context.Context, string) (store.Partnership, error) {
			return store.Partnership{ID: "prt_1", FounderID: founderSession.UserID, Status: "declined"}, nil
		},
		respondPartnershipFn: func(context.Context, string, string) (bool, error) {
			return false, nil
		},
	})
	_, err := svc.RespondPartnership(context.Background(), founderSession, "prt_1", "accepted")
	assertDomainCode(t, err, 409, "CONFLICT")
}

func TestPartnerSurfaceGate(t *testing.T) {
	accepted := map[string]bool{"usr_partner": true}
	fs := &fakeStore{
		getSubmissionFn: func(context.Context, string) (store.Submission, error) {
			return ownedSubmission(), nil
		},
		hasAcceptedPartnerFn: func(_ context.Context, _ string, boardUserID string) (bool, error) {
			return accepted[boardUserID], nil
		},
	}
	svc := newTestService(fs)

	cases := []struct {
		name    string
		session Session
		allowed bool
	}{
		{name: "owning founder", session: founderSession, allowed: true},
		{name: "accepted partner", session: Session{UserID: "usr_partner", Role: "board"}, allowed: true},
		{name: "pending claimant", session: boardSession, allowed: false},
		{name: "admin without acceptance", session: adminSession, allowed: false},
		{name: "other founder", session: Session{UserID: "usr_other", Role: "founder"}, allowed: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ListPartnershipChat(context.Background(), tc.session, "sub_1")
			if tc.allowed && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tc.allowed {
				assertDomainCode(t, err, 403, "FORBIDDEN")
			}

			_, err = svc.ListSharedLinks(context.Background(), tc.session, "sub_1")
			if tc.allowed && err != nil {
				t.Fatalf("expected shared links access, got %v", err)
			}
			if !tc.allowed {
				assertDomainCode(t, err, 403, "FORBIDDEN")
			}
		})
	}
}

func TestAdminSurfacesRequireManage(t *testing.T) {
	svc := newTestService(&fakeStore{})

	if _, err := svc.ListBoardMembers(context.Background(), boardSession); err == nil {
		t.Fatal("board member should not read the admin roster")
	}
	_, err := svc.CreateBoardMember(context.Background(), boardSession, BoardMemberInput{})
	assertDomainCode(t, err, 403, "FORBIDDEN")
	_, err = svc.PutSetting(context.Background(), founderSession, SettingInput{Key: "k"})
	assertDomainCode(t, err, 403, "FORBIDDEN")
	_, err = svc.Broadcast(context.Background(), boardSession, BroadcastInput{Subject: "s", Body: "b"})
	assertDomainCode(t, err, 403, "FORBIDDEN")
}

func TestCreateBoardMember(t *testing.T) {
	var created store.User
	svc := newTestService(&fakeStore{
		createUserFn: func(_ context.Context, user store.User) (store.User, error) {
			created = user
			return user, nil
		},
	})

	result, err := svc.CreateBoardMember(context.Background(), adminSession, BoardMemberInput{
		Name:      "Dana",
		Email:     "dana@example.com",
		Password:  "longenough",
		Specialty: "Fintech",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Role != "board" {
		t.Fatalf("expected board role, got %q", created.Role)
	}
	if created.Specialty != "Fintech" {
		t.Fatalf("expected specialty carried through, got %q", created.Specialty)
	}
	member := result["member"].(map[string]any)
	if member["email"] != "dana@example.com" {
		t.Fatalf("roster view should include email, got %v", member)
	}
}

func TestRemoveBoardMemberNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.RemoveBoardMember(context.Background(), adminSession, "usr_gone")
	assertDomainCode(t, err, 404, "NOT_FOUND")
}

func TestBoardDirectoryHidesEmail(t *testing.T) {
	svc := newTestService(&fakeStore{
		listUsersByRoleFn: func(context.Context, string) ([]store.User, error) {
			return []store.User{{ID: "usr_b", Name: "Bram", Email: "bram@example.com", Specialty: "SaaS"}}, nil
		},
	})

	result, err := svc.BoardDirectory(context.Background(), founderSession)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	members := result["members"].([]map[string]any)
	if len(members) != 1 {
		t.Fatalf("expected one member, got %d", len(members))
	}
	if _, ok := members[0]["email"]; ok {
		t.Fatal("directory must not expose email addresses")
	}
	if members[0]["specialty"] != "SaaS" {
		t.Fatalf("expected specialty in directory, got %v", members[0])
	}
}

func TestCreateInvitationValidatesRole(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.CreateInvitation(context.Background(), adminSession, InvitationInput{Email: "x@example.com", Role: "founder"})
	assertDomainCode(t, err, 400, "VALIDATION_ERROR")

	result, err := svc.CreateInvitation(context.Background(), adminSession, InvitationInput{Email: "X@Example.com", Role: "board"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv := result["invitation"].(map[string]any)
	if inv["email"] != "x@example.com" {
		t.Fatalf("expected lowercased email, got %v", inv["email"])
	}
}

func TestBroadcastCountsRecipients(t *testing.T) {
	svc := newTestService(&fakeStore{
		listUsersByRoleFn: func(context.Context, string) ([]store.User, error) {
			return []store.User{{Email: "a@example.com"}, {Email: "b@example.com"}}, nil
		},
	})
	result, err := svc.Broadcast(context.Background(), adminSession, BroadcastInput{Subject: "Update", Body: "Hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["recipients"] != 2 {
		t.Fatalf("expected 2 recipients, got %v", result["recipients"])
	}
	svc.notifier.Wait()
}

func TestAnalyticsRequiresReviewer(t *testing.T) {
	svc := newTestService(&fakeStore{
		countSubmissionsByFn: func(_ context.Context, column string) (map[string]int, error) {
			if column == "status" {
				return map[string]int{"approved": 2, "passed": 1}, nil
			}
			return map[string]int{}, nil
		},
	})

	_, err := svc.Analytics(context.Background(), founderSession)
	assertDomainCode(t, err, 403, "FORBIDDEN")

	snapshot, err := svc.Analytics(context.Background(), boardSession)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot["approvalRate"] != 67 {
		t.Fatalf("expected approval rate 67, got %v", snapshot["approvalRate"])
	}
	if snapshot["avgRating"] != "N/A" {
		t.Fatalf("expected N/A with no ratings, got %v", snapshot["avgRating"])
	}
}

func TestUpdateProfilePatch(t *testing.T) {
	var gotPatch store.UserPatch
	svc := newTestService(&fakeStore{
		updateUserProfileFn: func(_ context.Context, userID string, patch store.UserPatch) (store.User, error) {
			gotPatch = patch
			return store.User{ID: userID, Name: "Ava"}, nil
		},
	})

	bio := "Building things"
	if _, err := svc.UpdateProfile(context.Background(), founderSession, ProfilePatch{Bio: &bio}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPatch.Bio == nil || *gotPatch.Bio != bio {
		t.Fatal("expected bio in patch")
	}
	if gotPatch.Name != nil {
		t.Fatal("absent fields must stay nil in the patch")
	}

	empty := ""
	_, err := svc.UpdateProfile(context.Background(), founderSession, ProfilePatch{Name: &empty})
	assertDomainCode(t, err, 400, "VALIDATION_ERROR")
}

func TestAnalyzeSubmissionUnconfigured(t *testing.T) {
	svc := newTestService(&fakeStore{
		getSubmissionFn: func(context.Context, string) (store.Submission, error) {
			return ownedSubmission(), nil
		},
	})
	_, err := svc.AnalyzeSubmission(context.Background(), boardSession, "sub_1")
	assertDomainCode(t, err, 400, "AI_NOT_CONFIGURED")
}

func TestDeckEndpointsUnconfigured(t *testing.T) {
	svc := newTestService(&fakeStore{
		getSubmissionFn: func(context.Context, string) (store.Submission, error) {
			return ownedSubmission(), nil
		},
	})
	_, err := svc.UploadDeck(context.Background(), founderSession, "sub_1", "application/pdf", strings.NewReader("x"), 1)
	assertDomainCode(t, err, 400, "STORAGE_NOT_CONFIGURED")
	_, err = svc.DeckDownloadURL(context.Background(), founderSession, "sub_1")
	assertDomainCode(t, err, 400, "STORAGE_NOT_CONFIGURED")
}
