package app

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BenSwartz123/partner-backend/internal/policy"
	"github.com/BenSwartz123/partner-backend/internal/store"
	"github.com/BenSwartz123/partner-backend/internal/util"
)

type NoteInput struct {
	Body           string `json:"body"`
	FounderVisible bool   `json:"founderVisible"`
}

type ChatInput struct {
	Body string `json:"body"`
}

type MeetingInput struct {
	Agenda       string `json:"agenda"`
	ProposedTime string `json:"proposedTime"`
}

type SharedLinkInput struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (s *Service) ListNotes(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	isReviewer := policy.Can(policy.Role(session.Role), policy.ActionReview)
	if !isReviewer && item.FounderID != session.UserID {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	notes, err := s.store.ListBoardNotes(ctx, submissionID, !isReviewer)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(notes))
	for _, note := range notes {
		views = append(views, noteView(note))
	}
	return map[string]any{"notes": views}, nil
}

func (s *Service) CreateNote(ctx context.Context, session Session, submissionID string, input NoteInput) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "body is required", nil)
	}
	if _, err := s.store.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	note, err := s.store.InsertBoardNote(ctx, store.BoardNote{
		ID:             util.NewID("note"),
		SubmissionID:   submissionID,
		AuthorID:       session.UserID,
		Body:           strings.TrimSpace(input.Body),
		FounderVisible: input.FounderVisible,
	})
	if err != nil {
		return nil, err
	}
	note.AuthorName = session.UserName
	return map[string]any{"note": noteView(note)}, nil
}

func (s *Service) ListTags(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	tags, err := s.store.ListTaggedMembers(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(tags))
	for _, tag := range tags {
		views = append(views, tagView(tag))
	}
	return map[string]any{"tags": views}, nil
}

// TagMember is idempotent: tagging an already tagged member returns the
// existing row rather than an error.
func (s *Service) TagMember(ctx context.Context, session Session, submissionID, userID string) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "userId is required", nil)
	}
	if _, err := s.store.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	if err := s.store.TagMember(ctx, submissionID, userID, session.UserID); err != nil {
		return nil, err
	}
	tags, err := s.store.ListTaggedMembers(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	for _, tag := range tags {
		if tag.UserID == userID {
			return map[string]any{"tag": tagView(tag)}, nil
		}
	}
	return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "userId does not refer to a board member", nil)
}

// UntagMember is a no-op when the tag does not exist.
func (s *Service) UntagMember(ctx context.Context, session Session, submissionID, userID string) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if _, err := s.store.UntagMember(ctx, submissionID, userID); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) ListChat(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !policy.CanPostChat(session.actor(), item.FounderID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	messages, err := s.store.ListChatMessages(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		views = append(views, chatView(msg))
	}
	return map[string]any{"messages": views}, nil
}

func (s *Service) PostChat(ctx context.Context, session Session, submissionID string, input ChatInput) (map[string]any, error) {
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !policy.CanPostChat(session.actor(), item.FounderID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "body is required", nil)
	}
	msg, err := s.store.InsertChatMessage(ctx, store.ChatMessage{
		ID:           util.NewID("msg"),
		SubmissionID: submissionID,
		AuthorID:     session.UserID,
		Body:         strings.TrimSpace(input.Body),
	})
	if err != nil {
		return nil, err
	}
	msg.AuthorName = session.UserName
	msg.AuthorRole = session.Role
	return map[string]any{"message": chatView(msg)}, nil
}

// RequestMeeting records the request and also drops a system line into the
// submission's discussion thread so the founder sees it in context.
func (s *Service) RequestMeeting(ctx context.Context, session Session, submissionID string, input MeetingInput) (map[string]any, error) {
	if !policy.Can(policy.Role(session.Role), policy.ActionReview) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	agenda := strings.TrimSpace(input.Agenda)
	if agenda == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "agenda is required", nil)
	}
	proposedTime := time.Time{}
	if strings.TrimSpace(input.ProposedTime) != "" {
		parsed, err := time.Parse(time.RFC3339, input.ProposedTime)
		if err != nil {
			return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "proposedTime must be RFC 3339", nil)
		}
		proposedTime = parsed
	}
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	meeting, err := s.store.InsertMeetingRequest(ctx, store.MeetingRequest{
		ID:           util.NewID("mtg"),
		SubmissionID: submissionID,
		RequestedBy:  session.UserID,
		ProposedTime: proposedTime,
		Agenda:       agenda,
	})
	if err != nil {
		return nil, err
	}
	meeting.RequesterName = session.UserName
	meeting.CompanyName = item.CompanyName

	if _, err := s.store.InsertChatMessage(ctx, store.ChatMessage{
		ID:           util.NewID("msg"),
		SubmissionID: submissionID,
		AuthorID:     session.UserID,
		Body:         session.UserName + " requested a meeting: " + agenda,
		System:       true,
	}); err != nil {
		return nil, err
	}

	if founder, err := s.store.GetUserByID(ctx, item.FounderID); err == nil {
		s.notifier.MeetingRequested(founder.Email, founder.Name, session.UserName, item.CompanyName, item.ID)
	}
	return map[string]any{"meeting": meetingView(meeting)}, nil
}

func (s *Service) ListSubmissionMeetings(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !policy.CanReadSubmission(session.actor(), item.FounderID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	meetings, err := s.store.ListSubmissionMeetings(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"meetings": meetingViews(meetings)}, nil
}

// ListMyMeetings is the caller's meeting inbox: incoming requests for a
// founder, requests they made for a board member or admin.
func (s *Service) ListMyMeetings(ctx context.Context, session Session) (map[string]any, error) {
	var meetings []store.MeetingRequest
	var err error
	if policy.Can(policy.Role(session.Role), policy.ActionReview) {
		meetings, err = s.store.ListRequesterMeetings(ctx, session.UserID)
	} else {
		meetings, err = s.store.ListFounderMeetings(ctx, session.UserID)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"meetings": meetingViews(meetings)}, nil
}

// partnerSurfaceAllowed gates the partnership chat and shared links: the
// owning founder, or a board member whose claim the founder accepted.
func (s *Service) partnerSurfaceAllowed(ctx context.Context, session Session, item store.Submission) (bool, error) {
	accepted := false
	if session.UserID != item.FounderID {
		var err error
		accepted, err = s.store.HasAcceptedPartner(ctx, item.ID, session.UserID)
		if err != nil {
			return false, err
		}
	}
	return policy.CanAccessPartnerSurface(session.actor(), item.FounderID, accepted), nil
}

func (s *Service) ListPartnershipChat(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.partnerSurfaceAllowed(ctx, session, item)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "partnership chat requires an accepted partnership", nil)
	}
	messages, err := s.store.ListPartnershipMessages(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		views = append(views, partnershipMessageView(msg))
	}
	return map[string]any{"messages": views}, nil
}

func (s *Service) PostPartnershipChat(ctx context.Context, session Session, submissionID string, input ChatInput) (map[string]any, error) {
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.partnerSurfaceAllowed(ctx, session, item)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "partnership chat requires an accepted partnership", nil)
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "body is required", nil)
	}
	msg, err := s.store.InsertPartnershipMessage(ctx, store.PartnershipMessage{
		ID:           util.NewID("pmsg"),
		SubmissionID: submissionID,
		AuthorID:     session.UserID,
		Body:         strings.TrimSpace(input.Body),
	})
	if err != nil {
		return nil, err
	}
	msg.AuthorName = session.UserName
	return map[string]any{"message": partnershipMessageView(msg)}, nil
}

func (s *Service) ListSharedLinks(ctx context.Context, session Session, submissionID string) (map[string]any, error) {
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.partnerSurfaceAllowed(ctx, session, item)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "shared links require an accepted partnership", nil)
	}
	links, err := s.store.ListSharedLinks(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(links))
	for _, link := range links {
		views = append(views, sharedLinkView(link))
	}
	return map[string]any{"links": views}, nil
}

func (s *Service) AddSharedLink(ctx context.Context, session Session, submissionID string, input SharedLinkInput) (map[string]any, error) {
	item, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.partnerSurfaceAllowed(ctx, session, item)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "shared links require an accepted partnership", nil)
	}
	rawURL := strings.TrimSpace(input.URL)
	if rawURL == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "url is required", nil)
	}
	if parsed, err := url.Parse(rawURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "url must be http or https", nil)
	}
	link, err := s.store.InsertSharedLink(ctx, store.SharedLink{
		ID:           util.NewID("link"),
		SubmissionID: submissionID,
		AddedBy:      session.UserID,
		URL:          rawURL,
		Title:        strings.TrimSpace(input.Title),
	})
	if err != nil {
		return nil, err
	}
	link.AddedByName = session.UserName
	return map[string]any{"link": sharedLinkView(link)}, nil
}

func noteView(note store.BoardNote) map[string]any {
	return map[string]any{
		"id":             note.ID,
		"submissionId":   note.SubmissionID,
		"authorId":       note.AuthorID,
		"authorName":     note.AuthorName,
		"body":           note.Body,
		"founderVisible": note.FounderVisible,
		"createdAt":      note.CreatedAt.Format(time.RFC3339),
	}
}

func tagView(tag store.TaggedMember) map[string]any {
	return map[string]any{
		"submissionId": tag.SubmissionID,
		"userId":       tag.UserID,
		"userName":     tag.UserName,
		"specialty":    tag.Specialty,
		"taggedBy":     tag.TaggedBy,
		"createdAt":    tag.CreatedAt.Format(time.RFC3339),
	}
}

func chatView(msg store.ChatMessage) map[string]any {
	return map[string]any{
		"id":           msg.ID,
		"submissionId": msg.SubmissionID,
		"authorId":     msg.AuthorID,
		"authorName":   msg.AuthorName,
		"authorRole":   msg.AuthorRole,
		"body":         msg.Body,
		"system":       msg.System,
		"createdAt":    msg.CreatedAt.Format(time.RFC3339),
	}
}

func meetingView(meeting store.MeetingRequest) map[string]any {
	view := map[string]any{
		"id":            meeting.ID,
		"submissionId":  meeting.SubmissionID,
		"companyName":   meeting.CompanyName,
		"requestedBy":   meeting.RequestedBy,
		"requesterName": meeting.RequesterName,
		"agenda":        meeting.Agenda,
		"createdAt":     meeting.CreatedAt.Format(time.RFC3339),
	}
	if meeting.ProposedTime.IsZero() {
		view["proposedTime"] = nil
	} else {
		view["proposedTime"] = meeting.ProposedTime.Format(time.RFC3339)
	}
	return view
}

func meetingViews(meetings []store.MeetingRequest) []map[string]any {
	views := make([]map[string]any, 0, len(meetings))
	for _, meeting := range meetings {
		views = append(views, meetingView(meeting))
	}
	return views
}

func partnershipMessageView(msg store.PartnershipMessage) map[string]any {
	return map[string]any{
		"id":           msg.ID,
		"submissionId": msg.SubmissionID,
		"authorId":     msg.AuthorID,
		"authorName":   msg.AuthorName,
		"body":         msg.Body,
		"createdAt":    msg.CreatedAt.Format(time.RFC3339),
	}
}

func sharedLinkView(link store.SharedLink) map[string]any {
	return map[string]any{
		"id":           link.ID,
		"submissionId": link.SubmissionID,
		"addedBy":      link.AddedBy,
		"addedByName":  link.AddedByName,
		"title":        link.Title,
		"url":          link.URL,
		"createdAt":    link.CreatedAt.Format(time.RFC3339),
	}
}
