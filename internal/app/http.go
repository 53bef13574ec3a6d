package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/BenSwartz123/partner-backend/internal/auth"
	"github.com/BenSwartz123/partner-backend/internal/identity"
	"github.com/BenSwartz123/partner-backend/internal/store"
)

// maxDeckSize caps pitch deck uploads at 25 MB.
const maxDeckSize = 25 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/auth/signup", s.handleSignUp).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/signin", s.handleSignIn).Methods(http.MethodPost)
	r.HandleFunc("/api/session", s.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/api/session/logout", s.handleLogout).Methods(http.MethodPost)

	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(s.requireSession)

	authed.HandleFunc("/profile", s.handleGetProfile).Methods(http.MethodGet)
	authed.HandleFunc("/profile", s.handleUpdateProfile).Methods(http.MethodPut)

	authed.HandleFunc("/submissions", s.handleCreateSubmission).Methods(http.MethodPost)
	authed.HandleFunc("/submissions", s.handleListSubmissions).Methods(http.MethodGet)
	authed.HandleFunc("/submissions/{id}", s.handleGetSubmission).Methods(http.MethodGet)
	authed.HandleFunc("/submissions/{id}", s.handleUpdateSubmission).Methods(http.MethodPut)
	authed.HandleFunc("/submissions/{id}/status", s.handleSetStatus).Methods(http.MethodPut)
	authed.HandleFunc("/submissions/{id}/rating", s.handleSetRating).Methods(http.MethodPut)
	authed.HandleFunc("/submissions/{id}/analysis", s.handleAnalyze).Methods(http.MethodGet)
	authed.HandleFunc("/submissions/{id}/deck", s.handleUploadDeck).Methods(http.MethodPost)
	authed.HandleFunc("/submissions/{id}/deck", s.handleDeckURL).Methods(http.MethodGet)

	authed.HandleFunc("/submissions/{id}/notes", s.handleListNotes).Methods(http.MethodGet)
	authed.HandleFunc("/submissions/{id}/notes", s.handleCreateNote).Methods(http.MethodPost)
	authed.HandleFunc("/submissions/{id}/tags", s.handleListTags).Methods(http.MethodGet)
	authed.HandleFunc("/submissions/{id}/tags", s.handleTagMember).Methods(http.MethodPost)
	authed.HandleFunc("/submissions/{id}/tags/{userId}", s.handleUntagMember).Methods(http.MethodDelete)
	authed.HandleFunc("/submissions/{id}/chat", s.handleListChat).Methods(http.MethodGet)
	authed.HandleFunc("/submissions/{id}/chat", s.handlePostChat).Methods(http.MethodPost)
	authed.HandleFunc("/submissions/{id}/meeting", s.handleRequestMeeting).Methods(http.MethodPost)
	authed.HandleFunc("/submissions/{id}/meetings", s.handleListSubmissionMeetings).Methods(http.MethodGet)
	authed.HandleFunc("/submissions/{id}/partnership-chat", s.handleListPartnershipChat).Methods(http.MethodGet)
	authed.HandleFunc("/submissions/{id}/partnership-chat", s.handlePostPartnershipChat).Methods(http.MethodPost)
	authed.HandleFunc("/submissions/{id}/shared-links", s.handleListSharedLinks).Methods(http.MethodGet)
	authed.HandleFunc("/submissions/{id}/shared-links", s.handleAddSharedLink).Methods(http.MethodPost)

	authed.HandleFunc("/submissions/{id}/partner", s.handleClaimPartner).Methods(http.MethodPost)
	authed.HandleFunc("/submissions/{id}/partner", s.handleWithdrawPartner).Methods(http.MethodDelete)
	authed.HandleFunc("/submissions/{id}/partners", s.handleListPartners).Methods(http.MethodGet)
	authed.HandleFunc("/partnerships", s.handleListMyPartnerships).Methods(http.MethodGet)
	authed.HandleFunc("/partnerships/{id}", s.handleRespondPartnership).Methods(http.MethodPut)
	authed.HandleFunc("/meetings", s.handleListMyMeetings).Methods(http.MethodGet)

	authed.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet)
	authed.HandleFunc("/board-members", s.handleBoardDirectory).Methods(http.MethodGet)

	authed.HandleFunc("/admin/board-members", s.handleListBoardMembers).Methods(http.MethodGet)
	authed.HandleFunc("/admin/board-members", s.handleCreateBoardMember).Methods(http.MethodPost)
	authed.HandleFunc("/admin/board-members/{id}", s.handleRemoveBoardMember).Methods(http.MethodDelete)
	authed.HandleFunc("/admin/settings", s.handleListSettings).Methods(http.MethodGet)
	authed.HandleFunc("/admin/settings", s.handlePutSetting).Methods(http.MethodPut)
	authed.HandleFunc("/admin/invitations", s.handleListInvitations).Methods(http.MethodGet)
	authed.HandleFunc("/admin/invitations", s.handleCreateInvitation).Methods(http.MethodPost)
	authed.HandleFunc("/admin/message", s.handleBroadcast).Methods(http.MethodPost)

	return s.withMiddleware(r)
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) Session {
	session, _ := ctx.Value(sessionKey{}).(Session)
	return session
}

// requireSession rejects requests without a valid bearer token and stashes
// the caller identity in the request context.
func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	statusCode := http.StatusOK
	if err := s.service.Ping(ctx); err != nil {
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	writeJSON(w, statusCode, map[string]any{"ok": statusCode == http.StatusOK, "checks": checks})
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.SignUp(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSession is introspection, not authentication: a bad token answers
// authenticated:false rather than an error.
func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"userId":        session.UserID,
		"userName":      session.UserName,
		"role":          session.Role,
	})
}

// handleLogout exists for client symmetry. Tokens are stateless; the client
// discards its copy and the session is gone.
func (s *HTTPServer) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.GetProfile(r.Context(), session)
	})
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch ProfilePatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.UpdateProfile(r.Context(), session, patch)
	})
}

func (s *HTTPServer) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var input SubmissionInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusCreated, func(session Session) (map[string]any, error) {
		return s.service.CreateSubmission(r.Context(), session, input)
	})
}

func (s *HTTPServer) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	input := SubmissionListInput{
		Status:   query.Get("status"),
		Industry: query.Get("industry"),
		Query:    query.Get("q"),
	}
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListSubmissions(r.Context(), session, input)
	})
}

func (s *HTTPServer) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.GetSubmission(r.Context(), session, id)
	})
}

func (s *HTTPServer) handleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var input SubmissionInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.UpdateSubmission(r.Context(), session, id, input)
	})
}

func (s *HTTPServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.SetSubmissionStatus(r.Context(), session, id, body.Status)
	})
}

func (s *HTTPServer) handleSetRating(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Rating int `json:"rating"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.SetSubmissionRating(r.Context(), session, id, body.Rating)
	})
}

func (s *HTTPServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.AnalyzeSubmission(r.Context(), session, id)
	})
}

func (s *HTTPServer) handleUploadDeck(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	r.Body = http.MaxBytesReader(w, r.Body, maxDeckSize)
	if err := r.ParseMultipartForm(maxDeckSize); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form with a deck file", nil)
		return
	}
	file, header, err := r.FormFile("deck")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "deck file is required", nil)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.UploadDeck(r.Context(), session, id, contentType, file, header.Size)
	})
}

func (s *HTTPServer) handleDeckURL(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.DeckDownloadURL(r.Context(), session, id)
	})
}

func (s *HTTPServer) handleListNotes(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListNotes(r.Context(), session, id)
	})
}

func (s *HTTPServer) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var input NoteInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusCreated, func(session Session) (map[string]any, error) {
		return s.service.CreateNote(r.Context(), session, id, input)
	})
}

func (s *HTTPServer) handleListTags(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListTags(r.Context(), session, id)
	})
}

func (s *HTTPServer) handleTagMember(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		UserID string `json:"userId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.TagMember(r.Context(), session, id, body.UserID)
	})
}

func (s *HTTPServer) handleUntagMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.UntagMember(r.Context(), session, vars["id"], vars["userId"])
	})
}

func (s *HTTPServer) handleListChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListChat(r.Context(), session, id)
	})
}

func (s *HTTPServer) handlePostChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var input ChatInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusCreated, func(session Session) (map[string]any, error) {
		return s.service.PostChat(r.Context(), session, id, input)
	})
}

func (s *HTTPServer) handleRequestMeeting(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var input MeetingInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusCreated, func(session Session) (map[string]any, error) {
		return s.service.RequestMeeting(r.Context(), session, id, input)
	})
}

func (s *HTTPServer) handleListSubmissionMeetings(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListSubmissionMeetings(r.Context(), session, id)
	})
}

func (s *HTTPServer) handleListPartnershipChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListPartnershipChat(r.Context(), session, id)
	})
}

func (s *HTTPServer) handlePostPartnershipChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var input ChatInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusCreated, func(session Session) (map[string]any, error) {
		return s.service.PostPartnershipChat(r.Context(), session, id, input)
	})
}

func (s *HTTPServer) handleListSharedLinks(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListSharedLinks(r.Context(), session, id)
	})
}

func (s *HTTPServer) handleAddSharedLink(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var input SharedLinkInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusCreated, func(session Session) (map[string]any, error) {
		return s.service.AddSharedLink(r.Context(), session, id, input)
	})
}

func (s *HTTPServer) handleClaimPartner(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusCreated, func(session Session) (map[string]any, error) {
		return s.service.ClaimPartner(r.Context(), session, id)
	})
}

func (s *HTTPServer) handleWithdrawPartner(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.WithdrawPartner(r.Context(), session, id)
	})
}

func (s *HTTPServer) handleListPartners(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListSubmissionPartners(r.Context(), session, id)
	})
}

func (s *HTTPServer) handleListMyPartnerships(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListMyPartnerships(r.Context(), session)
	})
}

func (s *HTTPServer) handleRespondPartnership(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.RespondPartnership(r.Context(), session, id, body.Status)
	})
}

func (s *HTTPServer) handleListMyMeetings(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListMyMeetings(r.Context(), session)
	})
}

func (s *HTTPServer) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.Analytics(r.Context(), session)
	})
}

func (s *HTTPServer) handleBoardDirectory(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.BoardDirectory(r.Context(), session)
	})
}

func (s *HTTPServer) handleListBoardMembers(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListBoardMembers(r.Context(), session)
	})
}

func (s *HTTPServer) handleCreateBoardMember(w http.ResponseWriter, r *http.Request) {
	var input BoardMemberInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusCreated, func(session Session) (map[string]any, error) {
		return s.service.CreateBoardMember(r.Context(), session, input)
	})
}

func (s *HTTPServer) handleRemoveBoardMember(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.RemoveBoardMember(r.Context(), session, id)
	})
}

func (s *HTTPServer) handleListSettings(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListSettings(r.Context(), session)
	})
}

func (s *HTTPServer) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	var input SettingInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.PutSetting(r.Context(), session, input)
	})
}

func (s *HTTPServer) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.ListInvitations(r.Context(), session)
	})
}

func (s *HTTPServer) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	var input InvitationInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusCreated, func(session Session) (map[string]any, error) {
		return s.service.CreateInvitation(r.Context(), session, input)
	})
}

func (s *HTTPServer) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var input BroadcastInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r, http.StatusOK, func(session Session) (map[string]any, error) {
		return s.service.Broadcast(r.Context(), session, input)
	})
}

// respond runs a service call with the context session and writes either the
// payload or the mapped error.
func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, status int, fn func(Session) (map[string]any, error)) {
	result, err := fn(sessionFrom(r.Context()))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, status, result)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic serving request", "request_id", requestID, "path", r.URL.Path, "panic", rec)
				writeError(writer, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
			}
			slog.Info("request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", writer.status,
				"duration_ms", time.Since(started).Milliseconds(),
			)
		}()

		next.ServeHTTP(writer, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// mapError translates errors into wire responses at the single exit point.
// Anything unrecognized becomes an opaque 500; internal detail never leaks.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	}
	if errors.Is(err, identity.ErrEmailTaken) {
		return http.StatusConflict, "CONFLICT", "Email already registered", nil
	}
	if errors.Is(err, identity.ErrMissingFields) ||
		errors.Is(err, identity.ErrInvalidEmail) ||
		errors.Is(err, identity.ErrPasswordTooShort) ||
		errors.Is(err, identity.ErrInvalidRole) {
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	}
	if errors.Is(err, store.ErrPartnerExists) {
		return http.StatusConflict, "CONFLICT", "you already have a partnership claim on this submission", nil
	}
	if errors.Is(err, store.ErrPartnerLimit) {
		return http.StatusBadRequest, "PARTNER_LIMIT_REACHED", "this submission already has 3 active partner claims", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
