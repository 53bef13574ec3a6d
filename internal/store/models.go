package store

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Bio          string
	LinkedIn     string
	Website      string
	Location     string
	Specialty    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserPatch carries a partial profile update. Nil fields are left untouched;
// a pointer to "" clears the field.
type UserPatch struct {
	Name      *string
	Bio       *string
	LinkedIn  *string
	Website   *string
	Location  *string
	Specialty *string
}

type Submission struct {
	ID          string
	FounderID   string
	CompanyName string
	OneLiner    string
	Description string
	Industry    string
	Stage       string
	Website     string
	DeckURL     string
	DeckKey     string
	LookingFor  []string
	Status      string
	Rating      *int
	SubmittedAt time.Time
	UpdatedAt   time.Time
	// Joined for API responses.
	FounderName string
}

// SubmissionFilter narrows ListSubmissions. Empty fields match everything;
// FounderID scopes the result to one founder's own submissions.
type SubmissionFilter struct {
	FounderID string
	Status    string
	Industry  string
	Query     string
}

type BoardNote struct {
	ID             string
	SubmissionID   string
	AuthorID       string
	AuthorName     string
	Body           string
	FounderVisible bool
	CreatedAt      time.Time
}

type TaggedMember struct {
	SubmissionID string
	UserID       string
	UserName     string
	Specialty    string
	TaggedBy     string
	CreatedAt    time.Time
}

type ChatMessage struct {
	ID           string
	SubmissionID string
	AuthorID     string
	AuthorName   string
	AuthorRole   string
	Body         string
	System       bool
	CreatedAt    time.Time
}

type Partnership struct {
	ID           string
	SubmissionID string
	BoardUserID  string
	Status       string
	CreatedAt    time.Time
	RespondedAt  *time.Time
	// Joined for API responses.
	MemberName      string
	MemberSpecialty string
	CompanyName     string
	FounderID       string
}

type MeetingRequest struct {
	ID            string
	SubmissionID  string
	RequestedBy   string
	RequesterName string
	ProposedTime  time.Time
	Agenda        string
	CreatedAt     time.Time
	// Joined for API responses.
	CompanyName string
}

type PartnershipMessage struct {
	ID           string
	SubmissionID string
	AuthorID     string
	AuthorName   string
	Body         string
	CreatedAt    time.Time
}

type SharedLink struct {
	ID           string
	SubmissionID string
	AddedBy      string
	AddedByName  string
	URL          string
	Title        string
	CreatedAt    time.Time
}

type Setting struct {
	Key       string
	Value     string
	UpdatedBy string
	UpdatedAt time.Time
}

type Invitation struct {
	ID        string
	Email     string
	Role      string
	Token     string
	InvitedBy string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// LeaderboardRow is the raw activity tally per board member. Scoring weights
// live in the analytics package.
type LeaderboardRow struct {
	UserID       string
	Name         string
	Specialty    string
	Notes        int
	Partnerships int
	Meetings     int
}

// RatingStats summarizes ratings across visible submissions. Rated is zero
// when nothing has been rated yet.
type RatingStats struct {
	Rated int
	Sum   int
}
