// Package policy holds every access decision in one place. Handlers and
// services ask these functions instead of comparing roles inline, so the
// whole authorization surface is auditable from a single file.
package policy

type Role string
type Action string

const (
	RoleFounder Role = "founder"
	RoleBoard   Role = "board"
	RoleAdmin   Role = "admin"
)

const (
	// ActionReview covers the board workflow: statuses, ratings, notes,
	// tagging, meetings, claiming partnership slots, analytics.
	ActionReview Action = "review"
	// ActionManage covers the admin surfaces: board member management,
	// platform settings, invitations, broadcast messages.
	ActionManage Action = "manage"
)

// Actor identifies the caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

// Can decides role-level capabilities. Admin is a strict superset of board.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleBoard:
		return action == ActionReview
	case RoleFounder:
		return false
	default:
		return false
	}
}

// IsValid reports whether the role is one the platform issues. There is no
// default role: an unknown role fails closed everywhere.
func IsValid(role Role) bool {
	switch role {
	case RoleFounder, RoleBoard, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanReadSubmission grants reviewers all submissions and founders their own.
// A founder probing another founder's submission id is denied outright.
func CanReadSubmission(actor Actor, founderID string) bool {
	if Can(actor.Role, ActionReview) {
		return true
	}
	return actor.Role == RoleFounder && actor.ID == founderID
}

// CanCreateSubmission is founder-only. Reviewers evaluate pitches, they do
// not author them.
func CanCreateSubmission(actor Actor) bool {
	return actor.Role == RoleFounder
}

// CanEditSubmission allows the owning founder to update pitch content.
func CanEditSubmission(actor Actor, founderID string) bool {
	return actor.Role == RoleFounder && actor.ID == founderID
}

// CanPostChat mirrors read access: everyone who can see a submission can
// take part in its discussion thread.
func CanPostChat(actor Actor, founderID string) bool {
	return CanReadSubmission(actor, founderID)
}

// CanRespondPartnership is an identity check, not a role check. Only the
// founder who owns the submission answers partner requests, and admin gets
// no override here.
func CanRespondPartnership(actor Actor, founderID string) bool {
	return actor.ID == founderID
}

// CanAccessPartnerSurface gates partnership chat and shared links. The
// owning founder always passes; a reviewer passes only while an accepted
// partnership with this submission exists, regardless of seniority.
func CanAccessPartnerSurface(actor Actor, founderID string, acceptedPartner bool) bool {
	if actor.ID == founderID {
		return true
	}
	return Can(actor.Role, ActionReview) && acceptedPartner
}
