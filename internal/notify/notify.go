// Package notify dispatches best-effort email notifications. Delivery never
// blocks or fails the request that triggered it.
package notify

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BenSwartz123/partner-backend/internal/email"
)

type Notifier struct {
	email  *email.Service
	appURL string
	wg     sync.WaitGroup
}

// New creates a notifier. A nil email service, or one without SMTP
// configured, turns every notification into a no-op.
func New(emailSvc *email.Service, appURL string) *Notifier {
	return &Notifier{email: emailSvc, appURL: appURL}
}

// Wait blocks until in-flight notifications settle. Used in shutdown and
// tests.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatch(kind string, send func() error) {
	if n == nil || n.email == nil || !n.email.IsConfigured() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := send(); err != nil {
			slog.Warn("notify: delivery failed", "kind", kind, "error", err)
		}
	}()
}

func (n *Notifier) submissionURL(submissionID string) string {
	return fmt.Sprintf("%s/submissions/%s", n.appURL, submissionID)
}

// StatusChanged tells the founder their submission moved to a new status.
func (n *Notifier) StatusChanged(toEmail, founderName, companyName, status, submissionID string) {
	n.dispatch("status-changed", func() error {
		return n.email.SendUpdateEmail(toEmail,
			fmt.Sprintf("%s: status update", companyName),
			email.UpdateData{
				UserName:  founderName,
				Heading:   fmt.Sprintf("%s is now %s", companyName, status),
				Body:      fmt.Sprintf("The board moved %s to %s.", companyName, status),
				ActionURL: n.submissionURL(submissionID),
				Action:    "View submission",
			})
	})
}

// PartnerRequested tells the founder a board member wants to partner.
func (n *Notifier) PartnerRequested(toEmail, founderName, memberName, companyName, submissionID string) {
	n.dispatch("partner-requested", func() error {
		return n.email.SendUpdateEmail(toEmail,
			fmt.Sprintf("%s wants to partner with %s", memberName, companyName),
			email.UpdateData{
				UserName:  founderName,
				Heading:   "New partnership request",
				Body:      fmt.Sprintf("%s offered to partner with %s. You can accept or decline from the submission page.", memberName, companyName),
				ActionURL: n.submissionURL(submissionID),
				Action:    "Respond",
			})
	})
}

// PartnerResponded tells the board member how the founder answered.
func (n *Notifier) PartnerResponded(toEmail, memberName, companyName, status string) {
	n.dispatch("partner-responded", func() error {
		return n.email.SendUpdateEmail(toEmail,
			fmt.Sprintf("Partnership %s: %s", status, companyName),
			email.UpdateData{
				UserName: memberName,
				Heading:  fmt.Sprintf("Your partnership request was %s", status),
				Body:     fmt.Sprintf("The founder of %s has %s your partnership request.", companyName, status),
			})
	})
}

// MeetingRequested tells the founder a meeting was proposed.
func (n *Notifier) MeetingRequested(toEmail, founderName, requesterName, companyName, submissionID string) {
	n.dispatch("meeting-requested", func() error {
		return n.email.SendUpdateEmail(toEmail,
			fmt.Sprintf("Meeting request for %s", companyName),
			email.UpdateData{
				UserName:  founderName,
				Heading:   "New meeting request",
				Body:      fmt.Sprintf("%s requested a meeting about %s.", requesterName, companyName),
				ActionURL: n.submissionURL(submissionID),
				Action:    "See details",
			})
	})
}

// Invitation sends a join link to a prospective board or admin member.
func (n *Notifier) Invitation(toEmail, role, token, expiresIn string) {
	n.dispatch("invitation", func() error {
		return n.email.SendInvitationEmail(toEmail, email.InvitationData{
			Role:      role,
			InviteURL: fmt.Sprintf("%s/invite?token=%s", n.appURL, token),
			ExpiresIn: expiresIn,
		})
	})
}

// Recipient is one addressee of a broadcast.
type Recipient struct {
	Email string
	Name  string
}

// Broadcast sends an admin announcement to a list of recipients.
func (n *Notifier) Broadcast(recipients []Recipient, subject, body string) {
	for _, r := range recipients {
		r := r
		n.dispatch("broadcast", func() error {
			return n.email.SendUpdateEmail(r.Email, subject, email.UpdateData{
				UserName: r.Name,
				Heading:  subject,
				Body:     body,
			})
		})
	}
}
