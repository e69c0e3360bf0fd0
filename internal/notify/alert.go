package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/internal/submission"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

var errNoRecipient = errors.New("notify: alert recipient required")

// alertFields is the order lead fields appear in an alert.
var alertFields = []struct {
	key   string
	label string
}{
	{leads.KeyName, "Name"},
	{leads.KeyEmail, "Email"},
	{leads.KeyPhone, "Phone"},
	{leads.KeyMessenger, "Messenger"},
	{leads.KeyGoal, "Goal"},
	{leads.KeyPage, "Page"},
	{leads.KeyRef, "Referrer"},
	{leads.KeyUTMSource, "UTM source"},
	{leads.KeyUTMMedium, "UTM medium"},
	{leads.KeyUTMCampaign, "UTM campaign"},
}

// DeadLetterAlerts wraps a dead-letter sink and emails an operator the lead
// so it can be followed up by hand. Next may be nil, in which case the email
// is the only copy of the lead.
type DeadLetterAlerts struct {
	next   submission.DeadLetter
	email  EmailSender
	to     string
	logger *logging.Logger
}

// NewDeadLetterAlerts builds the decorator. email and to are required.
func NewDeadLetterAlerts(next submission.DeadLetter, email EmailSender, to string, logger *logging.Logger) (*DeadLetterAlerts, error) {
	if email == nil {
		return nil, errors.New("notify: email sender required")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, errNoRecipient
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DeadLetterAlerts{next: next, email: email, to: to, logger: logger}, nil
}

// Publish forwards entry to the wrapped sink and sends the alert. It fails
// only when no sink kept the lead.
func (a *DeadLetterAlerts) Publish(ctx context.Context, entry submission.DeadLetterEntry) error {
	var queueErr error
	queued := false
	if a.next != nil {
		if queueErr = a.next.Publish(ctx, entry); queueErr == nil {
			queued = true
		}
	}

	msg, err := AlertMessage(entry, queued)
	if err != nil {
		a.logger.Warn("dead letter alert body malformed", "submission_id", entry.SubmissionID, "error", err)
	}
	msg.To = a.to
	mailErr := a.email.Send(ctx, msg)
	if mailErr != nil {
		a.logger.Error("dead letter alert failed", "submission_id", entry.SubmissionID, "error", mailErr)
	}

	switch {
	case queued || (a.next == nil && mailErr == nil):
		return nil
	case mailErr == nil:
		a.logger.Warn("lead kept only in alert email", "submission_id", entry.SubmissionID, "error", queueErr)
		return nil
	default:
		return errors.Join(queueErr, mailErr)
	}
}

// AlertMessage renders the operator email for an undeliverable lead. The
// recipient is left empty. A malformed body still yields a message carrying
// the raw body.
func AlertMessage(entry submission.DeadLetterEntry, queued bool) (EmailMessage, error) {
	rec, decodeErr := leads.DecodeRecord(entry.Body)

	name := strings.TrimSpace(rec[leads.KeyName])
	if name == "" {
		name = entry.SubmissionID
	}

	var text, markup strings.Builder
	fmt.Fprintf(&text, "A lead could not be delivered to the webhook.\n\n")
	markup.WriteString("<p>A lead could not be delivered to the webhook.</p><table>")
	for _, f := range alertFields {
		value := rec[f.key]
		if value == "" {
			continue
		}
		fmt.Fprintf(&text, "%s: %s\n", f.label, value)
		fmt.Fprintf(&markup, "<tr><td><b>%s</b></td><td>%s</td></tr>", f.label, html.EscapeString(value))
	}
	markup.WriteString("</table>")
	if decodeErr != nil {
		fmt.Fprintf(&text, "Raw body: %s\n", entry.Body)
		fmt.Fprintf(&markup, "<p>Raw body: <code>%s</code></p>", html.EscapeString(entry.Body))
	}

	fmt.Fprintf(&text, "\nSubmission: %s\nFailed at: %s\nKind: %s\nAttempts: %d\n",
		entry.SubmissionID, entry.FailedAt.UTC().Format(time.RFC3339), entry.Kind, len(entry.Attempts))
	if entry.Error != "" {
		fmt.Fprintf(&text, "Error: %s\n", entry.Error)
	}
	fmt.Fprintf(&markup, "<p>Submission %s failed at %s (%s, %d attempts).</p>",
		html.EscapeString(entry.SubmissionID), entry.FailedAt.UTC().Format(time.RFC3339),
		html.EscapeString(string(entry.Kind)), len(entry.Attempts))
	if entry.Error != "" {
		fmt.Fprintf(&markup, "<p>Error: %s</p>", html.EscapeString(entry.Error))
	}
	if queued {
		text.WriteString("The lead is also kept in the dead-letter queue and can be replayed.\n")
		markup.WriteString("<p>The lead is also kept in the dead-letter queue and can be replayed.</p>")
	}

	return EmailMessage{
		Subject: "Undelivered lead: " + name,
		Body:    text.String(),
		HTML:    markup.String(),
	}, decodeErr
}

var _ submission.DeadLetter = (*DeadLetterAlerts)(nil)
