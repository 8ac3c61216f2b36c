// Package notify sends operational email to the admin list: run
// failures, validation error digests, and report-ready notices. Sending
// goes through SES; when notifications are disabled every call is a
// no-op so callers never branch on configuration.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/ingest"
	"github.com/ignite/paidmedia-monitor/internal/pkg/logger"
)

// Mailer sends one email to the given recipients.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// Notifier formats and dispatches the operational mails.
type Notifier struct {
	mailer Mailer
	admins []string
}

// New creates a notifier over the given mailer.
func New(mailer Mailer, admins []string) *Notifier {
	return &Notifier{mailer: mailer, admins: admins}
}

// NewDisabled returns a notifier that drops everything.
func NewDisabled() *Notifier {
	return &Notifier{mailer: nopMailer{}}
}

// RunFailed alerts admins that an ingestion run ended in failure.
func (n *Notifier) RunFailed(ctx context.Context, log *domain.IngestionLog, reason string) {
	subject := fmt.Sprintf("Ingestion failed: %s", log.Source)
	body := fmt.Sprintf("Run %s for source %s (client %s) failed.\n\nReason: %s\n",
		log.ID, log.Source, orAll(log.ClientID), reason)
	n.send(ctx, subject, body)
}

// ValidationErrors mails a digest of rejected rows, capped at the first
// five so a corrupt file does not produce a megabyte of email.
func (n *Notifier) ValidationErrors(ctx context.Context, log *domain.IngestionLog, errs []ingest.RowError) {
	if len(errs) == 0 {
		return
	}
	shown := errs
	if len(shown) > 5 {
		shown = shown[:5]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s for source %s (client %s) rejected %d rows.\n\nFirst errors:\n",
		log.ID, log.Source, orAll(log.ClientID), len(errs))
	for _, e := range shown {
		fmt.Fprintf(&b, "  line %d: %s\n", e.Line, e.Reason)
	}
	n.send(ctx, fmt.Sprintf("Ingestion validation errors: %s", log.Source), b.String())
}

// ReportReady notifies admins that a report finished generating.
func (n *Notifier) ReportReady(ctx context.Context, rep *domain.Report) {
	subject := fmt.Sprintf("Report ready: %s %s", rep.Type, rep.PeriodStart.Format("2006-01-02"))
	body := fmt.Sprintf("Report %s for client %s is ready.\n\nPeriod: %s to %s\n",
		rep.ID, rep.ClientID,
		rep.PeriodStart.Format("2006-01-02"), rep.PeriodEnd.Format("2006-01-02"))
	n.send(ctx, subject, body)
}

func (n *Notifier) send(ctx context.Context, subject, body string) {
	if len(n.admins) == 0 {
		if _, ok := n.mailer.(nopMailer); !ok {
			logger.Warn("notification dropped, no admin recipients configured", "subject", subject)
		}
		return
	}
	if err := n.mailer.Send(ctx, n.admins, subject, body); err != nil {
		logger.Error("notification send failed", "subject", subject, "error", err.Error())
	}
}

func orAll(clientID string) string {
	if clientID == "" {
		return "all"
	}
	return clientID
}

type nopMailer struct{}

func (nopMailer) Send(context.Context, []string, string, string) error { return nil }
