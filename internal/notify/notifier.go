// Package notify turns a finished run report into an operator alert. The
// decision (should this run alert?) is pure; delivery happens behind the
// Sender interface so the report pipeline never touches SMTP directly.
package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nicholas-fedor/shoutrrr"

	"pdiskrepair/internal/config"
	"pdiskrepair/internal/health"
	"pdiskrepair/internal/report"
)

// Sender abstracts message dispatch so the notifier can be tested without
// hitting real services.
type Sender interface {
	Send(shoutrrrURL, message string) error
}

// ShoutrrrSender dispatches via the Shoutrrr library.
type ShoutrrrSender struct{}

func (ShoutrrrSender) Send(serviceURL, message string) error {
	return shoutrrr.Send(serviceURL, message)
}

// Notifier composes and delivers alerts for degraded or unhealthy runs.
type Notifier struct {
	cfg    config.NotifyConfig
	sender Sender
}

// New builds a notifier; a nil sender selects the production Shoutrrr one.
func New(cfg config.NotifyConfig, sender Sender) *Notifier {
	if sender == nil {
		sender = ShoutrrrSender{}
	}
	return &Notifier{cfg: cfg, sender: sender}
}

// ShouldAlert decides, from the report alone, whether an alert is warranted:
// any disk needing attention or replacement, or any failed/skipped action.
func (n *Notifier) ShouldAlert(r *report.RunReport) bool {
	return r.Unhealthy() || r.Degraded()
}

// Alert composes and sends the notification for a run. recipient overrides
// the configured default when non-empty. Callers check ShouldAlert first;
// Alert itself sends unconditionally so operators can request a test mail.
func (n *Notifier) Alert(r *report.RunReport, recipient string) error {
	if n.cfg.ShoutrrrURL == "" {
		return fmt.Errorf("notify: no service URL configured")
	}
	if recipient == "" {
		recipient = n.cfg.Recipient
	}

	serviceURL, err := buildServiceURL(n.cfg.ShoutrrrURL, recipient, n.cfg.Subject)
	if err != nil {
		return err
	}

	if err := n.sender.Send(serviceURL, composeBody(r)); err != nil {
		return fmt.Errorf("notify: send alert: %w", err)
	}
	return nil
}

// buildServiceURL layers the recipient and subject onto the configured
// service URL's query string.
func buildServiceURL(base, recipient, subject string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("notify: bad service URL: %w", err)
	}

	q := u.Query()
	if recipient != "" {
		q.Set("to", recipient)
	}
	if q.Get("to") == "" {
		return "", fmt.Errorf("notify: no recipient configured")
	}
	if subject != "" {
		q.Set("subject", subject)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// composeBody renders the alert text: a headline with the counts, then the
// full report so the mail stands alone.
func composeBody(r *report.RunReport) string {
	verdicts := r.VerdictCounts()
	var sb strings.Builder
	fmt.Fprintf(&sb, "DISKS NEED REPLACEMENT: %d marked for replacement, %d need attention.\n\n",
		verdicts[health.VerdictNeedsReplacement], verdicts[health.VerdictNeedsAttention])
	sb.WriteString(r.RenderString())
	return sb.String()
}
