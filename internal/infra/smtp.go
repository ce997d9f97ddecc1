package infra

import (
	"fmt"
	"net/smtp"

	"imperio/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer sends till reconciliation reports to the manager.
type Mailer struct {
	from string
	user string
	pass string
	host string
	addr string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		from: cfg.SMTPUser,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPassword,
		host: cfg.SMTPHost,
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Configured is false when no SMTP host is set; callers skip sending.
func (m *Mailer) Configured() bool { return m.host != "" }

// SendReport mails a plain-text body with an optional PDF attachment.
func (m *Mailer) SendReport(to, subject, body, pdfPath string) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return fmt.Errorf("mailer: attach report: %w", err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}
	return e.Send(m.addr, auth)
}
