package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/wneessen/go-mail"
)

// NoopEmailSender dipakai bila SMTP tidak dikonfigurasi.
type NoopEmailSender struct{}

func (NoopEmailSender) SendEmail(context.Context, string, string, string, string) error {
	return ErrEmailDisabled
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPEmailSender sends multipart/alternative messages over SMTP.
type SMTPEmailSender struct {
	cfg SMTPConfig
}

func NewSMTPEmailSender(cfg SMTPConfig) *SMTPEmailSender {
	if cfg.Port == 0 {
		cfg.Port = mail.DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPEmailSender{cfg: cfg}
}

func (s *SMTPEmailSender) SendEmail(ctx context.Context, to, subject, html, text string) error {
	if s.cfg.Host == "" {
		return ErrEmailDisabled
	}
	if to == "" {
		return ErrNoEmailRecipient
	}

	msg, err := s.buildMessage(to, subject, html, text)
	if err != nil {
		return err
	}

	// semua I/O koneksi dibatasi deadline ctx, tidak ada goroutine yang tertinggal
	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if time.Until(deadline) <= 0 {
		return fmt.Errorf("smtp send to %s: %w", to, context.DeadlineExceeded)
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(time.Until(deadline)),
		mail.WithDialContextFunc(deadlineDialer(deadline)),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		timeoutErr := ctx.Err()
		if timeoutErr == nil && !time.Now().Before(deadline) {
			timeoutErr = context.DeadlineExceeded
		}
		if timeoutErr != nil {
			return fmt.Errorf("smtp send to %s: %w: %w", to, timeoutErr, err)
		}
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPEmailSender) buildMessage(to, subject, html, text string) (*mail.Msg, error) {
	if text == "" {
		text = subject
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.cfg.From, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(sanitizeHeader(subject))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, text)
	if html != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, html)
	}
	return msg, nil
}

func deadlineDialer(deadline time.Time) mail.DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

type reminderEmailData struct {
	AppName  string
	UserName string
	LeadName string
	Message  string
	DueIn    string
	DueAt    string
	Interval string
	Title    string
}

var reminderHTMLTemplate = htmltemplate.Must(htmltemplate.New("reminder_html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>{{.Title}}</h2>
  <p>Hi {{.UserName}},</p>
  <p>Your reminder for <strong>{{.LeadName}}</strong> is due in <strong>{{.DueIn}}</strong>{{if .DueAt}} ({{.DueAt}}){{end}}.</p>
  {{if .Message}}<blockquote>{{.Message}}</blockquote>{{end}}
  <p style="color: #888; font-size: 12px;">{{.AppName}} &middot; {{.Interval}} reminder</p>
</body>
</html>`))

var reminderTextTemplate = texttemplate.Must(texttemplate.New("reminder_text").Parse(`Hi {{.UserName}},

Your reminder for {{.LeadName}} is due in {{.DueIn}}{{if .DueAt}} ({{.DueAt}}){{end}}.
{{if .Message}}
{{.Message}}
{{end}}
-- {{.AppName}} ({{.Interval}} reminder)
`))

func renderReminderEmail(data reminderEmailData) (string, string, error) {
	var html, text bytes.Buffer
	if err := reminderHTMLTemplate.Execute(&html, data); err != nil {
		return "", "", err
	}
	if err := reminderTextTemplate.Execute(&text, data); err != nil {
		return "", "", err
	}
	return html.String(), text.String(), nil
}
