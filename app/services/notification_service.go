// Package services provides external service integrations and technical concerns like payments, notifications and tokens
package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

// NotificationService sends transactional messages to pledgers
type NotificationService interface {
	SendEmail(email, subject, message string) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	emailProvider EmailProvider
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(email, subject, message string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(emailProvider EmailProvider) NotificationService {
	return &NotificationServiceImpl{
		emailProvider: emailProvider,
	}
}

// SendEmail sends an email to the specified email address
func (s *NotificationServiceImpl) SendEmail(email, subject, message string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email address: %s", email)
	}

	return s.emailProvider.SendEmail(email, subject, message)
}

type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(email, subject, message string) error {
	log.Printf("Email sent to %s [%s]: %d bytes", email, subject, len(message))
	return nil
}

// SMTPEmailProvider delivers multipart (text + html) mail over SMTP. Port 465 uses
// implicit TLS, anything else uses STARTTLS when the server offers it.
type SMTPEmailProvider struct {
	host       string
	port       int
	username   string
	password   string
	fromEmail  string
	fromName   string
	useTLS     bool
	requireTLS bool
	timeout    time.Duration
	htmlLayout *template.Template
}

// NewSMTPEmailProvider creates an SMTP email provider
func NewSMTPEmailProvider(host string, port int, username, password, fromEmail, fromName string, useTLS, requireTLS bool, timeout time.Duration) EmailProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTPEmailProvider{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		fromEmail:  fromEmail,
		fromName:   fromName,
		useTLS:     useTLS,
		requireTLS: requireTLS,
		timeout:    timeout,
		htmlLayout: template.Must(template.New("email").Parse(emailHTMLLayout)),
	}
}

type emailLayoutData struct {
	Title      string
	Paragraphs []string
	Brand      string
	Year       int
}

const emailHTMLLayout = `<!doctype html>
<html>
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="margin:0;padding:32px 16px;background:#0f172a;font-family:-apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif;">
  <div style="max-width:600px;margin:0 auto;background:#1e293b;border-radius:16px;padding:32px;color:#e2e8f0;">
    <div style="font-weight:700;letter-spacing:.5px;color:#60a5fa;text-transform:uppercase;">{{.Brand}}</div>
    <h1 style="font-size:24px;color:#f1f5f9;">{{.Title}}</h1>
    {{range .Paragraphs}}<p style="line-height:1.7;color:#cbd5e1;white-space:pre-line;">{{.}}</p>{{end}}
    <p style="color:#64748b;font-size:13px;">&copy; {{.Year}} {{.Brand}}</p>
  </div>
</body>
</html>`

func (p *SMTPEmailProvider) SendEmail(email, subject, message string) error {
	htmlBody, err := p.renderHTML(subject, message)
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	msg := p.buildMessage(email, subject, message, htmlBody)
	addr := net.JoinHostPort(p.host, fmt.Sprintf("%d", p.port))

	var client *smtp.Client
	if p.useTLS && p.port == 465 {
		tlsCfg := &tls.Config{ServerName: p.host, MinVersion: tls.VersionTLS12}
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: p.timeout}, "tcp", addr, tlsCfg)
		if err != nil {
			return fmt.Errorf("failed to dial smtp server: %w", err)
		}
		client, err = smtp.NewClient(conn, p.host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to create smtp client: %w", err)
		}
	} else {
		conn, err := net.DialTimeout("tcp", addr, p.timeout)
		if err != nil {
			return fmt.Errorf("failed to dial smtp server: %w", err)
		}
		client, err = smtp.NewClient(conn, p.host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to create smtp client: %w", err)
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: p.host, MinVersion: tls.VersionTLS12}); err != nil {
				client.Close()
				return fmt.Errorf("failed to start tls: %w", err)
			}
		} else if p.requireTLS {
			client.Close()
			return fmt.Errorf("smtp server %s does not support STARTTLS", p.host)
		}
	}
	defer client.Quit()

	if p.username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", p.username, p.password, p.host)); err != nil {
				return fmt.Errorf("smtp auth failed: %w", err)
			}
		}
	}
	if err := client.Mail(p.fromEmail); err != nil {
		return err
	}
	if err := client.Rcpt(email); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (p *SMTPEmailProvider) renderHTML(subject, message string) (string, error) {
	var buf bytes.Buffer
	err := p.htmlLayout.Execute(&buf, emailLayoutData{
		Title:      subject,
		Paragraphs: strings.Split(strings.TrimSpace(message), "\n\n"),
		Brand:      p.fromName,
		Year:       time.Now().Year(),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (p *SMTPEmailProvider) buildMessage(to, subject, textBody, htmlBody string) []byte {
	from := mail.Address{Name: p.fromName, Address: p.fromEmail}
	boundary := fmt.Sprintf("alt_%d", time.Now().UnixNano())

	var msg bytes.Buffer
	write := func(format string, a ...any) { _, _ = msg.WriteString(fmt.Sprintf(format, a...)) }

	write("From: %s\r\n", from.String())
	write("To: %s\r\n", to)
	write("Subject: %s\r\n", subject)
	write("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", textBody)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", htmlBody)

	write("--%s--\r\n", boundary)
	return msg.Bytes()
}
