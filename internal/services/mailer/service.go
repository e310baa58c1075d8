// -----------------------------------------------------------------------
// Mailer Service - SMTP notification email
// Configured from the application config; unconfigured SMTP disables
// sending without failing jobs
// -----------------------------------------------------------------------

package mailer

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
)

// Service sends outbound email over SMTP
type Service struct {
	config common.SMTPConfig
	logger arbor.ILogger
}

var _ interfaces.MailService = (*Service)(nil)

// NewService creates a mailer from the SMTP section of the config
func NewService(config common.SMTPConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		logger: logger,
	}
}

// IsConfigured checks whether the minimum SMTP settings are present
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Username != "" && s.config.Password != "" && s.config.From != ""
}

// SendHTMLEmail sends an email with HTML and/or plain text body
func (s *Service) SendHTMLEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("SMTP is not configured")
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.config.FromName, s.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))

	if htmlBody != "" {
		// Multipart message with HTML and text. Base64 keeps every line
		// under the RFC 5322 limit regardless of content.
		boundary := generateBoundary()
		msg.WriteString("MIME-Version: 1.0\r\n")
		msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
		msg.WriteString("\r\n")

		if textBody != "" {
			msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
			msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
			msg.WriteString("Content-Transfer-Encoding: base64\r\n")
			msg.WriteString("\r\n")
			msg.WriteString(encodeBase64WithLineBreaks(textBody))
			msg.WriteString("\r\n")
		}

		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(encodeBase64WithLineBreaks(htmlBody))
		msg.WriteString("\r\n")

		msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	} else {
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(textBody)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)

	if s.config.UseTLS {
		return s.sendWithTLS(addr, auth, s.config.From, to, msg.String())
	}
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg.String()))
}

// sendWithTLS sends email over a direct TLS connection (Gmail and most
// providers on port 465), falling back to STARTTLS.
func (s *Service) sendWithTLS(addr string, auth smtp.Auth, from, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: host,
	})
	if err != nil {
		return s.sendWithSTARTTLS(addr, auth, from, to, msg)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	return s.transmit(client, auth, from, to, msg)
}

// sendWithSTARTTLS sends email using STARTTLS upgrade
func (s *Service) sendWithSTARTTLS(addr string, auth smtp.Auth, from, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	return s.transmit(client, auth, from, to, msg)
}

func (s *Service) transmit(client *smtp.Client, auth smtp.Auth, from, to, msg string) error {
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set mail recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err = w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// generateBoundary creates a unique MIME boundary string
func generateBoundary() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "folio_boundary_fallback"
	}
	return fmt.Sprintf("folio_%x", b)
}

// encodeBase64WithLineBreaks encodes content as base64 with 76-char line
// breaks per RFC 2045.
func encodeBase64WithLineBreaks(content string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))

	var result strings.Builder
	const lineLen = 76

	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		result.WriteString(encoded[i:end])
		if end < len(encoded) {
			result.WriteString("\r\n")
		}
	}

	return result.String()
}
