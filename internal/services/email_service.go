package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"taskflow/internal/models"
)

type EmailService interface {
	Send(ctx context.Context, email models.EmailPayload) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailService{
		dialer: dialer,
		from:   fromEmail,
	}
}

func (s *emailService) Send(ctx context.Context, email models.EmailPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetBody("text/html", email.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send %q to %s: %w", email.Subject, email.To, err)
	}
	return nil
}

func deliverEmail(ctx context.Context, s EmailService, msg models.OutboxMessage) error {
	var p models.EmailPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("decode email payload: %w", err)
	}
	return s.Send(ctx, p)
}

// EmailSender exposes any EmailService as an outbox Sender.
func EmailSender(s EmailService) Sender {
	return SenderFunc(func(ctx context.Context, msg models.OutboxMessage) error {
		return deliverEmail(ctx, s, msg)
	})
}

func credentialsEmail(to, empID string, role models.EmployeeRole, password, loginURL string) models.EmailPayload {
	body := fmt.Sprintf(`
		<h2>Welcome to TaskFlow</h2>
		<p>An account has been created for you as a <strong>%s</strong>.</p>
		<p>Employee ID: <strong>%s</strong><br>Password: <strong>%s</strong></p>
		<p>Sign in at <a href="%s">%s</a> and keep these credentials private.</p>
	`, html.EscapeString(string(role)), html.EscapeString(empID), html.EscapeString(password),
		html.EscapeString(loginURL), html.EscapeString(loginURL))
	return models.EmailPayload{To: to, Subject: "Your TaskFlow account", HTML: body}
}

func passwordResetEmail(to, otp string, ttlMinutes int) models.EmailPayload {
	body := fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>Your one-time code is <strong>%s</strong>. It expires in %d minutes.</p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, otp, ttlMinutes)
	return models.EmailPayload{To: to, Subject: "Your TaskFlow password reset code", HTML: body}
}
