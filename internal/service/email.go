package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"melange-connection-backend/internal/logger"
)

// EmailSender delivers a rendered email to each recipient
type EmailSender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type sendGridSender struct {
	client sendGridClient
	from   *mail.Email
}

func NewSendGridSender(apiKey, fromEmail, fromName string) EmailSender {
	return newSendGridSender(sendgrid.NewSendClient(apiKey), fromEmail, fromName)
}

func newSendGridSender(client sendGridClient, fromEmail, fromName string) *sendGridSender {
	return &sendGridSender{
		client: client,
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

// Send mails each recipient separately so addresses are not disclosed to one another
func (s *sendGridSender) Send(ctx context.Context, to []string, subject, body string) error {
	var errs []error
	for _, addr := range to {
		message := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", addr), body, "")

		logger.ExternalServiceCall("sendgrid", "Send", "to", addr, "subject", subject)
		response, err := s.client.SendWithContext(ctx, message)
		if err == nil && response.StatusCode >= 400 {
			err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		}
		logger.ExternalServiceResult("sendgrid", "Send", err, "to", addr)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to send email to %s: %w", addr, err))
		}
	}
	return errors.Join(errs...)
}

type logSender struct{}

// NewLogSender returns a sender that only logs, for development setups without a mail provider
func NewLogSender() EmailSender {
	return logSender{}
}

func (logSender) Send(ctx context.Context, to []string, subject, body string) error {
	logger.InfoContext(ctx, "Email (log provider)", "to", to, "subject", subject, "body", body)
	return nil
}
