package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/crmportal/crmportal/shared/config"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGrid struct {
	config config.Email
	client *sendgrid.Client
}

func NewSendGrid(cfg config.Email) *SendGrid {
	return &SendGrid{
		config: cfg,
		client: sendgrid.NewSendClient(cfg.SendGrid.Key),
	}
}

func (s *SendGrid) message(msg Message) *mail.SGMailV3 {
	from := mail.NewEmail(s.config.SenderName, s.config.From)
	to := mail.NewEmail("", msg.To)
	return mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)
}

func (s *SendGrid) Send(ctx context.Context, msg Message) (string, error) {
	response, err := s.client.SendWithContext(ctx, s.message(msg))
	if err != nil {
		return "", err
	}
	if response.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("sendgrid: unexpected status code %d", response.StatusCode)
	}
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
