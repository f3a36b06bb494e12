package email

import (
	"context"

	"github.com/crmportal/crmportal/shared/config"
	"github.com/mailgun/mailgun-go/v4"
)

type Mailgun struct {
	config config.Email
	mg     *mailgun.MailgunImpl
}

func NewMailgun(cfg config.Email) *Mailgun {
	return &Mailgun{
		config: cfg,
		mg:     mailgun.NewMailgun(cfg.Mailgun.Domain, cfg.Mailgun.Key),
	}
}

func (m *Mailgun) from() string {
	if m.config.SenderName == "" {
		return m.config.From
	}
	return m.config.SenderName + " <" + m.config.From + ">"
}

func (m *Mailgun) Send(ctx context.Context, msg Message) (string, error) {
	message := m.mg.NewMessage(m.from(), msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}
	_, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return "", err
	}
	return id, nil
}
