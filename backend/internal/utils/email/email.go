// Package email delivers verification and reset emails through the
// configured provider.
package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/crmportal/crmportal/shared/config"
)

// Message is what a provider delivers. Text is the markdown source and
// HTML its sanitized rendering.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a single message and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// NewSender picks the provider named in cfg.
func NewSender(cfg config.Email) (Sender, error) {
	switch cfg.Provider {
	case "smtp":
		if cfg.SMTP.Host == "" || cfg.SMTP.Port == 0 || cfg.From == "" {
			return nil, errors.New("invalid SMTP configuration")
		}
		return NewSMTP(cfg), nil
	case "sendgrid":
		if cfg.SendGrid.Key == "" || cfg.From == "" {
			return nil, errors.New("invalid SendGrid configuration")
		}
		return NewSendGrid(cfg), nil
	case "mailgun":
		if cfg.Mailgun.Key == "" || cfg.Mailgun.Domain == "" || cfg.From == "" {
			return nil, errors.New("invalid Mailgun configuration")
		}
		return NewMailgun(cfg), nil
	case "log", "":
		return NewLog(), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// New builds the dispatcher used by the auth service.
func New(cfg config.Email, retry config.EmailRetry) (*Dispatcher, error) {
	sender, err := NewSender(cfg)
	if err != nil {
		return nil, err
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "log"
	}
	return NewDispatcher(sender, provider, DispatcherOptions{
		Attempts:  retry.Attempts,
		BaseDelay: retry.BaseDelay,
		Timeout:   cfg.Timeout,
	}), nil
}
