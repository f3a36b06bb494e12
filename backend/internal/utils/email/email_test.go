package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/crmportal/crmportal/shared/config"
	"github.com/crmportal/crmportal/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSender(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Email
		want    interface{}
		wantErr bool
	}{
		{name: "log", cfg: config.Email{Provider: "log"}, want: &Log{}},
		{name: "empty provider falls back to log", cfg: config.Email{}, want: &Log{}},
		{
			name: "smtp",
			cfg:  config.Email{Provider: "smtp", From: "a@example.com", SMTP: config.SMTP{Host: "smtp.example.com", Port: 587}},
			want: &SMTP{},
		},
		{name: "smtp without host", cfg: config.Email{Provider: "smtp", From: "a@example.com"}, wantErr: true},
		{
			name: "sendgrid",
			cfg:  config.Email{Provider: "sendgrid", From: "a@example.com", SendGrid: config.SendGrid{Key: "key"}},
			want: &SendGrid{},
		},
		{name: "sendgrid without key", cfg: config.Email{Provider: "sendgrid", From: "a@example.com"}, wantErr: true},
		{
			name: "mailgun",
			cfg:  config.Email{Provider: "mailgun", From: "a@example.com", Mailgun: config.Mailgun{Domain: "mg.example.com", Key: "key"}},
			want: &Mailgun{},
		},
		{name: "mailgun without domain", cfg: config.Email{Provider: "mailgun", From: "a@example.com", Mailgun: config.Mailgun{Key: "key"}}, wantErr: true},
		{name: "unknown", cfg: config.Email{Provider: "pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, sender)
		})
	}
}

func TestNew(t *testing.T) {
	d, err := New(config.Email{Provider: "log"}, config.EmailRetry{Attempts: 3})
	require.NoError(t, err)
	assert.Equal(t, "log", d.provider)
	assert.Equal(t, uint64(3), d.opts.Attempts)

	_, err = New(config.Email{Provider: "pigeon"}, config.EmailRetry{})
	assert.Error(t, err)
}

func TestSendGridMessage(t *testing.T) {
	s := NewSendGrid(config.Email{From: "noreply@example.com", SenderName: "CRM Portal", SendGrid: config.SendGrid{Key: "key"}})

	m := s.message(Message{To: "user@example.com", Subject: "Reset your password", Text: "plain", HTML: "<p>html</p>"})

	assert.Equal(t, "Reset your password", m.Subject)
	assert.Equal(t, "noreply@example.com", m.From.Address)
	assert.Equal(t, "CRM Portal", m.From.Name)
	require.Len(t, m.Personalizations, 1)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "user@example.com", m.Personalizations[0].To[0].Address)
}

func TestMailgunFrom(t *testing.T) {
	m := NewMailgun(config.Email{From: "noreply@example.com", SenderName: "CRM Portal", Mailgun: config.Mailgun{Domain: "mg.example.com", Key: "key"}})
	assert.Equal(t, "CRM Portal <noreply@example.com>", m.from())

	m = NewMailgun(config.Email{From: "noreply@example.com", Mailgun: config.Mailgun{Domain: "mg.example.com", Key: "key"}})
	assert.Equal(t, "noreply@example.com", m.from())
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	logger.InitializeWriter(&buf, "info", false)
	defer logger.Initialize("info", false)

	id, err := NewLog().Send(context.Background(), Message{To: "user@example.com", Subject: "Verify", Text: "link https://example.com/verify-email?token=abc"})

	require.NoError(t, err)
	assert.Contains(t, id, "log-")
	assert.Contains(t, buf.String(), "user@example.com")
	assert.Contains(t, buf.String(), "token=abc")
}
