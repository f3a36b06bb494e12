package email

import (
	"context"

	"github.com/crmportal/crmportal/shared/logger"
	"github.com/google/uuid"
)

// Log writes messages to the application log instead of delivering them.
// Meant for local development, links can be copied from the output.
type Log struct{}

func NewLog() *Log {
	return &Log{}
}

func (Log) Send(_ context.Context, msg Message) (string, error) {
	id := "log-" + uuid.NewString()
	logger.Log.Info("email not delivered, log provider in use",
		"message_id", id,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return id, nil
}
