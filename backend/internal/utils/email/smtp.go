package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/crmportal/crmportal/shared/config"
	"github.com/crmportal/crmportal/shared/logger"
	"github.com/google/uuid"
)

type SMTP struct {
	config config.Email
	auth   smtp.Auth
}

func NewSMTP(cfg config.Email) *SMTP {
	var auth smtp.Auth
	if cfg.SMTP.Username != "" {
		auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)
	}
	return &SMTP{
		config: cfg,
		auth:   auth,
	}
}

func (s *SMTP) Send(ctx context.Context, msg Message) (string, error) {
	id := messageID(s.config.From)
	body, err := s.buildMessage(id, msg, time.Now())
	if err != nil {
		return "", err
	}
	address := net.JoinHostPort(s.config.SMTP.Host, fmt.Sprint(s.config.SMTP.Port))

	// Port 465 = implicit TLS, otherwise STARTTLS
	var conn net.Conn
	if s.config.SMTP.Port == 465 {
		dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.config.SMTP.Host}}
		conn, err = dialer.DialContext(ctx, "tcp", address)
	} else {
		var dialer net.Dialer
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		logger.Log.Error("failed to connect to SMTP server", "address", address, "error", err)
		return "", err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.SMTP.Host)
	if err != nil {
		logger.Log.Error("failed to create SMTP client", "error", err)
		return "", err
	}
	defer client.Close()

	if s.config.SMTP.Port != 465 {
		if err := client.StartTLS(&tls.Config{ServerName: s.config.SMTP.Host}); err != nil {
			logger.Log.Error("failed to start TLS", "error", err)
			return "", err
		}
	}

	if err := s.sendViaClient(client, msg.To, body); err != nil {
		return "", err
	}
	return id, nil
}

// sendViaClient performs auth, sets sender/recipient, and sends the message body.
func (s *SMTP) sendViaClient(client *smtp.Client, recipient string, body []byte) error {
	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			logger.Log.Error("SMTP authentication failed", "error", err)
			return err
		}
	}

	if err := client.Mail(s.config.From); err != nil {
		logger.Log.Error("failed to set sender", "error", err)
		return err
	}

	if err := client.Rcpt(recipient); err != nil {
		logger.Log.Error("failed to set recipient", "error", err)
		return err
	}

	w, err := client.Data()
	if err != nil {
		logger.Log.Error("failed to get data writer", "error", err)
		return err
	}

	if _, err = w.Write(body); err != nil {
		logger.Log.Error("failed to write message", "error", err)
		return err
	}

	if err = w.Close(); err != nil {
		logger.Log.Error("failed to close data writer", "error", err)
		return err
	}

	return client.Quit()
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// buildMessage renders a multipart/alternative message with the plain text
// part first so that clients prefer the html one.
func (s *SMTP) buildMessage(id string, msg Message, now time.Time) ([]byte, error) {
	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)
	for _, part := range []struct{ contentType, body string }{
		{"text/plain; charset=\"utf-8\"", msg.Text},
		{"text/html; charset=\"utf-8\"", msg.HTML},
	} {
		if part.body == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	from := s.config.From
	if s.config.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.SenderName), s.config.From)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out,
		"Message-ID: %s\r\n"+
			"Date: %s\r\n"+
			"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: multipart/alternative; boundary=%q\r\n"+
			"\r\n",
		id, now.Format(time.RFC1123Z), msg.To, from, mime.QEncoding.Encode("utf-8", msg.Subject), mw.Boundary(),
	)
	out.Write(parts.Bytes())
	return out.Bytes(), nil
}
