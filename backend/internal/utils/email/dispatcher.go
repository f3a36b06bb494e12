package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crmportal/crmportal/shared/logger"
	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"
)

type DispatcherOptions struct {
	Attempts  uint64        // total tries, at least 1
	BaseDelay time.Duration // first backoff, doubled on every retry
	Timeout   time.Duration // per attempt
}

// Dispatcher renders markdown bodies and hands them to a Sender with
// retries. A circuit breaker stops hammering a provider that keeps failing.
type Dispatcher struct {
	sender   Sender
	provider string
	breaker  *gobreaker.CircuitBreaker
	opts     DispatcherOptions
}

func NewDispatcher(sender Sender, provider string, opts DispatcherOptions) *Dispatcher {
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		sender:   sender,
		provider: provider,
		opts:     opts,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "email-" + provider,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Log.Warn("email circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Send delivers a markdown body to one recipient and returns the provider
// message id.
func (d *Dispatcher) Send(ctx context.Context, to, subject, body string) (string, error) {
	html, err := renderHTML(body)
	if err != nil {
		return "", err
	}
	msg := Message{To: to, Subject: subject, Text: body, HTML: html}

	var id string
	backoff := retry.WithMaxRetries(d.opts.Attempts-1, retry.NewExponential(d.opts.BaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()

		res, err := d.breaker.Execute(func() (interface{}, error) {
			return d.sender.Send(attemptCtx, msg)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return err
			}
			logger.Log.Warn("email attempt failed", "provider", d.provider, "error", err)
			return retry.RetryableError(err)
		}
		id = res.(string)
		return nil
	})

	switch {
	case err == nil:
		emailSendTotal.WithLabelValues(d.provider, outcomeSent).Inc()
		logger.Log.Info("email sent", "provider", d.provider, "message_id", id, "subject", subject)
		return id, nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		emailSendTotal.WithLabelValues(d.provider, outcomeRejected).Inc()
	default:
		emailSendTotal.WithLabelValues(d.provider, outcomeFailed).Inc()
	}
	logger.Log.Error("email not sent", "provider", d.provider, "subject", subject, "error", err)
	return "", err
}

func (d *Dispatcher) State() gobreaker.State {
	return d.breaker.State()
}

// Ping fails while the breaker is open, so readiness reports the provider outage.
func (d *Dispatcher) Ping(_ context.Context) error {
	if state := d.breaker.State(); state == gobreaker.StateOpen {
		return fmt.Errorf("email provider %s: circuit breaker %s", d.provider, state)
	}
	return nil
}
