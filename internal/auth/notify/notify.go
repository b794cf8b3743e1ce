// Package notify abstracts outbound email and SMS delivery. The auth core
// only depends on the interfaces; concrete transports are wired at bootstrap.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoSMSSender is returned when SMS delivery is requested but no SMS
// transport was configured.
var ErrNoSMSSender = errors.New("notify: no sms sender configured")

// Mailer sends a multipart email. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(to, subject, htmlBody, textBody string) error
}

// SMSSender sends a short text message.
type SMSSender interface {
	Send(to, text string) error
}

// Dispatcher wraps the configured transports with a bounded timeout so no
// orchestrator operation ever blocks indefinitely on a provider.
type Dispatcher struct {
	Mailer  Mailer
	SMS     SMSSender
	Timeout time.Duration
}

const defaultTimeout = 10 * time.Second

// SendEmail delivers an email within the dispatcher's timeout.
func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if d.Mailer == nil {
		return errors.New("notify: no mailer configured")
	}
	return d.await(ctx, func() error {
		return d.Mailer.Send(to, subject, htmlBody, textBody)
	})
}

// SendSMS delivers a text message within the dispatcher's timeout.
func (d *Dispatcher) SendSMS(ctx context.Context, to, text string) error {
	if d.SMS == nil {
		return ErrNoSMSSender
	}
	return d.await(ctx, func() error {
		return d.SMS.Send(to, text)
	})
}

// await runs send in its own goroutine and waits for completion, the context,
// or the timeout, whichever comes first. The goroutine is left to finish on
// its own after a timeout; transports are expected to have their own internal
// deadlines as well.
func (d *Dispatcher) await(ctx context.Context, send func() error) error {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	done := make(chan error, 1)
	go func() {
		done <- send()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("notify: dispatch canceled: %w", ctx.Err())
	case <-timer.C:
		return errors.New("notify: dispatch timed out")
	}
}
