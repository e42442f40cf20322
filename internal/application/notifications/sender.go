// Package notifications delivers fire-and-forget emails after ledger changes.
package notifications

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Recipient is the addressee of a notification.
type Recipient struct {
	Email string
	Name  string
}

type CreditsAppliedEvent struct {
	To           Recipient
	StudentID    string
	Umbrella     string
	Organization string
	Credits      float64
	Count        float64
}

type CertificateIssuedEvent struct {
	To                Recipient
	StudentID         string
	Umbrella          string
	Qualification     string
	CertificateNumber string
	Credits           float64
}

// Sender delivers notifications. Nil = no-op.
type Sender interface {
	CreditsApplied(ctx context.Context, ev CreditsAppliedEvent) error
	CertificateIssued(ctx context.Context, ev CertificateIssuedEvent) error
}

// SendTimeout bounds a single dispatched notification.
const SendTimeout = 15 * time.Second

// Dispatch runs fn against s in its own goroutine. Errors are logged and
// never reach the caller; the returned channel closes when fn finishes.
func Dispatch(s Sender, name string, fn func(ctx context.Context, s Sender) error) <-chan struct{} {
	done := make(chan struct{})
	if s == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
		defer cancel()
		if err := fn(ctx, s); err != nil {
			log.Warn().Err(err).Str("notification", name).Msg("notification failed")
		}
	}()
	return done
}
