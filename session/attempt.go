package session

import (
	"context"

	"github.com/google/uuid"
)

// Attempt is one pending Connect. It resolves exactly once.
type Attempt struct {
	ID        string
	DialogURL string

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
	err     error
}

func newAttempt(parent context.Context, dialogURL string) *Attempt {
	ctx, cancel := context.WithCancel(parent)
	return &Attempt{
		ID:        uuid.NewString(),
		DialogURL: dialogURL,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Done is closed after the attempt resolved and its detectors were torn down.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Outcome is valid once Done is closed.
func (a *Attempt) Outcome() Outcome {
	select {
	case <-a.done:
		return a.outcome
	default:
		return OutcomePending
	}
}

// Err is why the attempt did not sign in: it wraps ErrConnectTimeout,
// ErrConnectCancelled or the popup error. It is nil after a sign-in and
// while the attempt is pending.
func (a *Attempt) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Cancel abandons the attempt; the controller returns to signed out.
func (a *Attempt) Cancel() {
	a.cancel()
}
