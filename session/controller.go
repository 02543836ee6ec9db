package session

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/jrsteele09/fingreat/kvstore"
	"github.com/jrsteele09/fingreat/window"
	"github.com/rs/zerolog/log"
)

const (
	PopupName = "UpstoxAuth"

	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 5 * time.Minute
)

// Checker validates and revokes backend sessions.
type Checker interface {
	IsSignedIn(ctx context.Context, userID string) (bool, error)
	Logout(ctx context.Context, userID string) error
}

// Options configures a Controller. Zero durations take the defaults.
type Options struct {
	// Origin is the page origin; only messages from it are trusted.
	Origin       string
	DialogURL    string
	PollInterval time.Duration
	Timeout      time.Duration
	Features     window.Features
}

// Controller owns the main window's view of the brokerage link.
type Controller struct {
	flow     *Flow
	store    kvstore.Store
	checker  Checker
	opener   window.PopupOpener
	listener window.Listener
	opts     Options

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu sync.Mutex
	// gen changes on every Connect and Disconnect. Init only applies its
	// result if gen is the one it started with.
	gen       uint64
	status    Status
	userID    string
	errMsg    string
	attempt   *Attempt
	nextObsID int
	observers map[int]chan Snapshot
}

func NewController(flow *Flow, store kvstore.Store, checker Checker, opener window.PopupOpener, listener window.Listener, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Features == (window.Features{}) {
		opts.Features = window.DefaultFeatures
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		flow:       flow,
		store:      store,
		checker:    checker,
		opener:     opener,
		listener:   listener,
		opts:       opts,
		baseCtx:    ctx,
		baseCancel: cancel,
		status:     StatusIdle,
		observers:  make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{Status: c.status, Error: c.errMsg}
	if c.status == StatusSignedIn {
		s.UserID = c.userID
	}
	if c.attempt != nil {
		s.AttemptID = c.attempt.ID
	}
	return s
}

// UserID is the signed-in user, empty otherwise.
func (c *Controller) UserID() string {
	return c.Snapshot().UserID
}

// Connecting reports whether a connect attempt is pending.
func (c *Controller) Connecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt != nil
}

// Subscribe returns a channel that always holds the latest state change.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	id := c.nextObsID
	c.nextObsID++
	ch := make(chan Snapshot, 1)
	c.observers[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// notifyLocked must be called with c.mu held.
func (c *Controller) notifyLocked() {
	snap := c.snapshotLocked()
	for _, ch := range c.observers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// signOutLocked must be called with c.mu held.
func (c *Controller) signOutLocked(errMsg string) {
	c.status = StatusSignedOut
	c.userID = ""
	c.errMsg = errMsg
	c.notifyLocked()
}

// Init runs on mount. A code in loc is taken out of the URL and exchanged in
// place; otherwise a stored user id is validated with the backend and
// dropped if the backend no longer knows it. Only exchange failures are
// returned; a failed session check just leaves the user signed out. A
// Connect or Disconnect that runs meanwhile wins over Init's result.
func (c *Controller) Init(ctx context.Context, loc window.Location) error {
	code, hasCode := window.TakeQueryParam(loc, "code")

	c.mu.Lock()
	gen := c.gen
	pending := c.attempt != nil
	if !pending {
		c.status = StatusChecking
		c.errMsg = ""
		c.notifyLocked()
	}
	c.mu.Unlock()

	if hasCode {
		result, err := c.flow.Complete(ctx, code)
		if err != nil {
			if !pending {
				c.settle(gen, "", apperrors.UserMessage(apperrors.ErrExchangeFailed))
			}
			return err
		}
		c.finishExchange(ctx, gen, result.UserID)
		return nil
	}

	if pending {
		return nil
	}

	userID, ok, err := c.store.Get(kvstore.UserIDKey)
	if err != nil {
		log.Err(err).Msg("Failed to read stored user id")
	}
	if !ok || userID == "" {
		c.settle(gen, "", "")
		return nil
	}

	signedIn, err := c.checker.IsSignedIn(ctx, userID)
	if err == nil && signedIn {
		if !c.settle(gen, userID, "") {
			log.Info().Str("user_id", userID).Msg("Session changed during check, ignoring result")
		}
		return nil
	}

	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Session check failed, clearing stored user")
	} else {
		log.Info().Str("user_id", userID).Msg("Stored user no longer signed in")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil
	}
	if err := c.store.Remove(kvstore.UserIDKey); err != nil {
		log.Err(err).Msg("Failed to remove stored user id")
	}
	c.signOutLocked("")
	return nil
}

// settle applies Init's result unless gen is stale. An empty userID
// means signed out.
func (c *Controller) settle(gen uint64, userID, errMsg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	if userID == "" {
		c.signOutLocked(errMsg)
		return true
	}
	c.status = StatusSignedIn
	c.userID = userID
	c.errMsg = ""
	c.notifyLocked()
	return true
}

// finishExchange signs in after a successful in-place code exchange. It
// takes over a pending attempt. If a Disconnect ran during the exchange the
// freshly stored id is removed and the backend session revoked again.
func (c *Controller) finishExchange(ctx context.Context, gen uint64, userID string) {
	c.mu.Lock()
	if c.gen != gen {
		disconnected := c.attempt == nil && c.status != StatusSignedIn
		if disconnected {
			if err := c.store.Remove(kvstore.UserIDKey); err != nil {
				log.Err(err).Msg("Failed to remove stored user id")
			}
		}
		c.mu.Unlock()

		if disconnected {
			log.Info().Str("user_id", userID).Msg("Disconnected during code exchange, dropping session")
			if err := c.checker.Logout(ctx, userID); err != nil {
				log.Err(err).Str("user_id", userID).Msg("Logout error")
			}
		}
		return
	}

	a := c.attempt
	c.attempt = nil
	already := a == nil && c.status == StatusSignedIn && c.userID == userID
	if !already {
		c.status = StatusSignedIn
		c.userID = userID
		c.errMsg = ""
		c.notifyLocked()
	}
	c.mu.Unlock()

	if a != nil {
		a.cancel()
	}
}

// Connect opens the authorization dialog in a popup and starts the race
// that decides how the attempt ends. It returns once the popup is open.
// Called before Init, it first drops any stored user id, since that id was
// never validated and the poll would accept it.
func (c *Controller) Connect(ctx context.Context) (*Attempt, error) {
	c.mu.Lock()
	switch {
	case c.attempt != nil:
		c.mu.Unlock()
		return nil, apperrors.ErrAlreadyConnecting
	case c.status == StatusSignedIn:
		c.mu.Unlock()
		return nil, apperrors.ErrAlreadySignedIn
	case c.status == StatusChecking:
		c.mu.Unlock()
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Connect] session check in progress")
	case c.status == StatusIdle:
		if _, ok, _ := c.store.Get(kvstore.UserIDKey); ok {
			if err := c.store.Remove(kvstore.UserIDKey); err != nil {
				c.mu.Unlock()
				return nil, apperrors.Wrapf(err, "[Connect] clear unchecked user id")
			}
			log.Info().Msg("Cleared unchecked stored user id before connecting")
		}
	}
	a := newAttempt(c.baseCtx, c.opts.DialogURL)
	c.gen++
	c.attempt = a
	c.status = StatusConnecting
	c.errMsg = ""
	c.notifyLocked()
	c.mu.Unlock()

	// Subscribe before the popup exists so an early message is not lost.
	msgs, unsubscribe := c.listener.Listen(c.opts.Origin)

	popup, err := c.opener.Open(ctx, a.DialogURL, PopupName, c.opts.Features)
	if err != nil {
		unsubscribe()
		a.cancel()
		c.mu.Lock()
		if c.attempt == a {
			c.attempt = nil
			c.signOutLocked(apperrors.UserMessage(err))
		}
		c.mu.Unlock()
		a.outcome = OutcomeCancelled
		a.err = apperrors.Wrapf(err, "[Connect] open popup")
		close(a.done)
		return nil, apperrors.Wrapf(err, "[Connect] open popup")
	}

	log.Info().Str("attempt_id", a.ID).Msg("Connecting to Upstox")
	go c.race(a, popup, msgs, unsubscribe)
	return a, nil
}

// race is the only goroutine that resolves a; one select decides the outcome.
func (c *Controller) race(a *Attempt, popup window.Popup, msgs <-chan window.Envelope, unsubscribe func()) {
	ticker := time.NewTicker(c.opts.PollInterval)
	timer := time.NewTimer(c.opts.Timeout)
	defer func() {
		ticker.Stop()
		timer.Stop()
		unsubscribe()
		close(a.done)
	}()

	for {
		select {
		case env := <-msgs:
			if env.Origin != c.opts.Origin || !env.Data.IsAuthSuccess() {
				log.Debug().Str("origin", env.Origin).Str("type", env.Data.Type).Msg("Ignoring message")
				continue
			}
			a.outcome, a.err = c.resolve(a, popup, env.Data.UserID, OutcomeMessage)
			return

		case <-ticker.C:
			userID, ok, err := c.store.Get(kvstore.UserIDKey)
			if err != nil {
				log.Err(err).Msg("Failed to poll stored user id")
				continue
			}
			if ok && userID != "" {
				a.outcome, a.err = c.resolve(a, popup, userID, OutcomePoll)
				return
			}

		case <-timer.C:
			a.outcome, a.err = c.fail(a, popup, apperrors.Wrapf(apperrors.ErrConnectTimeout, "[Connect] attempt %s", a.ID), OutcomeTimeout)
			return

		case <-a.ctx.Done():
			a.outcome, a.err = c.fail(a, popup, apperrors.Wrapf(apperrors.ErrConnectCancelled, "[Connect] attempt %s", a.ID), OutcomeCancelled)
			return
		}
	}
}

// resolve applies a sign-in if a is still the current attempt.
func (c *Controller) resolve(a *Attempt, popup window.Popup, userID string, via Outcome) (Outcome, error) {
	c.mu.Lock()
	if c.attempt != a {
		c.mu.Unlock()
		closePopup(popup)
		return OutcomeCancelled, apperrors.Wrapf(apperrors.ErrConnectCancelled, "[Connect] attempt %s superseded", a.ID)
	}
	c.attempt = nil
	c.status = StatusSignedIn
	c.userID = userID
	c.errMsg = ""
	c.notifyLocked()
	c.mu.Unlock()

	closePopup(popup)
	log.Info().Str("attempt_id", a.ID).Str("user_id", userID).Str("via", string(via)).Msg("Upstox connected")
	return via, nil
}

// fail ends a with SignedOut. A cancel leaves the error slot empty.
func (c *Controller) fail(a *Attempt, popup window.Popup, err error, via Outcome) (Outcome, error) {
	c.mu.Lock()
	if c.attempt != a {
		c.mu.Unlock()
		closePopup(popup)
		return OutcomeCancelled, apperrors.Wrapf(apperrors.ErrConnectCancelled, "[Connect] attempt %s superseded", a.ID)
	}
	c.attempt = nil
	if via == OutcomeCancelled {
		c.signOutLocked("")
	} else {
		c.signOutLocked(apperrors.UserMessage(err))
	}
	c.mu.Unlock()

	closePopup(popup)
	if via == OutcomeCancelled {
		log.Info().Str("attempt_id", a.ID).Msg("Connect cancelled")
	} else {
		log.Err(err).Str("attempt_id", a.ID).Msg("Connect failed")
	}
	return via, err
}

func closePopup(popup window.Popup) {
	if popup.Closed() {
		return
	}
	if err := popup.Close(); err != nil {
		log.Err(err).Msg("Failed to close popup")
	}
}

// Disconnect revokes the backend session best-effort and always clears the
// local one. A pending attempt is cancelled.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	userID := c.userID
	a := c.attempt
	c.attempt = nil
	c.errMsg = ""
	c.mu.Unlock()

	if a != nil {
		a.cancel()
	}

	if userID == "" {
		if stored, ok, err := c.store.Get(kvstore.UserIDKey); err == nil && ok {
			userID = stored
		}
	}

	if userID != "" {
		if err := c.checker.Logout(ctx, userID); err != nil {
			log.Err(err).Str("user_id", userID).Msg("Logout error")
		}
	}

	var removeErr error
	if err := c.store.Remove(kvstore.UserIDKey); err != nil {
		log.Err(err).Msg("Failed to remove stored user id")
		removeErr = apperrors.Wrapf(err, "[Disconnect] remove user id")
	}

	c.mu.Lock()
	c.signOutLocked("")
	c.mu.Unlock()
	return removeErr
}

// Close cancels a pending attempt and waits for its detectors to stop.
func (c *Controller) Close() {
	c.mu.Lock()
	a := c.attempt
	c.mu.Unlock()

	c.baseCancel()
	if a != nil {
		<-a.done
	}
}
