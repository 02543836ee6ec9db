package session

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/jrsteele09/fingreat/kvstore"
	"github.com/jrsteele09/fingreat/upstox"
	"github.com/rs/zerolog/log"
)

const defaultSyncTimeout = 15 * time.Second

// TokenSaver receives the access token once the account is linked.
type TokenSaver interface {
	SaveAccessToken(ctx context.Context, accessToken, userID string) error
}

// Flow is the code→token exchange shared by the callback window and the
// main window's same-tab redirect handling.
type Flow struct {
	exchanger   upstox.Exchanger
	store       kvstore.Store
	saver       TokenSaver
	syncTimeout time.Duration
	syncs       sync.WaitGroup
}

func NewFlow(exchanger upstox.Exchanger, store kvstore.Store, saver TokenSaver) *Flow {
	return &Flow{
		exchanger:   exchanger,
		store:       store,
		saver:       saver,
		syncTimeout: defaultSyncTimeout,
	}
}

// Complete exchanges code (one attempt), writes the user id to the store
// exactly once and starts the backend token sync in the background. A
// failed sync is only logged.
func (f *Flow) Complete(ctx context.Context, code string) (upstox.TokenExchangeResult, error) {
	if code == "" {
		return upstox.TokenExchangeResult{}, apperrors.ErrMissingCode
	}

	result, err := f.exchanger.Exchange(ctx, code)
	if err != nil {
		log.Err(err).Msg("Failed to exchange code for token")
		return upstox.TokenExchangeResult{}, err
	}

	if err := f.store.Set(kvstore.UserIDKey, result.UserID); err != nil {
		log.Err(err).Str("user_id", result.UserID).Msg("Failed to store user id")
		return upstox.TokenExchangeResult{}, apperrors.Wrapf(apperrors.ErrExchangeFailed, "[Complete] store user id: %v", err)
	}

	ev := log.Info().Str("user_id", result.UserID)
	if !result.ExpiresAt.IsZero() {
		ev = ev.Time("token_expires_at", result.ExpiresAt)
	}
	ev.Msg("Upstox account linked")

	f.syncs.Add(1)
	go f.syncToken(context.WithoutCancel(ctx), result)

	return result, nil
}

func (f *Flow) syncToken(ctx context.Context, result upstox.TokenExchangeResult) {
	defer f.syncs.Done()

	ctx, cancel := context.WithTimeout(ctx, f.syncTimeout)
	defer cancel()

	if err := f.saver.SaveAccessToken(ctx, result.AccessToken, result.UserID); err != nil {
		log.Warn().Err(err).Str("user_id", result.UserID).Msg("Failed to save token to backend, but authentication successful")
	}
}

// Wait blocks until every background token sync has finished.
func (f *Flow) Wait() {
	f.syncs.Wait()
}
