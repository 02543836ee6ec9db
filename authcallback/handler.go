package authcallback

import (
	"context"
	"net/url"
	"time"

	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/jrsteele09/fingreat/upstox"
	"github.com/jrsteele09/fingreat/window"
	"github.com/rs/zerolog/log"
)

// DefaultCloseDelay is how long a successful callback window stays open.
const DefaultCloseDelay = 10 * time.Second

// State of one callback load. Success and Error are terminal.
type State string

const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

const successMessage = "Authentication successful! You can close this window."

// Completer runs the shared code exchange.
type Completer interface {
	Complete(ctx context.Context, code string) (upstox.TokenExchangeResult, error)
}

// Result is what the callback window shows.
type Result struct {
	State   State
	Message string
	UserID  string
	// CloseAfter is zero unless the window should close itself.
	CloseAfter time.Duration
}

// Handler drives the popup or redirect window the authorization server
// sends the user back to.
type Handler struct {
	completer  Completer
	closeDelay time.Duration
}

func NewHandler(completer Completer, closeDelay time.Duration) *Handler {
	if closeDelay <= 0 {
		closeDelay = DefaultCloseDelay
	}
	return &Handler{completer: completer, closeDelay: closeDelay}
}

// Loading is the state shown before Handle returns.
func Loading() Result {
	return Result{State: StateLoading, Message: "Processing your authentication..."}
}

// Handle runs one load of the callback window. opener is nil when the
// window was not opened by the dashboard. On success the opener, if any, is
// told the user id, restricted to origin.
func (h *Handler) Handle(ctx context.Context, query url.Values, opener window.MessageTarget, origin string) Result {
	if reason := query.Get("error"); reason != "" {
		desc := query.Get("error_description")
		if desc == "" {
			desc = reason
		}
		log.Warn().Str("error", reason).Str("description", desc).Msg("Authorization server returned an error")
		return Result{State: StateError, Message: "Authorization was not granted: " + desc}
	}

	code := query.Get("code")
	if code == "" {
		return Result{State: StateError, Message: apperrors.UserMessage(apperrors.ErrMissingCode)}
	}

	result, err := h.completer.Complete(ctx, code)
	if err != nil {
		log.Err(err).Msg("Authentication error")
		return Result{State: StateError, Message: apperrors.UserMessage(apperrors.ErrExchangeFailed)}
	}

	if opener != nil {
		opener.PostMessage(window.AuthSuccess(result.UserID), origin)
	}

	return Result{
		State:      StateSuccess,
		Message:    successMessage,
		UserID:     result.UserID,
		CloseAfter: h.closeDelay,
	}
}
