package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the brokerage link flow and the dashboard
var (
	// Authorization callback errors
	ErrMissingCode    = errors.New("no authorization code")
	ErrExchangeFailed = errors.New("token exchange failed")

	// Session errors
	ErrSessionCheckFailed = errors.New("session check failed")
	ErrConnectTimeout     = errors.New("connect timed out")
	ErrConnectCancelled   = errors.New("connect cancelled")
	ErrAlreadyConnecting  = errors.New("connect already in progress")
	ErrAlreadySignedIn    = errors.New("already signed in")
	ErrNotSignedIn        = errors.New("not signed in")

	// Non-fatal: the backend did not accept the access token
	ErrBackendSync = errors.New("backend token sync failed")

	// Dashboard errors
	ErrNoCompany = errors.New("no company selected")

	// General errors
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUpstream       = errors.New("upstream error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers only import this package
func New(text string) error {
	return errors.New(text)
}

// UserMessage maps an error to the short message shown to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrMissingCode):
		return "No authorization code found in URL."
	case Is(err, ErrExchangeFailed):
		return "Failed to authenticate with Upstox. Please try again."
	case Is(err, ErrConnectTimeout):
		return "Connection timed out. Please try again."
	case Is(err, ErrAlreadyConnecting):
		return "Already connecting to Upstox."
	case Is(err, ErrAlreadySignedIn):
		return "Your Upstox account is already connected."
	case Is(err, ErrNotSignedIn):
		return "Connect your Upstox account first."
	case Is(err, ErrNoCompany):
		return "Please select a company from the sidebar before starting a conversation with the AI agent."
	case Is(err, ErrSessionCheckFailed):
		return "Could not verify your Upstox session."
	default:
		return "Something went wrong. Please try again."
	}
}
