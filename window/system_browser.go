package window

import (
	"context"
	"sync/atomic"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
)

// SystemBrowser opens popups in the operating system's default browser.
// Tabs it opens cannot be closed from here, so Close only marks the handle.
type SystemBrowser struct{}

var _ PopupOpener = SystemBrowser{}

func (SystemBrowser) Open(_ context.Context, rawURL, name string, features Features) (Popup, error) {
	if err := browser.OpenURL(rawURL); err != nil {
		return nil, err
	}
	log.Info().Str("name", name).Str("features", features.String()).Msg("opened system browser")
	return &detachedPopup{}, nil
}

type detachedPopup struct {
	closed atomic.Bool
}

func (p *detachedPopup) Close() error {
	p.closed.Store(true)
	return nil
}

func (p *detachedPopup) Closed() bool {
	return p.closed.Load()
}
