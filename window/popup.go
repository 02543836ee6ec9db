package window

import (
	"context"
	"fmt"
)

// Features positions and sizes a popup window.
type Features struct {
	Width  int
	Height int
	Left   int
	Top    int
}

// DefaultFeatures is the fixed geometry used for the Upstox dialog.
var DefaultFeatures = Features{Width: 600, Height: 700, Left: 300, Top: 200}

// String renders the window.open feature string.
func (f Features) String() string {
	return fmt.Sprintf("width=%d,height=%d,left=%d,top=%d", f.Width, f.Height, f.Left, f.Top)
}

// Popup is a handle on an opened browsing context.
type Popup interface {
	Close() error
	Closed() bool
}

// PopupOpener opens a new browsing context at rawURL.
type PopupOpener interface {
	Open(ctx context.Context, rawURL, name string, features Features) (Popup, error)
}
