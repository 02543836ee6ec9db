package window

import (
	"net/url"
	"sync"
)

// Location is the address bar of a browsing context.
type Location interface {
	Href() string
	// ReplaceState swaps the current URL without creating a history entry.
	ReplaceState(href string)
}

// StaticLocation is a Location backed by a string; the HTTP layer uses it to
// find out whether a handler rewrote the URL.
type StaticLocation struct {
	mu       sync.Mutex
	href     string
	replaced bool
}

var _ Location = (*StaticLocation)(nil)

func NewStaticLocation(href string) *StaticLocation {
	return &StaticLocation{href: href}
}

func (l *StaticLocation) Href() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.href
}

func (l *StaticLocation) ReplaceState(href string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.href = href
	l.replaced = true
}

// Replaced reports whether ReplaceState was called.
func (l *StaticLocation) Replaced() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replaced
}

// TakeQueryParam reads key from the location's query and, when present,
// immediately replaces the location with the bare path so the value cannot be
// replayed on reload.
func TakeQueryParam(loc Location, key string) (string, bool) {
	u, err := url.Parse(loc.Href())
	if err != nil {
		return "", false
	}
	value := u.Query().Get(key)
	if value == "" {
		return "", false
	}
	u.RawQuery = ""
	u.Fragment = ""
	loc.ReplaceState(u.String())
	return value, true
}
