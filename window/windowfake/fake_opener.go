package windowfake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/fingreat/window"
)

// OpenCall records one Open invocation.
type OpenCall struct {
	URL      string
	Name     string
	Features window.Features
	Popup    *FakePopup
}

// FakeOpener records opened popups instead of opening anything.
type FakeOpener struct {
	mu    sync.Mutex
	calls []OpenCall

	Err error
}

var _ window.PopupOpener = (*FakeOpener)(nil)

func NewFakeOpener() *FakeOpener {
	return &FakeOpener{}
}

func (f *FakeOpener) Open(_ context.Context, rawURL, name string, features window.Features) (window.Popup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	p := &FakePopup{}
	f.calls = append(f.calls, OpenCall{URL: rawURL, Name: name, Features: features, Popup: p})
	return p, nil
}

// Calls returns a copy of the recorded opens.
func (f *FakeOpener) Calls() []OpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]OpenCall(nil), f.calls...)
}

// Last returns the most recent open, or nil.
func (f *FakeOpener) Last() *OpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	c := f.calls[len(f.calls)-1]
	return &c
}

// FakePopup counts Close calls.
type FakePopup struct {
	closes atomic.Int32
}

func (p *FakePopup) Close() error {
	p.closes.Add(1)
	return nil
}

func (p *FakePopup) Closed() bool {
	return p.closes.Load() > 0
}

// Closes returns how many times Close was called.
func (p *FakePopup) Closes() int {
	return int(p.closes.Load())
}
