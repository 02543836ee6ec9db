package backendfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/fingreat/backend"
	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/jrsteele09/fingreat/market"
)

// SavedToken records one SaveAccessToken call.
type SavedToken struct {
	AccessToken string
	UserID      string
}

// FakeBackend is an in-memory stand-in for the FinGReaT backend.
type FakeBackend struct {
	mu        sync.Mutex
	saved     []SavedToken
	logouts   []string
	checks    []string
	chats     []backend.ChatRequest
	signedIn  map[string]bool
	stocks    []market.Stock
	saveDone  chan struct{}
	stockErrs int

	SaveErr   error
	CheckErr  error
	LogoutErr error
	StocksErr error
	ChatErr   error
	ChatReply string
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		signedIn: make(map[string]bool),
		saveDone: make(chan struct{}, 16),
	}
}

// SetSignedIn controls what IsSignedIn answers for userID.
func (f *FakeBackend) SetSignedIn(userID string, signedIn bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedIn[userID] = signedIn
}

// SetStocks replaces the list FetchStocks returns.
func (f *FakeBackend) SetStocks(stocks []market.Stock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stocks = append([]market.Stock(nil), stocks...)
}

// SetStocksErr makes FetchStocks fail until cleared with nil.
func (f *FakeBackend) SetStocksErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StocksErr = err
}

func (f *FakeBackend) SaveAccessToken(_ context.Context, accessToken, userID string) error {
	f.mu.Lock()
	f.saved = append(f.saved, SavedToken{AccessToken: accessToken, UserID: userID})
	err := f.SaveErr
	f.mu.Unlock()

	select {
	case f.saveDone <- struct{}{}:
	default:
	}
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrBackendSync, "[fake SaveAccessToken] %v", err)
	}
	return nil
}

func (f *FakeBackend) IsSignedIn(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, userID)
	if f.CheckErr != nil {
		return false, apperrors.Wrapf(apperrors.ErrSessionCheckFailed, "[fake IsSignedIn] %v", f.CheckErr)
	}
	return f.signedIn[userID], nil
}

func (f *FakeBackend) Logout(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts = append(f.logouts, userID)
	return f.LogoutErr
}

func (f *FakeBackend) FetchStocks(_ context.Context) ([]market.Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StocksErr != nil {
		f.stockErrs++
		return nil, f.StocksErr
	}
	return append([]market.Stock(nil), f.stocks...), nil
}

func (f *FakeBackend) Chat(_ context.Context, req backend.ChatRequest) (backend.ChatReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, req)
	if f.ChatErr != nil {
		return backend.ChatReply{}, f.ChatErr
	}
	return backend.ChatReply{Response: f.ChatReply, Agent: req.Agent}, nil
}

// SaveDone signals once per SaveAccessToken call.
func (f *FakeBackend) SaveDone() <-chan struct{} {
	return f.saveDone
}

func (f *FakeBackend) Saved() []SavedToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SavedToken(nil), f.saved...)
}

func (f *FakeBackend) Logouts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.logouts...)
}

func (f *FakeBackend) Checks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.checks...)
}

func (f *FakeBackend) Chats() []backend.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.ChatRequest(nil), f.chats...)
}

// StockErrors counts failed FetchStocks calls.
func (f *FakeBackend) StockErrors() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stockErrs
}
