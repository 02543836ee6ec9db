package storefake

import (
	"sync"

	"github.com/jrsteele09/fingreat/kvstore"
)

// FakeStore is an in-memory kvstore.Store that counts writes and can be
// told to fail.
type FakeStore struct {
	mu      sync.Mutex
	values  map[string]string
	sets    int
	removes int

	SetErr    error
	GetErr    error
	RemoveErr error
}

var _ kvstore.Store = (*FakeStore)(nil)

func NewFakeStore() *FakeStore {
	return &FakeStore{values: make(map[string]string)}
}

func (f *FakeStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return "", false, f.GetErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *FakeStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetErr != nil {
		return f.SetErr
	}
	f.sets++
	f.values[key] = value
	return nil
}

func (f *FakeStore) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	f.removes++
	delete(f.values, key)
	return nil
}

// Sets returns the number of successful Set calls.
func (f *FakeStore) Sets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

// Removes returns the number of successful Remove calls.
func (f *FakeStore) Removes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removes
}

// Seed writes a value without counting it.
func (f *FakeStore) Seed(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}
