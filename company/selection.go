package company

import (
	"strings"
	"sync"
)

// Selection is the currently selected company symbol shared across the
// dashboard. An empty symbol means nothing is selected.
type Selection struct {
	mu        sync.RWMutex
	symbol    string
	nextID    int
	observers map[int]chan string
}

func NewSelection() *Selection {
	return &Selection{observers: make(map[int]chan string)}
}

// Normalize trims and upper-cases a symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (s *Selection) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.symbol
}

// Set stores the normalized symbol and reports whether it changed.
// Observers hear about changes only.
func (s *Selection) Set(symbol string) bool {
	symbol = Normalize(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()
	if symbol == s.symbol {
		return false
	}
	s.symbol = symbol
	for _, ch := range s.observers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- symbol:
		default:
		}
	}
	return true
}

// Subscribe returns a channel holding the latest selection after a change.
func (s *Selection) Subscribe() (<-chan string, func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ch := make(chan string, 1)
	s.observers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}
