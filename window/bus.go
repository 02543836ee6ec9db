package window

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// AnyOrigin as a target origin delivers to every listener.
const AnyOrigin = "*"

const listenerBuffer = 8

// MessageTarget is what a popup sees as its opener.
type MessageTarget interface {
	PostMessage(msg Message, targetOrigin string)
}

// Listener hands out origin-scoped subscriptions. The returned func
// unsubscribes and is safe to call more than once.
type Listener interface {
	Listen(origin string) (<-chan Envelope, func())
}

type subscription struct {
	origin string
	ch     chan Envelope
}

// Bus is an in-process message channel between browsing contexts. A post is
// delivered only to listeners whose origin matches the target origin.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

var _ Listener = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscription)}
}

// Listen subscribes a context living at origin.
func (b *Bus) Listen(origin string) (<-chan Envelope, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := subscription{origin: origin, ch: make(chan Envelope, listenerBuffer)}
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Post delivers msg from senderOrigin to every listener at targetOrigin.
// Slow listeners drop messages rather than block the sender.
func (b *Bus) Post(senderOrigin string, msg Message, targetOrigin string) {
	env := Envelope{Origin: senderOrigin, Data: msg}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if targetOrigin != AnyOrigin && sub.origin != targetOrigin {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			log.Warn().Str("type", msg.Type).Str("origin", sub.origin).Msg("listener full, message dropped")
		}
	}
}

// Sender returns a MessageTarget that posts as senderOrigin.
func (b *Bus) Sender(senderOrigin string) MessageTarget {
	return sender{bus: b, origin: senderOrigin}
}

// Listeners returns the number of live subscriptions.
func (b *Bus) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

type sender struct {
	bus    *Bus
	origin string
}

func (s sender) PostMessage(msg Message, targetOrigin string) {
	s.bus.Post(s.origin, msg, targetOrigin)
}
