package market

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Poller keeps a merged quote list fresh by fetching from a Source on a
// fixed interval.
type Poller struct {
	source   Source
	interval time.Duration

	mu          sync.RWMutex
	stocks      []*Stock
	loading     bool
	subscribers []chan<- []*Stock
	isRunning   bool
	stopChan    chan struct{}
	stopped     chan struct{}
}

func NewPoller(source Source, interval time.Duration) *Poller {
	return &Poller{
		source:   source,
		interval: interval,
		loading:  true,
	}
}

// Start fetches immediately and then on every tick until ctx is done or
// Stop is called. Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = true
	p.stopChan = make(chan struct{})
	p.stopped = make(chan struct{})
	stopChan, stopped := p.stopChan, p.stopped
	p.mu.Unlock()

	go p.run(ctx, stopChan, stopped)
}

func (p *Poller) run(ctx context.Context, stopChan, stopped chan struct{}) {
	defer close(stopped)

	p.fetchAndBroadcast(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopChan:
			return
		case <-ticker.C:
			p.fetchAndBroadcast(ctx)
		}
	}
}

// Stop halts polling and waits for an in-flight fetch to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	close(p.stopChan)
	stopped := p.stopped
	p.mu.Unlock()

	<-stopped
}

// Loading is true until the first fetch has finished, successfully or not.
func (p *Poller) Loading() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loading
}

// Snapshot returns the current list. The slice is a copy; the *Stock values
// are shared and must not be modified.
func (p *Poller) Snapshot() []*Stock {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Stock, len(p.stocks))
	copy(out, p.stocks)
	return out
}

// Subscribe registers ch to receive the merged list after every successful
// fetch. Full channels miss updates.
func (p *Poller) Subscribe(ch chan<- []*Stock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, ch)
}

func (p *Poller) Unsubscribe(ch chan<- []*Stock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, sub := range p.subscribers {
		if sub == ch {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			break
		}
	}
}

func (p *Poller) fetchAndBroadcast(ctx context.Context) {
	fresh, err := p.source.FetchStocks(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Err(err).Msg("Error fetching stocks")
		}
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.stocks = Merge(p.stocks, fresh)
	p.loading = false
	snapshot := make([]*Stock, len(p.stocks))
	copy(snapshot, p.stocks)
	subscribers := make([]chan<- []*Stock, len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	for _, sub := range subscribers {
		select {
		case sub <- snapshot:
		default:
		}
	}
}
