package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/jrsteele09/fingreat/internal/config"
	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/jrsteele09/fingreat/window"
	"github.com/rs/zerolog/log"
)

// Events sent to browser tabs.
const (
	eventOpenPopup  = "open_popup"
	eventClosePopup = "close_popup"
	eventMessage    = "message"
	eventSession    = "session"
	eventStocks     = "stocks"
	eventCompany    = "company"
)

// Commands received from browser tabs.
const (
	commandPostMessage = "post_message"
	commandPopupClosed = "popup_closed"
)

const clientSendBuffer = 32

var errNoBrowser = apperrors.Wrapf(apperrors.ErrUpstream, "no browser tab connected to open the popup")

type relayEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type relayCommand struct {
	Type         string          `json:"type"`
	Data         json.RawMessage `json:"data"`
	TargetOrigin string          `json:"targetOrigin,omitempty"`
}

type popupData struct {
	URL      string `json:"url,omitempty"`
	Name     string `json:"name"`
	Features string `json:"features,omitempty"`
}

// Hub relays between the process and the browser tabs connected on /ws. It
// opens popups through those tabs and feeds their postMessage calls into
// the bus under the tab's handshake origin.
type Hub struct {
	bus     *window.Bus
	allowed config.AllowedOrigins

	mu      sync.RWMutex
	clients map[string]*relayClient
	popups  map[string]*relayPopup
}

var _ window.PopupOpener = (*Hub)(nil)

func NewHub(bus *window.Bus, allowed config.AllowedOrigins) *Hub {
	return &Hub{
		bus:     bus,
		allowed: allowed,
		clients: make(map[string]*relayClient),
		popups:  make(map[string]*relayPopup),
	}
}

type relayClient struct {
	id     string
	origin string
	conn   net.Conn
	send   chan []byte
}

func (c *relayClient) writeLoop() {
	defer c.conn.Close()
	for data := range c.send {
		if err := wsutil.WriteServerText(c.conn, data); err != nil {
			log.Debug().Err(err).Str("client_id", c.id).Msg("relay write failed")
			return
		}
	}
}

// ServeWS upgrades the request and serves the tab until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" && !h.allowed.IsAllowedOrigin(origin) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &relayClient{
		id:     uuid.NewString(),
		origin: origin,
		conn:   conn,
		send:   make(chan []byte, clientSendBuffer),
	}
	h.add(c)
	go c.writeLoop()
	defer h.remove(c)

	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		h.handleCommand(c, data)
	}
}

func (h *Hub) add(c *relayClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	log.Debug().Str("client_id", c.id).Str("origin", c.origin).Int("clients", len(h.clients)).Msg("relay client connected")
}

func (h *Hub) remove(c *relayClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	log.Debug().Str("client_id", c.id).Int("clients", len(h.clients)).Msg("relay client disconnected")
}

// Clients returns the number of connected tabs.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleCommand(c *relayClient, data []byte) {
	var cmd relayCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		log.Debug().Err(err).Str("client_id", c.id).Msg("malformed relay command")
		return
	}

	switch cmd.Type {
	case commandPostMessage:
		var msg window.Message
		if err := json.Unmarshal(cmd.Data, &msg); err != nil {
			log.Debug().Err(err).Str("client_id", c.id).Msg("malformed relayed message")
			return
		}
		target := cmd.TargetOrigin
		if target == "" {
			target = window.AnyOrigin
		}
		h.bus.Post(c.origin, msg, target)

	case commandPopupClosed:
		var p popupData
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return
		}
		h.mu.Lock()
		if popup, ok := h.popups[p.Name]; ok {
			popup.closed.Store(true)
			delete(h.popups, p.Name)
		}
		h.mu.Unlock()

	default:
		log.Debug().Str("type", cmd.Type).Msg("unknown relay command")
	}
}

// Broadcast sends an event to every connected tab. Tabs that fall behind
// miss events.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := json.Marshal(relayEvent{Type: eventType, Data: payload})
	if err != nil {
		log.Err(err).Str("type", eventType).Msg("failed to encode relay event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("client_id", c.id).Str("type", eventType).Msg("relay client slow, event dropped")
		}
	}
}

// Open asks the connected tabs to open rawURL as a named popup.
func (h *Hub) Open(_ context.Context, rawURL, name string, features window.Features) (window.Popup, error) {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return nil, errNoBrowser
	}
	p := &relayPopup{hub: h, name: name}
	h.popups[name] = p
	h.mu.Unlock()

	h.Broadcast(eventOpenPopup, popupData{URL: rawURL, Name: name, Features: features.String()})
	return p, nil
}

// Run forwards bus messages addressed to origin to the tabs until ctx ends.
func (h *Hub) Run(ctx context.Context, origin string) {
	msgs, unsubscribe := h.bus.Listen(origin)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-msgs:
			h.Broadcast(eventMessage, env)
		}
	}
}

// Close disconnects every tab.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

type relayPopup struct {
	hub    *Hub
	name   string
	closed atomic.Bool
}

func (p *relayPopup) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.hub.mu.Lock()
	if p.hub.popups[p.name] == p {
		delete(p.hub.popups, p.name)
	}
	p.hub.mu.Unlock()
	p.hub.Broadcast(eventClosePopup, popupData{Name: p.name})
	return nil
}

func (p *relayPopup) Closed() bool {
	return p.closed.Load()
}
