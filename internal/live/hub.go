// Package live pushes re-rendered catalog fragments to connected browsers.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"catalog_service/internal/catalogsync"
	"catalog_service/internal/domain"
	"catalog_service/internal/render"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

// Hub owns every connected browser. Each client gets its own catalog view so
// switching the product filter in one tab does not affect another.
type Hub struct {
	store    catalogsync.Store
	renderer catalogsync.Renderer
	log      *logrus.Logger
	upgrader websocket.Upgrader

	register   chan *Client
	unregister chan *Client
	signedOut  chan string
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub(store catalogsync.Store, renderer catalogsync.Renderer, logger *logrus.Logger) *Hub {
	return &Hub{
		store:    store,
		renderer: renderer,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		signedOut:  make(chan string, 16),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run processes registrations until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	h.log.Info("Live: Hub started")
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debugf("Live: Client registered for uid=%s (%d connected)", c.identity.UID, n)

		case c := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[c]
			delete(h.clients, c)
			n := len(h.clients)
			h.mu.Unlock()
			if ok {
				c.shutdown()
				h.log.Debugf("Live: Client unregistered for uid=%s (%d connected)", c.identity.UID, n)
			}

		case sessionID := <-h.signedOut:
			h.mu.RLock()
			var affected []*Client
			for c := range h.clients {
				if c.identity.SessionID == sessionID {
					affected = append(affected, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range affected {
				if err := c.view.HandleAuthState(c.ctx, domain.AuthEvent{Identity: &c.identity, SignedIn: false}); err != nil {
					h.log.Warnf("Live: Failed to clear view after sign-out: %v", err)
				}
			}

		case <-ctx.Done():
			h.mu.Lock()
			clients := h.clients
			h.clients = make(map[*Client]struct{})
			h.mu.Unlock()
			for c := range clients {
				c.shutdown()
			}
			h.log.Infof("Live: Hub stopped, %d clients disconnected", len(clients))
			return nil
		}
	}
}

// HandleAuthEvent is registered with the auth provider. Sign-outs clear the
// views of that session.
func (h *Hub) HandleAuthEvent(event domain.AuthEvent) {
	if event.SignedIn || event.Identity == nil {
		return
	}
	select {
	case h.signedOut <- event.Identity.SessionID:
	default:
		h.log.Warnf("Live: Dropped sign-out notification for session %s", event.Identity.SessionID)
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the connection until it closes.
// The caller has already authenticated the browser as identity.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("Live: Websocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &Client{
		hub:      h,
		conn:     conn,
		identity: identity,
		send:     make(chan []byte, sendBuffer),
		closed:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.view = catalogsync.New(h.store, h.renderer, c, h.log)

	select {
	case h.register <- c:
	case <-h.done:
		c.shutdown()
		return
	}

	go c.writePump()

	if err := c.view.HandleAuthState(ctx, domain.AuthEvent{Identity: &c.identity, SignedIn: true}); err != nil {
		h.log.Errorf("Live: Failed to open catalog view: %v", err)
		c.leave()
		return
	}
	if category := r.URL.Query().Get("category"); category != "" {
		if err := c.view.SubscribeProductsByCategory(ctx, category); err != nil {
			h.log.Errorf("Live: Failed to filter by category %q: %v", category, err)
		}
	}
	go c.announceReady()

	c.readPump()
}

// Client is one websocket connection and the catalog view behind it.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity domain.Identity
	view     *catalogsync.Sync
	send     chan []byte
	closed   chan struct{}
	once     sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

type outbound struct {
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
	HTML   string `json:"html,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Text   string `json:"text,omitempty"`
}

type inbound struct {
	Category *string `json:"category"`
}

func (c *Client) PublishFragments(fragments []render.Fragment) {
	for _, f := range fragments {
		c.enqueue(outbound{Type: "fragment", Target: f.Target, HTML: string(f.HTML)})
	}
}

func (c *Client) PublishMessage(msg render.Message) {
	c.enqueue(outbound{Type: "message", Kind: msg.Kind, Text: msg.Text})
}

func (c *Client) enqueue(msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Errorf("Live: Failed to encode %s message: %v", msg.Type, err)
		return
	}
	select {
	case <-c.closed:
	case c.send <- data:
	default:
		c.hub.log.Warnf("Live: Send buffer full for uid=%s, dropping %s %s", c.identity.UID, msg.Type, msg.Target)
	}
}

func (c *Client) announceReady() {
	select {
	case <-c.view.Ready():
		c.enqueue(outbound{Type: "ready"})
	case <-c.closed:
	}
}

func (c *Client) readPump() {
	defer c.leave()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warnf("Live: Read error for uid=%s: %v", c.identity.UID, err)
			}
			return
		}
		if msg.Category == nil {
			continue
		}
		if err := c.view.SubscribeProductsByCategory(c.ctx, *msg.Category); err != nil {
			c.hub.log.Errorf("Live: Failed to switch category to %q: %v", *msg.Category, err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.leave()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.leave()
				return
			}
		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
		c.shutdown()
	case <-c.closed:
	}
}

func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.closed)
		c.cancel()
		c.view.Close()
		_ = c.conn.Close()
	})
}
