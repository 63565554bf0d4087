// Package notify implements the realtime notification bus over
// websocket connections.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"git.uuxo.net/uuxo/fileshare-server/internal/metrics"
)

var log = logrus.New()

// SetLogger replaces the package-level logger.
func SetLogger(l *logrus.Logger) { log = l }

const (
	writeTimeout        = 10 * time.Second
	defaultReapInterval = 30 * time.Second
)

// Event notification discriminators.
const (
	EventFileUploaded         = "file_uploaded"
	EventFileDeleted          = "file_deleted"
	EventFileShared           = "file_shared"
	EventCompressionCompleted = "compression_completed"
)

// Event is the payload of one notification. Its "type" key carries the
// event discriminator.
type Event map[string]interface{}

// SessionResolver binds a token to an owner identity.
type SessionResolver interface {
	Resolve(token string) (string, error)
}

// client wraps one websocket connection with a write lock, since the
// reader goroutine and broadcasts write concurrently.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// registration is the live binding of an authenticated connection to an
// owner identity. The bus holds the connection by reference only; its
// lifetime is governed by the transport.
type registration struct {
	client      *client
	ownerID     string
	connectedAt time.Time
}

// Bus is the registry of live realtime connections, keyed by token.
type Bus struct {
	mu            sync.Mutex
	registrations map[string]*registration

	sessions     SessionResolver
	reapInterval time.Duration
	upgrader     websocket.Upgrader
	done         chan struct{}
	stopOnce     sync.Once
}

// NewBus creates a notification bus bound to the given session resolver.
// A non-positive reapInterval falls back to the 30s default.
func NewBus(sessions SessionResolver, reapInterval time.Duration) *Bus {
	if reapInterval <= 0 {
		reapInterval = defaultReapInterval
	}
	return &Bus{
		registrations: make(map[string]*registration),
		sessions:      sessions,
		reapInterval:  reapInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

// Start launches the background reaper.
func (b *Bus) Start() {
	go b.reapRoutine()
	log.Infof("Notification bus started (reap interval %s)", b.reapInterval)
}

// Stop terminates the reaper and closes all registered connections.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.done) })

	b.mu.Lock()
	defer b.mu.Unlock()
	for token, reg := range b.registrations {
		reg.client.conn.Close()
		delete(b.registrations, token)
	}
	metrics.RealtimeConnections.Set(0)
}

// inbound is the shape of client-to-server messages.
type inbound struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// HandleConnection upgrades the request and runs the connection's state
// machine until the transport closes. A connection is anonymous until it
// authenticates; only then does it receive notifications.
func (b *Bus) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn}
	defer func() {
		conn.Close()
		b.removeByClient(c)
	}()

	if err := c.send(map[string]interface{}{
		"type":    "welcome",
		"message": "connected",
	}); err != nil {
		return
	}

	// Inbound messages are processed one at a time in arrival order.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		b.handleMessage(c, data)
	}
}

func (b *Bus) handleMessage(c *client, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		_ = c.send(map[string]interface{}{
			"type":    "error",
			"message": "malformed message",
		})
		return
	}

	switch msg.Type {
	case "auth":
		ownerID, err := b.sessions.Resolve(msg.Token)
		if err != nil {
			// The connection stays open so the client can retry with a
			// corrected token.
			_ = c.send(map[string]interface{}{"type": "auth_error"})
			return
		}
		b.register(msg.Token, c, ownerID)
		_ = c.send(map[string]interface{}{
			"type":   "auth_success",
			"userId": ownerID,
		})

	case "ping":
		_ = c.send(map[string]interface{}{
			"type":      "pong",
			"timestamp": time.Now().UnixMilli(),
		})

	default:
		_ = c.send(map[string]interface{}{
			"type":    "error",
			"message": "unknown message type",
		})
	}
}

func (b *Bus) register(token string, c *client, ownerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registrations[token] = &registration{
		client:      c,
		ownerID:     ownerID,
		connectedAt: time.Now(),
	}
	metrics.RealtimeConnections.Set(float64(len(b.registrations)))
	log.Infof("Realtime connection authenticated for %s (%d registered)", ownerID, len(b.registrations))
}

// removeByClient drops the registration holding this connection. Closure
// is reported by connection handle, not by token.
func (b *Bus) removeByClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token, reg := range b.registrations {
		if reg.client == c {
			delete(b.registrations, token)
			log.Debugf("Realtime connection for %s removed", reg.ownerID)
		}
	}
	metrics.RealtimeConnections.Set(float64(len(b.registrations)))
}

// Broadcast sends the event to every registered connection. A failed
// send removes that registration without aborting delivery to the rest.
func (b *Bus) Broadcast(event Event) {
	b.deliver(event, func(*registration) bool { return true })
}

// Notify restricts delivery to registrations bound to the given owner.
// Zero matching registrations is a silent no-op.
func (b *Bus) Notify(ownerID string, event Event) {
	b.deliver(event, func(reg *registration) bool { return reg.ownerID == ownerID })
}

func (b *Bus) deliver(event Event, match func(*registration) bool) {
	payload := map[string]interface{}{
		"type":      "notification",
		"timestamp": time.Now().UnixMilli(),
	}
	// The event's own "type" discriminator overrides the envelope tag.
	for k, v := range event {
		payload[k] = v
	}

	b.mu.Lock()
	targets := make(map[string]*registration, len(b.registrations))
	for token, reg := range b.registrations {
		if match(reg) {
			targets[token] = reg
		}
	}
	b.mu.Unlock()

	for token, reg := range targets {
		if err := reg.client.send(payload); err != nil {
			log.Warnf("Notification delivery to %s failed, dropping connection: %v", reg.ownerID, err)
			reg.client.conn.Close()
			b.remove(token)
			continue
		}
		metrics.NotificationsSentTotal.Inc()
	}
}

func (b *Bus) remove(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.registrations, token)
	metrics.RealtimeConnections.Set(float64(len(b.registrations)))
}

// Count returns the number of registered connections.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.registrations)
}

// reapRoutine periodically purges registrations whose transport is dead.
// This is independent of session expiry: a registration can be reaped
// for transport reasons while its token is still valid.
func (b *Bus) reapRoutine() {
	ticker := time.NewTicker(b.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.reapDead()
		case <-b.done:
			return
		}
	}
}

func (b *Bus) reapDead() {
	b.mu.Lock()
	snapshot := make(map[string]*registration, len(b.registrations))
	for token, reg := range b.registrations {
		snapshot[token] = reg
	}
	b.mu.Unlock()

	for token, reg := range snapshot {
		if err := reg.client.ping(); err != nil {
			log.Infof("Reaping dead realtime connection for %s", reg.ownerID)
			reg.client.conn.Close()
			b.remove(token)
			metrics.ConnectionsReapedTotal.Inc()
		}
	}
}
