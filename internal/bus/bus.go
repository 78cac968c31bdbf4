// Package bus publishes loop events over a websocket so an external panel
// can watch phase transitions and transcripts live. Entirely optional.
package bus

import (
	"encoding/json"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one JSON frame on the wire.
type Event struct {
	From      string    `json:"from"`
	Kind      string    `json:"kind"` // "phase", "transcript", "reply"
	Phase     string    `json:"phase,omitempty"`
	Content   string    `json:"content,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	At        time.Time `json:"at"`
}

// Bus is a write-only websocket client with one reconnect attempt per
// failed publish.
type Bus struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn
}

func Dial(wsURL string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	log.Info("connected to event bus", "url", wsURL)
	return &Bus{url: wsURL, conn: conn}, nil
}

// Publish sends one event. A write failure triggers a single redial; a
// second failure is logged and dropped — the loop never blocks on the bus.
func (b *Bus) Publish(ev Event) {
	ev.From = "voxchat"
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Warn("bus marshal failed", "err", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		if err := b.conn.WriteMessage(websocket.TextMessage, data); err == nil {
			return
		}
		b.conn.Close()
		b.conn = nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(b.url, nil)
	if err != nil {
		log.Warn("bus reconnect failed, dropping event", "kind", ev.Kind, "err", err)
		return
	}
	b.conn = conn

	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn("bus publish failed, dropping event", "kind", ev.Kind, "err", err)
	}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}
