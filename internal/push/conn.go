package push

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	StateConnecting = "connecting"
	StateOpen       = "open"
	StateClosing    = "closing"
	StateClosed     = "closed"
)

// Conn is the push channel for exactly one session. The session id is
// fixed at dial time; a new session always gets a new Conn.
type Conn struct {
	sessionID string

	mu                  sync.Mutex
	ws                  *websocket.Conn
	state               string
	closedIntentionally bool
}

func newConn(sessionID string) *Conn {
	return &Conn{sessionID: sessionID, state: StateConnecting}
}

func (c *Conn) SessionID() string { return c.sessionID }

func (c *Conn) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) opened(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.state = StateOpen
	c.mu.Unlock()
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
}

func (c *Conn) isLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnecting || c.state == StateOpen
}

// wasIntentional reports whether the close was requested client-side.
// The flag is set before the close frame goes out, so a racing close
// event can never be mistaken for an unexpected disconnect.
func (c *Conn) wasIntentional() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedIntentionally
}

// closeIntentionally flags the connection, sends a normal-closure frame
// and tears the socket down. Safe to call in any state.
func (c *Conn) closeIntentionally(reason string) {
	c.mu.Lock()
	c.closedIntentionally = true
	if c.state == StateConnecting || c.state == StateOpen {
		c.state = StateClosing
	}
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		c.markClosed()
		return
	}
	deadline := time.Now().Add(2 * time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = ws.Close()
	c.markClosed()
}

func (c *Conn) writeText(payload string) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return nil
	}
	return ws.WriteMessage(websocket.TextMessage, []byte(payload))
}
