package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"evidence-desk/internal/model"

	"github.com/gorilla/websocket"
)

// Options tune the connection manager. Zero values get safe defaults.
type Options struct {
	// ReconnectDelay is the fixed backoff before the single reconnect
	// attempt after an unexpected close.
	ReconnectDelay time.Duration
	// DialAttempts bounds how often one EnsureConnected call tries to
	// open the socket before giving up.
	DialAttempts int
	DialRetryDelay time.Duration
	// PingInterval spaces the textual keepalive pings the server
	// answers with "pong". <= 0 disables the keepalive.
	PingInterval time.Duration

	// OnChange fires after an inbound frame has been applied to its
	// slot, so a projector can re-render. Called outside the manager
	// lock.
	OnChange func(sessionID string)
	// OnDiagnostic receives conditions that have no owning slot, such
	// as frames for unknown sessions. Routable diagnostics go to the
	// owning slot's log instead.
	OnDiagnostic func(text string)
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 2 * time.Second
	}
	if o.DialAttempts <= 0 {
		o.DialAttempts = 3
	}
	if o.DialRetryDelay <= 0 {
		o.DialRetryDelay = time.Second
	}
	return o
}

// Manager owns one push connection per live session and routes every
// inbound frame to the task slot whose session id matches the frame,
// never to whichever panel happens to be active. The routing table is
// the only state the two slots share; it is appended to on session
// creation and pruned on reset, with all mutation and dispatch
// serialized under one lock.
type Manager struct {
	opts   Options
	dialer *websocket.Dialer

	mu    sync.Mutex
	table map[string]*model.TaskSlot
	conns map[string]*Conn
}

func NewManager(opts Options) *Manager {
	return &Manager{
		opts:   opts.withDefaults(),
		dialer: websocket.DefaultDialer,
		table:  make(map[string]*model.TaskSlot),
		conns:  make(map[string]*Conn),
	}
}

// Register binds a freshly issued session id to its owning slot. A
// session id belongs to exactly one slot for its whole life.
func (m *Manager) Register(sessionID string, slot *model.TaskSlot) error {
	if sessionID == "" || slot == nil {
		return fmt.Errorf("session id and slot are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.table[sessionID]; exists {
		return fmt.Errorf("session %s is already registered", sessionID)
	}
	m.table[sessionID] = slot
	return nil
}

// Unregister prunes the session from the routing table after closing
// its connection intentionally. Racing frames or close events for the
// session are dropped from then on.
func (m *Manager) Unregister(sessionID string) {
	m.CloseIntentionally(sessionID, "session released")
	m.mu.Lock()
	delete(m.table, sessionID)
	delete(m.conns, sessionID)
	m.mu.Unlock()
}

// Snapshot returns a deep copy of the slot owned by the session, taken
// under the dispatch lock so it is consistent with applied events.
func (m *Manager) Snapshot(sessionID string) (model.TaskSlot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.table[sessionID]
	if !ok {
		return model.TaskSlot{}, false
	}
	snap := *slot
	snap.Log = append([]model.LogEntry(nil), slot.Log...)
	snap.PreviewOrder = append([]string(nil), slot.PreviewOrder...)
	return snap, true
}

// Mutate runs fn on the owning slot under the dispatch lock, so local
// edits such as preview reordering serialize with incoming events.
func (m *Manager) Mutate(sessionID string, fn func(*model.TaskSlot) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.table[sessionID]
	if !ok {
		return fmt.Errorf("session %s is not registered", sessionID)
	}
	return fn(slot)
}

// CloseIntentionally flags and closes the session's connection. The
// flag is set before the close goes out so the close handler cannot
// schedule a reconnect.
func (m *Manager) CloseIntentionally(sessionID, reason string) {
	m.mu.Lock()
	conn := m.conns[sessionID]
	m.mu.Unlock()
	if conn != nil {
		conn.closeIntentionally(reason)
	}
}

// ConnState reports the channel state for a session, or "closed" when
// none exists.
func (m *Manager) ConnState(sessionID string) string {
	m.mu.Lock()
	conn := m.conns[sessionID]
	m.mu.Unlock()
	if conn == nil {
		return StateClosed
	}
	return conn.State()
}

// EnsureConnected opens the push channel for a registered session.
// Idempotent: an existing connecting or open channel is kept as-is.
func (m *Manager) EnsureConnected(ctx context.Context, sessionID, wsURL string) error {
	m.mu.Lock()
	if _, known := m.table[sessionID]; !known {
		m.mu.Unlock()
		return fmt.Errorf("session %s is not registered", sessionID)
	}
	if existing := m.conns[sessionID]; existing != nil && existing.isLive() {
		m.mu.Unlock()
		return nil
	}
	conn := newConn(sessionID)
	m.conns[sessionID] = conn
	m.mu.Unlock()

	var ws *websocket.Conn
	var err error
	for attempt := 1; attempt <= m.opts.DialAttempts; attempt++ {
		ws, _, err = m.dialer.DialContext(ctx, wsURL, nil)
		if err == nil {
			break
		}
		if attempt < m.opts.DialAttempts {
			select {
			case <-ctx.Done():
				conn.markClosed()
				return ctx.Err()
			case <-time.After(m.opts.DialRetryDelay):
			}
		}
	}
	if err != nil {
		conn.markClosed()
		m.logToSlot(sessionID, model.LogError, fmt.Sprintf("push channel open failed after %d attempts: %v", m.opts.DialAttempts, err))
		return fmt.Errorf("open push channel for %s: %w", sessionID, err)
	}

	conn.opened(ws)
	go m.readLoop(conn, ws, wsURL)
	if m.opts.PingInterval > 0 {
		go m.pingLoop(conn)
	}
	return nil
}

// Shutdown closes every connection intentionally, e.g. on tab/process
// teardown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	conns := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()
	for _, c := range conns {
		c.closeIntentionally("client shutting down")
	}
}

func (m *Manager) readLoop(conn *Conn, ws *websocket.Conn, wsURL string) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			m.handleClose(conn, wsURL, err)
			return
		}
		text := strings.TrimSpace(string(data))
		if text == "" || text == "pong" {
			continue
		}
		var ev model.StatusEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			m.logToSlot(conn.sessionID, model.LogWarning, fmt.Sprintf("malformed push frame dropped: %v", err))
			continue
		}
		if ev.SessionID == "" {
			m.logToSlot(conn.sessionID, model.LogWarning, "push frame without session id dropped")
			continue
		}
		m.dispatch(ev)
	}
}

// dispatch routes one frame strictly by its declared session id. A
// frame that matches no registered session is dropped with a
// diagnostic; guessing an owner would corrupt the other panel.
func (m *Manager) dispatch(ev model.StatusEvent) {
	m.mu.Lock()
	slot, known := m.table[ev.SessionID]
	if !known {
		m.mu.Unlock()
		m.diagnostic(fmt.Sprintf("frame for unknown session %s dropped (status %q)", ev.SessionID, ev.Status))
		return
	}
	model.Apply(slot, ev)
	var conn *Conn
	if model.IsTerminalStatus(slot.Status) {
		conn = m.conns[ev.SessionID]
	}
	m.mu.Unlock()

	if conn != nil {
		// Terminal outcome received: the channel has nothing more to say.
		conn.closeIntentionally("job finished")
	}
	m.notifyChange(ev.SessionID)
}

func (m *Manager) handleClose(conn *Conn, wsURL string, cause error) {
	conn.markClosed()
	if conn.wasIntentional() {
		return
	}

	sessionID := conn.sessionID
	m.logToSlot(sessionID, model.LogWarning, fmt.Sprintf("push channel closed unexpectedly: %v", cause))

	// Exactly one reconnect attempt after a fixed backoff. Skipped if
	// the slot was reset or finished in the meantime.
	time.AfterFunc(m.opts.ReconnectDelay, func() {
		m.mu.Lock()
		slot, known := m.table[sessionID]
		if !known || slot.Status == model.StatusIdle || model.IsTerminalStatus(slot.Status) {
			m.mu.Unlock()
			return
		}
		if existing := m.conns[sessionID]; existing != nil && existing.isLive() {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		m.logToSlot(sessionID, model.LogInfo, "reconnecting push channel")
		if err := m.EnsureConnected(context.Background(), sessionID, wsURL); err != nil {
			m.logToSlot(sessionID, model.LogError, fmt.Sprintf("reconnect failed: %v", err))
		}
	})
}

func (m *Manager) pingLoop(conn *Conn) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()
	for range ticker.C {
		if conn.State() != StateOpen {
			return
		}
		if err := conn.writeText("ping"); err != nil {
			return
		}
	}
}

// logToSlot appends a channel-level condition to the owning slot's log.
// Channel errors never propagate past here.
func (m *Manager) logToSlot(sessionID, level, text string) {
	m.mu.Lock()
	slot, known := m.table[sessionID]
	if known {
		slot.AppendLog(level, text)
	}
	m.mu.Unlock()
	if known {
		m.notifyChange(sessionID)
		return
	}
	m.diagnostic(fmt.Sprintf("session %s: %s", sessionID, text))
}

func (m *Manager) notifyChange(sessionID string) {
	if m.opts.OnChange != nil {
		m.opts.OnChange(sessionID)
	}
}

func (m *Manager) diagnostic(text string) {
	if m.opts.OnDiagnostic != nil {
		m.opts.OnDiagnostic(text)
	}
}
