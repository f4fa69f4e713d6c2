package chatclient

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPollTimeout must exceed the server's 30s wait window so a
	// legitimate heartbeat is never mistaken for a stalled connection.
	DefaultPollTimeout = 35 * time.Second

	baseBackoff          = 5 * time.Second
	maxBackoff           = 60 * time.Second
	maxConsecutiveErrors = 5
)

// Callbacks are delivered from the poll loop's goroutine. A teardown clears
// them, so none fire for a connection that no longer exists.
type Callbacks struct {
	// OnMessages receives each deduplicated inbound batch, ascending by
	// timestamp.
	OnMessages func(eventID string, msgs []Message)

	// OnConnectionLost fires once when the circuit opens. The connection
	// is inactive at that point; only a fresh Subscribe restarts it.
	OnConnectionLost func(eventID string, err error)
}

type connection struct {
	eventID  string
	ctx      context.Context
	cancel   context.CancelFunc
	cb       Callbacks
	seen     map[string]struct{}
	cursor   int64
	errCount int
	active   bool
	polling  bool

	// abortPoll cancels the in-flight long-poll request only, leaving the
	// connection itself alive. Set while a request is outstanding.
	abortPoll context.CancelFunc
}

// Manager owns at most one active chat connection per process and runs its
// long-poll loop: cursor advancement, dedup, backoff, circuit breaking and
// unread tracking. Safe for concurrent use.
type Manager struct {
	api    *Client
	kv     KVStore
	log    *zap.Logger
	userID string

	pollTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	conn   *connection
	paused bool
}

type ManagerOption func(*Manager)

func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithPollTimeout overrides the per-request long-poll timeout.
func WithPollTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.pollTimeout = d }
}

func NewManager(api *Client, kv KVStore, userID string, opts ...ManagerOption) *Manager {
	m := &Manager{
		api:         api,
		kv:          kv,
		log:         zap.NewNop(),
		userID:      userID,
		pollTimeout: DefaultPollTimeout,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe opens the connection for eventID, tearing down any existing
// connection to a different event first. Subscribing again to the same
// event while its loop is polling only refreshes the callbacks; it never
// spawns a second loop.
func (m *Manager) Subscribe(eventID string, cb Callbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil && m.conn.eventID == eventID {
		m.conn.cb = cb
		if m.conn.polling {
			return
		}
		// Connection exists but its loop is gone (paused, or circuit
		// open). A fresh Subscribe revives it.
		m.conn.active = true
		m.conn.errCount = 0
		if !m.paused {
			m.conn.polling = true
			go m.pollLoop(m.conn)
		}
		return
	}

	if m.conn != nil {
		m.teardownLocked()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{
		eventID: eventID,
		ctx:     ctx,
		cancel:  cancel,
		cb:      cb,
		seen:    make(map[string]struct{}),
		active:  true,
	}

	// Resume from the persisted cursor so a restart doesn't re-deliver the
	// whole room.
	if cursor, err := m.kv.Get(ctx, cursorKey(eventID, m.userID)); err == nil {
		c.cursor = cursor
	}

	m.conn = c
	m.log.Debug("subscribed", zap.String("event_id", eventID))

	if !m.paused {
		c.polling = true
		go m.pollLoop(c)
	}
}

// Unsubscribe tears down the connection for eventID, aborting any in-flight
// poll. A no-op for other events.
func (m *Manager) Unsubscribe(eventID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.conn.eventID != eventID {
		return
	}
	m.teardownLocked()
}

// teardownLocked aborts the connection and clears its callbacks so nothing
// from an orphaned 30-second request reaches a torn-down context. Caller
// must hold m.mu.
func (m *Manager) teardownLocked() {
	c := m.conn
	c.cancel()
	c.active = false
	c.cb = Callbacks{}
	m.conn = nil
	m.log.Debug("connection torn down", zap.String("event_id", c.eventID))
}

// Pause stops polling without destroying connection state, e.g. when the
// app is backgrounded. The in-flight request is aborted immediately.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = true
	if m.conn != nil && m.conn.abortPoll != nil {
		m.conn.abortPoll()
	}
}

// Resume restarts the loop for a connection that is still active but not
// currently polling.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = false
	if m.conn != nil && m.conn.active && !m.conn.polling {
		m.conn.polling = true
		go m.pollLoop(m.conn)
	}
}

// Active reports whether a live connection exists for eventID.
func (m *Manager) Active(eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && m.conn.eventID == eventID && m.conn.active
}

// Send posts a message and registers the stored copy as already delivered,
// so the locally echoed message is not re-delivered when it comes back
// through the next poll.
func (m *Manager) Send(ctx context.Context, eventID, eventTitle, userName, text string) (Message, error) {
	stored, err := m.api.Send(ctx, SendRequest{
		EventID:    eventID,
		EventTitle: eventTitle,
		UserID:     m.userID,
		UserName:   userName,
		Message:    MessageBody{Text: text},
	})
	if err != nil {
		return Message{}, err
	}

	m.mu.Lock()
	if m.conn != nil && m.conn.eventID == eventID {
		m.conn.seen[stored.ID] = struct{}{}
	}
	m.mu.Unlock()

	return stored, nil
}

// Backfill returns the full room contents for the initial render.
func (m *Manager) Backfill(ctx context.Context, eventID string) ([]Message, error) {
	return m.api.Backfill(ctx, eventID)
}

// Unread returns the persisted unread count for the room.
func (m *Manager) Unread(ctx context.Context, eventID string) (int64, error) {
	return m.kv.Get(ctx, unreadKey(eventID, m.userID))
}

// MarkRead zeroes the unread counter, e.g. when the user opens the room.
func (m *Manager) MarkRead(ctx context.Context, eventID string) error {
	return m.kv.Set(ctx, unreadKey(eventID, m.userID), 0)
}

// pollLoop clears c.polling under m.mu in the same critical section as each
// decision to stop, so Subscribe and Resume never observe a loop that has
// already decided to exit.
func (m *Manager) pollLoop(c *connection) {
	for {
		if c.ctx.Err() != nil {
			m.stopPolling(c)
			return
		}

		m.mu.Lock()
		if m.paused {
			c.polling = false
			m.mu.Unlock()
			return
		}
		cursor := c.cursor
		m.mu.Unlock()

		res, err := m.poll(c, cursor)
		if err != nil {
			if c.ctx.Err() != nil {
				m.stopPolling(c)
				return // torn down while in flight
			}
			if isAbort(err) {
				// Client-side timeout or a pause abort. Not a failure: no
				// error is counted and the next poll reuses the cursor.
				continue
			}
			if dead := m.recordError(c, err); dead {
				return
			}
			continue
		}

		m.mu.Lock()
		c.errCount = 0
		m.mu.Unlock()

		if res.Type == ResultHeartbeat {
			continue
		}
		m.deliver(c, res.Messages)
	}
}

func (m *Manager) stopPolling(c *connection) {
	m.mu.Lock()
	c.polling = false
	m.mu.Unlock()
}

func (m *Manager) poll(c *connection, cursor int64) (*PollResult, error) {
	reqCtx, cancel := context.WithTimeout(c.ctx, m.pollTimeout)
	m.mu.Lock()
	c.abortPoll = cancel
	m.mu.Unlock()

	res, err := m.api.Poll(reqCtx, c.eventID, m.userID, cursor)

	m.mu.Lock()
	c.abortPoll = nil
	m.mu.Unlock()
	cancel()

	return res, err
}

// recordError applies backoff and reports whether the circuit opened.
func (m *Manager) recordError(c *connection, err error) bool {
	m.mu.Lock()
	c.errCount++
	n := c.errCount
	m.mu.Unlock()

	m.log.Warn("poll failed",
		zap.String("event_id", c.eventID),
		zap.Int("consecutive_errors", n),
		zap.Error(err))

	if sleepErr := m.sleep(c.ctx, backoffDelay(n)); sleepErr != nil {
		m.stopPolling(c)
		return true // torn down while backing off
	}

	if n < maxConsecutiveErrors {
		return false
	}

	// Circuit open: stop entirely and surface terminal failure once. The
	// polling flag must be cleared before the callback runs so a
	// Subscribe issued from inside OnConnectionLost takes the revival
	// path instead of the refresh-only one.
	m.mu.Lock()
	c.active = false
	c.polling = false
	cb := c.cb
	m.mu.Unlock()

	m.log.Warn("connection dead after consecutive failures",
		zap.String("event_id", c.eventID))

	if cb.OnConnectionLost != nil {
		cb.OnConnectionLost(c.eventID, ErrCircuitOpen)
	}
	return true
}

func (m *Manager) deliver(c *connection, batch []Message) {
	if len(batch) == 0 {
		return
	}

	m.mu.Lock()
	var fresh []Message
	var fromOthers int64
	maxTS := c.cursor - 1
	for _, msg := range batch {
		if msg.Timestamp > maxTS {
			maxTS = msg.Timestamp
		}
		if _, dup := c.seen[msg.ID]; dup {
			continue
		}
		c.seen[msg.ID] = struct{}{}
		fresh = append(fresh, msg)
		if msg.UserID != m.userID {
			fromOthers++
		}
	}
	// Exclusive cursor: the next poll asks for timestamps strictly greater
	// than the newest one in this batch.
	c.cursor = maxTS + 1
	cursor := c.cursor
	cb := c.cb
	torndown := c.ctx.Err() != nil
	m.mu.Unlock()

	if torndown {
		return
	}

	if err := m.kv.Set(context.Background(), cursorKey(c.eventID, m.userID), cursor); err != nil {
		m.log.Warn("failed to persist cursor", zap.Error(err))
	}

	// One batched increment per delivery, not one per message.
	if fromOthers > 0 {
		if _, err := m.kv.IncrBy(context.Background(), unreadKey(c.eventID, m.userID), fromOthers); err != nil {
			m.log.Warn("failed to bump unread counter", zap.Error(err))
		}
	}

	if len(fresh) > 0 && cb.OnMessages != nil {
		cb.OnMessages(c.eventID, fresh)
	}
}

func backoffDelay(n int) time.Duration {
	d := baseBackoff << (n - 1)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
