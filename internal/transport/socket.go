package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tank-tracker/internal/config"
	"tank-tracker/internal/constants"
	"tank-tracker/internal/dto"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// Frame types for the realtime channel.
const (
	msgTypeJoin    = "JOIN"
	msgTypeFetch   = "FETCH"
	msgTypePush    = "PUSH"
	msgTypeClear   = "CLEAR"
	msgTypeDelete  = "DELETE_BATTLE"
	msgTypeImport  = "IMPORT"
	msgTypeAck     = "ACK"
	msgTypeChanged = "CHANGED"
)

// frame is one realtime channel message. Requests carry a correlation id
// that the server echoes back on the matching ACK.
type frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Key     string          `json:"key,omitempty"`
	ArenaID string          `json:"arenaId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Success bool            `json:"success,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SocketClient is the realtime channel: a websocket with request/ack
// semantics and server-initiated change notifications.
type SocketClient struct {
	url        string
	accessKey  string
	ackTimeout time.Duration
	logger     zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	pending   map[string]chan frame

	changes chan ChangeNotice
}

func NewSocketClient(cfg *config.Config, key AccessKey, logger zerolog.Logger) *SocketClient {
	return &SocketClient{
		url:        cfg.SocketURL,
		accessKey:  string(key),
		ackTimeout: cfg.SocketAckTimeout,
		logger:     logger,
		pending:    make(map[string]chan frame),
		changes:    make(chan ChangeNotice, 16),
	}
}

func (c *SocketClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *SocketClient) Changes() <-chan ChangeNotice {
	return c.changes
}

// Run maintains the connection until ctx is cancelled. After each drop it
// redials with fixed backoff a bounded number of times; when the budget is
// exhausted it gives up silently and the REST fallback carries everything
// from then on.
func (c *SocketClient) Run(ctx context.Context) {
	for {
		b := retry.WithMaxRetries(constants.SocketReconnectAttempts,
			retry.NewConstant(constants.SocketReconnectBackoff))
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			if err := c.connect(ctx); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("realtime channel unavailable, using rest fallback only")
			}
			return
		}

		c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Info().Msg("realtime channel disconnected, reconnecting")
	}
}

func (c *SocketClient) connect(ctx context.Context) error {
	if c.accessKey == "" {
		return ErrNoAccessKey
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	conn.SetWriteDeadline(time.Now().Add(constants.SocketWriteWait))
	if err := conn.WriteJSON(frame{Type: msgTypeJoin, Key: c.accessKey}); err != nil {
		conn.Close()
		return fmt.Errorf("join: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logger.Info().Str("url", c.url).Msg("realtime channel connected")
	return nil
}

func (c *SocketClient) session(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	done := make(chan struct{})
	defer close(done)
	defer c.teardown(conn)

	go c.pingLoop(ctx, conn, done)

	conn.SetReadLimit(constants.SocketMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(constants.SocketPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(constants.SocketPongWait))
		return nil
	})

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() == nil {
				c.logger.Debug().Err(err).Msg("realtime read failed")
			}
			return
		}
		c.dispatch(f)
	}
}

func (c *SocketClient) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(constants.SocketPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(constants.SocketWriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-ctx.Done():
			conn.Close()
			return
		case <-done:
			return
		}
	}
}

func (c *SocketClient) dispatch(f frame) {
	switch f.Type {
	case msgTypeAck:
		c.mu.Lock()
		ch := c.pending[f.ID]
		delete(c.pending, f.ID)
		c.mu.Unlock()
		if ch != nil {
			ch <- f
		}
	case msgTypeChanged:
		// Multi-tenant filtering: only our own key is interesting.
		if f.Key != c.accessKey {
			return
		}
		select {
		case c.changes <- ChangeNotice{Key: f.Key}:
		default:
			// A pull is already queued; coalescing is fine.
		}
	default:
		c.logger.Debug().Str("type", f.Type).Msg("ignoring unexpected frame")
	}
}

func (c *SocketClient) teardown(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
}

// request sends a frame and waits for its ack, bounded by the ack timeout.
// A request that outlives the wait may still complete server-side; callers
// falling back to REST tolerate the resulting duplicate because updates are
// merges.
func (c *SocketClient) request(ctx context.Context, f frame) (*frame, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := c.conn
	f.ID = uuid.NewString()
	f.Key = c.accessKey
	ch := make(chan frame, 1)
	c.pending[f.ID] = ch
	conn.SetWriteDeadline(time.Now().Add(constants.SocketWriteWait))
	err := conn.WriteJSON(f)
	c.mu.Unlock()

	if err != nil {
		c.dropPending(f.ID)
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case ack := <-ch:
		if !ack.Success {
			return nil, fmt.Errorf("backend rejected request: %s", ack.Error)
		}
		return &ack, nil
	case <-time.After(c.ackTimeout):
		c.dropPending(f.ID)
		return nil, ErrAckTimeout
	case <-ctx.Done():
		c.dropPending(f.ID)
		return nil, ctx.Err()
	}
}

func (c *SocketClient) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *SocketClient) FetchStats(ctx context.Context) (*dto.Snapshot, error) {
	ack, err := c.request(ctx, frame{Type: msgTypeFetch})
	if err != nil {
		return nil, err
	}
	var snap dto.Snapshot
	if len(ack.Payload) > 0 {
		if err := json.Unmarshal(ack.Payload, &snap); err != nil {
			return nil, fmt.Errorf("decode fetch payload: %w", err)
		}
	}
	snap.Success = true
	return &snap, nil
}

func (c *SocketClient) PushStats(ctx context.Context, payload []byte) error {
	_, err := c.request(ctx, frame{Type: msgTypePush, Payload: payload})
	return err
}

func (c *SocketClient) ClearStats(ctx context.Context) error {
	_, err := c.request(ctx, frame{Type: msgTypeClear})
	return err
}

func (c *SocketClient) DeleteBattle(ctx context.Context, arenaID string) error {
	_, err := c.request(ctx, frame{Type: msgTypeDelete, ArenaID: arenaID})
	return err
}

func (c *SocketClient) ImportStats(ctx context.Context, payload []byte) error {
	_, err := c.request(ctx, frame{Type: msgTypeImport, Payload: payload})
	return err
}
