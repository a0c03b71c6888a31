// Package stream provides the push update channel for live per-symbol data.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	errs "stockdeck/internal/errors"
	"stockdeck/internal/models"
)

// State represents the push channel connection state.
type State string

const (
	StateClosed     State = "closed"
	StateConnecting State = "connecting"
	StateSubscribed State = "subscribed"
)

// Config holds configuration for the push channel.
type Config struct {
	URL            string
	Interval       int // requested update interval in seconds
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	HandshakeWait  time.Duration
	WriteWait      time.Duration
}

// Channel is a websocket client that streams incremental updates for
// exactly the symbols it is told to watch. Any change to the symbol set
// tears down the previous subscription and establishes a new one; the
// subscription list of an open connection is never mutated in place.
type Channel struct {
	config Config
	logger zerolog.Logger

	// Handlers
	onUpdates    func([]models.Update)
	onError      func(error)
	onConnect    func()
	onDisconnect func()

	// State
	conn    *websocket.Conn
	state   State
	symbols []string

	// Reconnection
	reconnecting bool

	mu      sync.RWMutex
	writeMu sync.Mutex // Protects websocket writes
	done    chan struct{}
}

// subscribeMessage is the client → server subscription frame.
type subscribeMessage struct {
	Subscribe *symbolSet `json:"subscribe,omitempty"`
}

type unsubscribeMessage struct {
	Unsubscribe *symbolSet `json:"unsubscribe,omitempty"`
}

type symbolSet struct {
	Symbols  []string `json:"symbols"`
	Interval int      `json:"interval,omitempty"`
}

// pushMessage is the server → client batch frame. Optional fields are
// pointers so omitted values are distinguishable from zeros.
type pushMessage struct {
	Timestamp string      `json:"timestamp"`
	Stocks    []pushStock `json:"stocks"`
}

type pushStock struct {
	Symbol        string   `json:"symbol"`
	Price         *float64 `json:"price"`
	Volume        *int64   `json:"volume"`
	ChangePercent *float64 `json:"change_percent"`
	Timestamp     string   `json:"timestamp"`
}

// NewChannel creates a push channel client.
func NewChannel(cfg Config, logger zerolog.Logger) *Channel {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.HandshakeWait == 0 {
		cfg.HandshakeWait = 10 * time.Second
	}
	if cfg.WriteWait == 0 {
		cfg.WriteWait = 5 * time.Second
	}

	return &Channel{
		config: cfg,
		logger: logger,
		state:  StateClosed,
		done:   make(chan struct{}),
	}
}

// OnUpdates sets the handler for inbound update batches.
func (c *Channel) OnUpdates(handler func([]models.Update)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdates = handler
}

// OnError sets the error handler.
func (c *Channel) OnError(handler func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// OnConnect sets the connect handler.
func (c *Channel) OnConnect(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = handler
}

// OnDisconnect sets the disconnect handler.
func (c *Channel) OnDisconnect(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = handler
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connect dials the push endpoint and starts the read loop. It subscribes
// to the current symbol set once the connection is up.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeWait}
	conn, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		return fmt.Errorf("dialing %s: %w", c.config.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	symbols := append([]string(nil), c.symbols...)
	onConnect := c.onConnect
	c.mu.Unlock()

	if len(symbols) > 0 {
		if err := c.sendSubscribe(symbols); err != nil {
			conn.Close()
			c.mu.Lock()
			c.state = StateClosed
			c.conn = nil
			c.mu.Unlock()
			return err
		}
	}

	c.mu.Lock()
	c.state = StateSubscribed
	c.mu.Unlock()

	if onConnect != nil {
		go onConnect()
	}

	go c.readLoop(ctx, conn)

	return nil
}

// SetSymbols replaces the watched symbol set. The previous subscription is
// torn down before the new one is established so no stale subscription
// overlaps the new one. Safe to call in any state; a disconnected channel
// picks the set up on the next (re)connect.
func (c *Channel) SetSymbols(symbols []string) error {
	c.mu.Lock()
	previous := c.symbols
	c.symbols = append([]string(nil), symbols...)
	connected := c.state == StateSubscribed && c.conn != nil
	c.mu.Unlock()

	if !connected {
		return nil
	}

	if len(previous) > 0 {
		if err := c.sendUnsubscribe(previous); err != nil {
			return err
		}
	}
	if len(symbols) > 0 {
		return c.sendSubscribe(symbols)
	}
	return nil
}

// Close shuts the channel down. The symbol set is retained for a later
// Connect.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateClosed

	return nil
}

func (c *Channel) sendSubscribe(symbols []string) error {
	msg := subscribeMessage{Subscribe: &symbolSet{
		Symbols:  symbols,
		Interval: c.config.Interval,
	}}
	return c.writeJSON(msg)
}

func (c *Channel) sendUnsubscribe(symbols []string) error {
	msg := unsubscribeMessage{Unsubscribe: &symbolSet{Symbols: symbols}}
	return c.writeJSON(msg)
}

func (c *Channel) writeJSON(v interface{}) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return errs.NewStreamError(string(StateClosed), "write on closed channel", errs.ErrStreamClosed)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
	return conn.WriteJSON(v)
}

// readLoop consumes server frames until the connection drops, then hands
// off to the reconnect loop.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var msg pushMessage
		if err := conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			wasSubscribed := c.state == StateSubscribed
			c.state = StateClosed
			if c.conn == conn {
				c.conn = nil
			}
			onDisconnect := c.onDisconnect
			c.mu.Unlock()

			select {
			case <-c.done:
				return
			case <-ctx.Done():
				return
			default:
			}

			if wasSubscribed && onDisconnect != nil {
				go onDisconnect()
			}

			go c.reconnect(ctx)
			return
		}

		updates := convertBatch(msg)
		if len(updates) == 0 {
			continue
		}

		c.mu.RLock()
		handler := c.onUpdates
		c.mu.RUnlock()

		if handler != nil {
			handler(updates)
		}
	}
}

// reconnect re-dials with capped exponential backoff. While the channel is
// down, the snapshot fetcher remains the sole authoritative source, so a
// failed reconnect degrades latency, not correctness.
func (c *Channel) reconnect(ctx context.Context) {
	c.mu.Lock()
	if c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		delay := c.config.BaseDelay << uint(attempt)
		if delay > c.config.MaxDelay {
			delay = c.config.MaxDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-time.After(delay):
		}

		c.mu.RLock()
		state := c.state
		c.mu.RUnlock()
		if state != StateClosed {
			return
		}

		if err := c.Connect(ctx); err == nil {
			c.logger.Info().Int("attempt", attempt+1).Msg("Push channel reconnected")
			return
		}
	}

	c.mu.RLock()
	onError := c.onError
	c.mu.RUnlock()
	if onError != nil {
		onError(errs.NewStreamError(string(StateClosed), "max reconnection attempts reached", errs.ErrConnectionFailed))
	}
}

// convertBatch maps a server frame to partial updates, preserving which
// fields each entry actually carried.
func convertBatch(msg pushMessage) []models.Update {
	batchTS := parseTimestamp(msg.Timestamp)

	updates := make([]models.Update, 0, len(msg.Stocks))
	for _, s := range msg.Stocks {
		if s.Symbol == "" {
			continue
		}

		u := models.Update{Symbol: s.Symbol, Timestamp: batchTS}
		if ts := parseTimestamp(s.Timestamp); !ts.IsZero() {
			u.Timestamp = ts
		}
		if s.Price != nil {
			u.Price = *s.Price
			u.HasPrice = true
		}
		if s.Volume != nil {
			u.Volume = *s.Volume
			u.HasVolume = true
		}
		if s.ChangePercent != nil {
			u.ChangePercent = *s.ChangePercent
			u.HasChange = true
		}
		updates = append(updates, u)
	}
	return updates
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999Z"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}
