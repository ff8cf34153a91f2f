package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/JWambaugh/webull/pkg/logger"
	"github.com/JWambaugh/webull/types"
)

// Config configures the push-data client.
type Config struct {
	URL         string
	AccessToken string
	DeviceID    string

	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	Reconnect      bool
	ReconnectDelay time.Duration // initial backoff, doubled per attempt
	MaxReconnect   int

	// QueueSize bounds the dispatch queue between the socket reader and
	// the handler goroutine. When full, the oldest frame is dropped.
	QueueSize int

	// OnStateChange, when set, observes every connection state change.
	OnStateChange func(State)
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = time.Second
	}
	if c.MaxReconnect == 0 {
		c.MaxReconnect = 10
	}
	if c.QueueSize == 0 {
		c.QueueSize = 256
	}
}

// maxBackoff caps the doubling reconnect delay.
const maxBackoff = time.Minute

// pushItem carries a pushed frame from the socket reader to the
// dispatcher, tagged with the connection generation that read it.
type pushItem struct {
	gen     uint64
	topic   Topic
	payload json.RawMessage
}

// Client maintains one persistent connection to the push-data service and
// fans pushed frames out to registered handlers.
type Client struct {
	cfg Config
	log *logrus.Entry

	connMu sync.Mutex
	conn   *websocket.Conn
	gen    atomic.Uint64 // bumped per established connection

	stateMu sync.RWMutex
	state   State

	handlersMu     sync.RWMutex
	tickerHandlers map[int][]Handler
	orderHandlers  []Handler
	anyHandlers    []Handler

	subsMu sync.Mutex
	subs   map[string]*subEntry
	live   bool // wire is accepting subscribe frames; guarded by subsMu

	frames chan pushItem
	done   chan struct{}
	closed atomic.Bool

	reconnectMu  sync.Mutex
	reconnecting bool

	wg sync.WaitGroup
}

// NewClient creates a client. Connect must be called before frames flow.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	c := &Client{
		cfg:            cfg,
		log:            logger.WithField("component", "stream"),
		tickerHandlers: make(map[int][]Handler),
		subs:           make(map[string]*subEntry),
		frames:         make(chan pushItem, cfg.QueueSize),
		done:           make(chan struct{}),
	}
	c.wg.Add(1)
	go c.dispatchLoop()
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the handshake has completed.
func (c *Client) IsConnected() bool { return c.State() == Connected }

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	changed := c.state != s
	c.state = s
	c.stateMu.Unlock()
	if changed && c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}

// Connect dials the push endpoint, performs the credential handshake and
// starts the read and ping loops. Subscriptions registered while
// disconnected are flushed once the handshake completes.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return &types.StreamError{Op: "connect", Err: errors.New("client closed")}
	}
	c.setState(Connecting)

	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.setState(Disconnected)
		return &types.StreamError{Op: "dial", Err: err}
	}

	// Credential handshake: first frame out carries the session identity,
	// the server answers with a connected ack before any data flows.
	login := frame{Type: frameLogin, AccessToken: c.cfg.AccessToken, DeviceID: c.cfg.DeviceID}
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteJSON(login); err != nil {
		conn.Close()
		c.setState(Disconnected)
		return &types.StreamError{Op: "handshake", Err: err}
	}

	if err := c.awaitAck(conn); err != nil {
		conn.Close()
		c.setState(Disconnected)
		return err
	}

	c.connMu.Lock()
	if c.closed.Load() {
		c.connMu.Unlock()
		conn.Close()
		c.setState(Disconnected)
		return &types.StreamError{Op: "connect", Err: errors.New("client closed")}
	}
	c.conn = conn
	gen := c.gen.Add(1)
	c.connMu.Unlock()

	c.drainQueue()
	c.setState(Connected)

	c.wg.Add(2)
	go c.readLoop(conn, gen)
	go c.pingLoop(conn, gen)

	c.resubscribe()

	// A Disconnect that raced the handshake has already closed its view of
	// the connection; make sure ours does not survive it.
	if c.closed.Load() {
		conn.Close()
		c.setLive(false)
		c.setState(Disconnected)
		return &types.StreamError{Op: "connect", Err: errors.New("client closed")}
	}
	c.log.Info("stream connected")
	return nil
}

func (c *Client) setLive(v bool) {
	c.subsMu.Lock()
	c.live = v
	c.subsMu.Unlock()
}

// awaitAck reads until the handshake ack or an error frame arrives. An
// auth failure is terminal; the caller must not reconnect on it.
func (c *Client) awaitAck(conn *websocket.Conn) error {
	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return &types.StreamError{Op: "handshake", Err: err}
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		switch f.Type {
		case frameConnected:
			return nil
		case frameError:
			return &types.StreamError{
				Op:  "handshake",
				Err: errors.Errorf("server rejected connection: %s %s", f.Code, f.Msg),
			}
		}
	}
}

// drainQueue discards frames queued by a previous connection so a
// reconnect never replays stale data.
func (c *Client) drainQueue() {
	for {
		select {
		case <-c.frames:
		default:
			return
		}
	}
}

// Disconnect closes the connection and clears local subscription state.
// Safe to call repeatedly and on a never-connected client.
func (c *Client) Disconnect() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.setState(Disconnected)

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.gen.Add(1) // invalidate in-flight frames
	c.connMu.Unlock()
	if conn != nil {
		conn.Close()
	}

	c.subsMu.Lock()
	c.subs = make(map[string]*subEntry)
	c.live = false
	c.subsMu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		c.log.Warn("timed out waiting for stream goroutines")
	}
	return nil
}

// sendFrame writes one frame on the current connection.
func (c *Client) sendFrame(f frame) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil || !c.IsConnected() {
		return types.ErrNotConnected
	}
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteJSON(f); err != nil {
		return &types.StreamError{Op: "send", Err: err}
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() || c.gen.Load() != gen {
				return
			}
			c.setLive(false)
			c.setState(Disconnected)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithField("error", err).Warn("stream read failed")
			}
			c.handleDisconnect()
			return
		}

		trimmed := strings.TrimSpace(string(data))
		if trimmed == "" {
			continue
		}
		// Text heartbeats show up on some gateway paths.
		if trimmed == "PING" {
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			_ = conn.WriteMessage(websocket.TextMessage, []byte("PONG"))
			continue
		}
		if trimmed == "PONG" {
			continue
		}

		var f frame
		if err := json.Unmarshal([]byte(trimmed), &f); err != nil {
			c.log.WithField("error", err).Debug("unparseable stream frame")
			continue
		}

		switch f.Type {
		case frameSubscribe, frameUnsubscribe:
			// Acks; nothing to deliver.
		case frameError:
			c.log.WithFields(logrus.Fields{"code": f.Code, "msg": f.Msg}).Warn("stream server error")
		case framePush:
			if f.Topic == nil {
				continue
			}
			c.enqueue(pushItem{gen: gen, topic: *f.Topic, payload: f.Data})
		}
	}
}

// enqueue adds a frame to the dispatch queue, dropping the oldest queued
// frame when full so the socket reader never blocks on a slow handler.
func (c *Client) enqueue(it pushItem) {
	select {
	case c.frames <- it:
		return
	default:
	}
	select {
	case <-c.frames:
		c.log.Warn("stream dispatch queue full, dropped oldest frame")
	default:
	}
	select {
	case c.frames <- it:
	default:
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, gen uint64) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.gen.Load() != gen {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatchLoop is the single delivery goroutine: per-topic ordering holds
// because nothing else calls handlers.
func (c *Client) dispatchLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case it := <-c.frames:
			if it.gen != c.gen.Load() {
				// Read by a connection that has since died.
				continue
			}
			c.dispatch(it.topic, it.payload)
		}
	}
}

func (c *Client) dispatch(topic Topic, payload json.RawMessage) {
	c.handlersMu.RLock()
	var targeted []Handler
	if topic.IsOrders() {
		targeted = append(targeted, c.orderHandlers...)
	} else {
		targeted = append(targeted, c.tickerHandlers[topic.Type]...)
	}
	wildcard := append([]Handler(nil), c.anyHandlers...)
	c.handlersMu.RUnlock()

	for _, h := range targeted {
		h(topic, payload)
	}
	for _, h := range wildcard {
		h(topic, payload)
	}
}

// handleDisconnect starts the backoff reconnect loop, once.
func (c *Client) handleDisconnect() {
	if !c.cfg.Reconnect || c.closed.Load() {
		return
	}

	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	go func() {
		defer func() {
			c.reconnectMu.Lock()
			c.reconnecting = false
			c.reconnectMu.Unlock()
		}()

		delay := c.cfg.ReconnectDelay
		for attempt := 1; attempt <= c.cfg.MaxReconnect; attempt++ {
			select {
			case <-c.done:
				return
			case <-time.After(delay):
			}

			c.log.WithField("attempt", attempt).Info("stream reconnecting")
			if err := c.Connect(context.Background()); err == nil {
				return
			}

			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
		}
		c.log.Error("stream reconnect attempts exhausted")
	}()
}

// OnTicker registers a handler for one ticker feed class. Handlers run in
// registration order.
func (c *Client) OnTicker(topicType int, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.tickerHandlers[topicType] = append(c.tickerHandlers[topicType], h)
}

// OnOrders registers a handler for the account order push feed.
func (c *Client) OnOrders(h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.orderHandlers = append(c.orderHandlers, h)
}

// OnAny registers a handler that sees every pushed frame, after the
// targeted handlers.
func (c *Client) OnAny(h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.anyHandlers = append(c.anyHandlers, h)
}
