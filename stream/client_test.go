package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JWambaugh/webull/types"
)

// wsServer is a minimal push-gateway double: it accepts the login frame,
// acks it, records every further frame and lets tests push frames back.
type wsServer struct {
	t      *testing.T
	srv    *httptest.Server
	logins chan frame
	frames chan frame
	conns  chan *websocket.Conn
	reject bool
}

func newWSServer(t *testing.T) *wsServer {
	ws := &wsServer{
		t:      t,
		logins: make(chan frame, 4),
		frames: make(chan frame, 64),
		conns:  make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{}
	ws.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var login frame
		if err := conn.ReadJSON(&login); err != nil {
			return
		}
		ws.logins <- login
		if ws.reject {
			_ = conn.WriteJSON(frame{Type: frameError, Code: "auth.failed", Msg: "token expired"})
			conn.Close()
			return
		}
		_ = conn.WriteJSON(frame{Type: frameConnected})
		ws.conns <- conn
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			ws.frames <- f
		}
	}))
	t.Cleanup(ws.srv.Close)
	return ws
}

func (ws *wsServer) url() string {
	return "ws" + strings.TrimPrefix(ws.srv.URL, "http")
}

func (ws *wsServer) waitLogin(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-ws.logins:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a login")
		return frame{}
	}
}

func (ws *wsServer) waitFrame(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-ws.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return frame{}
	}
}

func (ws *wsServer) expectNoFrame(t *testing.T) {
	t.Helper()
	select {
	case f := <-ws.frames:
		t.Fatalf("unexpected frame %q", f.Type)
	case <-time.After(150 * time.Millisecond):
	}
}

func (ws *wsServer) push(t *testing.T, topic Topic, payload string) {
	t.Helper()
	select {
	case conn := <-ws.conns:
		require.NoError(t, conn.WriteJSON(frame{Type: framePush, Topic: &topic, Data: json.RawMessage(payload)}))
		ws.conns <- conn
	case <-time.After(2 * time.Second):
		t.Fatal("no server connection available")
	}
}

func newTestStream(t *testing.T, ws *wsServer, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{URL: ws.url(), AccessToken: "access-1", DeviceID: "device-1"}
	for _, m := range mutate {
		m(&cfg)
	}
	c := NewClient(cfg)
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

func TestConnectHandshake(t *testing.T) {
	ws := newWSServer(t)

	var mu sync.Mutex
	var states []State
	c := newTestStream(t, ws, func(cfg *Config) {
		cfg.OnStateChange = func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		}
	})

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())

	login := <-ws.logins
	assert.Equal(t, frameLogin, login.Type)
	assert.Equal(t, "access-1", login.AccessToken)
	assert.Equal(t, "device-1", login.DeviceID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Connecting, Connected}, states)
}

func TestConnectAuthRejected(t *testing.T) {
	ws := newWSServer(t)
	ws.reject = true
	c := newTestStream(t, ws)

	err := c.Connect(context.Background())
	var se *types.StreamError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Error(), "auth.failed")
	assert.Equal(t, Disconnected, c.State())
}

func TestQueuedSubscriptionsFlushOnConnect(t *testing.T) {
	ws := newWSServer(t)
	c := newTestStream(t, ws)

	// Registered before any connection exists.
	require.NoError(t, c.SubscribeTicker(913256135, TopicTickerQuote, TopicTickerTrade))
	require.NoError(t, c.SubscribeOrders("11122233"))

	require.NoError(t, c.Connect(context.Background()))

	f := ws.waitFrame(t)
	assert.Equal(t, frameSubscribe, f.Type)
	require.Len(t, f.Topics, 3)

	keys := make(map[string]bool, len(f.Topics))
	for _, topic := range f.Topics {
		keys[topic.Key()] = true
	}
	assert.True(t, keys["ticker:913256135:102"])
	assert.True(t, keys["ticker:913256135:103"])
	assert.True(t, keys["orders:11122233"])
}

func TestSubscribeIsRefcounted(t *testing.T) {
	ws := newWSServer(t)
	c := newTestStream(t, ws)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.SubscribeTicker(1, TopicTickerQuote))
	f := ws.waitFrame(t)
	assert.Equal(t, frameSubscribe, f.Type)

	// Second registration of the same topic stays local.
	require.NoError(t, c.SubscribeTicker(1, TopicTickerQuote))
	ws.expectNoFrame(t)

	// First release only drops the refcount.
	require.NoError(t, c.UnsubscribeTicker(1, TopicTickerQuote))
	ws.expectNoFrame(t)

	// Last release closes the wire subscription.
	require.NoError(t, c.UnsubscribeTicker(1, TopicTickerQuote))
	f = ws.waitFrame(t)
	assert.Equal(t, frameUnsubscribe, f.Type)
	require.Len(t, f.Topics, 1)
	assert.Equal(t, "ticker:1:102", f.Topics[0].Key())
}

func TestUnsubscribeUnknownTopicIsNoop(t *testing.T) {
	ws := newWSServer(t)
	c := newTestStream(t, ws)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.UnsubscribeTicker(99, TopicTickerQuote))
	ws.expectNoFrame(t)
}

func TestPushDispatchOrder(t *testing.T) {
	ws := newWSServer(t)
	c := newTestStream(t, ws)

	var mu sync.Mutex
	var calls []string
	record := func(name string) Handler {
		return func(topic Topic, payload json.RawMessage) {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
		}
	}
	c.OnTicker(TopicTickerQuote, record("quote-1"))
	c.OnTicker(TopicTickerQuote, record("quote-2"))
	c.OnTicker(TopicTickerTrade, record("trade"))
	c.OnAny(record("any"))

	done := make(chan json.RawMessage, 1)
	c.OnAny(func(topic Topic, payload json.RawMessage) { done <- payload })

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.SubscribeTicker(1, TopicTickerQuote))
	ws.waitFrame(t) // subscribe ack consumed server side

	ws.push(t, Topic{TickerID: 1, Type: TopicTickerQuote}, `{"close":"155.5"}`)

	select {
	case payload := <-done:
		assert.JSONEq(t, `{"close":"155.5"}`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("push frame never dispatched")
	}

	mu.Lock()
	defer mu.Unlock()
	// Targeted handlers fire in registration order, wildcards after them;
	// the trade-class handler stays silent.
	assert.Equal(t, []string{"quote-1", "quote-2", "any"}, calls)
}

func TestOrdersPushDispatch(t *testing.T) {
	ws := newWSServer(t)
	c := newTestStream(t, ws)

	got := make(chan Topic, 1)
	c.OnOrders(func(topic Topic, payload json.RawMessage) { got <- topic })

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.SubscribeOrders("11122233"))
	ws.waitFrame(t)

	ws.push(t, Topic{AccountID: "11122233"}, `{"orderId":1,"status":"Filled"}`)

	select {
	case topic := <-got:
		assert.True(t, topic.IsOrders())
		assert.Equal(t, "11122233", topic.AccountID)
	case <-time.After(2 * time.Second):
		t.Fatal("order push never dispatched")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	ws := newWSServer(t)
	c := newTestStream(t, ws)
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.SubscribeTicker(1, TopicTickerQuote))
	ws.waitFrame(t)

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())
	assert.Equal(t, Disconnected, c.State())

	// Subscriptions do not survive a disconnect.
	c.subsMu.Lock()
	assert.Empty(t, c.subs)
	c.subsMu.Unlock()
}

func TestDisconnectBeforeConnect(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1/mqtt"})
	require.NoError(t, c.Disconnect())
	assert.Error(t, c.Connect(context.Background()), "a closed client cannot reconnect")
}

func TestSubscribeWhileDisconnectedKeepsTopics(t *testing.T) {
	ws := newWSServer(t)
	c := newTestStream(t, ws)

	require.NoError(t, c.SubscribeTicker(7))
	c.subsMu.Lock()
	n := len(c.subs)
	c.subsMu.Unlock()
	assert.Equal(t, len(BasicTickerTopics()), n)
}

func TestReconnectReplaysSubscriptionsAndDropsStaleFrames(t *testing.T) {
	ws := newWSServer(t)
	c := newTestStream(t, ws, func(cfg *Config) {
		cfg.Reconnect = true
		cfg.ReconnectDelay = 10 * time.Millisecond
	})

	// The handler parks on release so a second frame stays queued while
	// the connection dies underneath it.
	delivered := make(chan string, 4)
	release := make(chan struct{})
	c.OnTicker(TopicTickerQuote, func(_ Topic, payload json.RawMessage) {
		delivered <- string(payload)
		<-release
	})

	require.NoError(t, c.SubscribeTicker(1, TopicTickerQuote))
	require.NoError(t, c.Connect(context.Background()))
	ws.waitLogin(t)
	f := ws.waitFrame(t)
	require.Equal(t, frameSubscribe, f.Type)

	ws.push(t, Topic{TickerID: 1, Type: TopicTickerQuote}, `{"seq":1}`)
	select {
	case p := <-delivered:
		assert.JSONEq(t, `{"seq":1}`, p)
	case <-time.After(2 * time.Second):
		t.Fatal("first push never dispatched")
	}

	// Queued behind the parked handler; it must die with its connection.
	ws.push(t, Topic{TickerID: 1, Type: TopicTickerQuote}, `{"seq":2}`)
	time.Sleep(50 * time.Millisecond)

	// Server-side drop.
	conn := <-ws.conns
	conn.Close()

	// The client logs in again and replays the subscription on its own.
	login := ws.waitLogin(t)
	assert.Equal(t, "access-1", login.AccessToken)
	f = ws.waitFrame(t)
	require.Equal(t, frameSubscribe, f.Type)
	require.Len(t, f.Topics, 1)
	assert.Equal(t, "ticker:1:102", f.Topics[0].Key())

	close(release)

	ws.push(t, Topic{TickerID: 1, Type: TopicTickerQuote}, `{"seq":3}`)
	select {
	case p := <-delivered:
		assert.JSONEq(t, `{"seq":3}`, p, "frame read before the reconnect must never be delivered")
	case <-time.After(2 * time.Second):
		t.Fatal("post-reconnect push never dispatched")
	}
	assert.True(t, c.IsConnected())
}

func TestSubscribeDuringHandshakeSendsEachTopicOnce(t *testing.T) {
	ws := newWSServer(t)
	c := newTestStream(t, ws)

	// Registrations racing the handshake flush either ride the replay
	// snapshot or send their own frame; a topic must never do both.
	const n = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := int64(i + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			assert.NoError(t, c.SubscribeTicker(id, TopicTickerQuote))
		}()
	}
	connErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		connErr <- c.Connect(context.Background())
	}()
	close(start)
	wg.Wait()
	require.NoError(t, <-connErr)

	counts := make(map[string]int)
collect:
	for {
		select {
		case f := <-ws.frames:
			require.Equal(t, frameSubscribe, f.Type)
			for _, topic := range f.Topics {
				counts[topic.Key()]++
			}
		case <-time.After(300 * time.Millisecond):
			break collect
		}
	}

	require.Len(t, counts, n)
	for key, got := range counts {
		assert.Equal(t, 1, got, "topic %s subscribed more than once", key)
	}
}

func TestDisconnectDuringConnectLeavesClientClosed(t *testing.T) {
	ws := newWSServer(t)
	c := newTestStream(t, ws)

	start := make(chan struct{})
	done := make(chan struct{})
	go func() {
		<-start
		_ = c.Connect(context.Background())
		close(done)
	}()
	close(start)
	require.NoError(t, c.Disconnect())
	<-done

	// Whatever the interleaving, a closed client never reports Connected
	// and never accepts another Connect.
	assert.Equal(t, Disconnected, c.State())
	assert.Error(t, c.Connect(context.Background()))
}
