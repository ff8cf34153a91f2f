package client

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JWambaugh/webull/pkg/cache"
	"github.com/JWambaugh/webull/pkg/logger"
	"github.com/JWambaugh/webull/pkg/ratelimit"
	"github.com/JWambaugh/webull/types"
)

// Options configures a Client.
type Options struct {
	// RegionID is the broker region (6 = US). Zero means US.
	RegionID int
	// DeviceID pins the device identity. Empty means load from
	// DeviceIDFile, or generate a fresh one.
	DeviceID string
	// DeviceIDFile persists the generated device id across runs.
	DeviceIDFile string
	// DeviceName is reported to the broker during login.
	DeviceName string
	// Endpoints overrides the production host map. Nil means production.
	Endpoints *Endpoints
	// Limits overrides the default per-group rate limiters.
	Limits *ratelimit.Manager
}

const defaultRegionID = 6

// core carries the state shared by the live and paper backends: endpoint
// map, transport, session and logger.
type core struct {
	endpoints  Endpoints
	tr         *transport
	session    *sessionState
	tickers    *cache.InMemoryCache[string, int64] // symbol -> ticker id
	log        *logrus.Entry
	deviceName string
	username   string // retained after login for MFA re-requests
}

func newCore(opts Options, label string) (*core, error) {
	did := opts.DeviceID
	if did == "" {
		var err error
		did, err = loadOrCreateDeviceID(opts.DeviceIDFile)
		if err != nil {
			return nil, err
		}
	}

	region := opts.RegionID
	if region == 0 {
		region = defaultRegionID
	}

	eps := DefaultEndpoints()
	if opts.Endpoints != nil {
		eps = *opts.Endpoints
	}

	limits := opts.Limits
	if limits == nil {
		limits = ratelimit.NewManager()
	}

	deviceName := opts.DeviceName
	if deviceName == "default" || deviceName == "" {
		deviceName = "default_string"
	}

	c := &core{
		endpoints:  eps,
		tr:         newTransport(limits),
		session:    &sessionState{},
		tickers:    cache.New[string, int64](time.Hour),
		log:        logger.WithField("client", label),
		deviceName: deviceName,
	}
	c.session.update(func(s *Session) {
		s.DeviceID = did
		s.RegionID = region
	})
	return c, nil
}

// authHeaders builds the per-request header set from a session snapshot.
func (c *core) authHeaders(s Session) map[string]string {
	h := map[string]string{
		"did":   s.DeviceID,
		"lzone": zoneVar,
	}
	if s.AccessToken != "" {
		h["access_token"] = s.AccessToken
	}
	return h
}

// tradeHeaders adds the trade-token pair required by order mutation
// endpoints.
func (c *core) tradeHeaders(s Session) map[string]string {
	h := c.authHeaders(s)
	if s.TradeToken != "" {
		h["t_token"] = s.TradeToken
		h["t_time"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	return h
}

// authedSession returns a snapshot, refreshing the access token first when
// it is at or past expiry.
func (c *core) authedSession(ctx context.Context) (Session, error) {
	s := c.session.snapshot()
	if !s.LoggedIn() {
		return Session{}, types.ErrNotLoggedIn
	}
	if s.needsRefresh(time.Now()) {
		if err := c.refresh(ctx); err != nil {
			return Session{}, err
		}
		s = c.session.snapshot()
	}
	return s, nil
}

// Client is the unified trading client. Live and paper clients expose the
// same surface; IsPaper is the only discriminator callers need.
type Client struct {
	core    *core
	backend backend
	paper   bool
}

// NewLive creates a client for a real brokerage account.
func NewLive(opts Options) (*Client, error) {
	c, err := newCore(opts, "live")
	if err != nil {
		return nil, err
	}
	return &Client{core: c, backend: &liveBackend{core: c}}, nil
}

// NewPaper creates a client for a simulated-trading account.
func NewPaper(opts Options) (*Client, error) {
	c, err := newCore(opts, "paper")
	if err != nil {
		return nil, err
	}
	return &Client{core: c, backend: &paperBackend{core: c}, paper: true}, nil
}

// IsPaper reports whether this client trades against the simulated account.
func (c *Client) IsPaper() bool { return c.paper }

// DeviceID returns the device identity used for every request.
func (c *Client) DeviceID() string { return c.core.session.snapshot().DeviceID }

// AccountID returns the resolved trading account id, empty before login.
func (c *Client) AccountID() string { return c.core.session.snapshot().AccountID }

// Session returns a snapshot of the current session state.
func (c *Client) Session() Session { return c.core.session.snapshot() }

// Login authenticates and resolves the trading account id for this
// client's mode. A live login never elevates to a trade token by itself.
func (c *Client) Login(ctx context.Context, creds Credentials) (*types.LoginResponse, error) {
	resp, err := c.core.login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := c.backend.resolveAccount(ctx); err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestMFA asks the broker to send a verification code to the account's
// email or phone.
func (c *Client) RequestMFA(ctx context.Context, username string) error {
	return c.core.requestMFA(ctx, username)
}

// CheckMFA verifies a received code ahead of a login retry.
func (c *Client) CheckMFA(ctx context.Context, username, code string) error {
	return c.core.checkMFA(ctx, username, code)
}

// Refresh exchanges the refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context) error {
	return c.core.refresh(ctx)
}

// ElevateTradeToken obtains the trade token live orders require. On a
// paper client this is a no-op success.
func (c *Client) ElevateTradeToken(ctx context.Context, pin string) error {
	if c.paper {
		return nil
	}
	return c.core.elevateTradeToken(ctx, pin)
}

// Logout invalidates the server session and clears local state. Local
// state is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	return c.core.logout(ctx)
}

// GetAccount fetches the account snapshot for this client's mode.
func (c *Client) GetAccount(ctx context.Context) (*types.AccountDetail, error) {
	return c.backend.getAccount(ctx)
}

// GetPositions fetches open positions.
func (c *Client) GetPositions(ctx context.Context) ([]types.Position, error) {
	return c.backend.getPositions(ctx)
}

// PlaceOrder validates, canonicalizes and submits an order, returning the
// broker's order id. Live clients must hold a trade token. A builder that
// carries only a symbol gets its ticker id resolved first.
func (c *Client) PlaceOrder(ctx context.Context, b *OrderBuilder) (string, error) {
	if sym := b.symbolForResolve(); sym != "" {
		id, err := c.core.resolveTickerID(ctx, sym)
		if err != nil {
			return "", err
		}
		b.TickerID(id)
	}
	req, err := b.Build()
	if err != nil {
		return "", err
	}
	return c.PlaceOrderRequest(ctx, req)
}

// PlaceOrderRequest submits a pre-built canonical order.
func (c *Client) PlaceOrderRequest(ctx context.Context, req *types.PlaceOrderRequest) (string, error) {
	finalizeOrder(req)
	return c.backend.placeOrder(ctx, req)
}

// CancelOrder requests cancellation. Success means the broker accepted the
// cancel request, not that the order is already cancelled.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.backend.cancelOrder(ctx, orderID)
}

// ModifyOrder replaces the working order's parameters with the given
// canonical request.
func (c *Client) ModifyOrder(ctx context.Context, orderID string, b *OrderBuilder) error {
	req, err := b.Build()
	if err != nil {
		return err
	}
	finalizeOrder(req)
	return c.backend.modifyOrder(ctx, orderID, req)
}

// ListOrders returns the currently open orders.
func (c *Client) ListOrders(ctx context.Context) ([]types.Order, error) {
	return c.backend.listOrders(ctx)
}

// ListHistoryOrders returns up to count historical orders with the given
// status filter ("All" for everything).
func (c *Client) ListHistoryOrders(ctx context.Context, status string, count int) ([]types.Order, error) {
	return c.backend.listHistoryOrders(ctx, status, count)
}

// GetQuotes fetches a realtime quote snapshot.
func (c *Client) GetQuotes(ctx context.Context, tickerID int64) (*types.Quote, error) {
	return c.core.getQuotes(ctx, tickerID)
}

// GetBars fetches up to count OHLCV candles at the given interval, ending
// at endTime (zero means now).
func (c *Client) GetBars(ctx context.Context, tickerID int64, interval string, count int, endTime time.Time) ([]types.Bar, error) {
	return c.core.getBars(ctx, tickerID, interval, count, endTime)
}

// FindTicker searches instruments by symbol or name.
func (c *Client) FindTicker(ctx context.Context, keyword string) ([]types.Ticker, error) {
	return c.core.findTicker(ctx, keyword)
}

// ResolveTickerID returns the ticker id for an exact symbol match.
func (c *Client) ResolveTickerID(ctx context.Context, symbol string) (int64, error) {
	return c.core.resolveTickerID(ctx, symbol)
}

// GetNews fetches news items for an instrument, paged by lastID.
func (c *Client) GetNews(ctx context.Context, tickerID int64, lastID int64, count int) ([]types.News, error) {
	return c.core.getNews(ctx, tickerID, lastID, count)
}

// IsTradable reports whether this account may trade the instrument.
func (c *Client) IsTradable(ctx context.Context, tickerID int64) (bool, error) {
	return c.core.isTradable(ctx, tickerID)
}
