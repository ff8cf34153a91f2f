package client

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is an immutable snapshot of the authentication state. Dispatch
// paths read a snapshot once and build headers from it, so a concurrent
// refresh cannot produce a half-updated header set.
type Session struct {
	DeviceID     string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	TradeToken   string
	TradeTime    time.Time
	AccountID    string
	RegionID     int
	UUID         string
}

// LoggedIn reports whether an access token is held.
func (s Session) LoggedIn() bool { return s.AccessToken != "" }

// HasTradeToken reports whether the session is elevated for live trading.
func (s Session) HasTradeToken() bool { return s.TradeToken != "" }

// refreshSkew is subtracted from the token expiry so refresh happens
// before the broker actually rejects the token.
const refreshSkew = 60 * time.Second

// needsRefresh reports whether the access token is past (or within skew
// of) its expiry.
func (s Session) needsRefresh(now time.Time) bool {
	if s.AccessToken == "" || s.TokenExpiry.IsZero() {
		return false
	}
	return !now.Before(s.TokenExpiry.Add(-refreshSkew))
}

// sessionState owns the mutable session behind one RWMutex. Auth flows
// additionally serialize on authMu so at most one refresh or elevation is
// in flight.
type sessionState struct {
	mu     sync.RWMutex
	cur    Session
	authMu sync.Mutex
}

func (st *sessionState) snapshot() Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur
}

func (st *sessionState) update(fn func(*Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.cur)
}

func (st *sessionState) clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	did, region := st.cur.DeviceID, st.cur.RegionID
	st.cur = Session{DeviceID: did, RegionID: region}
}

// loadOrCreateDeviceID returns a stable device id. When path is non-empty
// the id is read from (or persisted to) that file so the broker keeps
// recognizing the device across runs; otherwise a fresh one is generated.
func loadOrCreateDeviceID(path string) (string, error) {
	if path == "" {
		return newDeviceID(), nil
	}
	if b, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	}
	id := newDeviceID()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id), 0600); err != nil {
		return "", err
	}
	return id, nil
}

// newDeviceID generates a device id in the format the broker expects: a
// uuid with the hyphens stripped.
func newDeviceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
