package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JWambaugh/webull/types"
)

func TestHashPassword(t *testing.T) {
	// Digest of salt + password, fixed by the login endpoint's contract.
	assert.Equal(t, "5de5e766a05fa8a8692f476cd1a69016", hashPassword("test-password"))
	assert.NotEqual(t, hashPassword("a"), hashPassword("b"))
}

func TestAccountTypeFromUsername(t *testing.T) {
	assert.Equal(t, accountTypePhone, accountType("+15551234567"))
	assert.Equal(t, accountTypeEmail, accountType("trader@example.com"))
	assert.Equal(t, accountTypeEmail, accountType("15551234567"))
}

func TestLoginSendsHashedCredentials(t *testing.T) {
	var got types.LoginRequest
	mux := testMux()
	mux.HandleFunc("/user/v1/login/account/v2", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, testDeviceID, r.Header.Get("did"))
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":     "access-1",
			"refreshToken":    "refresh-1",
			"tokenExpireTime": "2032-01-01T00:00:00Z",
		})
	})

	loginTestClient(t, mux, true)

	assert.Equal(t, testUser, got.Account)
	assert.Equal(t, "2", got.AccountType)
	assert.Equal(t, hashPassword(testPassword), got.Pwd)
	assert.Equal(t, testDeviceID, got.DeviceID)
	assert.Equal(t, 1, got.Grade)
	assert.Nil(t, got.ExtInfo)
}

func TestLoginMissingCredentials(t *testing.T) {
	cli := newTestClient(t, testMux(), true)
	_, err := cli.Login(context.Background(), Credentials{Username: testUser})
	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, types.MissingField, ve.Kind)
}

func TestLoginRejectionMapping(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"account.pwd.mismatch", types.ErrInvalidCredentials},
		{"user.not.exist", types.ErrInvalidCredentials},
		{"account.verify.code.need", types.ErrMfaRequired},
		{"account.need.second.verify", types.ErrMfaRequired},
		{"device.not.trust", types.ErrDeviceNotTrusted},
		{"user.check.slider.pic.fail", types.ErrDeviceNotTrusted},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			mux := testMux()
			mux.HandleFunc("/user/v1/login/account/v2", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusForbidden, map[string]any{"code": tc.code, "msg": "rejected"})
			})
			cli := newTestClient(t, mux, true)
			_, err := cli.Login(context.Background(), Credentials{Username: testUser, Password: testPassword})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoginUnknownRejectionIsBrokerError(t *testing.T) {
	mux := testMux()
	mux.HandleFunc("/user/v1/login/account/v2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"code": "some.new.code", "msg": "nope"})
	})
	cli := newTestClient(t, mux, true)
	_, err := cli.Login(context.Background(), Credentials{Username: testUser, Password: testPassword})
	var be *types.BrokerError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "some.new.code", be.Code)
}

func TestMfaRoundTrip(t *testing.T) {
	var sendCalled, checkCalled bool
	var loginBody types.LoginRequest

	mux := testMux()
	mux.HandleFunc("/user/v1/verificationCode/send/v2", func(w http.ResponseWriter, r *http.Request) {
		sendCalled = true
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("/user/v1/verificationCode/checkCode", func(w http.ResponseWriter, r *http.Request) {
		checkCalled = true
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("/user/v1/login/account/v2", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&loginBody))
		if loginBody.ExtInfo == nil {
			writeJSON(w, http.StatusForbidden, map[string]any{"code": "account.verify.code.need"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":     "access-1",
			"refreshToken":    "refresh-1",
			"tokenExpireTime": "2032-01-01T00:00:00Z",
		})
	})

	cli := newTestClient(t, mux, true)
	ctx := context.Background()
	creds := Credentials{Username: testUser, Password: testPassword}

	_, err := cli.Login(ctx, creds)
	require.ErrorIs(t, err, types.ErrMfaRequired)

	require.NoError(t, cli.RequestMFA(ctx, testUser))
	require.NoError(t, cli.CheckMFA(ctx, testUser, "246810"))

	creds.MFACode = "246810"
	_, err = cli.Login(ctx, creds)
	require.NoError(t, err)

	assert.True(t, sendCalled)
	assert.True(t, checkCalled)
	require.NotNil(t, loginBody.ExtInfo)
	assert.Equal(t, "246810", loginBody.ExtInfo.VerificationCode)
	assert.Equal(t, accountTypeEmail, loginBody.ExtInfo.CodeAccountType)
}

func TestRefreshWithoutTokenFails(t *testing.T) {
	cli := newTestClient(t, testMux(), true)
	err := cli.Refresh(context.Background())
	assert.ErrorIs(t, err, types.ErrSessionExpired)
}

func TestRefreshRotatesTokens(t *testing.T) {
	mux := testMux()
	mux.HandleFunc("/passport/refreshToken", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh-1", r.URL.Query().Get("refreshToken"))
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":     "access-2",
			"refreshToken":    "refresh-2",
			"tokenExpireTime": "2033-01-01T00:00:00Z",
		})
	})

	cli := loginTestClient(t, withDefaultLogin(mux), true)
	require.NoError(t, cli.Refresh(context.Background()))

	s := cli.Session()
	assert.Equal(t, "access-2", s.AccessToken)
	assert.Equal(t, "refresh-2", s.RefreshToken)
}

func TestElevateTradeToken(t *testing.T) {
	var pinBody map[string]string
	mux := testMux()
	mux.HandleFunc("/trading/v1/global/trade/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&pinBody))
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{"tradeToken": "tt-1"},
		})
	})

	cli := loginTestClient(t, withDefaultLogin(mux), false)
	require.NoError(t, cli.ElevateTradeToken(context.Background(), "123456"))

	assert.Equal(t, hashPassword("123456"), pinBody["pwd"])
	assert.True(t, cli.Session().HasTradeToken())
	assert.Equal(t, "tt-1", cli.Session().TradeToken)
}

func TestElevateTradeTokenPinErrors(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"trade.pwd.mismatch", types.ErrInvalidPin},
		{"trade.pwd.lock", types.ErrTradeTokenDenied},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			mux := testMux()
			mux.HandleFunc("/trading/v1/global/trade/login", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusForbidden, map[string]any{"code": tc.code})
			})
			cli := loginTestClient(t, withDefaultLogin(mux), false)
			err := cli.ElevateTradeToken(context.Background(), "000000")
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, cli.Session().HasTradeToken())
		})
	}
}

func TestElevateTradeTokenRequiresLogin(t *testing.T) {
	cli := newTestClient(t, testMux(), false)
	err := cli.ElevateTradeToken(context.Background(), "123456")
	assert.ErrorIs(t, err, types.ErrNotLoggedIn)
}

func TestElevateTradeTokenPaperIsNoop(t *testing.T) {
	cli := newTestClient(t, testMux(), true)
	require.NoError(t, cli.ElevateTradeToken(context.Background(), "whatever"))
}

func TestLogoutClearsSession(t *testing.T) {
	var logoutHit bool
	mux := testMux()
	mux.HandleFunc("/user/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		logoutHit = true
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	cli := loginTestClient(t, withDefaultLogin(mux), true)
	require.True(t, cli.Session().LoggedIn())

	require.NoError(t, cli.Logout(context.Background()))
	assert.True(t, logoutHit)

	s := cli.Session()
	assert.False(t, s.LoggedIn())
	assert.Empty(t, s.AccountID)
	assert.Equal(t, testDeviceID, s.DeviceID, "device identity survives logout")

	// Logging out again is a no-op, not an error.
	logoutHit = false
	require.NoError(t, cli.Logout(context.Background()))
	assert.False(t, logoutHit)
}

func TestLogoutClearsSessionEvenOnServerError(t *testing.T) {
	mux := testMux()
	mux.HandleFunc("/user/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"msg": "boom"})
	})

	cli := loginTestClient(t, withDefaultLogin(mux), true)
	err := cli.Logout(context.Background())
	assert.Error(t, err)
	assert.False(t, cli.Session().LoggedIn())
}

func TestRefreshConcurrentWithDispatch(t *testing.T) {
	// Each dispatched request must carry a token from one whole session
	// snapshot: either the pre-refresh or the post-refresh value, never a
	// torn mix or an empty header.
	var mu sync.Mutex
	tokens := make([]string, 0, 8)
	mux := testMux()
	mux.HandleFunc("/passport/refreshToken", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":     "access-2",
			"refreshToken":    "refresh-2",
			"tokenExpireTime": "2033-01-01T00:00:00Z",
		})
	})
	mux.HandleFunc("/paper/1/acc/777/orderop/place/913256135", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokens = append(tokens, r.Header.Get("access_token"))
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"orderId": 1})
	})

	cli := loginTestClient(t, withDefaultLogin(mux), true)

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		assert.NoError(t, cli.Refresh(context.Background()))
	}()
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := cli.PlaceOrder(context.Background(),
				NewOrder().TickerID(913256135).Buy().Quantity(1))
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, "access-2", cli.Session().AccessToken)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, tokens, 8)
	for _, tok := range tokens {
		assert.Contains(t, []string{"access-1", "access-2"}, tok)
	}
}
