package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/JWambaugh/webull/pkg/ratelimit"
	"github.com/JWambaugh/webull/types"
)

// passwordSalt is prepended to the clear-text password before MD5 hashing.
// Fixed wire contract with the broker's login endpoint.
const passwordSalt = "wl_app-a&b@!423^"

// Account types the broker distinguishes by username shape.
const (
	accountTypePhone = 1
	accountTypeEmail = 2
)

// Credentials is the input to Login.
type Credentials struct {
	Username string
	Password string
	// MFACode is the verification code from a RequestMFA/CheckMFA round,
	// attached to the login retry after ErrMfaRequired.
	MFACode string
	// QuestionID and QuestionAnswer answer a security question when the
	// broker demands one.
	QuestionID     string
	QuestionAnswer string
}

// hashPassword produces the salted MD5 digest the login endpoint expects.
func hashPassword(password string) string {
	sum := md5.Sum([]byte(passwordSalt + password))
	return hex.EncodeToString(sum[:])
}

// accountType infers the broker account type from the username: phone
// numbers carry a leading +, everything else is treated as email.
func accountType(username string) int {
	if strings.HasPrefix(username, "+") {
		return accountTypePhone
	}
	return accountTypeEmail
}

// mapLoginError translates the broker's login rejection codes into the
// typed sentinels callers branch on.
func mapLoginError(code, msg string) error {
	switch code {
	case "account.pwd.mismatch", "phone.illegal", "user.not.exist":
		return errors.Wrap(types.ErrInvalidCredentials, msg)
	case "account.verify.code.need", "account.need.second.verify", "verify.code.need":
		return errors.Wrap(types.ErrMfaRequired, msg)
	case "device.not.trust", "user.check.slider.pic.fail":
		return errors.Wrap(types.ErrDeviceNotTrusted, msg)
	default:
		return &types.BrokerError{Code: code, Message: msg}
	}
}

func (c *core) login(ctx context.Context, creds Credentials) (*types.LoginResponse, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, &types.ValidationError{Field: "username/password", Kind: types.MissingField, Msg: "credentials required"}
	}

	s := c.session.snapshot()
	acctType := accountType(creds.Username)

	body := types.LoginRequest{
		Account:     creds.Username,
		AccountType: fmt.Sprintf("%d", acctType),
		DeviceID:    s.DeviceID,
		DeviceName:  c.deviceName,
		Grade:       1,
		Pwd:         hashPassword(creds.Password),
		RegionID:    s.RegionID,
	}
	if creds.MFACode != "" {
		body.ExtInfo = &types.ExtInfo{
			CodeAccountType:  acctType,
			VerificationCode: creds.MFACode,
		}
	}
	if creds.QuestionID != "" && creds.QuestionAnswer != "" {
		body.AccessQuestions = fmt.Sprintf(
			`[{"questionId":"%s", "answer":"%s"}]`, creds.QuestionID, creds.QuestionAnswer)
	}

	resp, err := c.tr.do(ctx, http.MethodPost, c.endpoints.login(), requestOptions{
		group:   ratelimit.GroupAuth,
		headers: c.authHeaders(s),
		body:    body,
	})
	if err != nil {
		return nil, err
	}

	var lr types.LoginResponse
	if err := json.Unmarshal(resp.Body(), &lr); err != nil || lr.AccessToken == "" {
		if code := brokerCode(resp); code != "" {
			be := brokerError(resp)
			return nil, mapLoginError(code, be.Message)
		}
		return nil, errors.Wrap(types.ErrInvalidCredentials, "login rejected")
	}

	c.session.update(func(sess *Session) {
		sess.AccessToken = lr.AccessToken
		sess.RefreshToken = lr.RefreshToken
		sess.TokenExpiry = lr.TokenExpireTime.Time()
		sess.UUID = lr.UUID
	})
	c.username = creds.Username
	c.log.WithField("account_type", acctType).Info("login succeeded")
	return &lr, nil
}

func (c *core) requestMFA(ctx context.Context, username string) error {
	body := map[string]any{
		"account":     username,
		"accountType": fmt.Sprintf("%d", accountType(username)),
		"codeType":    5,
	}
	resp, err := c.tr.do(ctx, http.MethodPost, c.endpoints.requestMFA(), requestOptions{
		group:   ratelimit.GroupAuth,
		headers: c.authHeaders(c.session.snapshot()),
		body:    body,
	})
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return brokerError(resp)
	}
	return nil
}

func (c *core) checkMFA(ctx context.Context, username, code string) error {
	body := map[string]any{
		"account":     username,
		"accountType": fmt.Sprintf("%d", accountType(username)),
		"code":        code,
		"codeType":    5,
	}
	resp, err := c.tr.do(ctx, http.MethodPost, c.endpoints.checkMFA(), requestOptions{
		group:   ratelimit.GroupAuth,
		headers: c.authHeaders(c.session.snapshot()),
		body:    body,
	})
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return brokerError(resp)
	}
	return nil
}

func (c *core) refresh(ctx context.Context) error {
	c.session.authMu.Lock()
	defer c.session.authMu.Unlock()

	s := c.session.snapshot()
	if s.RefreshToken == "" {
		return types.ErrSessionExpired
	}

	resp, err := c.tr.do(ctx, http.MethodPost, c.endpoints.refreshToken(s.RefreshToken), requestOptions{
		group:   ratelimit.GroupAuth,
		headers: c.authHeaders(s),
	})
	if err != nil {
		return err
	}

	var lr types.LoginResponse
	if err := json.Unmarshal(resp.Body(), &lr); err != nil || lr.AccessToken == "" {
		return errors.Wrap(types.ErrSessionExpired, "refresh rejected")
	}

	c.session.update(func(sess *Session) {
		sess.AccessToken = lr.AccessToken
		if lr.RefreshToken != "" {
			sess.RefreshToken = lr.RefreshToken
		}
		sess.TokenExpiry = lr.TokenExpireTime.Time()
	})
	c.log.Debug("token refreshed")
	return nil
}

func (c *core) elevateTradeToken(ctx context.Context, pin string) error {
	c.session.authMu.Lock()
	defer c.session.authMu.Unlock()

	s := c.session.snapshot()
	if !s.LoggedIn() {
		return types.ErrNotLoggedIn
	}

	resp, err := c.tr.do(ctx, http.MethodPost, c.endpoints.tradeToken(), requestOptions{
		group:   ratelimit.GroupAuth,
		headers: c.authHeaders(s),
		body:    map[string]string{"pwd": hashPassword(pin)},
	})
	if err != nil {
		return err
	}

	var out struct {
		Data struct {
			TradeToken string `json:"tradeToken"`
		} `json:"data"`
		TradeToken string `json:"tradeToken"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err == nil {
		token := out.Data.TradeToken
		if token == "" {
			token = out.TradeToken
		}
		if token != "" {
			c.session.update(func(sess *Session) {
				sess.TradeToken = token
			})
			c.log.Info("trade token elevated")
			return nil
		}
	}

	switch code := brokerCode(resp); code {
	case "trade.pwd.mismatch":
		return types.ErrInvalidPin
	case "trade.pwd.lock":
		return types.ErrTradeTokenDenied
	default:
		if code != "" {
			return brokerError(resp)
		}
		return errors.Wrap(types.ErrTradeTokenDenied, "no trade token in response")
	}
}

func (c *core) logout(ctx context.Context) error {
	s := c.session.snapshot()
	// Local state goes regardless of the server's answer; a second logout
	// on a cleared session is a no-op.
	defer c.session.clear()
	if !s.LoggedIn() {
		return nil
	}

	resp, err := c.tr.do(ctx, http.MethodPost, c.endpoints.logout(), requestOptions{
		group:   ratelimit.GroupAuth,
		headers: c.authHeaders(s),
	})
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return brokerError(resp)
	}
	c.log.Info("logged out")
	return nil
}
