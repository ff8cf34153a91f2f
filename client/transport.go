package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/JWambaugh/webull/pkg/ratelimit"
	"github.com/JWambaugh/webull/types"
)

const (
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:99.0) Gecko/20100101 Firefox/99.0"
	appVersion     = "3.39.18"
	zoneVar        = "dc_core_r001"
	requestTimeout = 15 * time.Second
)

// transport wraps resty with the broker's browser-profile headers, a
// per-group rate limiter and idempotent-only retry.
type transport struct {
	http   *resty.Client
	limits *ratelimit.Manager
}

func newTransport(limits *ratelimit.Manager) *transport {
	c := resty.New().
		SetTimeout(requestTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Only GETs are safe to replay. A retried POST could place the
			// same order twice.
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
		})

	c.SetHeaders(map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "*/*",
		"Accept-Encoding": "gzip, deflate",
		"Accept-Language": "en-US,en;q=0.5",
		"Content-Type":    "application/json",
		"platform":        "web",
		"hl":              "en",
		"os":              "web",
		"osv":             userAgent,
		"app":             "global",
		"appid":           "webull-webapp",
		"ver":             appVersion,
		"lzone":           zoneVar,
		"ph":              "MacOS Firefox",
		"locale":          "eng",
		"device-type":     "Web",
	})

	return &transport{http: c, limits: limits}
}

// reqID generates the per-request id the broker expects in the reqid
// header and as order serialId material: a uuid without hyphens.
func reqID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

type requestOptions struct {
	group   string // rate-limit group
	headers map[string]string
	body    any
	out     any
}

func (t *transport) do(ctx context.Context, method, url string, opt requestOptions) (*resty.Response, error) {
	group := opt.group
	if group == "" {
		group = ratelimit.GroupTrade
	}
	if err := t.limits.Wait(ctx, group); err != nil {
		return nil, &types.TransportError{Op: method + " " + url, Err: err}
	}

	r := t.http.R().SetContext(ctx)
	r.SetHeader("reqid", reqID())
	for k, v := range opt.headers {
		r.SetHeader(k, v)
	}
	if opt.body != nil {
		r.SetBody(opt.body)
	}

	resp, err := r.Execute(method, url)
	if err != nil {
		return nil, &types.TransportError{
			Op: method + " " + url,
			// A failed POST may still have reached the broker; the outcome
			// is unknown and the request must not be replayed blindly.
			Unknown: method != http.MethodGet,
			Err:     err,
		}
	}

	if opt.out != nil && resp.IsSuccess() {
		if err := json.Unmarshal(resp.Body(), opt.out); err != nil {
			return resp, errors.Wrapf(err, "decode %s response", url)
		}
	}
	return resp, nil
}

// brokerEnvelope is the error shape the broker returns on rejected
// requests, with or without an HTTP error status.
type brokerEnvelope struct {
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	Message string `json:"message"`
	Success *bool  `json:"success"`
}

// brokerCode extracts the broker's machine code from a response body, or ""
// when the body carries none.
func brokerCode(resp *resty.Response) string {
	var env brokerEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return ""
	}
	return env.Code
}

// brokerError turns a rejected response into a BrokerError. Used after the
// caller has already ruled out the success shape.
func brokerError(resp *resty.Response) *types.BrokerError {
	var env brokerEnvelope
	_ = json.Unmarshal(resp.Body(), &env)
	msg := env.Msg
	if msg == "" {
		msg = env.Message
	}
	code := env.Code
	if code == "" {
		code = resp.Status()
	}
	return &types.BrokerError{Code: code, Message: msg}
}
