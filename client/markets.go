package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JWambaugh/webull/pkg/ratelimit"
	"github.com/JWambaugh/webull/types"
)

// validIntervals covers the chart endpoint's accepted interval codes.
var validIntervals = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"60m": true, "120m": true, "240m": true, "1h": true, "2h": true,
	"4h": true, "1d": true, "1w": true, "1M": true,
	"d1": true, "d5": true, "m1": true, "m5": true, "m15": true,
	"m30": true, "m60": true, "m120": true, "m240": true,
	"h1": true, "h2": true, "h4": true, "w1": true, "mo1": true,
}

func (c *core) getQuotes(ctx context.Context, tickerID int64) (*types.Quote, error) {
	s := c.session.snapshot()

	var quote types.Quote
	resp, err := c.tr.do(ctx, http.MethodGet, c.endpoints.quotes(tickerID), requestOptions{
		group:   ratelimit.GroupQuotes,
		headers: c.authHeaders(s),
		out:     &quote,
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, brokerError(resp)
	}
	return &quote, nil
}

func (c *core) getBars(ctx context.Context, tickerID int64, interval string, count int, endTime time.Time) ([]types.Bar, error) {
	if !validIntervals[interval] {
		return nil, &types.ValidationError{Field: "interval", Kind: types.InvalidField, Msg: "unknown interval " + interval}
	}
	ts := endTime.Unix()
	if endTime.IsZero() {
		ts = time.Now().Unix()
	}

	s := c.session.snapshot()
	resp, err := c.tr.do(ctx, http.MethodGet, c.endpoints.bars(tickerID, interval, count, ts), requestOptions{
		group:   ratelimit.GroupQuotes,
		headers: c.authHeaders(s),
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, brokerError(resp)
	}

	var out []struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	bars := make([]types.Bar, 0, len(out[0].Data))
	for _, row := range out[0].Data {
		if bar, ok := parseBarRow(row); ok {
			bars = append(bars, bar)
		}
	}
	return bars, nil
}

// parseBarRow decodes one candle row. The chart endpoint packs each candle
// as "timestamp,open,close,high,low,_,volume,vwap".
func parseBarRow(row string) (types.Bar, bool) {
	parts := strings.Split(row, ",")
	if len(parts) < 7 {
		return types.Bar{}, false
	}
	f := func(i int) float64 {
		v, _ := strconv.ParseFloat(parts[i], 64)
		return v
	}
	ts, _ := strconv.ParseInt(parts[0], 10, 64)
	bar := types.Bar{
		Timestamp: ts,
		Open:      f(1),
		Close:     f(2),
		High:      f(3),
		Low:       f(4),
		Volume:    f(6),
	}
	if len(parts) > 7 && parts[7] != "null" {
		bar.VWAP = f(7)
	}
	return bar, true
}

func (c *core) findTicker(ctx context.Context, keyword string) ([]types.Ticker, error) {
	s := c.session.snapshot()

	resp, err := c.tr.do(ctx, http.MethodGet, c.endpoints.searchTickers(keyword, s.RegionID), requestOptions{
		group:   ratelimit.GroupQuotes,
		headers: c.authHeaders(s),
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, brokerError(resp)
	}

	var out struct {
		Data []types.Ticker `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// resolveTickerID searches for symbol and returns the id of the exact
// match, or the first result when nothing matches exactly. Resolutions are
// cached so a symbol-addressed order loop does not re-search per order.
func (c *core) resolveTickerID(ctx context.Context, symbol string) (int64, error) {
	key := strings.ToUpper(symbol)
	if id, ok := c.tickers.Get(key); ok {
		return id, nil
	}

	tickers, err := c.findTicker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if len(tickers) == 0 {
		return 0, types.ErrTickerNotFound
	}

	id := tickers[0].TickerID
	for _, t := range tickers {
		if strings.EqualFold(t.Symbol, symbol) {
			id = t.TickerID
			break
		}
	}
	c.tickers.Set(key, id, 0)
	return id, nil
}

func (c *core) getNews(ctx context.Context, tickerID int64, lastID int64, count int) ([]types.News, error) {
	s := c.session.snapshot()

	resp, err := c.tr.do(ctx, http.MethodGet, c.endpoints.news(tickerID, lastID, count), requestOptions{
		group:   ratelimit.GroupNews,
		headers: c.authHeaders(s),
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, brokerError(resp)
	}

	var items []types.News
	if err := json.Unmarshal(resp.Body(), &items); err == nil {
		return items, nil
	}
	var wrapped struct {
		Data []types.News `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}

func (c *core) isTradable(ctx context.Context, tickerID int64) (bool, error) {
	s, err := c.authedSession(ctx)
	if err != nil {
		return false, err
	}

	resp, err := c.tr.do(ctx, http.MethodGet, c.endpoints.isTradable(tickerID), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: c.authHeaders(s),
	})
	if err != nil {
		return false, err
	}
	if !resp.IsSuccess() {
		return false, brokerError(resp)
	}

	var out struct {
		TradeAble bool `json:"tradeable"`
		Data      struct {
			TradeAble bool `json:"tradeable"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return false, err
	}
	return out.TradeAble || out.Data.TradeAble, nil
}
