package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/JWambaugh/webull/pkg/ratelimit"
	"github.com/JWambaugh/webull/types"
)

// orderIDFromResponse extracts the order id from a placement response.
// The broker puts it at data.orderId or orderId, as a string or a number.
func orderIDFromResponse(body []byte) string {
	var out struct {
		OrderID types.Number `json:"orderId"`
		Data    struct {
			OrderID types.Number `json:"orderId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return ""
	}
	if out.Data.OrderID != "" {
		return out.Data.OrderID.String()
	}
	return out.OrderID.String()
}

// mapCancelError maps cancellation rejection codes onto the order
// sentinels.
func mapCancelError(code, msg string) error {
	switch code {
	case "order.not.exist", "trade.order.not.found":
		return types.ErrOrderNotFound
	case "order.finished", "trade.order.finished", "order.cannot.cancel":
		return types.ErrOrderNotCancellable
	default:
		return &types.BrokerError{Code: code, Message: msg}
	}
}

func (b *liveBackend) placeOrder(ctx context.Context, req *types.PlaceOrderRequest) (string, error) {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return "", err
	}
	if s.AccountID == "" {
		return "", types.ErrAccountNotFound
	}
	// Gate locally: a live order without a trade token would only bounce
	// at the broker, so it never leaves the process.
	if !s.HasTradeToken() {
		return "", types.ErrTradeTokenRequired
	}

	resp, err := b.core.tr.do(ctx, http.MethodPost, b.core.endpoints.placeOrder(s.AccountID), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.tradeHeaders(s),
		body:    req,
	})
	if err != nil {
		return "", err
	}

	if id := orderIDFromResponse(resp.Body()); id != "" {
		b.core.log.WithField("order_id", id).Info("order placed")
		return id, nil
	}
	be := brokerError(resp)
	b.core.log.WithField("code", be.Code).Warn("order rejected")
	return "", be
}

func (b *liveBackend) cancelOrder(ctx context.Context, orderID string) error {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return err
	}
	if s.AccountID == "" {
		return types.ErrAccountNotFound
	}
	if !s.HasTradeToken() {
		return types.ErrTradeTokenRequired
	}

	resp, err := b.core.tr.do(ctx, http.MethodPost, b.core.endpoints.cancelOrder(s.AccountID, orderID), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.tradeHeaders(s),
	})
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	be := brokerError(resp)
	return mapCancelError(be.Code, be.Message)
}

func (b *liveBackend) modifyOrder(ctx context.Context, orderID string, req *types.PlaceOrderRequest) error {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return err
	}
	if s.AccountID == "" {
		return types.ErrAccountNotFound
	}
	if !s.HasTradeToken() {
		return types.ErrTradeTokenRequired
	}

	body := struct {
		*types.PlaceOrderRequest
		OrderID string `json:"orderId"`
	}{req, orderID}

	resp, err := b.core.tr.do(ctx, http.MethodPost, b.core.endpoints.modifyOrder(s.AccountID), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.tradeHeaders(s),
		body:    body,
	})
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	be := brokerError(resp)
	return mapCancelError(be.Code, be.Message)
}

func (b *liveBackend) listHistoryOrders(ctx context.Context, status string, count int) ([]types.Order, error) {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return nil, err
	}
	if s.AccountID == "" {
		return nil, types.ErrAccountNotFound
	}

	resp, err := b.core.tr.do(ctx, http.MethodGet, b.core.endpoints.historyOrders(s.AccountID, count, status), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.tradeHeaders(s),
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, brokerError(resp)
	}
	return decodeOrderList(resp.Body())
}

func (b *paperBackend) placeOrder(ctx context.Context, req *types.PlaceOrderRequest) (string, error) {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return "", err
	}
	if s.AccountID == "" {
		return "", types.ErrAccountNotFound
	}
	// Simulated orders need no trade token.

	resp, err := b.core.tr.do(ctx, http.MethodPost, b.core.endpoints.paperPlaceOrder(s.AccountID, req.TickerID), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.authHeaders(s),
		body:    req,
	})
	if err != nil {
		return "", err
	}

	if id := orderIDFromResponse(resp.Body()); id != "" {
		b.core.log.WithField("order_id", id).Info("paper order placed")
		return id, nil
	}
	be := brokerError(resp)
	b.core.log.WithField("code", be.Code).Warn("paper order rejected")
	return "", be
}

func (b *paperBackend) cancelOrder(ctx context.Context, orderID string) error {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return err
	}
	if s.AccountID == "" {
		return types.ErrAccountNotFound
	}

	resp, err := b.core.tr.do(ctx, http.MethodPost, b.core.endpoints.paperCancelOrder(s.AccountID, orderID), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.authHeaders(s),
	})
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	be := brokerError(resp)
	return mapCancelError(be.Code, be.Message)
}

func (b *paperBackend) modifyOrder(ctx context.Context, orderID string, req *types.PlaceOrderRequest) error {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return err
	}
	if s.AccountID == "" {
		return types.ErrAccountNotFound
	}

	resp, err := b.core.tr.do(ctx, http.MethodPost, b.core.endpoints.paperModifyOrder(s.AccountID, orderID), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.authHeaders(s),
		body:    req,
	})
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	be := brokerError(resp)
	return mapCancelError(be.Code, be.Message)
}

func (b *paperBackend) listHistoryOrders(ctx context.Context, status string, count int) ([]types.Order, error) {
	s, err := b.core.authedSession(ctx)
	if err != nil {
		return nil, err
	}
	if s.AccountID == "" {
		return nil, types.ErrAccountNotFound
	}

	resp, err := b.core.tr.do(ctx, http.MethodGet, b.core.endpoints.paperOrders(s.AccountID, count, status), requestOptions{
		group:   ratelimit.GroupTrade,
		headers: b.core.authHeaders(s),
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, brokerError(resp)
	}
	return decodeOrderList(resp.Body())
}

// decodeOrderList accepts both list shapes the order endpoints use: a bare
// array or a data-wrapped one.
func decodeOrderList(body []byte) ([]types.Order, error) {
	var orders []types.Order
	if err := json.Unmarshal(body, &orders); err == nil {
		return orders, nil
	}
	var wrapped struct {
		Data []types.Order `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}

// CheckBuyingPower is an advisory precheck comparing an order's notional
// cost against the account's buying power. The broker remains the
// authority; a pass here can still be rejected server side.
func CheckBuyingPower(detail *types.AccountDetail, req *types.PlaceOrderRequest) bool {
	if detail == nil || req == nil || req.Action != types.Buy {
		return true
	}
	price := 0.0
	if req.LmtPrice != nil {
		price = *req.LmtPrice
	} else if req.AuxPrice != nil {
		price = *req.AuxPrice
	}
	if price == 0 {
		// Market buys have no known notional ahead of execution.
		return true
	}
	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(req.Quantity))
	return detail.BuyingPower.Decimal.GreaterThanOrEqual(cost)
}
