package client

import (
	"github.com/google/uuid"

	"github.com/JWambaugh/webull/types"
)

// OrderBuilder assembles a canonical order request. An explicit order type
// may be fixed up front with the typed constructors; otherwise Build infers
// the type from which price fields were set.
type OrderBuilder struct {
	tickerID      int64
	symbol        string
	side          types.OrderSide
	quantity      float64
	limitPrice    *float64
	stopPrice     *float64
	timeInForce   types.TimeInForce
	extendedHours bool
	serialID      string
	explicitType  types.OrderType
	hasExplicit   bool
}

// NewOrder starts a builder whose type will be inferred from the price
// fields: none set is a market order, limit only is a limit order, stop
// only is a stop order, both is a stop-limit.
func NewOrder() *OrderBuilder {
	return &OrderBuilder{timeInForce: types.Day}
}

// MarketOrder starts a builder fixed to a market order.
func MarketOrder() *OrderBuilder {
	return NewOrder().withType(types.Market)
}

// LimitOrder starts a builder fixed to a limit order at price.
func LimitOrder(price float64) *OrderBuilder {
	return NewOrder().withType(types.Limit).Limit(price)
}

// StopOrder starts a builder fixed to a stop order triggering at price.
func StopOrder(price float64) *OrderBuilder {
	return NewOrder().withType(types.Stop).Stop(price)
}

// StopLimitOrder starts a builder fixed to a stop-limit order.
func StopLimitOrder(stopPrice, limitPrice float64) *OrderBuilder {
	return NewOrder().withType(types.StopLimit).Stop(stopPrice).Limit(limitPrice)
}

func (b *OrderBuilder) withType(t types.OrderType) *OrderBuilder {
	b.explicitType = t
	b.hasExplicit = true
	return b
}

// TickerID sets the broker's instrument id.
func (b *OrderBuilder) TickerID(id int64) *OrderBuilder {
	b.tickerID = id
	return b
}

// Symbol sets the instrument by symbol; the dispatcher resolves it to a
// ticker id before sending when no TickerID was given.
func (b *OrderBuilder) Symbol(symbol string) *OrderBuilder {
	b.symbol = symbol
	return b
}

// Buy marks the order as a buy.
func (b *OrderBuilder) Buy() *OrderBuilder {
	b.side = types.Buy
	return b
}

// Sell marks the order as a sell.
func (b *OrderBuilder) Sell() *OrderBuilder {
	b.side = types.Sell
	return b
}

// Side sets the order side explicitly.
func (b *OrderBuilder) Side(side types.OrderSide) *OrderBuilder {
	b.side = side
	return b
}

// Quantity sets the share count.
func (b *OrderBuilder) Quantity(qty float64) *OrderBuilder {
	b.quantity = qty
	return b
}

// Limit sets the limit price.
func (b *OrderBuilder) Limit(price float64) *OrderBuilder {
	b.limitPrice = &price
	return b
}

// Stop sets the stop trigger price.
func (b *OrderBuilder) Stop(price float64) *OrderBuilder {
	b.stopPrice = &price
	return b
}

// TimeInForce overrides the default DAY.
func (b *OrderBuilder) TimeInForce(tif types.TimeInForce) *OrderBuilder {
	b.timeInForce = tif
	return b
}

// ExtendedHours permits execution outside regular trading hours. Ignored
// for market orders, which the broker restricts to regular hours.
func (b *OrderBuilder) ExtendedHours() *OrderBuilder {
	b.extendedHours = true
	return b
}

// SerialID sets the idempotency id. A fresh uuid is assigned at dispatch
// when unset.
func (b *OrderBuilder) SerialID(id string) *OrderBuilder {
	b.serialID = id
	return b
}

// symbolForResolve returns the pending symbol when no ticker id was set.
func (b *OrderBuilder) symbolForResolve() string {
	if b.tickerID == 0 {
		return b.symbol
	}
	return ""
}

// Build validates the builder and produces the canonical request. Orders
// are rejected here, before any network traffic, when a required field is
// missing or a numeric field is out of range.
func (b *OrderBuilder) Build() (*types.PlaceOrderRequest, error) {
	if b.tickerID == 0 && b.symbol == "" {
		return nil, &types.ValidationError{Field: "tickerId", Kind: types.MissingField, Msg: "ticker id or symbol required"}
	}
	if !b.side.Valid() {
		return nil, &types.ValidationError{Field: "action", Kind: types.MissingField, Msg: "order side required"}
	}
	if b.quantity <= 0 {
		return nil, &types.ValidationError{Field: "quantity", Kind: types.InvalidQuantity, Msg: "quantity must be positive"}
	}
	if b.limitPrice != nil && *b.limitPrice <= 0 {
		return nil, &types.ValidationError{Field: "lmtPrice", Kind: types.InvalidPrice, Msg: "limit price must be positive"}
	}
	if b.stopPrice != nil && *b.stopPrice <= 0 {
		return nil, &types.ValidationError{Field: "auxPrice", Kind: types.InvalidPrice, Msg: "stop price must be positive"}
	}

	orderType := types.InferOrderType(b.limitPrice != nil, b.stopPrice != nil)
	if b.hasExplicit {
		orderType = b.explicitType
		if orderType.RequiresLimitPrice() && b.limitPrice == nil {
			return nil, &types.ValidationError{Field: "lmtPrice", Kind: types.MissingField, Msg: string(orderType) + " order requires a limit price"}
		}
		if orderType.RequiresStopPrice() && b.stopPrice == nil {
			return nil, &types.ValidationError{Field: "auxPrice", Kind: types.MissingField, Msg: string(orderType) + " order requires a stop price"}
		}
	}

	tif := b.timeInForce
	if tif == "" {
		tif = types.Day
	}

	req := &types.PlaceOrderRequest{
		TickerID:      b.tickerID,
		Action:        b.side,
		OrderType:     orderType,
		TimeInForce:   tif,
		Quantity:      b.quantity,
		ExtendedHours: b.extendedHours,
		SerialID:      b.serialID,
	}
	if orderType.RequiresLimitPrice() && b.limitPrice != nil {
		req.LmtPrice = b.limitPrice
	}
	if orderType.RequiresStopPrice() && b.stopPrice != nil {
		req.AuxPrice = b.stopPrice
	}
	if !orderType.SupportsExtendedHours() {
		req.ExtendedHours = false
	}
	return req, nil
}

// finalizeOrder fills dispatch-time defaults on a canonical request:
// serialId, comboType and the market-order extended-hours restriction.
func finalizeOrder(req *types.PlaceOrderRequest) {
	if req.SerialID == "" {
		req.SerialID = uuid.NewString()
	}
	if req.ComboType == "" {
		req.ComboType = types.ComboTypeNormal
	}
	if !req.OrderType.SupportsExtendedHours() {
		req.ExtendedHours = false
	}
}
