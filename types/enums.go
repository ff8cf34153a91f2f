package types

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Valid reports whether the side is one the broker accepts.
func (s OrderSide) Valid() bool {
	return s == Buy || s == Sell
}

// OrderType uses the broker's wire strings.
type OrderType string

const (
	Market    OrderType = "MKT"
	Limit     OrderType = "LMT"
	Stop      OrderType = "STP"
	StopLimit OrderType = "STP LMT"
)

// InferOrderType maps the presence of price fields onto an order type.
// The table is fixed: no prices is a market order, a lone limit price is a
// limit order, a lone stop price is a stop order, both is a stop-limit.
func InferOrderType(hasLimit, hasStop bool) OrderType {
	switch {
	case hasLimit && hasStop:
		return StopLimit
	case hasLimit:
		return Limit
	case hasStop:
		return Stop
	default:
		return Market
	}
}

// RequiresLimitPrice reports whether the type cannot be sent without lmtPrice.
func (t OrderType) RequiresLimitPrice() bool {
	return t == Limit || t == StopLimit
}

// RequiresStopPrice reports whether the type cannot be sent without auxPrice.
func (t OrderType) RequiresStopPrice() bool {
	return t == Stop || t == StopLimit
}

// SupportsExtendedHours reports whether the broker accepts
// outsideRegularTradingHour for this type. Market orders never do.
func (t OrderType) SupportsExtendedHours() bool {
	return t != Market
}

// TimeInForce uses the broker's wire strings.
type TimeInForce string

const (
	Day               TimeInForce = "DAY"
	GoodTillCancel    TimeInForce = "GTC"
	ImmediateOrCancel TimeInForce = "IOC"
	FillOrKill        TimeInForce = "FOK"
)

// OrderStatus is the broker-reported order lifecycle state. The client never
// transitions these itself; it only reflects what the broker last said.
type OrderStatus string

const (
	StatusWorking       OrderStatus = "Working"
	StatusPending       OrderStatus = "Pending"
	StatusSubmitted     OrderStatus = "Submitted"
	StatusPartialFilled OrderStatus = "PartialFilled"
	StatusFilled        OrderStatus = "Filled"
	StatusCancelled     OrderStatus = "Cancelled"
	StatusFailed        OrderStatus = "Failed"
	StatusRejected      OrderStatus = "Rejected"
)

// IsTerminal reports whether the order can still change state.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusFailed, StatusRejected:
		return true
	}
	return false
}

// ComboTypeNormal is the combo type for plain (non-OTOCO) orders.
const ComboTypeNormal = "NORMAL"
