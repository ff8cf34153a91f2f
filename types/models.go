package types

// Wire models for the broker's private REST API. Field names follow the
// broker's camelCase JSON; numeric fields the broker sends as strings use
// the Float/Money/Number decoders.

// ExtInfo carries the verification payload attached to a login retry after
// the broker demanded multi-factor verification.
type ExtInfo struct {
	CodeAccountType  int    `json:"codeAccountType"`
	VerificationCode string `json:"verificationCode"`
}

// LoginRequest is the login POST body. Pwd must already be the salted MD5
// digest, not the clear-text password.
type LoginRequest struct {
	Account         string   `json:"account"`
	AccountType     string   `json:"accountType"`
	DeviceID        string   `json:"deviceId"`
	DeviceName      string   `json:"deviceName"`
	Grade           int      `json:"grade"`
	Pwd             string   `json:"pwd"`
	RegionID        int      `json:"regionId"`
	ExtInfo         *ExtInfo `json:"extInfo,omitempty"`
	AccessQuestions string   `json:"accessQuestions,omitempty"`
}

// LoginResponse is the successful login body.
type LoginResponse struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	TokenExpireTime Timestamp `json:"tokenExpireTime"`
	UUID            string    `json:"uuid"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
}

// AccountMember is one key/value entry from the accountMembers array the
// broker uses instead of flat balance fields.
type AccountMember struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AccountDetail is the full live-account snapshot. Balance figures arrive
// inside AccountMembers; the flattened Money fields are populated by
// FlattenMembers after decoding.
type AccountDetail struct {
	AccountID            Number          `json:"secAccountId"`
	AccountType          string          `json:"accountType,omitempty"`
	BrokerAccountID      string          `json:"brokerAccountId,omitempty"`
	BrokerID             int             `json:"brokerId,omitempty"`
	Currency             string          `json:"currency,omitempty"`
	NetLiquidation       Money           `json:"netLiquidation"`
	TotalCost            Money           `json:"totalCost"`
	UnrealizedProfitLoss Money           `json:"unrealizedProfitLoss"`
	PDT                  bool            `json:"pdt,omitempty"`
	OpenOrderSize        int             `json:"openOrderSize,omitempty"`
	AccountMembers       []AccountMember `json:"accountMembers,omitempty"`
	Positions            []Position      `json:"positions,omitempty"`
	OpenOrders           []Order         `json:"openOrders,omitempty"`

	// Flattened from AccountMembers, not part of the wire payload.
	TotalMarketValue Money `json:"-"`
	CashBalance      Money `json:"-"`
	BuyingPower      Money `json:"-"`
	SettledFunds     Money `json:"-"`
	UnsettledFunds   Money `json:"-"`
}

// FlattenMembers copies known accountMembers entries into the typed Money
// fields. Unknown keys are ignored.
func (a *AccountDetail) FlattenMembers() {
	for _, m := range a.AccountMembers {
		var dst *Money
		switch m.Key {
		case "totalMarketValue", "marketValue":
			dst = &a.TotalMarketValue
		case "cashBalance":
			dst = &a.CashBalance
		case "dayBuyingPower", "buyingPower":
			dst = &a.BuyingPower
		case "settledFunds":
			dst = &a.SettledFunds
		case "unsettledFunds":
			dst = &a.UnsettledFunds
		default:
			continue
		}
		if err := dst.UnmarshalJSON([]byte(m.Value)); err != nil {
			// Leave the field zero; a malformed member must not fail the
			// whole account decode.
			continue
		}
	}
}

// PaperAccount is one entry from the simulated-account list.
type PaperAccount struct {
	ID         int64  `json:"id"`
	PaperID    int    `json:"paperId"`
	PaperName  string `json:"paperName"`
	PaperType  int    `json:"paperType"`
	Currency   string `json:"currency"`
	CurrencyID int    `json:"currencyId"`
	Status     int    `json:"status"`

	TotalMarketValue Money `json:"totalMarketValue"`
	UsableCash       Money `json:"usableCash"`
	NetLiquidation   Money `json:"netLiquidation"`
}

// Position is a held position, live or simulated.
type Position struct {
	Ticker               *Ticker `json:"ticker,omitempty"`
	Quantity             Float   `json:"position"`
	AvgCost              Float   `json:"costPrice"`
	Cost                 Float   `json:"cost"`
	MarketValue          Float   `json:"marketValue"`
	LastPrice            Float   `json:"lastPrice"`
	UnrealizedProfitLoss Float   `json:"unrealizedProfitLoss"`
	AssetType            string  `json:"assetType,omitempty"`
}

// Ticker identifies an instrument. TickerID is the broker's internal id
// required by order and quote endpoints.
type Ticker struct {
	TickerID        int64  `json:"tickerId"`
	Symbol          string `json:"disSymbol"`
	Name            string `json:"name"`
	ExchangeCode    string `json:"exchangeCode,omitempty"`
	DisExchangeCode string `json:"disExchangeCode,omitempty"`
	RegionID        int    `json:"regionId,omitempty"`
	CurrencyID      int    `json:"currencyId,omitempty"`
	Template        string `json:"template,omitempty"`
	ListStatus      int    `json:"listStatus,omitempty"`
}

// Quote is a realtime snapshot for one instrument.
type Quote struct {
	TickerID    int64  `json:"tickerId,omitempty"`
	Close       Float  `json:"close"`
	Change      Float  `json:"change"`
	ChangeRatio Float  `json:"changeRatio"`
	PreClose    Float  `json:"preClose"`
	Open        Float  `json:"open"`
	High        Float  `json:"high"`
	Low         Float  `json:"low"`
	Volume      Float  `json:"volume"`
	Ask         Float  `json:"ask,omitempty"`
	Bid         Float  `json:"bid,omitempty"`
	AskSize     Float  `json:"askSize,omitempty"`
	BidSize     Float  `json:"bidSize,omitempty"`
	MarketValue Float  `json:"marketValue,omitempty"`
	PE          Float  `json:"pe,omitempty"`
	Currency    string `json:"currencyCode,omitempty"`
}

// Order is an order as reported by the broker.
type Order struct {
	OrderID       Number      `json:"orderId"`
	Ticker        *Ticker     `json:"ticker,omitempty"`
	Action        OrderSide   `json:"action"`
	OrderType     OrderType   `json:"orderType"`
	Status        OrderStatus `json:"status"`
	TimeInForce   TimeInForce `json:"timeInForce"`
	Quantity      Float       `json:"totalQuantity"`
	FilledQty     Float       `json:"filledQuantity"`
	AvgFillPrice  Float       `json:"avgFilledPrice,omitempty"`
	LimitPrice    Float       `json:"lmtPrice,omitempty"`
	StopPrice     Float       `json:"auxPrice,omitempty"`
	ExtendedHours bool        `json:"outsideRegularTradingHour"`
	CreateTime    Timestamp   `json:"createTime,omitempty"`
	PlacedTime    Timestamp   `json:"placedTime,omitempty"`
	FilledTime    Timestamp   `json:"filledTime,omitempty"`
}

// PlaceOrderRequest is the canonical order payload produced by the builder
// and sent to the place/modify endpoints. LmtPrice and AuxPrice are the
// broker's wire names for limit and stop price.
type PlaceOrderRequest struct {
	TickerID      int64       `json:"tickerId"`
	Action        OrderSide   `json:"action"`
	OrderType     OrderType   `json:"orderType"`
	TimeInForce   TimeInForce `json:"timeInForce"`
	Quantity      float64     `json:"quantity"`
	LmtPrice      *float64    `json:"lmtPrice,omitempty"`
	AuxPrice      *float64    `json:"auxPrice,omitempty"`
	ExtendedHours bool        `json:"outsideRegularTradingHour"`
	SerialID      string      `json:"serialId,omitempty"`
	ComboType     string      `json:"comboType,omitempty"`
}

// Bar is one OHLCV candle. The quote endpoint returns bars as comma-joined
// strings; see the market-data client for the decoder.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	VWAP      float64 `json:"vwap"`
}

// News is one news item for an instrument.
type News struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Summary    string `json:"summary,omitempty"`
	SourceName string `json:"sourceName,omitempty"`
	NewsTime   string `json:"newsTime"`
	NewsURL    string `json:"newsUrl,omitempty"`
	SiteType   int    `json:"siteType,omitempty"`
	MainPic    string `json:"mainPic,omitempty"`
}
