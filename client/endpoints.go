package client

import "fmt"

// Endpoints holds the base URLs of the broker's service hosts. The API is
// spread across several hosts; every method returns an absolute URL. Tests
// point all hosts at a local server.
type Endpoints struct {
	UserURL        string // account/identity host
	UserFintechURL string // login/logout host
	TradeURL       string // trade gateway (account, order book state)
	USTradeURL     string // order placement host
	USTradeBroker  string // order history host
	NewTradeURL    string // trade-token host
	PaperURL       string // simulated-trading order host
	PaperFintech   string // simulated-trading account host
	QuotesGWURL    string // realtime quotes and search host
	FintechGWURL   string // charts and news host
}

// DefaultEndpoints returns the production host map.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		UserURL:        "https://userapi.webull.com/api",
		UserFintechURL: "https://u1suser.webullfintech.com/api",
		TradeURL:       "https://tradeapi.webullbroker.com/api/trade",
		USTradeURL:     "https://ustrade.webullfinance.com/api",
		USTradeBroker:  "https://ustrade.webullbroker.com/api",
		NewTradeURL:    "https://trade.webullfintech.com/api",
		PaperURL:       "https://act.webullbroker.com/webull-paper-center/api",
		PaperFintech:   "https://act.webullfintech.com/webull-paper-center/api",
		QuotesGWURL:    "https://quotes-gw.webullfintech.com/api",
		FintechGWURL:   "https://quotes-gw.webullfintech.com/api",
	}
}

// rebase points every host at base. Test helper for httptest servers.
func (e *Endpoints) rebase(base string) {
	e.UserURL = base
	e.UserFintechURL = base
	e.TradeURL = base
	e.USTradeURL = base
	e.USTradeBroker = base
	e.NewTradeURL = base
	e.PaperURL = base
	e.PaperFintech = base
	e.QuotesGWURL = base
	e.FintechGWURL = base
}

func (e Endpoints) login() string {
	return e.UserFintechURL + "/user/v1/login/account/v2"
}

func (e Endpoints) logout() string {
	return e.UserFintechURL + "/user/v1/logout"
}

func (e Endpoints) requestMFA() string {
	return e.UserURL + "/user/v1/verificationCode/send/v2"
}

func (e Endpoints) checkMFA() string {
	return e.UserFintechURL + "/user/v1/verificationCode/checkCode"
}

func (e Endpoints) refreshToken(refreshToken string) string {
	return fmt.Sprintf("%s/passport/refreshToken?refreshToken=%s", e.UserURL, refreshToken)
}

func (e Endpoints) tradeToken() string {
	return e.NewTradeURL + "/trading/v1/global/trade/login"
}

func (e Endpoints) accountList() string {
	return e.TradeURL + "/account/getSecAccountList/v5"
}

func (e Endpoints) account(accountID string) string {
	return fmt.Sprintf("%s/v3/home/%s", e.TradeURL, accountID)
}

func (e Endpoints) positions(accountID string) string {
	return fmt.Sprintf("%s/v2/home/%s", e.TradeURL, accountID)
}

func (e Endpoints) placeOrder(accountID string) string {
	return fmt.Sprintf("%s/trade/order/%s/placeStockOrder", e.USTradeURL, accountID)
}

func (e Endpoints) cancelOrder(accountID, orderID string) string {
	return fmt.Sprintf("%s/trade/order/%s/cancelStockOrder/%s", e.USTradeURL, accountID, orderID)
}

func (e Endpoints) modifyOrder(accountID string) string {
	return fmt.Sprintf("%s/trading/v1/webull/order/stockOrderModify?secAccountId=%s", e.USTradeURL, accountID)
}

func (e Endpoints) historyOrders(accountID string, pageSize int, status string) string {
	return fmt.Sprintf(
		"%s/trading/v1/webull/order/list?secAccountId=%s&startTime=1970-0-1&dateType=ORDER&pageSize=%d&status=%s",
		e.USTradeBroker, accountID, pageSize, status)
}

func (e Endpoints) paperAccountList() string {
	return e.PaperFintech + "/myaccounts/true"
}

func (e Endpoints) paperAccount(paperID string) string {
	return fmt.Sprintf("%s/paper/1/acc/%s", e.PaperFintech, paperID)
}

func (e Endpoints) paperPositions(paperID string) string {
	return fmt.Sprintf("%s/paper/1/acc/%s/positions", e.PaperURL, paperID)
}

func (e Endpoints) paperPlaceOrder(paperID string, tickerID int64) string {
	return fmt.Sprintf("%s/paper/1/acc/%s/orderop/place/%d", e.PaperURL, paperID, tickerID)
}

func (e Endpoints) paperCancelOrder(paperID, orderID string) string {
	return fmt.Sprintf("%s/paper/1/acc/%s/orderop/cancel/%s", e.PaperURL, paperID, orderID)
}

func (e Endpoints) paperModifyOrder(paperID, orderID string) string {
	return fmt.Sprintf("%s/paper/1/acc/%s/orderop/modify/%s", e.PaperURL, paperID, orderID)
}

func (e Endpoints) paperOrders(paperID string, pageSize int, status string) string {
	return fmt.Sprintf(
		"%s/paper/1/acc/%s/order?&startTime=1970-0-1&dateType=ORDER&pageSize=%d&status=%s",
		e.PaperURL, paperID, pageSize, status)
}

func (e Endpoints) quotes(tickerID int64) string {
	return fmt.Sprintf(
		"%s/quotes/ticker/getTickerRealTime?tickerId=%d&includeSecu=1&includeQuote=1",
		e.QuotesGWURL, tickerID)
}

func (e Endpoints) bars(tickerID int64, interval string, count int, timestamp int64) string {
	return fmt.Sprintf(
		"%s/quote/charts/query?tickerIds=%d&type=%s&count=%d&timestamp=%d",
		e.FintechGWURL, tickerID, interval, count, timestamp)
}

func (e Endpoints) searchTickers(keyword string, regionID int) string {
	return fmt.Sprintf(
		"%s/search/pc/tickers?keyword=%s&pageIndex=1&pageSize=20&regionId=%d",
		e.QuotesGWURL, keyword, regionID)
}

func (e Endpoints) news(tickerID int64, lastID int64, count int) string {
	return fmt.Sprintf(
		"%s/information/news/tickerNews?tickerId=%d&currentNewsId=%d&pageSize=%d",
		e.FintechGWURL, tickerID, lastID, count)
}

func (e Endpoints) isTradable(tickerID int64) string {
	return fmt.Sprintf("%s/ticker/broker/permissionV2?tickerId=%d", e.TradeURL, tickerID)
}
