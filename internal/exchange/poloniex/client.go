// Package poloniex handles interactions with the Poloniex exchange.
package poloniex

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// defaultBaseURL can be overridden for testing.
	defaultBaseURL = "https://poloniex.com"
)

// GetBaseURL returns the current base URL used by the client.
func GetBaseURL() string {
	return defaultBaseURL
}

// SetBaseURL sets the base URL for the client.
// This is intended for use in tests to redirect requests to a mock server.
func SetBaseURL(u string) {
	defaultBaseURL = u
}

// Client provides methods to interact with the Poloniex legacy API.
// Public endpoints are plain GETs; trading endpoints are form-encoded
// POSTs signed with HMAC-SHA512 over the request body.
type Client struct {
	apiKey     string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a new Poloniex API client.
func NewClient(apiKey, secretKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) public(command string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("command", command)

	resp, err := c.httpClient.Get(defaultBaseURL + "/public?" + params.Encode())
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", command, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response body (status: %d): %w", command, resp.StatusCode, err)
	}
	return decodeResponse(command, resp.StatusCode, bodyBytes, out)
}

func (c *Client) trading(command string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("command", command)
	// Nanosecond nonce survives restarts, unlike an in-memory counter.
	params.Set("nonce", strconv.FormatInt(time.Now().UnixNano(), 10))
	body := params.Encode()

	mac := hmac.New(sha512.New, []byte(c.secretKey))
	if _, err := mac.Write([]byte(body)); err != nil {
		return err // Should not happen
	}
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, defaultBaseURL+"/tradingApi", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", command, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Key", c.apiKey)
	req.Header.Set("Sign", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", command, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response body (status: %d): %w", command, resp.StatusCode, err)
	}
	return decodeResponse(command, resp.StatusCode, bodyBytes, out)
}

// decodeResponse unmarshals a Poloniex payload into out after checking for
// the {"error": ...} envelope, which the API substitutes for any response
// shape on failure.
func decodeResponse(command string, status int, body []byte, out interface{}) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("poloniex API error on %s: %s", command, apiErr.Error)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response (status: %d, body: %s): %w", command, status, string(body), err)
	}
	return nil
}

// Ticker retrieves the full returnTicker map, keyed by market symbol
// ("BTC_ETH" style, base currency first).
func (c *Client) Ticker() (map[string]TickerEntry, error) {
	var out map[string]TickerEntry
	if err := c.public("returnTicker", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChartData retrieves OHLCV candles for one market between start and end
// (unix seconds) at the given bar period in seconds.
func (c *Client) ChartData(pair string, start, end int64, period int) ([]ChartBar, error) {
	params := url.Values{}
	params.Set("currencyPair", pair)
	params.Set("start", strconv.FormatInt(start, 10))
	params.Set("end", strconv.FormatInt(end, 10))
	params.Set("period", strconv.Itoa(period))

	var out []ChartBar
	if err := c.public("returnChartData", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Balances retrieves all account balances in local currency units.
func (c *Client) Balances() (map[string]decimal.Decimal, error) {
	var out map[string]decimal.Decimal
	if err := c.trading("returnBalances", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Buy places a limit buy order for the given market at rate, sized in the
// market's quote currency.
func (c *Client) Buy(pair string, rate, amount decimal.Decimal) (*OrderResponse, error) {
	return c.placeOrder("buy", pair, rate, amount)
}

// Sell places a limit sell order for the given market at rate, sized in
// the market's quote currency.
func (c *Client) Sell(pair string, rate, amount decimal.Decimal) (*OrderResponse, error) {
	return c.placeOrder("sell", pair, rate, amount)
}

func (c *Client) placeOrder(side, pair string, rate, amount decimal.Decimal) (*OrderResponse, error) {
	params := url.Values{}
	params.Set("currencyPair", pair)
	params.Set("rate", rate.String())
	params.Set("amount", amount.String())

	var out OrderResponse
	if err := c.trading(side, params, &out); err != nil {
		return nil, err
	}
	if out.OrderNumber == "" {
		return &out, fmt.Errorf("poloniex returned no order number for %s %s", side, pair)
	}
	return &out, nil
}

// OpenOrders retrieves all resting orders across every market, keyed by
// market symbol.
func (c *Client) OpenOrders() (map[string][]OpenOrder, error) {
	params := url.Values{}
	params.Set("currencyPair", "all")

	var out map[string][]OpenOrder
	if err := c.trading("returnOpenOrders", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelOrder cancels a resting order by its order number.
func (c *Client) CancelOrder(orderNumber string) error {
	params := url.Values{}
	params.Set("orderNumber", orderNumber)

	var out CancelResponse
	if err := c.trading("cancelOrder", params, &out); err != nil {
		return err
	}
	if out.Success != 1 {
		return fmt.Errorf("poloniex reported success=%d cancelling order %s", out.Success, orderNumber)
	}
	return nil
}
