// Package connectors talks to the broker REST API. Only the read-only calls
// needed to check that a trading run can start are implemented.
package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"alchemiser/src/classifier"
	"alchemiser/src/failure"
	"alchemiser/src/model"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second

	codeStaleQuote  = "STALE_QUOTE"
	codeMissingKeys = "MISSING_CREDENTIALS"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMissingCredentials is returned by signed calls when no key pair is configured.
var ErrMissingCredentials = failure.New(model.CategoryConfiguration, codeMissingKeys, "broker API key and secret are required")

type APIResponse struct {
	Code int                 `json:"code"`
	Msg  string              `json:"msg"`
	Data jsoniter.RawMessage `json:"data"`
}

type mdResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Result jsoniter.RawMessage `json:"result"`
}

// Quote is the latest trade price of a symbol.
type Quote struct {
	Symbol    string
	Last      decimal.Decimal
	Timestamp time.Time
}

type Client struct {
	name      string
	apiKey    string
	apiSecret string
	http      *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BrokerBaseURL
	if baseURL == "" {
		baseURL = "https://testnet-api.phemex.com"
		logger.Warnf("No broker base URL provided, using default: %s", baseURL)
	}
	timeout := cfg.BrokerTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &Client{
		name:      cfg.BrokerName,
		apiKey:    cfg.BrokerAPIKey,
		apiSecret: cfg.BrokerAPISecret,
		http:      httpClient,
	}
}

func signRequest(path, query, body string, expiry int64, secret string) string {
	base := path + query + strconv.FormatInt(expiry, 10) + body
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

// ServerTime checks the public API answers.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/public/time")
	if err != nil {
		return time.Time{}, failure.WrapTransient(err, model.CategoryData, classifier.CodeNetwork)
	}
	api, err := c.decode(resp)
	if err != nil {
		return time.Time{}, err
	}
	var data struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(api.Data, &data); err != nil {
		return time.Time{}, fmt.Errorf("decode server time: %w", err)
	}
	return time.UnixMilli(data.ServerTime).UTC(), nil
}

// LastPrice returns the latest trade price. A zero or missing price is a DATA failure.
func (c *Client) LastPrice(ctx context.Context, symbol string) (Quote, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		Get("/md/v3/ticker/24hr")
	if err != nil {
		return Quote{}, failure.WrapTransient(err, model.CategoryData, classifier.CodeNetwork)
	}
	if resp.StatusCode() != http.StatusOK {
		return Quote{}, c.httpError(resp)
	}

	var md mdResponse
	if err := json.Unmarshal(resp.Body(), &md); err != nil {
		return Quote{}, fmt.Errorf("decode ticker: %w", err)
	}
	if md.Error != nil {
		return Quote{}, &classifier.ExchangeError{Exchange: c.name, Code: md.Error.Code, Message: md.Error.Message}
	}

	var ticker struct {
		Symbol    string `json:"symbol"`
		LastRp    string `json:"lastRp"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(md.Result, &ticker); err != nil {
		return Quote{}, fmt.Errorf("decode ticker result: %w", err)
	}
	last, err := decimal.NewFromString(ticker.LastRp)
	if err != nil || !last.IsPositive() {
		return Quote{}, failure.Wrap(
			fmt.Errorf("no usable last price for %s: %q", symbol, ticker.LastRp),
			model.CategoryData, codeStaleQuote)
	}
	return Quote{
		Symbol:    ticker.Symbol,
		Last:      last,
		Timestamp: time.Unix(0, ticker.Timestamp).UTC(),
	}, nil
}

// CheckAccount makes a signed call so bad credentials surface before trading.
func (c *Client) CheckAccount(ctx context.Context) error {
	if c.apiKey == "" || c.apiSecret == "" {
		return ErrMissingCredentials
	}
	const path, query = "/g-accounts/positions", "currency=USDT"
	expiry := time.Now().Add(1 * time.Minute).Unix()

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-phemex-access-token", c.apiKey).
		SetHeader("x-phemex-request-expiry", strconv.FormatInt(expiry, 10)).
		SetHeader("x-phemex-request-signature", signRequest(path, query, "", expiry, c.apiSecret)).
		SetQueryString(query).
		Get(path)
	if err != nil {
		return failure.WrapTransient(err, model.CategoryData, classifier.CodeNetwork)
	}
	_, err = c.decode(resp)
	return err
}

// decode turns HTTP failures and non-zero biz codes into *classifier.ExchangeError.
func (c *Client) decode(resp *resty.Response) (*APIResponse, error) {
	if resp.StatusCode() != http.StatusOK {
		return nil, c.httpError(resp)
	}
	var api APIResponse
	if err := json.Unmarshal(resp.Body(), &api); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", c.name, err)
	}
	if api.Code != 0 {
		return nil, &classifier.ExchangeError{Exchange: c.name, Code: api.Code, Message: api.Msg, HTTPStatus: resp.StatusCode()}
	}
	return &api, nil
}

func (c *Client) httpError(resp *resty.Response) error {
	var api APIResponse
	if err := json.Unmarshal(resp.Body(), &api); err == nil && api.Code != 0 {
		return &classifier.ExchangeError{Exchange: c.name, Code: api.Code, Message: api.Msg, HTTPStatus: resp.StatusCode()}
	}
	return &classifier.ExchangeError{
		Exchange:   c.name,
		Message:    fmt.Sprintf("HTTP %d", resp.StatusCode()),
		HTTPStatus: resp.StatusCode(),
	}
}
