// Package okx implements the exchange connector: a signed REST client for
// order placement and account queries, and a streaming client for public
// and private market/account channels.
package okx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// EndpointClass buckets REST endpoints for independent rate limiting,
// matching OKX's own per-endpoint-class limits.
type EndpointClass string

const (
	ClassTrade    EndpointClass = "trade"    // place/cancel/amend order
	ClassAccount  EndpointClass = "account"  // balances, positions
	ClassMarket   EndpointClass = "market"   // public instrument/ticker queries
)

// Credentials holds the OKX API key triple used to sign private requests.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// RESTClient is a signed HTTP client for the OKX REST API. Every request
// class is independently rate limited with a token bucket, matching the
// exchange's own per-class limits rather than a single global delay.
type RESTClient struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	limiters map[EndpointClass]*rate.Limiter
}

// NewRESTClient constructs a client against baseURL (the live or
// demo-trading OKX REST origin).
func NewRESTClient(creds Credentials, baseURL string, log zerolog.Logger) *RESTClient {
	return &RESTClient{
		creds:      creds,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "okx.RESTClient").Logger(),
		limiters: map[EndpointClass]*rate.Limiter{
			ClassTrade:   rate.NewLimiter(rate.Every(time.Second/60), 30),
			ClassAccount: rate.NewLimiter(rate.Every(time.Second/10), 10),
			ClassMarket:  rate.NewLimiter(rate.Every(time.Second/20), 20),
		},
	}
}

// Do issues a signed request of the given endpoint class. body is
// marshalled to JSON; a nil body sends an empty JSON object, matching
// OKX's signing requirement that GET requests with no query string still
// sign against "{}".
func (c *RESTClient) Do(ctx context.Context, class EndpointClass, method, path string, body interface{}, out interface{}) error {
	limiter, ok := c.limiters[class]
	if !ok {
		return domain.NewError(domain.ErrInvalidInput, fmt.Sprintf("unknown endpoint class %q", class))
	}
	if err := limiter.Wait(ctx); err != nil {
		return domain.Wrap(domain.ErrRateLimited, "rate limiter wait cancelled", err)
	}

	payload := []byte("{}")
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return domain.Wrap(domain.ErrInvalidInput, "failed to marshal request body", err)
		}
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	prehash := timestamp + method + path + string(payload)
	signature := c.sign(prehash)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return domain.Wrap(domain.ErrNetworkError, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", c.creds.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", signature)
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.creds.Passphrase)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Wrap(domain.ErrNetworkError, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Wrap(domain.ErrNetworkError, "failed to read response", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.NewRateLimited(1)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return domain.NewError(domain.ErrAuthError, "okx rejected credentials")
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.NewError(domain.ErrExchangeUnavailable, fmt.Sprintf("okx returned %d", resp.StatusCode))
	}

	var envelope struct {
		Code string          `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.Wrap(domain.ErrNetworkError, "failed to decode envelope", err)
	}
	if envelope.Code != "0" {
		return domain.NewExchangeReject(envelope.Code, envelope.Msg)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return domain.Wrap(domain.ErrNetworkError, "failed to decode data", err)
		}
	}
	return nil
}

// sign computes the base64-encoded HMAC-SHA256 signature OKX requires on
// every private request.
func (c *RESTClient) sign(prehash string) string {
	mac := hmac.New(sha256.New, []byte(c.creds.APISecret))
	mac.Write([]byte(prehash))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
