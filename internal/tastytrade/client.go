// Package tastytrade is a small client for the brokerage REST API: session
// login, streaming quote tokens and instrument lookups.
package tastytrade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client interface for testability
type Client interface {
	Login(ctx context.Context, username, password string) error
	QuoteToken(ctx context.Context) (*QuoteToken, error)
	Equity(ctx context.Context, symbol string) (*Equity, error)
	OptionChain(ctx context.Context, symbol string) (Chain, error)
}

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger

	mu           sync.RWMutex
	sessionToken string
}

// Compile-time interface verification
var _ Client = (*HTTPClient)(nil)

func NewClient(baseURL string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Login creates a session and keeps its token for later calls.
func (c *HTTPClient) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(sessionRequest{Login: username, Password: password, RememberMe: true})
	if err != nil {
		return fmt.Errorf("encoding session request: %w", err)
	}

	var resp envelope[sessionData]
	if err := c.do(ctx, http.MethodPost, "/sessions", body, false, &resp); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	if resp.Data.SessionToken == "" {
		return ErrAuthFailed
	}

	c.mu.Lock()
	c.sessionToken = resp.Data.SessionToken
	c.mu.Unlock()

	c.logger.Info("session created", zap.String("user", resp.Data.User.Username))
	return nil
}

func (c *HTTPClient) QuoteToken(ctx context.Context) (*QuoteToken, error) {
	var resp envelope[QuoteToken]
	if err := c.do(ctx, http.MethodGet, "/api-quote-tokens", nil, true, &resp); err != nil {
		return nil, fmt.Errorf("fetching quote token: %w", err)
	}
	return &resp.Data, nil
}

func (c *HTTPClient) Equity(ctx context.Context, symbol string) (*Equity, error) {
	var resp envelope[Equity]
	if err := c.do(ctx, http.MethodGet, "/instruments/equities/"+url.PathEscape(symbol), nil, true, &resp); err != nil {
		return nil, fmt.Errorf("fetching equity %s: %w", symbol, err)
	}
	return &resp.Data, nil
}

// OptionChain returns every option on symbol grouped by expiration date.
func (c *HTTPClient) OptionChain(ctx context.Context, symbol string) (Chain, error) {
	var resp envelope[itemsData[Option]]
	if err := c.do(ctx, http.MethodGet, "/option-chains/"+url.PathEscape(symbol), nil, true, &resp); err != nil {
		return nil, fmt.Errorf("fetching option chain %s: %w", symbol, err)
	}

	chain := make(Chain)
	for _, opt := range resp.Data.Items {
		exp, err := opt.Expiration()
		if err != nil {
			c.logger.Warn("skipping option with bad expiration",
				zap.String("symbol", opt.Symbol),
				zap.String("expiration", opt.ExpirationDate),
			)
			continue
		}
		chain[exp] = append(chain[exp], opt)
	}

	c.logger.Debug("option chain loaded",
		zap.String("symbol", symbol),
		zap.Int("options", len(resp.Data.Items)),
		zap.Int("expirations", len(chain)),
	)
	return chain, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, auth bool, out any) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var token string
	if auth {
		c.mu.RLock()
		token = c.sessionToken
		c.mu.RUnlock()
		if token == "" {
			return ErrNoSession
		}
	}

	target := c.baseURL + path
	c.logger.Debug("requesting", zap.String("method", method), zap.String("url", target))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "tastygex/1.0")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Read body before closing for error messages
		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return ErrAuthFailed
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
