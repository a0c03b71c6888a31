// Package api provides the REST client for the dashboard backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"

	errs "stockdeck/internal/errors"
	"stockdeck/internal/models"
	"stockdeck/pkg/utils"
)

// Client talks to the dashboard backend over REST.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	retryCfg   utils.RetryConfig
}

// ClientConfig holds configuration for the REST client.
type ClientConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
	Retry     *utils.RetryConfig
}

// NewClient creates a new backend client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	retryCfg := utils.DefaultRetryConfig()
	if cfg.Retry != nil {
		retryCfg = *cfg.Retry
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		authToken:  cfg.AuthToken,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
	}
}

// GetInstruments pulls the full (or sector/limit-qualified) instrument list.
func (c *Client) GetInstruments(ctx context.Context, req InstrumentsRequest) ([]models.Instrument, error) {
	vals, err := query.Values(req)
	if err != nil {
		return nil, fmt.Errorf("encoding instruments query: %w", err)
	}

	endpoint := "/api/stocks"
	body, err := c.retryTransient(ctx, func() ([]byte, error) {
		return c.get(ctx, endpoint, vals)
	})
	if err != nil {
		return nil, err
	}

	var instruments []models.Instrument
	if err := json.Unmarshal(body, &instruments); err != nil {
		return nil, errs.NewFetchError(endpoint, 0, fmt.Errorf("%w: %v", errs.ErrMalformedData, err))
	}

	return instruments, nil
}

// Search issues a remote full-text search. Session expiry is returned as-is
// and must not be retried by the caller.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	body, err := c.post(ctx, "/api/search", payload)
	if err != nil {
		return nil, err
	}

	resp, err := decodeSearchResponse(body)
	if err != nil {
		return nil, errs.NewSearchError(req.Query, "decoding response", fmt.Errorf("%w: %v", errs.ErrMalformedData, err))
	}

	return resp, nil
}

// GetInstrumentDetail fetches a single instrument with its price history.
// Consumed by the detail view, not the sync engine.
func (c *Client) GetInstrumentDetail(ctx context.Context, symbol, rng string) (*models.InstrumentDetail, error) {
	vals := url.Values{}
	if rng != "" {
		vals.Set("range", rng)
	}

	endpoint := "/api/stocks/" + url.PathEscape(symbol)
	body, err := c.get(ctx, endpoint, vals)
	if err != nil {
		return nil, err
	}

	var detail models.InstrumentDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, errs.NewFetchError(endpoint, 0, fmt.Errorf("%w: %v", errs.ErrMalformedData, err))
	}

	return &detail, nil
}

// Health probes backend reachability. Used by the connectivity indicator.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, "/api/health", nil)
	return err
}

// retryTransient retries network-level failures with backoff. Auth
// rejections are terminal and returned on the first occurrence.
func (c *Client) retryTransient(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	return utils.RetryWithResultIf(ctx, c.retryCfg, fn, func(err error) bool {
		return !errs.Is(err, errs.ErrSessionExpired)
	})
}

func (c *Client) get(ctx context.Context, endpoint string, vals url.Values) ([]byte, error) {
	u := c.baseURL + endpoint
	if len(vals) > 0 {
		u += "?" + vals.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	return c.do(req, endpoint)
}

func (c *Client) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, endpoint)
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewFetchError(endpoint, 0, fmt.Errorf("%w: %v", errs.ErrConnectionFailed, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewFetchError(endpoint, resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Terminal: the caller must invoke the logout hook, never retry.
		return nil, errs.NewFetchError(endpoint, resp.StatusCode, errs.ErrSessionExpired)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errs.NewFetchError(endpoint, resp.StatusCode, errs.ErrDataNotFound)
	case resp.StatusCode >= 400:
		return nil, errs.NewFetchError(endpoint, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	return body, nil
}
