package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"mcp/src/helpers"
	"mcp/src/logger"
	"mcp/src/models"

	"golang.org/x/time/rate"
)

// -----------------------------------------------------------------------------

type AsyncNetworkManager struct {
	Config  *models.MNetworkConfig
	Client  *http.Client
	Logger  *logger.Logger
	limiter *rate.Limiter
}

// -----------------------------------------------------------------------------

// NewAsyncNetworkManager builds an HTTP manager with retries and a bounded
// per-request timeout. requestsPerMinute <= 0 disables rate limiting.
func NewAsyncNetworkManager(cfg *models.MNetworkConfig, log *logger.Logger, requestsPerMinute int) *AsyncNetworkManager {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
	}

	return &AsyncNetworkManager{
		Config: cfg,
		Logger: log,
		Client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		limiter: limiter,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and backoff.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string, headers map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	return nm.do(ctx, "GET", reqUrl.String(), nil, headers, nm.Config.MaxRetries)
}

// -----------------------------------------------------------------------------

// PostJSON performs a POST request with a JSON body and retries.
func (nm *AsyncNetworkManager) PostJSON(ctx context.Context, urlStr string, body any, headers map[string]string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return nm.do(ctx, "POST", urlStr, payload, headers, nm.Config.MaxRetries)
}

// -----------------------------------------------------------------------------

// PostJSONOnce performs a POST request with a single attempt, no retries.
// Order placement goes through this path: a 5xx or timeout may mean the
// upstream already accepted the request, so re-sending it can repeat the
// side effect.
func (nm *AsyncNetworkManager) PostJSONOnce(ctx context.Context, urlStr string, body any, headers map[string]string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return nm.do(ctx, "POST", urlStr, payload, headers, 0)
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, method, finalUrl string, payload []byte, headers map[string]string, maxRetries int) ([]byte, error) {
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			// Exponential backoff, interruptible
			select {
			case <-time.After(time.Duration(i*i) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := nm.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, finalUrl, bodyReader)
		if err != nil {
			return nil, err
		}

		if nm.Config.UserAgent != "" {
			req.Header.Set("User-Agent", nm.Config.UserAgent)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := nm.Client.Do(req)
		if err != nil {
			lastErr = err
			nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = helpers.NewUpstreamError(fmt.Sprintf("%s %s", method, finalUrl), resp.StatusCode, string(body))
			nm.Logger.Info("Bad status %d (attempt %d/%d)", resp.StatusCode, i+1, maxRetries+1)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			// Client errors are not retried
			return nil, helpers.NewUpstreamError(fmt.Sprintf("%s %s", method, finalUrl), resp.StatusCode, string(body))
		}

		if readErr != nil {
			lastErr = readErr
			continue
		}

		return body, nil
	}

	if maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
