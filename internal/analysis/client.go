package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/metrics"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("analysis http %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis http %d: %s", e.StatusCode, b)
}

// errCallerDone marks attempts cut short by the caller's own context.
var errCallerDone = errors.New("caller context done")

// retryable reports whether a failed attempt is worth repeating.
func retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= 500
	}
	return !errors.Is(err, ErrMalformed) && !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Client talks to the remote risk-analysis backend.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	maxRetries   int
	retryBackoff time.Duration
	budget       time.Duration
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker
	metrics      *metrics.Metrics
	logger       *logrus.Logger
}

type ClientConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// RPS caps outbound requests per second; zero disables limiting.
	RPS float64
	// BreakerFailures is the consecutive failure count that opens the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
	Metrics         *metrics.Metrics
	Logger          *logrus.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("analysis base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse analysis base url: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultAnalysisTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	c := &Client{
		httpClient:   httpClient,
		baseURL:      base,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		budget:       callBudget(httpClient.Timeout, cfg.MaxRetries, cfg.RetryBackoff),
		limiter:      limiter,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}

	failures := cfg.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analysis",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// client errors and callers giving up say nothing about backend health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerDone) || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("analysis circuit breaker state changed")
			c.metrics.BreakerStateChanged(to.String())
		},
	})

	return c, nil
}

// CallBudget is the longest a single call may take with every retry used:
// each attempt's timeout plus the doubling backoff between attempts.
func (c *Client) CallBudget() time.Duration {
	return c.budget
}

func callBudget(timeout time.Duration, retries int, backoff time.Duration) time.Duration {
	if retries < 0 {
		retries = 0
	}
	total := timeout * time.Duration(retries+1)
	for i := 0; i < retries; i++ {
		total += backoff
		backoff *= 2
	}
	return total
}

// CodeAnalysis fetches the static scam-pattern analysis of a token contract.
func (c *Client) CodeAnalysis(ctx context.Context, token common.Address) (*models.CodeAnalysis, error) {
	body, err := c.get(ctx, constants.PathAnalyseCode, token)
	if err != nil {
		return nil, err
	}
	return parseCodeAnalysis(body)
}

// TradeSimulation fetches a simulated buy/sell round trip for a token.
func (c *Client) TradeSimulation(ctx context.Context, token common.Address) (*models.TradeSimulation, error) {
	body, err := c.get(ctx, constants.PathSimulateBuy, token)
	if err != nil {
		return nil, err
	}
	return parseTradeSimulation(body)
}

// HolderCount fetches the current number of token holders.
func (c *Client) HolderCount(ctx context.Context, token common.Address) (int, error) {
	body, err := c.get(ctx, constants.PathHoldersNumber, token)
	if err != nil {
		return 0, err
	}
	return parseHolderCount(body)
}

// LastLaunch fetches the most recent launch known to the backend.
func (c *Client) LastLaunch(ctx context.Context) (*models.LaunchRecord, error) {
	body, err := c.get(ctx, constants.PathLastLaunch, common.Address{})
	if err != nil {
		return nil, err
	}
	return parseLaunch(body)
}

func (c *Client) get(ctx context.Context, endpoint string, token common.Address) ([]byte, error) {
	u := c.baseURL + "/" + endpoint
	if token != (common.Address{}) {
		q := url.Values{}
		q.Set("tokenAddress", token.Hex())
		u += "?" + q.Encode()
	}

	start := time.Now()
	body, err := c.getWithRetry(ctx, endpoint, u)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.AnalysisCall(endpoint, outcome, time.Since(start))
	return body, err
}

func (c *Client) getWithRetry(ctx context.Context, endpoint, u string) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt":  attempt,
				"backoff":  backoff,
				"endpoint": endpoint,
			}).Debug("retrying analysis call")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		out, err := c.breaker.Execute(func() (interface{}, error) {
			body, err := c.doRequest(ctx, u)
			if err != nil && ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errCallerDone, ctx.Err())
			}
			return body, err
		})
		if err == nil {
			return out.([]byte), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, &HTTPError{StatusCode: resp.StatusCode, Body: body})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}
