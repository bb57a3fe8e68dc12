// Package dictionary provides a client for a remote biomarker dictionary
// service used as a fallback resolver for names the local standardization
// table does not recognize.
package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/biomarker-insight-server/internal/config"
)

// Client queries a remote biomarker dictionary API. Lookups are rate
// limited, guarded by a circuit breaker, and cached so repeated unknown
// names do not hammer the upstream service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	cache      *lru.Cache[string, resolution]
	log        *logrus.Logger
}

// resolution caches both hits and misses; a cached miss is as useful as
// a cached hit when the same unrecognized name appears on every report.
type resolution struct {
	Code  string
	Found bool
}

// lookupResponse is the JSON shape returned by the dictionary API.
type lookupResponse struct {
	Matches []struct {
		Code          string  `json:"code"`
		CanonicalName string  `json:"canonical_name"`
		Score         float64 `json:"score"`
	} `json:"matches"`
}

// NewClient creates a dictionary client from configuration.
func NewClient(cfg config.DictionaryConfig, logger *logrus.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("dictionary base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RateLimit
	if rps == 0 {
		rps = 5
	}
	cacheSize := cfg.CacheSize
	if cacheSize == 0 {
		cacheSize = 1000
	}

	cache, err := lru.New[string, resolution](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating dictionary cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "biomarker-dictionary",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Dictionary circuit breaker state changed")
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(rps), 1),
		breaker:   breaker,
		cache:     cache,
		log:       logger,
	}, nil
}

// Resolve looks up a biomarker name and returns its canonical code.
// Returns ok=false without error when the dictionary has no match.
func (c *Client) Resolve(ctx context.Context, name string) (string, bool, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", false, nil
	}

	if cached, ok := c.cache.Get(key); ok {
		return cached.Code, cached.Found, nil
	}

	if err := c.rateLimit.Wait(ctx); err != nil {
		return "", false, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.lookup(ctx, key)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			c.log.WithField("name", name).Warn("Dictionary lookup skipped, circuit breaker open")
			return "", false, nil
		}
		return "", false, fmt.Errorf("dictionary lookup for %q: %w", name, err)
	}

	res := result.(resolution)
	c.cache.Add(key, res)
	return res.Code, res.Found, nil
}

func (c *Client) lookup(ctx context.Context, name string) (resolution, error) {
	params := url.Values{
		"q":     {name},
		"limit": {"1"},
	}
	lookupURL := fmt.Sprintf("%s/v1/biomarkers/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return resolution{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return resolution{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resolution{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resolution{}, fmt.Errorf("dictionary API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resolution{}, fmt.Errorf("reading response body: %w", err)
	}

	var parsed lookupResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return resolution{}, fmt.Errorf("parsing JSON response: %w", err)
	}

	if len(parsed.Matches) == 0 {
		return resolution{}, nil
	}
	return resolution{Code: parsed.Matches[0].Code, Found: true}, nil
}

// State reports the current circuit breaker state for health endpoints.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}
