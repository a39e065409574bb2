package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gradus/internal/interfaces"
	"github.com/ternarybob/gradus/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the search provider API.
	DefaultBaseURL = "https://serpapi.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerMinute is the default account-wide request
	// budget against the provider.
	DefaultRequestsPerMinute = 60

	// DefaultSearchDepth is the number of organic results requested
	// per search. Detected ranks are bounded by this depth.
	DefaultSearchDepth = 100

	// rateWindow is the provider's quota window. The token bucket
	// refills its full capacity once per window, computed lazily from
	// elapsed wall-clock time rather than a background timer, and
	// starts full on cold start.
	rateWindow = time.Minute
)

// engine names per search mode
var modeEngines = map[models.SearchMode]string{
	models.SearchModeStandard:       "google",
	models.SearchModeAIPanel:        "google_ai_mode",
	models.SearchModeConversational: "google_ai_chat",
}

// Client is an asynchronous search provider client. It owns the
// process-wide rate limiter: every start and check call acquires a
// token before touching the network, so the budget is enforced
// account-wide rather than per job.
type Client struct {
	baseURL         string
	apiKey          string
	searchDepth     int
	competitorCount int
	httpClient      *http.Client
	logger          arbor.ILogger
	limiter         *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the requests-per-minute budget. The bucket holds
// the full budget as burst capacity so a cold start is never throttled.
func WithRateLimit(requestsPerMinute int) ClientOption {
	return func(c *Client) {
		if requestsPerMinute > 0 {
			c.limiter = rate.NewLimiter(rate.Every(rateWindow/time.Duration(requestsPerMinute)), requestsPerMinute)
		}
	}
}

// WithSearchDepth sets how many organic results each search requests.
func WithSearchDepth(depth int) ClientOption {
	return func(c *Client) {
		if depth > 0 {
			c.searchDepth = depth
		}
	}
}

// WithCompetitorCount sets how many top entries are recorded per result.
func WithCompetitorCount(count int) ClientOption {
	return func(c *Client) {
		if count > 0 {
			c.competitorCount = count
		}
	}
}

// NewClient creates a new search provider client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:         DefaultBaseURL,
		apiKey:          apiKey,
		searchDepth:     DefaultSearchDepth,
		competitorCount: defaultCompetitorCount,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(rateWindow/DefaultRequestsPerMinute), DefaultRequestsPerMinute),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// StartSearch submits the provider's asynchronous search variant and
// returns the opaque tracking handle. The response must carry the
// handle field; a payload without it is an explicit error rather than
// a silently empty result.
func (c *Client) StartSearch(ctx context.Context, req *interfaces.SearchRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	params := url.Values{}
	params.Set("q", req.Keyword)
	params.Set("engine", engineForMode(req.Mode))
	params.Set("num", strconv.Itoa(c.searchDepth))
	params.Set("async", "true")
	if req.Location != "" {
		params.Set("location", req.Location)
	}
	if req.Device != "" {
		params.Set("device", string(req.Device))
	}

	var resp startResponse
	if err := c.get(ctx, "/search.json", params, &resp); err != nil {
		return "", err
	}

	if resp.SearchMetadata == nil || resp.SearchMetadata.ID == "" {
		return "", fmt.Errorf("serp: start response missing tracking handle for keyword %q", req.Keyword)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("keyword", req.Keyword).
			Str("handle", resp.SearchMetadata.ID).
			Str("mode", string(req.Mode)).
			Msg("Search submitted")
	}

	return resp.SearchMetadata.ID, nil
}

// CheckSearch reads the point-in-time state of a tracking handle.
// Three outcomes are possible: the provider is still computing
// (pending), a result payload arrived (complete, parsed per the job's
// search mode), or the provider reported an error (failed, with the
// reason captured for diagnostics).
func (c *Client) CheckSearch(ctx context.Context, handle, targetSite string, mode models.SearchMode) (*interfaces.CheckOutcome, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if handle == "" {
		return nil, &APIError{StatusCode: 400, Message: "empty tracking handle", Endpoint: "/searches"}
	}

	var payload searchPayload
	if err := c.get(ctx, "/searches/"+handle+".json", nil, &payload); err != nil {
		return nil, err
	}

	if payload.SearchMetadata == nil {
		return nil, fmt.Errorf("serp: check response missing search metadata for handle %s", handle)
	}

	switch payload.SearchMetadata.Status {
	case statusQueued, statusProcessing:
		return &interfaces.CheckOutcome{Status: interfaces.CheckPending}, nil
	case statusError:
		reason := payload.SearchMetadata.Error
		if reason == "" {
			reason = "provider reported an unspecified error"
		}
		return &interfaces.CheckOutcome{Status: interfaces.CheckFailed, Reason: reason}, nil
	case statusSuccess:
		result := parsePayload(&payload, targetSite, mode, c.competitorCount)
		return &interfaces.CheckOutcome{Status: interfaces.CheckComplete, Result: result}, nil
	default:
		return &interfaces.CheckOutcome{
			Status: interfaces.CheckFailed,
			Reason: fmt.Sprintf("unexpected provider status %q", payload.SearchMetadata.Status),
		}, nil
	}
}

// get performs a rate-limited GET request against the provider API.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("serp: rate limiter wait aborted: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("serp: failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("serp: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("serp: failed to decode response: %w", err)
	}

	return nil
}

func engineForMode(mode models.SearchMode) string {
	if engine, ok := modeEngines[mode]; ok {
		return engine
	}
	return modeEngines[models.SearchModeStandard]
}
