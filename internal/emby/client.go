package emby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"embymerge/internal/config"
	"embymerge/internal/logging"
	"embymerge/internal/media"
	"embymerge/internal/services"
)

const (
	itemsPath         = "/emby/Items"
	mergeVersionsPath = "/emby/Videos/MergeVersions"
	systemInfoPath    = "/emby/System/Info"
)

// HTTPDoer describes the HTTP client used by the Emby client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestObserver receives the outcome of every outbound request. status is
// zero when the request failed before a response arrived.
type RequestObserver func(operation string, status int, elapsed time.Duration)

// Client issues library queries and merge commands against one Emby server.
type Client struct {
	baseURL   string
	apiKey    string
	itemTypes []string
	headers   http.Header
	client    HTTPDoer
	observe   RequestObserver
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithItemTypes overrides the IncludeItemTypes filter (default Movie).
func WithItemTypes(types ...string) Option {
	return func(c *Client) {
		if len(types) > 0 {
			c.itemTypes = append([]string(nil), types...)
		}
	}
}

// WithObserver registers a callback invoked after every request.
func WithObserver(observer RequestObserver) Option {
	return func(c *Client) {
		c.observe = observer
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "emby")
		}
	}
}

// New constructs a client for baseURL. The API key is forwarded verbatim as
// the api_key query parameter.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:    strings.TrimSpace(apiKey),
		itemTypes: []string{"Movie"},
		headers:   http.Header{"Accept": []string{"application/json"}},
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the process configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	timeout := time.Duration(cfg.Emby.RequestTimeout) * time.Second
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: timeout}),
		WithItemTypes(cfg.Merge.ItemTypes...),
	}
	return New(cfg.Emby.BaseURL, cfg.Emby.APIKey, append(base, opts...)...)
}

// Items lists library items. A nil filter lists every item of the configured
// types; otherwise only items carrying the given provider id are returned.
func (c *Client) Items(ctx context.Context, filter *media.IdentityKey) ([]media.LibraryItem, error) {
	params := url.Values{}
	params.Set("Recursive", "true")
	params.Set("Fields", "ProviderIds,Path")
	params.Set("IncludeItemTypes", strings.Join(c.itemTypes, ","))
	if filter != nil && !filter.IsZero() {
		params.Set("AnyProviderIdEquals", filter.String())
	}

	resp, err := c.do(ctx, "items", http.MethodGet, itemsPath, params)
	if err != nil {
		return nil, services.Wrap(services.ErrQuery, "emby", "list items", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrQuery, "emby", "list items", statusDetail(resp), nil)
	}

	var payload ItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrQuery, "emby", "list items", "decode response", err)
	}

	items := make([]media.LibraryItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, media.LibraryItem{
			ID:          item.ID,
			Name:        item.Name,
			Path:        item.Path,
			ProviderIDs: item.ProviderIDs,
		})
	}
	c.logger.Debug("library items listed",
		logging.Int("count", len(items)),
		logging.String("filter", params.Get("AnyProviderIdEquals")),
	)
	return items, nil
}

// MergeVersions asks Emby to combine two items into one multi-version entry.
// Any 2xx status counts as success.
func (c *Client) MergeVersions(ctx context.Context, firstID, secondID string) error {
	params := url.Values{}
	params.Set("Ids", firstID+","+secondID)

	resp, err := c.do(ctx, "merge", http.MethodPost, mergeVersionsPath, params)
	if err != nil {
		return services.Wrap(services.ErrMerge, "emby", "merge versions", "", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return services.Wrap(services.ErrMerge, "emby", "merge versions", statusDetail(resp), nil)
	}
	return nil
}

// SystemInfo fetches server identity; used to verify reachability and the API key.
func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	resp, err := c.do(ctx, "system_info", http.MethodGet, systemInfoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch system info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("system info returned %d", resp.StatusCode)
	}
	var info SystemInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode system info: %w", err)
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, params url.Values) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: emby base url not configured", services.ErrConfiguration)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.record(operation, 0, elapsed)
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redactAPIKey(urlErr.URL)
		}
		return nil, fmt.Errorf("execute request (latency=%v): %w", elapsed, err)
	}
	c.record(operation, resp.StatusCode, elapsed)
	return resp, nil
}

func (c *Client) record(operation string, status int, elapsed time.Duration) {
	if c.observe != nil {
		c.observe(operation, status, elapsed)
	}
}

func statusDetail(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := fmt.Sprintf("emby returned %d", resp.StatusCode)
	if text := strings.TrimSpace(string(body)); text != "" {
		detail += ": " + text
	}
	return detail
}

// redactAPIKey masks the api_key query parameter so request errors can be logged.
func redactAPIKey(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	query := parsed.Query()
	if query.Get("api_key") == "" {
		return raw
	}
	query.Set("api_key", "REDACTED")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
