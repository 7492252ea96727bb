package neuralquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

// Client talks to a NeuralQuery server over HTTP. Safe for concurrent use.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
	obs    *observer
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8000".
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("neuralquery: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("neuralquery: base url %q must be http or https", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, fmt.Errorf("neuralquery: init observability: %w", err)
	}

	return &Client{base: u, apiKey: cfg.apiKey, http: hc, obs: obs}, nil
}

// SearchOption tunes a single Search call.
type SearchOption func(*searchBody)

// WithTopK asks for k results. Without it the server default applies.
// Out-of-range values are sent as-is and rejected by the server.
func WithTopK(k int) SearchOption {
	return func(b *searchBody) { b.TopK = &k }
}

// Search runs a semantic query.
func (c *Client) Search(ctx context.Context, query string, opts ...SearchOption) (_ *SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	body := searchBody{Query: query}
	for _, o := range opts {
		o(&body)
	}
	var out SearchResult
	if err := c.do(ctx, http.MethodPost, "/search", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches the health report. An unhealthy server answers 503 with the
// same body, which is returned together with an ErrUnavailable error.
func (c *Client) Health(ctx context.Context) (_ Health, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	var h Health
	err = c.do(ctx, http.MethodGet, "/health", nil, &h)
	return h, err
}

// Info fetches the service identity.
func (c *Client) Info(ctx context.Context) (_ Info, err error) {
	start := time.Now()
	defer func() { c.obs.observe("info", start, err) }()

	var info Info
	err = c.do(ctx, http.MethodGet, "/", nil, &info)
	return info, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("neuralquery: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("neuralquery: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("neuralquery: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp, out)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("neuralquery: decode %s response: %w", path, err)
	}
	return nil
}

// decodeError builds an APIError. A 503 health body still decodes into out.
func decodeError(resp *http.Response, out any) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Code != "" {
		apiErr.Code = eb.Code
		apiErr.Message = eb.Message
		apiErr.Fields = eb.Fields
		return apiErr
	}

	if h, ok := out.(*Health); ok && json.Unmarshal(raw, h) == nil && h.Status != "" {
		apiErr.Message = "service " + h.Status
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

