package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lydakis/coex/internal/httpheaders"
)

const (
	maxResponseBytes = 64 << 20
	maxErrorBody     = 512
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Endpoint is the immutable target of a Client.
type Endpoint struct {
	URL           string
	Timeout       time.Duration
	Authorization string            // full Authorization header value, empty for none
	Headers       map[string]string // extra headers sent with every request
}

// Client issues JSON-RPC 1.1 calls over HTTP POST, one round trip per call.
// It holds no mutable state and is safe for concurrent use.
type Client struct {
	endpoint Endpoint
	headers  map[string]string
	doer     Doer
	newID    func() string
}

// Option customizes a Client.
type Option func(*Client)

// WithDoer replaces the HTTP transport.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.doer = d
		}
	}
}

// WithIDFunc replaces the request id generator.
func WithIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewClient creates a client for ep. The endpoint is copied, so later changes
// to ep.Headers do not affect the client.
func NewClient(ep Endpoint, opts ...Option) *Client {
	ep.Headers = httpheaders.Clone(ep.Headers)

	c := &Client{
		endpoint: ep,
		headers:  ep.RequestHeaders(),
		doer:     http.DefaultClient,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestHeaders returns the headers sent with every request, Authorization
// included.
func (ep Endpoint) RequestHeaders() map[string]string {
	headers := httpheaders.Clone(ep.Headers)
	if ep.Authorization != "" {
		headers = httpheaders.Set(headers, httpheaders.Authorization, ep.Authorization)
	}
	return headers
}

// Endpoint returns a copy of the client's endpoint.
func (c *Client) Endpoint() Endpoint {
	ep := c.endpoint
	ep.Headers = httpheaders.Clone(c.endpoint.Headers)
	return ep
}

// Call invokes method with params and decodes the result member into result.
// result may be nil when the caller does not need the payload.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(Request{
		Method:  method,
		Params:  params,
		Version: Version,
		ID:      c.newID(),
	})
	if err != nil {
		return &ArgumentValidationError{
			Function: method,
			Count:    len(params),
			Reason:   fmt.Sprintf("encoding params: %v", err),
		}
	}

	if c.endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.endpoint.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return &HTTPError{Method: method, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	httpheaders.Apply(req.Header, c.headers)

	resp, err := c.doer.Do(req)
	if err != nil {
		return &HTTPError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &HTTPError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Status:     statusLine(resp),
			Err:        fmt.Errorf("reading response: %w", err),
		}
	}

	if IsSystemMethod(method) {
		return decodeSystem(method, resp, data, result)
	}
	return decode(method, resp, data, result)
}

func decode(method string, resp *http.Response, data []byte, result any) error {
	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	if !success {
		if isJSON(resp.Header.Get("Content-Type")) {
			var parsed Response
			if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error != nil {
				return newJSONRPCError(method, parsed.Error)
			}
		}
		return transportError(method, resp, data)
	}

	var parsed Response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return &HTTPError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Status:     statusLine(resp),
			Body:       truncate(data),
			Err:        fmt.Errorf("decoding response: %w", err),
		}
	}
	if parsed.Error != nil {
		return newJSONRPCError(method, parsed.Error)
	}
	if len(parsed.Result) == 0 {
		return &JSONRPCError{
			Method:  method,
			Name:    "Unknown",
			Message: "An unknown server error occurred",
		}
	}
	return decodeResult(method, resp, parsed.Result, result)
}

// decodeSystem handles introspection methods, whose bodies may be bare values
// and whose errors are not translated.
func decodeSystem(method string, resp *http.Response, data []byte, result any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transportError(method, resp, data)
	}
	if !hasResultField(data) {
		return decodeResult(method, resp, data, result)
	}
	var parsed Response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return transportError(method, resp, data)
	}
	return decodeResult(method, resp, parsed.Result, result)
}

func decodeResult(method string, resp *http.Response, raw json.RawMessage, result any) error {
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return &HTTPError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Status:     statusLine(resp),
			Body:       truncate(raw),
			Err:        fmt.Errorf("decoding result: %w", err),
		}
	}
	return nil
}

func transportError(method string, resp *http.Response, data []byte) *HTTPError {
	return &HTTPError{
		Method:     method,
		StatusCode: resp.StatusCode,
		Status:     statusLine(resp),
		Body:       truncate(data),
	}
}

func statusLine(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return fmt.Sprintf("%d %s", resp.StatusCode, text)
	}
	return fmt.Sprintf("%d", resp.StatusCode)
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func truncate(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
