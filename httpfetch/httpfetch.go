// Package httpfetch is the default network transport for the query cache.
// (*Client).Fetch has the cache.FetchFunc shape for V = json.RawMessage.
package httpfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const tracerName = "querycache/httpfetch"

// maxErrorBody bounds how much of a failed response is kept in Error.Body.
const maxErrorBody = 64 << 10

// Error is a non-2xx response. It carries the status code and text the
// upstream answered with, and the (truncated) body.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	StatusText string
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("httpfetch: %s %s: %d %s", e.Method, e.URL, e.StatusCode, e.StatusText)
}

// ErrUnsupportedData is returned when the query data cannot be sent.
var ErrUnsupportedData = errors.New("httpfetch: unsupported query data")

// Client fetches JSON resources relative to a base URL.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	header  http.Header
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its transport is still
// wrapped for tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outgoing requests to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Add(key, value) }
}

// WithLogger sets the logger for failed requests.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client resolving request paths against baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: invalid base url: %w", err)
	}
	c := &Client{
		base:   base,
		header: http.Header{"Accept": {"application/json"}},
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	hc := *c.http
	transport := hc.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	hc.Transport = otelhttp.NewTransport(transport)
	c.http = &hc
	return c, nil
}

// Fetch requests path with data and returns the raw JSON body.
//
// data selects the request shape:
//   - nil: GET
//   - url.Values, map[string]string, map[string][]string: GET with a query string
//   - other string-keyed maps whose values are all scalars: GET with a query string
//   - anything else: POST with data encoded as a JSON body
//
// Non-2xx responses return *Error.
func (c *Client) Fetch(ctx context.Context, path string, data any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "httpfetch.Fetch", trace.WithAttributes(attribute.String("url.path", path)))
	defer span.End()

	body, err := c.fetch(ctx, path, data, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WarnContext(ctx, "fetch failed", slog.String("path", path), slog.Any("error", err))
		return nil, err
	}
	return body, nil
}

func (c *Client) fetch(ctx context.Context, path string, data any, span trace.Span) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, path, data)
	if err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("httpfetch: rate limit wait: %w", err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: %s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
			Body:       b,
		}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: read body: %w", err)
	}
	if len(b) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(b), nil
}

func (c *Client) newRequest(ctx context.Context, path string, data any) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: invalid path %q: %w", path, err)
	}
	u := c.base.ResolveReference(ref)

	method := http.MethodGet
	var body io.Reader
	switch d := data.(type) {
	case nil:
	case url.Values:
		u.RawQuery = mergeQuery(u.Query(), d).Encode()
	case map[string][]string:
		u.RawQuery = mergeQuery(u.Query(), d).Encode()
	case map[string]string:
		q := url.Values{}
		for k, v := range d {
			q.Set(k, v)
		}
		u.RawQuery = mergeQuery(u.Query(), q).Encode()
	default:
		if q, ok := scalarQuery(d); ok {
			u.RawQuery = mergeQuery(u.Query(), q).Encode()
			break
		}
		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedData, err)
		}
		method = http.MethodPost
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: build request: %w", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func mergeQuery(dst url.Values, src map[string][]string) url.Values {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	return dst
}

// scalarQuery encodes a string-keyed map of scalar values as query
// parameters. ok is false when data is not such a map.
func scalarQuery(data any) (url.Values, bool) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	q := make(url.Values, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		e := iter.Value()
		if e.Kind() == reflect.Interface {
			if e.IsNil() {
				return nil, false
			}
			e = e.Elem()
		}
		switch e.Kind() {
		case reflect.String, reflect.Bool,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			q.Set(iter.Key().String(), fmt.Sprint(e.Interface()))
		default:
			return nil, false
		}
	}
	return q, true
}

// statusText returns the reason phrase the server sent, falling back to the
// standard text for the code.
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
