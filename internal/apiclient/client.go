// Package apiclient talks to the catalog and calculation engine over
// JSON/HTTP. A Client satisfies selection.Lister, schema.Fetcher and
// calculation.Engine.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/rshade/tcocalc/internal/cache"
	"github.com/rshade/tcocalc/internal/logging"
)

const (
	tracerName      = "github.com/rshade/tcocalc/internal/apiclient"
	maxResponseSize = 8 << 20

	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 15 * time.Second
)

// Sentinel errors.
var (
	ErrAPI                 = errors.New("engine API error")
	ErrIncompatibleVersion = errors.New("incompatible engine API version")
)

// APIError is a failed exchange with the engine.
type APIError struct {
	Method  string
	Route   string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Route, e.Message)
	}
	return fmt.Sprintf("%s %s failed status=%d: %s", e.Method, e.Route, e.Status, e.Message)
}

// StatusCode returns the HTTP status, 0 when none was received.
func (e *APIError) StatusCode() int { return e.Status }

// Is matches ErrAPI.
func (e *APIError) Is(target error) bool { return target == ErrAPI }

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	cache   cache.Store
	tracer  trace.Tracer

	constraint *semver.Constraints
	strict     bool

	warnOnce sync.Once
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		c.http = hc
		return nil
	}
}

// WithCache caches successful GET payloads.
func WithCache(store cache.Store) Option {
	return func(c *Client) error {
		c.cache = store
		return nil
	}
}

// WithVersionConstraint checks the engine's X-API-Version header against
// constraint. In strict mode a mismatch fails the call; otherwise it is
// logged once.
func WithVersionConstraint(constraint string, strict bool) Option {
	return func(c *Client) error {
		if strings.TrimSpace(constraint) == "" {
			return nil
		}
		cons, err := semver.NewConstraint(constraint)
		if err != nil {
			return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
		}
		c.constraint = cons
		c.strict = strict
		return nil
	}
}

// WithTracerProvider sets the provider spans are created from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) error {
		c.tracer = tp.Tracer(tracerName)
		return nil
	}
}

// New returns a Client for baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// getData performs a GET and returns the envelope's data, consulting the
// cache first when one is configured.
func (c *Client) getData(ctx context.Context, route string, params url.Values) (json.RawMessage, error) {
	log := logging.FromContext(ctx)

	var key string
	if c.cache != nil {
		key = cache.Key(route, params)
		if entry, err := c.cache.Get(key); err == nil {
			log.Debug().Ctx(ctx).
				Str("component", "apiclient").
				Str("route", route).
				Dur("age", entry.Age()).
				Msg("cache hit")
			return entry.Data, nil
		}
	}

	data, err := c.doJSON(ctx, http.MethodGet, route, params, nil)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(key, route, data); err != nil && !errors.Is(err, cache.ErrDisabled) {
			log.Warn().Ctx(ctx).
				Str("component", "apiclient").
				Str("route", route).
				Err(err).
				Msg("failed to cache response")
		}
	}
	return data, nil
}

// doJSON performs one exchange and unwraps the envelope.
func (c *Client) doJSON(
	ctx context.Context,
	method, route string,
	params url.Values,
	payload []byte,
) (json.RawMessage, error) {
	log := logging.FromContext(ctx)
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", route),
			attribute.String("tcocalc.request_id", requestID),
		))
	defer span.End()

	target := c.baseURL + route
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, c.fail(span, &APIError{Method: method, Route: route, Message: err.Error()})
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderRequestID, requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	log.Debug().Ctx(ctx).
		Str("component", "apiclient").
		Str("operation", strings.ToLower(method)).
		Str("route", route).
		Str("request_id", requestID).
		Msg("sending request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: %w", &APIError{Method: method, Route: route, Message: "request failed"}, err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if verr := c.checkVersion(ctx, resp.Header.Get(HeaderAPIVersion)); verr != nil {
		return nil, c.fail(span, verr)
	}

	blob, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, c.fail(span, &APIError{Method: method, Route: route, Status: resp.StatusCode, Message: err.Error()})
	}

	log.Debug().Ctx(ctx).
		Str("component", "apiclient").
		Str("route", route).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("response received")

	var env Envelope
	decodeErr := json.Unmarshal(blob, &env)
	if resp.StatusCode >= http.StatusBadRequest || decodeErr != nil || !env.Success {
		msg := env.Error
		switch {
		case msg != "":
		case decodeErr != nil:
			msg = "malformed response body: " + decodeErr.Error()
		case resp.StatusCode >= http.StatusBadRequest:
			msg = http.StatusText(resp.StatusCode)
		default:
			msg = "request unsuccessful"
		}
		return nil, c.fail(span, &APIError{Method: method, Route: route, Status: resp.StatusCode, Message: msg})
	}
	return env.Data, nil
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// checkVersion validates the advertised API version. A missing header is
// accepted.
func (c *Client) checkVersion(ctx context.Context, header string) error {
	if c.constraint == nil || strings.TrimSpace(header) == "" {
		return nil
	}
	v, err := semver.NewVersion(strings.TrimSpace(header))
	ok := err == nil && c.constraint.Check(v)
	if ok {
		return nil
	}
	verr := fmt.Errorf("%w: server reports %q, want %s", ErrIncompatibleVersion, header, c.constraint)
	if c.strict {
		return verr
	}
	c.warnOnce.Do(func() {
		logging.FromContext(ctx).Warn().Ctx(ctx).
			Str("component", "apiclient").
			Str("server_version", header).
			Err(verr).
			Msg("engine API version outside supported range")
	})
	return nil
}
