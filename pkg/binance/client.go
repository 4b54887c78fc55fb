package binance

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mbxkit/internal/circuitbreaker"
	httpClient "mbxkit/internal/http"
	"mbxkit/internal/ratelimit"
	"mbxkit/pkg/core"
	"mbxkit/pkg/query"
	"mbxkit/pkg/socket"
	"mbxkit/pkg/validate"
)

// Spot order rate limit, charged per order placement.
const (
	orderLimit       = 50
	orderLimitPeriod = 10 * time.Second
)

// Client talks to one Binance deployment with one fixed credential pair.
// It is safe for concurrent use.
type Client struct {
	config  *core.Config
	creds   core.Credentials
	headers map[string]string

	http    *httpClient.Client
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.Breaker
	sockets *socket.Registry

	logger zerolog.Logger
	clock  func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// Option is a functional option for configuring the Client.
type Option func(*Options)

// Options holds construction-time settings that are not part of core.Config.
type Options struct {
	Logger       zerolog.Logger
	Clock        func() time.Time
	Dialer       socket.Dialer
	ErrorHandler socket.ErrorHandler
}

// WithLogger sets the logger shared by the transport and the socket registry.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithClock replaces time.Now as the source of signing timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Clock = now
	}
}

// WithDialer replaces the websocket connection factory.
func WithDialer(d socket.Dialer) Option {
	return func(o *Options) {
		o.Dialer = d
	}
}

// WithErrorHandler is told about stream connect failures.
func WithErrorHandler(h socket.ErrorHandler) Option {
	return func(o *Options) {
		o.ErrorHandler = h
	}
}

// New creates a Client. A nil config means core.DefaultConfig. Both keys
// are format checked; an empty key is accepted and disables the requests
// that need it.
func New(config *core.Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = core.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	options := &Options{
		Logger: zerolog.Nop(),
		Clock:  time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	creds := config.Creds()
	if _, err := validate.CheckKey(creds.APIKey); err != nil {
		return nil, fmt.Errorf("check api key: %w", err)
	}
	if _, err := validate.CheckKey(creds.SecretKey); err != nil {
		return nil, fmt.Errorf("check secret key: %w", err)
	}

	headers := make(map[string]string)
	if creds.HasAPIKey() {
		headers[core.HeaderAPIKey] = creds.APIKey
	}

	httpConfig := httpClient.ConfigFrom(config)
	httpConfig.Headers = headers
	transport, err := httpClient.NewClient(httpConfig, options.Logger)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	limiter := ratelimit.New(config.RateLimitRequests, config.RateLimitPeriod)
	limiter.SetBucketLimit(ratelimit.BucketOrders, orderLimit, orderLimitPeriod)

	var breaker *circuitbreaker.Breaker
	if config.CircuitBreakerEnabled {
		logger := options.Logger
		breaker = circuitbreaker.New(circuitbreaker.ConfigFrom(config),
			circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
				logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			}))
	}

	socketOpts := []socket.Option{socket.WithLogger(options.Logger)}
	if options.Dialer != nil {
		socketOpts = append(socketOpts, socket.WithDialer(options.Dialer))
	}
	if options.ErrorHandler != nil {
		socketOpts = append(socketOpts, socket.WithErrorHandler(options.ErrorHandler))
	}

	return &Client{
		config:  config,
		creds:   creds,
		headers: headers,
		http:    transport,
		limiter: limiter,
		breaker: breaker,
		sockets: socket.New(config.StreamURL, socketOpts...),
		logger:  options.Logger,
		clock:   options.Clock,
	}, nil
}

// Credentials returns a copy of the client's credentials.
func (c *Client) Credentials() core.Credentials {
	return c.creds
}

// Headers returns the default headers sent with every request.
func (c *Client) Headers() map[string]string {
	return maps.Clone(c.headers)
}

// Sockets returns the client's stream registry.
func (c *Client) Sockets() *socket.Registry {
	return c.sockets
}

// Metrics is a point-in-time view of the dispatcher's guards and streams.
type Metrics struct {
	RateLimit ratelimit.MetricsSnapshot
	Breaker   circuitbreaker.MetricsSnapshot
	Streams   int
}

// Metrics returns the current rate limiter and circuit breaker counters.
func (c *Client) Metrics() Metrics {
	return Metrics{
		RateLimit: c.limiter.Metrics(),
		Breaker:   c.breaker.Metrics(),
		Streams:   c.sockets.Len(),
	}
}

// Close shuts down every stream and the HTTP transport.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = errors.Join(c.sockets.Shutdown(), c.http.Close())
	})
	return c.closeErr
}

// MakeQuery binds urlPath, a snapshot of data and the client's credentials
// into a query.Builder. Checks run in a fixed order: API key, secret key,
// URL, data type, then value kinds.
func (c *Client) MakeQuery(urlPath string, data any) (query.Builder, error) {
	if !c.creds.HasAPIKey() {
		return query.Builder{}, core.APIKeyRequired()
	}
	if !c.creds.HasSecretKey() {
		return query.Builder{}, core.SecretKeyRequired()
	}
	if urlPath == "" {
		return query.Builder{}, core.NewValidationError(core.ErrCodeURLRequired, "url",
			"Url is missing and should be a string")
	}
	values, err := toValues(data)
	if err != nil {
		return query.Builder{}, err
	}

	return query.Builder{
		URLPath:     urlPath,
		Data:        values,
		Credentials: c.creds,
		RecvWindow:  c.config.RecvWindow,
		Clock:       c.clock,
	}, nil
}

func toValues(data any) (*core.Values, error) {
	if data == nil {
		return &core.Values{}, nil
	}
	if v, ok := data.(*core.Values); ok && v == nil {
		return &core.Values{}, nil
	}
	values, ok := core.ToValues(data)
	if !ok {
		return nil, core.NewValidationError(core.ErrCodeDataType, "data",
			"Object type required for data param")
	}
	if err := values.Validate(); err != nil {
		return nil, err
	}
	return values, nil
}

// Do sends one request with weight 1 and returns the raw response body.
func (c *Client) Do(ctx context.Context, method, urlPath string, data any, sec core.Security) ([]byte, error) {
	return c.Call(ctx, Endpoint{Method: method, Path: urlPath, Security: sec, Weight: 1}, data)
}

// Call validates data against ep, builds the query for ep's security level
// and sends it.
func (c *Client) Call(ctx context.Context, ep Endpoint, data any) ([]byte, error) {
	req, err := c.prepare(ep, data)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, req, ep.Orders)
}

func (c *Client) prepare(ep Endpoint, data any) (*core.Request, error) {
	var values *core.Values
	var b query.Builder

	switch ep.Security {
	case core.SecuritySigned:
		var err error
		if b, err = c.MakeQuery(ep.Path, data); err != nil {
			return nil, err
		}
		values = b.Data
	case core.SecurityAPIKey:
		if !c.creds.HasAPIKey() {
			return nil, core.APIKeyRequired()
		}
		fallthrough
	default:
		if ep.Path == "" {
			return nil, core.NewValidationError(core.ErrCodeURLRequired, "url",
				"Url is missing and should be a string")
		}
		var err error
		if values, err = toValues(data); err != nil {
			return nil, err
		}
		b = query.Builder{URLPath: ep.Path, Data: values}
	}

	if len(ep.Required) > 0 {
		if err := validate.CheckParams(values, ep.Required); err != nil {
			return nil, err
		}
	}
	if ep.prepare != nil {
		if err := ep.prepare(values); err != nil {
			return nil, err
		}
	}

	req := core.NewRequest(ep.Method, ep.Path).
		SetWeight(max(ep.Weight, 1)).
		SetSecurity(ep.Security)
	for k, v := range c.headers {
		req.SetHeader(k, v)
	}

	if ep.Security == core.SecuritySigned {
		qs, err := query.EncodeSigned(b)
		if err != nil {
			return nil, err
		}
		req.SetQuery(qs)
	} else {
		req.SetQuery(query.Encode(b))
	}
	return req, nil
}

func (c *Client) send(ctx context.Context, req *core.Request, order bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx, req.Weight); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	if order {
		if err := c.limiter.WaitBucket(ctx, ratelimit.BucketOrders); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, err
		}
	}

	resp, err := c.http.Do(ctx, req)
	if c.breaker != nil {
		c.breaker.Record(err == nil && !isServerFault(resp.StatusCode))
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("weight", req.Weight).
		Int("status", resp.StatusCode).
		Msg("binance response")

	if resp.IsError() {
		return nil, parseError(resp.StatusCode, resp.Body)
	}
	return resp.Body, nil
}
