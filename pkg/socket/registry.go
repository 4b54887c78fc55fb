// Package socket keeps at most one live websocket per stream key.
//
// The registry is an explicit value owned by a client. InitSocket inserts the
// handle for a key inside one critical section and only then starts the
// connect in the background, so concurrent callers asking for the same key
// always share a single handle.
package socket

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"mbxkit/internal/ws"
	"mbxkit/pkg/core"
)

// Handler receives raw stream payloads.
type Handler func(data []byte)

// Conn is a connection handle stored in the registry.
type Conn interface {
	Connect(ctx context.Context) error
	Close() error
	URL() string
	Err() error
	Ready() <-chan struct{}
}

// Dialer creates an unconnected handle for url. It must not block.
type Dialer func(url string, onMessage Handler) Conn

// ErrorHandler is told about connect failures.
type ErrorHandler func(streamPath string, err error)

// Option configures a Registry.
type Option func(*Registry)

// WithDialer replaces the default gws-backed dialer.
func WithDialer(d Dialer) Option {
	return func(r *Registry) {
		if d != nil {
			r.dial = d
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithErrorHandler registers a callback for connect failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(r *Registry) {
		r.onError = h
	}
}

// Registry maps stream keys to connection handles.
type Registry struct {
	baseURL string
	dial    Dialer
	logger  zerolog.Logger
	onError ErrorHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	sockets map[string]Conn
}

// New returns an empty registry that dials baseURL + streamPath.
func New(baseURL string, opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		baseURL: baseURL,
		logger:  zerolog.Nop(),
		ctx:     ctx,
		cancel:  cancel,
		sockets: make(map[string]Conn),
	}
	r.dial = r.dialWS
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BaseURL returns the endpoint stream paths are appended to.
func (r *Registry) BaseURL() string {
	return r.baseURL
}

// InitSocket returns the handle for streamPath, creating and connecting one
// if none exists. The returned handle may still be connecting; wait on
// Ready and check Err to observe the outcome.
func (r *Registry) InitSocket(streamPath string, onMessage Handler) (Conn, error) {
	if streamPath == "" {
		return nil, core.NewValidationError(core.ErrCodePathRequired, "path", "path is required and should be a string")
	}
	if onMessage == nil {
		return nil, core.NewValidationError(core.ErrCodeCallbackRequired, "callback", "callback is required and should be a function")
	}

	r.mu.Lock()
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		return nil, core.ErrClientClosed
	}
	if conn, ok := r.sockets[streamPath]; ok {
		r.mu.Unlock()
		return conn, nil
	}
	conn := r.dial(r.baseURL+streamPath, onMessage)
	r.sockets[streamPath] = conn
	r.wg.Add(1)
	r.mu.Unlock()

	go r.connect(streamPath, conn)

	return conn, nil
}

func (r *Registry) connect(streamPath string, conn Conn) {
	defer r.wg.Done()

	if err := conn.Connect(r.ctx); err != nil {
		if r.ctx.Err() != nil || !r.holds(streamPath, conn) {
			return
		}
		r.logger.Error().Err(err).
			Str("stream", streamPath).
			Str("url", conn.URL()).
			Msg("stream connect failed")
		if r.onError != nil {
			r.onError(streamPath, err)
		}
		return
	}
	r.logger.Debug().Str("stream", streamPath).Msg("stream connected")
}

// holds reports whether conn is still the entry for streamPath; it is not
// once Close or Shutdown removed it.
func (r *Registry) holds(streamPath string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sockets[streamPath]
	return ok && current == conn
}

// Get returns the handle stored for streamPath.
func (r *Registry) Get(streamPath string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.sockets[streamPath]
	return conn, ok
}

// Len returns the number of stored handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sockets)
}

// Keys returns the stored stream keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.sockets))
	for k := range r.sockets {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	slices.Sort(keys)
	return keys
}

// Close closes the handle for streamPath and removes its entry. It reports
// whether an entry existed.
func (r *Registry) Close(streamPath string) (bool, error) {
	r.mu.Lock()
	conn, ok := r.sockets[streamPath]
	delete(r.sockets, streamPath)
	r.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, conn.Close()
}

// Shutdown cancels pending connects, closes every handle and empties the
// registry. Later InitSocket calls fail with core.ErrClientClosed.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	r.cancel()
	sockets := r.sockets
	r.sockets = make(map[string]Conn)
	r.mu.Unlock()

	var firstErr error
	for path, conn := range sockets {
		if err := conn.Close(); err != nil {
			r.logger.Warn().Err(err).Str("stream", path).Msg("stream close failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.wg.Wait()
	return firstErr
}

func (r *Registry) dialWS(url string, onMessage Handler) Conn {
	conn := ws.New(ws.DefaultConfig(url), ws.Handler(onMessage))
	conn.SetLogger(r.logger)
	return conn
}
