// Package ws holds a single-stream websocket connection built on gws.
//
// A Conn is created idle, dialed once with Connect and torn down with Close.
// It does not reconnect: when the server drops the stream the Conn moves to
// StateClosed and Err reports why.
package ws

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by operations on a closed Conn.
var ErrClosed = errors.New("websocket closed")

// Handler receives each text or binary frame payload. It runs on the read
// loop goroutine, so frames are delivered in order and one at a time.
type Handler func(data []byte)

// Config holds connection settings.
type Config struct {
	URL string
	// ReadTimeout is the longest silence tolerated between frames, pings
	// included. Zero disables the deadline.
	ReadTimeout time.Duration
	// HandshakeTimeout bounds dial and upgrade together; a context deadline
	// tightens it.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns settings suitable for Binance market streams, which
// ping every few minutes.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		ReadTimeout:      10 * time.Minute,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Conn is one websocket stream.
type Conn struct {
	cfg       Config
	onMessage Handler
	logger    zerolog.Logger
	state     State
	events    *eventHandler

	mu     sync.Mutex
	socket *gws.Conn
	err    error

	life      context.Context
	kill      context.CancelFunc
	opened    chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type eventHandler struct {
	conn *Conn
}

// New returns an idle Conn for cfg.URL. Nothing is dialed until Connect.
func New(cfg Config, onMessage Handler) *Conn {
	c := &Conn{
		cfg:       cfg,
		onMessage: onMessage,
		logger:    zerolog.Nop(),
		opened:    make(chan struct{}),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.life, c.kill = context.WithCancel(context.Background())
	c.events = &eventHandler{conn: c}
	return c
}

// SetLogger sets the logger. Call it before Connect.
func (c *Conn) SetLogger(logger zerolog.Logger) {
	c.logger = logger.With().Str("url", c.cfg.URL).Logger()
}

// URL returns the address the Conn dials.
func (c *Conn) URL() string {
	return c.cfg.URL
}

// State returns the current lifecycle state.
func (c *Conn) State() ConnState {
	return c.state.Load()
}

// Ready is closed once the first Connect settles, whether the handshake
// succeeded or failed, or when the Conn is closed before that.
func (c *Conn) Ready() <-chan struct{} {
	return c.ready
}

// Done is closed by Close.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the connect or read error that ended the stream, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Connect dials the stream and waits for the handshake. Calling it on an
// open Conn is a no-op; a Conn can only be dialed once. Cancelling ctx or
// calling Close aborts a dial or handshake in progress.
func (c *Conn) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(StateIdle, StateConnecting) {
		switch current := c.state.Load(); current {
		case StateOpen:
			return nil
		case StateClosed:
			return ErrClosed
		default:
			return fmt.Errorf("invalid state for connect: %s", current)
		}
	}

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopLife := context.AfterFunc(c.life, cancel)
	defer stopLife()
	if c.cfg.HandshakeTimeout > 0 {
		var cancelTimeout context.CancelFunc
		dialCtx, cancelTimeout = context.WithTimeout(dialCtx, c.cfg.HandshakeTimeout)
		defer cancelTimeout()
	}

	socket, err := c.dial(dialCtx)
	if err != nil {
		return c.abort(ctx, dialCtx, err)
	}

	c.mu.Lock()
	if c.state.Load() == StateClosed {
		c.mu.Unlock()
		_ = socket.NetConn().Close()
		return ErrClosed
	}
	c.socket = socket
	c.wg.Go(func() {
		socket.ReadLoop()
	})
	c.mu.Unlock()

	select {
	case <-c.opened:
		return nil
	case <-ctx.Done():
		_ = socket.NetConn().Close()
		return c.fail(ctx.Err())
	case <-c.done:
		return ErrClosed
	}
}

// dial opens the TCP (and TLS for wss) connection and runs the upgrade. The
// connection is closed if ctx ends before the upgrade completes.
func (c *Conn) dial(ctx context.Context) (*gws.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, err
	}
	secure := u.Scheme == "wss"
	if !secure && u.Scheme != "ws" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if secure {
			port = "443"
		}
	}

	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(u.Hostname(), port))
	if err != nil {
		return nil, err
	}
	if secure {
		tlsConn := tls.Client(netConn, &tls.Config{ServerName: u.Hostname()})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = netConn.Close()
			return nil, err
		}
		netConn = tlsConn
	}

	stop := context.AfterFunc(ctx, func() { _ = netConn.Close() })
	socket, _, err := gws.NewClientFromConn(c.events, &gws.ClientOption{
		Addr:             c.cfg.URL,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}, netConn)
	if !stop() {
		if err == nil {
			_ = netConn.Close()
		}
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return socket, nil
}

// abort settles a failed dial. A dial cut short by Close reports ErrClosed.
func (c *Conn) abort(ctx, dialCtx context.Context, err error) error {
	switch {
	case c.life.Err() != nil:
		return ErrClosed
	case ctx.Err() != nil:
		return c.fail(ctx.Err())
	case dialCtx.Err() != nil:
		return c.fail(fmt.Errorf("connect websocket: %w", dialCtx.Err()))
	default:
		return c.fail(fmt.Errorf("connect websocket: %w", err))
	}
}

// Close tears the stream down and waits for the read loop to exit. It must
// not be called from the message handler.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(StateClosed)
		c.kill()
		close(c.done)
		c.settle()

		c.mu.Lock()
		socket := c.socket
		c.mu.Unlock()
		if socket != nil {
			_ = socket.NetConn().Close()
		}
	})
	c.wg.Wait()
	return nil
}

func (c *Conn) fail(err error) error {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()

	c.state.Store(StateClosed)
	c.settle()
	c.logger.Warn().Err(err).Msg("websocket connect failed")
	return err
}

func (c *Conn) settle() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func (c *Conn) extendDeadline(socket *gws.Conn) {
	if c.cfg.ReadTimeout > 0 {
		_ = socket.SetDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

func (h *eventHandler) OnOpen(socket *gws.Conn) {
	c := h.conn
	if !c.state.CompareAndSwap(StateConnecting, StateOpen) {
		_ = socket.NetConn().Close()
		return
	}
	c.extendDeadline(socket)
	close(c.opened)
	c.settle()

	c.logger.Info().Msg("websocket connected")
}

func (h *eventHandler) OnClose(socket *gws.Conn, err error) {
	c := h.conn
	if c.state.CompareAndSwap(StateOpen, StateClosed) {
		c.mu.Lock()
		if c.err == nil {
			c.err = err
		}
		c.mu.Unlock()
		c.logger.Warn().Err(err).Msg("websocket disconnected")
		return
	}
	c.logger.Debug().Err(err).Msg("websocket closed")
}

func (h *eventHandler) OnPing(socket *gws.Conn, payload []byte) {
	h.conn.extendDeadline(socket)
	_ = socket.WritePong(payload)
}

func (h *eventHandler) OnPong(socket *gws.Conn, payload []byte) {
	h.conn.extendDeadline(socket)
}

func (h *eventHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	c := h.conn
	c.extendDeadline(socket)

	data := bytes.Clone(message.Bytes())
	if len(data) == 0 {
		return
	}
	c.logger.Debug().Int("bytes", len(data)).Msg("received websocket message")

	if c.onMessage != nil {
		c.onMessage(data)
	}
}
