package binance

import (
	"strings"

	"mbxkit/pkg/core"
	"mbxkit/pkg/socket"
	"mbxkit/pkg/validate"
)

// KlineIntervals are the candlestick intervals the stream API accepts.
var KlineIntervals = []string{
	"1s", "1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1M",
}

// InitSocket returns the connection for streamPath, opening it if needed.
func (c *Client) InitSocket(streamPath string, onMessage socket.Handler) (socket.Conn, error) {
	return c.sockets.InitSocket(streamPath, onMessage)
}

// OnStream subscribes to a raw stream name such as "gasbtc@depth".
func (c *Client) OnStream(streamPath string, onMessage socket.Handler) (socket.Conn, error) {
	return c.InitSocket(streamPath, onMessage)
}

// CloseStream closes the stream and forgets it.
func (c *Client) CloseStream(streamPath string) error {
	_, err := c.sockets.Close(streamPath)
	return err
}

func (c *Client) DepthStream(symbol string, onMessage socket.Handler) (socket.Conn, error) {
	return c.symbolStream(symbol, "depth", onMessage)
}

func (c *Client) TradeStream(symbol string, onMessage socket.Handler) (socket.Conn, error) {
	return c.symbolStream(symbol, "trade", onMessage)
}

func (c *Client) AggTradeStream(symbol string, onMessage socket.Handler) (socket.Conn, error) {
	return c.symbolStream(symbol, "aggTrade", onMessage)
}

func (c *Client) TickerStream(symbol string, onMessage socket.Handler) (socket.Conn, error) {
	return c.symbolStream(symbol, "ticker", onMessage)
}

// KlineStream subscribes to candlesticks for one interval.
func (c *Client) KlineStream(symbol, interval string, onMessage socket.Handler) (socket.Conn, error) {
	if err := validate.CheckEnum(KlineIntervals, interval, "interval"); err != nil {
		return nil, err
	}
	return c.symbolStream(symbol, "kline_"+interval, onMessage)
}

// UserStream subscribes to account events for a listen key obtained from
// UserDataStream.
func (c *Client) UserStream(listenKey string, onMessage socket.Handler) (socket.Conn, error) {
	return c.InitSocket(listenKey, onMessage)
}

func (c *Client) symbolStream(symbol, kind string, onMessage socket.Handler) (socket.Conn, error) {
	if symbol == "" {
		return nil, core.NewValidationError(core.ErrCodeRequiredFieldMissing, "symbol",
			"symbol parameters is required for this method")
	}
	return c.InitSocket(StreamName(symbol, kind), onMessage)
}

// StreamName returns the stream key for a symbol, e.g. "gasbtc@depth".
func StreamName(symbol, kind string) string {
	return strings.ToLower(symbol) + "@" + kind
}
