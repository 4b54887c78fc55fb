package binance

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"mbxkit/pkg/core"
	"mbxkit/pkg/validate"
)

// Enumerations checked before an order leaves the process.
var (
	OrderSides = []string{"BUY", "SELL"}
	OrderTypes = []string{
		"LIMIT",
		"MARKET",
		"STOP_LOSS",
		"STOP_LOSS_LIMIT",
		"TAKE_PROFIT",
		"TAKE_PROFIT_LIMIT",
		"LIMIT_MAKER",
	}
)

// Endpoint describes one REST route.
type Endpoint struct {
	Method   string
	Path     string
	Security core.Security
	// Weight is charged against the request weight budget.
	Weight int
	// Required lists parameters that must be present, checked in order.
	Required []string
	// Orders marks routes that also count against the order rate limit.
	Orders bool

	prepare func(*core.Values) error
}

var (
	endpointPing           = Endpoint{Method: http.MethodGet, Path: "/api/v3/ping", Weight: 1}
	endpointTime           = Endpoint{Method: http.MethodGet, Path: "/api/v3/time", Weight: 1}
	endpointDepth          = Endpoint{Method: http.MethodGet, Path: "/api/v3/depth", Required: []string{"symbol"}}
	endpointUserDataStream = Endpoint{Method: http.MethodPost, Path: "/api/v3/userDataStream", Security: core.SecurityAPIKey, Weight: 2}
	endpointKeepAlive      = Endpoint{Method: http.MethodPut, Path: "/api/v3/userDataStream", Security: core.SecurityAPIKey, Weight: 2, Required: []string{"listenKey"}}
	endpointCloseStream    = Endpoint{Method: http.MethodDelete, Path: "/api/v3/userDataStream", Security: core.SecurityAPIKey, Weight: 2, Required: []string{"listenKey"}}
	endpointAllOrders      = Endpoint{Method: http.MethodGet, Path: "/api/v3/allOrders", Security: core.SecuritySigned, Weight: 20, Required: []string{"symbol"}}
	endpointNewOrder       = Endpoint{
		Method:   http.MethodPost,
		Path:     "/api/v3/order",
		Security: core.SecuritySigned,
		Weight:   1,
		Required: []string{"symbol", "side", "type", "quantity"},
		Orders:   true,
		prepare:  prepareOrder,
	}
	endpointCancelOrder = Endpoint{Method: http.MethodDelete, Path: "/api/v3/order", Security: core.SecuritySigned, Weight: 1, Required: []string{"symbol"}}
	endpointQueryOrder  = Endpoint{Method: http.MethodGet, Path: "/api/v3/order", Security: core.SecuritySigned, Weight: 4, Required: []string{"symbol"}}
	endpointOpenOrders  = Endpoint{Method: http.MethodGet, Path: "/api/v3/openOrders", Security: core.SecuritySigned, Weight: 6}
	endpointAccount     = Endpoint{Method: http.MethodGet, Path: "/api/v3/account", Security: core.SecuritySigned, Weight: 20}
)

// Ping tests connectivity.
func (c *Client) Ping(ctx context.Context) ([]byte, error) {
	return c.Call(ctx, endpointPing, nil)
}

// ServerTime returns the server clock.
func (c *Client) ServerTime(ctx context.Context) ([]byte, error) {
	return c.Call(ctx, endpointTime, nil)
}

// Depth returns the order book. A zero limit uses the server default.
func (c *Client) Depth(ctx context.Context, symbol string, limit int) ([]byte, error) {
	data := core.NewValues("symbol", optional(symbol))
	if limit > 0 {
		data.Set("limit", limit)
	}
	ep := endpointDepth
	ep.Weight = depthWeight(limit)
	return c.Call(ctx, ep, data)
}

func depthWeight(limit int) int {
	switch {
	case limit <= 100:
		return 5
	case limit <= 500:
		return 25
	case limit <= 1000:
		return 50
	default:
		return 250
	}
}

// UserDataStream opens a user data stream and returns its listen key
// response.
func (c *Client) UserDataStream(ctx context.Context) ([]byte, error) {
	return c.Call(ctx, endpointUserDataStream, nil)
}

// KeepAliveUserDataStream extends the listen key's validity.
func (c *Client) KeepAliveUserDataStream(ctx context.Context, listenKey string) ([]byte, error) {
	return c.Call(ctx, endpointKeepAlive, core.NewValues("listenKey", optional(listenKey)))
}

// CloseUserDataStream closes the listen key.
func (c *Client) CloseUserDataStream(ctx context.Context, listenKey string) ([]byte, error) {
	return c.Call(ctx, endpointCloseStream, core.NewValues("listenKey", optional(listenKey)))
}

// AllOrders lists every order for a symbol.
func (c *Client) AllOrders(ctx context.Context, data any) ([]byte, error) {
	return c.Call(ctx, endpointAllOrders, data)
}

// NewOrder places an order. A newClientOrderId is generated when the
// caller does not set one.
func (c *Client) NewOrder(ctx context.Context, data any) ([]byte, error) {
	return c.Call(ctx, endpointNewOrder, data)
}

// CancelOrder cancels one order identified by orderId or origClientOrderId.
func (c *Client) CancelOrder(ctx context.Context, data any) ([]byte, error) {
	return c.Call(ctx, endpointCancelOrder, data)
}

// QueryOrder returns one order's status.
func (c *Client) QueryOrder(ctx context.Context, data any) ([]byte, error) {
	return c.Call(ctx, endpointQueryOrder, data)
}

// OpenOrders lists open orders, for one symbol when data carries one.
func (c *Client) OpenOrders(ctx context.Context, data any) ([]byte, error) {
	return c.Call(ctx, endpointOpenOrders, data)
}

// Account returns balances and permissions.
func (c *Client) Account(ctx context.Context) ([]byte, error) {
	return c.Call(ctx, endpointAccount, nil)
}

func prepareOrder(values *core.Values) error {
	if err := validate.CheckEnum(OrderSides, stringValue(values, "side"), "side"); err != nil {
		return err
	}
	if err := validate.CheckEnum(OrderTypes, stringValue(values, "type"), "type"); err != nil {
		return err
	}
	if !values.Has("newClientOrderId") {
		values.Set("newClientOrderId", uuid.NewString())
	}
	return nil
}

func stringValue(values *core.Values, key string) string {
	v, _ := values.Get(key)
	s, _ := core.FormatValue(v)
	return s
}

// optional maps an empty string to nil so it counts as missing.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
