// Package binance is the Binance spot REST and stream client.
//
// A Client validates its credentials once at construction, builds and signs
// queries through pkg/query, sends them through a rate limited, circuit
// broken resty transport and keeps one websocket per stream in a
// socket.Registry. Successful REST responses and stream frames are handed
// back as raw bytes.
//
// Example usage:
//
//	client, err := binance.New(core.DefaultConfig().WithCredentials(creds))
//	body, err := client.AllOrders(ctx, core.NewValues("symbol", "GASNEO"))
//	conn, err := client.DepthStream("GASBTC", func(data []byte) { ... })
package binance
