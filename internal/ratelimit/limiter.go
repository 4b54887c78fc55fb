// Package ratelimit throttles outbound requests by Binance request weight.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// BucketOrders is the bucket charged once per order placement, on top of
// the request weight.
const BucketOrders = "orders"

// Limiter charges each request its weight against a global budget and,
// optionally, one unit against a named bucket.
type Limiter struct {
	weight  *rate.Limiter
	burst   int
	buckets sync.Map
	metrics metrics
}

type metrics struct {
	requests atomic.Int64
	weight   atomic.Int64
	denied   atomic.Int64
	buckets  atomic.Int32
}

// New allows weight units per period, with the full budget available as a
// burst.
func New(weight int, period time.Duration) *Limiter {
	return &Limiter{
		weight: rate.NewLimiter(perPeriod(weight, period), weight),
		burst:  weight,
	}
}

func perPeriod(n int, period time.Duration) rate.Limit {
	return rate.Limit(float64(n) / period.Seconds())
}

// Wait blocks until weight units are available or ctx is done. A weight
// above the burst can never be satisfied and fails at once.
func (l *Limiter) Wait(ctx context.Context, weight int) error {
	l.metrics.requests.Add(1)
	if weight < 1 {
		weight = 1
	}
	if weight > l.burst {
		l.metrics.denied.Add(1)
		return fmt.Errorf("request weight %d exceeds limit %d", weight, l.burst)
	}
	if err := l.weight.WaitN(ctx, weight); err != nil {
		l.metrics.denied.Add(1)
		return err
	}
	l.metrics.weight.Add(int64(weight))
	return nil
}

// SetBucketLimit configures bucket to n units per period.
func (l *Limiter) SetBucketLimit(bucket string, n int, period time.Duration) {
	limiter := rate.NewLimiter(perPeriod(n, period), n)
	if _, loaded := l.buckets.Swap(bucket, limiter); !loaded {
		l.metrics.buckets.Add(1)
	}
}

// WaitBucket blocks until one unit of bucket is available. Unconfigured
// buckets never block.
func (l *Limiter) WaitBucket(ctx context.Context, bucket string) error {
	v, ok := l.buckets.Load(bucket)
	if !ok {
		return nil
	}
	if err := v.(*rate.Limiter).Wait(ctx); err != nil {
		l.metrics.denied.Add(1)
		return fmt.Errorf("%s bucket: %w", bucket, err)
	}
	return nil
}

// Metrics returns a snapshot of the limiter counters.
func (l *Limiter) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		Requests:     l.metrics.requests.Load(),
		WeightUsed:   l.metrics.weight.Load(),
		Denied:       l.metrics.denied.Load(),
		BucketCount:  l.metrics.buckets.Load(),
		WeightBudget: l.burst,
	}
}

type MetricsSnapshot struct {
	Requests     int64
	WeightUsed   int64
	Denied       int64
	BucketCount  int32
	WeightBudget int
}
