// Package alerts watches stock-adjusted events and raises low-stock alerts
// when a product falls to or below its advisory threshold.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/gasvida/gas-orders/internal/kafka"
	"github.com/gasvida/gas-orders/internal/orders"
	"github.com/gasvida/gas-orders/internal/redisx"
)

// Markers is the sliver of Redis the service needs: event dedup and the
// per-product alert latch.
type Markers interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Markers     Markers
	Producer    Publisher
	ServiceName string
	Log         *zap.Logger
}

// HandleStockAdjusted is wired as the consumer handler for the
// stock-adjusted topic.
func (s *Service) HandleStockAdjusted(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventStockAdjusted {
		return nil
	}

	// dedup by event id so redelivery cannot double-alert
	dkey := fmt.Sprintf(redisx.KeyDedup, "alerts", env.EventID)
	if seen, _ := s.Markers.Exists(ctx, dkey); seen {
		return nil
	}
	_ = s.Markers.Set(ctx, dkey, "1", redisx.TTLDedup)

	p, err := kafkax.UnwrapPayload[orders.StockAdjustedPayload](env.Payload)
	if err != nil {
		return err
	}

	akey := fmt.Sprintf(redisx.KeyLowStockAlert, p.ProductID)
	if !ShouldAlert(p) {
		// back above threshold: clear the latch so the next dip alerts again
		if p.Threshold > 0 && p.NewStock > p.Threshold {
			_ = s.Markers.Del(ctx, akey)
		}
		return nil
	}

	// latch per product so a string of adjustments under threshold yields one alert
	if latched, _ := s.Markers.Exists(ctx, akey); latched {
		return nil
	}
	_ = s.Markers.Set(ctx, akey, "1", redisx.TTLLowStockAlert)

	s.Log.Info("low stock",
		zap.String("product_id", p.ProductID),
		zap.Int("stock", p.NewStock),
		zap.Int("threshold", p.Threshold))
	s.publishLow(p, env.TraceID)
	return nil
}

// ShouldAlert reports whether an adjustment leaves the product at or below
// its threshold. A zero threshold means the seller never set one.
func ShouldAlert(p orders.StockAdjustedPayload) bool {
	return p.Threshold > 0 && p.NewStock <= p.Threshold
}

func (s *Service) publishLow(p orders.StockAdjustedPayload, trace string) {
	if s.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockLow,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: p.ProductID,
		Payload: kafkax.MustMarshal(orders.StockLowPayload{
			ProductID: p.ProductID,
			Stock:     p.NewStock,
			Threshold: p.Threshold,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(p.ProductID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockLow)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// RedisMarkers adapts a redis client to the Markers interface.
type RedisMarkers struct {
	C *redis.Client
}

func (r *RedisMarkers) Exists(ctx context.Context, key string) (bool, error) {
	return redisx.Exists(ctx, r.C, key)
}

func (r *RedisMarkers) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return r.C.Set(ctx, key, val, ttl).Err()
}

func (r *RedisMarkers) Del(ctx context.Context, key string) error {
	return r.C.Del(ctx, key).Err()
}
