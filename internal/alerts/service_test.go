package alerts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gasvida/gas-orders/internal/orders"
)

type mapMarkers struct {
	keys map[string]string
}

func newMapMarkers() *mapMarkers { return &mapMarkers{keys: make(map[string]string)} }

func (m *mapMarkers) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.keys[key]
	return ok, nil
}

func (m *mapMarkers) Set(_ context.Context, key, val string, _ time.Duration) error {
	m.keys[key] = val
	return nil
}

func (m *mapMarkers) Del(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

type recordingPublisher struct {
	alerts []orders.StockLowPayload
}

func (p *recordingPublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	var env orders.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		panic(err)
	}
	var low orders.StockLowPayload
	if err := json.Unmarshal(env.Payload, &low); err != nil {
		panic(err)
	}
	p.alerts = append(p.alerts, low)
}

func newService() (*Service, *mapMarkers, *recordingPublisher) {
	m := newMapMarkers()
	p := &recordingPublisher{}
	return &Service{
		Markers:     m,
		Producer:    p,
		ServiceName: "gas-orders-alerts-test",
		Log:         zap.NewNop(),
	}, m, p
}

func adjustedMessage(t *testing.T, eventID string, p orders.StockAdjustedPayload) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(p)
	require.NoError(t, err)
	env := orders.Envelope{
		EventID:      eventID,
		EventType:    orders.EventStockAdjusted,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "gas-orders-api",
		Payload:      payload,
	}
	value, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(p.ProductID), Value: value}
}

func TestShouldAlert(t *testing.T) {
	assert.True(t, ShouldAlert(orders.StockAdjustedPayload{NewStock: 2, Threshold: 3}))
	assert.True(t, ShouldAlert(orders.StockAdjustedPayload{NewStock: 3, Threshold: 3}))
	assert.False(t, ShouldAlert(orders.StockAdjustedPayload{NewStock: 4, Threshold: 3}))
	assert.False(t, ShouldAlert(orders.StockAdjustedPayload{NewStock: 0, Threshold: 0}), "no threshold, no alerts")
}

func TestAlertOnDipBelowThreshold(t *testing.T) {
	svc, _, pub := newService()
	ctx := context.Background()

	m := adjustedMessage(t, "ev-1", orders.StockAdjustedPayload{
		ProductID: "p1", NewStock: 2, Threshold: 3,
	})
	require.NoError(t, svc.HandleStockAdjusted(ctx, m))

	require.Len(t, pub.alerts, 1)
	assert.Equal(t, "p1", pub.alerts[0].ProductID)
	assert.Equal(t, 2, pub.alerts[0].Stock)
	assert.Equal(t, 3, pub.alerts[0].Threshold)
}

func TestRedeliveryDoesNotDoubleAlert(t *testing.T) {
	svc, _, pub := newService()
	ctx := context.Background()

	m := adjustedMessage(t, "ev-1", orders.StockAdjustedPayload{
		ProductID: "p1", NewStock: 2, Threshold: 3,
	})
	require.NoError(t, svc.HandleStockAdjusted(ctx, m))
	require.NoError(t, svc.HandleStockAdjusted(ctx, m))

	assert.Len(t, pub.alerts, 1)
}

func TestLatchHoldsWhileUnderThreshold(t *testing.T) {
	svc, _, pub := newService()
	ctx := context.Background()

	require.NoError(t, svc.HandleStockAdjusted(ctx, adjustedMessage(t, "ev-1",
		orders.StockAdjustedPayload{ProductID: "p1", NewStock: 2, Threshold: 3})))
	require.NoError(t, svc.HandleStockAdjusted(ctx, adjustedMessage(t, "ev-2",
		orders.StockAdjustedPayload{ProductID: "p1", NewStock: 1, Threshold: 3})))

	assert.Len(t, pub.alerts, 1, "still under threshold, latch holds")

	// recovery clears the latch, the next dip alerts again
	require.NoError(t, svc.HandleStockAdjusted(ctx, adjustedMessage(t, "ev-3",
		orders.StockAdjustedPayload{ProductID: "p1", NewStock: 10, Threshold: 3})))
	require.NoError(t, svc.HandleStockAdjusted(ctx, adjustedMessage(t, "ev-4",
		orders.StockAdjustedPayload{ProductID: "p1", NewStock: 3, Threshold: 3})))

	assert.Len(t, pub.alerts, 2)
}

func TestLatchIsPerProduct(t *testing.T) {
	svc, _, pub := newService()
	ctx := context.Background()

	require.NoError(t, svc.HandleStockAdjusted(ctx, adjustedMessage(t, "ev-1",
		orders.StockAdjustedPayload{ProductID: "p1", NewStock: 1, Threshold: 3})))
	require.NoError(t, svc.HandleStockAdjusted(ctx, adjustedMessage(t, "ev-2",
		orders.StockAdjustedPayload{ProductID: "p2", NewStock: 1, Threshold: 3})))

	require.Len(t, pub.alerts, 2)
	assert.Equal(t, "p1", pub.alerts[0].ProductID)
	assert.Equal(t, "p2", pub.alerts[1].ProductID)
}

func TestForeignEventTypesIgnored(t *testing.T) {
	svc, _, pub := newService()

	env := orders.Envelope{EventID: "ev-1", EventType: orders.EventOrderCreated, EventVersion: 1}
	value, err := json.Marshal(env)
	require.NoError(t, err)

	require.NoError(t, svc.HandleStockAdjusted(context.Background(), kafkago.Message{Value: value}))
	assert.Empty(t, pub.alerts)
}

func TestMalformedMessageErrors(t *testing.T) {
	svc, _, _ := newService()
	err := svc.HandleStockAdjusted(context.Background(), kafkago.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}
