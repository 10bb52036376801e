package httpx

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/gasvida/gas-orders/internal/inventory"
	kafkax "github.com/gasvida/gas-orders/internal/kafka"
	"github.com/gasvida/gas-orders/internal/orders"
)

// Publisher is the slice of kafkax.Producer the handlers need.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

func publishEvent(pub Publisher, service, eventType, correlationID, trace string, payload any) {
	if pub == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      service,
		TraceID:       trace,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	pub.Publish(orders.PartitionKey(correlationID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func publishAdjustments(pub Publisher, service string, adjustments []inventory.Adjustment, trace string) {
	for _, adj := range adjustments {
		publishEvent(pub, service, orders.EventStockAdjusted, adj.ProductID, trace, orders.StockAdjustedFrom(adj))
	}
}
