package orders

import (
	"encoding/json"
	"time"

	"github.com/gasvida/gas-orders/internal/inventory"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockAdjusted      = "StockAdjusted"
	EventStockLow           = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"quantity"`
}

type OrderCreatedPayload struct {
	OrderID    string    `json:"order_id"`
	SellerID   string    `json:"seller_id"`
	BuyerID    *string   `json:"buyer_id,omitempty"`
	WalkIn     bool      `json:"walk_in"`
	Status     Status    `json:"status"`
	Items      []ItemQty `json:"items"`
	TotalCents int       `json:"total_cents"`
}

type OrderStatusChangedPayload struct {
	OrderID    string `json:"order_id"`
	SellerID   string `json:"seller_id"`
	From       Status `json:"from"`
	To         Status `json:"to"`
	StockMoved bool   `json:"stock_moved"`
}

// StockAdjustedPayload mirrors the ledger row plus the advisory threshold so
// downstream consumers can evaluate low-stock without a lookup.
type StockAdjustedPayload struct {
	LogID         string           `json:"log_id"`
	ProductID     string           `json:"product_id"`
	ActorID       string           `json:"user_id"`
	Type          inventory.Reason `json:"type"`
	Quantity      int              `json:"quantity"`
	PreviousStock int              `json:"previous_stock"`
	NewStock      int              `json:"new_stock"`
	Threshold     int              `json:"stock_threshold"`
}

type StockLowPayload struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"stock_threshold"`
}

func StockAdjustedFrom(adj inventory.Adjustment) StockAdjustedPayload {
	return StockAdjustedPayload{
		LogID:         adj.ID,
		ProductID:     adj.ProductID,
		ActorID:       adj.ActorID,
		Type:          adj.Reason,
		Quantity:      adj.Quantity,
		PreviousStock: adj.PreviousStock,
		NewStock:      adj.NewStock,
		Threshold:     adj.Threshold,
	}
}
