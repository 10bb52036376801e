package redisx

import "time"

const (
	// Cache order status: order:status:{order_id} -> {"status":"..."}
	KeyOrderStatus = "order:status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Last low-stock alert per product: alert:low:{product_id}
	// Keeps the alerts consumer from re-alerting on every adjustment
	// while a product sits under its threshold.
	KeyLowStockAlert = "alert:low:%s"
)

var (
	TTLStatusCache   = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
	TTLLowStockAlert = 6 * time.Hour
)
