package orders

const (
	TopicOrderCreated       = "orders.created"
	TopicOrderStatusChanged = "orders.status.changed"
	TopicStockAdjusted      = "inventory.stock.adjusted"
	TopicStockLow           = "inventory.stock.low"
)

// PartitionKey keeps every event for one entity (order or product) on one
// partition so consumers see them in order.
func PartitionKey(id string) []byte { return []byte(id) }
