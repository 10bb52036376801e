package orders

import (
	"context"

	"github.com/gasvida/gas-orders/internal/auth"
	"github.com/gasvida/gas-orders/internal/inventory"
)

// Geography resolves barangay identifiers. Checkout only needs existence;
// name/municipality ride along for the order confirmation payload.
type Geography interface {
	ResolveBarangay(ctx context.Context, id string) (Barangay, error)
}

// Store is the order/inventory consistency core. Both implementations (pgx
// and in-memory) enforce the same rules: stock mutations only through the
// adjustment primitive, at most one deduction per order, all-or-nothing
// checkout, role-gated transitions.
type Store interface {
	// Checkout validates a basket, partitions it by seller and creates one
	// pending order per seller group in a single transaction. Stock is
	// checked but not deducted.
	Checkout(ctx context.Context, buyer auth.Principal, in CheckoutInput) ([]OrderWithItems, error)

	// WalkIn creates an order already delivered, deducting stock in the same
	// transaction. Seller-only; every item must belong to the acting seller.
	WalkIn(ctx context.Context, actor auth.Principal, in WalkInInput) (OrderWithItems, []inventory.Adjustment, error)

	// Transition moves an order along one legal edge, applying the edge's
	// stock side effect exactly once.
	Transition(ctx context.Context, actor auth.Principal, orderID string, target Status) (TransitionResult, []inventory.Adjustment, error)

	GetOrder(ctx context.Context, actor auth.Principal, orderID string) (OrderWithItems, error)
	ListOrders(ctx context.Context, actor auth.Principal, f ListFilter) ([]OrderWithItems, error)
	OrderStatus(ctx context.Context, orderID string) (Status, error)

	// SetOrderActive soft-deletes (false) or restores (true) an order.
	// Admin-only; orders are never physically deleted.
	SetOrderActive(ctx context.Context, actor auth.Principal, orderID string, active bool) error

	Inventory(ctx context.Context, productID string) (inventory.Record, error)
	InventoryLogs(ctx context.Context, productID string, limit int) ([]inventory.LogEntry, error)

	// AdjustStock applies a manual/damage correction through the same
	// primitive the lifecycle uses. Sellers may only touch their own
	// products; admins may touch any.
	AdjustStock(ctx context.Context, actor auth.Principal, productID string, delta int, reason inventory.Reason, note string) (inventory.Adjustment, error)
	SetThreshold(ctx context.Context, actor auth.Principal, productID string, threshold int) error
}
