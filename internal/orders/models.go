package orders

import "time"

// Product is a read-only view of the catalog. This service never writes it.
type Product struct {
	ID              string
	SellerID        string
	Name            string
	PriceCents      int
	DiscountedCents *int
}

// UnitPriceCents is the price snapshotted onto an order item at creation time.
func (p Product) UnitPriceCents() int {
	if p.DiscountedCents != nil && *p.DiscountedCents > 0 && *p.DiscountedCents < p.PriceCents {
		return *p.DiscountedCents
	}
	return p.PriceCents
}

type Barangay struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Municipality string `json:"municipality"`
}

type Order struct {
	ID                string     `json:"order_id"`
	BuyerID           *string    `json:"buyer_id,omitempty"` // nil for walk-in
	SellerID          string     `json:"seller_id"`
	FullName          string     `json:"full_name"`
	ContactNumber     string     `json:"contact_number"`
	BarangayID        string     `json:"barangay_id"`
	DeliveryAddress   string     `json:"delivery_address"`
	Status            Status     `json:"status"`
	TotalCents        int        `json:"total_cents"`
	IsActive          bool       `json:"is_active"`
	InventoryDeducted bool       `json:"inventory_deducted"`
	OrderedAt         time.Time  `json:"ordered_at"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
}

// Items are immutable once written; status changes never rewrite them.
type OrderItem struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	ProductID  string `json:"product_id"`
	Qty        int    `json:"quantity"`
	PriceCents int    `json:"price_cents"` // unit price snapshot at order time
}

type OrderWithItems struct {
	Order
	Items []OrderItem `json:"items"`
}

type CheckoutItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"quantity"`
}

type BuyerInfo struct {
	FullName        string `json:"full_name"`
	ContactNumber   string `json:"contact_number"`
	BarangayID      string `json:"barangay_id"`
	DeliveryAddress string `json:"delivery_address"`
}

type CheckoutInput struct {
	Items []CheckoutItem
	Buyer BuyerInfo
}

type WalkInInput struct {
	Items []CheckoutItem
	Buyer BuyerInfo
}

type ListFilter struct {
	Status          *Status
	IncludeInactive bool // admin-only; ignored for other roles
}
