package orders

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gasvida/gas-orders/internal/auth"
	"github.com/gasvida/gas-orders/internal/inventory"
)

// MemStore is an in-memory Store with the same semantics as PgStore. One
// mutex stands in for the row locks: every operation that checks and mutates
// runs as a single critical section, so the concurrency guarantees hold the
// same way they do under FOR UPDATE.
type MemStore struct {
	mu        sync.Mutex
	products  map[string]Product
	barangays map[string]Barangay
	records   map[string]*inventory.Record
	logs      map[string][]inventory.LogEntry
	orders    map[string]*OrderWithItems
}

var _ Store = (*MemStore)(nil)
var _ Geography = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		products:  make(map[string]Product),
		barangays: make(map[string]Barangay),
		records:   make(map[string]*inventory.Record),
		logs:      make(map[string][]inventory.LogEntry),
		orders:    make(map[string]*OrderWithItems),
	}
}

func (s *MemStore) SeedProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *MemStore) SeedBarangay(b Barangay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.barangays[b.ID] = b
}

func (s *MemStore) SeedStock(productID string, stock, threshold int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[productID] = &inventory.Record{
		ProductID: productID,
		Stock:     stock,
		Threshold: threshold,
		UpdatedAt: time.Now().UTC(),
	}
}

func (s *MemStore) ResolveBarangay(_ context.Context, id string) (Barangay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.barangays[id]
	if !ok {
		return Barangay{}, &NotFoundError{Kind: "barangay", ID: id}
	}
	return b, nil
}

// adjust mirrors inventory.Adjust for the in-memory record set. Caller must
// hold s.mu.
func (s *MemStore) adjust(p inventory.AdjustParams) (inventory.Adjustment, error) {
	if err := inventory.CheckReason(p.Reason, p.Delta); err != nil {
		return inventory.Adjustment{}, err
	}
	rec, exists := s.records[p.ProductID]
	prev, threshold := 0, 0
	if exists {
		prev, threshold = rec.Stock, rec.Threshold
	}
	next, err := inventory.Apply(p.ProductID, prev, exists, p.Delta)
	if err != nil {
		return inventory.Adjustment{}, err
	}
	now := time.Now().UTC()
	if exists {
		rec.Stock = next
		rec.UpdatedAt = now
	} else {
		s.records[p.ProductID] = &inventory.Record{ProductID: p.ProductID, Stock: next, UpdatedAt: now}
	}
	entry := inventory.LogEntry{
		ID:            uuid.NewString(),
		ProductID:     p.ProductID,
		ActorID:       p.ActorID,
		Reason:        p.Reason,
		Quantity:      absInt(p.Delta),
		PreviousStock: prev,
		NewStock:      next,
		Description:   p.Description,
		CreatedAt:     now,
	}
	s.logs[p.ProductID] = append(s.logs[p.ProductID], entry)
	return inventory.Adjustment{LogEntry: entry, Threshold: threshold}, nil
}

func (s *MemStore) resolveProducts(items []CheckoutItem) (map[string]Product, error) {
	out := make(map[string]Product, len(items))
	for _, it := range items {
		p, ok := s.products[it.ProductID]
		if !ok {
			return nil, &NotFoundError{Kind: "product", ID: it.ProductID}
		}
		out[p.ID] = p
	}
	return out, nil
}

func (s *MemStore) available(productID string) int {
	if rec, ok := s.records[productID]; ok {
		return rec.Stock
	}
	return 0
}

func (s *MemStore) checkAvailability(items []CheckoutItem) error {
	var shortages []inventory.Shortage
	for _, it := range items {
		if got := s.available(it.ProductID); got < it.Qty {
			shortages = append(shortages, inventory.Shortage{
				ProductID: it.ProductID, Requested: it.Qty, Available: got,
			})
		}
	}
	if len(shortages) > 0 {
		return &inventory.InsufficientStockError{Shortages: shortages}
	}
	return nil
}

func (s *MemStore) Checkout(_ context.Context, buyer auth.Principal, in CheckoutInput) ([]OrderWithItems, error) {
	if buyer.Role != auth.RoleBuyer {
		return nil, &UnauthorizedError{Reason: "only buyers can check out"}
	}
	if err := ValidateItems(in.Items); err != nil {
		return nil, err
	}
	if err := ValidateBuyerInfo(in.Buyer); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.barangays[in.Buyer.BarangayID]; !ok {
		return nil, &NotFoundError{Kind: "barangay", ID: in.Buyer.BarangayID}
	}
	products, err := s.resolveProducts(in.Items)
	if err != nil {
		return nil, err
	}
	if err := s.checkAvailability(in.Items); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := make([]OrderWithItems, 0, 2)
	for _, g := range partitionBySeller(in.Items, products) {
		o := Order{
			ID:              uuid.NewString(),
			BuyerID:         &buyer.ID,
			SellerID:        g.SellerID,
			FullName:        in.Buyer.FullName,
			ContactNumber:   in.Buyer.ContactNumber,
			BarangayID:      in.Buyer.BarangayID,
			DeliveryAddress: in.Buyer.DeliveryAddress,
			Status:          StatusPending,
			TotalCents:      groupTotalCents(g.Items, products),
			IsActive:        true,
			OrderedAt:       now,
		}
		ow := OrderWithItems{Order: o, Items: buildItems(o.ID, g.Items, products)}
		s.orders[o.ID] = &ow
		created = append(created, copyOrder(&ow))
	}
	return created, nil
}

func (s *MemStore) WalkIn(_ context.Context, actor auth.Principal, in WalkInInput) (OrderWithItems, []inventory.Adjustment, error) {
	if actor.Role != auth.RoleSeller {
		return OrderWithItems{}, nil, &UnauthorizedError{Reason: "only sellers record walk-in sales"}
	}
	if err := ValidateItems(in.Items); err != nil {
		return OrderWithItems{}, nil, err
	}
	if err := ValidateBuyerInfo(in.Buyer); err != nil {
		return OrderWithItems{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.barangays[in.Buyer.BarangayID]; !ok {
		return OrderWithItems{}, nil, &NotFoundError{Kind: "barangay", ID: in.Buyer.BarangayID}
	}
	products, err := s.resolveProducts(in.Items)
	if err != nil {
		return OrderWithItems{}, nil, err
	}
	for _, p := range products {
		if p.SellerID != actor.ID {
			return OrderWithItems{}, nil, &UnauthorizedError{Reason: "product " + p.ID + " belongs to another seller"}
		}
	}
	// availability first so a failed basket leaves no ledger entries behind
	if err := s.checkAvailability(in.Items); err != nil {
		return OrderWithItems{}, nil, err
	}

	now := time.Now().UTC()
	o := Order{
		ID:                uuid.NewString(),
		SellerID:          actor.ID,
		FullName:          in.Buyer.FullName,
		ContactNumber:     in.Buyer.ContactNumber,
		BarangayID:        in.Buyer.BarangayID,
		DeliveryAddress:   in.Buyer.DeliveryAddress,
		Status:            StatusDelivered,
		TotalCents:        groupTotalCents(in.Items, products),
		IsActive:          true,
		InventoryDeducted: true,
		OrderedAt:         now,
		DeliveredAt:       &now,
	}
	adjustments := make([]inventory.Adjustment, 0, len(in.Items))
	for _, it := range sortedByProduct(in.Items) {
		adj, err := s.adjust(inventory.AdjustParams{
			ProductID:   it.ProductID,
			Delta:       -it.Qty,
			ActorID:     actor.ID,
			Reason:      inventory.ReasonDeduction,
			Description: "walk-in sale " + o.ID,
		})
		if err != nil {
			return OrderWithItems{}, nil, err
		}
		adjustments = append(adjustments, adj)
	}
	ow := OrderWithItems{Order: o, Items: buildItems(o.ID, in.Items, products)}
	s.orders[o.ID] = &ow
	return copyOrder(&ow), adjustments, nil
}

func (s *MemStore) Transition(_ context.Context, actor auth.Principal, orderID string, target Status) (TransitionResult, []inventory.Adjustment, error) {
	if !target.Valid() || target == StatusPending {
		return TransitionResult{}, nil, &ValidationError{Field: "status", Reason: "unknown or non-targetable status"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ow, ok := s.orders[orderID]
	if !ok || !ow.IsActive {
		return TransitionResult{}, nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err := authorizeOrderActor(actor, ow.Order); err != nil {
		return TransitionResult{}, nil, err
	}
	if target == ow.Status {
		return TransitionResult{OrderID: ow.ID, SellerID: ow.SellerID, From: ow.Status, To: target}, nil, nil
	}
	if err := checkEdge(actor.Role, ow.Order, target); err != nil {
		return TransitionResult{}, nil, err
	}

	items := make([]OrderItem, len(ow.Items))
	copy(items, ow.Items)
	sortItemsByProduct(items)

	var adjustments []inventory.Adjustment
	switch EffectOf(ow.Status, target) {
	case EffectDeduct:
		if !ow.InventoryDeducted {
			var shortages []inventory.Shortage
			for _, it := range items {
				if got := s.available(it.ProductID); got < it.Qty {
					shortages = append(shortages, inventory.Shortage{
						ProductID: it.ProductID, Requested: it.Qty, Available: got,
					})
				}
			}
			if len(shortages) > 0 {
				return TransitionResult{}, nil, &inventory.InsufficientStockError{Shortages: shortages}
			}
			for _, it := range items {
				adj, err := s.adjust(inventory.AdjustParams{
					ProductID:   it.ProductID,
					Delta:       -it.Qty,
					ActorID:     actor.ID,
					Reason:      inventory.ReasonDeduction,
					Description: "order " + ow.ID + " fulfillment",
				})
				if err != nil {
					return TransitionResult{}, nil, err
				}
				adjustments = append(adjustments, adj)
			}
			ow.InventoryDeducted = true
		}
	case EffectRestore:
		if ow.InventoryDeducted {
			for _, it := range items {
				adj, err := s.adjust(inventory.AdjustParams{
					ProductID:   it.ProductID,
					Delta:       it.Qty,
					ActorID:     actor.ID,
					Reason:      inventory.ReasonRestoration,
					Description: "order " + ow.ID + " cancelled",
				})
				if err != nil {
					return TransitionResult{}, nil, err
				}
				adjustments = append(adjustments, adj)
			}
			ow.InventoryDeducted = false
		}
	}

	from := ow.Status
	ow.Status = target
	if target == StatusDelivered {
		now := time.Now().UTC()
		ow.DeliveredAt = &now
	}
	return TransitionResult{
		OrderID:    ow.ID,
		SellerID:   ow.SellerID,
		From:       from,
		To:         target,
		Changed:    true,
		StockMoved: len(adjustments) > 0,
	}, adjustments, nil
}

func (s *MemStore) GetOrder(_ context.Context, actor auth.Principal, orderID string) (OrderWithItems, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ow, ok := s.orders[orderID]
	if !ok {
		return OrderWithItems{}, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err := canSeeOrder(actor, ow.Order); err != nil {
		return OrderWithItems{}, err
	}
	return copyOrder(ow), nil
}

func (s *MemStore) ListOrders(_ context.Context, actor auth.Principal, f ListFilter) ([]OrderWithItems, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OrderWithItems
	for _, ow := range s.orders {
		switch actor.Role {
		case auth.RoleBuyer:
			if ow.BuyerID == nil || *ow.BuyerID != actor.ID || !ow.IsActive {
				continue
			}
		case auth.RoleSeller:
			if ow.SellerID != actor.ID || !ow.IsActive {
				continue
			}
		case auth.RoleAdmin:
			if !ow.IsActive && !f.IncludeInactive {
				continue
			}
		}
		if f.Status != nil && ow.Status != *f.Status {
			continue
		}
		out = append(out, copyOrder(ow))
	}
	return out, nil
}

func (s *MemStore) OrderStatus(_ context.Context, orderID string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ow, ok := s.orders[orderID]
	if !ok || !ow.IsActive {
		return "", &NotFoundError{Kind: "order", ID: orderID}
	}
	return ow.Status, nil
}

func (s *MemStore) SetOrderActive(_ context.Context, actor auth.Principal, orderID string, active bool) error {
	if actor.Role != auth.RoleAdmin {
		return &UnauthorizedError{Reason: "admin only"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ow, ok := s.orders[orderID]
	if !ok {
		return &NotFoundError{Kind: "order", ID: orderID}
	}
	ow.IsActive = active
	return nil
}

func (s *MemStore) Inventory(_ context.Context, productID string) (inventory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[productID]
	if !ok {
		return inventory.Record{}, &NotFoundError{Kind: "inventory", ID: productID}
	}
	return *rec, nil
}

func (s *MemStore) InventoryLogs(_ context.Context, productID string, limit int) ([]inventory.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.logs[productID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	// newest first, same as the SQL ordering
	out := make([]inventory.LogEntry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *MemStore) AdjustStock(_ context.Context, actor auth.Principal, productID string, delta int, reason inventory.Reason, note string) (inventory.Adjustment, error) {
	if reason != inventory.ReasonManual && reason != inventory.ReasonDamage {
		return inventory.Adjustment{}, &ValidationError{Field: "type", Reason: "manual adjustments must be 'manual' or 'damage'"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireProductAccess(actor, productID); err != nil {
		return inventory.Adjustment{}, err
	}
	return s.adjust(inventory.AdjustParams{
		ProductID:   productID,
		Delta:       delta,
		ActorID:     actor.ID,
		Reason:      reason,
		Description: note,
	})
}

func (s *MemStore) SetThreshold(_ context.Context, actor auth.Principal, productID string, threshold int) error {
	if threshold < 0 {
		return &ValidationError{Field: "stock_threshold", Reason: "must not be negative"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireProductAccess(actor, productID); err != nil {
		return err
	}
	rec, ok := s.records[productID]
	if !ok {
		return &NotFoundError{Kind: "inventory", ID: productID}
	}
	rec.Threshold = threshold
	return nil
}

func (s *MemStore) requireProductAccess(actor auth.Principal, productID string) error {
	p, ok := s.products[productID]
	if !ok {
		return &NotFoundError{Kind: "product", ID: productID}
	}
	switch actor.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleSeller:
		if p.SellerID == actor.ID {
			return nil
		}
		return &UnauthorizedError{Reason: "product belongs to another seller"}
	}
	return &UnauthorizedError{Reason: "buyers cannot adjust inventory"}
}

func buildItems(orderID string, items []CheckoutItem, products map[string]Product) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItem{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			ProductID:  it.ProductID,
			Qty:        it.Qty,
			PriceCents: products[it.ProductID].UnitPriceCents(),
		})
	}
	return out
}

func copyOrder(ow *OrderWithItems) OrderWithItems {
	out := *ow
	out.Items = make([]OrderItem, len(ow.Items))
	copy(out.Items, ow.Items)
	return out
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
