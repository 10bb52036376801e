package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gasvida/gas-orders/internal/auth"
	"github.com/gasvida/gas-orders/internal/inventory"
)

func edgeExists(from, to Status) bool {
	return len(validNext[edge{from, to}]) > 0
}

// Transition moves one order along the lifecycle. The order row is locked
// FOR UPDATE for the whole transaction, so the inventory_deducted check and
// flip cannot race: two concurrent requests serialize, and the loser sees the
// already-updated status.
func (s *PgStore) Transition(ctx context.Context, actor auth.Principal, orderID string, target Status) (TransitionResult, []inventory.Adjustment, error) {
	if !target.Valid() || target == StatusPending {
		return TransitionResult{}, nil, &ValidationError{Field: "status", Reason: "unknown or non-targetable status"}
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransitionResult{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var o Order
	var status string
	err = tx.QueryRow(ctx, `
		SELECT id, buyer_id, seller_id, status, inventory_deducted, is_active
		FROM orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&o.ID, &o.BuyerID, &o.SellerID, &status, &o.InventoryDeducted, &o.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransitionResult{}, nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return TransitionResult{}, nil, err
	}
	o.Status = Status(status)
	if !o.IsActive {
		return TransitionResult{}, nil, &NotFoundError{Kind: "order", ID: orderID}
	}

	if err := authorizeOrderActor(actor, o); err != nil {
		return TransitionResult{}, nil, err
	}
	if target == o.Status {
		// soft no-op, not an error
		return TransitionResult{OrderID: o.ID, SellerID: o.SellerID, From: o.Status, To: target}, nil, nil
	}
	if err := checkEdge(actor.Role, o, target); err != nil {
		return TransitionResult{}, nil, err
	}

	items, err := s.orderItems(ctx, tx, o.ID)
	if err != nil {
		return TransitionResult{}, nil, err
	}

	var adjustments []inventory.Adjustment
	switch EffectOf(o.Status, target) {
	case EffectDeduct:
		if !o.InventoryDeducted {
			adjustments, err = s.deductAll(ctx, tx, actor.ID, o.ID, items)
			if err != nil {
				return TransitionResult{}, nil, err
			}
			if _, err := tx.Exec(ctx, `UPDATE orders SET inventory_deducted=TRUE WHERE id=$1`, o.ID); err != nil {
				return TransitionResult{}, nil, err
			}
		}
	case EffectRestore:
		if o.InventoryDeducted {
			adjustments, err = s.restoreAll(ctx, tx, actor.ID, o.ID, items)
			if err != nil {
				return TransitionResult{}, nil, err
			}
			if _, err := tx.Exec(ctx, `UPDATE orders SET inventory_deducted=FALSE WHERE id=$1`, o.ID); err != nil {
				return TransitionResult{}, nil, err
			}
		}
	}

	if target == StatusDelivered {
		_, err = tx.Exec(ctx, `UPDATE orders SET status=$2, delivered_at=$3 WHERE id=$1`,
			o.ID, string(target), time.Now().UTC())
	} else {
		_, err = tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, o.ID, string(target))
	}
	if err != nil {
		return TransitionResult{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransitionResult{}, nil, err
	}
	return TransitionResult{
		OrderID:    o.ID,
		SellerID:   o.SellerID,
		From:       o.Status,
		To:         target,
		Changed:    true,
		StockMoved: len(adjustments) > 0,
	}, adjustments, nil
}

// deductAll locks every inventory row first and reports the full shortage
// list before touching any stock.
func (s *PgStore) deductAll(ctx context.Context, tx pgx.Tx, actorID, orderID string, items []OrderItem) ([]inventory.Adjustment, error) {
	sorted := make([]OrderItem, len(items))
	copy(sorted, items)
	sortItemsByProduct(sorted)

	var shortages []inventory.Shortage
	for _, it := range sorted {
		// missing record reads as zero available
		stock, _, err := inventory.LockStock(ctx, tx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if stock < it.Qty {
			shortages = append(shortages, inventory.Shortage{
				ProductID: it.ProductID, Requested: it.Qty, Available: stock,
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &inventory.InsufficientStockError{Shortages: shortages}
	}

	out := make([]inventory.Adjustment, 0, len(sorted))
	for _, it := range sorted {
		adj, err := inventory.Adjust(ctx, tx, inventory.AdjustParams{
			ProductID:   it.ProductID,
			Delta:       -it.Qty,
			ActorID:     actorID,
			Reason:      inventory.ReasonDeduction,
			Description: "order " + orderID + " fulfillment",
		})
		if err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, nil
}

func (s *PgStore) restoreAll(ctx context.Context, tx pgx.Tx, actorID, orderID string, items []OrderItem) ([]inventory.Adjustment, error) {
	sorted := make([]OrderItem, len(items))
	copy(sorted, items)
	sortItemsByProduct(sorted)

	out := make([]inventory.Adjustment, 0, len(sorted))
	for _, it := range sorted {
		adj, err := inventory.Adjust(ctx, tx, inventory.AdjustParams{
			ProductID:   it.ProductID,
			Delta:       it.Qty,
			ActorID:     actorID,
			Reason:      inventory.ReasonRestoration,
			Description: "order " + orderID + " cancelled",
		})
		if err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, nil
}

func (s *PgStore) orderItems(ctx context.Context, q inventory.Querier, orderID string) ([]OrderItem, error) {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, qty, price_cents FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

const orderColumns = `id, buyer_id, seller_id, full_name, contact_number, barangay_id,
	delivery_address, status, total_cents, is_active, inventory_deducted, ordered_at, delivered_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.FullName, &o.ContactNumber, &o.BarangayID,
		&o.DeliveryAddress, &status, &o.TotalCents, &o.IsActive, &o.InventoryDeducted,
		&o.OrderedAt, &o.DeliveredAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

func (s *PgStore) GetOrder(ctx context.Context, actor auth.Principal, orderID string) (OrderWithItems, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderWithItems{}, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return OrderWithItems{}, err
	}
	if err := canSeeOrder(actor, o); err != nil {
		return OrderWithItems{}, err
	}
	items, err := s.orderItems(ctx, s.DB, orderID)
	if err != nil {
		return OrderWithItems{}, err
	}
	return OrderWithItems{Order: o, Items: items}, nil
}

// canSeeOrder hides soft-deleted orders from everyone but admins and scopes
// reads to the owning buyer or seller.
func canSeeOrder(actor auth.Principal, o Order) error {
	if actor.Role == auth.RoleAdmin {
		return nil
	}
	if !o.IsActive {
		return &NotFoundError{Kind: "order", ID: o.ID}
	}
	switch actor.Role {
	case auth.RoleBuyer:
		if o.BuyerID != nil && *o.BuyerID == actor.ID {
			return nil
		}
	case auth.RoleSeller:
		if o.SellerID == actor.ID {
			return nil
		}
	}
	return &UnauthorizedError{Reason: "not your order"}
}

func (s *PgStore) ListOrders(ctx context.Context, actor auth.Principal, f ListFilter) ([]OrderWithItems, error) {
	q := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	where := ""
	and := func(cond string) {
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}

	switch actor.Role {
	case auth.RoleBuyer:
		args = append(args, actor.ID)
		and("buyer_id=$1")
		and("is_active")
	case auth.RoleSeller:
		args = append(args, actor.ID)
		and("seller_id=$1")
		and("is_active")
	case auth.RoleAdmin:
		if !f.IncludeInactive {
			and("is_active")
		}
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		and("status=$" + itoa(len(args)))
	}

	rows, err := s.DB.Query(ctx, q+where+` ORDER BY ordered_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderWithItems
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, OrderWithItems{Order: o})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := s.orderItems(ctx, s.DB, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (s *PgStore) OrderStatus(ctx context.Context, orderID string) (Status, error) {
	var st string
	err := s.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 AND is_active`, orderID).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return "", err
	}
	return Status(st), nil
}

func (s *PgStore) SetOrderActive(ctx context.Context, actor auth.Principal, orderID string, active bool) error {
	if actor.Role != auth.RoleAdmin {
		return &UnauthorizedError{Reason: "admin only"}
	}
	ct, err := s.DB.Exec(ctx, `UPDATE orders SET is_active=$2 WHERE id=$1`, orderID, active)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &NotFoundError{Kind: "order", ID: orderID}
	}
	return nil
}

func (s *PgStore) Inventory(ctx context.Context, productID string) (inventory.Record, error) {
	r, ok, err := inventory.GetRecord(ctx, s.DB, productID)
	if err != nil {
		return inventory.Record{}, err
	}
	if !ok {
		return inventory.Record{}, &NotFoundError{Kind: "inventory", ID: productID}
	}
	return r, nil
}

func (s *PgStore) InventoryLogs(ctx context.Context, productID string, limit int) ([]inventory.LogEntry, error) {
	return inventory.ListLogs(ctx, s.DB, productID, limit)
}

func (s *PgStore) AdjustStock(ctx context.Context, actor auth.Principal, productID string, delta int, reason inventory.Reason, note string) (inventory.Adjustment, error) {
	if reason != inventory.ReasonManual && reason != inventory.ReasonDamage {
		return inventory.Adjustment{}, &ValidationError{Field: "type", Reason: "manual adjustments must be 'manual' or 'damage'"}
	}
	if err := s.requireProductAccess(ctx, actor, productID); err != nil {
		return inventory.Adjustment{}, err
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return inventory.Adjustment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	adj, err := inventory.Adjust(ctx, tx, inventory.AdjustParams{
		ProductID:   productID,
		Delta:       delta,
		ActorID:     actor.ID,
		Reason:      reason,
		Description: note,
	})
	if err != nil {
		return inventory.Adjustment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return inventory.Adjustment{}, err
	}
	return adj, nil
}

func (s *PgStore) SetThreshold(ctx context.Context, actor auth.Principal, productID string, threshold int) error {
	if threshold < 0 {
		return &ValidationError{Field: "stock_threshold", Reason: "must not be negative"}
	}
	if err := s.requireProductAccess(ctx, actor, productID); err != nil {
		return err
	}
	ok, err := inventory.SetThreshold(ctx, s.DB, productID, threshold)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{Kind: "inventory", ID: productID}
	}
	return nil
}

func (s *PgStore) requireProductAccess(ctx context.Context, actor auth.Principal, productID string) error {
	var sellerID string
	err := s.DB.QueryRow(ctx, `SELECT seller_id FROM products WHERE id=$1`, productID).Scan(&sellerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Kind: "product", ID: productID}
	}
	if err != nil {
		return err
	}
	switch actor.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleSeller:
		if sellerID == actor.ID {
			return nil
		}
		return &UnauthorizedError{Reason: "product belongs to another seller"}
	}
	return &UnauthorizedError{Reason: "buyers cannot adjust inventory"}
}
