package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gasvida/gas-orders/internal/auth"
	"github.com/gasvida/gas-orders/internal/inventory"
)

type PgStore struct {
	DB  *pgxpool.Pool
	Geo Geography
}

var _ Store = (*PgStore)(nil)

// PgGeography resolves barangays from the local geography table.
type PgGeography struct {
	DB *pgxpool.Pool
}

func (g *PgGeography) ResolveBarangay(ctx context.Context, id string) (Barangay, error) {
	var b Barangay
	b.ID = id
	err := g.DB.QueryRow(ctx,
		`SELECT name, municipality FROM barangays WHERE id=$1`, id).Scan(&b.Name, &b.Municipality)
	if errors.Is(err, pgx.ErrNoRows) {
		return Barangay{}, &NotFoundError{Kind: "barangay", ID: id}
	}
	if err != nil {
		return Barangay{}, err
	}
	return b, nil
}

func (s *PgStore) Checkout(ctx context.Context, buyer auth.Principal, in CheckoutInput) ([]OrderWithItems, error) {
	if buyer.Role != auth.RoleBuyer {
		return nil, &UnauthorizedError{Reason: "only buyers can check out"}
	}
	if err := ValidateItems(in.Items); err != nil {
		return nil, err
	}
	if err := ValidateBuyerInfo(in.Buyer); err != nil {
		return nil, err
	}
	if _, err := s.Geo.ResolveBarangay(ctx, in.Buyer.BarangayID); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	products, err := loadProducts(ctx, tx, in.Items)
	if err != nil {
		return nil, err
	}

	// availability precheck; nothing is deducted or reserved here — the
	// binding check happens under lock at the preparing transition
	if err := checkAvailability(ctx, tx, in.Items); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := make([]OrderWithItems, 0, 2)
	for _, g := range partitionBySeller(in.Items, products) {
		o := Order{
			ID:            uuid.NewString(),
			BuyerID:       &buyer.ID,
			SellerID:      g.SellerID,
			FullName:      in.Buyer.FullName,
			ContactNumber: in.Buyer.ContactNumber,
			BarangayID:    in.Buyer.BarangayID,

			DeliveryAddress: in.Buyer.DeliveryAddress,
			Status:          StatusPending,
			TotalCents:      groupTotalCents(g.Items, products),
			IsActive:        true,
			OrderedAt:       now,
		}
		items, err := insertOrder(ctx, tx, o, g.Items, products)
		if err != nil {
			return nil, err
		}
		created = append(created, OrderWithItems{Order: o, Items: items})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *PgStore) WalkIn(ctx context.Context, actor auth.Principal, in WalkInInput) (OrderWithItems, []inventory.Adjustment, error) {
	if actor.Role != auth.RoleSeller {
		return OrderWithItems{}, nil, &UnauthorizedError{Reason: "only sellers record walk-in sales"}
	}
	if err := ValidateItems(in.Items); err != nil {
		return OrderWithItems{}, nil, err
	}
	if err := ValidateBuyerInfo(in.Buyer); err != nil {
		return OrderWithItems{}, nil, err
	}
	if _, err := s.Geo.ResolveBarangay(ctx, in.Buyer.BarangayID); err != nil {
		return OrderWithItems{}, nil, err
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return OrderWithItems{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	products, err := loadProducts(ctx, tx, in.Items)
	if err != nil {
		return OrderWithItems{}, nil, err
	}
	for _, p := range products {
		if p.SellerID != actor.ID {
			return OrderWithItems{}, nil, &UnauthorizedError{Reason: "product " + p.ID + " belongs to another seller"}
		}
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

	// lock every row and report the full shortage list before touching any
	// stock; a failed basket leaves no order and no ledger entries behind
	sorted := sortedByProduct(in.Items)
	var shortages []inventory.Shortage
	for _, it := range sorted {
		stock, _, err := inventory.LockStock(ctx, tx, it.ProductID)
		if err != nil {
			return OrderWithItems{}, nil, err
		}
		if stock < it.Qty {
			shortages = append(shortages, inventory.Shortage{
				ProductID: it.ProductID, Requested: it.Qty, Available: stock,
			})
		}
	}
	if len(shortages) > 0 {
		return OrderWithItems{}, nil, &inventory.InsufficientStockError{Shortages: shortages}
	}

	adjustments := make([]inventory.Adjustment, 0, len(in.Items))
	for _, it := range sorted {
		adj, err := inventory.Adjust(ctx, tx, inventory.AdjustParams{
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

	items, err := insertOrder(ctx, tx, o, in.Items, products)
	if err != nil {
		return OrderWithItems{}, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return OrderWithItems{}, nil, err
	}
	return OrderWithItems{Order: o, Items: items}, adjustments, nil
}

// loadProducts fetches the catalog rows for a basket. Unknown ids fail the
// whole request.
func loadProducts(ctx context.Context, tx pgx.Tx, items []CheckoutItem) (map[string]Product, error) {
	args := make([]any, 0, len(items))
	params := ""
	for i, it := range items {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, it.ProductID)
	}
	rows, err := tx.Query(ctx,
		`SELECT id, seller_id, name, price_cents, discounted_cents FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Product, len(items))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.PriceCents, &p.DiscountedCents); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, it := range items {
		if _, ok := out[it.ProductID]; !ok {
			return nil, &NotFoundError{Kind: "product", ID: it.ProductID}
		}
	}
	return out, nil
}

func checkAvailability(ctx context.Context, tx pgx.Tx, items []CheckoutItem) error {
	var shortages []inventory.Shortage
	for _, it := range items {
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT stock FROM inventory WHERE product_id=$1`, it.ProductID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			stock = 0
		} else if err != nil {
			return err
		}
		if stock < it.Qty {
			shortages = append(shortages, inventory.Shortage{
				ProductID: it.ProductID, Requested: it.Qty, Available: stock,
			})
		}
	}
	if len(shortages) > 0 {
		return &inventory.InsufficientStockError{Shortages: shortages}
	}
	return nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o Order, items []CheckoutItem, products map[string]Product) ([]OrderItem, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO orders(id, buyer_id, seller_id, full_name, contact_number, barangay_id,
		                   delivery_address, status, total_cents, is_active, inventory_deducted,
		                   ordered_at, delivered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		o.ID, o.BuyerID, o.SellerID, o.FullName, o.ContactNumber, o.BarangayID,
		o.DeliveryAddress, string(o.Status), o.TotalCents, o.IsActive, o.InventoryDeducted,
		o.OrderedAt, o.DeliveredAt)
	if err != nil {
		return nil, err
	}

	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		oi := OrderItem{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			ProductID:  it.ProductID,
			Qty:        it.Qty,
			PriceCents: products[it.ProductID].UnitPriceCents(),
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, qty, price_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			oi.ID, oi.OrderID, oi.ProductID, oi.Qty, oi.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, oi)
	}
	return out, nil
}
