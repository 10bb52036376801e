package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type AdjustParams struct {
	ProductID   string
	Delta       int
	ActorID     string
	Reason      Reason
	Description string
}

// Adjust is the only legal mutator of inventory stock. It must run inside the
// caller's transaction: the FOR UPDATE read keeps the check and the write
// under one row lock, and the ledger insert commits or rolls back with the
// stock update.
func Adjust(ctx context.Context, tx pgx.Tx, p AdjustParams) (Adjustment, error) {
	if err := CheckReason(p.Reason, p.Delta); err != nil {
		return Adjustment{}, err
	}

	var prev, threshold int
	exists := true
	err := tx.QueryRow(ctx,
		`SELECT stock, stock_threshold FROM inventory WHERE product_id=$1 FOR UPDATE`,
		p.ProductID).Scan(&prev, &threshold)
	if errors.Is(err, pgx.ErrNoRows) {
		exists = false
	} else if err != nil {
		return Adjustment{}, err
	}

	next, err := Apply(p.ProductID, prev, exists, p.Delta)
	if err != nil {
		return Adjustment{}, err
	}

	now := time.Now().UTC()
	if exists {
		_, err = tx.Exec(ctx,
			`UPDATE inventory SET stock=$2, updated_at=$3 WHERE product_id=$1`,
			p.ProductID, next, now)
	} else {
		// first stock-increasing event creates the record
		_, err = tx.Exec(ctx,
			`INSERT INTO inventory(product_id, stock, stock_threshold, updated_at)
			 VALUES ($1, $2, 0, $3)`,
			p.ProductID, next, now)
	}
	if err != nil {
		return Adjustment{}, err
	}

	entry := LogEntry{
		ID:            uuid.NewString(),
		ProductID:     p.ProductID,
		ActorID:       p.ActorID,
		Reason:        p.Reason,
		Quantity:      abs(p.Delta),
		PreviousStock: prev,
		NewStock:      next,
		Description:   p.Description,
		CreatedAt:     now,
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO inventory_logs(id, product_id, user_id, type, quantity, previous_stock, new_stock, description, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID, entry.ProductID, entry.ActorID, string(entry.Reason),
		entry.Quantity, entry.PreviousStock, entry.NewStock, entry.Description, entry.CreatedAt)
	if err != nil {
		return Adjustment{}, err
	}
	return Adjustment{LogEntry: entry, Threshold: threshold}, nil
}

// LockStock reads a product's stock under FOR UPDATE so the caller can check
// availability for a whole basket before mutating any of it. Missing record
// reads as zero available.
func LockStock(ctx context.Context, tx pgx.Tx, productID string) (int, bool, error) {
	var stock int
	err := tx.QueryRow(ctx,
		`SELECT stock FROM inventory WHERE product_id=$1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return stock, true, nil
}

func GetRecord(ctx context.Context, q Querier, productID string) (Record, bool, error) {
	var r Record
	r.ProductID = productID
	err := q.QueryRow(ctx,
		`SELECT stock, stock_threshold, updated_at FROM inventory WHERE product_id=$1`,
		productID).Scan(&r.Stock, &r.Threshold, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

func ListLogs(ctx context.Context, q Querier, productID string, limit int) ([]LogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := q.Query(ctx,
		`SELECT id, product_id, user_id, type, quantity, previous_stock, new_stock, description, created_at
		 FROM inventory_logs WHERE product_id=$1 ORDER BY created_at DESC LIMIT $2`,
		productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var reason string
		if err := rows.Scan(&e.ID, &e.ProductID, &e.ActorID, &reason, &e.Quantity,
			&e.PreviousStock, &e.NewStock, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Reason = Reason(reason)
		out = append(out, e)
	}
	return out, rows.Err()
}

func SetThreshold(ctx context.Context, q Querier, productID string, threshold int) (bool, error) {
	ct, err := q.Exec(ctx,
		`UPDATE inventory SET stock_threshold=$2 WHERE product_id=$1`, productID, threshold)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
