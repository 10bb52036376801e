package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reason classifies a stock mutation in the ledger.
type Reason string

const (
	ReasonDeduction   Reason = "deduction"   // order entering fulfillment
	ReasonRestoration Reason = "restoration" // reversal of an earlier deduction
	ReasonDamage      Reason = "damage"      // write-off
	ReasonManual      Reason = "manual"      // operator correction, either direction
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonDeduction, ReasonRestoration, ReasonDamage, ReasonManual:
		return true
	}
	return false
}

// Record is the on-hand quantity for one product. Threshold is an advisory
// reorder hint and never blocks an adjustment.
type Record struct {
	ProductID string    `json:"product_id"`
	Stock     int       `json:"stock"`
	Threshold int       `json:"stock_threshold"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LogEntry is one row of the append-only stock ledger. Quantity is the
// positive magnitude of the change; the reason carries the direction.
type LogEntry struct {
	ID            string    `json:"log_id"`
	ProductID     string    `json:"product_id"`
	ActorID       string    `json:"user_id"`
	Reason        Reason    `json:"type"`
	Quantity      int       `json:"quantity"`
	PreviousStock int       `json:"previous_stock"`
	NewStock      int       `json:"new_stock"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Adjustment is the outcome of one Adjust call.
type Adjustment struct {
	LogEntry
	Threshold int `json:"stock_threshold"`
}

var ErrZeroDelta = errors.New("stock delta must be non-zero")

// Shortage names one product whose available stock cannot cover a request.
type Shortage struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s: requested %d, available %d", s.ProductID, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

type RecordMissingError struct {
	ProductID string
}

func (e *RecordMissingError) Error() string {
	return fmt.Sprintf("no inventory record for product %s", e.ProductID)
}

// Apply computes the stock value after a delta and enforces the two ledger
// invariants: a record must exist before any decrement, and stock never goes
// negative. It is the single guard both store implementations run through.
func Apply(productID string, prev int, exists bool, delta int) (int, error) {
	if delta == 0 {
		return prev, ErrZeroDelta
	}
	if !exists {
		if delta < 0 {
			return 0, &RecordMissingError{ProductID: productID}
		}
		return delta, nil
	}
	next := prev + delta
	if next < 0 {
		return prev, &InsufficientStockError{Shortages: []Shortage{{
			ProductID: productID,
			Requested: -delta,
			Available: prev,
		}}}
	}
	return next, nil
}

// reasonMatches rejects ledger rows whose sign contradicts their reason.
func reasonMatches(r Reason, delta int) bool {
	switch r {
	case ReasonDeduction, ReasonDamage:
		return delta < 0
	case ReasonRestoration:
		return delta > 0
	case ReasonManual:
		return true
	}
	return false
}

var errReasonSign = errors.New("stock delta sign does not match reason")

// CheckReason validates the reason/delta pairing for callers outside the
// package.
func CheckReason(r Reason, delta int) error {
	if !r.Valid() {
		return fmt.Errorf("unknown adjustment reason %q", r)
	}
	if !reasonMatches(r, delta) {
		return errReasonSign
	}
	return nil
}
