package orders

import "github.com/gasvida/gas-orders/internal/auth"

type Status string

const (
	StatusPending    Status = "pending"
	StatusPreparing  Status = "preparing"
	StatusOnDelivery Status = "on_delivery"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusOnDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type edge struct{ from, to Status }

// validNext gates every edge by the roles allowed to take it. Buyers may only
// cancel while the order is still pending; everything else is seller territory.
// Admins observe, they do not transition.
var validNext = map[edge][]auth.Role{
	{StatusPending, StatusPreparing}:    {auth.RoleSeller},
	{StatusPreparing, StatusOnDelivery}: {auth.RoleSeller},
	{StatusOnDelivery, StatusDelivered}: {auth.RoleSeller},
	{StatusPending, StatusCancelled}:    {auth.RoleBuyer, auth.RoleSeller},
	{StatusPreparing, StatusCancelled}:  {auth.RoleSeller},
}

func CanTransition(role auth.Role, from, to Status) bool {
	for _, r := range validNext[edge{from, to}] {
		if r == role {
			return true
		}
	}
	return false
}

// StockEffect is the inventory side effect a transition carries.
type StockEffect int

const (
	EffectNone StockEffect = iota
	EffectDeduct
	EffectRestore
)

// EffectOf returns the stock side effect of a legal edge. Restoration is
// still gated on inventory_deducted by the store, so a pending cancellation
// resolves to no mutation even though the edge reports EffectRestore.
func EffectOf(from, to Status) StockEffect {
	switch {
	case from == StatusPending && to == StatusPreparing:
		return EffectDeduct
	case from == StatusPreparing && to == StatusCancelled:
		return EffectRestore
	}
	return EffectNone
}

// authorizeOrderActor checks the actor may act on this order at all: buyers
// on their own orders, sellers on orders for their products. Admins observe
// through the read endpoints, they do not transition.
func authorizeOrderActor(actor auth.Principal, o Order) error {
	switch actor.Role {
	case auth.RoleBuyer:
		if o.BuyerID == nil || *o.BuyerID != actor.ID {
			return &UnauthorizedError{Reason: "not your order"}
		}
	case auth.RoleSeller:
		if o.SellerID != actor.ID {
			return &UnauthorizedError{Reason: "order belongs to another seller"}
		}
	default:
		return &UnauthorizedError{Reason: "admins do not transition orders"}
	}
	return nil
}

// checkEdge distinguishes "no such edge" (illegal transition) from "edge
// exists but not for this role" (unauthorized).
func checkEdge(role auth.Role, o Order, target Status) error {
	if !edgeExists(o.Status, target) {
		return &InvalidStateTransitionError{OrderID: o.ID, From: o.Status, To: target}
	}
	if !CanTransition(role, o.Status, target) {
		return &UnauthorizedError{Reason: "role " + string(role) + " may not take this transition"}
	}
	return nil
}

// TransitionResult reports a status change back to the caller. Changed is
// false when the requested status equals the current one (soft no-op).
type TransitionResult struct {
	OrderID    string `json:"order_id"`
	SellerID   string `json:"seller_id"`
	From       Status `json:"from"`
	To         Status `json:"to"`
	Changed    bool   `json:"changed"`
	StockMoved bool   `json:"stock_moved"`
}
