package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gasvida/gas-orders/internal/auth"
	"github.com/gasvida/gas-orders/internal/inventory"
	"github.com/gasvida/gas-orders/internal/orders"
	"github.com/gasvida/gas-orders/internal/redisx"
)

type OrdersHandler struct {
	Store orders.Store
	Redis *redis.Client // optional status cache; nil disables it

	PubCreated Publisher
	PubStatus  Publisher
	PubStock   Publisher

	Log     *zap.Logger
	Service string
}

type CheckoutReq struct {
	Items           []orders.CheckoutItem `json:"items"`
	FullName        string                `json:"full_name"`
	ContactNumber   string                `json:"contact_number"`
	BarangayID      string                `json:"barangay_id"`
	DeliveryAddress string                `json:"delivery_address"`
}

// WalkInReq accepts either an items list or the single-item shorthand.
type WalkInReq struct {
	Items           []orders.CheckoutItem `json:"items"`
	ProductID       string                `json:"product_id"`
	Quantity        int                   `json:"quantity"`
	FullName        string                `json:"full_name"`
	ContactNumber   string                `json:"contact_number"`
	BarangayID      string                `json:"barangay_id"`
	DeliveryAddress string                `json:"delivery_address"`
}

type TransitionReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
	r.Post("/orders/walk-in", h.walkIn)
	r.Post("/orders/{id}/status", h.transition)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Delete("/orders/{id}", h.softDelete)
	r.Post("/orders/{id}/restore", h.restore)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := h.Store.Checkout(ctx, p, orders.CheckoutInput{
		Items: req.Items,
		Buyer: orders.BuyerInfo{
			FullName:        req.FullName,
			ContactNumber:   req.ContactNumber,
			BarangayID:      req.BarangayID,
			DeliveryAddress: req.DeliveryAddress,
		},
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	trace := r.Header.Get("X-Request-Id")
	for _, o := range created {
		h.cacheStatus(ctx, o.ID, o.Status)
		h.publishCreated(o, false, trace)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"orders": created})
}

func (h *OrdersHandler) walkIn(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req WalkInReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	items := req.Items
	if len(items) == 0 && req.ProductID != "" {
		items = []orders.CheckoutItem{{ProductID: req.ProductID, Qty: req.Quantity}}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, adjustments, err := h.Store.WalkIn(ctx, p, orders.WalkInInput{
		Items: items,
		Buyer: orders.BuyerInfo{
			FullName:        req.FullName,
			ContactNumber:   req.ContactNumber,
			BarangayID:      req.BarangayID,
			DeliveryAddress: req.DeliveryAddress,
		},
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	trace := r.Header.Get("X-Request-Id")
	h.cacheStatus(ctx, o.ID, o.Status)
	h.publishCreated(o, true, trace)
	h.publishAdjustments(adjustments, trace)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	orderID := chi.URLParam(r, "id")
	var req TransitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, adjustments, err := h.Store.Transition(ctx, p, orderID, req.Status)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	if res.Changed {
		trace := r.Header.Get("X-Request-Id")
		h.cacheStatus(ctx, res.OrderID, res.To)
		h.publishStatusChanged(res, trace)
		h.publishAdjustments(adjustments, trace)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.GetOrder(ctx, p, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var f orders.ListFilter
	if s := r.URL.Query().Get("status"); s != "" {
		st := orders.Status(s)
		if !st.Valid() {
			writeJSON(w, http.StatusBadRequest, errBody{Error: "unknown status " + s})
			return
		}
		f.Status = &st
	}
	f.IncludeInactive = r.URL.Query().Get("include_inactive") == "true"

	out, err := h.Store.ListOrders(ctx, p, f)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first, DB is the source of truth
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	status, err := h.Store.OrderStatus(ctx, orderID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cacheStatus(ctx, orderID, status)
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (h *OrdersHandler) softDelete(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *OrdersHandler) restore(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *OrdersHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	p, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.SetOrderActive(ctx, p, chi.URLParam(r, "id"), active); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_active": active})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, status orders.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": status})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publishCreated(o orders.OrderWithItems, walkIn bool, trace string) {
	items := make([]orders.ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orders.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	publishEvent(h.PubCreated, h.Service, orders.EventOrderCreated, o.ID, trace, orders.OrderCreatedPayload{
		OrderID:    o.ID,
		SellerID:   o.SellerID,
		BuyerID:    o.BuyerID,
		WalkIn:     walkIn,
		Status:     o.Status,
		Items:      items,
		TotalCents: o.TotalCents,
	})
}

func (h *OrdersHandler) publishStatusChanged(res orders.TransitionResult, trace string) {
	publishEvent(h.PubStatus, h.Service, orders.EventOrderStatusChanged, res.OrderID, trace, orders.OrderStatusChangedPayload{
		OrderID:    res.OrderID,
		SellerID:   res.SellerID,
		From:       res.From,
		To:         res.To,
		StockMoved: res.StockMoved,
	})
}

func (h *OrdersHandler) publishAdjustments(adjustments []inventory.Adjustment, trace string) {
	publishAdjustments(h.PubStock, h.Service, adjustments, trace)
}
