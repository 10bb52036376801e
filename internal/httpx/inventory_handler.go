package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gasvida/gas-orders/internal/auth"
	"github.com/gasvida/gas-orders/internal/inventory"
	"github.com/gasvida/gas-orders/internal/orders"
)

type InventoryHandler struct {
	Store    orders.Store
	PubStock Publisher
	Log      *zap.Logger
	Service  string
}

type AdjustReq struct {
	Delta       int    `json:"delta"`
	Type        string `json:"type"` // manual | damage
	Description string `json:"description"`
}

type ThresholdReq struct {
	Threshold int `json:"stock_threshold"`
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Get("/inventory/{productID}", h.get)
	r.Get("/inventory/{productID}/logs", h.logs)
	r.Post("/inventory/{productID}/adjust", h.adjust)
	r.Put("/inventory/{productID}/threshold", h.threshold)
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.Store.Inventory(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *InventoryHandler) logs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}
	entries, err := h.Store.InventoryLogs(ctx, chi.URLParam(r, "productID"), limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req AdjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	adj, err := h.Store.AdjustStock(ctx, p, chi.URLParam(r, "productID"),
		req.Delta, inventory.Reason(req.Type), req.Description)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	publishAdjustments(h.PubStock, h.Service, []inventory.Adjustment{adj}, r.Header.Get("X-Request-Id"))
	writeJSON(w, http.StatusOK, adj)
}

func (h *InventoryHandler) threshold(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req ThresholdReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.SetThreshold(ctx, p, chi.URLParam(r, "productID"), req.Threshold); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock_threshold": req.Threshold})
}
