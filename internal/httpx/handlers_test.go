package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gasvida/gas-orders/internal/auth"
	"github.com/gasvida/gas-orders/internal/orders"
)

// fakePublisher records everything it is asked to publish.
type fakePublisher struct {
	messages [][]byte
}

func (f *fakePublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	f.messages = append(f.messages, value)
}

func (f *fakePublisher) eventTypes(t *testing.T) []string {
	t.Helper()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		var env orders.Envelope
		require.NoError(t, json.Unmarshal(m, &env))
		out = append(out, env.EventType)
	}
	return out
}

type harness struct {
	store      *orders.MemStore
	srv        *httptest.Server
	pubCreated *fakePublisher
	pubStatus  *fakePublisher
	pubStock   *fakePublisher
}

func newEnv(t *testing.T) *harness {
	t.Helper()
	store := orders.NewMemStore()
	store.SeedBarangay(orders.Barangay{ID: "b1", Name: "Poblacion", Municipality: "Santa Cruz"})
	store.SeedProduct(orders.Product{ID: "p1", SellerID: "seller-1", Name: "11kg LPG", PriceCents: 95000})
	store.SeedStock("p1", 10, 3)

	e := &harness{
		store:      store,
		pubCreated: &fakePublisher{},
		pubStatus:  &fakePublisher{},
		pubStock:   &fakePublisher{},
	}

	log := zap.NewNop()
	oh := &OrdersHandler{
		Store:      store,
		PubCreated: e.pubCreated,
		PubStatus:  e.pubStatus,
		PubStock:   e.pubStock,
		Log:        log,
		Service:    "gas-orders-test",
	}
	ih := &InventoryHandler{Store: store, PubStock: e.pubStock, Log: log, Service: "gas-orders-test"}

	router := NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		oh.Register(r)
		ih.Register(r)
	})

	e.srv = httptest.NewServer(router)
	t.Cleanup(e.srv.Close)
	return e
}

func (e *harness) do(t *testing.T, method, path string, p *auth.Principal, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if p != nil {
		req.Header.Set(auth.HeaderUserID, p.ID)
		req.Header.Set(auth.HeaderUserRole, string(p.Role))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

var (
	asBuyer  = &auth.Principal{ID: "buyer-1", Role: auth.RoleBuyer}
	asSeller = &auth.Principal{ID: "seller-1", Role: auth.RoleSeller}
	asAdmin  = &auth.Principal{ID: "admin-1", Role: auth.RoleAdmin}
)

func checkoutBody() CheckoutReq {
	return CheckoutReq{
		Items:           []orders.CheckoutItem{{ProductID: "p1", Qty: 2}},
		FullName:        "Maria Santos",
		ContactNumber:   "+63917123456",
		BarangayID:      "b1",
		DeliveryAddress: "123 Rizal St",
	}
}

func TestIdentityRequired(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodGet, "/orders", &auth.Principal{ID: "u1", Role: "superuser"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// healthz stays open
	r2, err := http.Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, r2.StatusCode)
	r2.Body.Close()
}

func TestCheckoutEndpoint(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodPost, "/checkout", asBuyer, checkoutBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[map[string][]orders.OrderWithItems](t, resp)
	require.Len(t, body["orders"], 1)
	o := body["orders"][0]
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, 190000, o.TotalCents)

	assert.Equal(t, []string{orders.EventOrderCreated}, e.pubCreated.eventTypes(t))
	assert.Empty(t, e.pubStock.messages, "checkout moves no stock")
}

func TestCheckoutBadPhone(t *testing.T) {
	e := newEnv(t)

	req := checkoutBody()
	req.ContactNumber = "09171234567"
	resp := e.do(t, http.MethodPost, "/checkout", asBuyer, req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[errBody](t, resp)
	assert.Contains(t, body.Error, "contact_number")
	assert.Empty(t, e.pubCreated.messages)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	e := newEnv(t)

	req := checkoutBody()
	req.Items = []orders.CheckoutItem{{ProductID: "p1", Qty: 99}}
	resp := e.do(t, http.MethodPost, "/checkout", asBuyer, req)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decode[errBody](t, resp)
	require.Len(t, body.Shortages, 1)
	assert.Equal(t, "p1", body.Shortages[0].ProductID)
	assert.Equal(t, 99, body.Shortages[0].Requested)
	assert.Equal(t, 10, body.Shortages[0].Available)
}

func TestTransitionEndpoint(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodPost, "/checkout", asBuyer, checkoutBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string][]orders.OrderWithItems](t, resp)
	orderID := created["orders"][0].ID

	resp = e.do(t, http.MethodPost, "/orders/"+orderID+"/status", asSeller,
		TransitionReq{Status: orders.StatusPreparing})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[orders.TransitionResult](t, resp)
	assert.True(t, res.Changed)
	assert.True(t, res.StockMoved)

	assert.Equal(t, []string{orders.EventOrderStatusChanged}, e.pubStatus.eventTypes(t))
	assert.Equal(t, []string{orders.EventStockAdjusted}, e.pubStock.eventTypes(t))

	// same target again: 200, nothing changed, nothing published
	resp = e.do(t, http.MethodPost, "/orders/"+orderID+"/status", asSeller,
		TransitionReq{Status: orders.StatusPreparing})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = decode[orders.TransitionResult](t, resp)
	assert.False(t, res.Changed)
	assert.Len(t, e.pubStatus.messages, 1)
	assert.Len(t, e.pubStock.messages, 1)

	// illegal edge: 409 carries both statuses
	resp = e.do(t, http.MethodPost, "/orders/"+orderID+"/status", asSeller,
		TransitionReq{Status: orders.StatusDelivered})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	conflict := decode[errBody](t, resp)
	assert.Equal(t, orders.StatusPreparing, conflict.From)
	assert.Equal(t, orders.StatusDelivered, conflict.To)

	// wrong role: 403
	resp = e.do(t, http.MethodPost, "/orders/"+orderID+"/status", asBuyer,
		TransitionReq{Status: orders.StatusCancelled})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestWalkInEndpointShorthand(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodPost, "/orders/walk-in", asSeller, WalkInReq{
		ProductID:       "p1",
		Quantity:        2,
		FullName:        "Juan Dela Cruz",
		ContactNumber:   "+63918123456",
		BarangayID:      "b1",
		DeliveryAddress: "picked up in store",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	o := decode[orders.OrderWithItems](t, resp)
	assert.Equal(t, orders.StatusDelivered, o.Status)
	assert.Nil(t, o.BuyerID)
	assert.True(t, o.InventoryDeducted)

	assert.Equal(t, []string{orders.EventOrderCreated}, e.pubCreated.eventTypes(t))
	assert.Equal(t, []string{orders.EventStockAdjusted}, e.pubStock.eventTypes(t))
}

func TestWalkInBuyerForbidden(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodPost, "/orders/walk-in", asBuyer, WalkInReq{
		ProductID:     "p1",
		Quantity:      1,
		FullName:      "Juan Dela Cruz",
		ContactNumber: "+63918123456",
		BarangayID:    "b1",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestOrderStatusAndSoftDelete(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodPost, "/checkout", asBuyer, checkoutBody())
	created := decode[map[string][]orders.OrderWithItems](t, resp)
	orderID := created["orders"][0].ID

	resp = e.do(t, http.MethodGet, "/orders/"+orderID+"/status", asBuyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[map[string]orders.Status](t, resp)
	assert.Equal(t, orders.StatusPending, st["status"])

	resp = e.do(t, http.MethodDelete, "/orders/"+orderID, asSeller, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodDelete, "/orders/"+orderID, asAdmin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodGet, "/orders/"+orderID, asBuyer, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodPost, "/orders/"+orderID+"/restore", asAdmin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodGet, "/orders/"+orderID, asBuyer, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestInventoryEndpoints(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodPost, "/inventory/p1/adjust", asSeller, AdjustReq{
		Delta: -3, Type: "damage", Description: "dented on delivery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var adj struct {
		NewStock int `json:"new_stock"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&adj))
	resp.Body.Close()
	assert.Equal(t, 7, adj.NewStock)
	assert.Equal(t, []string{orders.EventStockAdjusted}, e.pubStock.eventTypes(t))

	// lifecycle reasons are not accepted over this endpoint
	resp = e.do(t, http.MethodPost, "/inventory/p1/adjust", asSeller, AdjustReq{
		Delta: -1, Type: "deduction",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodPut, "/inventory/p1/threshold", asSeller, ThresholdReq{Threshold: 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodGet, "/inventory/p1", asSeller, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec struct {
		Stock     int `json:"stock"`
		Threshold int `json:"stock_threshold"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	resp.Body.Close()
	assert.Equal(t, 7, rec.Stock)
	assert.Equal(t, 4, rec.Threshold)

	resp = e.do(t, http.MethodGet, "/inventory/p1/logs?limit=1", asSeller, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs struct {
		Logs []struct {
			Type string `json:"type"`
		} `json:"logs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&logs))
	resp.Body.Close()
	require.Len(t, logs.Logs, 1)
	assert.Equal(t, "damage", logs.Logs[0].Type)
}
