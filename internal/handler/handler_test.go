package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"imperio/internal/apierror"
	"imperio/internal/dto"
	"imperio/internal/middleware"
	"imperio/internal/model"
	"imperio/internal/notify"
	"imperio/internal/pricing"
	"imperio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// Stubs embed the service interface so each test only implements the
// methods it drives; anything else panics, which the recovery turns into 500.

type stubOrders struct {
	service.OrderService
	created  []service.NewOrder
	createFn func(service.NewOrder) (*dto.OrderResponse, error)
	quoteFn  func(service.Cart) (*pricing.Quote, error)
	advance  func(id int64, expected model.OrderStatus, target *model.OrderStatus) (*dto.OrderResponse, error)
}

func (s *stubOrders) Create(_ context.Context, in service.NewOrder) (*dto.OrderResponse, error) {
	s.created = append(s.created, in)
	if s.createFn != nil {
		return s.createFn(in)
	}
	return &dto.OrderResponse{ID: 1, Origin: string(in.Origin), Status: string(model.StatusPending)}, nil
}

func (s *stubOrders) Quote(_ context.Context, cart service.Cart) (*pricing.Quote, error) {
	return s.quoteFn(cart)
}

func (s *stubOrders) Advance(_ context.Context, id int64, expected model.OrderStatus, target *model.OrderStatus) (*dto.OrderResponse, error) {
	return s.advance(id, expected, target)
}

type stubTill struct {
	service.TillService
	opened []service.Operator
	openFn func() error
}

func (s *stubTill) Open(_ context.Context, op service.Operator, req dto.OpenTillRequest) (*dto.TillReportResponse, error) {
	s.opened = append(s.opened, op)
	if s.openFn != nil {
		if err := s.openFn(); err != nil {
			return nil, err
		}
	}
	return &dto.TillReportResponse{OperatorID: op.ID, OperatorName: op.Name, Status: "open", OpeningFloat: req.OpeningFloat}, nil
}

type stubAgent struct {
	service.AgentService
	tool string
	args json.RawMessage
}

func (s *stubAgent) Call(_ context.Context, tool string, args json.RawMessage) (dto.ToolResult, error) {
	if tool != service.ToolDeliveryFee {
		return dto.ToolResult{}, apierror.ErrNotFound
	}
	s.tool, s.args = tool, args
	return dto.ToolResult{OK: true, Message: "Entregamos no Centro: taxa R$ 8,00."}, nil
}

type stubCatalog struct{ service.CatalogService }

func asCashier(c *gin.Context) {
	c.Set(middleware.ClaimsKey, &middleware.JWTClaims{OperatorID: "op-7", Name: "Ana", Role: middleware.RoleCashier})
	c.Next()
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierror.APIError {
	t.Helper()
	var e apierror.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

var batata = uuid.MustParse("3f1c2a8e-7d4b-4c1e-9a0f-2b6d8e4c1a11")

func newEngine(orders *stubOrders, till *stubTill) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(), asCashier)
	th := NewTillHandler(till, orders, "Imperio", "")
	oh := NewOrderHandler(orders)
	sh := NewStorefrontHandler(orders, stubCatalog{})
	r.POST("/v1/till/open", th.Open)
	r.POST("/v1/till/checkout", th.Checkout)
	r.POST("/v1/orders/quote", oh.Quote)
	r.PATCH("/v1/orders/:id/status", oh.Advance)
	r.POST("/v1/tables/:number/orders", oh.CreateTableOrder)
	r.POST("/v1/storefront/quote", sh.Quote)
	r.POST("/v1/storefront/orders", sh.PlaceOrder)
	return r
}

func TestTillOpen_UsesOperatorFromToken(t *testing.T) {
	till := &stubTill{}
	r := newEngine(&stubOrders{}, till)

	w := do(r, http.MethodPost, "/v1/till/open", `{"opening_float": 100}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, till.opened, 1)
	assert.Equal(t, service.Operator{ID: "op-7", Name: "Ana"}, till.opened[0])

	till.openFn = func() error { return apierror.ErrSessionAlreadyOpen }
	w = do(r, http.MethodPost, "/v1/till/open", `{"opening_float": 100}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "session_already_open", decodeError(t, w).Code)

	w = do(r, http.MethodPost, "/v1/till/open", `{"opening_float": -1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCheckout_BuildsTillSale(t *testing.T) {
	orders := &stubOrders{}
	r := newEngine(orders, &stubTill{})
	session := uuid.New()

	w := do(r, http.MethodPost, "/v1/till/checkout", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": batata, "quantity": 2}},
		"payment_method": "dinheiro",
		"session_id":     session,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, orders.created, 1)
	in := orders.created[0]
	assert.Equal(t, model.OriginTillSale, in.Origin)
	assert.Equal(t, model.PaymentCash, in.PaymentMethod)
	assert.Equal(t, []service.CartItem{{ProductID: batata, Quantity: 2}}, in.Items)
	require.NotNil(t, in.TillSessionID)
	assert.Equal(t, session, *in.TillSessionID)
}

func TestCheckout_RejectsBadInput(t *testing.T) {
	orders := &stubOrders{}
	r := newEngine(orders, &stubTill{})

	w := do(r, http.MethodPost, "/v1/till/checkout", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": batata, "quantity": 1}},
		"payment_method": "cheque",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_input", decodeError(t, w).Code)

	w = do(r, http.MethodPost, "/v1/till/checkout", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": "not-a-uuid", "quantity": 1}},
		"payment_method": "pix",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, "/v1/till/checkout", `{"items": [`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	orders.createFn = func(service.NewOrder) (*dto.OrderResponse, error) { return nil, apierror.ErrSessionNotOpen }
	w = do(r, http.MethodPost, "/v1/till/checkout", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": batata, "quantity": 1}},
		"payment_method": "pix",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decodeError(t, w).Detail, "Abra o caixa")
}

func TestStorefrontQuote_BelowMinimumMessage(t *testing.T) {
	var got service.Cart
	orders := &stubOrders{quoteFn: func(c service.Cart) (*pricing.Quote, error) {
		got = c
		return nil, &apierror.BelowMinimumOrderError{
			Minimum:   decimal.NewFromInt(15),
			Shortfall: decimal.RequireFromString("8.50"),
		}
	}}
	r := newEngine(orders, &stubTill{})

	w := do(r, http.MethodPost, "/v1/storefront/quote", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": batata, "quantity": 1}},
		"payment_method": "pix",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, "below_minimum_order", e.Code)
	assert.Contains(t, e.Detail, "R$ 8,50")
	assert.Equal(t, model.OriginStorefrontPickup, got.Origin)
	assert.Equal(t, model.PaymentPix, got.PaymentMethod)
}

func TestStaffQuote_DefaultsToTillAndReturnsBreakdown(t *testing.T) {
	var got service.Cart
	orders := &stubOrders{quoteFn: func(c service.Cart) (*pricing.Quote, error) {
		got = c
		return &pricing.Quote{
			Subtotal:      decimal.RequireFromString("6.50"),
			Total:         decimal.RequireFromString("6.50"),
			PaymentMethod: c.PaymentMethod,
		}, nil
	}}
	r := newEngine(orders, &stubTill{})

	w := do(r, http.MethodPost, "/v1/orders/quote", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": batata, "quantity": 1}},
		"payment_method": "debito",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.OriginTillSale, got.Origin)
	var q dto.QuoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.Equal(t, "6.5", q.Total.String())

	w = do(r, http.MethodPost, "/v1/orders/quote", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": batata, "quantity": 1}},
		"payment_method": "pix",
		"origin":         "drone",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestStorefrontOrder_MapsFulfillment(t *testing.T) {
	orders := &stubOrders{}
	r := newEngine(orders, &stubTill{})

	w := do(r, http.MethodPost, "/v1/storefront/orders", map[string]interface{}{
		"items":            []map[string]interface{}{{"product_id": batata, "quantity": 3}},
		"payment_method":   "pix",
		"fulfillment":      "delivery",
		"customer_name":    "Bruno",
		"customer_phone":   "11999990000",
		"delivery_address": "Rua A, 10",
		"zone":             "Centro",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	in := orders.created[0]
	assert.Equal(t, model.OriginStorefrontDelivery, in.Origin)
	assert.Equal(t, "Centro", *in.Zone)
	assert.Equal(t, "11999990000", *in.CustomerPhone)

	w = do(r, http.MethodPost, "/v1/storefront/orders", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": batata, "quantity": 3}},
		"payment_method": "pix",
		"fulfillment":    "pickup",
		"customer_name":  "Bruno",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var v apierror.ValidationError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "required", v.Fields["CustomerPhone"])
}

func TestTableOrder_CarriesTableNumber(t *testing.T) {
	orders := &stubOrders{}
	r := newEngine(orders, &stubTill{})

	w := do(r, http.MethodPost, "/v1/tables/4/orders", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": batata, "quantity": 1}},
		"payment_method": "credito",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	in := orders.created[0]
	assert.Equal(t, model.OriginTable, in.Origin)
	assert.Equal(t, 4, *in.TableNumber)

	w = do(r, http.MethodPost, "/v1/tables/zero/orders", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdvance(t *testing.T) {
	orders := &stubOrders{advance: func(id int64, expected model.OrderStatus, target *model.OrderStatus) (*dto.OrderResponse, error) {
		if expected != model.StatusPending {
			return nil, &apierror.StaleStatusError{Expected: string(expected), Actual: string(model.StatusPending)}
		}
		return &dto.OrderResponse{ID: id, Status: string(model.StatusPreparing)}, nil
	}}
	r := newEngine(orders, &stubTill{})

	w := do(r, http.MethodPatch, "/v1/orders/12/status", `{"expected_status":"pending"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"preparing"`)

	w = do(r, http.MethodPatch, "/v1/orders/12/status", `{"expected_status":"preparing"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "stale_status", decodeError(t, w).Code)

	w = do(r, http.MethodPatch, "/v1/orders/12/status", `{"expected_status":"flying"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestInternalErrorsDoNotLeak(t *testing.T) {
	orders := &stubOrders{createFn: func(service.NewOrder) (*dto.OrderResponse, error) {
		return nil, errors.New(`pq: relation "orders" does not exist`)
	}}
	r := newEngine(orders, &stubTill{})

	w := do(r, http.MethodPost, "/v1/tables/2/orders", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": batata, "quantity": 1}},
		"payment_method": "pix",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "relation")
	assert.Equal(t, "internal", decodeError(t, w).Code)
}

func TestAgentTool(t *testing.T) {
	agent := &stubAgent{}
	r := gin.New()
	r.POST("/v1/agent/tools/:name", NewAgentHandler(agent).Call)

	w := do(r, http.MethodPost, "/v1/agent/tools/calcular_taxa_entrega", `{"bairro":"Centro"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bairro":"Centro"}`, string(agent.args))
	var res dto.ToolResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.OK)
	assert.Contains(t, res.Message, "R$ 8,00")

	w = do(r, http.MethodPost, "/v1/agent/tools/reservar_mesa", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// closeNotifyRecorder adds the CloseNotifier gin's Stream expects.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

type fixedSubscriber []notify.Event

func (f fixedSubscriber) Subscribe(context.Context) (<-chan notify.Event, error) {
	ch := make(chan notify.Event, len(f))
	for _, ev := range f {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func TestEventsStream(t *testing.T) {
	sub := fixedSubscriber{{Entity: notify.EntityOrder, ID: "42", Kind: notify.KindCreated, At: time.Now()}}
	r := gin.New()
	r.GET("/v1/events", NewEventsHandler(sub, time.Hour).Stream)

	w := &closeNotifyRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/events", nil))

	body := w.Body.String()
	assert.Contains(t, body, "event:resync")
	assert.Contains(t, body, "event:change")
	assert.Contains(t, body, `"entity":"order"`)
	assert.Contains(t, body, `"id":"42"`)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
}
