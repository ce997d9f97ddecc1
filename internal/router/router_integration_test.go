//go:build integration

package router

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"imperio/internal/config"
	"imperio/internal/dto"
	"imperio/internal/infra"
	"imperio/internal/middleware"
	"imperio/internal/model"
	"imperio/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const secret = "test-secret-key"

type testEnv struct {
	server  *httptest.Server
	cashier string
	manager string
	agent   string
	batata  uuid.UUID
	coca    uuid.UUID
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("imperio_test"),
		tcPostgres.WithUsername("imperio"),
		tcPostgres.WithPassword("imperio"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                "test",
		JWTSecret:          secret,
		JWTExpirationHours: 8,
		DatabaseURL:        pgURL,
		RedisURL:           rdURL,
		EventChannel:       "imperio:test",
		StoreName:          "Imperio",
		MinimumOrder:       "15.00",
		InstantDiscountPct: "5",
		DeliveryWindow:     "40-60 min",
		PickupWindow:       "20-30 min",
		ReportStoragePath:  t.TempDir(),
		ResyncSeconds:      30,
		RateLimit:          1000,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	cat := model.Category{Name: "Cardápio", Active: true}
	require.NoError(t, db.Create(&cat).Error)
	batata := model.Product{Name: "Batata Frita", Price: decimal.RequireFromString("18.00"), CategoryID: &cat.ID, Available: true}
	coca := model.Product{Name: "Coca-Cola lata", Price: decimal.RequireFromString("6.50"), CategoryID: &cat.ID, Available: true}
	require.NoError(t, db.Create(&batata).Error)
	require.NoError(t, db.Create(&coca).Error)
	require.NoError(t, db.Create(&model.DeliveryZone{Name: "centro", DisplayName: "Centro", Fee: decimal.NewFromInt(8), Active: true}).Error)
	require.NoError(t, db.Create(&model.DiningTable{Number: 4}).Error)

	hub := notify.NewHub()
	r := New(cfg, db, rdb, Deps{
		Events:     notify.Fanout{hub, notify.NewRedisPublisher(rdb, cfg.EventChannel)},
		Subscriber: hub,
		Metrics:    infra.NewMetrics(prometheus.NewRegistry()),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	token := func(id, role string) string {
		tok, err := middleware.IssueToken(secret, id, "Operador "+id, role, time.Hour)
		require.NoError(t, err)
		return tok
	}
	return &testEnv{
		server:  srv,
		cashier: token("op-1", middleware.RoleCashier),
		manager: token("mgr-1", middleware.RoleManager),
		agent:   token("bot", middleware.RoleAgent),
		batata:  batata.ID,
		coca:    coca.ID,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func item(id uuid.UUID, qty int) map[string]any {
	return map[string]any{"product_id": id, "quantity": qty}
}

func TestTillDayEndToEnd(t *testing.T) {
	e := setupTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v1/till/open", map[string]any{"opening_float": "100.00"}, e.cashier)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var session dto.TillReportResponse
	decodeJSON(t, resp, &session)

	resp = e.do(t, http.MethodPost, "/v1/till/open", map[string]any{"opening_float": "50.00"}, e.cashier)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// 18.00 + 6.50, below the storefront minimum but fine at the till
	resp = e.do(t, http.MethodPost, "/v1/till/checkout", map[string]any{
		"items":          []any{item(e.batata, 1), item(e.coca, 1)},
		"payment_method": "dinheiro",
	}, e.cashier)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sale dto.OrderResponse
	decodeJSON(t, resp, &sale)
	assert.Equal(t, "24.5", sale.Total.String())

	resp = e.do(t, http.MethodPost, "/v1/till/"+session.SessionID+"/movements",
		map[string]any{"kind": "sangria", "amount": "20.00", "reason": "troco do cofre"}, e.cashier)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodPost, "/v1/till/"+session.SessionID+"/close",
		map[string]any{"declared_cash": "104.50"}, e.cashier)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report dto.TillReportResponse
	decodeJSON(t, resp, &report)
	assert.Equal(t, "closed", report.Status)
	assert.Equal(t, "104.5", report.CashInHand.String())
	require.NotNil(t, report.Deviation)
	assert.Equal(t, "normal", report.Deviation.Class)

	resp = e.do(t, http.MethodPost, "/v1/till/checkout", map[string]any{
		"items":          []any{item(e.batata, 1)},
		"payment_method": "pix",
	}, e.cashier)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodGet, "/v1/till/history", nil, e.cashier)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
	resp = e.do(t, http.MethodGet, "/v1/till/history", nil, e.manager)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history dto.TillHistoryResponse
	decodeJSON(t, resp, &history)
	assert.EqualValues(t, 1, history.Total)
}

func TestConcurrentOpensYieldOneSession(t *testing.T) {
	e := setupTestEnv(t)

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := e.do(t, http.MethodPost, "/v1/till/open", map[string]any{"opening_float": "10"}, e.cashier)
			codes[i] = resp.StatusCode
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusConflict, c)
		}
	}
	assert.Equal(t, 1, created)
}

func TestConcurrentMovementsAndSalesKeepLedgerConsistent(t *testing.T) {
	e := setupTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v1/till/open", map[string]any{"opening_float": "100.00"}, e.cashier)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var session dto.TillReportResponse
	decodeJSON(t, resp, &session)
	movementsPath := "/v1/till/" + session.SessionID + "/movements"

	const withdrawals, deposits, sales = 6, 6, 8
	type call struct {
		path string
		body map[string]any
	}
	var calls []call
	for i := 0; i < withdrawals; i++ {
		calls = append(calls, call{movementsPath, map[string]any{"kind": "sangria", "amount": "5.00", "reason": "cofre"}})
	}
	for i := 0; i < deposits; i++ {
		calls = append(calls, call{movementsPath, map[string]any{"kind": "suprimento", "amount": "7.25", "reason": "troco"}})
	}
	for i := 0; i < sales; i++ {
		calls = append(calls, call{"/v1/till/checkout", map[string]any{
			"items":          []any{item(e.batata, 1)},
			"payment_method": "dinheiro",
		}})
	}

	codes := make([]int, len(calls))
	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		go func(i int, c call) {
			defer wg.Done()
			resp := e.do(t, http.MethodPost, c.path, c.body, e.cashier)
			codes[i] = resp.StatusCode
			resp.Body.Close()
		}(i, c)
	}
	wg.Wait()
	for i, c := range codes {
		assert.Equal(t, http.StatusCreated, c, "request %d (%s)", i, calls[i].path)
	}

	resp = e.do(t, http.MethodGet, movementsPath, nil, e.cashier)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var movs []dto.MovementResponse
	decodeJSON(t, resp, &movs)
	require.Len(t, movs, len(calls))
	for i, m := range movs {
		assert.Equal(t, i+1, m.Seq, "sequence must have no gaps or repeats")
	}

	resp = e.do(t, http.MethodPost, "/v1/till/"+session.SessionID+"/close", map[string]any{}, e.cashier)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report dto.TillReportResponse
	decodeJSON(t, resp, &report)

	// 100 + 8×18.00 − 6×5.00 + 6×7.25
	assert.True(t, report.CashInHand.Equal(decimal.RequireFromString("257.50")), report.CashInHand.String())
	assert.True(t, report.Sales.Cash.Equal(decimal.RequireFromString("144.00")), report.Sales.Cash.String())
	assert.True(t, report.Withdrawals.Equal(decimal.RequireFromString("30.00")))
	assert.True(t, report.Deposits.Equal(decimal.RequireFromString("43.50")))
	assert.Equal(t, len(calls), report.MovementCount)
}

func TestStorefrontAndOrderLifecycle(t *testing.T) {
	e := setupTestEnv(t)

	resp := e.do(t, http.MethodGet, "/v1/storefront/catalog", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var catalog dto.CatalogResponse
	decodeJSON(t, resp, &catalog)
	assert.Len(t, catalog.Products, 2)

	resp = e.do(t, http.MethodPost, "/v1/storefront/quote", map[string]any{
		"items":          []any{item(e.coca, 1)},
		"payment_method": "pix",
	}, "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var apiErr struct{ Code, Detail string }
	decodeJSON(t, resp, &apiErr)
	assert.Equal(t, "below_minimum_order", apiErr.Code)
	assert.Contains(t, apiErr.Detail, "R$ 8,50")

	resp = e.do(t, http.MethodPost, "/v1/storefront/orders", map[string]any{
		"items":            []any{item(e.batata, 4), item(e.coca, 2)},
		"payment_method":   "pix",
		"fulfillment":      "delivery",
		"customer_name":    "Bruno",
		"customer_phone":   "11999990000",
		"delivery_address": "Rua A, 10",
		"zone":             "CENTRO",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order dto.OrderResponse
	decodeJSON(t, resp, &order)
	// 85.00 - 5% (4.25) + 8.00
	assert.Equal(t, "88.75", order.Total.StringFixed(2))

	path := "/v1/orders/" + jsonNumber(order.ID)
	resp = e.do(t, http.MethodPatch, path+"/status", map[string]any{"expected_status": "pending"}, e.cashier)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodPatch, path+"/status", map[string]any{"expected_status": "pending"}, e.cashier)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodPatch, path+"/status", map[string]any{"expected_status": "preparing", "target_status": "delivered"}, e.cashier)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodPost, path+"/cancel", nil, e.cashier)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &order)
	assert.Equal(t, "cancelled", order.Status)
}

func TestTableTabAndAgentTools(t *testing.T) {
	e := setupTestEnv(t)

	for _, items := range [][]any{
		{item(e.batata, 1)},
		{item(e.batata, 1), item(e.coca, 1)},
	} {
		resp := e.do(t, http.MethodPost, "/v1/tables/4/orders", map[string]any{"items": items, "payment_method": "cash"}, e.cashier)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := e.do(t, http.MethodGet, "/v1/tables/4/tab", nil, e.cashier)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tab dto.TableTabResponse
	decodeJSON(t, resp, &tab)
	assert.Regexp(t, `^mesa-4-[0-9a-f]{8}$`, tab.ID)
	assert.Len(t, tab.OrderIDs, 2)
	assert.Equal(t, "42.50", tab.Total.StringFixed(2))

	resp = e.do(t, http.MethodPost, "/v1/tables/4/close", nil, e.cashier)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "orders still open")
	resp.Body.Close()

	resp = e.do(t, http.MethodPost, "/v1/agent/tools/calcular_taxa_entrega", map[string]any{"bairro": "centro"}, e.agent)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fee dto.ToolResult
	decodeJSON(t, resp, &fee)
	assert.True(t, fee.OK)

	resp = e.do(t, http.MethodPost, "/v1/agent/tools/calcular_total_pedido",
		map[string]any{"itens": "2x batata frita, 2x coca-cola lata", "forma_pagamento": "pix"}, e.agent)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var total dto.ToolResult
	decodeJSON(t, resp, &total)
	assert.True(t, total.OK)
	assert.Contains(t, total.Message, "R$ 46,55")

	resp = e.do(t, http.MethodPost, "/v1/agent/tools/calcular_total_pedido", map[string]any{"itens": "1x coca-cola lata"}, e.cashier)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
