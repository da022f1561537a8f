package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/exclusiveng/server/internal/config"
	"github.com/exclusiveng/server/internal/handler"
	"github.com/exclusiveng/server/internal/infra/memory"
	"github.com/exclusiveng/server/internal/infra/paystack"
	"github.com/exclusiveng/server/internal/logging"
	"github.com/exclusiveng/server/internal/metrics"
	"github.com/exclusiveng/server/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("down") }

func newServer(t *testing.T, store Pinger) http.Handler {
	t.Helper()
	mem := memory.NewStore()
	log := logging.Discard()
	m := metrics.New()
	clock := usecase.SystemClock{}
	ids := usecase.UUIDGenerator{}
	cfg := config.Config{JWTSecret: "server-secret"}

	gw := paystack.NewClient("http://127.0.0.1:0", "sk_test", time.Second)
	settlement := usecase.NewSettlement(mem, clock, nil, log, m)
	payments := usecase.NewPaymentUsecase(gw, settlement, time.Second, log)
	authUC := usecase.NewAuthUsecase(mem.Users(), usecase.NewBcryptPasswordHasher(4), usecase.NewJWTIssuer(cfg.JWTSecret, time.Minute), ids, clock)
	productUC := usecase.NewProductUsecase(mem.Products(), mem, mem.AuditLogs(), ids, clock)

	h := Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		AdminUser:    handler.NewAdminUserHandler(authUC),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		Cart:         handler.NewCartHandler(usecase.NewCartUsecase(mem.Carts(), mem.Carts(), mem.Products())),
		Order: handler.NewOrderHandler(
			usecase.NewOrderUsecase(mem.Orders()),
			usecase.NewCheckoutUsecase(usecase.CheckoutDeps{
				Carts: mem.Carts(), CartItems: mem.Carts(), Products: mem.Products(), Users: mem.Users(),
				Tx: mem, Gateway: gw, IDs: ids, Clock: clock, Log: log, Metrics: m,
			}),
			payments,
			usecase.NewAdminOrderUsecase(mem, mem.Orders(), clock, nil, log, m),
		),
		Webhook: handler.NewWebhookHandler(payments, gw, log),
	}
	if store == nil {
		store = mem
	}

	e := New(log, m)
	RegisterRoutes(e, cfg, mem.Users(), h, store, m)
	return e
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(newServer(t, nil), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(newServer(t, downStore{}), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpointRecordsRequests(t *testing.T) {
	srv := newServer(t, nil)
	require.Equal(t, http.StatusOK, get(srv, "/products").Code)

	rec := get(srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `route="/products"`), rec.Body.String())
}

func TestRequestIDAndProtectedRoutes(t *testing.T) {
	srv := newServer(t, nil)

	rec := get(srv, "/products")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	assert.Equal(t, http.StatusUnauthorized, get(srv, "/cart").Code)
	assert.Equal(t, http.StatusUnauthorized, get(srv, "/orders").Code)
	assert.Equal(t, http.StatusUnauthorized, get(srv, "/admin/audit-logs").Code)
}

func TestStartStopsOnCancel(t *testing.T) {
	e := New(logging.Discard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Start(ctx, e, "127.0.0.1:0", logging.Discard()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
