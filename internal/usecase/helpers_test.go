package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/exclusiveng/server/internal/domain/model"
	"github.com/exclusiveng/server/internal/infra/events"
	"github.com/exclusiveng/server/internal/infra/memory"
	"github.com/exclusiveng/server/internal/logging"
	"github.com/exclusiveng/server/internal/payment"
	"github.com/exclusiveng/server/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// =====================
// Gateway mock
// =====================

type gatewayMock struct{ mock.Mock }

func (m *gatewayMock) Initialize(ctx context.Context, req payment.InitializeRequest) (payment.InitializeResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(payment.InitializeResult)
	return res, args.Error(1)
}

func (m *gatewayMock) Verify(ctx context.Context, reference string) (payment.VerifyResult, error) {
	args := m.Called(ctx, reference)
	res, _ := args.Get(0).(payment.VerifyResult)
	return res, args.Error(1)
}

// 発行されたイベントを記録する
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
	// 発行時のctxが期限付きだったか
	deadlines []bool
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	_, ok := ctx.Deadline()
	p.deadlines = append(p.deadlines, ok && ctx.Err() == nil)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	store      *memory.Store
	gateway    *gatewayMock
	publisher  *recordingPublisher
	settlement *usecase.Settlement
	checkout   *usecase.CheckoutUsecase
	payments   *usecase.PaymentUsecase
	carts      *usecase.CartUsecase
	adminOrder *usecase.AdminOrderUsecase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	store.SetNow(func() time.Time { return testNow })
	gw := new(gatewayMock)
	pub := &recordingPublisher{}
	clock := fixedClock{t: testNow}
	log := logging.Discard()

	settlement := usecase.NewSettlement(store, clock, pub, log, nil)
	return &testEnv{
		store:      store,
		gateway:    gw,
		publisher:  pub,
		settlement: settlement,
		checkout: usecase.NewCheckoutUsecase(usecase.CheckoutDeps{
			Carts:       store.Carts(),
			CartItems:   store.Carts(),
			Products:    store.Products(),
			Users:       store.Users(),
			Tx:          store,
			Gateway:     gw,
			IDs:         usecase.UUIDGenerator{},
			Clock:       clock,
			Log:         log,
			CallbackURL: "http://localhost:3000/payment/callback",
		}),
		payments:   usecase.NewPaymentUsecase(gw, settlement, time.Second, log),
		carts:      usecase.NewCartUsecase(store.Carts(), store.Carts(), store.Products()),
		adminOrder: usecase.NewAdminOrderUsecase(store, store.Orders(), clock, pub, log, nil),
	}
}

func (e *testEnv) seedUser(t *testing.T, email string) model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "x", Role: model.RoleUser, IsActive: true}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return *u
}

func (e *testEnv) seedProduct(t *testing.T, title, price string, stock int64) model.Product {
	t.Helper()
	p, err := e.store.Products().Create(context.Background(), model.Product{
		Title:         title,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsAvailable:   true,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) addToCart(t *testing.T, userID, productID string, qty int64) {
	t.Helper()
	_, err := e.carts.AddToCart(context.Background(), userID, usecase.AddCartInput{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
}

func (e *testEnv) stock(t *testing.T, productID string) int64 {
	t.Helper()
	p, err := e.store.Products().FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}

// ゲートウェイ初期化を成功させてPENDING注文を作る
func (e *testEnv) placeOrder(t *testing.T, userID string) model.Order {
	t.Helper()
	e.gateway.On("Initialize", mock.Anything, mock.Anything).
		Return(payment.InitializeResult{AuthorizationURL: "https://checkout.example/x", AccessCode: "ac"}, nil).Maybe()

	out, err := e.checkout.Checkout(context.Background(), userID, usecase.CheckoutInput{
		ShippingAddress: model.ShippingAddress{"street": "1 Main St", "city": "Lagos"},
	})
	require.NoError(t, err)
	o, err := e.store.Orders().FindByID(context.Background(), out.OrderID)
	require.NoError(t, err)
	return o
}

func (e *testEnv) cartItemCount(t *testing.T, userID string) int {
	t.Helper()
	res, err := e.carts.GetCart(context.Background(), userID)
	require.NoError(t, err)
	return len(res.Items)
}
