package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/exclusiveng/server/internal/domain/model"
	"github.com/exclusiveng/server/internal/payment"
	"github.com/exclusiveng/server/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var shipTo = usecase.CheckoutInput{ShippingAddress: model.ShippingAddress{"street": "1 Main St", "city": "Lagos"}}

func TestCheckout_CreatesPendingOrderWithSnapshot(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	a := env.seedProduct(t, "Mug", "10.00", 5)
	b := env.seedProduct(t, "Tea", "5.50", 10)
	env.addToCart(t, u.ID, a.ID, 2)
	env.addToCart(t, u.ID, b.ID, 3)

	var sent payment.InitializeRequest
	env.gateway.On("Initialize", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(payment.InitializeRequest) }).
		Return(payment.InitializeResult{AuthorizationURL: "https://checkout.example/abc", AccessCode: "abc"}, nil)

	out, err := env.checkout.Checkout(ctx, u.ID, shipTo)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/abc", out.AuthorizationURL)
	assert.Equal(t, "abc", out.AccessCode)
	assert.Equal(t, out.OrderID, out.Reference)

	assert.Equal(t, "buyer@example.com", sent.Email)
	assert.Equal(t, int64(3650), sent.AmountMinor)
	assert.Equal(t, out.OrderID, sent.Reference)
	assert.Equal(t, out.OrderID, sent.Metadata["order_id"])

	o, err := env.store.Orders().FindByID(ctx, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, o.Status)
	assert.True(t, decimal.RequireFromString("36.50").Equal(o.TotalAmount))
	assert.Equal(t, "Lagos", o.ShippingAddress["city"])
	require.Len(t, o.Items, 2)
	for _, it := range o.Items {
		switch it.ProductID {
		case a.ID:
			assert.Equal(t, "Mug", it.ProductTitle)
			assert.Equal(t, int64(2), it.Quantity)
			assert.True(t, decimal.RequireFromString("10.00").Equal(it.PriceAtPurchase))
		case b.ID:
			assert.Equal(t, int64(3), it.Quantity)
			assert.True(t, decimal.RequireFromString("5.50").Equal(it.PriceAtPurchase))
		default:
			t.Fatalf("unexpected product %s", it.ProductID)
		}
	}

	// 在庫とカートは決済確定まで動かない
	assert.Equal(t, int64(5), env.stock(t, a.ID))
	assert.Equal(t, int64(10), env.stock(t, b.ID))
	assert.Equal(t, 2, env.cartItemCount(t, u.ID))
}

func TestCheckout_EmptyCart(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")

	_, err := env.checkout.Checkout(ctx, u.ID, shipTo)
	assert.ErrorIs(t, err, usecase.ErrEmptyCart)

	// カートはあるが空
	_, err = env.carts.GetCart(ctx, u.ID)
	require.NoError(t, err)
	_, err = env.checkout.Checkout(ctx, u.ID, shipTo)
	assert.ErrorIs(t, err, usecase.ErrEmptyCart)

	_, total, err := env.store.Orders().ListByUserID(ctx, u.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	env.gateway.AssertNotCalled(t, "Initialize", mock.Anything, mock.Anything)
}

func TestCheckout_AdvisoryStockCheck(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	p := env.seedProduct(t, "Mug", "10.00", 5)
	env.addToCart(t, u.ID, p.ID, 4)
	require.NoError(t, env.store.Inventory().SetStock(ctx, p.ID, 1))

	_, err := env.checkout.Checkout(ctx, u.ID, shipTo)
	var stockErr *usecase.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(4), stockErr.Requested)
	assert.Equal(t, int64(1), stockErr.Available)

	_, total, err := env.store.Orders().ListByUserID(ctx, u.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestCheckout_DeletedProductInCart(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	p := env.seedProduct(t, "Mug", "10.00", 5)
	env.addToCart(t, u.ID, p.ID, 1)
	require.NoError(t, env.store.Products().SoftDelete(ctx, p.ID))

	_, err := env.checkout.Checkout(ctx, u.ID, shipTo)
	var unavailable *usecase.ProductUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestCheckout_GatewayFailureLeavesOrderPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	p := env.seedProduct(t, "Mug", "10.00", 5)
	env.addToCart(t, u.ID, p.ID, 1)

	env.gateway.On("Initialize", mock.Anything, mock.Anything).
		Return(nil, &payment.GatewayError{Op: "initialize", StatusCode: 401, Message: "Invalid key"})

	_, err := env.checkout.Checkout(ctx, u.ID, shipTo)
	var gwErr *payment.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, 401, gwErr.StatusCode)

	orders, total, err := env.store.Orders().ListByUserID(ctx, u.ID, 1, 20)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, model.OrderStatusPending, orders[0].Status)
	assert.Equal(t, int64(5), env.stock(t, p.ID))
}

func TestCheckout_UnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.checkout.Checkout(context.Background(), "nobody", shipTo)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 401, he.Status)
}

func TestCheckout_ShippingAddressIsStoredAsGiven(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	p := env.seedProduct(t, "Mug", "10.00", 5)
	env.addToCart(t, u.ID, p.ID, 1)
	env.gateway.On("Initialize", mock.Anything, mock.Anything).
		Return(payment.InitializeResult{AuthorizationURL: "https://checkout.example/abc", AccessCode: "abc"}, nil)

	// street/cityが無くても、未知のキーがあっても受け付ける
	addr := model.ShippingAddress{"landmark": "opposite the market", "address_line2": "Flat 3"}
	out, err := env.checkout.Checkout(ctx, u.ID, usecase.CheckoutInput{ShippingAddress: addr})
	require.NoError(t, err)

	o, err := env.store.Orders().FindByID(ctx, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "opposite the market", o.ShippingAddress["landmark"])
	assert.Equal(t, "Flat 3", o.ShippingAddress["address_line2"])
}

func TestCheckout_MissingShippingAddress(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	p := env.seedProduct(t, "Mug", "10.00", 5)
	env.addToCart(t, u.ID, p.ID, 1)

	_, err := env.checkout.Checkout(ctx, u.ID, usecase.CheckoutInput{})
	assertHTTPStatus(t, err, 400, "shippingAddress is required")
	_, err = env.checkout.Checkout(ctx, u.ID, usecase.CheckoutInput{ShippingAddress: model.ShippingAddress{}})
	assertHTTPStatus(t, err, 400, "shippingAddress is required")
	env.gateway.AssertNotCalled(t, "Initialize", mock.Anything, mock.Anything)
}
