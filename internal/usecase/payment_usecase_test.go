package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/exclusiveng/server/internal/domain/model"
	"github.com/exclusiveng/server/internal/payment"
	"github.com/exclusiveng/server/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestVerifyPayment_SettlesOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	p := env.seedProduct(t, "Mug", "10.00", 5)
	env.addToCart(t, u.ID, p.ID, 2)
	o := env.placeOrder(t, u.ID)

	env.gateway.On("Verify", mock.Anything, o.ID).Return(payment.VerifyResult{
		Success:     true,
		Status:      "success",
		Reference:   o.ID,
		OrderID:     o.ID,
		AmountMinor: 2000,
	}, nil)

	out, err := env.payments.VerifyPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Payment verified and order processed successfully", out.Message)
	assert.Equal(t, o.ID, out.OrderID)
	assert.False(t, out.AlreadyPaid)
	assert.Equal(t, int64(3), env.stock(t, p.ID))

	// リダイレクトとWebhookの両方が来ても在庫は1回だけ減る
	out, err = env.payments.VerifyPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, out.AlreadyPaid)
	assert.Equal(t, int64(3), env.stock(t, p.ID))
}

func TestVerifyPayment_FallsBackToReference(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	p := env.seedProduct(t, "Mug", "10.00", 5)
	env.addToCart(t, u.ID, p.ID, 1)
	o := env.placeOrder(t, u.ID)

	env.gateway.On("Verify", mock.Anything, o.ID).Return(payment.VerifyResult{
		Success:     true,
		Status:      "success",
		AmountMinor: 1000,
	}, nil)

	out, err := env.payments.VerifyPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, out.OrderID)

	stored, err := env.store.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, stored.Status)
}

func TestVerifyPayment_NotSuccessful(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	p := env.seedProduct(t, "Mug", "10.00", 5)
	env.addToCart(t, u.ID, p.ID, 1)
	o := env.placeOrder(t, u.ID)

	env.gateway.On("Verify", mock.Anything, o.ID).Return(payment.VerifyResult{
		Success: false, Status: "abandoned", Reference: o.ID, OrderID: o.ID,
	}, nil)

	_, err := env.payments.VerifyPayment(ctx, o.ID)
	assert.ErrorIs(t, err, usecase.ErrPaymentNotSuccessful)

	stored, err := env.store.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, stored.Status)
	assert.Equal(t, int64(5), env.stock(t, p.ID))
}

func TestVerifyPayment_GatewayError(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.On("Verify", mock.Anything, "ref-1").Return(nil, errors.New("connection reset"))

	_, err := env.payments.VerifyPayment(context.Background(), "ref-1")
	var gwErr *payment.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "verify", gwErr.Op)
}

func TestVerifyPayment_UnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.On("Verify", mock.Anything, "ref-404").Return(payment.VerifyResult{
		Success: true, Status: "success", Reference: "ref-404", AmountMinor: 500,
	}, nil)

	_, err := env.payments.VerifyPayment(context.Background(), "ref-404")
	assert.ErrorIs(t, err, usecase.ErrOrderNotFound)
}

func TestVerifyPayment_EmptyReference(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.payments.VerifyPayment(context.Background(), "  ")
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 400, he.Status)
	env.gateway.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}
