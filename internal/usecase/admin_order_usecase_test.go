package usecase_test

import (
	"context"
	"testing"

	"github.com/exclusiveng/server/internal/domain/model"
	"github.com/exclusiveng/server/internal/infra/events"
	repo "github.com/exclusiveng/server/internal/repository"
	"github.com/exclusiveng/server/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = "11111111-1111-1111-1111-111111111111"

func paidOrder(t *testing.T, env *testEnv) (model.Order, model.Product) {
	t.Helper()
	u := env.seedUser(t, "buyer@example.com")
	p := env.seedProduct(t, "Mug", "10.00", 5)
	env.addToCart(t, u.ID, p.ID, 2)
	o := env.placeOrder(t, u.ID)
	_, err := env.settlement.Settle(context.Background(), settleInput(o))
	require.NoError(t, err)
	return o, p
}

func TestAdminUpdateStatus_CancelPaidOrderRestocks(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o, p := paidOrder(t, env)
	require.Equal(t, int64(3), env.stock(t, p.ID))

	out, err := env.adminOrder.UpdateStatus(ctx, adminID, o.ID, usecase.AdminUpdateOrderStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderStatusCancelled), out.Status)
	assert.Equal(t, int64(5), env.stock(t, p.ID))

	adjs, err := env.store.Inventory().ListAdjustments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, adjs, 2)
	var restock *model.InventoryAdjustment
	for i := range adjs {
		if adjs[i].Reason == model.AdjustmentOrderCanceled {
			restock = &adjs[i]
		}
	}
	require.NotNil(t, restock)
	assert.Equal(t, int64(2), restock.Delta)
	require.NotNil(t, restock.ActorUserID)
	assert.Equal(t, adminID, *restock.ActorUserID)

	resourceID := o.ID
	logs, err := env.store.AuditLogs().List(ctx, repo.AuditLogFilter{ResourceID: &resourceID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, logs[0].Action)
	assert.Equal(t, adminID, logs[0].ActorUserID)
	assert.JSONEq(t, `{"status":"paid"}`, logs[0].BeforeJSON)
	assert.JSONEq(t, `{"status":"cancelled"}`, logs[0].AfterJSON)

	assert.Equal(t, []string{events.TypeOrderPaid, events.TypeOrderCancelled}, env.publisher.types())
}

func TestAdminUpdateStatus_CancelPendingDoesNotRestock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	p := env.seedProduct(t, "Mug", "10.00", 5)
	env.addToCart(t, u.ID, p.ID, 2)
	o := env.placeOrder(t, u.ID)

	_, err := env.adminOrder.UpdateStatus(ctx, adminID, o.ID, usecase.AdminUpdateOrderStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), env.stock(t, p.ID))

	adjs, err := env.store.Inventory().ListAdjustments(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, adjs)
}

func TestAdminUpdateStatus_Transitions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o, _ := paidOrder(t, env)

	// paid→processing→shipped→delivered
	for _, st := range []string{"processing", "shipped", "delivered"} {
		out, err := env.adminOrder.UpdateStatus(ctx, adminID, o.ID, usecase.AdminUpdateOrderStatusInput{Status: st})
		require.NoError(t, err)
		assert.Equal(t, st, out.Status)
	}

	_, err := env.adminOrder.UpdateStatus(ctx, adminID, o.ID, usecase.AdminUpdateOrderStatusInput{Status: "cancelled"})
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 409, he.Status)

	// 同じステータスは何もしない
	out, err := env.adminOrder.UpdateStatus(ctx, adminID, o.ID, usecase.AdminUpdateOrderStatusInput{Status: "delivered"})
	require.NoError(t, err)
	assert.Equal(t, "delivered", out.Status)

	logs, err := env.store.AuditLogs().List(ctx, repo.AuditLogFilter{ResourceID: &o.ID})
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

func TestAdminUpdateStatus_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	p := env.seedProduct(t, "Mug", "10.00", 5)
	env.addToCart(t, u.ID, p.ID, 1)
	o := env.placeOrder(t, u.ID)

	_, err := env.adminOrder.UpdateStatus(ctx, adminID, o.ID, usecase.AdminUpdateOrderStatusInput{Status: "paid"})
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 400, he.Status)

	_, err = env.adminOrder.UpdateStatus(ctx, adminID, o.ID, usecase.AdminUpdateOrderStatusInput{Status: "lost"})
	he, ok = usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 400, he.Status)

	_, err = env.adminOrder.UpdateStatus(ctx, adminID, "missing", usecase.AdminUpdateOrderStatusInput{Status: "cancelled"})
	assert.ErrorIs(t, err, usecase.ErrOrderNotFound)
}

func TestAdminOrderList_Filters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	paidOrder(t, env)

	out, err := env.adminOrder.List(ctx, repo.AdminOrderListFilter{Status: "paid"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, 20, out.Limit)

	out, err = env.adminOrder.List(ctx, repo.AdminOrderListFilter{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Total)

	_, err = env.adminOrder.List(ctx, repo.AdminOrderListFilter{Status: "bogus"})
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 400, he.Status)
}
