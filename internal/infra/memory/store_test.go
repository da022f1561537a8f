package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s *Store, title string, price string, stock int64) model.Product {
	t.Helper()
	p, err := s.Products().Create(context.Background(), model.Product{
		Title:         title,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsAvailable:   true,
	})
	require.NoError(t, err)
	return p
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	p := seedProduct(t, s, "Mug", "10.00", 5)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		require.NoError(t, r.Inventory().SetStock(ctx, p.ID, 1))
		require.NoError(t, r.Orders().Create(ctx, model.Order{UserID: "u1", Status: model.OrderStatusPending}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.StockQuantity)

	orders, total, err := s.Orders().ListByUserID(ctx, "u1", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	p := seedProduct(t, s, "Mug", "10.00", 5)

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Inventory().SetStock(ctx, p.ID, 2)
	})
	require.NoError(t, err)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.StockQuantity)
}

func TestInventory_NegativeStockRejected(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	p := seedProduct(t, s, "Mug", "10.00", 1)

	assert.ErrorIs(t, s.Inventory().SetStock(ctx, p.ID, -1), ErrCheckViolation)
	assert.ErrorIs(t, s.Inventory().IncreaseStock(ctx, p.ID, -2), ErrCheckViolation)
}

func TestProducts_SoftDeleteHidesButLockSees(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	p := seedProduct(t, s, "Mug", "10.00", 1)

	require.NoError(t, s.Products().SoftDelete(ctx, p.ID))

	_, err := s.Products().FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	locked, err := s.Inventory().LockProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, locked.Purchasable())

	list, total, err := s.Products().ListPublic(ctx, repo.ProductListQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestProducts_ListPublicFilters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedProduct(t, s, "Blue Mug", "10.00", 1)
	seedProduct(t, s, "Red Mug", "25.00", 1)
	seedProduct(t, s, "Teapot", "40.00", 1)

	minPrice := decimal.RequireFromString("15")
	list, total, err := s.Products().ListPublic(ctx, repo.ProductListQuery{Page: 1, Limit: 10, Q: "mug", MinPrice: &minPrice})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "Red Mug", list[0].Title)

	list, _, err = s.Products().ListPublic(ctx, repo.ProductListQuery{Page: 1, Limit: 10, Sort: "price_desc"})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Teapot", list[0].Title)
}

func TestCart_UpsertAddsQuantityAndClearKeepsCart(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	cart, err := s.Carts().GetOrCreateByUserID(ctx, "u1")
	require.NoError(t, err)
	again, err := s.Carts().GetOrCreateByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	require.NoError(t, s.Carts().UpsertByCartAndProduct(ctx, cart.ID, "p1", 2))
	require.NoError(t, s.Carts().UpsertByCartAndProduct(ctx, cart.ID, "p1", 3))

	item, err := s.Carts().FindByCartAndProduct(ctx, cart.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), item.Quantity)

	owned, err := s.Carts().IsOwnedByUser(ctx, item.ID, "u1")
	require.NoError(t, err)
	assert.True(t, owned)
	owned, err = s.Carts().IsOwnedByUser(ctx, item.ID, "u2")
	require.NoError(t, err)
	assert.False(t, owned)

	require.NoError(t, s.Carts().Clear(ctx, cart.ID))
	items, err := s.Carts().ListByCartID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	after, err := s.Carts().FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, cart.ID, after.ID)
}

func TestOrders_MarkPaidAndStale(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Orders().Create(ctx, model.Order{ID: "o-old", UserID: "u1", Status: model.OrderStatusPending, CreatedAt: t0}))
	require.NoError(t, s.Orders().Create(ctx, model.Order{ID: "o-new", UserID: "u1", Status: model.OrderStatusPending, CreatedAt: t0.Add(48 * time.Hour)}))

	ids, err := s.Orders().ListStalePending(ctx, t0.Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"o-old"}, ids)

	require.NoError(t, s.Orders().MarkPaid(ctx, "o-old", "o-old", t0.Add(time.Hour)))
	o, err := s.Orders().FindByID(ctx, "o-old")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, o.Status)
	require.NotNil(t, o.PaymentReference)
	assert.Equal(t, "o-old", *o.PaymentReference)

	// 同じ参照は別注文に使えない
	assert.ErrorIs(t, s.Orders().MarkPaid(ctx, "o-new", "o-old", t0), repo.ErrDuplicate)

	list, total, err := s.Orders().ListByUserID(ctx, "u1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "o-new", list[0].ID)
}

func TestUsers_EmailUnique(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Users().Create(ctx, &model.User{Email: "A@example.com"}))
	assert.ErrorIs(t, s.Users().Create(ctx, &model.User{Email: "a@example.com"}), repo.ErrDuplicate)

	u, err := s.Users().FindByEmail(ctx, "a@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)

	_, err = s.Users().FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestAuditLogs_ListFiltersAndPages(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := []model.AuditLog{
		{ActorUserID: "a1", Action: model.AuditActionUpdateStock, ResourceType: model.AuditResourceProduct, ResourceID: "p1", CreatedAt: base},
		{ActorUserID: "a1", Action: model.AuditActionUpdateOrderStatus, ResourceType: model.AuditResourceOrder, ResourceID: "o1", CreatedAt: base.Add(time.Minute)},
		{ActorUserID: model.SystemActorID, Action: model.AuditActionCancelStaleOrder, ResourceType: model.AuditResourceOrder, ResourceID: "o2", CreatedAt: base.Add(2 * time.Minute)},
		{ActorUserID: "a2", Action: model.AuditActionUpdateStock, ResourceType: model.AuditResourceProduct, ResourceID: "p1", CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, l := range seed {
		require.NoError(t, s.AuditLogs().Create(ctx, l))
	}

	logs, err := s.AuditLogs().List(ctx, repo.AuditLogFilter{
		Actions: []model.AuditAction{model.AuditActionUpdateOrderStatus, model.AuditActionCancelStaleOrder},
	})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "o2", logs[0].ResourceID)
	assert.Equal(t, "o1", logs[1].ResourceID)

	rt := model.AuditResourceProduct
	from := base.Add(30 * time.Second)
	logs, err = s.AuditLogs().List(ctx, repo.AuditLogFilter{ResourceType: &rt, CreatedFrom: &from})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "a2", logs[0].ActorUserID)

	logs, err = s.AuditLogs().List(ctx, repo.AuditLogFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "o2", logs[0].ResourceID)
	assert.Equal(t, "o1", logs[1].ResourceID)
}

func TestAuditLogFilter_Page(t *testing.T) {
	limit, offset := repo.AuditLogFilter{}.Page()
	assert.Equal(t, repo.DefaultAuditLogLimit, limit)
	assert.Zero(t, offset)

	limit, offset = repo.AuditLogFilter{Limit: 500, Offset: -3}.Page()
	assert.Equal(t, repo.DefaultAuditLogLimit, limit)
	assert.Zero(t, offset)

	limit, _ = repo.AuditLogFilter{Limit: repo.MaxAuditLogLimit}.Page()
	assert.Equal(t, repo.MaxAuditLogLimit, limit)
}
