package repository

import (
	"context"
	"time"

	"github.com/exclusiveng/server/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *string
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	// 注文行をロックして取得（決済確定・キャンセル用）
	FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error)
	// 注文と明細を作成
	Create(ctx context.Context, order model.Order) error
	UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error
	MarkPaid(ctx context.Context, orderID string, reference string, paidAt time.Time) error

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
	// createdBefore より古い PENDING 注文のID
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
}
