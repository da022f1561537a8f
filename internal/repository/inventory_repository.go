package repository

import (
	"context"

	"github.com/exclusiveng/server/internal/domain/model"
)

// 在庫台帳。在庫を書き換えるのはこのインターフェースだけ。
type InventoryRepository interface {
	// 行ロック(FOR UPDATE)を取って商品を読む。トランザクション内でのみ使う。
	LockProduct(ctx context.Context, productID string) (model.Product, error)

	// ロックせずに読む（論理削除済みも返す）。参照系専用。
	FindProduct(ctx context.Context, productID string) (model.Product, error)

	// 在庫の現在値を設定
	SetStock(ctx context.Context, productID string, newStock int64) error

	// 在庫戻し（キャンセルなど）
	IncreaseStock(ctx context.Context, productID string, qty int64) error

	// 台帳に1行追加
	CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error

	ListAdjustments(ctx context.Context, productID string) ([]model.InventoryAdjustment, error)
}
