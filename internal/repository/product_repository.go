package repository

import (
	"context"

	"github.com/exclusiveng/server/internal/domain/model"
	"github.com/shopspring/decimal"
)

// 一覧検索
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	// nilなら絞り込まない
	IsFavorite *bool
	Sort       string
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id string) (model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	SoftDelete(ctx context.Context, id string) error

	// 公開中の商品に評価を1件加え、平均と件数を更新して返す
	AddRating(ctx context.Context, id string, rating decimal.Decimal) (model.Product, error)
	// 公開中の商品のお気に入りを反転して返す
	ToggleFavorite(ctx context.Context, id string) (model.Product, error)
}
