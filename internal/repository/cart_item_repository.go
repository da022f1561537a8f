package repository

import (
	"context"

	"github.com/exclusiveng/server/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID string) ([]model.CartItem, error)
	FindByCartAndProduct(ctx context.Context, cartID string, productID string) (model.CartItem, error)
	// 同一商品はプラス
	UpsertByCartAndProduct(ctx context.Context, cartID string, productID string, addQty int64) error
	UpdateQuantity(ctx context.Context, cartItemID string, qty int64) error
	DeleteByID(ctx context.Context, cartItemID string) error
	FindByID(ctx context.Context, cartItemID string) (model.CartItem, error)
	IsOwnedByUser(ctx context.Context, cartItemID string, userID string) (bool, error)
}
