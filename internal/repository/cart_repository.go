package repository

import (
	"context"

	"github.com/exclusiveng/server/internal/domain/model"
)

type CartRepository interface {
	GetOrCreateByUserID(ctx context.Context, userID string) (model.Cart, error)
	FindByUserID(ctx context.Context, userID string) (model.Cart, error)
	// 明細だけ全削除（カート行は残す）
	Clear(ctx context.Context, cartID string) error
}
