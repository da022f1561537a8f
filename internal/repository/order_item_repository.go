package repository

import (
	"context"

	"github.com/exclusiveng/server/internal/domain/model"
)

type OrderItemRepository interface {
	ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error)
}
