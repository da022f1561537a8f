// Package events は注文イベントの発行を扱う。
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeOrderPaid      = "order.paid"
	TypeOrderCancelled = "order.cancelled"
)

// PublishTimeout はコミット後の発行1件にかける上限
const PublishTimeout = 5 * time.Second

// OrderEvent はトピックに流す注文イベント
type OrderEvent struct {
	Type        string          `json:"type"`
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Reference   string          `json:"reference,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
	Close() error
}

// Kafka未設定時に使う
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NopPublisher) Close() error                              { return nil }

// PublishAfterCommit は呼び出し元のキャンセルを切り離し、PublishTimeoutで打ち切って発行する。
func PublishAfterCommit(ctx context.Context, p Publisher, ev OrderEvent) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()
	return p.Publish(ctx, ev)
}
