package model

import "time"

type AdjustmentReason string

const (
	AdjustmentOrderSettled  AdjustmentReason = "order_settled"
	AdjustmentOrderCanceled AdjustmentReason = "order_cancelled"
	AdjustmentAdmin         AdjustmentReason = "admin_adjustment"
)

// 在庫台帳。在庫を動かすたびに1行残す。
type InventoryAdjustment struct {
	ID          string           `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID   string           `gorm:"type:uuid;not null;index" json:"product_id"`
	ActorUserID *string          `gorm:"type:uuid;index" json:"actor_user_id,omitempty"`
	OrderID     *string          `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Delta       int64            `gorm:"not null" json:"delta"`
	Reason      AdjustmentReason `gorm:"type:varchar(50);not null" json:"reason"`
	Note        string           `gorm:"type:varchar(255)" json:"note,omitempty"`
	CreatedAt   time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
}
