package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 購入時点のタイトルと単価のスナップショット。作成後は変更しない。
type OrderItem struct {
	ID              string          `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID         string          `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID       string          `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductTitle    string          `gorm:"type:varchar(255);not null" json:"product_title"`
	PriceAtPurchase decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price_at_purchase"`
	Quantity        int64           `gorm:"not null;check:quantity > 0" json:"quantity"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.PriceAtPurchase.Mul(decimal.NewFromInt(it.Quantity))
}
