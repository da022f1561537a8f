package model

import "time"

// カートの明細。価格は持たず、チェックアウト時点の商品価格を使う。
type CartItem struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CartID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product" json:"cart_id"`
	ProductID string    `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product" json:"product_id"`
	Quantity  int64     `gorm:"not null;check:quantity >= 1" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
