package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// 許可される遷移。PENDING→PAIDは決済確定(Settlement)だけが行う。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	switch st {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return st, true
	}
	return "", false
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// 在庫が既に引き当て済みの状態か（キャンセル時に戻す必要がある）
func (s OrderStatus) HoldsStock() bool {
	return s == OrderStatusPaid || s == OrderStatusProcessing
}

type Order struct {
	ID               string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Items            []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Status           OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentReference *string         `gorm:"type:varchar(255);uniqueIndex" json:"payment_reference"`
	ShippingAddress  ShippingAddress `gorm:"type:jsonb" json:"shipping_address"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CreatedAt        time.Time       `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ゲートウェイへ送る金額（最小通貨単位）
func (o Order) AmountMinor() int64 {
	return MinorUnits(o.TotalAmount)
}

// 配送先。中身は解釈せずJSONオブジェクトのまま保存する。
type ShippingAddress map[string]any

func (a ShippingAddress) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *ShippingAddress) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("shipping address: unsupported type")
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*a = m
	return nil
}
