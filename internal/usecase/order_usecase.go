package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type OrderUsecase struct {
	orders repo.OrderRepository
}

func NewOrderUsecase(orders repo.OrderRepository) *OrderUsecase {
	return &OrderUsecase{orders: orders}
}

type OrderItemOutput struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"product_id"`
	ProductTitle    string          `json:"product_title"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Quantity        int64           `json:"quantity"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

type OrderOutput struct {
	ID               string                `json:"id"`
	UserID           string                `json:"user_id"`
	Status           string                `json:"status"`
	TotalAmount      decimal.Decimal       `json:"total_amount"`
	PaymentReference *string               `json:"payment_reference"`
	ShippingAddress  model.ShippingAddress `json:"shipping_address"`
	PaidAt           *time.Time            `json:"paid_at"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	Items            []OrderItemOutput     `json:"items"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// page/limitの既定値と上限
func normalizePage(page, limit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultPageLimit
	}
	if page < 1 {
		return 0, 0, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > maxPageLimit {
		return 0, 0, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	return page, limit, nil
}

// 自分の注文一覧（新しい順）
func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID string, page, limit int) (OrderListOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return OrderListOutput{}, err
	}

	orders, total, err := u.orders.ListByUserID(ctx, userID, page, limit)
	if err != nil {
		return OrderListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	out := OrderListOutput{Items: make([]OrderOutput, 0, len(orders)), Total: total, Page: page, Limit: limit}
	for _, o := range orders {
		out.Items = append(out.Items, toOrderOutput(o))
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrder(ctx context.Context, userID string, orderID string) (OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, ErrOrderNotFound
	}
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	//他人の注文は「存在しない扱い」にする
	if o.UserID != userID {
		return OrderOutput{}, ErrOrderNotFound
	}
	return toOrderOutput(o), nil
}

func toOrderOutput(o model.Order) OrderOutput {
	items := make([]OrderItemOutput, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemOutput{
			ID:              it.ID,
			ProductID:       it.ProductID,
			ProductTitle:    it.ProductTitle,
			PriceAtPurchase: it.PriceAtPurchase,
			Quantity:        it.Quantity,
			Subtotal:        it.Subtotal(),
		})
	}

	return OrderOutput{
		ID:               o.ID,
		UserID:           o.UserID,
		Status:           string(o.Status),
		TotalAmount:      o.TotalAmount,
		PaymentReference: o.PaymentReference,
		ShippingAddress:  o.ShippingAddress,
		PaidAt:           o.PaidAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Items:            items,
	}
}
