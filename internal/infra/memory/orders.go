package memory

import (
	"context"
	"sort"
	"time"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"
)

type OrderRepository struct{ *base }

func (st *state) orderWithItems(o model.Order) model.Order {
	o.Items = append([]model.OrderItem{}, st.orderItems[o.ID]...)
	return o
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	var out model.Order
	err := r.with(func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return repo.ErrNotFound
		}
		out = st.orderWithItems(o)
		return nil
	})
	return out, err
}

func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *OrderRepository) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	return r.list(func(o model.Order) bool { return o.UserID == userID }, page, limit)
}

func (r *OrderRepository) list(match func(model.Order) bool, page, limit int) ([]model.Order, int64, error) {
	var out []model.Order
	var total int64
	err := r.with(func(st *state) error {
		var all []model.Order
		for _, o := range st.orders {
			if match(o) {
				all = append(all, st.orderWithItems(o))
			}
		}
		sortNewest(all,
			func(o model.Order) time.Time { return o.CreatedAt },
			func(o model.Order) string { return o.ID })
		total = int64(len(all))
		out = paginate(all, page, limit)
		return nil
	})
	return out, total, err
}

func (r *OrderRepository) Create(ctx context.Context, order model.Order) error {
	return r.with(func(st *state) error {
		order.ID = newID(order.ID)
		if _, exists := st.orders[order.ID]; exists {
			return repo.ErrDuplicate
		}
		now := r.stamp()
		if order.CreatedAt.IsZero() {
			order.CreatedAt = now
		}
		order.UpdatedAt = now

		items := make([]model.OrderItem, 0, len(order.Items))
		for _, it := range order.Items {
			if it.Quantity <= 0 {
				return ErrCheckViolation
			}
			it.ID = newID(it.ID)
			it.OrderID = order.ID
			if it.CreatedAt.IsZero() {
				it.CreatedAt = now
			}
			items = append(items, it)
		}
		order.Items = nil
		st.orders[order.ID] = order
		st.orderItems[order.ID] = items
		return nil
	})
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	return r.with(func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return repo.ErrNotFound
		}
		o.Status = status
		o.UpdatedAt = r.stamp()
		st.orders[orderID] = o
		return nil
	})
}

func (r *OrderRepository) MarkPaid(ctx context.Context, orderID string, reference string, paidAt time.Time) error {
	return r.with(func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return repo.ErrNotFound
		}
		// payment_referenceの一意制約
		for id, other := range st.orders {
			if id != orderID && other.PaymentReference != nil && *other.PaymentReference == reference {
				return repo.ErrDuplicate
			}
		}
		ref := reference
		o.Status = model.OrderStatusPaid
		o.PaymentReference = &ref
		o.PaidAt = &paidAt
		o.UpdatedAt = r.stamp()
		st.orders[orderID] = o
		return nil
	})
}

func (r *OrderRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	return r.list(func(o model.Order) bool {
		if f.Status != "" && string(o.Status) != f.Status {
			return false
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			return false
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			return false
		}
		return true
	}, f.Page, f.Limit)
}

func (r *OrderRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.with(func(st *state) error {
		var stale []model.Order
		for _, o := range st.orders {
			if o.Status == model.OrderStatusPending && o.CreatedAt.Before(createdBefore) {
				stale = append(stale, o)
			}
		}
		sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
		for i, o := range stale {
			if limit > 0 && i >= limit {
				break
			}
			ids = append(ids, o.ID)
		}
		return nil
	})
	return ids, err
}

type OrderItemRepository struct{ *base }

func (r *OrderItemRepository) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	out := []model.OrderItem{}
	err := r.with(func(st *state) error {
		out = append(out, st.orderItems[orderID]...)
		return nil
	})
	return out, err
}
