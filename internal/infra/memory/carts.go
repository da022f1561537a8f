package memory

import (
	"context"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"
)

// CartRepository はカートと明細の両方を扱う（GORM版と同じ）
type CartRepository struct{ *base }

func (r *CartRepository) GetOrCreateByUserID(ctx context.Context, userID string) (model.Cart, error) {
	var out model.Cart
	err := r.with(func(st *state) error {
		for _, c := range st.carts {
			if c.UserID == userID {
				out = c
				return nil
			}
		}
		now := r.stamp()
		out = model.Cart{ID: newID(""), UserID: userID, CreatedAt: now, UpdatedAt: now}
		st.carts[out.ID] = out
		return nil
	})
	return out, err
}

func (r *CartRepository) FindByUserID(ctx context.Context, userID string) (model.Cart, error) {
	var out model.Cart
	err := r.with(func(st *state) error {
		for _, c := range st.carts {
			if c.UserID == userID {
				out = c
				return nil
			}
		}
		return repo.ErrNotFound
	})
	return out, err
}

func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	return r.with(func(st *state) error {
		kept := st.cartItems[:0:0]
		for _, it := range st.cartItems {
			if it.CartID != cartID {
				kept = append(kept, it)
			}
		}
		st.cartItems = kept
		return nil
	})
}

func (r *CartRepository) ListByCartID(ctx context.Context, cartID string) ([]model.CartItem, error) {
	out := []model.CartItem{}
	err := r.with(func(st *state) error {
		for _, it := range st.cartItems {
			if it.CartID == cartID {
				out = append(out, it)
			}
		}
		return nil
	})
	return out, err
}

func (r *CartRepository) FindByCartAndProduct(ctx context.Context, cartID string, productID string) (model.CartItem, error) {
	var out model.CartItem
	err := r.with(func(st *state) error {
		for _, it := range st.cartItems {
			if it.CartID == cartID && it.ProductID == productID {
				out = it
				return nil
			}
		}
		return repo.ErrNotFound
	})
	return out, err
}

func (r *CartRepository) UpsertByCartAndProduct(ctx context.Context, cartID string, productID string, addQty int64) error {
	return r.with(func(st *state) error {
		now := r.stamp()
		for i, it := range st.cartItems {
			if it.CartID == cartID && it.ProductID == productID {
				if it.Quantity+addQty < 1 {
					return ErrCheckViolation
				}
				st.cartItems[i].Quantity += addQty
				st.cartItems[i].UpdatedAt = now
				return nil
			}
		}
		if addQty < 1 {
			return ErrCheckViolation
		}
		st.cartItems = append(st.cartItems, model.CartItem{
			ID:        newID(""),
			CartID:    cartID,
			ProductID: productID,
			Quantity:  addQty,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return nil
	})
}

func (r *CartRepository) UpdateQuantity(ctx context.Context, cartItemID string, qty int64) error {
	return r.with(func(st *state) error {
		for i, it := range st.cartItems {
			if it.ID == cartItemID {
				if qty < 1 {
					return ErrCheckViolation
				}
				st.cartItems[i].Quantity = qty
				st.cartItems[i].UpdatedAt = r.stamp()
				return nil
			}
		}
		return repo.ErrNotFound
	})
}

func (r *CartRepository) DeleteByID(ctx context.Context, cartItemID string) error {
	return r.with(func(st *state) error {
		for i, it := range st.cartItems {
			if it.ID == cartItemID {
				st.cartItems = append(st.cartItems[:i:i], st.cartItems[i+1:]...)
				return nil
			}
		}
		return repo.ErrNotFound
	})
}

func (r *CartRepository) FindByID(ctx context.Context, cartItemID string) (model.CartItem, error) {
	var out model.CartItem
	err := r.with(func(st *state) error {
		for _, it := range st.cartItems {
			if it.ID == cartItemID {
				out = it
				return nil
			}
		}
		return repo.ErrNotFound
	})
	return out, err
}

func (r *CartRepository) IsOwnedByUser(ctx context.Context, cartItemID string, userID string) (bool, error) {
	var owned bool
	err := r.with(func(st *state) error {
		for _, it := range st.cartItems {
			if it.ID == cartItemID {
				c, ok := st.carts[it.CartID]
				owned = ok && c.UserID == userID
				return nil
			}
		}
		return nil
	})
	return owned, err
}
