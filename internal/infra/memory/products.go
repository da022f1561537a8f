package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductRepository struct{ *base }

func (r *ProductRepository) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var out []model.Product
	var total int64
	err := r.with(func(st *state) error {
		s := strings.ToLower(strings.TrimSpace(q.Q))
		category := strings.TrimSpace(q.Category)
		var all []model.Product
		for _, p := range st.products {
			if !p.Purchasable() {
				continue
			}
			if s != "" && !strings.Contains(strings.ToLower(p.Title), s) && !strings.Contains(strings.ToLower(p.Description), s) {
				continue
			}
			if category != "" && p.Category != category {
				continue
			}
			if q.MinPrice != nil && p.Price.LessThan(*q.MinPrice) {
				continue
			}
			if q.MaxPrice != nil && p.Price.GreaterThan(*q.MaxPrice) {
				continue
			}
			if q.IsFavorite != nil && p.IsFavorite != *q.IsFavorite {
				continue
			}
			all = append(all, p)
		}

		switch q.Sort {
		case "price_asc":
			sort.SliceStable(all, func(i, j int) bool {
				if !all[i].Price.Equal(all[j].Price) {
					return all[i].Price.LessThan(all[j].Price)
				}
				return all[i].ID < all[j].ID
			})
		case "price_desc":
			sort.SliceStable(all, func(i, j int) bool {
				if !all[i].Price.Equal(all[j].Price) {
					return all[i].Price.GreaterThan(all[j].Price)
				}
				return all[i].ID > all[j].ID
			})
		case "rating":
			sort.SliceStable(all, func(i, j int) bool {
				if !all[i].Rating.Equal(all[j].Rating) {
					return all[i].Rating.GreaterThan(all[j].Rating)
				}
				if all[i].ReviewCount != all[j].ReviewCount {
					return all[i].ReviewCount > all[j].ReviewCount
				}
				return all[i].ID > all[j].ID
			})
		default:
			sortNewest(all,
				func(p model.Product) time.Time { return p.CreatedAt },
				func(p model.Product) string { return p.ID })
		}

		total = int64(len(all))
		out = paginate(all, q.Page, q.Limit)
		return nil
	})
	return out, total, err
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (model.Product, error) {
	var out model.Product
	err := r.with(func(st *state) error {
		p, ok := st.products[id]
		if !ok || p.DeletedAt.Valid {
			return repo.ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r *ProductRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	err := r.with(func(st *state) error {
		if p.StockQuantity < 0 {
			return ErrCheckViolation
		}
		p.ID = newID(p.ID)
		if _, exists := st.products[p.ID]; exists {
			return repo.ErrDuplicate
		}
		now := r.stamp()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		st.products[p.ID] = p
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *ProductRepository) Update(ctx context.Context, p model.Product) error {
	return r.with(func(st *state) error {
		cur, ok := st.products[p.ID]
		if !ok || cur.DeletedAt.Valid {
			return repo.ErrNotFound
		}
		cur.Title = p.Title
		cur.Description = p.Description
		cur.Price = p.Price
		cur.ImageURL = p.ImageURL
		cur.Category = p.Category
		cur.IsAvailable = p.IsAvailable
		cur.IsFavorite = p.IsFavorite
		cur.Tags = append(model.Tags{}, p.Tags...)
		cur.UpdatedAt = r.stamp()
		st.products[p.ID] = cur
		return nil
	})
}

func (r *ProductRepository) SoftDelete(ctx context.Context, id string) error {
	return r.with(func(st *state) error {
		cur, ok := st.products[id]
		if !ok || cur.DeletedAt.Valid {
			return repo.ErrNotFound
		}
		cur.DeletedAt = gorm.DeletedAt{Time: r.stamp(), Valid: true}
		st.products[id] = cur
		return nil
	})
}

func (r *ProductRepository) AddRating(ctx context.Context, id string, rating decimal.Decimal) (model.Product, error) {
	return r.updatePublic(id, func(p *model.Product) {
		p.Rating = model.NextRating(p.Rating, p.ReviewCount, rating)
		p.ReviewCount++
	})
}

func (r *ProductRepository) ToggleFavorite(ctx context.Context, id string) (model.Product, error) {
	return r.updatePublic(id, func(p *model.Product) {
		p.IsFavorite = !p.IsFavorite
	})
}

func (r *ProductRepository) updatePublic(id string, fn func(*model.Product)) (model.Product, error) {
	var out model.Product
	err := r.with(func(st *state) error {
		p, ok := st.products[id]
		if !ok || !p.Purchasable() {
			return repo.ErrNotFound
		}
		fn(&p)
		p.UpdatedAt = r.stamp()
		st.products[id] = p
		out = p
		return nil
	})
	return out, err
}

type InventoryRepository struct{ *base }

// メモリ版ではStore全体のmutexがロックの代わり
func (r *InventoryRepository) LockProduct(ctx context.Context, productID string) (model.Product, error) {
	var out model.Product
	err := r.with(func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return repo.ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r *InventoryRepository) FindProduct(ctx context.Context, productID string) (model.Product, error) {
	return r.LockProduct(ctx, productID)
}

func (r *InventoryRepository) SetStock(ctx context.Context, productID string, newStock int64) error {
	return r.with(func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return repo.ErrNotFound
		}
		if newStock < 0 {
			return ErrCheckViolation
		}
		p.StockQuantity = newStock
		p.UpdatedAt = r.stamp()
		st.products[productID] = p
		return nil
	})
}

func (r *InventoryRepository) IncreaseStock(ctx context.Context, productID string, qty int64) error {
	return r.with(func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return repo.ErrNotFound
		}
		if p.StockQuantity+qty < 0 {
			return ErrCheckViolation
		}
		p.StockQuantity += qty
		p.UpdatedAt = r.stamp()
		st.products[productID] = p
		return nil
	})
}

func (r *InventoryRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.with(func(st *state) error {
		adj.ID = newID(adj.ID)
		if adj.CreatedAt.IsZero() {
			adj.CreatedAt = r.stamp()
		}
		st.adjustments = append(st.adjustments, adj)
		return nil
	})
}

func (r *InventoryRepository) ListAdjustments(ctx context.Context, productID string) ([]model.InventoryAdjustment, error) {
	out := []model.InventoryAdjustment{}
	err := r.with(func(st *state) error {
		for _, a := range st.adjustments {
			if a.ProductID == productID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}
