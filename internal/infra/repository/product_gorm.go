package repository

import (
	"context"
	"strings"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// 公開商品のみを、検索/カテゴリ/価格帯/ソート/ページング付きで返す。
func (r *ProductGormRepository) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.Product{})

	// 公開（is_available=true）かつ、論理削除されていないものだけ
	tx = tx.Where("is_available = ?", true)

	// q はtitle/descriptionを対象
	if s := strings.TrimSpace(q.Q); s != "" {
		like := "%" + s + "%"
		tx = tx.Where("title ILIKE ? OR description ILIKE ?", like, like)
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		tx = tx.Where("category = ?", c)
	}

	//価格帯
	if q.MinPrice != nil {
		tx = tx.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("price <= ?", *q.MaxPrice)
	}
	if q.IsFavorite != nil {
		tx = tx.Where("is_favorite = ?", *q.IsFavorite)
	}

	//total（件数）
	if err := tx.Count(&total).Error; err != nil {
		return []model.Product{}, 0, translate(err)
	}

	//sort
	switch q.Sort {
	case "price_asc":
		tx = tx.Order("price asc").Order("id asc")
	case "price_desc":
		tx = tx.Order("price desc").Order("id desc")
	case "rating":
		tx = tx.Order("rating desc").Order("review_count desc").Order("id desc")
	default:
		tx = tx.Order("created_at desc").Order("id desc")
	}

	offset := (q.Page - 1) * q.Limit
	if err := tx.Offset(offset).Limit(q.Limit).Find(&products).Error; err != nil {
		return []model.Product{}, 0, translate(err)
	}

	return products, total, nil
}

// IDで商品を取得（論理削除済みはErrNotFound）
func (r *ProductGormRepository) FindByID(ctx context.Context, id string) (model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return model.Product{}, translate(err)
	}
	return p, nil
}

// 商品の作成
func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	ensureID(&p.ID)
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Product{}, translate(err)
	}
	return p, nil
}

// 商品の更新。在庫はInventory経由でのみ変える。
func (r *ProductGormRepository) Update(ctx context.Context, p model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"title":        p.Title,
		"description":  p.Description,
		"price":        p.Price,
		"image_url":    p.ImageURL,
		"category":     p.Category,
		"is_available": p.IsAvailable,
		"is_favorite":  p.IsFavorite,
		"tags":         p.Tags,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 商品削除
func (r *ProductGormRepository) SoftDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Product{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 平均の計算はUPDATE文の中で行う（同時に評価されても件数を落とさない）
func (r *ProductGormRepository) AddRating(ctx context.Context, id string, rating decimal.Decimal) (model.Product, error) {
	return r.updatePublic(ctx, id, map[string]interface{}{
		"rating":       gorm.Expr("ROUND((rating * review_count + ?) / (review_count + 1), 2)", rating),
		"review_count": gorm.Expr("review_count + 1"),
	})
}

func (r *ProductGormRepository) ToggleFavorite(ctx context.Context, id string) (model.Product, error) {
	return r.updatePublic(ctx, id, map[string]interface{}{
		"is_favorite": gorm.Expr("NOT is_favorite"),
	})
}

// 公開中の1行だけ更新して読み直す。対象が無ければErrNotFound。
func (r *ProductGormRepository) updatePublic(ctx context.Context, id string, cols map[string]interface{}) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Product{}).
			Where("id = ? AND is_available = ?", id, true).
			Updates(cols)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return translate(tx.Where("id = ?", id).First(&p).Error)
	})
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}
