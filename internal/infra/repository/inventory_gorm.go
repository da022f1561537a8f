package repository

import (
	"context"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// SELECT ... FOR UPDATE。論理削除済みの商品も対象にする（注文の在庫戻しで必要）。
func (r *InventoryGormRepository) LockProduct(ctx context.Context, productID string) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Unscoped().
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", productID).
		First(&p).Error
	if err != nil {
		return model.Product{}, translate(err)
	}
	return p, nil
}

// 台帳の参照用。行ロックは取らない。
func (r *InventoryGormRepository) FindProduct(ctx context.Context, productID string) (model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", productID).First(&p).Error; err != nil {
		return model.Product{}, translate(err)
	}
	return p, nil
}

// 在庫の現在値を設定
func (r *InventoryGormRepository) SetStock(ctx context.Context, productID string, newStock int64) error {
	res := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock_quantity", newStock)

	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 在庫戻し（キャンセル）
func (r *InventoryGormRepository) IncreaseStock(ctx context.Context, productID string, qty int64) error {
	res := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty))

	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 調整履歴作成
func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	ensureID(&adj.ID)
	if err := r.db.WithContext(ctx).Create(&adj).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *InventoryGormRepository) ListAdjustments(ctx context.Context, productID string) ([]model.InventoryAdjustment, error) {
	var out []model.InventoryAdjustment
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at asc").
		Find(&out).Error
	if err != nil {
		return []model.InventoryAdjustment{}, translate(err)
	}
	return out, nil
}
