package repository

import (
	"context"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーのカートを取得し、無ければ作成。
// 同時作成は user_id の一意制約で1つに収束させる。
func (r *CartGormRepository) GetOrCreateByUserID(ctx context.Context, userID string) (model.Cart, error) {
	newCart := model.Cart{ID: uuid.NewString(), UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&newCart).Error; err != nil {
		return model.Cart{}, translate(err)
	}
	return r.FindByUserID(ctx, userID)
}

// ユーザーのカートを取得
func (r *CartGormRepository) FindByUserID(ctx context.Context, userID string) (model.Cart, error) {
	var cart model.Cart
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return model.Cart{}, translate(err)
	}
	return cart, nil
}

// 指定カートの明細を全削除。カート行は残す。
func (r *CartGormRepository) Clear(ctx context.Context, cartID string) error {
	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
		return translate(err)
	}
	return nil
}

// カート明細を一覧取得
func (r *CartGormRepository) ListByCartID(ctx context.Context, cartID string) ([]model.CartItem, error) {
	var items []model.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at asc").Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, translate(err)
	}
	return items, nil
}

func (r *CartGormRepository) FindByCartAndProduct(ctx context.Context, cartID string, productID string) (model.CartItem, error) {
	var item model.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error; err != nil {
		return model.CartItem{}, translate(err)
	}
	return item, nil
}

// 同一商品は数量加算（ON CONFLICT で1文にする）
func (r *CartGormRepository) UpsertByCartAndProduct(ctx context.Context, cartID string, productID string, addQty int64) error {
	item := model.CartItem{
		ID:        uuid.NewString(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  addQty,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + ?", addQty),
				"updated_at": gorm.Expr("now()"),
			}),
		}).
		Create(&item).Error
	return translate(err)
}

// 明細の数量を更新
func (r *CartGormRepository) UpdateQuantity(ctx context.Context, cartItemID string, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Update("quantity", qty)

	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID string) error {
	res := r.db.WithContext(ctx).Where("id = ?", cartItemID).Delete(&model.CartItem{})

	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を取得
func (r *CartGormRepository) FindByID(ctx context.Context, cartItemID string) (model.CartItem, error) {
	var item model.CartItem
	if err := r.db.WithContext(ctx).Where("id = ?", cartItemID).First(&item).Error; err != nil {
		return model.CartItem{}, translate(err)
	}
	return item, nil
}

//cartItemが、そのuserのカートに属しているかを判定
func (r *CartGormRepository) IsOwnedByUser(ctx context.Context, cartItemID string, userID string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Table("cart_items").
		Joins("join carts on carts.id = cart_items.cart_id").
		Where("cart_items.id = ? AND carts.user_id = ?", cartItemID, userID).
		Count(&count).Error

	if err != nil {
		return false, translate(err)
	}

	return count > 0, nil
}
