package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
	tx          repo.TransactionManager
	auditRepo   repo.AuditLogRepository
	ids         IDGenerator
	clock       Clock
}

// DI
func NewProductUsecase(
	productRepo repo.ProductRepository,
	tx repo.TransactionManager,
	auditRepo repo.AuditLogRepository,
	ids IDGenerator,
	clock Clock,
) *ProductUsecase {
	return &ProductUsecase{
		productRepo: productRepo,
		tx:          tx,
		auditRepo:   auditRepo,
		ids:         ids,
		clock:       clock,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	// お気に入りだけ（true）/以外だけ（false）
	IsFavorite *bool
	Sort       string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	page, limit, err := normalizePage(in.Page, in.Limit)
	if err != nil {
		return ProductListOutput{}, err
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc", "rating":
	default:
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     page,
		Limit:    limit,
		Q:        strings.TrimSpace(in.Q),
		Category: strings.TrimSpace(in.Category),
		MinPrice: in.MinPrice,
		MaxPrice:   in.MaxPrice,
		IsFavorite: in.IsFavorite,
		Sort:       in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if items == nil {
		items = []model.Product{}
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID string) (model.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "Product not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsAvailable {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "Product not found")
	}
	return p, nil
}

type AdminProductInput struct {
	Title         string
	Description   string
	Price         decimal.Decimal
	ImageURL      string
	Category      string
	StockQuantity int64 // 作成時のみ使う
	IsAvailable   bool
	// 更新時はnilなら現在の値を保つ
	IsFavorite *bool
	Tags       model.Tags
}

func validateProductInput(in AdminProductInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return NewHTTPError(http.StatusBadRequest, "title required")
	}
	if in.Price.IsNegative() {
		return NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	if !in.Price.Equal(in.Price.Round(2)) {
		return NewHTTPError(http.StatusBadRequest, "price must have at most 2 decimal places")
	}
	if in.StockQuantity < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	tags := in.Tags.Normalize()
	if len(tags) > model.MaxTags {
		return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("at most %d tags", model.MaxTags))
	}
	for _, tag := range tags {
		if utf8.RuneCountInString(tag) > model.MaxTagLength {
			return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("tag must be at most %d characters", model.MaxTagLength))
		}
	}
	return nil
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID string, in AdminProductInput) (model.Product, error) {
	if strings.TrimSpace(adminUserID) == "" {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := validateProductInput(in); err != nil {
		return model.Product{}, err
	}

	now := u.clock.Now()
	p, err := u.productRepo.Create(ctx, model.Product{
		ID:            u.ids.NewID(),
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		Price:         in.Price,
		ImageURL:      strings.TrimSpace(in.ImageURL),
		Category:      strings.TrimSpace(in.Category),
		StockQuantity: in.StockQuantity,
		IsAvailable:   in.IsAvailable,
		IsFavorite:    in.IsFavorite != nil && *in.IsFavorite,
		Tags:          in.Tags.Normalize(),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return p, nil
}

type RatingOutput struct {
	Rating      decimal.Decimal `json:"rating"`
	ReviewCount int64           `json:"review_count"`
}

// 評価を1件加える（0〜5）。平均は小数2桁。
func (u *ProductUsecase) RateProduct(ctx context.Context, productID string, rating decimal.Decimal) (RatingOutput, error) {
	if strings.TrimSpace(productID) == "" {
		return RatingOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if rating.IsNegative() || rating.GreaterThan(decimal.NewFromInt(model.MaxRating)) {
		return RatingOutput{}, NewHTTPError(http.StatusBadRequest, "Rating must be between 0 and 5")
	}

	p, err := u.productRepo.AddRating(ctx, productID, rating)
	if errors.Is(err, repo.ErrNotFound) {
		return RatingOutput{}, NewHTTPError(http.StatusNotFound, "Product not found")
	}
	if err != nil {
		return RatingOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return RatingOutput{Rating: p.Rating, ReviewCount: p.ReviewCount}, nil
}

type FavoriteOutput struct {
	IsFavorite bool `json:"is_favorite"`
}

func (u *ProductUsecase) ToggleFavorite(ctx context.Context, productID string) (FavoriteOutput, error) {
	if strings.TrimSpace(productID) == "" {
		return FavoriteOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.ToggleFavorite(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return FavoriteOutput{}, NewHTTPError(http.StatusNotFound, "Product not found")
	}
	if err != nil {
		return FavoriteOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return FavoriteOutput{IsFavorite: p.IsFavorite}, nil
}

// 価格を変えても既存の注文明細（スナップショット）は変わらない
func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, adminUserID string, productID string, in AdminProductInput) (model.Product, error) {
	if strings.TrimSpace(adminUserID) == "" {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(productID) == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	in.StockQuantity = 0
	if err := validateProductInput(in); err != nil {
		return model.Product{}, err
	}

	// 省略された項目は現在の値を引き継ぐ
	if in.IsFavorite == nil || in.Tags == nil {
		cur, err := u.productRepo.FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.Product{}, NewHTTPError(http.StatusNotFound, "Product not found")
		}
		if err != nil {
			return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if in.IsFavorite == nil {
			in.IsFavorite = &cur.IsFavorite
		}
		if in.Tags == nil {
			in.Tags = cur.Tags
		}
	}

	err := u.productRepo.Update(ctx, model.Product{
		ID:          productID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Category:    strings.TrimSpace(in.Category),
		IsAvailable: in.IsAvailable,
		IsFavorite:  *in.IsFavorite,
		Tags:        in.Tags.Normalize(),
	})
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "Product not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return p, nil
}

func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, adminUserID string, productID string) error {
	if strings.TrimSpace(adminUserID) == "" {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(productID) == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	err := u.productRepo.SoftDelete(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "Product not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

// 在庫の現在値を設定。行ロックを取り、台帳と監査ログを同じトランザクションで残す。
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID string, productID string, newStock int64, reason string) (model.Product, error) {
	if strings.TrimSpace(adminUserID) == "" {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(productID) == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if newStock < 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "reason required")
	}
	if len(reason) > 255 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "reason too long")
	}

	var updated model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Inventory().LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		if p.DeletedAt.Valid {
			return repo.ErrNotFound
		}

		//在庫の現在値を更新
		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			return err
		}

		now := u.clock.Now()
		actor := adminUserID
		//履歴を作成（差分）
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ID:          u.ids.NewID(),
			ProductID:   productID,
			ActorUserID: &actor,
			Delta:       newStock - p.StockQuantity,
			Reason:      model.AdjustmentAdmin,
			Note:        reason,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		//監査ログを作成（在庫更新）
		//「誰が」「何を」「どの対象に」「どう変えたか」を残す
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ID:           u.ids.NewID(),
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   fmt.Sprintf(`{"stock_quantity":%d}`, p.StockQuantity),
			AfterJSON:    fmt.Sprintf(`{"stock_quantity":%d}`, newStock),
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		p.StockQuantity = newStock
		updated = p
		return nil
	})
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "Product not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return updated, nil
}

// 在庫台帳（管理者）。行ロックは取らない。
func (u *ProductUsecase) AdminListAdjustments(ctx context.Context, productID string) ([]model.InventoryAdjustment, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	var out []model.InventoryAdjustment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Inventory().FindProduct(ctx, productID); err != nil {
			return err
		}
		adjs, err := r.Inventory().ListAdjustments(ctx, productID)
		out = adjs
		return err
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, NewHTTPError(http.StatusNotFound, "Product not found")
	}
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return out, nil
}

// 監査ログ一覧（管理者）
func (u *ProductUsecase) AdminListAuditLogs(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}
