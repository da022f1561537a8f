package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart の業務ロジックです。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

// price は現在の商品価格（チェックアウト時もこの価格を使う）
type CartItemResponse struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"productId"`
	Title          string          `json:"title"`
	Price          decimal.Decimal `json:"price"`
	ImageURL       string          `json:"image_url"`
	Quantity       int64           `json:"quantity"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	StockAvailable int64           `json:"stock_available"`
	Available      bool            `json:"available"`
}

type CartResponse struct {
	ID          string             `json:"id"`
	Items       []CartItemResponse `json:"items"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	ItemCount   int                `json:"itemCount"`
}

type AddCartInput struct {
	ProductID string
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// GetCart はカート取得（無ければ作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID string) (CartResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return u.buildCartResponse(ctx, cart)
}

// AddToCart はカートに追加（同一商品は数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID string, in AddCartInput) (CartResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(in.ProductID) == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "Product ID is required")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	// 商品チェック（公開のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "Product not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.Purchasable() {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "Product is not available")
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var existingQty int64
	existing, err := u.cartItemRepo.FindByCartAndProduct(ctx, cart.ID, p.ID)
	switch {
	case err == nil:
		existingQty = existing.Quantity
	case errors.Is(err, repo.ErrNotFound):
	default:
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//参考チェック（確定は決済時）。加算で桁あふれしないよう引き算で比べる
	if in.Quantity > p.StockQuantity-existingQty {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "Insufficient stock")
	}

	if err := u.cartItemRepo.UpsertByCartAndProduct(ctx, cart.ID, p.ID, in.Quantity); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return u.buildCartResponse(ctx, cart)
}

// 数量変更（所有チェック＋在庫チェック）。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID string, cartItemID string, in UpdateCartItemInput) (CartResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(cartItemID) == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	item, err := u.ownedItem(ctx, userID, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	//商品の在庫チェック
	p, err := u.productRepo.FindByID(ctx, item.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "Product is not available")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.Purchasable() {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "Product is not available")
	}
	if in.Quantity > p.StockQuantity {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "Insufficient stock")
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.GetCart(ctx, userID)
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, userID string, cartItemID string) (CartResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(cartItemID) == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if _, err := u.ownedItem(ctx, userID, cartItemID); err != nil {
		return CartResponse{}, err
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.GetCart(ctx, userID)
}

// カートを空にする（カート自体は残す）
func (u *CartUsecase) ClearCart(ctx context.Context, userID string) (CartResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return u.buildCartResponse(ctx, cart)
}

// 他人の明細は「存在しない扱い」
func (u *CartUsecase) ownedItem(ctx context.Context, userID string, cartItemID string) (model.CartItem, error) {
	owned, err := u.cartItemRepo.IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return model.CartItem{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !owned {
		return model.CartItem{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.CartItem{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return item, nil
}

func (u *CartUsecase) buildCartResponse(ctx context.Context, cart model.Cart) (CartResponse, error) {
	snap, err := loadCartLines(ctx, u.cartItemRepo, u.productRepo, cart)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	items := make([]CartItemResponse, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		items = append(items, CartItemResponse{
			ID:             l.Item.ID,
			ProductID:      l.Item.ProductID,
			Title:          l.Product.Title,
			Price:          l.Product.Price,
			ImageURL:       l.Product.ImageURL,
			Quantity:       l.Item.Quantity,
			Subtotal:       l.Subtotal(),
			StockAvailable: l.Product.StockQuantity,
			Available:      l.Found && l.Product.Purchasable(),
		})
	}

	return CartResponse{
		ID:          cart.ID,
		Items:       items,
		TotalAmount: snap.Total(),
		ItemCount:   len(items),
	}, nil
}
