package usecase

import (
	"context"
	"errors"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"

	"github.com/shopspring/decimal"
)

// カート明細と、読み込み時点の商品
type CartLine struct {
	Item    model.CartItem
	Product model.Product
	// 商品が存在し、論理削除されていない
	Found bool
}

func (l CartLine) Subtotal() decimal.Decimal {
	if !l.Found {
		return decimal.Zero
	}
	return l.Product.Price.Mul(decimal.NewFromInt(l.Item.Quantity))
}

// CartSnapshot はロックなしで読んだカートの写し。
// 在庫チェックは参考値で、確定は決済時のロック付きチェックで行う。
type CartSnapshot struct {
	Cart  model.Cart
	Lines []CartLine
}

func (s CartSnapshot) Empty() bool {
	return len(s.Lines) == 0
}

// 購入可能な行の合計（小数第2位で丸め）
func (s CartSnapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.Subtotal())
	}
	return model.RoundMoney(total)
}

// CheckAvailability は最初に見つかった購入不可・在庫不足の行をエラーで返す
func (s CartSnapshot) CheckAvailability() error {
	for _, l := range s.Lines {
		if !l.Found || !l.Product.Purchasable() {
			return &ProductUnavailableError{ProductID: l.Item.ProductID, ProductTitle: l.Product.Title}
		}
		if l.Item.Quantity > l.Product.StockQuantity {
			return &InsufficientStockError{
				ProductID:    l.Product.ID,
				ProductTitle: l.Product.Title,
				Requested:    l.Item.Quantity,
				Available:    l.Product.StockQuantity,
			}
		}
	}
	return nil
}

// LoadCartSnapshot はユーザーのカートを読む。カートが無ければ空のスナップショット。
func LoadCartSnapshot(
	ctx context.Context,
	carts repo.CartRepository,
	items repo.CartItemRepository,
	products repo.ProductRepository,
	userID string,
) (CartSnapshot, error) {
	cart, err := carts.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartSnapshot{}, nil
	}
	if err != nil {
		return CartSnapshot{}, err
	}
	return loadCartLines(ctx, items, products, cart)
}

func loadCartLines(
	ctx context.Context,
	items repo.CartItemRepository,
	products repo.ProductRepository,
	cart model.Cart,
) (CartSnapshot, error) {
	cartItems, err := items.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartSnapshot{}, err
	}

	snap := CartSnapshot{Cart: cart, Lines: make([]CartLine, 0, len(cartItems))}
	for _, it := range cartItems {
		line := CartLine{Item: it}
		p, err := products.FindByID(ctx, it.ProductID)
		switch {
		case err == nil:
			line.Product = p
			line.Found = true
		case errors.Is(err, repo.ErrNotFound):
			// 削除済み商品は行として残す（チェックアウトで弾く）
		default:
			return CartSnapshot{}, err
		}
		snap.Lines = append(snap.Lines, line)
	}
	return snap, nil
}
