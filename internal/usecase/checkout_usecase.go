package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/exclusiveng/server/internal/domain/model"
	"github.com/exclusiveng/server/internal/metrics"
	"github.com/exclusiveng/server/internal/payment"
	repo "github.com/exclusiveng/server/internal/repository"
)

type CheckoutDeps struct {
	Carts     repo.CartRepository
	CartItems repo.CartItemRepository
	Products  repo.ProductRepository
	Users     repo.UserRepository
	Tx        repo.TransactionManager
	Gateway   payment.Gateway
	IDs       IDGenerator
	Clock     Clock
	Log       *slog.Logger
	Metrics   *metrics.Metrics

	// 決済後にフロントへ戻すURL
	CallbackURL    string
	GatewayTimeout time.Duration
}

type CheckoutUsecase struct {
	d CheckoutDeps
}

func NewCheckoutUsecase(d CheckoutDeps) *CheckoutUsecase {
	if d.GatewayTimeout <= 0 {
		d.GatewayTimeout = 15 * time.Second
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &CheckoutUsecase{d: d}
}

type CheckoutInput struct {
	ShippingAddress model.ShippingAddress
}

type CheckoutOutput struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
	OrderID          string `json:"orderId"`
}

// Checkout はカートからPENDING注文を作り、ゲートウェイで決済を開始する。
// 在庫はここでは減らさない（決済確定時に減らす）。
func (u *CheckoutUsecase) Checkout(ctx context.Context, userID string, in CheckoutInput) (CheckoutOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	// 中身は見ない。空でないオブジェクトであることだけ確認する
	if len(in.ShippingAddress) == 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "shippingAddress is required")
	}

	user, err := u.d.Users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err != nil {
		return CheckoutOutput{}, err
	}

	snap, err := LoadCartSnapshot(ctx, u.d.Carts, u.d.CartItems, u.d.Products, userID)
	if err != nil {
		return CheckoutOutput{}, err
	}
	if snap.Empty() {
		u.d.Metrics.CheckoutOutcome("empty_cart")
		return CheckoutOutput{}, ErrEmptyCart
	}

	//参考チェック
	if err := snap.CheckAvailability(); err != nil {
		u.d.Metrics.CheckoutOutcome("unavailable")
		return CheckoutOutput{}, err
	}

	now := u.d.Clock.Now()
	order := model.Order{
		ID:              u.d.IDs.NewID(),
		UserID:          userID,
		Status:          model.OrderStatusPending,
		TotalAmount:     snap.Total(),
		ShippingAddress: in.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	//スナップショット（タイトル・単価）
	for _, l := range snap.Lines {
		order.Items = append(order.Items, model.OrderItem{
			ID:              u.d.IDs.NewID(),
			OrderID:         order.ID,
			ProductID:       l.Product.ID,
			ProductTitle:    l.Product.Title,
			PriceAtPurchase: l.Product.Price,
			Quantity:        l.Item.Quantity,
			CreatedAt:       now,
		})
	}

	//注文と明細は同一トランザクション
	if err := u.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Orders().Create(ctx, order)
	}); err != nil {
		return CheckoutOutput{}, err
	}

	log := u.d.Log.With(slog.String("order_id", order.ID), slog.String("user_id", userID))

	gctx, cancel := context.WithTimeout(ctx, u.d.GatewayTimeout)
	defer cancel()
	res, err := u.d.Gateway.Initialize(gctx, payment.InitializeRequest{
		Email:       user.Email,
		AmountMinor: order.AmountMinor(),
		Reference:   order.ID,
		CallbackURL: u.d.CallbackURL,
		Metadata:    map[string]string{"order_id": order.ID},
	})
	if err != nil {
		// 注文はPENDINGのまま残る（リコンサイラが後で取り消す）
		log.Warn("checkout gateway initialize failed", slog.String("error", err.Error()))
		u.d.Metrics.CheckoutOutcome("gateway_error")
		var gwErr *payment.GatewayError
		if errors.As(err, &gwErr) {
			return CheckoutOutput{}, err
		}
		return CheckoutOutput{}, &payment.GatewayError{Op: "initialize", Message: err.Error(), Err: err}
	}

	reference := res.Reference
	if reference == "" {
		reference = order.ID
	}
	log.Info("checkout initialized",
		slog.String("reference", reference),
		slog.String("total", order.TotalAmount.StringFixed(2)))
	u.d.Metrics.CheckoutOutcome("initialized")

	return CheckoutOutput{
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		Reference:        reference,
		OrderID:          order.ID,
	}, nil
}
