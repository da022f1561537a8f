package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/exclusiveng/server/internal/payment"
)

// PaymentUsecase はゲートウェイで照会してから決済確定を呼ぶ。
// フロントのリダイレクト（/orders/verify）とWebhookの両方から使う。
type PaymentUsecase struct {
	gateway    payment.Gateway
	settlement *Settlement
	timeout    time.Duration
	log        *slog.Logger
}

func NewPaymentUsecase(gateway payment.Gateway, settlement *Settlement, timeout time.Duration, log *slog.Logger) *PaymentUsecase {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &PaymentUsecase{gateway: gateway, settlement: settlement, timeout: timeout, log: log}
}

type VerifyPaymentOutput struct {
	Message     string `json:"message"`
	OrderID     string `json:"orderId"`
	AlreadyPaid bool   `json:"alreadyPaid"`
}

func (u *PaymentUsecase) VerifyPayment(ctx context.Context, reference string) (VerifyPaymentOutput, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "reference is required")
	}

	gctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	vr, err := u.gateway.Verify(gctx, reference)
	if err != nil {
		u.log.Warn("payment verify failed", slog.String("reference", reference), slog.String("error", err.Error()))
		var gwErr *payment.GatewayError
		if errors.As(err, &gwErr) {
			return VerifyPaymentOutput{}, err
		}
		return VerifyPaymentOutput{}, &payment.GatewayError{Op: "verify", Message: err.Error(), Err: err}
	}
	if !vr.Success {
		return VerifyPaymentOutput{}, fmt.Errorf("%w: status %q", ErrPaymentNotSuccessful, vr.Status)
	}

	settleRef := vr.Reference
	if settleRef == "" {
		settleRef = reference
	}
	orderID := vr.OrderID
	if orderID == "" {
		orderID = settleRef
	}

	res, err := u.settlement.Settle(ctx, SettleInput{
		OrderID:     orderID,
		Reference:   settleRef,
		AmountMinor: vr.AmountMinor,
	})
	if err != nil {
		return VerifyPaymentOutput{}, err
	}

	return VerifyPaymentOutput{
		Message:     "Payment verified and order processed successfully",
		OrderID:     res.Order.ID,
		AlreadyPaid: res.AlreadyPaid,
	}, nil
}
