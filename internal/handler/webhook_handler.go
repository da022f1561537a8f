package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/exclusiveng/server/internal/usecase"

	"github.com/labstack/echo/v4"
)

const paystackSignatureHeader = "X-Paystack-Signature"

// Webhook本文の署名を検証する
type SignatureVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

// POST /webhooks/paystack
// 本文は信用せず、referenceでゲートウェイに再照会してから確定する。
type WebhookHandler struct {
	payments *usecase.PaymentUsecase
	verifier SignatureVerifier
	log      *slog.Logger
}

func NewWebhookHandler(payments *usecase.PaymentUsecase, verifier SignatureVerifier, log *slog.Logger) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{payments: payments, verifier: verifier, log: log}
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/paystack", h.paystack)
}

func (h *WebhookHandler) paystack(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if !h.verifier.VerifyWebhookSignature(body, c.Request().Header.Get(paystackSignatureHeader)) {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
	}

	var ev paystackEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	log := h.log.With(slog.String("event", ev.Event), slog.String("reference", ev.Data.Reference))
	// charge.success以外は受け取ったことだけ返す
	if ev.Event != "charge.success" || ev.Data.Reference == "" {
		log.Info("webhook ignored")
		return c.JSON(http.StatusOK, usecase.SuccessResponse{Message: "ignored"})
	}

	out, err := h.payments.VerifyPayment(c.Request().Context(), ev.Data.Reference)
	if err != nil {
		// 業務エラーは再送されても結果が同じなので200で止める
		var se *usecase.SettlementError
		if errors.Is(err, usecase.ErrOrderNotFound) ||
			errors.Is(err, usecase.ErrPaymentNotSuccessful) ||
			(errors.As(err, &se) && se.Kind == usecase.SettlementBusiness) {
			log.Warn("webhook settlement rejected", slog.String("error", err.Error()))
			return c.JSON(http.StatusOK, usecase.SuccessResponse{Message: "ignored"})
		}
		log.Error("webhook settlement failed", slog.String("error", err.Error()))
		return writeError(c, err)
	}

	log.Info("webhook settled", slog.String("order_id", out.OrderID), slog.Bool("already_paid", out.AlreadyPaid))
	return c.JSON(http.StatusOK, usecase.SuccessResponse{Message: out.Message})
}
