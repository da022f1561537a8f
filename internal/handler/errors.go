package handler

import (
	"errors"
	"net/http"

	"github.com/exclusiveng/server/internal/middleware"
	"github.com/exclusiveng/server/internal/payment"
	"github.com/exclusiveng/server/internal/usecase"
	"github.com/exclusiveng/server/internal/validator"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError はusecaseのエラーをステータスコードに変換する
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		// RequestLoggerに原因を残す
		c.Set(middleware.CtxErrorKey, err.Error())
	}
	return c.JSON(status, ErrorResponse{Error: msg})
}

func statusFor(err error) (int, string) {
	if he, ok := usecase.AsHTTPError(err); ok {
		return he.Status, he.Message
	}

	var ve *validator.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error()
	}

	// 決済確定の失敗はチェックアウトの在庫エラーより先に見る
	var se *usecase.SettlementError
	if errors.As(err, &se) {
		switch {
		case se.Kind == usecase.SettlementBusiness:
			return http.StatusConflict, businessMessage(se.Err)
		case se.Retryable:
			return http.StatusServiceUnavailable, "Service temporarily unavailable, please retry"
		default:
			return http.StatusInternalServerError, "internal error"
		}
	}

	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) {
		if gwErr.Op == "initialize" {
			return http.StatusBadGateway, "Error initializing checkout"
		}
		return http.StatusBadGateway, "Error verifying payment"
	}

	var stockErr *usecase.InsufficientStockError
	if errors.As(err, &stockErr) {
		return http.StatusBadRequest, stockErr.Error()
	}
	var unavailable *usecase.ProductUnavailableError
	if errors.As(err, &unavailable) {
		return http.StatusBadRequest, unavailable.Error()
	}

	switch {
	case errors.Is(err, usecase.ErrEmptyCart):
		return http.StatusBadRequest, "Cart is empty"
	case errors.Is(err, usecase.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, usecase.ErrPaymentNotSuccessful):
		return http.StatusBadRequest, "Payment verification failed"
	case errors.Is(err, usecase.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	}

	//500
	return http.StatusInternalServerError, "internal error"
}

func businessMessage(err error) string {
	var stockErr *usecase.InsufficientStockError
	var unavailable *usecase.ProductUnavailableError
	switch {
	case errors.As(err, &stockErr):
		return stockErr.Error()
	case errors.As(err, &unavailable):
		return unavailable.Error()
	case errors.Is(err, usecase.ErrAmountMismatch):
		return "Paid amount does not match order total"
	case errors.Is(err, usecase.ErrOrderNotSettleable):
		return "Order cannot be settled in its current status"
	}
	return "Order could not be settled"
}

// AuthJWTが入れたuser_idを取り出す
func getUserIDFromContext(c echo.Context) (string, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return "", usecase.ErrUnauthorized
	}
	return id, nil
}

// bind + validate
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}
