package handler

import (
	"net/http"

	"github.com/exclusiveng/server/internal/config"
	"github.com/exclusiveng/server/internal/domain/model"
	"github.com/exclusiveng/server/internal/middleware"
	"github.com/exclusiveng/server/internal/repository"
	"github.com/exclusiveng/server/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /orders（利用者）と /orders/all, /orders/:id/status（管理者）
type OrderHandler struct {
	orders   *usecase.OrderUsecase
	checkout *usecase.CheckoutUsecase
	payments *usecase.PaymentUsecase
	admin    *usecase.AdminOrderUsecase
}

func NewOrderHandler(
	orders *usecase.OrderUsecase,
	checkout *usecase.CheckoutUsecase,
	payments *usecase.PaymentUsecase,
	admin *usecase.AdminOrderUsecase,
) *OrderHandler {
	return &OrderHandler{orders: orders, checkout: checkout, payments: payments, admin: admin}
}

type CheckoutRequest struct {
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
}

type VerifyPaymentRequest struct {
	Reference string `json:"reference" validate:"notblank,max=255"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid processing shipped delivered cancelled"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("/checkout", h.checkoutOrder)
	g.POST("/verify", h.verify)
	g.GET("", h.list)
	g.GET("/all", h.listAll, middleware.AdminRoleGuard())
	g.GET("/:id", h.detail)
	g.PUT("/:id/status", h.updateStatus, middleware.AdminRoleGuard())
}

func (h *OrderHandler) checkoutOrder(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}
	var req CheckoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.checkout.Checkout(c.Request().Context(), userID, usecase.CheckoutInput{
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// フロントのリダイレクト後に呼ばれる
func (h *OrderHandler) verify(c echo.Context) error {
	var req VerifyPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.payments.VerifyPayment(c.Request().Context(), req.Reference)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, usecase.SuccessResponse{Message: out.Message})
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}
	page, err := queryInt(c, "page")
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.orders.ListMyOrders(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.orders.GetMyOrder(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) listAll(c echo.Context) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return writeError(c, err)
	}

	f := repository.AdminOrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: c.QueryParam("status"),
	}
	if v := c.QueryParam("user_id"); v != "" {
		f.UserID = &v
	}
	if v := c.QueryParam("from"); v != "" {
		t, ok := usecase.ParseDateTimeRFC3339(v)
		if !ok {
			return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid from"))
		}
		f.From = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, ok := usecase.ParseDateTimeRFC3339(v)
		if !ok {
			return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid to"))
		}
		f.To = t
	}

	out, err := h.admin.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) updateStatus(c echo.Context) error {
	adminID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}
	var req UpdateOrderStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.admin.UpdateStatus(c.Request().Context(), adminID, c.Param("id"), usecase.AdminUpdateOrderStatusInput{
		Status: req.Status,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
