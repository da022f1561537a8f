package handler

import (
	"net/http"

	"github.com/exclusiveng/server/internal/config"
	"github.com/exclusiveng/server/internal/middleware"
	"github.com/exclusiveng/server/internal/repository"
	"github.com/exclusiveng/server/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cartのHTTP
type CartHandler struct {
	uc *usecase.CartUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

type AddCartRequest struct {
	ProductID string `json:"productId" validate:"notblank"`
	Quantity  int64  `json:"quantity" validate:"gte=0"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity" validate:"gte=1"`
}

// /cart, /cart/:itemId を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/cart")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.GET("", h.getCart)
	g.POST("", h.addToCart)
	g.DELETE("", h.clearCart)
	g.PUT("/:itemId", h.updateItem)
	g.DELETE("/:itemId", h.deleteItem)
}

func (h *CartHandler) getCart(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.GetCart(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addToCart(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}
	var req AddCartRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.AddToCart(c.Request().Context(), userID, usecase.AddCartInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) updateItem(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}
	var req UpdateCartItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateCartItem(c.Request().Context(), userID, c.Param("itemId"), usecase.UpdateCartItemInput{
		Quantity: req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.DeleteCartItem(c.Request().Context(), userID, c.Param("itemId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) clearCart(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.ClearCart(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
