package handler

import (
	"net/http"
	"strconv"

	"github.com/exclusiveng/server/internal/config"
	"github.com/exclusiveng/server/internal/middleware"
	"github.com/exclusiveng/server/internal/repository"
	"github.com/exclusiveng/server/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /products の公開API
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

// POST /products/:id/rating
type RatingRequest struct {
	Rating *decimal.Decimal `json:"rating"`
}

// 公開商品のルートを登録。評価とお気に入りはログインが必要。
func (h *ProductHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	e.GET("/products", h.list)
	e.GET("/products/:id", h.detail)

	authed := []echo.MiddlewareFunc{middleware.AuthJWT(cfg), middleware.TokenVersionGuard(userRepo)}
	e.POST("/products/:id/rating", h.rate, authed...)
	e.POST("/products/:id/favorite", h.toggleFavorite, authed...)
}

func queryInt(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, usecase.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}

func queryDecimal(c echo.Context, name string) (*decimal.Decimal, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &d, nil
}

func queryBool(c echo.Context, name string) (*bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &b, nil
}

func (h *ProductHandler) list(c echo.Context) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return writeError(c, err)
	}
	minPrice, err := queryDecimal(c, "min_price")
	if err != nil {
		return writeError(c, err)
	}
	maxPrice, err := queryDecimal(c, "max_price")
	if err != nil {
		return writeError(c, err)
	}
	favorite, err := queryBool(c, "is_favorite")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.ListPublicProducts(c.Request().Context(), usecase.ListProductsInput{
		Page:     page,
		Limit:    limit,
		Q:        c.QueryParam("q"),
		Category: c.QueryParam("category"),
		MinPrice: minPrice,
		MaxPrice:   maxPrice,
		IsFavorite: favorite,
		Sort:       c.QueryParam("sort"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	p, err := h.uc.GetProductDetail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) rate(c echo.Context) error {
	var req RatingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}
	if req.Rating == nil {
		return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "Rating is required"))
	}

	out, err := h.uc.RateProduct(c.Request().Context(), c.Param("id"), *req.Rating)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) toggleFavorite(c echo.Context) error {
	out, err := h.uc.ToggleFavorite(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
