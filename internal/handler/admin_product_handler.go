package handler

import (
	"net/http"
	"strings"

	"github.com/exclusiveng/server/internal/config"
	"github.com/exclusiveng/server/internal/domain/model"
	"github.com/exclusiveng/server/internal/middleware"
	"github.com/exclusiveng/server/internal/repository"
	"github.com/exclusiveng/server/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// 商品の作成・更新
type ProductRequest struct {
	Title       string          `json:"title" validate:"notblank,max=255"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url" validate:"omitempty,max=500"`
	Category    string          `json:"category" validate:"omitempty,max=100"`
	Stock       int64           `json:"stock_quantity" validate:"gte=0"`
	IsAvailable *bool           `json:"is_available"`
	IsFavorite  *bool           `json:"is_favorite"`
	// ["a","b"] でも "a, b" でもよい
	Tags model.Tags `json:"tags"`
}

func (r ProductRequest) toInput() usecase.AdminProductInput {
	available := true
	if r.IsAvailable != nil {
		available = *r.IsAvailable
	}
	return usecase.AdminProductInput{
		Title:         r.Title,
		Description:   r.Description,
		Price:         r.Price,
		ImageURL:      r.ImageURL,
		Category:      r.Category,
		StockQuantity: r.Stock,
		IsAvailable:   available,
		IsFavorite:    r.IsFavorite,
		Tags:          r.Tags,
	}
}

// 在庫更新の入力
type InventoryUpdateRequest struct {
	Stock  *int64 `json:"stock" validate:"required,gte=0"`
	Reason string `json:"reason" validate:"notblank,max=255"`
}

// /admin/products と /admin/audit-logs をまとめる
type AdminProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase) *AdminProductHandler {
	return &AdminProductHandler{uc: uc}
}

// adminを登録
func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")

	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)
	admin.PATCH("/products/:id/stock", h.updateInventory)
	admin.GET("/products/:id/adjustments", h.listAdjustments)
	admin.GET("/audit-logs", h.listAuditLogs)
}

func (h *AdminProductHandler) createProduct(c echo.Context) error {
	adminID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}
	var req ProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	p, err := h.uc.AdminCreateProduct(c.Request().Context(), adminID, req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *AdminProductHandler) updateProduct(c echo.Context) error {
	adminID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}
	var req ProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	p, err := h.uc.AdminUpdateProduct(c.Request().Context(), adminID, c.Param("id"), req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AdminProductHandler) deleteProduct(c echo.Context) error {
	adminID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.uc.AdminDeleteProduct(c.Request().Context(), adminID, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, usecase.SuccessResponse{Message: "Product removed"})
}

func (h *AdminProductHandler) updateInventory(c echo.Context) error {
	adminID, err := getUserIDFromContext(c)
	if err != nil {
		return writeError(c, err)
	}
	var req InventoryUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	p, err := h.uc.AdminUpdateInventory(c.Request().Context(), adminID, c.Param("id"), *req.Stock, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AdminProductHandler) listAdjustments(c echo.Context) error {
	out, err := h.uc.AdminListAdjustments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) listAuditLogs(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return writeError(c, err)
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return writeError(c, err)
	}

	f := repository.AuditLogFilter{Limit: limit, Offset: offset}
	// action=UPDATE_STOCK,UPDATE_ORDER_STATUS のように複数指定できる
	for _, v := range strings.Split(c.QueryParam("action"), ",") {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		a := model.AuditAction(v)
		if !a.Valid() {
			return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid action"))
		}
		f.Actions = append(f.Actions, a)
	}
	if v := strings.ToLower(strings.TrimSpace(c.QueryParam("resource_type"))); v != "" {
		rt := model.AuditResourceType(v)
		if !rt.Valid() {
			return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid resource_type"))
		}
		f.ResourceType = &rt
	}
	if v := strings.TrimSpace(c.QueryParam("resource_id")); v != "" {
		f.ResourceID = &v
	}
	if v := strings.TrimSpace(c.QueryParam("actor_user_id")); v != "" {
		f.ActorUserID = &v
	}
	if v := c.QueryParam("from"); v != "" {
		t, ok := usecase.ParseDateTimeRFC3339(v)
		if !ok {
			return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid from"))
		}
		f.CreatedFrom = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, ok := usecase.ParseDateTimeRFC3339(v)
		if !ok {
			return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid to"))
		}
		f.CreatedTo = t
	}

	out, err := h.uc.AdminListAuditLogs(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
