package server

import (
	"context"
	"net/http"
	"time"

	"github.com/exclusiveng/server/internal/config"
	"github.com/exclusiveng/server/internal/handler"
	"github.com/exclusiveng/server/internal/metrics"
	"github.com/exclusiveng/server/internal/repository"

	"github.com/labstack/echo/v4"
)

// Handlers はルーティング対象のhandler一式
type Handlers struct {
	Auth         *handler.AuthHandler
	AdminUser    *handler.AdminUserHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Cart         *handler.CartHandler
	Order        *handler.OrderHandler
	Webhook      *handler.WebhookHandler
}

// ストアの疎通確認
type Pinger interface {
	Ping(ctx context.Context) error
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers, store Pinger, m *metrics.Metrics) {
	e.GET("/health", health(store))
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	h.Auth.RegisterRoutes(e, cfg, userRepo)
	h.AdminUser.RegisterRoutes(e, cfg, userRepo)
	h.Product.RegisterRoutes(e, cfg, userRepo)
	h.AdminProduct.RegisterRoutes(e, cfg, userRepo)
	h.Cart.RegisterRoutes(e, cfg, userRepo)
	h.Order.RegisterRoutes(e, cfg, userRepo)
	h.Webhook.RegisterRoutes(e)
}

func health(store Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
