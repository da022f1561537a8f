package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/exclusiveng/server/internal/metrics"
	"github.com/exclusiveng/server/internal/middleware"
	"github.com/exclusiveng/server/internal/validator"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// New は共通ミドルウェアを載せたechoを返す
func New(log *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Metrics(m))
	e.Use(echomw.BodyLimit("1M"))
	return e
}

// Start はctxがキャンセルされるまで待ち受け、その後graceful shutdownする
func Start(ctx context.Context, e *echo.Echo, addr string, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("http server shutting down")
	return e.Shutdown(shutdownCtx)
}
