package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/exclusiveng/server/internal/config"
	"github.com/exclusiveng/server/internal/handler"
	"github.com/exclusiveng/server/internal/infra/db"
	"github.com/exclusiveng/server/internal/infra/events"
	"github.com/exclusiveng/server/internal/infra/memory"
	"github.com/exclusiveng/server/internal/infra/paystack"
	infraRepo "github.com/exclusiveng/server/internal/infra/repository"
	"github.com/exclusiveng/server/internal/logging"
	"github.com/exclusiveng/server/internal/metrics"
	"github.com/exclusiveng/server/internal/repository"
	"github.com/exclusiveng/server/internal/server"
	"github.com/exclusiveng/server/internal/usecase"
	"github.com/exclusiveng/server/internal/worker"
)

// ドライバごとのRepository一式
type stores struct {
	users     repository.UserRepository
	products  repository.ProductRepository
	orders    repository.OrderRepository
	carts     repository.CartRepository
	cartItems repository.CartItemRepository
	auditLogs repository.AuditLogRepository
	tx        repository.TransactionManager
	health    server.Pinger
	close     func() error
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store, data is lost on restart")
		s := memory.NewStore()
		return stores{
			users:     s.Users(),
			products:  s.Products(),
			orders:    s.Orders(),
			carts:     s.Carts(),
			cartItems: s.Carts(),
			auditLogs: s.AuditLogs(),
			tx:        s,
			health:    s,
			close:     func() error { return nil },
		}, nil
	}

	//DB接続
	gdb, err := db.Connect(ctx, cfg, log)
	if err != nil {
		return stores{}, err
	}
	if err := db.Migrate(ctx, gdb); err != nil {
		_ = db.Close(gdb)
		return stores{}, err
	}
	carts := infraRepo.NewCartGormRepository(gdb)
	return stores{
		users:     infraRepo.NewUserGormRepository(gdb),
		products:  infraRepo.NewProductGormRepository(gdb),
		orders:    infraRepo.NewOrderGormRepository(gdb),
		carts:     carts,
		cartItems: carts,
		auditLogs: infraRepo.NewAuditLogGormRepository(gdb),
		tx:        infraRepo.NewTxManagerGorm(gdb),
		health:    db.Pinger{DB: gdb},
		close:     func() error { return db.Close(gdb) },
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn("close store", slog.String("error", err.Error()))
		}
	}()

	m := metrics.New()
	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("close publisher", slog.String("error", err.Error()))
		}
	}()
	gateway := paystack.NewClient(cfg.PaystackAPIURL, cfg.PaystackSecretKey, cfg.PaystackTimeout)

	//usecaseに渡す部品
	ids := usecase.UUIDGenerator{}
	clock := usecase.SystemClock{}

	//Usecase生成
	settlement := usecase.NewSettlement(st.tx, clock, publisher, log, m)
	payments := usecase.NewPaymentUsecase(gateway, settlement, cfg.PaystackTimeout, log)
	authUC := usecase.NewAuthUsecase(st.users, usecase.NewBcryptPasswordHasher(12), usecase.NewJWTIssuer(cfg.JWTSecret, cfg.JWTAccessTTL), ids, clock)
	productUC := usecase.NewProductUsecase(st.products, st.tx, st.auditLogs, ids, clock)
	checkoutUC := usecase.NewCheckoutUsecase(usecase.CheckoutDeps{
		Carts:          st.carts,
		CartItems:      st.cartItems,
		Products:       st.products,
		Users:          st.users,
		Tx:             st.tx,
		Gateway:        gateway,
		IDs:            ids,
		Clock:          clock,
		Log:            log,
		Metrics:        m,
		CallbackURL:    cfg.FrontendURL + "/payment/callback",
		GatewayTimeout: cfg.PaystackTimeout,
	})

	//Handler生成
	handlers := server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		AdminUser:    handler.NewAdminUserHandler(authUC),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		Cart:         handler.NewCartHandler(usecase.NewCartUsecase(st.carts, st.cartItems, st.products)),
		Order: handler.NewOrderHandler(
			usecase.NewOrderUsecase(st.orders),
			checkoutUC,
			payments,
			usecase.NewAdminOrderUsecase(st.tx, st.orders, clock, publisher, log, m),
		),
		Webhook: handler.NewWebhookHandler(payments, gateway, log),
	}

	//放置PENDINGの掃除
	reconciler := worker.NewReconciler(st.orders, st.tx, clock, publisher, log, m, worker.ReconcilerConfig{
		TTL:      cfg.PendingOrderTTL,
		Interval: cfg.ReconcileInterval,
	})
	go reconciler.Run(ctx)

	//Server起動
	e := server.New(log, m)
	server.RegisterRoutes(e, cfg, st.users, handlers, st.health, m)

	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	return server.Start(ctx, e, addr, log)
}
