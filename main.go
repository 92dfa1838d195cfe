package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appInventory "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	appNotification "github.com/Zhima-Mochi/minishop-checkout/internal/application/notification"
	appOrder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	appPayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/pricing"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/worker"
)

const (
	shutdownTimeout = 10 * time.Second
	amqpDialRetries = 5
	amqpDialBackoff = 2 * time.Second
)

type stores struct {
	products  catalog.Repository
	stock     dominv.Store
	orders    domorder.Repository
	checkouts dompay.CheckoutRepository
	close     func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := zaplogger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger.Zap())

	systemLogger := logger.With(observability.F("component", "main"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Endpoint:       cfg.OtelEndpoint,
		URLPath:        cfg.OtelURLPath,
		Insecure:       cfg.OtelInsecure,
		Headers:        cfg.OtelHeaders(),
	})
	if err != nil {
		systemLogger.Error("tracing_setup_failed", observability.F("error", err))
		os.Exit(1)
	}

	counters, histograms := prometrics.Standard(prometrics.New("", ""))
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), logger, counters, histograms)

	st, err := openStores(ctx, cfg)
	if err != nil {
		systemLogger.Error("store_open_failed", observability.F("driver", cfg.StoreDriver), observability.F("error", err))
		os.Exit(1)
	}
	if err := seedCatalog(ctx, cfg.CatalogSeedFile, st.products); err != nil {
		systemLogger.Error("catalog_seed_failed", observability.F("file", cfg.CatalogSeedFile), observability.F("error", err))
		os.Exit(1)
	}

	notifier, err := openNotifier(cfg, logger)
	if err != nil {
		systemLogger.Error("notifier_open_failed", observability.F("driver", cfg.NotifyDriver), observability.F("error", err))
		os.Exit(1)
	}

	// In-process event bus; order events fan out to the notification worker.
	bus := outbox.NewBus(logger)
	appNotification.New(notifier, tel).Register(bus, workerpresentation.EventMiddleware(logger, tel))
	bus.Start(context.Background())

	ids := id.UUID{}
	engine := appInventory.NewEngine(st.products, st.stock, tel)
	normalizer := pricing.NewNormalizer(st.products, pricing.Fees{
		Shipping:     cfg.ShippingFee,
		GiftWrapUnit: cfg.GiftWrapUnitFee,
		GiftWrapFlat: cfg.GiftWrapFlatFee,
	}, tel)
	placer := appOrder.NewPlacer(normalizer, engine, st.orders, ids, tel)
	gw := gateway.New(gateway.Config{
		BaseURL:   cfg.GatewayBaseURL,
		KeyID:     cfg.GatewayKeyID,
		KeySecret: cfg.GatewayKeySecret,
	}, nil)

	handler := httppresentation.NewHandler(httppresentation.UseCases{
		CreateOrder:   appOrder.NewCreateOrderUseCase(placer, bus, tel),
		GetOrder:      appOrder.NewGetOrderUseCase(st.orders, tel),
		CancelOrder:   appOrder.NewCancelOrderUseCase(st.orders, engine, bus, tel),
		UpdateStatus:  appOrder.NewUpdateStatusUseCase(st.orders, engine, bus, tel),
		DeleteOrder:   appOrder.NewDeleteOrderUseCase(st.orders, tel),
		OpenCheckout:  appPayment.NewOpenCheckoutUseCase(normalizer, gw, st.checkouts, ids, cfg.Currency, cfg.CheckoutTTL, tel),
		VerifyPayment: appPayment.NewVerifyPaymentUseCase(cfg.GatewayKeySecret, gw, st.checkouts, st.orders, placer, bus, tel),
	}, logger, tel)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("store", cfg.StoreDriver),
			observability.F("notifier", cfg.NotifyDriver),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error", observability.F("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		systemLogger.Warn("event_bus_stop_failed", observability.F("error", err))
	}
	if err := notifier.Close(); err != nil {
		systemLogger.Warn("notifier_close_failed", observability.F("error", err))
	}
	if err := st.close(); err != nil {
		systemLogger.Warn("store_close_failed", observability.F("error", err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		systemLogger.Warn("tracing_shutdown_failed", observability.F("error", err))
	}
}
