package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jinto-ag/emart/internal/audit"
	"github.com/jinto-ag/emart/internal/cache"
	"github.com/jinto-ag/emart/internal/catalog"
	"github.com/jinto-ag/emart/internal/config"
	"github.com/jinto-ag/emart/internal/consumer"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/jinto-ag/emart/internal/gateway"
	healthgrpc "github.com/jinto-ag/emart/internal/grpc"
	h "github.com/jinto-ag/emart/internal/http"
	"github.com/jinto-ag/emart/internal/publisher"
	"github.com/jinto-ag/emart/internal/repository"
	"github.com/jinto-ag/emart/internal/service"
	"github.com/jinto-ag/emart/pkg/logger"
)

func main() {
	configPath := flag.String("config", ".env", "optional env file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New("storefront", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Orders database
	repo, err := repository.Open(startCtx, cfg.PostgresDSN())
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		return err
	}
	log.Info().Msg("database migrations completed")

	// Product catalog
	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()
	if err := rdb.Ping(startCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	redisCache := cache.NewRedisCache(rdb)

	mongoDB, err := audit.ConnectMongoDB(startCtx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return err
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		_ = mongoDB.Client().Disconnect(dctx)
	}()
	journal := audit.NewJournal(mongoDB)
	if err := journal.CreateIndexes(startCtx); err != nil {
		log.Warn().Err(err).Msg("failed to create journal indexes")
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.RazorpayBaseURL,
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		Timeout:   cfg.GatewayTimeout,
	}, log)

	defaultCurrency, err := domain.ParseCurrency(cfg.DefaultCurrency)
	if err != nil {
		return fmt.Errorf("DEFAULT_CURRENCY: %w", err)
	}

	cartService := service.NewCartService(repo, products, redisCache, redisCache, defaultCurrency, log)
	checkoutService := service.NewCheckoutService(cartService, repo, gw, service.CheckoutConfig{
		Delivery:    service.FlatDeliveryCharge(cfg.DeliveryChargeAmount()),
		Adjust:      service.NoAdjustment,
		CallbackURL: cfg.PaymentCallbackURL,
	}, log)
	paymentService := service.NewPaymentService(repo, repo, gw, journal, log)
	orderService := service.NewOrderService(repo, repo, journal, log)

	redisPing := h.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	mongoPing := h.PingFunc(func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) })

	router := h.NewRouter(h.Handlers{
		Cart:     h.NewCartHandler(cartService, cfg.RequestTimeout, log),
		Checkout: h.NewCheckoutHandler(checkoutService, paymentService, cfg.RequestTimeout, log),
		Orders:   h.NewOrdersHandler(orderService, cfg.RequestTimeout, log),
		Products: h.NewProductHandler(products, cfg.RequestTimeout, log),
		Checks: map[string]h.Pinger{
			"postgres": repo,
			"catalog":  products,
			"redis":    redisPing,
			"mongo":    mongoPing,
		},
	}, h.RouterConfig{
		JWTSecret:      []byte(cfg.JWTSecret),
		RequestTimeout: cfg.RequestTimeout,
		Log:            log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	healthServer := healthgrpc.NewHealthServer(map[string]healthgrpc.Pinger{
		"postgres": repo,
		"catalog":  products,
		"redis":    redisPing,
	}, log)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	errCh := make(chan error, 2)
	workers, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	go healthServer.Watch(workers, 10*time.Second)
	go func() {
		if err := healthServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var (
		poller      *publisher.OutboxPoller
		invalidator *consumer.CartInvalidator
	)
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		poller = publisher.NewOutboxPoller(repo, publisher.NewKafkaWriter(cfg.OutboxTopic, brokers...), log)
		go poller.Run(workers)
		invalidator = consumer.NewCartInvalidator(consumer.NewKafkaReader(cfg.OutboxTopic, brokers...), redisCache, log)
		go invalidator.Run(workers)
		log.Info().Strs("brokers", brokers).Str("topic", cfg.OutboxTopic).Msg("outbox poller started")
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, outbox events stay in the database")
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down storefront")
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
	}

	return shutdown(srv, healthServer, poller, invalidator, stopWorkers, cfg.ShutdownTimeout, log)
}

func shutdown(
	srv *http.Server,
	healthServer *healthgrpc.HealthServer,
	poller *publisher.OutboxPoller,
	invalidator *consumer.CartInvalidator,
	stopWorkers context.CancelFunc,
	timeout time.Duration,
	log zerolog.Logger,
) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	healthServer.Shutdown()
	err := srv.Shutdown(ctx)
	stopWorkers()
	if poller != nil {
		if errClose := poller.Close(); errClose != nil {
			log.Error().Err(errClose).Msg("failed to close kafka writer")
		}
	}
	if invalidator != nil {
		if errClose := invalidator.Close(); errClose != nil {
			log.Error().Err(errClose).Msg("failed to close kafka reader")
		}
	}
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("storefront stopped")
	return nil
}
