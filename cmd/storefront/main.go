package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/progress"
	"github.com/fjod/go_cart/storefront/internal/push"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/tracker"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

func main() {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.CartStorage == config.StorageRedis || cfg.OrderStatusChannel != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
	}

	var store storage.Store
	switch cfg.CartStorage {
	case config.StorageRedis:
		store = storage.NewRedisStore(redisClient, storage.RedisOptions{
			TTL:           cfg.CartTTL,
			MaxValueBytes: cfg.CartMaxBytes,
		})
		log.Info("cart storage: redis", zap.String("addr", cfg.RedisAddr))
	case config.StorageMongo:
		mongoDB, errMongo := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if errMongo != nil {
			log.Fatal("failed to connect to MongoDB", zap.Error(errMongo))
		}
		defer mongoDB.Client().Disconnect(context.Background())
		mongoStore := storage.NewMongoStore(mongoDB, cfg.CartMaxBytes)
		if errIdx := mongoStore.CreateIndexes(ctx); errIdx != nil {
			log.Warn("failed to create cart snapshot indexes", zap.Error(errIdx))
		}
		store = mongoStore
		log.Info("cart storage: mongo", zap.String("db", cfg.MongoDBName))
	default:
		memStore := storage.NewMemoryStore(cfg.CartMaxBytes, storage.WithMemoryTTL(cfg.CartTTL))
		defer memStore.Close()
		store = memStore
		log.Info("cart storage: memory", zap.Int("max_bytes", cfg.CartMaxBytes))
	}

	catalogRepo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatal("failed to open catalog", zap.Error(err))
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(); err != nil {
		log.Fatal("failed to migrate catalog", zap.Error(err))
	}
	menu := catalog.New(catalogRepo, cfg.CatalogTTL, log.Named("catalog"))

	orderRepo, err := orders.NewRepository(&orders.Credentials{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
	})
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(); err != nil {
		log.Fatal("failed to migrate orders", zap.Error(err))
	}

	hub := push.NewHub()

	if len(cfg.KafkaBrokers) > 0 {
		feed := push.NewKafkaFeed(hub, log.Named("kafka-feed"), push.KafkaFeedConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.OrderStatusTopic,
			GroupID: cfg.KafkaGroupID,
		})
		defer feed.Close()
		go feed.Run(ctx)
		log.Info("order status feed: kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.OrderStatusTopic))
	}
	if cfg.OrderStatusChannel != "" {
		feed := push.NewRedisFeed(hub, redisClient, cfg.OrderStatusChannel, log.Named("redis-feed"))
		go func() {
			if err := feed.Run(ctx); err != nil {
				log.Error("redis order status feed stopped", zap.Error(err))
			}
		}()
		log.Info("order status feed: redis", zap.String("channel", cfg.OrderStatusChannel))
	}

	estimator := progress.New(cfg.DefaultPrepMinutes)
	tr := tracker.New(estimator,
		tracker.WithInterval(cfg.TickInterval),
		tracker.WithLogger(log.Named("tracker")),
	)

	sessions := h.NewSessions(store, menu, cfg.TaxRate, cfg.SessionIdleTimeout, log.Named("cart"))
	defer sessions.Close()

	router := h.NewRouter(
		h.RouterConfig{
			RequestTimeout:     cfg.RequestTimeout,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		},
		log.Named("http"),
		h.NewMenuHandler(menu, cfg.RequestTimeout),
		h.NewCartHandler(sessions, menu, cfg.RequestTimeout),
		h.NewOrdersHandler(orderRepo, estimator, tr, hub, cfg.RequestTimeout, log.Named("orders")),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, "storefront"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No WriteTimeout: progress event streams stay open until the order is done.
		IdleTimeout: 60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("storefront starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	log.Info("server exited")
}
