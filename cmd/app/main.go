package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asquebay/mini-storefront/internal/catalog"
	"github.com/asquebay/mini-storefront/internal/config"
	"github.com/asquebay/mini-storefront/internal/lib/logger"
	"github.com/asquebay/mini-storefront/internal/repository/memory"
	"github.com/asquebay/mini-storefront/internal/repository/postgres"
	redisrepo "github.com/asquebay/mini-storefront/internal/repository/redis"
	"github.com/asquebay/mini-storefront/internal/service"
	httptransport "github.com/asquebay/mini-storefront/internal/transport/http"
	"github.com/asquebay/mini-storefront/internal/transport/kafka"
)

func main() {
	// 1. Инициализация конфигурации
	cfg := config.MustLoad(config.PathFromEnv())

	// 2. Инициализация логгера
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	log.Info("starting mini-storefront",
		slog.String("log_level", cfg.Logger.Level),
		slog.String("storage", cfg.Storage.Driver),
	)

	// 3. Инициализация хранилища корзины
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	kv, closeKV, err := newKV(initCtx, cfg, log)
	initCancel()
	if err != nil {
		log.Error("failed to init cart storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeKV()

	// 4. Публикация событий корзины (если кафка настроена)
	var events service.EventPublisher
	var producer *kafka.EventProducer
	if cfg.Kafka.Enabled() {
		producer = kafka.NewEventProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		events = producer
		log.Info("cart events will be published", slog.String("topic", cfg.Kafka.EventsTopic))
	}

	// 5. Инициализация сервисного слоя и клиента каталога
	cartSvc := service.NewCartService(kv, cfg.Storage.CartKey, events, log)
	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, log)

	// 6. Инициализация и запуск Kafka-консьюмера команд
	ctx, cancel := context.WithCancel(context.Background())
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled() {
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.CommandsTopic, cfg.Kafka.GroupID, cartSvc, log)
		go consumer.Run(ctx)
	}

	// 7. Инициализация и запуск HTTP-сервера
	handler := httptransport.NewHandler(catalogClient, cartSvc, log)
	httpServer := httptransport.NewServer(cfg.HTTPServer, handler)
	log.Info("starting http server", slog.String("port", httpServer.Addr()))

	go func() {
		if err := httpServer.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed to start", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// 8. Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down application")
	cancel() // сигнал для консьюмера на завершение

	// создаем контекст с таймаутом для шатдауна сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", slog.String("error", err.Error()))
	}

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Error("error closing kafka consumer", slog.String("error", err.Error()))
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("error closing kafka producer", slog.String("error", err.Error()))
		}
	}

	log.Info("application stopped")
}

// newKV поднимает выбранный в конфиге бэкенд и возвращает функцию для его закрытия
func newKV(ctx context.Context, cfg *config.Config, log *slog.Logger) (service.KV, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		dbpool, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewKVRepository(dbpool)
		if err := repo.EnsureSchema(ctx); err != nil {
			dbpool.Close()
			return nil, nil, err
		}
		log.Info("successfully connected to postgres")
		return repo, dbpool.Close, nil

	case "redis":
		client := redisrepo.NewClient(cfg.Redis)
		repo := redisrepo.NewKVRepository(client, log)
		if err := repo.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		log.Info("successfully connected to redis", slog.String("addr", cfg.Redis.Addr))
		return repo, func() { _ = client.Close() }, nil

	default:
		log.Warn("using in-memory cart storage, the cart will not survive a restart")
		return memory.NewKV(), func() {}, nil
	}
}
