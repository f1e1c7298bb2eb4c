package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asquebay/mini-storefront/internal/config"
	"github.com/asquebay/mini-storefront/internal/repository"

	"github.com/go-redis/redis/v8"
)

// maxTxRetries ограничивает число повторов оптимистичной транзакции WATCH/MULTI
const maxTxRetries = 16

// ErrTooManyConflicts возвращается, если ключ всё время меняли параллельно
var ErrTooManyConflicts = errors.New("too many concurrent updates")

// KVRepository хранит значения в Redis по обычным строковым ключам
type KVRepository struct {
	client *redis.Client
	log    *slog.Logger
}

// NewClient создаёт клиента по адресу "host:port" или URL вида redis://...
// непустые password и db из конфига имеют приоритет над значениями из URL
func NewClient(cfg config.Redis) *redis.Client {
	opts, err := redis.ParseURL(cfg.Addr)
	if err == nil {
		if cfg.Password != "" {
			opts.Password = cfg.Password
		}
		if cfg.DB != 0 {
			opts.DB = cfg.DB
		}
	} else {
		// если это не "redis://..." — считаем, что передан просто адрес
		opts = &redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		}
	}
	return redis.NewClient(opts)
}

// NewKVRepository оборачивает готового клиента
func NewKVRepository(client *redis.Client, log *slog.Logger) *KVRepository {
	return &KVRepository{client: client, log: log}
}

// Get извлекает значение по ключу
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "repository.redis.kv.Get"

	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, repository.ErrKeyNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}

// Set перезаписывает значение без срока жизни
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	const op = "repository.redis.kv.Set"

	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Update — чтение-изменение-запись через WATCH + MULTI/EXEC
// если ключ поменяли между чтением и EXEC, транзакция повторяется
func (r *KVRepository) Update(ctx context.Context, key string, fn repository.UpdateFunc) error {
	const op = "repository.redis.kv.Update"

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		found := true
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}
			found = false
		}

		next, err := fn(current, found)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxTxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			r.log.Debug("optimistic lock conflict, retrying",
				slog.String("op", op), slog.String("key", key), slog.Int("attempt", attempt))
			continue
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w", op, ErrTooManyConflicts)
}

// Ping проверяет, что Redis жив
func (r *KVRepository) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.client.Ping(pingCtx).Err()
}
