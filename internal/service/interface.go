package service

import (
	"context"

	"github.com/asquebay/mini-storefront/internal/model"
	"github.com/asquebay/mini-storefront/internal/repository"
)

// KV определяет контракт для долговременного хранилища ключ-значение
// Update обязан выполнять чтение-изменение-запись атомарно относительно других Update
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Update(ctx context.Context, key string, fn repository.UpdateFunc) error
	Ping(ctx context.Context) error
}

// EventPublisher публикует события об изменении корзины
type EventPublisher interface {
	Publish(ctx context.Context, event model.CartEvent) error
}
