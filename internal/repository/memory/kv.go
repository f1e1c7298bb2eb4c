package memory

import (
	"context"
	"sync"

	"github.com/asquebay/mini-storefront/internal/repository"
)

// KV — потокобезопасное in-memory хранилище ключ-значение
// живёт только в пределах процесса, годится для разработки и тестов
type KV struct {
	// обычный мьютекс вместо sync.Map: Update должен держать блокировку
	// на всё время чтения-изменения-записи
	mu      sync.Mutex
	storage map[string][]byte
}

// NewKV создаёт новый экземпляр хранилища
func NewKV() *KV {
	return &KV{storage: make(map[string][]byte)}
}

// Get возвращает копию значения или repository.ErrKeyNotFound
func (s *KV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.storage[key]
	if !ok {
		return nil, repository.ErrKeyNotFound
	}
	return clone(value), nil
}

// Set перезаписывает значение целиком
func (s *KV) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storage[key] = clone(value)
	return nil
}

// Update выполняет fn под блокировкой и сохраняет результат
// если fn вернула ошибку, хранилище не меняется
func (s *KV) Update(ctx context.Context, key string, fn repository.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	current, found := s.storage[key]
	next, err := fn(clone(current), found)
	if err != nil {
		return err
	}

	s.storage[key] = clone(next)
	return nil
}

// Ping всегда успешен
func (s *KV) Ping(context.Context) error {
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
