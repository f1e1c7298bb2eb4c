package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asquebay/mini-storefront/internal/model"
	"github.com/asquebay/mini-storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrStorage оборачивает любые ошибки ввода-вывода хранилища корзины
var ErrStorage = errors.New("cart storage failure")

// CartService инкапсулирует работу с корзиной, лежащей одним JSON-массивом под фиксированным ключом
// своего состояния в памяти у сервиса нет: каждая операция заново читает хранилище
type CartService struct {
	kv     KV
	key    string
	events EventPublisher
	log    *slog.Logger
}

// NewCartService создаёт новый экземпляр сервиса корзины
// events может быть nil, тогда события не публикуются
func NewCartService(kv KV, key string, events EventPublisher, log *slog.Logger) *CartService {
	return &CartService{
		kv:     kv,
		key:    key,
		events: events,
		log:    log,
	}
}

// Read загружает корзину
// отсутствующий ключ и нечитаемое значение дают пустую корзину, ошибки хранилища — ErrStorage
func (s *CartService) Read(ctx context.Context) (model.Cart, error) {
	const op = "service.CartService.Read"
	log := s.log.With(slog.String("op", op))

	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			return model.Cart{}, nil
		}
		log.Error("failed to read cart", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}

	return s.decode(raw, log), nil
}

// Write целиком перезаписывает корзину
func (s *CartService) Write(ctx context.Context, cart model.Cart) error {
	const op = "service.CartService.Write"

	raw, err := encode(cart)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		s.log.Error("failed to write cart", slog.String("op", op), slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	return nil
}

// Add добавляет товар, если товара с таким ID в корзине ещё нет, и возвращает новую корзину
func (s *CartService) Add(ctx context.Context, product model.Product) (model.Cart, error) {
	const op = "service.CartService.Add"

	var added bool
	cart, err := s.mutate(ctx, op, func(cart model.Cart) model.Cart {
		added = !cart.Contains(product.ID)
		return cart.WithProduct(product)
	})
	if err != nil {
		return nil, err
	}

	if added {
		s.log.Info("product added to cart", slog.String("op", op), slog.Int("product_id", product.ID))
		s.publish(ctx, model.EventItemAdded, product.ID, cart)
	} else {
		s.log.Debug("product already in cart", slog.String("op", op), slog.Int("product_id", product.ID))
	}

	return cart, nil
}

// Remove убирает из корзины все позиции с указанным ID и возвращает новую корзину
func (s *CartService) Remove(ctx context.Context, productID int) (model.Cart, error) {
	const op = "service.CartService.Remove"

	var removed bool
	cart, err := s.mutate(ctx, op, func(cart model.Cart) model.Cart {
		removed = cart.Contains(productID)
		return cart.Without(productID)
	})
	if err != nil {
		return nil, err
	}

	if removed {
		s.log.Info("product removed from cart", slog.String("op", op), slog.Int("product_id", productID))
		s.publish(ctx, model.EventItemRemoved, productID, cart)
	}

	return cart, nil
}

// Clear перезаписывает корзину пустым списком
func (s *CartService) Clear(ctx context.Context) (model.Cart, error) {
	const op = "service.CartService.Clear"

	cart, err := s.mutate(ctx, op, func(model.Cart) model.Cart { return model.Cart{} })
	if err != nil {
		return nil, err
	}

	s.log.Info("cart cleared", slog.String("op", op))
	s.publish(ctx, model.EventCartCleared, 0, cart)

	return cart, nil
}

// Count возвращает число позиций в корзине
func (s *CartService) Count(ctx context.Context) (int, error) {
	cart, err := s.Read(ctx)
	if err != nil {
		return 0, err
	}
	return len(cart), nil
}

// Total возвращает сумму цен, округлённую до двух знаков
func (s *CartService) Total(ctx context.Context) (decimal.Decimal, error) {
	cart, err := s.Read(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return cart.Total(), nil
}

// Ping проверяет доступность хранилища
func (s *CartService) Ping(ctx context.Context) error {
	if err := s.kv.Ping(ctx); err != nil {
		return fmt.Errorf("service.CartService.Ping: %w: %w", ErrStorage, err)
	}
	return nil
}

// mutate применяет change к текущей корзине внутри атомарного Update хранилища
// change может быть вызвана несколько раз (повтор оптимистичной транзакции), поэтому учитывается только результат последнего вызова
func (s *CartService) mutate(ctx context.Context, op string, change func(model.Cart) model.Cart) (model.Cart, error) {
	log := s.log.With(slog.String("op", op))

	var result model.Cart
	err := s.kv.Update(ctx, s.key, func(current []byte, found bool) ([]byte, error) {
		cart := model.Cart{}
		if found {
			cart = s.decode(current, log)
		}
		result = change(cart)
		return encode(result)
	})
	if err != nil {
		log.Error("failed to update cart", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}

	return result, nil
}

func (s *CartService) publish(ctx context.Context, eventType string, productID int, cart model.Cart) {
	if s.events == nil {
		return
	}

	event := model.CartEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		ProductID:  productID,
		Count:      len(cart),
		Total:      model.FormatTotal(cart.Total()),
		OccurredAt: time.Now().UTC(),
	}

	// корзина уже сохранена, поэтому ошибку публикации только логируем
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Error("failed to publish cart event",
			slog.String("type", eventType),
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CartService) decode(raw []byte, log *slog.Logger) model.Cart {
	var cart model.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		log.Warn("stored cart is not valid JSON, treating as empty", slog.String("error", err.Error()))
		return model.Cart{}
	}
	if cart == nil {
		return model.Cart{}
	}
	return cart
}

func encode(cart model.Cart) ([]byte, error) {
	if cart == nil {
		cart = model.Cart{}
	}
	return json.Marshal(cart)
}
