package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/asquebay/mini-storefront/internal/model"

	"github.com/segmentio/kafka-go"
)

// CartMutator — это интерфейс, который абстрагирует консьюмер
// от конкретной реализации сервисного слоя
type CartMutator interface {
	Add(ctx context.Context, product model.Product) (model.Cart, error)
	Remove(ctx context.Context, productID int) (model.Cart, error)
	Clear(ctx context.Context) (model.Cart, error)
}

// границы паузы между повторами команды, упавшей на хранилище
const (
	defaultRetryMin = 200 * time.Millisecond
	defaultRetryMax = 10 * time.Second
)

// Consumer читает команды корзины из топика и применяет их по одной
type Consumer struct {
	reader   *kafka.Reader
	service  CartMutator
	log      *slog.Logger
	retryMin time.Duration
	retryMax time.Duration
}

// NewConsumer создает новый экземпляр консьюмера
func NewConsumer(brokers []string, topic, groupID string, service CartMutator, log *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})

	return &Consumer{
		reader:   reader,
		service:  service,
		log:      log,
		retryMin: defaultRetryMin,
		retryMax: defaultRetryMax,
	}
}

// Run запускает цикл чтения сообщений из Kafka
// эта функция блокирующая, поэтому она запускается в отдельной горутине
func (c *Consumer) Run(ctx context.Context) {
	log := c.log.With(slog.String("component", "kafka_consumer"))
	log.Info("Kafka consumer started")

	for {
		// проверка на отмену контекста
		select {
		case <-ctx.Done():
			log.Info("Context cancelled, stopping consumer.")
			return
		default:
			// FetchMessage блокирует до тех пор, пока не придет новое сообщение или не возникнет ошибка
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				// если контекст был отменен во время ожидания, это нормальное завершение
				if errors.Is(err, context.Canceled) {
					return
				}
				// если ридер был закрыт, тоже выходим
				if errors.Is(err, io.EOF) {
					log.Info("Kafka reader closed")
					return
				}
				log.Error("failed to fetch message", slog.String("error", err.Error()))
				continue // пробуем снова
			}

			log.Debug("received message", slog.String("topic", msg.Topic), slog.Int("partition", msg.Partition), slog.Int64("offset", msg.Offset))

			// FetchMessage не вернёт это сообщение повторно, а следующий коммит сдвинет offset дальше,
			// поэтому повторяем обработку здесь, пока не получится или пока нас не остановят
			if err := c.process(ctx, msg); err != nil {
				log.Info("consumer stopped while retrying message", slog.Int64("offset", msg.Offset))
				return
			}

			// фиксируем offset только после успешной обработки
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				log.Error("failed to commit message", slog.String("error", err.Error()))
			}
		}
	}
}

// process применяет сообщение, повторяя попытки с экспоненциальной паузой
// ошибку возвращает только при отмене ctx — тогда offset не фиксируется
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	backoff := c.retryMin
	for attempt := 1; ; attempt++ {
		err := c.handleMessage(ctx, msg)
		if err == nil {
			return nil
		}

		c.log.Error("failed to handle message, will retry",
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Int64("offset", msg.Offset),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.retryMax {
			backoff = c.retryMax
		}
	}
}

// handleMessage парсит и применяет одну команду
// невалидные сообщения пропускаются (nil), ошибки хранилища возвращаются наверх
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var cmd model.CartCommand

	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		// перечитывать такое сообщение бессмысленно
		c.log.Warn("failed to unmarshal command, skipping", slog.String("error", err.Error()))
		return nil
	}

	if err := cmd.Validate(); err != nil {
		c.log.Warn("command validation failed, skipping",
			slog.String("error", err.Error()),
			slog.String("op", cmd.Op),
		)
		return nil
	}

	var (
		cart model.Cart
		err  error
	)
	switch cmd.Op {
	case model.OpAdd:
		cart, err = c.service.Add(ctx, *cmd.Product)
	case model.OpRemove:
		cart, err = c.service.Remove(ctx, cmd.ProductID)
	case model.OpClear:
		cart, err = c.service.Clear(ctx)
	}
	if err != nil {
		return fmt.Errorf("apply %s: %w", cmd.Op, err)
	}

	c.log.Info("cart command applied", slog.String("op", cmd.Op), slog.Int("cart_size", len(cart)))
	return nil
}

// Close — graceful shutdown консьюмера
func (c *Consumer) Close() error {
	c.log.Info("Closing kafka consumer")
	return c.reader.Close()
}
