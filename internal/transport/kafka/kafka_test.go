package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/asquebay/mini-storefront/internal/lib/logger"
	"github.com/asquebay/mini-storefront/internal/model"
	"github.com/asquebay/mini-storefront/internal/repository/memory"
	"github.com/asquebay/mini-storefront/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingMutator struct{ err error }

func (f failingMutator) Add(context.Context, model.Product) (model.Cart, error) { return nil, f.err }
func (f failingMutator) Remove(context.Context, int) (model.Cart, error)        { return nil, f.err }
func (f failingMutator) Clear(context.Context) (model.Cart, error)              { return nil, f.err }

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

// flakyMutator отвечает ErrStorage первые failures вызовов, дальше работает как next
type flakyMutator struct {
	next     CartMutator
	failures int
	calls    int
}

func (f *flakyMutator) fail() bool {
	f.calls++
	return f.calls <= f.failures
}

func (f *flakyMutator) Add(ctx context.Context, p model.Product) (model.Cart, error) {
	if f.fail() {
		return nil, service.ErrStorage
	}
	return f.next.Add(ctx, p)
}

func (f *flakyMutator) Remove(ctx context.Context, id int) (model.Cart, error) {
	if f.fail() {
		return nil, service.ErrStorage
	}
	return f.next.Remove(ctx, id)
}

func (f *flakyMutator) Clear(ctx context.Context) (model.Cart, error) {
	if f.fail() {
		return nil, service.ErrStorage
	}
	return f.next.Clear(ctx)
}

// консьюмер без ридера: проверяем только обработку сообщений
func newTestConsumer(svc CartMutator) *Consumer {
	return &Consumer{
		service:  svc,
		log:      logger.Discard(),
		retryMin: time.Millisecond,
		retryMax: 2 * time.Millisecond,
	}
}

func msg(v string) kafka.Message {
	return kafka.Message{Topic: "cart-commands", Value: []byte(v)}
}

func TestHandleMessageAppliesCommands(t *testing.T) {
	ctx := context.Background()
	svc := service.NewCartService(memory.NewKV(), "cart", nil, logger.Discard())
	c := newTestConsumer(svc)

	require.NoError(t, c.handleMessage(ctx, msg(`{"op":"add","product":{"id":1,"title":"a","price":19.99}}`)))
	require.NoError(t, c.handleMessage(ctx, msg(`{"op":"add","product":{"id":2,"title":"b","price":5}}`)))
	require.NoError(t, c.handleMessage(ctx, msg(`{"op":"add","product":{"id":1,"title":"a","price":19.99}}`)))
	require.NoError(t, c.handleMessage(ctx, msg(`{"op":"remove","product_id":1}`)))

	cart, err := svc.Read(ctx)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, 2, cart[0].ID)

	require.NoError(t, c.handleMessage(ctx, msg(`{"op":"clear"}`)))
	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandleMessageSkipsInvalid(t *testing.T) {
	c := newTestConsumer(failingMutator{err: errors.New("must not be called")})

	for _, v := range []string{
		`{broken`,
		`{"op":"explode"}`,
		`{"op":"add"}`,
		`{"op":"add","product":{"id":0,"title":"x"}}`,
		`{"op":"remove"}`,
	} {
		assert.NoError(t, c.handleMessage(context.Background(), msg(v)), v)
	}
}

func TestHandleMessageReturnsStorageErrors(t *testing.T) {
	c := newTestConsumer(failingMutator{err: service.ErrStorage})

	err := c.handleMessage(context.Background(), msg(`{"op":"remove","product_id":3}`))
	assert.ErrorIs(t, err, service.ErrStorage)
}

func TestEventProducerPublish(t *testing.T) {
	w := &captureWriter{}
	p := NewEventProducerWithWriter(w)

	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	event := model.CartEvent{
		EventID:    "e-1",
		Type:       model.EventItemAdded,
		ProductID:  4,
		Count:      2,
		Total:      "12.50",
		OccurredAt: at,
	}
	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, model.EventItemAdded, string(w.msgs[0].Key))
	assert.Equal(t, at, w.msgs[0].Time)

	var got model.CartEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, event, got)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestEventProducerPublishError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewEventProducerWithWriter(&captureWriter{err: boom})

	err := p.Publish(context.Background(), model.CartEvent{Type: model.EventCartCleared})
	assert.ErrorIs(t, err, boom)
}

func TestProcessRetriesUntilApplied(t *testing.T) {
	ctx := context.Background()
	svc := service.NewCartService(memory.NewKV(), "cart", nil, logger.Discard())
	flaky := &flakyMutator{next: svc, failures: 3}
	c := newTestConsumer(flaky)

	require.NoError(t, c.process(ctx, msg(`{"op":"add","product":{"id":5,"title":"x","price":2.5}}`)))
	assert.Equal(t, 4, flaky.calls)

	cart, err := svc.Read(ctx)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, 5, cart[0].ID)
}

func TestProcessRetriesRemoveBeforeNextMessage(t *testing.T) {
	ctx := context.Background()
	svc := service.NewCartService(memory.NewKV(), "cart", nil, logger.Discard())
	_, err := svc.Add(ctx, model.Product{ID: 1, Title: "a"})
	require.NoError(t, err)

	flaky := &flakyMutator{next: svc, failures: 2}
	c := newTestConsumer(flaky)

	require.NoError(t, c.process(ctx, msg(`{"op":"remove","product_id":1}`)))
	require.NoError(t, c.process(ctx, msg(`{"op":"add","product":{"id":2,"title":"b"}}`)))

	cart, err := svc.Read(ctx)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, 2, cart[0].ID)
}

func TestProcessStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := newTestConsumer(failingMutator{err: service.ErrStorage})

	err := c.process(ctx, msg(`{"op":"clear"}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessSkipsInvalidWithoutRetry(t *testing.T) {
	flaky := &flakyMutator{failures: 100}
	c := newTestConsumer(flaky)

	require.NoError(t, c.process(context.Background(), msg(`{"op":"add"}`)))
	assert.Zero(t, flaky.calls)
}
