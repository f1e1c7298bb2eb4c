package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/asquebay/mini-storefront/internal/model"
)

var (
	// ErrFetchFailed — сетевая ошибка, неуспешный статус или ответ, который не удалось разобрать
	ErrFetchFailed = errors.New("catalog fetch failed")
	// ErrProductNotFound — каталог не знает товара с таким ID
	ErrProductNotFound = errors.New("product not found")
)

// maxBodySize ограничивает размер ответа каталога
const maxBodySize = 8 << 20

// Client ходит в удалённый REST-каталог (по умолчанию fakestoreapi.com)
// ни повторов, ни кэша: каждый вызов — ровно один HTTP-запрос
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient создает клиента каталога
// нулевой timeout означает отсутствие таймаута на уровне клиента
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// ListProducts запрашивает GET /products
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	const op = "catalog.Client.ListProducts"

	body, err := c.get(ctx, op, "/products", ErrFetchFailed)
	if err != nil {
		return nil, err
	}

	var products []model.Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("%s: %w: decode: %w", op, ErrFetchFailed, err)
	}
	if products == nil {
		products = []model.Product{}
	}

	c.log.Debug("products fetched", slog.String("op", op), slog.Int("count", len(products)))
	return products, nil
}

// GetProduct запрашивает GET /products/{id}
func (c *Client) GetProduct(ctx context.Context, id int) (model.Product, error) {
	const op = "catalog.Client.GetProduct"

	body, err := c.get(ctx, op, "/products/"+strconv.Itoa(id), ErrProductNotFound)
	if err != nil {
		return model.Product{}, err
	}

	// на неизвестный ID fakestoreapi отвечает 200 с пустым телом
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return model.Product{}, fmt.Errorf("%s: id %d: %w", op, id, ErrProductNotFound)
	}

	var product model.Product
	if err := json.Unmarshal(body, &product); err != nil {
		return model.Product{}, fmt.Errorf("%s: %w: decode: %w", op, ErrFetchFailed, err)
	}

	return product, nil
}

// get выполняет GET и возвращает тело успешного ответа
// notFound — ошибка, которой отвечать на 404: для коллекции это сбой каталога, для одного товара — его отсутствие
func (c *Client) get(ctx context.Context, op, path string, notFound error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %s: %w", op, path, notFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%s: %w: unexpected status %d", op, ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: read body: %w", op, ErrFetchFailed, err)
	}
	return body, nil
}
