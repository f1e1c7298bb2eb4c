package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asquebay/mini-storefront/internal/lib/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productsJSON = `[
  {"id":1,"title":"Fjallraven Backpack","price":109.95,"description":"bag","category":"men's clothing",
   "image":"https://fakestoreapi.com/img/81fPKd-2AYL._AC_SL1500_.jpg","rating":{"rate":3.9,"count":120}},
  {"id":2,"title":"Slim Fit T-Shirt","price":22.3,"image":"https://fakestoreapi.com/img/71-3HjGNDUL.jpg"}
]`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second, logger.Discard())
}

func TestListProducts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(productsJSON))
	})

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, 1, products[0].ID)
	assert.Equal(t, 109.95, products[0].Price)
	assert.Equal(t, "men's clothing", products[0].Category)
	require.NotNil(t, products[0].Rating)
	assert.Equal(t, 120, products[0].Rating.Count)

	assert.Equal(t, "Slim Fit T-Shirt", products[1].Title)
	assert.Nil(t, products[1].Rating)
}

func TestListProductsEmptyArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestListProductsFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"oops":`))
		}},
		{"object instead of array", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"id":1}`))
		}},
		{"404 on collection", http.NotFoundHandler().ServeHTTP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(t, tt.handler).ListProducts(context.Background())
			assert.ErrorIs(t, err, ErrFetchFailed)
			assert.NotErrorIs(t, err, ErrProductNotFound)
		})
	}
}

func TestListProductsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second, logger.Discard()).ListProducts(context.Background())
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestGetProduct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/7", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":7,"title":"Ring","price":9.99,"image":"https://x/y.jpg","description":"gold"}`))
	})

	p, err := c.GetProduct(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, p.ID)
	assert.Equal(t, "gold", p.Description)
	assert.Equal(t, 9.99, p.Price)
}

func TestGetProductNotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"empty body", func(w http.ResponseWriter, _ *http.Request) {}},
		{"null body", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("null\n")) }},
		{"404", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(t, tt.handler).GetProduct(context.Background(), 999)
			assert.ErrorIs(t, err, ErrProductNotFound)
			assert.NotErrorIs(t, err, ErrFetchFailed)
		})
	}
}

func TestGetProductCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":1}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetProduct(ctx, 1)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.Canceled)
}
