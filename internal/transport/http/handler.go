package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/asquebay/mini-storefront/internal/catalog"
	"github.com/asquebay/mini-storefront/internal/model"
)

// maxBodySize ограничивает тело запроса на добавление товара
const maxBodySize = 1 << 20

// ProductGetter определяет интерфейс для каталога товаров
// Это позволяет хэндлеру не зависеть от конкретной реализации клиента
type ProductGetter interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id int) (model.Product, error)
}

// CartStore определяет интерфейс для сервиса корзины
type CartStore interface {
	Read(ctx context.Context) (model.Cart, error)
	Add(ctx context.Context, product model.Product) (model.Cart, error)
	Remove(ctx context.Context, productID int) (model.Cart, error)
	Clear(ctx context.Context) (model.Cart, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// CartView — то, что видит экран корзины: позиции и производные от них значения
type CartView struct {
	Items model.Cart `json:"items"`
	Count int        `json:"count"`
	Total string     `json:"total"`
}

func newCartView(cart model.Cart) CartView {
	if cart == nil {
		cart = model.Cart{}
	}
	return CartView{
		Items: cart,
		Count: len(cart),
		Total: model.FormatTotal(cart.Total()),
	}
}

// Handler обрабатывает HTTP-запросы
type Handler struct {
	catalog ProductGetter
	cart    CartStore
	log     *slog.Logger
	mux     *http.ServeMux
}

// NewHandler создает новый экземпляр Handler
func NewHandler(catalog ProductGetter, cart CartStore, log *slog.Logger) *Handler {
	h := &Handler{
		catalog: catalog,
		cart:    cart,
		log:     log,
		mux:     http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP делает Handler совместимым с http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes регистрирует все эндпоинты
func (h *Handler) registerRoutes() {
	// каталог
	h.mux.HandleFunc("GET /products", h.listProducts)
	h.mux.HandleFunc("GET /products/{id}", h.getProduct)
	h.mux.HandleFunc("POST /products/{id}/cart", h.addCatalogProductToCart)

	// корзина
	h.mux.HandleFunc("GET /cart", h.getCart)
	h.mux.HandleFunc("GET /cart/count", h.getCartCount)
	h.mux.HandleFunc("POST /cart/items", h.addToCart)
	h.mux.HandleFunc("DELETE /cart/items/{id}", h.removeFromCart)
	h.mux.HandleFunc("DELETE /cart", h.clearCart)

	h.mux.HandleFunc("GET /healthz", h.healthz)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		h.respondCatalogError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.respondCatalogError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, product)
}

// addCatalogProductToCart — кнопка "Add to Cart" на экране товара:
// берём актуальную запись из каталога и кладём её в корзину
func (h *Handler) addCatalogProductToCart(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.respondCatalogError(w, r, err)
		return
	}

	// запись каталога попадёт в корзину как есть, поэтому проверяем её так же, как тело POST /cart/items
	if product.ID != id {
		h.log.Error("catalog returned a different product",
			slog.Int("requested_id", id), slog.Int("returned_id", product.ID))
		h.respondError(w, http.StatusBadGateway, "catalog returned an invalid product")
		return
	}
	if err := product.Validate(); err != nil {
		h.log.Error("catalog returned an invalid product",
			slog.Int("product_id", id), slog.String("error", err.Error()))
		h.respondError(w, http.StatusBadGateway, "catalog returned an invalid product")
		return
	}

	cart, err := h.cart.Add(r.Context(), product)
	if err != nil {
		h.respondStorageError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, newCartView(cart))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cart.Read(r.Context())
	if err != nil {
		h.respondStorageError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, newCartView(cart))
}

func (h *Handler) getCartCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.cart.Count(r.Context())
	if err != nil {
		h.respondStorageError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var product model.Product
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&product); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := product.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cart, err := h.cart.Add(r.Context(), product)
	if err != nil {
		h.respondStorageError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, newCartView(cart))
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	cart, err := h.cart.Remove(r.Context(), id)
	if err != nil {
		h.respondStorageError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, newCartView(cart))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cart.Clear(r.Context())
	if err != nil {
		h.respondStorageError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, newCartView(cart))
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Ping(r.Context()); err != nil {
		h.log.Error("storage is unavailable", slog.String("error", err.Error()))
		h.respondError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathID извлекает {id} из URL и сам отвечает 400, если он некорректен
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		h.respondError(w, http.StatusNotFound, "product not found")
	case errors.Is(r.Context().Err(), context.Canceled):
		// клиент ушёл, не дождавшись ответа: результат просто отбрасываем
		h.log.Debug("request cancelled before catalog responded", slog.String("path", r.URL.Path))
	default:
		h.log.Error("catalog fetch failed", slog.String("error", err.Error()))
		h.respondError(w, http.StatusBadGateway, "catalog unavailable")
	}
}

func (h *Handler) respondStorageError(w http.ResponseWriter, err error) {
	h.log.Error("internal server error", slog.String("error", err.Error()))
	h.respondError(w, http.StatusInternalServerError, "internal server error")
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal JSON response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(response)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
