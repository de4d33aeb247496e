package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/memory"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/auth"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/auth/authtest"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/httpx"
)

type testServer struct {
	router http.Handler
	admin  string
	user   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	iss := authtest.NewIssuer(t)

	h := NewHandler(log, application.NewService(store.Productos(), store.Categorias()), iss.Authenticator(log))
	r := chi.NewRouter()
	r.Route("/api", h.Register)

	return &testServer{
		router: r,
		admin:  iss.Token("admin-1", auth.RoleAdmin),
		user:   iss.Token("user-1"),
	}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", authtest.Bearer(token))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestCreateAndGetProducto(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/categorias", s.admin, `{"nombre":"Audio"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decode[domain.Categoria](t, rec)

	rec = s.do(t, http.MethodPost, "/api/productos", s.admin, `{
		"nombre": "Auriculares",
		"precio": "59.99",
		"stock": 12,
		"imagenes": [{"url": "https://img/1.png"}, {"url": "https://img/2.png"}],
		"categorias": ["`+cat.ID+`"]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Producto](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Imagenes[0].Principal)

	rec = s.do(t, http.MethodGet, "/api/productos/"+created.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.Producto](t, rec)
	assert.Equal(t, "Auriculares", got.Nombre)
	assert.Equal(t, "59.99", got.Precio.StringFixed(2))

	rec = s.do(t, http.MethodGet, "/api/productos?categoria="+cat.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[application.ProductoPage](t, rec)
	assert.Equal(t, 1, page.Total)
}

func TestGetProductoUnknown(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/productos/does-not-exist", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[httpx.ErrorBody](t, rec)
	assert.Equal(t, "NOT_FOUND", string(body.Code))
}

func TestWritesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	body := `{"nombre":"Cable","precio":1,"stock":1}`

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/productos", "", body).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/productos", s.user, body).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/categorias", s.user, `{"nombre":"x"}`).Code)
	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/productos", s.admin, body).Code)
}

func TestCreateProductoValidation(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]string{
		"missing nombre":   `{"precio":1,"stock":1}`,
		"negative stock":   `{"nombre":"x","stock":-1}`,
		"negative precio":  `{"nombre":"x","precio":"-1"}`,
		"two principals":   `{"nombre":"x","imagenes":[{"url":"a","principal":true},{"url":"b","principal":true}]}`,
		"unknown category": `{"nombre":"x","categorias":["nope"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/productos", s.admin, body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", string(decode[httpx.ErrorBody](t, rec).Code))
		})
	}

	rec := s.do(t, http.MethodPost, "/api/productos", s.admin, `{"nombre":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", string(decode[httpx.ErrorBody](t, rec).Code))
}

func TestUpdateAndDeleteProducto(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/productos", s.admin, `{"nombre":"Mouse","precio":"10","stock":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decode[domain.Producto](t, rec)

	rec = s.do(t, http.MethodPatch, "/api/productos/"+p.ID, s.admin, `{"stock":8}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.Producto](t, rec)
	assert.Equal(t, 8, updated.Stock)
	assert.Equal(t, "Mouse", updated.Nombre)

	rec = s.do(t, http.MethodDelete, "/api/productos/"+p.ID, s.admin, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/productos/"+p.ID, s.admin, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategorias(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/categorias", s.admin, `{"nombre":"Audio"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decode[domain.Categoria](t, rec)

	rec = s.do(t, http.MethodPost, "/api/categorias", s.admin, `{"nombre":"AUDIO"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/categorias", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Categoria](t, rec), 1)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/categorias/"+c.ID, "", "").Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/categorias/"+c.ID, s.admin, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/categorias/"+c.ID, "", "").Code)
}

func TestListProductosBadLimit(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/productos?limit=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
