package idempotency

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, n)
	})
}

func do(h http.Handler, key, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/stock/reservar", nil)
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	req.Header.Set("X-User", user)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newMiddleware() func(http.Handler) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Middleware(log, NewMemoryStore(64, time.Minute), func(r *http.Request) string {
		return r.Header.Get("X-User")
	})
}

func TestMiddlewareReplaysCompletedResponse(t *testing.T) {
	var calls int32
	h := newMiddleware()(testHandler(&calls, http.StatusCreated))

	first := do(h, "abc", "u1")
	second := do(h, "abc", "u1")

	assert.Equal(t, int32(1), calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestMiddlewareScopesKeysPerCaller(t *testing.T) {
	var calls int32
	h := newMiddleware()(testHandler(&calls, http.StatusCreated))

	do(h, "abc", "u1")
	do(h, "abc", "u2")

	assert.Equal(t, int32(2), calls)
}

func TestMiddlewareWithoutKey(t *testing.T) {
	var calls int32
	h := newMiddleware()(testHandler(&calls, http.StatusCreated))

	do(h, "", "u1")
	do(h, "", "u1")

	assert.Equal(t, int32(2), calls)
}

func TestMiddlewareDoesNotStoreServerErrors(t *testing.T) {
	var calls int32
	h := newMiddleware()(testHandler(&calls, http.StatusInternalServerError))

	do(h, "abc", "u1")
	rec := do(h, "abc", "u1")

	assert.Equal(t, int32(2), calls)
	assert.Empty(t, rec.Header().Get(HeaderReplayed))
}

func TestMiddlewareRejectsInFlightDuplicate(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewMemoryStore(8, time.Minute)
	h := Middleware(log, store, func(*http.Request) string { return "u1" })(http.NotFoundHandler())

	_, acquired, err := store.Acquire(httptest.NewRequest(http.MethodGet, "/", nil).Context(),
		Key(http.MethodPost, "/api/stock/reservar", "u1", "busy"))
	require.NoError(t, err)
	require.True(t, acquired)

	rec := do(h, "busy", "u1")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMiddlewareCompletesAfterClientDisconnect(t *testing.T) {
	store, _ := newRedisStore(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := Middleware(log, store, func(*http.Request) string { return "u1" })

	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"r-1"}`))
		cancel()
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/stock/reservar", nil).WithContext(ctx)
	req.Header.Set(HeaderKey, "gone")
	h.ServeHTTP(httptest.NewRecorder(), req)

	retry := do(h, "gone", "u1")
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Equal(t, `{"id":"r-1"}`, retry.Body.String())
	assert.Equal(t, "true", retry.Header().Get(HeaderReplayed))
}

func TestMiddlewareReleasesKeyOnPanic(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var calls int32
	h := Middleware(log, NewMemoryStore(8, time.Minute), func(*http.Request) string { return "u1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				panic("boom")
			}
			w.WriteHeader(http.StatusCreated)
		}))

	assert.Panics(t, func() { do(h, "p", "u1") })

	rec := do(h, "p", "u1")
	assert.Equal(t, int32(2), calls)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
