package idempotency

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmehra2102/Inventory-Reservation-System/pkg/apperror"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/httpx"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
	maxKeyLength   = 255

	// finishTimeout bounds the store write after the handler returns.
	finishTimeout = 5 * time.Second
)

// Scope derives the per-caller namespace of a key, usually the token subject.
type Scope func(r *http.Request) string

// Middleware replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass through untouched. Responses with a 5xx
// status and panicking handlers release the key so the client may retry.
// The outcome is recorded even when the client has already gone away.
func Middleware(log *slog.Logger, store Store, scope Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				httpx.Error(w, log, apperror.BadRequest("Idempotency-Key is too long"))
				return
			}
			storeKey := Key(r.Method, r.URL.Path, scope(r), key)

			rec, acquired, err := store.Acquire(r.Context(), storeKey)
			if err != nil {
				httpx.Error(w, log, fmt.Errorf("idempotency acquire: %w", err))
				return
			}
			if !acquired {
				if rec == nil || !rec.Done {
					httpx.Error(w, log, apperror.Conflict("a request with this Idempotency-Key is still in progress"))
					return
				}
				replay(w, rec)
				return
			}

			forget := func() {
				ctx, cancel := finishContext(r.Context())
				defer cancel()
				if err := store.Forget(ctx, storeKey); err != nil {
					log.Error("idempotency forget failed", "key", storeKey, "err", err)
				}
			}
			defer func() {
				if p := recover(); p != nil {
					forget()
					panic(p)
				}
			}()

			rw := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			if rw.status >= http.StatusInternalServerError {
				forget()
				return
			}
			ctx, cancel := finishContext(r.Context())
			defer cancel()
			err = store.Complete(ctx, storeKey, Record{
				Status: rw.status,
				Header: http.Header{"Content-Type": rw.Header().Values("Content-Type")},
				Body:   rw.body.Bytes(),
			})
			if err != nil {
				log.Error("idempotency complete failed", "key", storeKey, "err", err)
			}
		})
	}
}

// finishContext detaches from the request so a disconnected client does not
// leave the key locked.
func finishContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), finishTimeout)
}

func Key(method, path, scope, key string) string {
	return fmt.Sprintf("idem:http:%s:%s:%s:%s", method, path, scope, key)
}

func replay(w http.ResponseWriter, rec *Record) {
	for k, vs := range rec.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
