package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Inventory-Reservation-System/pkg/apperror"
)

type itemReq struct {
	ProductoID string `json:"producto_id" validate:"required"`
	Cantidad   int    `json:"cantidad" validate:"gt=0"`
}

type bodyReq struct {
	Items []itemReq `json:"items" validate:"required,min=1,dive"`
}

func newRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecode(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		var dst bodyReq
		require.NoError(t, Decode(newRequest(`{"items":[{"producto_id":"a","cantidad":2}]}`), &dst))
		assert.Equal(t, 2, dst.Items[0].Cantidad)
	})

	t.Run("empty body", func(t *testing.T) {
		var dst bodyReq
		err := Decode(newRequest(``), &dst)
		assert.ErrorIs(t, err, apperror.ErrBadRequest)
	})

	t.Run("unknown field", func(t *testing.T) {
		var dst bodyReq
		err := Decode(newRequest(`{"items":[],"extra":1}`), &dst)
		assert.ErrorIs(t, err, apperror.ErrBadRequest)
	})

	t.Run("validation reports json field names", func(t *testing.T) {
		var dst bodyReq
		err := Decode(newRequest(`{"items":[{"producto_id":"","cantidad":0}]}`), &dst)
		require.ErrorIs(t, err, apperror.ErrValidation)

		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		fields := appErr.Details.([]FieldError)
		require.Len(t, fields, 2)
		assert.Equal(t, "items[0].producto_id", fields[0].Field)
		assert.Equal(t, "required", fields[0].Rule)
		assert.Equal(t, "items[0].cantidad", fields[1].Field)
	})
}

func TestErrorEnvelope(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("application error keeps message and details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Error(rec, log, apperror.InsufficientStock("not enough stock").WithDetails(map[string]int{"disponible": 1}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body ErrorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, apperror.CodeInsufficientStock, body.Code)
		assert.Equal(t, "not enough stock", body.Message)
		assert.Equal(t, map[string]any{"disponible": float64(1)}, body.Details)
	})

	t.Run("internal error is hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Error(rec, log, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body ErrorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, apperror.CodeInternal, body.Code)
		assert.Equal(t, "internal server error", body.Message)
	})

	t.Run("details is always present", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Error(rec, log, apperror.NotFound("producto not found"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"code":"NOT_FOUND","message":"producto not found","details":null}`, rec.Body.String())
	})
}
