package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   Code
	}{
		{Validation("bad"), http.StatusBadRequest, CodeValidation},
		{InsufficientStock("low"), http.StatusBadRequest, CodeInsufficientStock},
		{BadRequest("body"), http.StatusBadRequest, CodeBadRequest},
		{Unauthorized("no token"), http.StatusUnauthorized, CodeUnauthorized},
		{Forbidden("role"), http.StatusForbidden, CodeForbidden},
		{fmt.Errorf("get: %w", NotFound("missing")), http.StatusNotFound, CodeNotFound},
		{Conflict("dup"), http.StatusConflict, CodeConflict},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		status, code := Classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestWithDetailsKeepsIdentity(t *testing.T) {
	base := NotFound("producto not found")
	other := NotFound("categoria not found")

	withDetails := base.WithDetails(map[string]string{"id": "x"})

	assert.ErrorIs(t, withDetails, base)
	assert.ErrorIs(t, withDetails, ErrNotFound)
	assert.NotErrorIs(t, withDetails, other)
	assert.Nil(t, base.Details)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Conflict("categoria already exists").Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "categoria already exists: duplicate key", err.Error())
}
