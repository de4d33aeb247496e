// Package httpx holds the JSON plumbing shared by the HTTP handlers: request
// decoding with validation, response encoding and the error envelope.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dmehra2102/Inventory-Reservation-System/pkg/apperror"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorBody is the envelope returned for every failed request.
type ErrorBody struct {
	Code    apperror.Code `json:"code"`
	Message string        `json:"message"`
	Details any           `json:"details"`
}

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// Decode reads a JSON body into dst and runs struct validation on it.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.BadRequest("request body is empty")
		}
		return apperror.BadRequest("invalid JSON body").WithDetails(err.Error())
	}
	return Validate(dst)
}

// Validate runs struct validation and converts failures into a validation
// error listing the offending fields.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.BadRequest("invalid request").Wrap(err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field: trimNamespace(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return apperror.Validation("request validation failed").WithDetails(fields)
}

func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the envelope for err. Internal errors are logged and replaced
// with a generic message.
func Error(w http.ResponseWriter, log *slog.Logger, err error) {
	status, code := apperror.Classify(err)
	body := ErrorBody{Code: code, Message: err.Error()}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Details = appErr.Details
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", "err", err)
		body.Message = "internal server error"
		body.Details = nil
	}
	JSON(w, status, body)
}

// ParamError reports a malformed path or query parameter.
func ParamError(param, value string) error {
	return apperror.BadRequest(fmt.Sprintf("invalid %s %q", param, value))
}
