// Package httpx holds the JSON plumbing shared by every handler.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/apperr"
)

// maxBody bounds JSON request bodies.
const maxBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json field names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError converts err into a JSON error response. Unclassified errors
// are logged and replaced with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.SugaredLogger, err error) {
	status := apperr.Status(err)
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal || e.Kind == apperr.KindConfiguration {
		logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	if !ok || e.Kind == apperr.KindInternal {
		WriteJSON(w, status, ErrorBody{Message: apperr.GenericMessage})
		return
	}
	WriteJSON(w, status, ErrorBody{Message: e.Message, Errors: e.Fields})
}

// Decode parses the JSON body into dst and validates it with the struct's
// `validate` tags. An empty body decodes as an empty object.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("Richiesta non valida", "body: "+err.Error())
	}
	return Validate(dst)
}

// Validate runs struct validation and converts failures into field errors.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("Richiesta non valida", err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldMessage(fe))
	}
	return apperr.Validation("Dati non validi", fields...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: obbligatorio", fe.Field())
	case "email":
		return fmt.Sprintf("%s: email non valida", fe.Field())
	case "min":
		return fmt.Sprintf("%s: minimo %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s: massimo %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: valori ammessi %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s: non valido (%s)", fe.Field(), fe.Tag())
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
