package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/apperr"
)

type sampleReq struct {
	Title string `json:"title" validate:"required,min=3,max=200"`
	Email string `json:"customer_email" validate:"required,email"`
}

func TestDecodeValidation(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"ab","customer_email":"nope"}`))
	var req sampleReq
	err := Decode(r, &req)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(e.Fields) != 2 {
		t.Fatalf("fields = %v", e.Fields)
	}
	if !strings.HasPrefix(e.Fields[0], "title:") || !strings.HasPrefix(e.Fields[1], "customer_email:") {
		t.Fatalf("json names not used: %v", e.Fields)
	}
}

func TestDecodeMalformed(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`))
	var req sampleReq
	if err := Decode(r, &req); apperr.Status(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestWriteErrorHidesInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	WriteError(rec, r, zap.NewNop().Sugar(), errors.New("pq: relation does not exist"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body ErrorBody
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Message != apperr.GenericMessage {
		t.Fatalf("leaked message %q", body.Message)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer  xyz": "xyz",
		"Basic abc":   "",
		"":            "",
		"Bearer":      "",
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := BearerToken(r); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
