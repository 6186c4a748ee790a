package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user/entity"
)

func doAuth(t *testing.T, h http.Handler, method, action, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/api/auth?action="+action, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthHandlerFlow(t *testing.T) {
	f := newFixture(t, "")
	f.users.add("admin@example.com", "password123", entity.RoleAdmin)
	h := NewHandler(f.svc, zap.NewNop().Sugar())

	rec := doAuth(t, h, http.MethodPost, "login", `{"email":"admin@example.com","password":"password123"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body)
	}
	var res LoginResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}

	if rec := doAuth(t, h, http.MethodGet, "verify", "", res.Token); rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d", rec.Code)
	}
	if rec := doAuth(t, h, http.MethodPost, "logout", "", res.Token); rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	rec = doAuth(t, h, http.MethodGet, "verify", "", res.Token)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Sessione non valida o scaduta") {
		t.Fatalf("verify after logout: %d %s", rec.Code, rec.Body)
	}
	if rec := doAuth(t, h, http.MethodGet, "verify", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("verify without token = %d", rec.Code)
	}
}

func TestAuthHandlerWrongPassword(t *testing.T) {
	f := newFixture(t, "")
	f.users.add("admin@example.com", "password123", entity.RoleAdmin)
	h := NewHandler(f.svc, zap.NewNop().Sugar())
	rec := doAuth(t, h, http.MethodPost, "login", `{"email":"admin@example.com","password":"nope"}`, "")
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Credenziali non valide") {
		t.Fatalf("got %d %s", rec.Code, rec.Body)
	}
}

func TestAuthHandlerMagicLinkIsGeneric(t *testing.T) {
	f := newFixture(t, "")
	f.users.add("admin@example.com", "password123", entity.RoleAdmin)
	h := NewHandler(f.svc, zap.NewNop().Sugar())

	known := doAuth(t, h, http.MethodPost, "magic-link", `{"email":"admin@example.com"}`, "")
	unknown := doAuth(t, h, http.MethodPost, "magic-link", `{"email":"ghost@example.com"}`, "")
	if known.Code != http.StatusOK || unknown.Code != http.StatusOK || known.Body.String() != unknown.Body.String() {
		t.Fatalf("responses differ: %d %s / %d %s", known.Code, known.Body, unknown.Code, unknown.Body)
	}

	body := `{"email":"admin@example.com","code":"` + f.sender.last().Code + `"}`
	if rec := doAuth(t, h, http.MethodPost, "verify-otp", body, ""); rec.Code != http.StatusOK {
		t.Fatalf("verify-otp = %d %s", rec.Code, rec.Body)
	}
	if rec := doAuth(t, h, http.MethodPost, "verify-otp", body, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("second verify-otp = %d", rec.Code)
	}
}

func TestAuthHandlerSetup(t *testing.T) {
	f := newFixture(t, "key")
	h := NewHandler(f.svc, zap.NewNop().Sugar())
	if rec := doAuth(t, h, http.MethodPost, "setup", `{"email":"a@example.com","name":"A","password":"password123","setupKey":"bad"}`, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("bad key = %d", rec.Code)
	}
	if rec := doAuth(t, h, http.MethodPost, "setup", `{"email":"a@example.com","name":"A","password":"password123","setupKey":"key"}`, ""); rec.Code != http.StatusCreated {
		t.Fatalf("setup = %d %s", rec.Code, rec.Body)
	}
	if rec := doAuth(t, h, http.MethodPost, "setup", `{"email":"b@example.com","name":"B","password":"password123","setupKey":"key"}`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("second setup = %d", rec.Code)
	}
}

func TestAuthHandlerUnknownAction(t *testing.T) {
	f := newFixture(t, "")
	h := NewHandler(f.svc, zap.NewNop().Sugar())
	for _, tc := range []struct{ method, action string }{
		{http.MethodPost, "nope"},
		{http.MethodGet, "login"},
		{http.MethodPost, ""},
	} {
		if rec := doAuth(t, h, tc.method, tc.action, "", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s %q = %d", tc.method, tc.action, rec.Code)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	f := newFixture(t, "")
	f.users.add("admin@example.com", "password123", entity.RoleAdmin)
	f.users.add("collab@example.com", "password123", entity.RoleCollaborator)
	logger := zap.NewNop().Sugar()

	var seen entity.Summary
	protected := RequireAdmin(f.svc, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = user.ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := call(""); code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", code)
	}
	collab, _ := f.svc.Login(t.Context(), "collab@example.com", "password123")
	if code := call(collab.Token); code != http.StatusForbidden {
		t.Fatalf("collaborator = %d", code)
	}
	admin, _ := f.svc.Login(t.Context(), "admin@example.com", "password123")
	if code := call(admin.Token); code != http.StatusNoContent {
		t.Fatalf("admin = %d", code)
	}
	if seen.Email != "admin@example.com" {
		t.Fatalf("actor = %+v", seen)
	}
}
