package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// SignatureHeader carries the base64 HMAC of the raw body.
const SignatureHeader = "X-Shopify-Hmac-Sha256"

const maxBody = 5 << 20

// Handler serves POST /webhooks/orders-create. Responses are plain text.
type Handler struct {
	rec    *Reconciler
	secret string
	logger *zap.SugaredLogger
}

func NewHandler(rec *Reconciler, secret string, logger *zap.SugaredLogger) *Handler {
	return &Handler{rec: rec, secret: secret, logger: logger}
}

func text(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		text(w, http.StatusUnauthorized, "Missing HMAC")
		return
	}
	if h.secret == "" {
		h.logger.Errorw("webhook secret not configured")
		text(w, http.StatusInternalServerError, "Missing webhook secret")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		h.logger.Warnw("read webhook body", "err", err)
		text(w, http.StatusBadRequest, "Invalid body")
		return
	}
	if !Verify(body, sig, h.secret) {
		h.logger.Warnw("webhook signature mismatch", "remote", r.RemoteAddr)
		text(w, http.StatusUnauthorized, "Invalid signature")
		return
	}
	// the whole body must be one JSON document; trailing bytes are rejected
	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		h.logger.Warnw("invalid webhook json", "err", err)
		text(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if _, err := h.rec.Reconcile(r.Context(), order); err != nil {
		h.logger.Errorw("failed to process webhook", "err", err)
		text(w, http.StatusInternalServerError, "Error")
		return
	}
	text(w, http.StatusOK, "ok")
}
