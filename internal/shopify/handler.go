package shopify

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/httpx"
)

// Handler proxies the catalog to the storefront UI.
type Handler struct {
	client *Client
	logger *zap.SugaredLogger
}

func NewHandler(client *Client, logger *zap.SugaredLogger) *Handler {
	return &Handler{client: client, logger: logger}
}

func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.client.Products(r.Context(), first(r))
	if err != nil {
		h.fail(w, r, err, "Failed to fetch products")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, products)
}

func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	cols, err := h.client.Collections(r.Context(), first(r))
	if err != nil {
		h.fail(w, r, err, "Failed to fetch collections")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cols)
}

func first(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("first"))
	return ClampFirst(n)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrNotConfigured):
		httpx.WriteError(w, r, h.logger, apperr.New(apperr.KindConfiguration, "Shopify not configured"))
	case errors.As(err, &apiErr):
		h.logger.Errorw("shopify api errors", "path", r.URL.Path, "errors", string(apiErr.Errors))
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorBody{Message: "Shopify API error"})
	default:
		h.logger.Errorw("catalog request failed", "path", r.URL.Path, "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorBody{Message: msg})
	}
}
