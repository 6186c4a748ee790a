package giftlist

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/httpx"
)

// ShopDomainHeader names the storefront a list was created from.
const ShopDomainHeader = "X-Shop-Domain"

type Handler struct {
	svc    *RegistryService
	logger *zap.SugaredLogger
}

func NewHandler(svc *RegistryService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	lists, err := h.svc.ListAll(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, lists)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	l, err := h.svc.Create(r.Context(), in, r.Header.Get(ShopDomainHeader))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.logger.Infow("gift list created", "id", l.ID, "public_url", l.PublicURL, "shop", l.ShopDomain)
	httpx.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathInt(w, r, "id")
	if !ok {
		return
	}
	l, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.GetPublic(r.Context(), r.PathValue("publicUrl"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathInt(w, r, "id")
	if !ok {
		return
	}
	var in UpdateInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	l, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathInt(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.logger.Infow("gift list deleted", "id", id)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathInt(w, r, "id")
	if !ok {
		return
	}
	var in ItemInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	it, err := h.svc.AddItem(r.Context(), id, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, it)
}

func (h *Handler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathInt(w, r, "id")
	if !ok {
		return
	}
	var in ReplaceInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	items, err := h.svc.ReplaceItems(r.Context(), id, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathInt(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathInt(w, r, "itemId")
	if !ok {
		return
	}
	if err := h.svc.RemoveItem(r.Context(), id, itemID); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

func (h *Handler) PopularProducts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.PopularProducts(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, counts)
}

func (h *Handler) pathInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		httpx.WriteError(w, r, h.logger, apperr.Validation("ID non valido", name+": non valido"))
		return 0, false
	}
	return v, true
}
