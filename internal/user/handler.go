package user

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/httpx"
)

// Handler exposes collaborator management. Every route must be mounted
// behind the admin-role middleware, which puts the actor on the context.
type Handler struct {
	svc    *UserService
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	u, err := h.svc.Create(r.Context(), in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.logger.Infow("admin user created", "id", u.ID, "role", u.Role)
	httpx.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	var in UpdateInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	u, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	actor, ok := ActorFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, apperr.New(apperr.KindAuthorization, "Accesso non autorizzato"))
		return
	}
	if err := h.svc.Delete(r.Context(), actor.ID, id); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.logger.Infow("admin user deleted", "id", id, "by", actor.ID)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Utente eliminato"})
}

func pathID(w http.ResponseWriter, r *http.Request, logger *zap.SugaredLogger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, r, logger, apperr.Validation("ID non valido"))
		return 0, false
	}
	return id, true
}
