package auth

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/httpx"
)

// Handler serves /api/auth, dispatching on the "action" query parameter.
type Handler struct {
	svc    *AuthService
	logger *zap.SugaredLogger
}

func NewHandler(svc *AuthService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

var errInvalidAction = apperr.Validation("Invalid action")

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type verifyResponse struct {
	User any `json:"user"`
}

type setupResponse struct {
	Message string `json:"message"`
	User    any    `json:"user"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	switch {
	case action == "login" && r.Method == http.MethodPost:
		h.login(w, r)
	case action == "logout" && r.Method == http.MethodPost:
		h.logout(w, r)
	case action == "verify" && r.Method == http.MethodGet:
		h.verify(w, r)
	case action == "magic-link" && r.Method == http.MethodPost:
		h.magicLink(w, r)
	case action == "verify-otp" && r.Method == http.MethodPost:
		h.verifyOtp(w, r)
	case action == "setup" && r.Method == http.MethodPost:
		h.setup(w, r)
	default:
		httpx.WriteError(w, r, h.logger, errInvalidAction)
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if apperr.Status(err) == http.StatusUnauthorized {
			h.logger.Warnw("login failed", "remote", r.RemoteAddr)
		}
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), httpx.BearerToken(r)); err != nil {
		// revocation is best effort; the client drops the token regardless
		h.logger.Errorw("logout failed", "err", err)
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "Logout effettuato"})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.VerifySession(r.Context(), httpx.BearerToken(r))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, verifyResponse{User: u})
}

func (h *Handler) magicLink(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.svc.RequestOtp(r.Context(), req.Email); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: OtpRequestedMessage})
}

func (h *Handler) verifyOtp(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.VerifyOtp(r.Context(), req.Email, req.Code)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) setup(w http.ResponseWriter, r *http.Request) {
	var req SetupInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	u, err := h.svc.Setup(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, setupResponse{Message: "Admin creato!", User: u})
}
