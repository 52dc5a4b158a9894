// AngelaMos | 2026
// handler.go

package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

// RegisterRoutes mounts the token and password endpoints relative to the
// auth prefix. throttle, when set, guards the credential-guessing routes.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	throttle func(http.Handler) http.Handler,
) {
	limited := r
	if throttle != nil {
		limited = r.With(throttle)
	}

	limited.Post("/jwt/create", h.Login)
	r.Post("/jwt/refresh", h.Refresh)
	r.Post("/jwt/verify", h.Verify)
	limited.Post("/users/reset_password", h.ResetPassword)
	limited.Post("/users/reset_password_confirm", h.ResetPasswordConfirm)

	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Post("/jwt/logout", h.Logout)
		r.Post("/users/set_password", h.SetPassword)
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.bind(w, r, &req) {
		return
	}

	pair, err := h.service.Login(r.Context(), req, clientInfo(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, pair)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.bind(w, r, &req) {
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.Refresh, clientInfo(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, pair)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !h.bind(w, r, &req) {
		return
	}

	if _, err := h.service.VerifyAccessToken(r.Context(), req.Token); err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, struct{}{})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := core.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.service.Logout(r.Context(), middleware.GetClaims(r.Context()), req.Refresh); err != nil {
		h.writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req SetPasswordRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.service.SetPassword(r.Context(), middleware.GetUserID(r.Context()), req); err != nil {
		h.writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ResetPasswordConfirm(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordConfirmRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), req); err != nil {
		h.writeError(w, err)
		return
	}

	core.NoContent(w)
}

// JWKS serves the verification keys.
func (h *Handler) JWKS(w http.ResponseWriter, r *http.Request) {
	h.service.jwt.JWKSHandler()(w, r)
}

func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(r, dst); err != nil {
		h.writeError(w, err)
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.ValidationFailed(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if verr, ok := core.AsValidationError(err); ok {
		core.ValidationFailed(w, verr)
		return
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		core.JSONError(w, core.NewAppError(err, core.MsgInvalidCredential, http.StatusUnauthorized, "no_active_account"))
	case errors.Is(err, ErrTokenReuse), errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError())
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, "")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w)
	default:
		core.JSONError(w, err)
	}
}

func clientInfo(r *http.Request) ClientInfo {
	return ClientInfo{
		UserAgent: r.UserAgent(),
		IPAddress: middleware.ClientIP(r),
	}
}
