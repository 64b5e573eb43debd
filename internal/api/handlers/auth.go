// auth.go — вход и текущий субъект для admin-панели и приложения техников.
// POST {prefix}/auth/login — единственный маршрут под guard-ом без токена.
package handlers

import (
	"errors"
	"net/http"

	"github.com/infraservicos/portal-api/internal/api/contract"
	apierrors "github.com/infraservicos/portal-api/internal/api/errors"
	"github.com/infraservicos/portal-api/internal/api/middleware"
	"github.com/infraservicos/portal-api/internal/auth"
	"github.com/infraservicos/portal-api/internal/domain/rbac"
	"github.com/infraservicos/portal-api/internal/service"
)

// loginMessages — тексты ответов входа на языке фронтенда роли.
type loginMessages struct {
	guard              middleware.GuardMessages
	invalidCredentials string
	invalidRequest     string
	internal           string
}

var (
	adminLoginMessages = loginMessages{
		guard:              middleware.AdminMessages,
		invalidCredentials: "Credenciais inválidas",
		invalidRequest:     "Requisição inválida",
		internal:           "Erro interno do servidor",
	}
	technicianLoginMessages = loginMessages{
		guard:              middleware.TechnicianMessages,
		invalidCredentials: "Invalid credentials",
		invalidRequest:     "Invalid request",
		internal:           "Internal server error",
	}
)

// AdminLogin — POST /api/admin/auth/login.
func (h *APIHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, rbac.RoleAdmin, adminLoginMessages)
}

// TechnicianLogin — POST /api/technician/auth/login.
func (h *APIHandler) TechnicianLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, rbac.RoleTechnician, technicianLoginMessages)
}

func (h *APIHandler) login(w http.ResponseWriter, r *http.Request, role string, msgs loginMessages) {
	var req loginRequest
	if err := h.decodeBody(w, r, contract.SchemaLoginRequest, &req); err != nil {
		apierrors.ValidationError(w, msgs.invalidRequest)
		return
	}

	res, err := h.auth.Login(r.Context(), role, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			apierrors.Unauthorized(w, msgs.invalidCredentials)
		case errors.Is(err, auth.ErrConfiguration):
			h.logger.Error("Вход невозможен: секрет подписи не настроен", "role", role)
			apierrors.InternalError(w, msgs.guard.Configuration)
		default:
			h.logger.Error("Ошибка входа", "role", role, "error", err)
			apierrors.InternalError(w, msgs.internal)
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      mapAccount(res.Account),
	})
}

// Me — GET {prefix}/auth/me. Возвращает субъекта, подтверждённого guard-ом.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		apierrors.Unauthorized(w, middleware.TechnicianMessages.Missing)
		return
	}
	writeJSON(w, http.StatusOK, principalResponse{ID: p.ID, Email: p.Email, Role: p.Role})
}
