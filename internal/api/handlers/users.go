// users.go — управление учётными записями из admin-панели.
package handlers

import (
	"errors"
	"net/http"

	"github.com/infraservicos/portal-api/internal/api/contract"
	apierrors "github.com/infraservicos/portal-api/internal/api/errors"
	"github.com/infraservicos/portal-api/internal/service"
)

// ListUsers — GET /api/admin/users.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	var role *string
	if v := r.URL.Query().Get("role"); v != "" {
		role = &v
	}

	accounts, total, err := h.auth.ListAccounts(r.Context(), role, limit, offset)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRole) {
			apierrors.ValidationError(w, "Papel inválido: use admin ou technician")
			return
		}
		h.logger.Error("Ошибка получения учётных записей", "error", err)
		apierrors.InternalError(w, "Erro ao listar usuários")
		return
	}

	resp := accountListResponse{
		Items:   make([]account, len(accounts)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
	for i, a := range accounts {
		resp.Items[i] = mapAccount(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateUser — POST /api/admin/users.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := h.decodeBody(w, r, contract.SchemaCreateAccountRequest, &req); err != nil {
		apierrors.ValidationError(w, "Dados inválidos")
		return
	}

	acc, err := h.auth.CreateAccount(r.Context(), service.CreateAccountInput{
		Email:    req.Email,
		Name:     req.Name,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConflict):
			apierrors.Conflict(w, "Usuário já existe")
		case errors.Is(err, service.ErrInvalidRole):
			apierrors.ValidationError(w, "Papel inválido: use admin ou technician")
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, "E-mail inválido ou senha com menos de 8 caracteres")
		default:
			h.logger.Error("Ошибка создания учётной записи", "error", err)
			apierrors.InternalError(w, "Erro ao criar usuário")
		}
		return
	}

	writeJSON(w, http.StatusCreated, mapAccount(acc))
}
