// handler.go — основной обработчик API portal-api.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/infraservicos/portal-api/internal/api/contract"
	"github.com/infraservicos/portal-api/internal/i18n"
	"github.com/infraservicos/portal-api/internal/service"
)

// maxJSONBodyBytes — лимит JSON-тела запроса.
const maxJSONBodyBytes = 64 << 10

// Пагинация списков.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// APIHandler — основной обработчик API.
type APIHandler struct {
	health          *HealthHandler
	auth            *service.AuthService
	uploads         *service.UploadService
	chat            *service.ChatService
	contract        *contract.Contract
	bundle          *i18n.Bundle
	maxRequestBytes int64
	logger          *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// maxRequestBytes — лимит тела multipart-запроса загрузки (PORTAL_UPLOAD_MAX_REQUEST_BYTES).
func NewAPIHandler(
	health *HealthHandler,
	auth *service.AuthService,
	uploads *service.UploadService,
	chat *service.ChatService,
	contract *contract.Contract,
	bundle *i18n.Bundle,
	maxRequestBytes int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:          health,
		auth:            auth,
		uploads:         uploads,
		chat:            chat,
		contract:        contract,
		bundle:          bundle,
		maxRequestBytes: maxRequestBytes,
		logger:          logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// GetOpenAPI — GET /api/openapi.yaml.
func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.contract.Raw())
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errBodyTooLarge — тело JSON-запроса превышает maxJSONBodyBytes.
var errBodyTooLarge = errors.New("тело запроса слишком большое")

// decodeBody читает JSON-тело, проверяет его по схеме контракта
// и декодирует в dst.
func (h *APIHandler) decodeBody(w http.ResponseWriter, r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return errBodyTooLarge
		}
		return fmt.Errorf("%w: %v", contract.ErrInvalidBody, err)
	}
	if err := h.contract.ValidateBody(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrInvalidBody, err)
	}
	return nil
}

// pagination читает limit/offset из query и нормализует их.
func pagination(r *http.Request) (limit, offset int) {
	limit, offset = defaultLimit, 0

	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
		if limit < 1 {
			limit = 1
		}
		if limit > maxLimit {
			limit = maxLimit
		}
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
