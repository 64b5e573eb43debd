// auth.go — Bearer guard для admin-панели и приложения техников.
// Один guard, параметризованный источником секрета и маппингом claims:
// admin и technician отличаются только секретом, ролью и языком сообщений.
// Единственный публичный маршрут под guard-ом — POST {prefix}/auth/login.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/infraservicos/portal-api/internal/api/errors"
	"github.com/infraservicos/portal-api/internal/auth"
	"github.com/infraservicos/portal-api/internal/domain/model"
	"github.com/infraservicos/portal-api/internal/domain/rbac"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyPrincipal — подтверждённый субъект в контексте запроса.
	ContextKeyPrincipal contextKey = "principal"
	// contextKeyPrincipalHolder — holder субъекта для RequestLogger.
	contextKeyPrincipalHolder contextKey = "principal_holder"
)

// LoginPath — путь выдачи токена относительно префикса монтирования guard-а.
const LoginPath = "/auth/login"

// authFailuresTotal — отказы guard-а по причинам.
var authFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_auth_failures_total",
		Help: "Количество запросов, отклонённых Bearer guard-ом",
	},
	[]string{"guard", "reason"},
)

// GuardMessages — тексты ответов guard-а.
type GuardMessages struct {
	// Configuration — секрет не настроен (500)
	Configuration string
	// Missing — нет заголовка или он не Bearer (401)
	Missing string
	// Invalid — токен не прошёл проверку (401)
	Invalid string
}

// AdminMessages — сообщения admin-панели (португальский).
var AdminMessages = GuardMessages{
	Configuration: "JWT_SECRET não configurado",
	Missing:       "Token não fornecido",
	Invalid:       "Token inválido ou expirado",
}

// TechnicianMessages — сообщения приложения техников (английский).
var TechnicianMessages = GuardMessages{
	Configuration: "JWT secret not configured",
	Missing:       "Token not provided",
	Invalid:       "Invalid or expired token",
}

// ClaimMapper превращает проверенные claims в субъекта.
// Ошибка, оборачивающая auth.ErrInvalidCredential, даёт ответ 401.
type ClaimMapper func(claims *auth.Claims) (*model.Principal, error)

// RoleClaimMapper возвращает маппинг, присваивающий субъекту роль guard-а.
// Токен с claim role другой роли отклоняется.
func RoleClaimMapper(role string) ClaimMapper {
	return func(claims *auth.Claims) (*model.Principal, error) {
		if !rbac.Matches(claims.Role, role) {
			return nil, fmt.Errorf("%w: токен выпущен для роли %q", auth.ErrInvalidCredential, claims.Role)
		}
		return &model.Principal{
			ID:    claims.Subject,
			Email: claims.Email,
			Role:  role,
		}, nil
	}
}

// GuardConfig — параметры guard-а.
type GuardConfig struct {
	// Name — имя guard-а в логах и метриках (admin, technician)
	Name string
	// MountPrefix — префикс маршрутов, на которые смонтирован guard (/api/admin)
	MountPrefix string
	// Secret — источник секрета подписи, читается на каждом запросе
	Secret auth.SecretResolver
	// Leeway — допустимое отклонение часов (PORTAL_JWT_LEEWAY)
	Leeway time.Duration
	// MapClaims — маппинг claims в субъекта
	MapClaims ClaimMapper
	// Messages — тексты ответов
	Messages GuardMessages
}

// BearerGuard — middleware проверки Bearer-токена.
type BearerGuard struct {
	name      string
	prefix    string
	verifier  *auth.Verifier
	mapClaims ClaimMapper
	messages  GuardMessages
	logger    *slog.Logger
}

// NewBearerGuard создаёт guard.
func NewBearerGuard(cfg GuardConfig, logger *slog.Logger) *BearerGuard {
	return &BearerGuard{
		name:      cfg.Name,
		prefix:    strings.TrimRight(cfg.MountPrefix, "/"),
		verifier:  auth.NewVerifier(cfg.Secret, cfg.Leeway),
		mapClaims: cfg.MapClaims,
		messages:  cfg.Messages,
		logger:    logger.With(slog.String("component", "bearer_guard"), slog.String("guard", cfg.Name)),
	}
}

// Messages возвращает тексты ответов guard-а (используются и обработчиком входа).
func (g *BearerGuard) Messages() GuardMessages {
	return g.messages
}

// Middleware возвращает HTTP middleware guard-а.
//
// Порядок проверок:
//  1. секрет не настроен → 500
//  2. нет заголовка или не "Bearer " → 401
//  3. подпись, алгоритм или срок действия не прошли → 401
//
// При успехе субъект помещается в контекст.
func (g *BearerGuard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.isBypassed(r) {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := g.Authenticate(r)
			if err != nil {
				g.reject(w, r, err)
				return
			}

			if h, ok := r.Context().Value(contextKeyPrincipalHolder).(*principalHolder); ok {
				h.id, h.role = principal.ID, principal.Role
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authenticate проверяет заголовок Authorization запроса.
// Ошибки оборачивают auth.ErrConfiguration, auth.ErrMissingCredential
// или auth.ErrInvalidCredential.
func (g *BearerGuard) Authenticate(r *http.Request) (*model.Principal, error) {
	if !g.verifier.Configured() {
		return nil, auth.ErrConfiguration
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, auth.ErrMissingCredential
	}

	claims, err := g.verifier.Verify(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, err
	}
	return g.mapClaims(claims)
}

// isBypassed — POST {prefix}/auth/login проходит без токена.
func (g *BearerGuard) isBypassed(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	rel, ok := strings.CutPrefix(r.URL.Path, g.prefix)
	return ok && rel == LoginPath
}

// reject пишет ответ отказа по типу ошибки.
func (g *BearerGuard) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrConfiguration):
		authFailuresTotal.WithLabelValues(g.name, "configuration").Inc()
		g.logger.Error("Секрет подписи токенов не настроен",
			slog.String("path", r.URL.Path),
		)
		apierrors.InternalError(w, g.messages.Configuration)

	case errors.Is(err, auth.ErrMissingCredential):
		authFailuresTotal.WithLabelValues(g.name, "missing").Inc()
		apierrors.Unauthorized(w, g.messages.Missing)

	default:
		authFailuresTotal.WithLabelValues(g.name, "invalid").Inc()
		g.logger.Debug("Токен не прошёл проверку",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
		)
		apierrors.Unauthorized(w, g.messages.Invalid)
	}
}

// --- Context helpers ---

// PrincipalFromContext извлекает субъекта из контекста запроса.
// Возвращает nil, если guard не пропускал запрос.
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(ContextKeyPrincipal).(*model.Principal)
	return p
}

// principalHolder передаёт субъекта из guard-а обратно во внешний middleware.
type principalHolder struct {
	id   string
	role string
}

func withPrincipalHolder(ctx context.Context, h *principalHolder) context.Context {
	return context.WithValue(ctx, contextKeyPrincipalHolder, h)
}

// WithPrincipal помещает субъекта в контекст (для тестов обработчиков).
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}
