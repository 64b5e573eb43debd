// Пакет service — бизнес-логика portal-api.
// auth.go — вход по email и паролю, управление учётными записями.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/infraservicos/portal-api/internal/auth"
	"github.com/infraservicos/portal-api/internal/domain/model"
	"github.com/infraservicos/portal-api/internal/domain/rbac"
	"github.com/infraservicos/portal-api/internal/repository"
)

// MinPasswordLength — минимальная длина пароля учётной записи.
const MinPasswordLength = 8

// LoginResult — результат успешного входа.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *model.Account
}

// CreateAccountInput — параметры новой учётной записи.
type CreateAccountInput struct {
	Email    string
	Name     string
	Role     string
	Password string
}

// AuthService — вход и учётные записи администраторов и техников.
type AuthService struct {
	users         repository.UserRepository
	issuers       map[string]*auth.Issuer
	logger        *slog.Logger
	checkPassword func(password string, hash, salt []byte) bool
}

// NewAuthService создаёт сервис входа.
// issuers — выпуск токенов по ролям (admin и technician подписываются разными секретами).
func NewAuthService(users repository.UserRepository, issuers map[string]*auth.Issuer, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:         users,
		issuers:       issuers,
		logger:        logger.With(slog.String("component", "auth_service")),
		checkPassword: auth.CheckPassword,
	}
}

// Login проверяет email и пароль и выпускает токен роли.
// Неизвестный email, неверный пароль и отключённая учётная запись
// неразличимы для клиента: все дают ErrInvalidCredentials.
// Без секрета роли возвращается auth.ErrConfiguration до проверки учётных данных.
func (s *AuthService) Login(ctx context.Context, role, email, password string) (*LoginResult, error) {
	issuer, ok := s.issuers[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if !issuer.Configured() {
		s.logger.Error("Вход невозможен: секрет подписи роли не настроен",
			slog.String("role", role),
		)
		return nil, auth.ErrConfiguration
	}

	account, err := s.users.GetByEmail(ctx, role, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// argon2id выполняется и здесь: время ответа не выдаёт существование email
			hash, salt := auth.DummyCredential()
			s.checkPassword(password, hash, salt)
			s.logger.Info("Вход отклонён: учётная запись не найдена",
				slog.String("role", role),
			)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("получение учётной записи: %w", err)
	}

	if !s.checkPassword(password, account.PasswordHash, account.PasswordSalt) {
		s.logger.Info("Вход отклонён: неверный пароль",
			slog.String("role", role),
			slog.String("user_id", account.ID),
		)
		return nil, ErrInvalidCredentials
	}
	if !account.Active {
		s.logger.Info("Вход отклонён: учётная запись отключена",
			slog.String("role", role),
			slog.String("user_id", account.ID),
		)
		return nil, ErrInvalidCredentials
	}

	token, exp, err := issuer.Issue(account.ID, account.Email, role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Вход выполнен",
		slog.String("role", role),
		slog.String("user_id", account.ID),
	)
	return &LoginResult{Token: token, ExpiresAt: exp, Account: account}, nil
}

// CreateAccount создаёт учётную запись с argon2id-хэшем пароля.
func (s *AuthService) CreateAccount(ctx context.Context, in CreateAccountInput) (*model.Account, error) {
	role, err := rbac.ParseRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRole, err)
	}

	email := normalizeEmail(in.Email)
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: некорректный email %q", ErrValidation, in.Email)
	}
	if len([]rune(in.Password)) < MinPasswordLength {
		return nil, fmt.Errorf("%w: пароль короче %d символов", ErrValidation, MinPasswordLength)
	}

	hash, salt, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
		PasswordHash: hash,
		PasswordSalt: salt,
		Active:       true,
	}

	if err := s.users.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, fmt.Errorf("создание учётной записи: %w", err)
	}

	s.logger.Info("Учётная запись создана",
		slog.String("user_id", account.ID),
		slog.String("role", role),
	)
	return account, nil
}

// ListAccounts возвращает учётные записи с фильтром по роли и общее количество.
func (s *AuthService) ListAccounts(ctx context.Context, role *string, limit, offset int) ([]*model.Account, int, error) {
	if role != nil && !rbac.IsValidRole(*role) {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidRole, *role)
	}

	accounts, err := s.users.List(ctx, role, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение учётных записей: %w", err)
	}
	total, err := s.users.Count(ctx, role)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт учётных записей: %w", err)
	}
	return accounts, total, nil
}

// validEmail — адрес вида local@domain.tld без отображаемого имени.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}

// normalizeEmail приводит email к нижнему регистру без пробелов.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
