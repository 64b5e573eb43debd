package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/infraservicos/portal-api/internal/domain/model"
)

// UserRepository — интерфейс CRUD для таблицы users.
type UserRepository interface {
	// Create создаёт учётную запись. Дубликат (role, email) → ErrConflict.
	Create(ctx context.Context, a *model.Account) error
	// GetByID возвращает учётную запись по UUID.
	GetByID(ctx context.Context, id string) (*model.Account, error)
	// GetByEmail возвращает учётную запись роли по email.
	GetByEmail(ctx context.Context, role, email string) (*model.Account, error)
	// List возвращает учётные записи с фильтром по роли.
	List(ctx context.Context, role *string, limit, offset int) ([]*model.Account, error)
	// Count возвращает количество учётных записей.
	Count(ctx context.Context, role *string) (int, error)
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий учётных записей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, email, name, role, password_hash, password_salt, active, created_at, updated_at`

// scanAccount сканирует строку результата в модель Account.
func scanAccount(row pgx.Row) (*model.Account, error) {
	a := &model.Account{}
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.Role, &a.PasswordHash, &a.PasswordSalt,
		&a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (r *userRepo) Create(ctx context.Context, a *model.Account) error {
	query := `
		INSERT INTO users (id, email, name, role, password_hash, password_salt, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.Email, a.Name, a.Role, a.PasswordHash, a.PasswordSalt, a.Active,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: учётная запись %s с ролью %s уже существует", ErrConflict, a.Email, a.Role)
		}
		return fmt.Errorf("ошибка создания учётной записи: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	a, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения учётной записи: %w", err)
	}
	return a, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, role, email string) (*model.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE role = $1 AND email = $2`, userColumns)
	a, err := scanAccount(r.db.QueryRow(ctx, query, role, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения учётной записи: %w", err)
	}
	return a, nil
}

func (r *userRepo) List(ctx context.Context, role *string, limit, offset int) ([]*model.Account, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if role != nil {
		query := fmt.Sprintf(`SELECT %s FROM users WHERE role = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userColumns)
		rows, err = r.db.Query(ctx, query, *role, limit, offset)
	} else {
		query := fmt.Sprintf(`SELECT %s FROM users
			ORDER BY created_at DESC LIMIT $1 OFFSET $2`, userColumns)
		rows, err = r.db.Query(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка учётных записей: %w", err)
	}
	defer rows.Close()

	var result []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования учётной записи: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *userRepo) Count(ctx context.Context, role *string) (int, error) {
	var (
		count int
		err   error
	)
	if role != nil {
		err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, *role).Scan(&count)
	} else {
		err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта учётных записей: %w", err)
	}
	return count, nil
}
