package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/infraservicos/portal-api/internal/domain/model"
)

// UploadRepository — интерфейс CRUD для таблицы uploads.
type UploadRepository interface {
	// Create сохраняет запись загрузки.
	Create(ctx context.Context, u *model.Upload) error
	// GetByID возвращает загрузку по UUID.
	GetByID(ctx context.Context, id string) (*model.Upload, error)
	// List возвращает загрузки с фильтрацией, новые первыми.
	List(ctx context.Context, filter model.UploadFilter) ([]*model.Upload, error)
	// Count возвращает количество загрузок по фильтру (Limit/Offset игнорируются).
	Count(ctx context.Context, filter model.UploadFilter) (int, error)
	// Delete удаляет запись и возвращает её (для удаления бинарных данных).
	Delete(ctx context.Context, id string) (*model.Upload, error)
}

// uploadRepo — реализация UploadRepository.
type uploadRepo struct {
	db DBTX
}

// NewUploadRepository создаёт репозиторий загрузок.
func NewUploadRepository(db DBTX) UploadRepository {
	return &uploadRepo{db: db}
}

const uploadColumns = `id, title, description, content_type, original_filename, mime_type,
	size_bytes, storage_backend, storage_key, checksum, uploaded_by, uploaded_by_email, created_at`

// scanUpload сканирует строку результата в модель Upload.
func scanUpload(row pgx.Row) (*model.Upload, error) {
	u := &model.Upload{}
	var contentType string
	err := row.Scan(
		&u.ID, &u.Title, &u.Description, &contentType, &u.OriginalFilename, &u.MIMEType,
		&u.SizeBytes, &u.StorageBackend, &u.StorageKey, &u.Checksum,
		&u.UploadedBy, &u.UploadedByEmail, &u.CreatedAt,
	)
	u.ContentType = model.ContentType(contentType)
	return u, err
}

func (r *uploadRepo) Create(ctx context.Context, u *model.Upload) error {
	query := `
		INSERT INTO uploads (id, title, description, content_type, original_filename, mime_type,
			size_bytes, storage_backend, storage_key, checksum, uploaded_by, uploaded_by_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		u.ID, u.Title, u.Description, string(u.ContentType), u.OriginalFilename, u.MIMEType,
		u.SizeBytes, u.StorageBackend, u.StorageKey, u.Checksum, u.UploadedBy, u.UploadedByEmail,
	).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: загрузка с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка сохранения загрузки: %w", err)
	}
	return nil
}

func (r *uploadRepo) GetByID(ctx context.Context, id string) (*model.Upload, error) {
	query := fmt.Sprintf(`SELECT %s FROM uploads WHERE id = $1`, uploadColumns)
	u, err := scanUpload(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения загрузки: %w", err)
	}
	return u, nil
}

// buildUploadWhere строит WHERE-условие и аргументы для фильтрации загрузок.
func buildUploadWhere(filter model.UploadFilter, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	if filter.UploadedBy != nil {
		conditions = append(conditions, fmt.Sprintf("uploaded_by = $%d", argNum))
		args = append(args, *filter.UploadedBy)
		argNum++
	}
	if filter.ContentType != nil {
		conditions = append(conditions, fmt.Sprintf("content_type = $%d", argNum))
		args = append(args, string(*filter.ContentType))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func (r *uploadRepo) List(ctx context.Context, filter model.UploadFilter) ([]*model.Upload, error) {
	where, args := buildUploadWhere(filter, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(`SELECT %s FROM uploads %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, uploadColumns, where, argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка загрузок: %w", err)
	}
	defer rows.Close()

	var result []*model.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования загрузки: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *uploadRepo) Count(ctx context.Context, filter model.UploadFilter) (int, error) {
	where, args := buildUploadWhere(filter, 1)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM uploads %s`, where)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта загрузок: %w", err)
	}
	return count, nil
}

func (r *uploadRepo) Delete(ctx context.Context, id string) (*model.Upload, error) {
	query := fmt.Sprintf(`DELETE FROM uploads WHERE id = $1 RETURNING %s`, uploadColumns)
	u, err := scanUpload(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка удаления загрузки: %w", err)
	}
	return u, nil
}
