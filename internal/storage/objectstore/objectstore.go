// Пакет objectstore — хранение вложений в S3-совместимом хранилище
// (AWS S3, MinIO). Тело загрузки сначала пишется во временный файл
// с подсчётом SHA-256, затем отправляется PutObject с известной длиной.
package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/infraservicos/portal-api/internal/storage"
)

// BackendName — имя бэкенда в записях загрузок.
const BackendName = "s3"

// checksumMetaKey — ключ пользовательских метаданных с SHA-256 объекта.
const checksumMetaKey = "sha256"

// s3API — подмножество методов s3.Client, используемых хранилищем.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config — параметры подключения к S3.
type Config struct {
	Bucket string
	Region string
	// Endpoint — адрес MinIO или другого S3-совместимого сервиса (пусто — AWS)
	Endpoint  string
	AccessKey string
	SecretKey string
	// SpoolDir — директория временных файлов (пусто — os.TempDir)
	SpoolDir string
}

// Store — хранилище вложений в S3.
type Store struct {
	client   s3API
	bucket   string
	spoolDir string
	logger   *slog.Logger
}

// New создаёт клиент S3 по конфигурации.
// Без статических ключей используется стандартная цепочка AWS (env, профиль, IAM роль).
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("загрузка конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO не поддерживает virtual-hosted style
			o.UsePathStyle = true
		}
	})

	return newStore(client, cfg.Bucket, cfg.SpoolDir, logger), nil
}

func newStore(client s3API, bucket, spoolDir string, logger *slog.Logger) *Store {
	return &Store{
		client:   client,
		bucket:   bucket,
		spoolDir: spoolDir,
		logger:   logger.With(slog.String("component", "objectstore"), slog.String("bucket", bucket)),
	}
}

// Name возвращает имя бэкенда.
func (s *Store) Name() string {
	return BackendName
}

// Put записывает объект. Данные буферизуются во временном файле:
// PutObject требует известную длину тела, multipart-поток её не даёт.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, contentType string) (*storage.PutResult, error) {
	if !storage.ValidKey(key) {
		return nil, fmt.Errorf("недопустимый ключ объекта: %q", key)
	}

	spool, err := os.CreateTemp(s.spoolDir, "portal-upload-*")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	hasher := sha256.New()
	size, err := io.Copy(spool, io.TeeReader(r, hasher))
	if err != nil {
		return nil, fmt.Errorf("ошибка буферизации данных: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("ошибка позиционирования временного файла: %w", err)
	}
	checksum := hex.EncodeToString(hasher.Sum(nil))

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          spool,
		ContentLength: aws.Int64(size),
		Metadata:      map[string]string{checksumMetaKey: checksum},
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("ошибка PutObject %s: %w", key, err)
	}

	s.logger.Debug("Объект записан",
		slog.String("key", key),
		slog.Int64("size", size),
	)

	return &storage.PutResult{Key: key, Size: size, Checksum: checksum}, nil
}

// Open открывает объект для чтения.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("ошибка GetObject %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete удаляет объект. S3 не сообщает об отсутствии ключа при удалении.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка DeleteObject %s: %w", key, err)
	}
	return nil
}
