// Пакет storage — общий контракт хранилищ бинарных вложений.
// Реализации: filestore (локальный диск) и objectstore (S3-совместимое).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound — объект отсутствует в хранилище.
var ErrObjectNotFound = errors.New("объект не найден в хранилище")

// PutResult — результат записи объекта.
type PutResult struct {
	// Key — ключ объекта в хранилище
	Key string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 содержимого (hex)
	Checksum string
}

// ObjectStore — хранилище бинарных вложений.
type ObjectStore interface {
	// Name — имя бэкенда (local, s3), сохраняется в записи загрузки.
	Name() string
	// Put записывает содержимое reader под ключом key.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*PutResult, error)
	// Open открывает объект для чтения. Вызывающий код закрывает ReadCloser.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete удаляет объект. Отсутствующий объект не является ошибкой.
	Delete(ctx context.Context, key string) error
}

// GenerateKey генерирует ключ объекта.
// Формат: {name}_{user}_{timestamp}_{uuid}.{ext}
// Пример: fachada_tecnico1_20260221150405_a1b2c3d4.jpg
func GenerateKey(originalFilename, uploadedBy string) string {
	rawExt := filepath.Ext(originalFilename)
	name := sanitize(strings.TrimSuffix(originalFilename, rawExt))
	user := sanitize(uploadedBy)

	ext := ""
	if e := strings.TrimPrefix(strings.ToLower(rawExt), "."); e != "" {
		ext = "." + sanitize(e)
	}

	if len(name) > 50 {
		name = name[:50]
	}
	if len(user) > 20 {
		user = user[:20]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8]

	if ext != "" {
		return fmt.Sprintf("%s_%s_%s_%s%s", name, user, ts, uid, ext)
	}
	return fmt.Sprintf("%s_%s_%s_%s", name, user, ts, uid)
}

// ValidKey проверяет, что ключ не выходит за пределы хранилища.
func ValidKey(key string) bool {
	return key != "" && key != "." && key != ".." &&
		!strings.ContainsAny(key, `/\`) && !strings.Contains(key, "..")
}

// sanitize оставляет только ASCII буквы, цифры, дефис и подчёркивание.
// Буквы с диакритикой (ç, ã, é) отбрасываются: ключ уходит в S3 и в URL.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}
