package filestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/infraservicos/portal-api/internal/storage"
)

// Проверка соответствия интерфейсу.
var _ storage.ObjectStore = (*FileStore)(nil)

// TestNew_CreatesDirectory проверяет создание директории данных.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if fs.DataDir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, fs.DataDir())
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestPutOpenDelete проверяет полный цикл хранения файла.
func TestPutOpenDelete(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	ctx := context.Background()

	content := []byte("Foto da obra: fachada norte.")
	key := storage.GenerateKey("fachada.jpg", "tecnico")

	result, err := fs.Put(ctx, key, bytes.NewReader(content), "image/jpeg")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}
	expected := sha256.Sum256(content)
	if result.Checksum != hex.EncodeToString(expected[:]) {
		t.Errorf("checksum: ожидалось %x, получено %s", expected, result.Checksum)
	}
	if _, err := os.Stat(filepath.Join(fs.DataDir(), key+".tmp")); !os.IsNotExist(err) {
		t.Error("временный файл не должен оставаться после записи")
	}

	rc, err := fs.Open(ctx, key)
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}

	if err := fs.Delete(ctx, key); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if _, err := fs.Open(ctx, key); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("ожидалась ErrObjectNotFound, получено %v", err)
	}
	// Повторное удаление не является ошибкой
	if err := fs.Delete(ctx, key); err != nil {
		t.Errorf("повторное удаление вернуло ошибку: %v", err)
	}
}

// failingReader возвращает ошибку после первой порции данных.
type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.sent {
		return 0, errors.New("соединение разорвано")
	}
	r.sent = true
	return copy(p, "partial"), nil
}

// TestPut_ReaderError проверяет удаление temp файла при ошибке чтения.
func TestPut_ReaderError(t *testing.T) {
	fs, _ := New(t.TempDir())

	if _, err := fs.Put(context.Background(), "broken.mp4", &failingReader{}, "video/mp4"); err == nil {
		t.Fatal("ожидалась ошибка записи")
	}

	entries, _ := os.ReadDir(fs.DataDir())
	if len(entries) != 0 {
		t.Errorf("после ошибки в директории остались файлы: %d", len(entries))
	}
}

func TestInvalidKeys(t *testing.T) {
	fs, _ := New(t.TempDir())
	ctx := context.Background()

	if _, err := fs.Put(ctx, "../escape", bytes.NewReader(nil), ""); err == nil {
		t.Error("Put: ожидалась ошибка для ключа с ..")
	}
	if _, err := fs.Open(ctx, "a/b"); err == nil {
		t.Error("Open: ожидалась ошибка для ключа с /")
	}
	if err := fs.Delete(ctx, ""); err == nil {
		t.Error("Delete: ожидалась ошибка для пустого ключа")
	}
}

func TestPut_CancelledContext(t *testing.T) {
	fs, _ := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := fs.Put(ctx, "x.jpg", bytes.NewReader([]byte("x")), ""); !errors.Is(err, context.Canceled) {
		t.Errorf("ожидалась context.Canceled, получено %v", err)
	}
}
