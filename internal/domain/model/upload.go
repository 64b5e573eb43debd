package model

import "time"

// ContentType — категория вложения техника.
type ContentType string

const (
	// ContentImage — изображение (image/*)
	ContentImage ContentType = "image"
	// ContentVideo — видео (video/*)
	ContentVideo ContentType = "video"
	// ContentNote — текстовая заметка, бинарное вложение отсутствует
	ContentNote ContentType = "note"
)

// IsValid проверяет, является ли категория допустимой.
func (c ContentType) IsValid() bool {
	switch c {
	case ContentImage, ContentVideo, ContentNote:
		return true
	default:
		return false
	}
}

// Upload — запись о загруженном материале.
// Хранится в таблице uploads; бинарные данные — в хранилище (local/s3).
type Upload struct {
	// ID — UUID записи
	ID          string
	Title       string
	Description string
	ContentType ContentType
	// OriginalFilename — имя файла у техника (пусто для заметки)
	OriginalFilename string
	// MIMEType — MIME-тип, присланный клиентом (пусто для заметки)
	MIMEType string
	// SizeBytes — размер бинарных данных (0 для заметки)
	SizeBytes int64
	// StorageBackend — local или s3 (пусто для заметки)
	StorageBackend string
	// StorageKey — ключ объекта в хранилище (пусто для заметки)
	StorageKey string
	// Checksum — SHA-256 содержимого (пусто для заметки)
	Checksum string
	// UploadedBy — sub техника
	UploadedBy string
	// UploadedByEmail — email техника на момент загрузки
	UploadedByEmail string
	CreatedAt       time.Time
}

// HasBinary сообщает, есть ли у записи бинарное вложение.
func (u *Upload) HasBinary() bool {
	return u.StorageKey != ""
}

// UploadFilter — фильтр списка загрузок.
type UploadFilter struct {
	// UploadedBy — только загрузки указанного техника (nil — все)
	UploadedBy *string
	// ContentType — только указанная категория (nil — все)
	ContentType *ContentType
	Limit       int
	Offset      int
}
