// uploads.go — приём материалов техников: черновик, хранилище, БД, уведомление.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/infraservicos/portal-api/internal/domain/draft"
	"github.com/infraservicos/portal-api/internal/domain/model"
	"github.com/infraservicos/portal-api/internal/i18n"
	"github.com/infraservicos/portal-api/internal/notify"
	"github.com/infraservicos/portal-api/internal/repository"
	"github.com/infraservicos/portal-api/internal/storage"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_uploads_total",
			Help: "Количество загрузок по категории и результату",
		},
		[]string{"content_type", "result"},
	)
	uploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_upload_bytes_total",
			Help: "Объём сохранённых бинарных данных",
		},
		[]string{"backend"},
	)
)

// DraftInput — поля формы загрузки.
type DraftInput struct {
	// ContentType — тип, выбранный в меню (image, video, note)
	ContentType model.ContentType
	Title       string
	Description string
	// File — прикреплённый файл (nil — без файла)
	File *FileInput
}

// FileInput — файл из multipart-формы.
type FileInput struct {
	Name     string
	MIMEType string
	// Size — заявленный размер (из заголовка части)
	Size int64
	// Reader — содержимое, nil при проверке без передачи данных
	Reader io.Reader
}

// ValidationResult — результат предварительной проверки черновика.
type ValidationResult struct {
	Valid       bool
	ContentType model.ContentType
	Title       string
	// Attached — файл будет сохранён (false для файла, ставшего заметкой)
	Attached bool
	// LimitBytes — лимит категории (0 для заметки)
	LimitBytes int64
	// Err — причина отказа (nil, если Valid)
	Err error
}

// UploadService — загрузки техников.
type UploadService struct {
	db       repository.DB
	uploads  repository.UploadRepository
	txRunner *repository.TxRunner
	store    storage.ObjectStore
	notifier notify.Notifier
	bundle   *i18n.Bundle
	limits   draft.Limits
	logger   *slog.Logger
}

// NewUploadService создаёт сервис загрузок.
func NewUploadService(
	db repository.DB,
	store storage.ObjectStore,
	notifier notify.Notifier,
	bundle *i18n.Bundle,
	limits draft.Limits,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		db:       db,
		uploads:  repository.NewUploadRepository(db),
		txRunner: repository.NewTxRunner(db),
		store:    store,
		notifier: notifier,
		bundle:   bundle,
		limits:   limits,
		logger:   logger.With(slog.String("component", "upload_service")),
	}
}

// Limits возвращает лимиты размера по категориям.
func (s *UploadService) Limits() draft.Limits {
	return s.limits
}

// Validate прогоняет черновик через автомат без передачи данных.
// Ошибка возвращается только при некорректном использовании автомата,
// отказ проверки описан в ValidationResult.Err.
func (s *UploadService) Validate(in DraftInput) (*ValidationResult, error) {
	m := draft.NewMachine(s.limits)
	sel, err := s.prepare(m, in)
	if err != nil {
		if isDraftRejection(err) {
			return &ValidationResult{ContentType: m.Draft().ContentType, Title: m.Draft().Title, LimitBytes: sel.Limit, Err: err}, nil
		}
		return nil, err
	}

	d := m.Draft()
	res := &ValidationResult{
		ContentType: d.ContentType,
		Title:       d.Title,
		Attached:    sel.Attached,
		LimitBytes:  sel.Limit,
	}
	if d.CanSubmit() {
		res.Valid = true
	} else {
		res.Err = m.Submit()
	}
	return res, nil
}

// Upload принимает материал техника.
//
// Порядок: черновик → Submit → хранилище (если есть файл) → запись в БД →
// Complete → уведомление. При ошибке хранилища или БД автомат возвращается
// в форму, сохранённые бинарные данные удаляются.
func (s *UploadService) Upload(ctx context.Context, principal *model.Principal, in DraftInput) (*model.Upload, error) {
	m := draft.NewMachine(s.limits)
	sel, err := s.prepare(m, in)
	if err != nil {
		uploadsTotal.WithLabelValues(categoryLabel(sel.Category), "rejected").Inc()
		return nil, err
	}
	if err := m.Submit(); err != nil {
		uploadsTotal.WithLabelValues(string(m.Draft().ContentType), "rejected").Inc()
		return nil, err
	}

	d := m.Draft()
	upload := &model.Upload{
		ID:              uuid.NewString(),
		Title:           d.Title,
		Description:     d.Description,
		ContentType:     d.ContentType,
		UploadedBy:      principal.ID,
		UploadedByEmail: principal.Email,
	}

	if d.File != nil {
		if err := s.storeBinary(ctx, m, principal, in.File, sel.Limit, upload); err != nil {
			_ = m.Fail()
			uploadsTotal.WithLabelValues(string(d.ContentType), "failed").Inc()
			return nil, err
		}
	}

	if err := s.uploads.Create(ctx, upload); err != nil {
		s.discardBinary(upload)
		_ = m.Fail()
		uploadsTotal.WithLabelValues(string(d.ContentType), "failed").Inc()
		return nil, fmt.Errorf("сохранение загрузки: %w", err)
	}

	m.OnComplete(func(draft.Draft) {
		s.notifyUploaded(ctx, upload)
	})
	if _, err := m.Complete(); err != nil {
		return nil, err
	}
	_ = m.Close()

	uploadsTotal.WithLabelValues(string(upload.ContentType), "stored").Inc()
	s.logger.Info("Материал загружен",
		slog.String("upload_id", upload.ID),
		slog.String("content_type", string(upload.ContentType)),
		slog.Int64("size_bytes", upload.SizeBytes),
		slog.String("uploaded_by", upload.UploadedBy),
	)
	return upload, nil
}

// prepare открывает автомат и заполняет форму.
func (s *UploadService) prepare(m *draft.Machine, in DraftInput) (draft.Selection, error) {
	if err := m.Open(); err != nil {
		return draft.Selection{}, err
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = model.ContentNote
		if in.File != nil {
			contentType = draft.Classify(in.File.MIMEType)
		}
	}
	if err := m.ChooseType(contentType); err != nil {
		return draft.Selection{Category: contentType}, err
	}
	if err := m.SetTitle(in.Title); err != nil {
		return draft.Selection{}, err
	}
	if err := m.SetDescription(in.Description); err != nil {
		return draft.Selection{}, err
	}

	sel := draft.Selection{Category: contentType}
	if in.File != nil {
		var err error
		sel, err = m.SelectFile(draft.File{Name: in.File.Name, MIMEType: in.File.MIMEType, Size: in.File.Size})
		if err != nil {
			return sel, err
		}
	}
	return sel, nil
}

// storeBinary передаёт файл в хранилище с учётом прогресса и лимита категории.
func (s *UploadService) storeBinary(ctx context.Context, m *draft.Machine, principal *model.Principal, f *FileInput, limit int64, upload *model.Upload) error {
	if f.Reader == nil {
		return fmt.Errorf("%w: содержимое файла не передано", draft.ErrFileRequired)
	}

	owner := principal.Email
	if owner == "" {
		owner = principal.ID
	}
	key := storage.GenerateKey(f.Name, owner)

	pr := &progressReader{r: f.Reader, m: m, limit: limit, category: upload.ContentType}
	res, err := s.store.Put(ctx, key, pr, f.MIMEType)
	if err != nil {
		var sizeErr *draft.SizeError
		if errors.As(err, &sizeErr) {
			return sizeErr
		}
		s.logger.Error("Ошибка сохранения в хранилище",
			slog.String("backend", s.store.Name()),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	upload.OriginalFilename = f.Name
	upload.MIMEType = f.MIMEType
	upload.SizeBytes = res.Size
	upload.StorageBackend = s.store.Name()
	upload.StorageKey = res.Key
	upload.Checksum = res.Checksum
	uploadBytesTotal.WithLabelValues(s.store.Name()).Add(float64(res.Size))
	return nil
}

// discardBinary удаляет бинарные данные записи, которая не попала в БД.
func (s *UploadService) discardBinary(upload *model.Upload) {
	if !upload.HasBinary() {
		return
	}
	// Запрос мог быть отменён, удаление выполняется в собственном контексте
	if err := s.store.Delete(context.Background(), upload.StorageKey); err != nil {
		s.logger.Warn("Не удалось удалить бинарные данные после ошибки БД",
			slog.String("key", upload.StorageKey),
			slog.String("error", err.Error()),
		)
	}
}

// notifyUploaded публикует push-уведомление admin-панели.
// Ошибка доставки логируется и не влияет на результат загрузки.
func (s *UploadService) notifyUploaded(ctx context.Context, upload *model.Upload) {
	// Уведомления получает admin-панель, язык — язык по умолчанию
	lang := i18n.DefaultLang
	who := upload.UploadedByEmail
	if who == "" {
		who = upload.UploadedBy
	}

	payload := notify.PushPayload{
		Title: s.bundle.Translate(lang, "push.upload_title"),
		Body:  s.bundle.Translatef(lang, "push.upload_body", who, upload.Title),
		Data:  notify.PushData{UploadID: upload.ID},
		Actions: []notify.PushAction{
			{Action: "open", Title: s.bundle.Translate(lang, "push.action_open")},
			{Action: "dismiss", Title: s.bundle.Translate(lang, "push.action_dismiss")},
		},
	}

	if err := s.notifier.Notify(context.WithoutCancel(ctx), payload); err != nil {
		s.logger.Warn("Не удалось отправить уведомление о загрузке",
			slog.String("upload_id", upload.ID),
			slog.String("error", err.Error()),
		)
	}
}

// ListAll возвращает загрузки всех техников.
func (s *UploadService) ListAll(ctx context.Context, filter model.UploadFilter) ([]*model.Upload, int, error) {
	filter.UploadedBy = nil
	return s.list(ctx, filter)
}

// ListOwn возвращает загрузки техника.
func (s *UploadService) ListOwn(ctx context.Context, principal *model.Principal, limit, offset int) ([]*model.Upload, int, error) {
	owner := principal.ID
	return s.list(ctx, model.UploadFilter{UploadedBy: &owner, Limit: limit, Offset: offset})
}

func (s *UploadService) list(ctx context.Context, filter model.UploadFilter) ([]*model.Upload, int, error) {
	if filter.ContentType != nil && !filter.ContentType.IsValid() {
		return nil, 0, fmt.Errorf("%w: недопустимый content_type %q", ErrValidation, *filter.ContentType)
	}

	uploads, err := s.uploads.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("получение загрузок: %w", err)
	}
	total, err := s.uploads.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт загрузок: %w", err)
	}
	return uploads, total, nil
}

// Get возвращает метаданные загрузки. Некорректный UUID — ErrNotFound.
func (s *UploadService) Get(ctx context.Context, id string) (*model.Upload, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	u, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение загрузки: %w", err)
	}
	return u, nil
}

// OpenContent открывает бинарные данные загрузки.
// У заметки содержимого нет — ErrNotFound. Вызывающий закрывает reader.
func (s *UploadService) OpenContent(ctx context.Context, id string) (*model.Upload, io.ReadCloser, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !u.HasBinary() {
		return nil, nil, ErrNotFound
	}

	rc, err := s.store.Open(ctx, u.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("Бинарные данные загрузки отсутствуют в хранилище",
				slog.String("upload_id", u.ID),
				slog.String("key", u.StorageKey),
			)
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return u, rc, nil
}

// Delete удаляет запись и бинарные данные в одной транзакции:
// если хранилище не удалило объект, запись остаётся.
func (s *UploadService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	var deleted *model.Upload
	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		u, err := repository.NewUploadRepository(tx).Delete(ctx, id)
		if err != nil {
			return err
		}
		if u.HasBinary() {
			if err := s.store.Delete(ctx, u.StorageKey); err != nil {
				return fmt.Errorf("%w: %v", ErrStorage, err)
			}
		}
		deleted = u
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.logger.Info("Загрузка удалена",
		slog.String("upload_id", deleted.ID),
		slog.String("content_type", string(deleted.ContentType)),
	)
	return nil
}

// categoryLabel — значение метки content_type (без произвольного ввода клиента).
func categoryLabel(c model.ContentType) string {
	if !c.IsValid() {
		return "unknown"
	}
	return string(c)
}

// isDraftRejection — отказ проверки черновика (не ошибка автомата).
func isDraftRejection(err error) bool {
	var sizeErr *draft.SizeError
	return errors.Is(err, draft.ErrValidation) || errors.As(err, &sizeErr)
}

// progressReader сообщает автомату о переданных байтах и обрывает
// передачу сверх лимита категории (заявленный размер мог быть занижен).
type progressReader struct {
	r        io.Reader
	m        *draft.Machine
	limit    int64
	category model.ContentType
	n        int64
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.n += int64(n)
		p.m.ReportProgress(int64(n))
		if p.n > p.limit {
			return n, &draft.SizeError{Category: p.category, Size: p.n, Limit: p.limit}
		}
	}
	return n, err
}
