// Пакет draft — черновик материала техника и конечный автомат его загрузки.
//
// Жизненный цикл: closed → typeMenuOpen → formOpen → uploading → done → closed.
// Отмена возможна из typeMenuOpen и formOpen, ошибка загрузки возвращает
// автомат в formOpen с сохранённым черновиком.
//
// Категория вложения определяется по MIME-типу в момент выбора файла,
// лимит размера проверяется по уже новой категории.
//
// Потокобезопасен через sync.Mutex: прогресс сообщается из writer-а хранилища.
package draft

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/infraservicos/portal-api/internal/domain/model"
)

// State — состояние автомата загрузки.
type State string

const (
	StateClosed       State = "closed"
	StateTypeMenuOpen State = "type_menu_open"
	StateFormOpen     State = "form_open"
	StateUploading    State = "uploading"
	StateDone         State = "done"
)

// validTransitions — матрица допустимых переходов.
var validTransitions = map[State]map[State]bool{
	StateClosed:       {StateTypeMenuOpen: true},
	StateTypeMenuOpen: {StateFormOpen: true, StateClosed: true},
	StateFormOpen:     {StateUploading: true, StateClosed: true},
	StateUploading:    {StateDone: true, StateFormOpen: true},
	StateDone:         {StateClosed: true},
}

// ErrValidation — черновик не проходит проверку. Блокирует только отправку.
var ErrValidation = errors.New("черновик не прошёл проверку")

// Ошибки валидации отправки.
var (
	ErrTitleRequired = fmt.Errorf("%w: заголовок обязателен", ErrValidation)
	ErrFileRequired  = fmt.Errorf("%w: для фото и видео нужен файл", ErrValidation)
)

// SizeError — файл превышает лимит своей категории.
type SizeError struct {
	Category model.ContentType
	Size     int64
	Limit    int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("размер %d байт превышает лимит %d байт для категории %s", e.Size, e.Limit, e.Category)
}

// Unwrap позволяет сопоставлять SizeError с ErrValidation через errors.Is.
func (e *SizeError) Unwrap() error {
	return ErrValidation
}

// TransitionError — ошибка перехода между состояниями.
type TransitionError struct {
	Code    string // INVALID_TRANSITION
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// File — выбранный техником файл (метаданные, без содержимого).
type File struct {
	Name     string
	MIMEType string
	Size     int64
}

// Draft — черновик материала.
// Инвариант отправки: заголовок не пуст И (заметка ИЛИ файл прикреплён).
type Draft struct {
	File        *File
	Title       string
	Description string
	ContentType model.ContentType
}

// CanSubmit проверяет инвариант отправки черновика.
func (d Draft) CanSubmit() bool {
	return d.submitError() == nil
}

func (d Draft) submitError() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	if d.ContentType != model.ContentNote && d.File == nil {
		return ErrFileRequired
	}
	return nil
}

// Limits — лимиты размера по категориям.
type Limits struct {
	MaxImageBytes int64
	MaxVideoBytes int64
}

// DefaultLimits возвращает стандартные лимиты: 20 MiB для фото, 300 MiB для видео.
func DefaultLimits() Limits {
	return Limits{MaxImageBytes: 20 << 20, MaxVideoBytes: 300 << 20}
}

// LimitFor возвращает лимит категории. У заметки бинарных данных нет, лимит 0.
func (l Limits) LimitFor(c model.ContentType) int64 {
	switch c {
	case model.ContentImage:
		return l.MaxImageBytes
	case model.ContentVideo:
		return l.MaxVideoBytes
	default:
		return 0
	}
}

// Classify определяет категорию по MIME-типу:
// image/* → image, video/* → video, всё остальное → note.
func Classify(mimeType string) model.ContentType {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return model.ContentImage
	case strings.HasPrefix(mt, "video/"):
		return model.ContentVideo
	default:
		return model.ContentNote
	}
}

// DefaultTitle формирует заголовок из имени файла: без расширения,
// разделители _ - . заменены пробелами.
// foto_obra-bloco.2.jpg → "foto obra bloco 2"
func DefaultTitle(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}

// Selection — результат выбора файла.
type Selection struct {
	Category model.ContentType
	// Attached — файл прикреплён (false для файлов, ставших заметкой)
	Attached bool
	// Limit — лимит, по которому проверен размер
	Limit int64
}

// TransitionRecord — запись о переходе автомата.
type TransitionRecord struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// Machine — автомат загрузки одного черновика.
type Machine struct {
	mu        sync.Mutex
	state     State
	draft     Draft
	limits    Limits
	received  int64
	listeners []func(Draft)
	history   []TransitionRecord
}

// NewMachine создаёт автомат в состоянии closed.
func NewMachine(limits Limits) *Machine {
	return &Machine{
		state:   StateClosed,
		limits:  limits,
		history: make([]TransitionRecord, 0, 5),
	}
}

// State возвращает текущее состояние.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Draft возвращает копию текущего черновика.
func (m *Machine) Draft() Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.draft
	if d.File != nil {
		f := *d.File
		d.File = &f
	}
	return d
}

// OnComplete регистрирует обработчик успешного завершения загрузки.
// Обработчик получает отправленный черновик и вызывается вне мьютекса.
func (m *Machine) OnComplete(fn func(Draft)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Open открывает меню выбора типа материала.
func (m *Machine) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(StateTypeMenuOpen)
}

// ChooseType выбирает тип материала и открывает форму.
func (m *Machine) ChooseType(c model.ContentType) error {
	if !c.IsValid() {
		return fmt.Errorf("%w: недопустимый тип %q, допустимые: image, video, note", ErrValidation, c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transition(StateFormOpen); err != nil {
		return err
	}
	m.draft.ContentType = c
	return nil
}

// SelectFile прикрепляет файл к черновику.
//
// Категория пересчитывается по MIME-типу до проверки размера.
// Файл, не являющийся фото или видео, превращает черновик в заметку
// без бинарного вложения. Файл сверх лимита отклоняется, черновик не меняется.
// Пустой заголовок заполняется из имени файла.
func (m *Machine) SelectFile(f File) (Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateFormOpen {
		return Selection{}, m.invalid("выбор файла", StateFormOpen)
	}

	category := Classify(f.MIMEType)
	sel := Selection{Category: category, Limit: m.limits.LimitFor(category)}

	if category != model.ContentNote {
		if f.Size < 0 || f.Size > sel.Limit {
			return sel, &SizeError{Category: category, Size: f.Size, Limit: sel.Limit}
		}
		file := f
		m.draft.File = &file
		sel.Attached = true
	} else {
		m.draft.File = nil
	}
	m.draft.ContentType = category

	if strings.TrimSpace(m.draft.Title) == "" {
		m.draft.Title = DefaultTitle(f.Name)
	}
	return sel, nil
}

// SetTitle задаёт заголовок. Введённый вручную заголовок не перезаписывается
// последующим выбором файла.
func (m *Machine) SetTitle(title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateFormOpen {
		return m.invalid("изменение заголовка", StateFormOpen)
	}
	m.draft.Title = strings.TrimSpace(title)
	return nil
}

// SetDescription задаёт описание.
func (m *Machine) SetDescription(desc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateFormOpen {
		return m.invalid("изменение описания", StateFormOpen)
	}
	m.draft.Description = desc
	return nil
}

// Submit переводит автомат в uploading, если черновик можно отправить.
func (m *Machine) Submit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateFormOpen {
		if err := m.draft.submitError(); err != nil {
			return err
		}
	}
	if err := m.transition(StateUploading); err != nil {
		return err
	}
	m.received = 0
	return nil
}

// ReportProgress учитывает n переданных байт. Вне uploading игнорируется.
func (m *Machine) ReportProgress(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUploading || n <= 0 {
		return
	}
	m.received += n
}

// Progress возвращает прогресс загрузки в процентах (0-100).
func (m *Machine) Progress() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateDone:
		return 100
	case StateUploading:
		if m.draft.File == nil || m.draft.File.Size <= 0 {
			return 0
		}
		p := int(m.received * 100 / m.draft.File.Size)
		if p > 99 {
			// 100% — только после Complete
			p = 99
		}
		return p
	default:
		return 0
	}
}

// Fail возвращает автомат в форму после неудачной загрузки. Черновик сохраняется.
func (m *Machine) Fail() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUploading {
		return m.invalid("ошибка загрузки", StateUploading)
	}
	m.received = 0
	return m.transition(StateFormOpen)
}

// Complete завершает загрузку: черновик очищается, обработчики OnComplete
// получают отправленный черновик.
func (m *Machine) Complete() (Draft, error) {
	m.mu.Lock()
	if m.state != StateUploading {
		err := m.invalid("завершение загрузки", StateUploading)
		m.mu.Unlock()
		return Draft{}, err
	}
	if err := m.transition(StateDone); err != nil {
		m.mu.Unlock()
		return Draft{}, err
	}
	submitted := m.draft
	m.draft = Draft{}
	listeners := append([]func(Draft){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(submitted)
	}
	return submitted, nil
}

// Close закрывает автомат после завершённой загрузки.
func (m *Machine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateDone {
		return m.invalid("закрытие", StateDone)
	}
	return m.transition(StateClosed)
}

// Cancel отменяет черновик из меню или формы. Черновик очищается.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateTypeMenuOpen && m.state != StateFormOpen {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("отмена недопустима в состоянии %s", m.state),
		}
	}
	m.draft = Draft{}
	return m.transition(StateClosed)
}

// History возвращает историю переходов (копия).
func (m *Machine) History() []TransitionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]TransitionRecord, len(m.history))
	copy(result, m.history)
	return result
}

// transition выполняет переход. Вызывается под мьютексом.
func (m *Machine) transition(target State) error {
	if !validTransitions[m.state][target] {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("переход %s → %s недопустим", m.state, target),
		}
	}
	m.history = append(m.history, TransitionRecord{
		From:      m.state,
		To:        target,
		Timestamp: time.Now().UTC(),
	})
	m.state = target
	return nil
}

func (m *Machine) invalid(op string, want State) error {
	return &TransitionError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("%s допустимо только в состоянии %s, текущее %s", op, want, m.state),
	}
}
