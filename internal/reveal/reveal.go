// Пакет reveal — модель видимости секций лендинга при прокрутке.
//
// Tracker получает события пересечения элемента с viewport и решает,
// когда элемент считается показанным. С TriggerOnce элемент показывается
// ровно один раз за монтирование, после чего наблюдение прекращается.
// Без TriggerOnce видимость следует за пересечением в обе стороны.
package reveal

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Значения по умолчанию.
const (
	DefaultThreshold  = 0.1
	DefaultRootMargin = "0px"
)

// Margin — отступы корневой области в пикселях (CSS-порядок: top right bottom left).
type Margin struct {
	Top, Right, Bottom, Left float64
}

// ParseMargin разбирает CSS-сокращение rootMargin: "10px", "0px 0px -50px",
// "10px 20px". Поддерживаются только пиксели, проценты отклоняются.
func ParseMargin(s string) (Margin, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 4 {
		return Margin{}, fmt.Errorf("rootMargin %q: ожидается от 1 до 4 значений", s)
	}

	vals := make([]float64, len(fields))
	for i, f := range fields {
		if f == "0" {
			continue
		}
		if !strings.HasSuffix(f, "px") {
			return Margin{}, fmt.Errorf("rootMargin %q: значение %q должно быть в px", s, f)
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(f, "px"), 64)
		if err != nil {
			return Margin{}, fmt.Errorf("rootMargin %q: некорректное число %q", s, f)
		}
		vals[i] = v
	}

	switch len(vals) {
	case 1:
		return Margin{vals[0], vals[0], vals[0], vals[0]}, nil
	case 2:
		return Margin{vals[0], vals[1], vals[0], vals[1]}, nil
	case 3:
		return Margin{vals[0], vals[1], vals[2], vals[1]}, nil
	default:
		return Margin{vals[0], vals[1], vals[2], vals[3]}, nil
	}
}

// Options — параметры наблюдения.
type Options struct {
	// Threshold — доля видимой площади (0..1), с которой элемент считается видимым
	Threshold float64
	// RootMargin — CSS-сокращение отступов корневой области
	RootMargin string
	// TriggerOnce — показать один раз и прекратить наблюдение
	TriggerOnce bool
}

// DefaultOptions возвращает параметры по умолчанию: порог 0.1, без отступов, один показ.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, RootMargin: DefaultRootMargin, TriggerOnce: true}
}

// Rect — прямоугольник в координатах viewport.
type Rect struct {
	Top, Left, Width, Height float64
}

// Entry — событие пересечения элемента с корневой областью.
type Entry struct {
	// Target — границы элемента
	Target Rect
	// Root — границы viewport
	Root Rect
}

// Tracker — наблюдатель видимости одного элемента.
type Tracker struct {
	mu          sync.Mutex
	opts        Options
	margin      Margin
	observing   bool
	visible     bool
	transitions int
	onChange    func(visible bool)
}

// NewTracker создаёт наблюдатель. onChange вызывается при каждом изменении видимости
// (может быть nil).
func NewTracker(opts Options, onChange func(visible bool)) (*Tracker, error) {
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v вне диапазона 0..1", opts.Threshold)
	}
	if opts.RootMargin == "" {
		opts.RootMargin = DefaultRootMargin
	}
	margin, err := ParseMargin(opts.RootMargin)
	if err != nil {
		return nil, err
	}
	return &Tracker{opts: opts, margin: margin, onChange: onChange}, nil
}

// Observe начинает наблюдение (монтирование элемента).
// Повторное монтирование сбрасывает видимость.
func (t *Tracker) Observe() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observing = true
	t.visible = false
	t.transitions = 0
}

// Unobserve прекращает наблюдение (размонтирование элемента).
func (t *Tracker) Unobserve() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observing = false
}

// Handle обрабатывает событие пересечения.
// Возвращает текущую видимость после обработки.
func (t *Tracker) Handle(e Entry) bool {
	t.mu.Lock()
	if !t.observing {
		v := t.visible
		t.mu.Unlock()
		return v
	}

	inView := Ratio(e.Target, expand(e.Root, t.margin)) >= t.opts.Threshold && hasArea(e.Target)
	// Нулевой порог означает «хотя бы касание»
	if t.opts.Threshold == 0 {
		inView = intersects(e.Target, expand(e.Root, t.margin))
	}

	changed := inView != t.visible
	if changed {
		t.visible = inView
		t.transitions++
	}
	if t.visible && t.opts.TriggerOnce {
		t.observing = false
	}
	v := t.visible
	cb := t.onChange
	t.mu.Unlock()

	if changed && cb != nil {
		cb(v)
	}
	return v
}

// Visible возвращает текущую видимость.
func (t *Tracker) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// Observing сообщает, продолжается ли наблюдение.
func (t *Tracker) Observing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observing
}

// Transitions возвращает число изменений видимости с последнего Observe.
func (t *Tracker) Transitions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitions
}

// Ratio возвращает долю площади target, лежащую внутри root (0..1).
func Ratio(target, root Rect) float64 {
	area := target.Width * target.Height
	if area <= 0 {
		return 0
	}
	w := overlap(target.Left, target.Left+target.Width, root.Left, root.Left+root.Width)
	h := overlap(target.Top, target.Top+target.Height, root.Top, root.Top+root.Height)
	return (w * h) / area
}

func overlap(a1, a2, b1, b2 float64) float64 {
	lo := max(a1, b1)
	hi := min(a2, b2)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

func intersects(target, root Rect) bool {
	return target.Left <= root.Left+root.Width && target.Left+target.Width >= root.Left &&
		target.Top <= root.Top+root.Height && target.Top+target.Height >= root.Top
}

func hasArea(r Rect) bool {
	return r.Width > 0 && r.Height > 0
}

// expand расширяет (или сужает отрицательными значениями) корневую область.
func expand(r Rect, m Margin) Rect {
	return Rect{
		Top:    r.Top - m.Top,
		Left:   r.Left - m.Left,
		Width:  r.Width + m.Left + m.Right,
		Height: r.Height + m.Top + m.Bottom,
	}
}
