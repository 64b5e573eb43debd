package reveal

import (
	"math"
	"testing"
)

var viewport = Rect{Top: 0, Left: 0, Width: 1000, Height: 800}

// at возвращает событие для элемента 1000x200, верх которого на позиции top.
func at(top float64) Entry {
	return Entry{Target: Rect{Top: top, Left: 0, Width: 1000, Height: 200}, Root: viewport}
}

func TestParseMargin(t *testing.T) {
	tests := []struct {
		in      string
		want    Margin
		wantErr bool
	}{
		{"0px", Margin{}, false},
		{"0", Margin{}, false},
		{"10px", Margin{10, 10, 10, 10}, false},
		{"10px 20px", Margin{10, 20, 10, 20}, false},
		{"0px 0px -50px", Margin{0, 0, -50, 0}, false},
		{"1px 2px 3px 4px", Margin{1, 2, 3, 4}, false},
		{"10%", Margin{}, true},
		{"", Margin{}, true},
		{"1px 2px 3px 4px 5px", Margin{}, true},
		{"abcpx", Margin{}, true},
	}
	for _, tt := range tests {
		got, err := ParseMargin(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMargin(%q): ожидалась ошибка", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMargin(%q): неожиданная ошибка %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMargin(%q) = %+v, ожидается %+v", tt.in, got, tt.want)
		}
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		name   string
		target Rect
		want   float64
	}{
		{"полностью внутри", Rect{100, 0, 1000, 200}, 1},
		{"наполовину снизу", Rect{700, 0, 1000, 200}, 0.5},
		{"ниже viewport", Rect{900, 0, 1000, 200}, 0},
		{"нулевая площадь", Rect{100, 0, 0, 0}, 0},
	}
	for _, tt := range tests {
		if got := Ratio(tt.target, viewport); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: Ratio = %v, ожидается %v", tt.name, got, tt.want)
		}
	}
}

func TestNewTracker_Validation(t *testing.T) {
	if _, err := NewTracker(Options{Threshold: 1.5}, nil); err == nil {
		t.Error("ожидалась ошибка для threshold > 1")
	}
	if _, err := NewTracker(Options{Threshold: 0.1, RootMargin: "5em"}, nil); err == nil {
		t.Error("ожидалась ошибка для rootMargin в em")
	}
	tr, err := NewTracker(Options{Threshold: 0.2}, nil)
	if err != nil {
		t.Fatalf("пустой rootMargin должен означать 0px: %v", err)
	}
	if tr.Visible() || tr.Observing() {
		t.Error("новый Tracker не наблюдает и не видим")
	}
}

// С TriggerOnce видимость меняется ровно один раз за монтирование.
func TestTracker_TriggerOnce(t *testing.T) {
	var calls []bool
	tr, err := NewTracker(DefaultOptions(), func(v bool) { calls = append(calls, v) })
	if err != nil {
		t.Fatal(err)
	}
	tr.Observe()

	sequence := []float64{1000, 900, 750, 100, 1000, 100, -500, 300}
	for _, top := range sequence {
		tr.Handle(at(top))
	}

	if !tr.Visible() {
		t.Error("элемент должен остаться видимым")
	}
	if tr.Transitions() != 1 {
		t.Errorf("Transitions = %d, ожидается ровно 1", tr.Transitions())
	}
	if tr.Observing() {
		t.Error("после показа наблюдение должно прекратиться")
	}
	if len(calls) != 1 || !calls[0] {
		t.Errorf("onChange вызван %v, ожидается [true]", calls)
	}
}

func TestTracker_Toggle(t *testing.T) {
	opts := DefaultOptions()
	opts.TriggerOnce = false
	tr, err := NewTracker(opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	tr.Observe()

	steps := []struct {
		top  float64
		want bool
	}{
		{1000, false},
		{100, true},
		{200, true},
		{1000, false},
		{-400, false},
		{0, true},
	}
	for i, s := range steps {
		if got := tr.Handle(at(s.top)); got != s.want {
			t.Errorf("шаг %d (top=%v): видимость %v, ожидается %v", i, s.top, got, s.want)
		}
	}
	if tr.Transitions() != 3 {
		t.Errorf("Transitions = %d, ожидается 3", tr.Transitions())
	}
	if !tr.Observing() {
		t.Error("без TriggerOnce наблюдение продолжается")
	}
}

func TestTracker_Threshold(t *testing.T) {
	opts := Options{Threshold: 0.5}
	tr, _ := NewTracker(opts, nil)
	tr.Observe()

	// 40% элемента во viewport — ниже порога
	if tr.Handle(at(720)) {
		t.Error("40% видимой площади не должны проходить порог 0.5")
	}
	// 60% — выше порога
	if !tr.Handle(at(680)) {
		t.Error("60% видимой площади должны проходить порог 0.5")
	}
}

func TestTracker_NegativeMargin(t *testing.T) {
	// Нижний отступ -200px: элемент должен подняться выше на 200px
	tr, _ := NewTracker(Options{Threshold: 0.5, RootMargin: "0px 0px -200px 0px"}, nil)
	tr.Observe()

	if tr.Handle(at(600)) {
		t.Error("элемент в пределах отрезанной полосы не должен быть видим")
	}
	if !tr.Handle(at(450)) {
		t.Error("элемент выше отрезанной полосы должен быть видим")
	}
}

func TestTracker_ZeroThreshold(t *testing.T) {
	tr, _ := NewTracker(Options{Threshold: 0}, nil)
	tr.Observe()
	if !tr.Handle(at(800)) {
		t.Error("при пороге 0 касания края достаточно")
	}
}

func TestTracker_IgnoresEntriesWhenNotObserving(t *testing.T) {
	tr, _ := NewTracker(DefaultOptions(), nil)
	if tr.Handle(at(100)) {
		t.Error("до Observe события игнорируются")
	}

	tr.Observe()
	tr.Unobserve()
	if tr.Handle(at(100)) {
		t.Error("после Unobserve события игнорируются")
	}

	// Повторное монтирование — снова один показ
	tr.Observe()
	if !tr.Handle(at(100)) {
		t.Error("после повторного Observe элемент показывается")
	}
	if tr.Transitions() != 1 {
		t.Errorf("Transitions = %d, ожидается 1", tr.Transitions())
	}
}
