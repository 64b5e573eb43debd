package i18n

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func loadedBundle(t *testing.T) *Bundle {
	t.Helper()
	b := NewBundle(testLogger())
	if err := LoadFromEmbedFS(b, testLogger()); err != nil {
		t.Fatalf("LoadFromEmbedFS: %v", err)
	}
	return b
}

func TestLoadFromEmbedFS_AllLanguages(t *testing.T) {
	b := loadedBundle(t)
	if got := len(b.Languages()); got != 4 {
		t.Fatalf("загружено %d каталогов, ожидается 4", got)
	}
}

// Каталоги должны содержать одинаковый набор ключей.
func TestCatalogs_SameKeys(t *testing.T) {
	keys := func(lang string) map[string]string {
		data, err := LocaleFS.ReadFile("locales/" + lang + ".json")
		if err != nil {
			t.Fatal(err)
		}
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("%s.json: %v", lang, err)
		}
		return m
	}

	reference := keys(DefaultLang)
	for _, lang := range []string{"en", "es", "fr"} {
		catalog := keys(lang)
		for k := range reference {
			if _, ok := catalog[k]; !ok {
				t.Errorf("%s.json: отсутствует ключ %s", lang, k)
			}
		}
		for k := range catalog {
			if _, ok := reference[k]; !ok {
				t.Errorf("%s.json: лишний ключ %s", lang, k)
			}
		}
	}
}

func TestTranslate_Fallback(t *testing.T) {
	b := NewBundle(nil)
	_ = b.LoadMessages("pt", []byte(`{"only.pt": "só pt", "both": "pt"}`))
	_ = b.LoadMessages("en", []byte(`{"both": "en"}`))

	if got := b.Translate("en", "both"); got != "en" {
		t.Errorf("Translate(en, both) = %q, ожидается en", got)
	}
	if got := b.Translate("en", "only.pt"); got != "só pt" {
		t.Errorf("Translate(en, only.pt) = %q, ожидается fallback на pt", got)
	}
	if got := b.Translate("fr", "missing"); got != "missing" {
		t.Errorf("Translate(fr, missing) = %q, ожидается ключ", got)
	}
}

func TestLoadMessages_InvalidJSON(t *testing.T) {
	b := NewBundle(nil)
	if err := b.LoadMessages("pt", []byte(`{`)); err == nil {
		t.Error("ожидалась ошибка парсинга")
	}
}

func TestTranslatef(t *testing.T) {
	b := loadedBundle(t)
	got := b.Translatef("en", "chat.message_too_long", 2000)
	if got != "The message must be at most 2000 characters long." {
		t.Errorf("Translatef = %q", got)
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		accept string
		want   string
	}{
		{"pt-BR,pt;q=0.9,en;q=0.8", "pt"},
		{"en-US,en;q=0.9", "en"},
		{"es-MX", "es"},
		{"fr-CA,fr;q=0.9", "fr"},
		{"de-DE", "pt"},
		{"", "pt"},
	}

	for _, tt := range tests {
		if got := MatchLanguage(tt.accept); got != tt.want {
			t.Errorf("MatchLanguage(%q) = %q, ожидается %q", tt.accept, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"pt", "pt", true},
		{"EN", "en", true},
		{"fr_FR", "fr", true},
		{"es-419", "es", true},
		{"ru", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := Normalize(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Normalize(%q) = (%q, %v), ожидается (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMiddleware_Priority(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		accept string
		want   string
	}{
		{"cookie важнее заголовка", "fr", "en-US", "fr"},
		{"неизвестная cookie", "ru", "es", "es"},
		{"только заголовок", "", "en", "en"},
		{"ничего", "", "", "pt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = LangFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/chat/messages", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LangCookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("язык = %q, ожидается %q", got, tt.want)
			}
		})
	}
}

func TestT_GlobalBundle(t *testing.T) {
	b := Init(testLogger())
	if err := LoadFromEmbedFS(b, testLogger()); err != nil {
		t.Fatal(err)
	}
	if GetBundle() != b {
		t.Fatal("GetBundle() должен вернуть инициализированный Bundle")
	}

	ctx := WithLang(context.Background(), "es")
	if got := T(ctx, "chat.session_not_found"); got != "Sesión de chat no encontrada." {
		t.Errorf("T(es) = %q", got)
	}
	if got := LangFromContext(context.Background()); got != DefaultLang {
		t.Errorf("LangFromContext без языка = %q, ожидается pt", got)
	}
}
