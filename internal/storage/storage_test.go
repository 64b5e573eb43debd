package storage

import (
	"strings"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	key := GenerateKey("Fachada Norte.JPG", "tecnico@infraservicos.com")

	if !strings.HasPrefix(key, "FachadaNorte_tecnicoinfraservicos_") {
		t.Errorf("неожиданный префикс ключа: %s", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("ключ должен сохранять расширение в нижнем регистре: %s", key)
	}
	if !ValidKey(key) {
		t.Errorf("сгенерированный ключ должен быть допустимым: %s", key)
	}
}

func TestGenerateKey_NoExtension(t *testing.T) {
	key := GenerateKey("relatório", "")
	if strings.Contains(key, ".") {
		t.Errorf("ключ без расширения не должен содержать точку: %s", key)
	}
	if !strings.HasPrefix(key, "relatrio_file_") {
		t.Errorf("неожиданный префикс ключа: %s", key)
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	a := GenerateKey("a.png", "u")
	b := GenerateKey("a.png", "u")
	if a == b {
		t.Errorf("ключи должны различаться: %s", a)
	}
}

func TestValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"photo_u_20260101000000_abcd1234.jpg", true},
		{"", false},
		{"..", false},
		{"../etc/passwd", false},
		{"dir/file", false},
		{`dir\file`, false},
	}
	for _, tt := range tests {
		if got := ValidKey(tt.key); got != tt.want {
			t.Errorf("ValidKey(%q) = %v, ожидается %v", tt.key, got, tt.want)
		}
	}
}
