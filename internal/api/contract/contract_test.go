package contract

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func loadContract(t *testing.T) *Contract {
	t.Helper()
	c, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	return c
}

func TestLoad(t *testing.T) {
	c := loadContract(t)
	if c.Version() != "1.0.0" {
		t.Errorf("Version() = %q, ожидается 1.0.0", c.Version())
	}
	if !strings.HasPrefix(string(c.Raw()), "openapi: 3.0.3") {
		t.Error("Raw() должен возвращать исходный YAML")
	}
}

func TestValidateBody(t *testing.T) {
	c := loadContract(t)

	tests := []struct {
		name    string
		schema  string
		body    string
		wantErr bool
		field   string
	}{
		{"корректный login", SchemaLoginRequest, `{"email":"ana@x.com","password":"secret"}`, false, ""},
		{"login без пароля", SchemaLoginRequest, `{"email":"ana@x.com"}`, true, "password"},
		{"login с лишним полем", SchemaLoginRequest, `{"email":"ana@x.com","password":"p","role":"admin"}`, true, ""},
		{"не JSON", SchemaLoginRequest, `email=ana`, true, ""},
		{"неизвестная роль", SchemaCreateAccountRequest, `{"email":"a@x.com","role":"owner","password":"12345678"}`, true, "role"},
		{"короткий пароль", SchemaCreateAccountRequest, `{"email":"a@x.com","role":"admin","password":"123"}`, true, "password"},
		{"корректная учётная запись", SchemaCreateAccountRequest, `{"email":"a@x.com","name":"Ana","role":"technician","password":"12345678"}`, false, ""},
		{"chat без message", SchemaChatMessageRequest, `{"sessionId":"s1"}`, true, ""},
		{"chat корректный", SchemaChatMessageRequest, `{"sessionId":"s1","message":"Olá"}`, false, ""},
		{"validate с файлом", SchemaValidateUploadRequest, `{"content_type":"image","file":{"name":"a.jpg","mime_type":"image/jpeg","size":10}}`, false, ""},
		{"validate отрицательный размер", SchemaValidateUploadRequest, `{"file":{"name":"a.jpg","mime_type":"image/jpeg","size":-1}}`, true, "size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.ValidateBody(tt.schema, []byte(tt.body))
			if !tt.wantErr {
				if err != nil {
					t.Errorf("неожиданная ошибка: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidBody) {
				t.Fatalf("ожидалась ErrInvalidBody, получена %v", err)
			}
			if tt.field != "" && !strings.Contains(err.Error(), tt.field) {
				t.Errorf("ошибка %q должна упоминать поле %s", err, tt.field)
			}
		})
	}
}

func TestValidateBody_UnknownSchema(t *testing.T) {
	c := loadContract(t)
	err := c.ValidateBody("Missing", []byte(`{}`))
	if err == nil || errors.Is(err, ErrInvalidBody) {
		t.Errorf("ожидалась ошибка отсутствующей схемы, получена %v", err)
	}
}
