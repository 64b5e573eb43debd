// Пакет contract — OpenAPI-контракт portal-api.
// Спецификация встроена в бинарник, отдаётся на /api/openapi.yaml
// и используется для проверки JSON-тел запросов.
package contract

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

// ErrInvalidBody — тело запроса не соответствует схеме.
var ErrInvalidBody = errors.New("тело запроса не соответствует контракту")

// Имена схем тел запросов.
const (
	SchemaLoginRequest          = "LoginRequest"
	SchemaCreateAccountRequest  = "CreateAccountRequest"
	SchemaValidateUploadRequest = "ValidateUploadRequest"
	SchemaChatMessageRequest    = "ChatMessageRequest"
)

// Contract — загруженная и проверенная спецификация.
type Contract struct {
	doc *openapi3.T
}

// Load разбирает встроенную спецификацию и проверяет её корректность.
func Load(ctx context.Context) (*Contract, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("разбор openapi.yaml: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("проверка openapi.yaml: %w", err)
	}
	return &Contract{doc: doc}, nil
}

// Raw возвращает исходный YAML спецификации.
func (c *Contract) Raw() []byte {
	return specYAML
}

// Version возвращает info.version спецификации.
func (c *Contract) Version() string {
	if c.doc.Info == nil {
		return ""
	}
	return c.doc.Info.Version
}

// ValidateBody проверяет JSON-тело по схеме из components/schemas.
// Ошибки несоответствия оборачивают ErrInvalidBody.
func (c *Contract) ValidateBody(schemaName string, body []byte) error {
	ref, ok := c.doc.Components.Schemas[schemaName]
	if !ok || ref.Value == nil {
		return fmt.Errorf("схема %s не найдена", schemaName)
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("%w: некорректный JSON", ErrInvalidBody)
	}

	if err := ref.Value.VisitJSON(value); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBody, describe(err))
	}
	return nil
}

// describe формирует короткое описание ошибки схемы: путь поля и причина.
func describe(err error) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		if path := schemaErr.JSONPointer(); len(path) > 0 {
			return strings.Join(path, ".") + ": " + schemaErr.Reason
		}
		return schemaErr.Reason
	}
	return err.Error()
}
