// dto.go — типы тел запросов и ответов API (по openapi.yaml).
package handlers

import (
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/infraservicos/portal-api/internal/domain/model"
	"github.com/infraservicos/portal-api/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      account   `json:"user"`
}

type principalResponse struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

type account struct {
	ID        openapi_types.UUID  `json:"id"`
	Email     openapi_types.Email `json:"email"`
	Name      string              `json:"name,omitempty"`
	Role      string              `json:"role"`
	Active    bool                `json:"active"`
	CreatedAt time.Time           `json:"created_at"`
}

type accountListResponse struct {
	Items   []account `json:"items"`
	Total   int       `json:"total"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
	HasMore bool      `json:"has_more"`
}

type createAccountRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type upload struct {
	ID               openapi_types.UUID `json:"id"`
	Title            string             `json:"title"`
	Description      string             `json:"description,omitempty"`
	ContentType      string             `json:"content_type"`
	OriginalFilename string             `json:"original_filename,omitempty"`
	MIMEType         string             `json:"mime_type,omitempty"`
	SizeBytes        int64              `json:"size_bytes"`
	Checksum         string             `json:"checksum,omitempty"`
	HasContent       bool               `json:"has_content"`
	UploadedBy       string             `json:"uploaded_by"`
	UploadedByEmail  string             `json:"uploaded_by_email,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

type uploadListResponse struct {
	Items   []upload `json:"items"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	HasMore bool     `json:"has_more"`
}

type validateFile struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

type validateUploadRequest struct {
	ContentType string        `json:"content_type"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	File        *validateFile `json:"file"`
}

type validateUploadResponse struct {
	Valid       bool   `json:"valid"`
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
	Attached    bool   `json:"attached"`
	LimitBytes  int64  `json:"limit_bytes"`
	Error       string `json:"error,omitempty"`
}

type chatMessageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Lang      string `json:"lang"`
}

type chatMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Fallback  bool      `json:"fallback,omitempty"`
}

type chatMessageResponse struct {
	SessionID string      `json:"sessionId"`
	Reply     chatMessage `json:"reply"`
}

type chatTranscript struct {
	SessionID string        `json:"sessionId"`
	Messages  []chatMessage `json:"messages"`
}

// --- Маппинг domain model → API ---

// parseUUID разбирает UUID из БД; некорректное значение даёт нулевой UUID.
func parseUUID(s string) openapi_types.UUID {
	id, _ := uuid.Parse(s)
	return id
}

func mapAccount(a *model.Account) account {
	return account{
		ID:        parseUUID(a.ID),
		Email:     openapi_types.Email(a.Email),
		Name:      a.Name,
		Role:      a.Role,
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
	}
}

func mapUpload(u *model.Upload) upload {
	return upload{
		ID:               parseUUID(u.ID),
		Title:            u.Title,
		Description:      u.Description,
		ContentType:      string(u.ContentType),
		OriginalFilename: u.OriginalFilename,
		MIMEType:         u.MIMEType,
		SizeBytes:        u.SizeBytes,
		Checksum:         u.Checksum,
		HasContent:       u.HasBinary(),
		UploadedBy:       u.UploadedBy,
		UploadedByEmail:  u.UploadedByEmail,
		CreatedAt:        u.CreatedAt,
	}
}

func mapUploadList(items []*model.Upload, total, limit, offset int) uploadListResponse {
	resp := uploadListResponse{
		Items:   make([]upload, len(items)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
	for i, u := range items {
		resp.Items[i] = mapUpload(u)
	}
	return resp
}

func mapChatMessage(m model.ChatMessage) chatMessage {
	return chatMessage{Role: m.Role, Text: m.Text, Timestamp: m.Timestamp.UTC(), Fallback: m.Fallback}
}

func mapValidation(res *service.ValidationResult, msg string) validateUploadResponse {
	return validateUploadResponse{
		Valid:       res.Valid,
		ContentType: string(res.ContentType),
		Title:       res.Title,
		Attached:    res.Attached,
		LimitBytes:  res.LimitBytes,
		Error:       msg,
	}
}
