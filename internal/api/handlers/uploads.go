// uploads.go — загрузки техников и их просмотр в admin-панели.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/infraservicos/portal-api/internal/api/contract"
	apierrors "github.com/infraservicos/portal-api/internal/api/errors"
	"github.com/infraservicos/portal-api/internal/api/middleware"
	"github.com/infraservicos/portal-api/internal/domain/draft"
	"github.com/infraservicos/portal-api/internal/domain/model"
	"github.com/infraservicos/portal-api/internal/service"
)

// multipartMemory — часть multipart-формы, которая держится в памяти;
// остальное net/http сбрасывает во временные файлы.
const multipartMemory = 32 << 20

// --- Приложение техников (сообщения на английском) ---

// CreateUpload — POST /api/technician/uploads.
// Multipart: file (опционально), title, description, content_type.
func (h *APIHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		apierrors.Unauthorized(w, middleware.TechnicianMessages.Missing)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Request exceeds %d MiB", h.maxRequestBytes>>20))
			return
		}
		apierrors.ValidationError(w, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := service.DraftInput{
		ContentType: model.ContentType(r.FormValue("content_type")),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		in.File = &service.FileInput{
			Name:     header.Filename,
			MIMEType: mimeType,
			Size:     header.Size,
			Reader:   file,
		}
	case errors.Is(err, http.ErrMissingFile):
		// Заметка без файла
	default:
		apierrors.ValidationError(w, "Invalid file field")
		return
	}

	u, err := h.uploads.Upload(r.Context(), principal, in)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapUpload(u))
}

// ValidateUpload — POST /api/technician/uploads/validate.
// Проверка черновика без передачи данных: те же правила, что и при загрузке.
func (h *APIHandler) ValidateUpload(w http.ResponseWriter, r *http.Request) {
	var req validateUploadRequest
	if err := h.decodeBody(w, r, contract.SchemaValidateUploadRequest, &req); err != nil {
		apierrors.ValidationError(w, "Invalid request")
		return
	}

	in := service.DraftInput{
		ContentType: model.ContentType(req.ContentType),
		Title:       req.Title,
		Description: req.Description,
	}
	if req.File != nil {
		in.File = &service.FileInput{Name: req.File.Name, MIMEType: req.File.MIMEType, Size: req.File.Size}
	}

	res, err := h.uploads.Validate(in)
	if err != nil {
		h.logger.Error("Ошибка проверки черновика", "error", err)
		apierrors.InternalError(w, "Internal server error")
		return
	}

	msg := ""
	if res.Err != nil {
		_, msg = uploadErrorResponse(res.Err)
	}
	writeJSON(w, http.StatusOK, mapValidation(res, msg))
}

// ListOwnUploads — GET /api/technician/uploads.
func (h *APIHandler) ListOwnUploads(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		apierrors.Unauthorized(w, middleware.TechnicianMessages.Missing)
		return
	}

	limit, offset := pagination(r)
	items, total, err := h.uploads.ListOwn(r.Context(), principal, limit, offset)
	if err != nil {
		h.logger.Error("Ошибка получения загрузок техника", "user_id", principal.ID, "error", err)
		apierrors.InternalError(w, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, mapUploadList(items, total, limit, offset))
}

// writeUploadError пишет ответ по ошибке загрузки.
func (h *APIHandler) writeUploadError(w http.ResponseWriter, err error) {
	status, msg := uploadErrorResponse(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Ошибка загрузки", "error", err)
	}
	apierrors.WriteError(w, status, msg)
}

// uploadErrorResponse сопоставляет ошибку загрузки со статусом и сообщением.
func uploadErrorResponse(err error) (int, string) {
	var sizeErr *draft.SizeError
	switch {
	case errors.As(err, &sizeErr):
		return http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large: %s limit is %d MiB", sizeErr.Category, sizeErr.Limit>>20)
	case errors.Is(err, draft.ErrTitleRequired):
		return http.StatusBadRequest, "Title is required"
	case errors.Is(err, draft.ErrFileRequired):
		return http.StatusBadRequest, "A file is required for photos and videos"
	case errors.Is(err, draft.ErrValidation):
		return http.StatusBadRequest, "Invalid content type: use image, video or note"
	case errors.Is(err, service.ErrStorage):
		return http.StatusInternalServerError, "Storage unavailable, please try again"
	default:
		return http.StatusInternalServerError, "Upload failed, please try again"
	}
}

// --- Admin-панель (сообщения на португальском) ---

// ListUploads — GET /api/admin/uploads.
func (h *APIHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filter := model.UploadFilter{Limit: limit, Offset: offset}
	if v := r.URL.Query().Get("content_type"); v != "" {
		ct := model.ContentType(v)
		filter.ContentType = &ct
	}

	items, total, err := h.uploads.ListAll(r.Context(), filter)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			apierrors.ValidationError(w, "Tipo de conteúdo inválido: use image, video ou note")
			return
		}
		h.logger.Error("Ошибка получения загрузок", "error", err)
		apierrors.InternalError(w, "Erro ao listar envios")
		return
	}
	writeJSON(w, http.StatusOK, mapUploadList(items, total, limit, offset))
}

// GetUpload — GET /api/admin/uploads/{id}.
func (h *APIHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := h.uploads.Get(r.Context(), id)
	if err != nil {
		h.writeAdminUploadError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, mapUpload(u))
}

// GetUploadContent — GET /api/admin/uploads/{id}/content.
// Локальное хранилище отдаётся через http.ServeContent (Range, ETag).
func (h *APIHandler) GetUploadContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, rc, err := h.uploads.OpenContent(r.Context(), id)
	if err != nil {
		h.writeAdminUploadError(w, id, err)
		return
	}
	defer rc.Close()

	mimeType := u.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": u.OriginalFilename}))
	if u.Checksum != "" {
		w.Header().Set("ETag", fmt.Sprintf("%q", u.Checksum))
	}

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, u.OriginalFilename, u.CreatedAt, rs)
		return
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", u.SizeBytes))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Передача содержимого прервана", "upload_id", id, "error", err)
	}
}

// DeleteUpload — DELETE /api/admin/uploads/{id}.
func (h *APIHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.uploads.Delete(r.Context(), id); err != nil {
		h.writeAdminUploadError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) writeAdminUploadError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, service.ErrNotFound) {
		apierrors.NotFound(w, "Envio não encontrado")
		return
	}
	h.logger.Error("Ошибка обработки загрузки", "upload_id", id, "error", err)
	apierrors.InternalError(w, "Erro interno do servidor")
}
