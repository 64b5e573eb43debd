// chat.go — публичный чат сайта (pt, en, es, fr).
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/infraservicos/portal-api/internal/api/contract"
	apierrors "github.com/infraservicos/portal-api/internal/api/errors"
	"github.com/infraservicos/portal-api/internal/i18n"
	"github.com/infraservicos/portal-api/internal/service"
)

// SendChatMessage — POST /api/chat/messages.
// Язык ответа: поле lang тела, иначе язык из i18n.Middleware.
// Ошибка webhook-а не возвращается клиенту: ответ ассистента содержит
// локализованное сообщение с fallback=true.
func (h *APIHandler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	lang := i18n.LangFromContext(r.Context())

	var req chatMessageRequest
	if err := h.decodeBody(w, r, contract.SchemaChatMessageRequest, &req); err != nil {
		apierrors.ValidationError(w, h.bundle.Translate(lang, "chat.invalid_request"))
		return
	}
	if explicit, ok := i18n.Normalize(req.Lang); ok {
		lang = explicit
	}

	res, err := h.chat.Send(i18n.WithLang(r.Context(), lang), service.ChatSendInput{
		SessionID: req.SessionID,
		Message:   req.Message,
		Lang:      lang,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMessageRequired):
			apierrors.ValidationError(w, h.bundle.Translate(lang, "chat.message_required"))
		case errors.Is(err, service.ErrMessageTooLong):
			apierrors.ValidationError(w, h.bundle.Translatef(lang, "chat.message_too_long", service.MaxChatMessageLength))
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, h.bundle.Translate(lang, "chat.invalid_request"))
		default:
			h.logger.Error("Ошибка чата", "error", err)
			apierrors.InternalError(w, h.bundle.Translate(lang, "chat.error_generic"))
		}
		return
	}

	writeJSON(w, http.StatusOK, chatMessageResponse{
		SessionID: res.SessionID,
		Reply:     mapChatMessage(res.Reply),
	})
}

// GetChatTranscript — GET /api/chat/sessions/{id}.
func (h *APIHandler) GetChatTranscript(w http.ResponseWriter, r *http.Request) {
	lang := i18n.LangFromContext(r.Context())
	id := chi.URLParam(r, "id")

	messages, err := h.chat.Transcript(id)
	if err != nil {
		apierrors.NotFound(w, h.bundle.Translate(lang, "chat.session_not_found"))
		return
	}

	resp := chatTranscript{SessionID: id, Messages: make([]chatMessage, len(messages))}
	for i, m := range messages {
		resp.Messages[i] = mapChatMessage(m)
	}
	writeJSON(w, http.StatusOK, resp)
}
