// chat.go — чат сайта: транскрипты сессий и проксирование на webhook.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/infraservicos/portal-api/internal/chatclient"
	"github.com/infraservicos/portal-api/internal/domain/model"
	"github.com/infraservicos/portal-api/internal/i18n"
)

const (
	// MaxChatMessageLength — максимальная длина сообщения в символах.
	MaxChatMessageLength = 2000
	// maxTranscriptMessages — сообщений в транскрипте, старые вытесняются.
	maxTranscriptMessages = 200
)

var (
	// ErrMessageRequired — пустое сообщение.
	ErrMessageRequired = fmt.Errorf("%w: сообщение не может быть пустым", ErrValidation)
	// ErrMessageTooLong — сообщение длиннее MaxChatMessageLength.
	ErrMessageTooLong = fmt.Errorf("%w: сообщение длиннее %d символов", ErrValidation, MaxChatMessageLength)
)

var (
	chatSessionHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_chat_session_hits_total",
		Help: "Сообщения в существующую чат-сессию",
	})
	chatSessionMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_chat_session_misses_total",
		Help: "Сообщения, открывшие новую чат-сессию",
	})
	chatRepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_chat_replies_total",
		Help: "Ответы ассистента по источнику (webhook, fallback)",
	}, []string{"source"})
)

// ChatSendInput — сообщение посетителя.
type ChatSendInput struct {
	// SessionID — идентификатор сессии, выданный сервером
	// (пусто или не UUID — новая сессия)
	SessionID string
	Message   string
	// Lang — язык ответа при ошибке (пусто — из контекста)
	Lang string
}

// ChatReply — результат отправки сообщения.
type ChatReply struct {
	SessionID string
	Reply     model.ChatMessage
}

// chatSession — транскрипт одной сессии.
// mu сериализует сообщения сессии: на каждое сообщение ровно один ответ.
type chatSession struct {
	mu       sync.Mutex
	messages []model.ChatMessage
}

func (cs *chatSession) append(msg model.ChatMessage) {
	cs.messages = append(cs.messages, msg)
	if over := len(cs.messages) - maxTranscriptMessages; over > 0 {
		cs.messages = append([]model.ChatMessage(nil), cs.messages[over:]...)
	}
}

// chatSender — транспорт до webhook (реализуется chatclient.Client).
type chatSender interface {
	Send(ctx context.Context, req chatclient.Request) (string, error)
}

// ChatService — чат-сессии сайта.
type ChatService struct {
	client   chatSender
	bundle   *i18n.Bundle
	logger   *slog.Logger
	now      func() time.Time
	mu       sync.Mutex
	sessions *expirable.LRU[string, *chatSession]
}

// NewChatService создаёт сервис чата.
// maxSessions — максимальное количество транскриптов в памяти.
// ttl — время жизни транскрипта после последнего сообщения.
func NewChatService(client chatSender, bundle *i18n.Bundle, maxSessions int, ttl time.Duration, logger *slog.Logger) *ChatService {
	return &ChatService{
		client:   client,
		bundle:   bundle,
		logger:   logger.With(slog.String("component", "chat_service")),
		now:      time.Now,
		sessions: expirable.NewLRU[string, *chatSession](maxSessions, nil, ttl),
	}
}

// Send добавляет сообщение посетителя в транскрипт, передаёт его webhook-у
// и добавляет ровно один ответ ассистента. Если webhook недоступен, ответом
// становится локализованное сообщение об ошибке с Fallback=true.
// Повторных попыток нет.
func (s *ChatService) Send(ctx context.Context, in ChatSendInput) (*ChatReply, error) {
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, ErrMessageRequired
	}
	if utf8.RuneCountInString(text) > MaxChatMessageLength {
		return nil, ErrMessageTooLong
	}

	// Идентификаторы выдаёт только сервер: чужой формат открывает новую сессию
	sessionID, ok := normalizeSessionID(in.SessionID)
	if !ok {
		sessionID = uuid.NewString()
	}

	lang := in.Lang
	if lang == "" {
		lang = i18n.LangFromContext(ctx)
	}

	session := s.session(sessionID)
	session.mu.Lock()
	defer session.mu.Unlock()

	sentAt := s.now()
	session.append(model.ChatMessage{Role: model.ChatRoleUser, Text: text, Timestamp: sentAt})

	reply := model.ChatMessage{Role: model.ChatRoleAssistant}
	answer, err := s.client.Send(ctx, chatclient.Request{
		SessionID: sessionID,
		Message:   text,
		Timestamp: sentAt.UTC(),
	})
	if err != nil {
		if !errors.Is(err, chatclient.ErrTransport) && ctx.Err() == nil {
			s.logger.Error("Неожиданная ошибка чат-webhook",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
		reply.Text = s.bundle.Translate(lang, "chat.error_generic")
		reply.Fallback = true
		chatRepliesTotal.WithLabelValues("fallback").Inc()
	} else {
		reply.Text = answer
		chatRepliesTotal.WithLabelValues("webhook").Inc()
	}
	reply.Timestamp = s.now()
	session.append(reply)

	// Продление TTL транскрипта
	s.sessions.Add(sessionID, session)

	return &ChatReply{SessionID: sessionID, Reply: reply}, nil
}

// Transcript возвращает копию транскрипта сессии.
func (s *ChatService) Transcript(sessionID string) ([]model.ChatMessage, error) {
	id, ok := normalizeSessionID(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	out := make([]model.ChatMessage, len(session.messages))
	copy(out, session.messages)
	return out, nil
}

// session возвращает транскрипт сессии, создавая его при отсутствии.
func (s *ChatService) session(id string) *chatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs, ok := s.sessions.Get(id); ok {
		chatSessionHitsTotal.Inc()
		return cs
	}
	chatSessionMissesTotal.Inc()
	cs := &chatSession{}
	s.sessions.Add(id, cs)
	return cs
}

// normalizeSessionID приводит идентификатор к каноническому виду UUID.
func normalizeSessionID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
