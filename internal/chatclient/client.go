// Пакет chatclient — HTTP-клиент внешнего webhook чат-ассистента.
// Контракт: POST JSON {sessionId, message, timestamp},
// ответ — JSON с полем response или message.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrTransport — webhook недоступен, ответил ошибкой или не-JSON.
// Пользователь получает локализованное сообщение, ошибка наружу не отдаётся.
var ErrTransport = errors.New("чат-webhook недоступен")

// maxResponseBytes — предел чтения ответа webhook.
const maxResponseBytes = 1 << 20

// Request — тело запроса к webhook.
type Request struct {
	SessionID string    `json:"sessionId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// response — ответ webhook. Ассистенты отвечают в response или message.
type response struct {
	Response *string `json:"response"`
	Message  *string `json:"message"`
}

// Client — клиент чат-webhook.
type Client struct {
	httpClient *http.Client
	webhookURL string
	logger     *slog.Logger
}

// New создаёт клиент. Пустой webhookURL — чат не настроен,
// каждый Send возвращает ErrTransport.
func New(webhookURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		webhookURL: webhookURL,
		logger:     logger.With(slog.String("component", "chat_client")),
	}
}

// Configured сообщает, задан ли адрес webhook.
func (c *Client) Configured() bool {
	return c.webhookURL != ""
}

// Send отправляет сообщение и возвращает текст ответа ассистента.
// Все ошибки оборачивают ErrTransport. Повторов нет.
func (c *Client) Send(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("%w: адрес webhook не настроен", ErrTransport)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: сериализация запроса: %v", ErrTransport, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: создание запроса: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq) //nolint:gosec // URL из конфигурации
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Дочитываем тело для переиспользования соединения
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", fmt.Errorf("%w: HTTP %d", ErrTransport, resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: ответ не JSON: %v", ErrTransport, err)
	}

	reply := ""
	switch {
	case out.Response != nil && *out.Response != "":
		reply = *out.Response
	case out.Message != nil && *out.Message != "":
		reply = *out.Message
	default:
		return "", fmt.Errorf("%w: в ответе нет response или message", ErrTransport)
	}

	c.logger.Debug("Ответ чат-webhook получен",
		slog.String("session_id", req.SessionID),
		slog.Duration("duration", time.Since(start)),
	)
	return reply, nil
}
