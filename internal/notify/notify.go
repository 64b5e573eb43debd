// Пакет notify — push-уведомления администраторам.
// Payload публикуется в Redis-канал; подписчик рассылает его через Web Push,
// service worker показывает уведомление и открывает data.url.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Значения payload по умолчанию (совпадают с service worker).
const (
	DefaultURL   = "/appointments"
	DefaultIcon  = "/icons/icon-192x192.png"
	DefaultBadge = "/icons/badge-72x72.png"
)

// PushAction — кнопка уведомления.
type PushAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// PushData — данные для обработчика клика.
type PushData struct {
	// URL — страница, которую откроет service worker
	URL string `json:"url"`
	// UploadID — загрузка, о которой уведомление (пусто для прочих)
	UploadID string `json:"uploadId,omitempty"`
}

// PushPayload — содержимое push-уведомления.
type PushPayload struct {
	Title   string       `json:"title"`
	Body    string       `json:"body"`
	Icon    string       `json:"icon"`
	Badge   string       `json:"badge"`
	Data    PushData     `json:"data"`
	Actions []PushAction `json:"actions"`
}

// WithDefaults возвращает копию payload с заполненными значениями по умолчанию.
func (p PushPayload) WithDefaults() PushPayload {
	if p.Data.URL == "" {
		p.Data.URL = DefaultURL
	}
	if p.Icon == "" {
		p.Icon = DefaultIcon
	}
	if p.Badge == "" {
		p.Badge = DefaultBadge
	}
	if p.Actions == nil {
		p.Actions = []PushAction{}
	}
	return p
}

// Marshal сериализует payload с заполненными значениями по умолчанию.
func (p PushPayload) Marshal() ([]byte, error) {
	data, err := json.Marshal(p.WithDefaults())
	if err != nil {
		return nil, fmt.Errorf("сериализация push payload: %w", err)
	}
	return data, nil
}

// Notifier — доставка push-уведомлений.
type Notifier interface {
	Notify(ctx context.Context, p PushPayload) error
}

// LogNotifier пишет уведомления в лог. Используется без PORTAL_REDIS_URL.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier создаёт LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "notifier"))}
}

// Notify логирует уведомление.
func (n *LogNotifier) Notify(ctx context.Context, p PushPayload) error {
	p = p.WithDefaults()
	n.logger.InfoContext(ctx, "Push-уведомление (доставка не настроена)",
		slog.String("title", p.Title),
		slog.String("url", p.Data.URL),
	)
	return nil
}
