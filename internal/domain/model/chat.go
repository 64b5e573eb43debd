package model

import "time"

// Роли участников чата.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage — сообщение транскрипта чат-сессии.
type ChatMessage struct {
	Role      string
	Text      string
	Timestamp time.Time
	// Fallback — ответ сформирован локально, webhook недоступен
	Fallback bool
}
