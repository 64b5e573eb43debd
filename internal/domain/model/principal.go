// Пакет model — доменные модели portal-api.
package model

import "time"

// Principal — субъект, подтверждённый проверкой токена.
// Формируется guard-ом и помещается в контекст запроса.
type Principal struct {
	// ID — sub из токена (UUID учётной записи)
	ID string
	// Email — email из токена
	Email string
	// Role — роль guard-а, пропустившего запрос (admin, technician)
	Role string
}

// Account — учётная запись администратора или техника.
// Хранится в таблице users.
type Account struct {
	ID    string
	Email string
	Name  string
	// Role — admin или technician
	Role string
	// PasswordHash — argon2id-хэш пароля
	PasswordHash []byte
	// PasswordSalt — соль argon2id
	PasswordSalt []byte
	// Active — неактивная учётная запись не может войти
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
