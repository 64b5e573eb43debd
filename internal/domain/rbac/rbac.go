// Пакет rbac — роли субъектов portal-api.
// Роли не наследуются: admin-панель и приложение техников
// обслуживаются разными guard-ами с разными секретами.
package rbac

import "fmt"

// Роли субъектов.
const (
	RoleAdmin      = "admin"
	RoleTechnician = "technician"
)

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTechnician:
		return true
	default:
		return false
	}
}

// ParseRole преобразует строку в роль.
// Возвращает ошибку для недопустимых значений.
func ParseRole(s string) (string, error) {
	if !IsValidRole(s) {
		return "", fmt.Errorf("недопустимая роль: %q, допустимые: admin, technician", s)
	}
	return s, nil
}

// Matches проверяет, совместима ли роль из claim токена с ролью guard-а.
// Пустой claim совместим с любой ролью (токены без claim role).
func Matches(claimRole, guardRole string) bool {
	return claimRole == "" || claimRole == guardRole
}
