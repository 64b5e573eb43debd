// Команда create-user создаёт учётную запись admin-панели или приложения техников.
// Подключение к PostgreSQL берётся из тех же переменных PORTAL_DB_*, что и у portal-api.
//
//	create-user -email chefe@infraservicos.com -name "Chefe" -role admin
//
// Пароль читается из PORTAL_NEW_USER_PASSWORD, если флаг -password не задан.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/infraservicos/portal-api/internal/config"
	"github.com/infraservicos/portal-api/internal/database"
	"github.com/infraservicos/portal-api/internal/domain/rbac"
	"github.com/infraservicos/portal-api/internal/repository"
	"github.com/infraservicos/portal-api/internal/service"
)

func main() {
	var (
		email    string
		name     string
		role     string
		password string
	)

	flag.StringVar(&email, "email", "", "E-mail учётной записи")
	flag.StringVar(&name, "name", "", "Отображаемое имя")
	flag.StringVar(&role, "role", rbac.RoleTechnician, "Роль: admin или technician")
	flag.StringVar(&password, "password", "", "Пароль (по умолчанию PORTAL_NEW_USER_PASSWORD)")
	flag.Parse()

	if password == "" {
		password = os.Getenv("PORTAL_NEW_USER_PASSWORD")
	}
	if email == "" {
		fatalf("-email обязателен")
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	logger := config.SetupLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.Migrate(cfg, logger); err != nil {
		fatalf("Ошибка миграций БД: %v", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		fatalf("Ошибка подключения к PostgreSQL: %v", err)
	}
	defer pool.Close()

	// Токены здесь не выпускаются
	authSvc := service.NewAuthService(repository.NewUserRepository(pool), nil, logger)

	account, err := authSvc.CreateAccount(ctx, service.CreateAccountInput{
		Email:    email,
		Name:     name,
		Role:     role,
		Password: password,
	})
	switch {
	case errors.Is(err, service.ErrConflict):
		fatalf("Учётная запись %s с ролью %s уже существует", email, role)
	case errors.Is(err, service.ErrInvalidRole):
		fatalf("Недопустимая роль %q: используйте admin или technician", role)
	case errors.Is(err, service.ErrValidation):
		fatalf("Некорректные данные: %v (пароль не короче %d символов)", err, service.MinPasswordLength)
	case err != nil:
		fatalf("Ошибка создания учётной записи: %v", err)
	}

	fmt.Printf("Учётная запись %s (%s) создана, id=%s\n", account.Email, account.Role, account.ID)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
