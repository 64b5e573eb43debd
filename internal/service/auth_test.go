package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/infraservicos/portal-api/internal/auth"
	"github.com/infraservicos/portal-api/internal/domain/model"
	"github.com/infraservicos/portal-api/internal/domain/rbac"
	"github.com/infraservicos/portal-api/internal/repository"
)

// fakeUsers — in-memory UserRepository.
type fakeUsers struct {
	mu       sync.Mutex
	accounts []*model.Account
}

func (f *fakeUsers) Create(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ex := range f.accounts {
		if ex.Role == a.Role && ex.Email == a.Email {
			return repository.ErrConflict
		}
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.accounts = append(f.accounts, a)
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, role, email string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Role == role && a.Email == email {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) List(_ context.Context, role *string, limit, offset int) ([]*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Account
	for _, a := range f.accounts {
		if role == nil || a.Role == *role {
			out = append(out, a)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUsers) Count(ctx context.Context, role *string) (int, error) {
	all, err := f.List(ctx, role, 1<<30, 0)
	return len(all), err
}

func staticSecret(s string) auth.SecretResolver {
	return func() []byte { return []byte(s) }
}

func newAuthService(users *fakeUsers, adminSecret, techSecret string) *AuthService {
	return NewAuthService(users, map[string]*auth.Issuer{
		rbac.RoleAdmin:      auth.NewIssuer(staticSecret(adminSecret), time.Hour),
		rbac.RoleTechnician: auth.NewIssuer(staticSecret(techSecret), time.Hour),
	}, testLogger())
}

func TestAuthService_LoginRoundTrip(t *testing.T) {
	users := &fakeUsers{}
	svc := newAuthService(users, "admin-secret", "tech-secret")
	ctx := context.Background()

	acc, err := svc.CreateAccount(ctx, CreateAccountInput{
		Email: " Ana@InfraServicos.com ", Name: "Ana", Role: rbac.RoleTechnician, Password: "obra-segura-1",
	})
	if err != nil {
		t.Fatalf("CreateAccount() вернул ошибку: %v", err)
	}
	if acc.Email != "ana@infraservicos.com" {
		t.Errorf("Email = %q, ожидается нормализованный", acc.Email)
	}

	res, err := svc.Login(ctx, rbac.RoleTechnician, "ana@infraservicos.com", "obra-segura-1")
	if err != nil {
		t.Fatalf("Login() вернул ошибку: %v", err)
	}
	if res.Account.ID != acc.ID {
		t.Errorf("Account.ID = %q, ожидается %q", res.Account.ID, acc.ID)
	}

	// Токен принимается верификатором своей роли
	claims, err := auth.NewVerifier(staticSecret("tech-secret"), 0).Verify(res.Token)
	if err != nil {
		t.Fatalf("токен не прошёл проверку: %v", err)
	}
	if claims.Subject != acc.ID || claims.Role != rbac.RoleTechnician {
		t.Errorf("claims = %+v, ожидались sub=%s role=technician", claims, acc.ID)
	}

	// и отклоняется верификатором admin-панели с другим секретом
	if _, err := auth.NewVerifier(staticSecret("admin-secret"), 0).Verify(res.Token); err == nil {
		t.Error("токен техника не должен приниматься admin-секретом")
	}
}

func TestAuthService_LoginRejections(t *testing.T) {
	users := &fakeUsers{}
	svc := newAuthService(users, "admin-secret", "tech-secret")
	ctx := context.Background()

	if _, err := svc.CreateAccount(ctx, CreateAccountInput{
		Email: "admin@infraservicos.com", Role: rbac.RoleAdmin, Password: "painel-admin-1",
	}); err != nil {
		t.Fatal(err)
	}
	disabled, err := svc.CreateAccount(ctx, CreateAccountInput{
		Email: "old@infraservicos.com", Role: rbac.RoleAdmin, Password: "painel-admin-2",
	})
	if err != nil {
		t.Fatal(err)
	}
	disabled.Active = false

	tests := []struct {
		name     string
		role     string
		email    string
		password string
	}{
		{"неверный пароль", rbac.RoleAdmin, "admin@infraservicos.com", "wrong-password"},
		{"неизвестный email", rbac.RoleAdmin, "nobody@infraservicos.com", "painel-admin-1"},
		{"другая роль", rbac.RoleTechnician, "admin@infraservicos.com", "painel-admin-1"},
		{"отключена", rbac.RoleAdmin, "old@infraservicos.com", "painel-admin-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.role, tt.email, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("ожидалась ErrInvalidCredentials, получена %v", err)
			}
		})
	}
}

func TestAuthService_LoginWithoutSecret(t *testing.T) {
	users := &fakeUsers{}
	svc := newAuthService(users, "", "tech-secret")
	ctx := context.Background()

	if _, err := svc.CreateAccount(ctx, CreateAccountInput{
		Email: "admin@infraservicos.com", Role: rbac.RoleAdmin, Password: "painel-admin-1",
	}); err != nil {
		t.Fatal(err)
	}

	// Ошибка конфигурации не зависит от учётных данных
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"верные данные", "admin@infraservicos.com", "painel-admin-1"},
		{"неверный пароль", "admin@infraservicos.com", "wrong-password"},
		{"неизвестный email", "nobody@infraservicos.com", "painel-admin-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, rbac.RoleAdmin, tt.email, tt.password)
			if !errors.Is(err, auth.ErrConfiguration) {
				t.Errorf("ожидалась auth.ErrConfiguration, получена %v", err)
			}
		})
	}
}

func TestAuthService_LoginUnknownEmailChecksPassword(t *testing.T) {
	users := &fakeUsers{}
	svc := newAuthService(users, "admin-secret", "tech-secret")
	ctx := context.Background()

	if _, err := svc.CreateAccount(ctx, CreateAccountInput{
		Email: "admin@infraservicos.com", Role: rbac.RoleAdmin, Password: "painel-admin-1",
	}); err != nil {
		t.Fatal(err)
	}

	var checks int
	svc.checkPassword = func(password string, hash, salt []byte) bool {
		checks++
		return auth.CheckPassword(password, hash, salt)
	}

	for _, email := range []string{"admin@infraservicos.com", "nobody@infraservicos.com"} {
		checks = 0
		if _, err := svc.Login(ctx, rbac.RoleAdmin, email, "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: ожидалась ErrInvalidCredentials, получена %v", email, err)
		}
		if checks != 1 {
			t.Errorf("%s: проверок пароля %d, ожидается 1", email, checks)
		}
	}
}

func TestAuthService_CreateAccountValidation(t *testing.T) {
	svc := newAuthService(&fakeUsers{}, "a", "t")
	ctx := context.Background()

	tests := []struct {
		name    string
		in      CreateAccountInput
		wantErr error
	}{
		{"неизвестная роль", CreateAccountInput{Email: "x@y.com", Role: "owner", Password: "12345678"}, ErrInvalidRole},
		{"некорректный email", CreateAccountInput{Email: "not-an-email", Role: rbac.RoleAdmin, Password: "12345678"}, ErrValidation},
		{"короткий пароль", CreateAccountInput{Email: "x@y.com", Role: rbac.RoleAdmin, Password: "1234567"}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateAccount(ctx, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("ожидалась %v, получена %v", tt.wantErr, err)
			}
		})
	}
}

func TestAuthService_CreateAccountDuplicate(t *testing.T) {
	svc := newAuthService(&fakeUsers{}, "a", "t")
	ctx := context.Background()
	in := CreateAccountInput{Email: "ana@infraservicos.com", Role: rbac.RoleTechnician, Password: "12345678"}

	if _, err := svc.CreateAccount(ctx, in); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateAccount(ctx, in); !errors.Is(err, ErrConflict) {
		t.Errorf("ожидалась ErrConflict, получена %v", err)
	}

	// Тот же email с другой ролью допустим
	in.Role = rbac.RoleAdmin
	if _, err := svc.CreateAccount(ctx, in); err != nil {
		t.Errorf("email другой роли должен создаваться: %v", err)
	}
}

func TestAuthService_ListAccounts(t *testing.T) {
	users := &fakeUsers{}
	svc := newAuthService(users, "a", "t")
	ctx := context.Background()

	for _, in := range []CreateAccountInput{
		{Email: "a1@x.com", Role: rbac.RoleAdmin, Password: "12345678"},
		{Email: "t1@x.com", Role: rbac.RoleTechnician, Password: "12345678"},
		{Email: "t2@x.com", Role: rbac.RoleTechnician, Password: "12345678"},
	} {
		if _, err := svc.CreateAccount(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	role := rbac.RoleTechnician
	list, total, err := svc.ListAccounts(ctx, &role, 1, 0)
	if err != nil {
		t.Fatalf("ListAccounts() вернул ошибку: %v", err)
	}
	if len(list) != 1 || total != 2 {
		t.Errorf("len=%d total=%d, ожидается 1 и 2", len(list), total)
	}

	bad := "owner"
	if _, _, err := svc.ListAccounts(ctx, &bad, 10, 0); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("ожидалась ErrInvalidRole, получена %v", err)
	}
}
