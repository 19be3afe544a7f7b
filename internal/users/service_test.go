package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/minishop/pkg/apperror"
	"github.com/nao1215/minishop/pkg/middleware"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// newTestService はインメモリSQLiteと低コストのbcryptでServiceを構築する。
func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	svc := NewService(store, testSecret, time.Hour)
	svc.hashCost = bcrypt.MinCost
	return svc
}

func registerTestUser(t *testing.T, svc *Service, email string) User {
	t.Helper()

	u, _, err := svc.Register(context.Background(), RegisterInput{Email: email, Password: "secret123", Name: "Taro"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return u
}

func TestServiceRegister(t *testing.T) {
	t.Parallel()

	t.Run("登録するとハッシュ化したパスワードと既定のロールで保存されること", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		u, token, err := svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "secret123", Name: "A"})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if u.PasswordHash == "secret123" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")) != nil {
			t.Error("パスワードが正しくハッシュ化されていない")
		}
		if len(u.Roles) != 1 || u.Roles[0] != middleware.RoleUser {
			t.Errorf("Roles = %v, want [user]", u.Roles)
		}

		p, err := middleware.ParseJWT(testSecret, token)
		if err != nil {
			t.Fatalf("ParseJWT() error = %v", err)
		}
		if p.UserID != u.ID || p.Email != "a@example.com" {
			t.Errorf("principal = %+v", p)
		}
	})

	t.Run("指定したロールで登録できること", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		u, _, err := svc.Register(context.Background(), RegisterInput{
			Email: "admin@example.com", Password: "secret123", Name: "Admin", Roles: []string{"admin", "user"},
		})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		got, _ := svc.Profile(context.Background(), u.ID)
		if !got.HasRole("admin") || !got.HasRole("user") {
			t.Errorf("Roles = %v", got.Roles)
		}
	})

	t.Run("登録済みのメールアドレスはEMAIL_EXISTSになること", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		registerTestUser(t, svc, "dup@example.com")
		_, _, err := svc.Register(context.Background(), RegisterInput{Email: "dup@example.com", Password: "other123", Name: "B"})
		if err == nil || apperror.As(err).Code != apperror.CodeEmailExists {
			t.Errorf("err = %v, want EMAIL_EXISTS", err)
		}
	})
}

func TestServiceLogin(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	u := registerTestUser(t, svc, "login@example.com")

	t.Run("正しい資格情報でトークンを発行すること", func(t *testing.T) {
		t.Parallel()

		got, token, err := svc.Login(context.Background(), "login@example.com", "secret123")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if got.ID != u.ID || token == "" {
			t.Errorf("got = %+v token = %q", got, token)
		}
	})

	t.Run("誤ったパスワードと未登録のメールアドレスは同じエラーになること", func(t *testing.T) {
		t.Parallel()

		for _, tc := range [][2]string{{"login@example.com", "wrong-pass"}, {"nobody@example.com", "secret123"}} {
			_, _, err := svc.Login(context.Background(), tc[0], tc[1])
			appErr := apperror.As(err)
			if err == nil || appErr.Code != apperror.CodeInvalidCredentials || appErr.Kind != apperror.KindUnauthorized {
				t.Errorf("%s: err = %v, want INVALID_CREDENTIALS", tc[0], err)
			}
		}
	})
}

func TestServiceUpdateProfile(t *testing.T) {
	t.Parallel()

	t.Run("指定した項目だけを更新すること", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		u := registerTestUser(t, svc, "before@example.com")
		name := "Hanako"

		updated, err := svc.UpdateProfile(context.Background(), u.ID, ProfileUpdate{Name: &name})
		if err != nil {
			t.Fatalf("UpdateProfile() error = %v", err)
		}
		if updated.Name != "Hanako" || updated.Email != "before@example.com" {
			t.Errorf("updated = %+v", updated)
		}

		got, _ := svc.Profile(context.Background(), u.ID)
		if got.Name != "Hanako" {
			t.Errorf("保存されていない: %+v", got)
		}
	})

	t.Run("他人のメールアドレスへの変更はEMAIL_EXISTSになること", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		registerTestUser(t, svc, "taken@example.com")
		u := registerTestUser(t, svc, "mine@example.com")
		email := "taken@example.com"

		_, err := svc.UpdateProfile(context.Background(), u.ID, ProfileUpdate{Email: &email})
		if err == nil || apperror.As(err).Code != apperror.CodeEmailExists {
			t.Errorf("err = %v, want EMAIL_EXISTS", err)
		}
	})

	t.Run("存在しないユーザーはUSER_NOT_FOUNDになること", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		_, err := svc.UpdateProfile(context.Background(), "missing", ProfileUpdate{})
		if err == nil || apperror.As(err).Code != apperror.CodeUserNotFound {
			t.Errorf("err = %v, want USER_NOT_FOUND", err)
		}
	})
}

func TestStore(t *testing.T) {
	t.Parallel()

	t.Run("存在しないユーザーはErrUserNotFoundになること", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		if _, err := svc.store.GetByEmail(context.Background(), "x@example.com"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("err = %v, want ErrUserNotFound", err)
		}
		if err := svc.store.Update(context.Background(), User{ID: "missing", Email: "m@example.com", UpdatedAt: time.Now()}); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("Update() err = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("Existsは登録の有無を返すこと", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		u := registerTestUser(t, svc, "exists@example.com")
		if ok, err := svc.Exists(context.Background(), u.ID); !ok || err != nil {
			t.Errorf("Exists(登録済み) = %v, %v", ok, err)
		}
		if ok, err := svc.Exists(context.Background(), "missing"); ok || err != nil {
			t.Errorf("Exists(未登録) = %v, %v", ok, err)
		}
	})

	t.Run("OpenStoreはパス未指定でインメモリDBを使うこと", func(t *testing.T) {
		t.Parallel()

		store, err := OpenStore(context.Background(), "")
		if err != nil {
			t.Fatalf("OpenStore() error = %v", err)
		}
		defer func() { _ = store.Close() }()

		now := time.Now()
		if err := store.Create(context.Background(), User{ID: "1", Email: "mem@example.com", PasswordHash: "h", Name: "M", Roles: DefaultRoles, CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		got, err := store.GetByID(context.Background(), "1")
		if err != nil || got.Email != "mem@example.com" {
			t.Errorf("GetByID() = %+v, %v", got, err)
		}
	})
}
