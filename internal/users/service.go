package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/minishop/pkg/apperror"
	"github.com/nao1215/minishop/pkg/middleware"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost はパスワードハッシュの計算コスト。
const bcryptCost = 10

// Service はユーザー登録、ログイン、プロフィール管理を行う。
type Service struct {
	// store はユーザーの保存先。
	store *Store
	// jwtSecret はトークン署名用の秘密鍵。
	jwtSecret string
	// tokenTTL はトークンの有効期間。
	tokenTTL time.Duration
	// hashCost はbcryptのコスト。テストでは下げる。
	hashCost int
	// now は現在時刻を返す。
	now func() time.Time
}

// NewService は新しいServiceを生成する。
func NewService(store *Store, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		store:     store,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		hashCost:  bcryptCost,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Roles    []string
}

// ProfileUpdate はプロフィール更新の入力。nilの項目は変更しない。
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// Register はユーザーを登録し、トークンを発行する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return User{}, "", apperror.Internal(fmt.Errorf("パスワードのハッシュ化に失敗: %w", err))
	}

	roles := in.Roles
	if len(roles) == 0 {
		roles = DefaultRoles
	}
	now := s.now()
	u := User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return User{}, "", emailExists()
		}
		return User{}, "", apperror.Internal(err)
	}

	token, err := s.issueToken(u)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

// Login はメールアドレスとパスワードを検証し、トークンを発行する。
// メールアドレスの誤りとパスワードの誤りは区別せずINVALID_CREDENTIALSとする。
func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	u, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, "", invalidCredentials()
	}
	if err != nil {
		return User{}, "", apperror.Internal(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, "", invalidCredentials()
	}

	token, err := s.issueToken(u)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

// Profile はユーザーを取得する。
func (s *Service) Profile(ctx context.Context, userID string) (User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, userNotFound()
	}
	if err != nil {
		return User{}, apperror.Internal(err)
	}
	return u, nil
}

// UpdateProfile は名前とメールアドレスを更新する。
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (User, error) {
	u, err := s.Profile(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	u.UpdatedAt = s.now()

	switch err := s.store.Update(ctx, u); {
	case errors.Is(err, ErrEmailTaken):
		return User{}, emailExists()
	case errors.Is(err, ErrUserNotFound):
		return User{}, userNotFound()
	case err != nil:
		return User{}, apperror.Internal(err)
	}
	return u, nil
}

// Exists はユーザーが存在するかどうかを返す。
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.store.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperror.Internal(err)
	}
	return true, nil
}

func (s *Service) issueToken(u User) (string, error) {
	token, err := middleware.GenerateJWT(s.jwtSecret, s.tokenTTL, u.ID, u.Email, u.Roles)
	if err != nil {
		return "", apperror.Internal(err)
	}
	return token, nil
}

func emailExists() error {
	return apperror.New(apperror.KindValidation, apperror.CodeEmailExists, "このメールアドレスは既に登録されています")
}

func invalidCredentials() error {
	return apperror.New(apperror.KindUnauthorized, apperror.CodeInvalidCredentials, "メールアドレスまたはパスワードが正しくありません")
}

func userNotFound() error {
	return apperror.NotFound(apperror.CodeUserNotFound, "ユーザーが見つかりません")
}
