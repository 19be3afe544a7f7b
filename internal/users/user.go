package users

import (
	"slices"
	"time"

	"github.com/nao1215/minishop/pkg/middleware"
)

// DefaultRoles は登録時にロールを指定しなかった場合のロール。
var DefaultRoles = []string{middleware.RoleUser}

// User はユーザーエンティティ。
type User struct {
	// ID はユーザーの一意識別子。
	ID string
	// Email はメールアドレス。全ユーザーで一意。
	Email string
	// PasswordHash はbcryptでハッシュ化したパスワード。
	PasswordHash string
	// Name は表示名。
	Name string
	// Roles は付与されたロール。
	Roles []string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// HasRole は指定ロールを持つかどうかを返す。
func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// userResponse はパスワードハッシュを除いたユーザーのJSON表現。
type userResponse struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

// toUserResponse はユーザーをJSONレスポンスに変換する。
func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
