package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/minishop/pkg/apperror"
	"github.com/nao1215/minishop/pkg/response"
)

// ロール名。
const (
	// RoleUser は一般ユーザーを表す。
	RoleUser = "user"
	// RoleAdmin は管理者を表す。
	RoleAdmin = "admin"
	// RoleManager はマネージャーを表す。
	RoleManager = "manager"
)

// tokenIssuer はトークン発行者として埋め込む値。
const tokenIssuer = "minishop-users"

// contextKeyPrincipal はGinコンテキストに認証済みプリンシパルを格納するキー。
const contextKeyPrincipal = "principal"

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"userId"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Roles はユーザーに付与されたロール。
	Roles []string `json:"roles"`
}

// Principal はリクエストを行っている認証済みの主体。
type Principal struct {
	// UserID はユーザーの一意識別子。
	UserID string
	// Email はユーザーのメールアドレス。
	Email string
	// Roles は付与されたロール。
	Roles []string
}

// HasRole はプリンシパルが指定ロールを持つかを返す。
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// GenerateJWT はユーザー情報からJWTトークンを生成する。
// usersサービスが登録・ログイン時に呼び出す。
func GenerateJWT(secret string, ttl time.Duration, userID, email string, roles []string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
		UserID: userID,
		Email:  email,
		Roles:  roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークンを検証し、プリンシパルを返す。
func ParseJWT(secret, tokenString string) (Principal, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return Principal{}, errors.New("トークンが無効です")
	}
	return Principal{UserID: claims.UserID, Email: claims.Email, Roles: claims.Roles}, nil
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// requiredRolesが指定された場合、いずれかのロールを持たないリクエストは403で拒否する。
// 検証に成功した場合、コンテキストにプリンシパルを設定する。
func JWTAuth(secret string, requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || tokenString == "" {
			response.AbortFail(c, http.StatusUnauthorized, apperror.CodeNoToken, "認証トークンが必要です")
			return
		}

		principal, err := ParseJWT(secret, tokenString)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, apperror.CodeInvalidToken, "トークンが無効または期限切れです")
			return
		}

		if len(requiredRoles) > 0 && !slices.ContainsFunc(requiredRoles, principal.HasRole) {
			response.AbortFail(c, http.StatusForbidden, apperror.CodeForbidden, "アクセスに必要な権限がありません")
			return
		}

		c.Set(contextKeyPrincipal, principal)
		c.Next()
	}
}

// SetPrincipal はGinコンテキストにプリンシパルを設定する。
// テストや内部ルーティングでJWTAuthの代わりに使用する。
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(contextKeyPrincipal, p)
}

// GetPrincipal はGinコンテキストからプリンシパルを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(contextKeyPrincipal)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
func GetUserID(c *gin.Context) string {
	p, _ := GetPrincipal(c)
	return p.UserID
}
