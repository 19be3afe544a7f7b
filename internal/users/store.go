package users

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/minishop/pkg/migration"
	_ "modernc.org/sqlite"
)

var (
	// ErrUserNotFound は指定したユーザーが存在しないことを表す。
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken はメールアドレスが既に使われていることを表す。
	ErrEmailTaken = errors.New("email already registered")
)

// migrationFS はユーザーテーブルのマイグレーションファイル。
//
//go:embed migrations/*.sql
var migrationFS embed.FS

// Store はSQLiteにユーザーを永続化する。
type Store struct {
	db *sql.DB
}

// OpenStore はpathのSQLiteデータベースを開き、スキーマを適用する。
// pathが空の場合はインメモリのデータベースを使用する。
func OpenStore(ctx context.Context, path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// :memory: は接続ごとに別のDBになるため1本に固定する
	db.SetMaxOpenConns(1)

	s, err := NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore は接続済みのdbにマイグレーションを適用してStoreを生成する。
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := migration.Run(ctx, db, migrationFS, "migrations"); err != nil {
		return nil, fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return &Store{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Create はユーザーを追加する。メールアドレスが重複する場合はErrEmailTakenを返す。
func (s *Store) Create(ctx context.Context, u User) error {
	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return fmt.Errorf("ロールのシリアライズに失敗: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, roles, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash, u.Name, string(roles),
		u.CreatedAt.UTC().Format(time.RFC3339Nano), u.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return nil
}

// Update は名前とメールアドレスと更新日時を書き換える。
func (s *Store) Update(ctx context.Context, u User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = ?, name = ?, updated_at = ? WHERE id = ?
	`, u.Email, u.Name, u.UpdatedAt.UTC().Format(time.RFC3339Nano), u.ID)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("ユーザーの更新に失敗: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetByID はIDでユーザーを取得する。
func (s *Store) GetByID(ctx context.Context, id string) (User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByEmail はメールアドレスでユーザーを取得する。
func (s *Store) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.getBy(ctx, "email", email)
}

// getBy はcolumnがvalueに一致するユーザーを取得する。columnは固定値のみ渡すこと。
func (s *Store) getBy(ctx context.Context, column, value string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, roles, created_at, updated_at
		FROM users WHERE `+column+` = ?
	`, value)

	var (
		u                           User
		roles, createdAt, updatedAt string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &roles, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}

	if err := json.Unmarshal([]byte(roles), &u.Roles); err != nil {
		return User{}, fmt.Errorf("ロールのデシリアライズに失敗: %w", err)
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return User{}, fmt.Errorf("作成日時の解析に失敗: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return User{}, fmt.Errorf("更新日時の解析に失敗: %w", err)
	}
	return u, nil
}

// isUniqueViolation はerrが一意制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
