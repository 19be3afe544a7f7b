package orders

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/nao1215/minishop/pkg/migration"
)

// migrationFS は注文テーブルのマイグレーションファイル。
//
//go:embed migrations/*.sql
var migrationFS embed.FS

// initSchema はSQLiteデータベースにマイグレーションを適用する。
func initSchema(ctx context.Context, db *sql.DB) error {
	if _, err := migration.Run(ctx, db, migrationFS, "migrations"); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
