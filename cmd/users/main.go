// ユーザーサービスのエントリポイント。
// ユーザー登録、ログイン、プロフィール管理とJWTの発行を担当する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/minishop/internal/users"
	"github.com/nao1215/minishop/pkg/config"
)

func main() {
	config.Load()
	port := config.GetEnvOr("PORT", "8001")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := users.NewServer(port)
	if err != nil {
		log.Fatalf("ユーザーサーバーの初期化に失敗: %v", err)
	}

	log.Printf("ユーザーサービスを起動します: :%s", port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("ユーザーサービスの起動に失敗: %v", err)
	}
	log.Printf("ユーザーサービスを停止しました")
}
