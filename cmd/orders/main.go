// 注文サービスのエントリポイント。
// 注文の作成、参照、ステータス更新、キャンセルと注文イベントの発行を担当する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/minishop/internal/orders"
	"github.com/nao1215/minishop/pkg/config"
)

func main() {
	config.Load()
	port := config.GetEnvOr("PORT", "8002")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := orders.NewServer(port)
	if err != nil {
		log.Fatalf("注文サーバーの初期化に失敗: %v", err)
	}

	log.Printf("注文サービスを起動します: :%s", port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("注文サービスの起動に失敗: %v", err)
	}
	log.Printf("注文サービスを停止しました")
}
