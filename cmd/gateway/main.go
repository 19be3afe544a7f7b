// APIゲートウェイのエントリポイント。
// 外部からアクセス可能な唯一のサービスであり、ユーザーサービスと注文サービスへリクエストを転送する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/minishop/internal/gateway"
	"github.com/nao1215/minishop/pkg/config"
)

func main() {
	config.Load()
	port := config.GetEnvOr("PORT", "8000")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := gateway.NewServer(port, gateway.LoadConfig())

	log.Printf("Gatewayサービスを起動します: :%s", port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
	log.Printf("Gatewayサービスを停止しました")
}
