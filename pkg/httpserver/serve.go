// Package httpserver はGinルーターをHTTPサーバーとして公開し、終了シグナルで安全に停止させる。
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// ShutdownTimeout は処理中のリクエストの完了を待つ上限。
const ShutdownTimeout = 10 * time.Second

// Run はaddrでhandlerを公開し、ctxがキャンセルされたら処理中のリクエストを待って停止する。
// ctxの終了による停止はエラーとしない。
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[Server] シャットダウンします addr=%s", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
