package httpserver

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストのキャンセルでエラー無く停止すること", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler())
		}()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run()が停止しない")
		}
	})

	t.Run("使用中のアドレスではエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Listen() error = %v", err)
		}
		defer func() { _ = ln.Close() }()

		if err := Run(context.Background(), ln.Addr().String(), http.NotFoundHandler()); err == nil {
			t.Error("エラーが返されるべき")
		}
	})
}
