package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/minishop/pkg/apperror"
	"github.com/nao1215/minishop/pkg/config"
	"github.com/nao1215/minishop/pkg/httpclient"
	"github.com/nao1215/minishop/pkg/httpserver"
	"github.com/nao1215/minishop/pkg/middleware"
	"github.com/nao1215/minishop/pkg/response"
)

// serviceName はメトリクスに使うサービス名。
const serviceName = "gateway"

// forwardHeaders は上流サービスへ転送するリクエストヘッダー。
var forwardHeaders = []string{"Authorization", "Content-Type", middleware.HeaderRequestID}

// hopByHopHeaders は上流のレスポンスから中継しないヘッダー。
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// Config はゲートウェイの設定。
type Config struct {
	// UsersURL はユーザーサービスのベースURL。
	UsersURL string
	// OrdersURL は注文サービスのベースURL。
	OrdersURL string
	// CORSOrigins は許可するオリジン。"*"はすべてを許可する。
	CORSOrigins []string
	// RateLimitMax はウィンドウ内でクライアントごとに許可するリクエスト数。
	RateLimitMax int
	// RateLimitWindow はレートリミットのウィンドウ幅。
	RateLimitWindow time.Duration
	// Timeout は上流サービスへの転送のタイムアウト。
	Timeout time.Duration
}

// LoadConfig は環境変数からゲートウェイの設定を読み込む。
func LoadConfig() Config {
	origins := config.GetList("CORS_ORIGIN")
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return Config{
		UsersURL:        config.GetEnvOr("USERS_SERVICE_URL", "http://localhost:8001"),
		OrdersURL:       config.GetEnvOr("ORDERS_SERVICE_URL", "http://localhost:8002"),
		CORSOrigins:     origins,
		RateLimitMax:    config.GetIntOr("RATE_LIMIT_MAX", 100),
		RateLimitWindow: config.GetDurationOr("RATE_LIMIT_WINDOW", 15*time.Minute),
		Timeout:         config.GetDurationOr("UPSTREAM_TIMEOUT", httpclient.DefaultTimeout),
	}
}

// Server はAPIゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// users はユーザーサービスへの転送用クライアント。
	users *httpclient.Client
	// orders は注文サービスへの転送用クライアント。
	orders *httpclient.Client
	// limiter は/api配下に適用するレートリミッタ。
	limiter *middleware.RateLimiter
	// metrics はHTTPメトリクス。
	metrics *middleware.Metrics
	// startedAt はサーバーの起動日時。
	startedAt time.Time
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(port string, cfg Config) *Server {
	router := gin.New()
	s := &Server{
		router:    router,
		port:      port,
		users:     httpclient.New(cfg.UsersURL, httpclient.WithTimeout(cfg.Timeout)),
		orders:    httpclient.New(cfg.OrdersURL, httpclient.WithTimeout(cfg.Timeout)),
		limiter:   middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		metrics:   middleware.NewMetrics(serviceName),
		startedAt: time.Now(),
	}

	// 外部からのX-Request-IDは信用せず、常にゲートウェイで採番する
	router.Use(middleware.RequestID("Gateway", false))
	router.Use(s.metrics.Middleware())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	s.setupRoutes()
	return s
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされたら停止する。
func (s *Server) Run(ctx context.Context) error {
	return httpserver.Run(ctx, fmt.Sprintf(":%s", s.port), s.router)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	api.Use(s.limiter.Middleware())
	{
		v1 := api.Group("/v1")
		// 認証（登録・ログイン）
		v1.Any("/auth/*path", s.handleProxy(s.users))
		// ユーザープロフィール
		v1.Any("/users", s.handleProxy(s.users))
		v1.Any("/users/*path", s.handleProxy(s.users))
		// 注文
		v1.Any("/orders", s.handleProxy(s.orders))
		v1.Any("/orders/*path", s.handleProxy(s.orders))
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{
			"status":    "OK",
			"service":   "API Gateway",
			"timestamp": time.Now().UTC(),
		})
	})
	s.router.GET("/status", func(c *gin.Context) {
		response.OK(c, gin.H{
			"status": "API Gateway is running",
			"uptime": time.Since(s.startedAt).Round(time.Second).String(),
			"services": gin.H{
				"users":  s.users.BaseURL(),
				"orders": s.orders.BaseURL(),
			},
		})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, apperror.CodeNotFound, "ルートが見つかりません")
	})
}

// handleProxy はリクエストをupstreamへ同じパスで転送するハンドラを返す。
// 上流のステータス、ヘッダー、ボディはそのまま中継する。
func (s *Server) handleProxy(upstream *httpclient.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := middleware.GetRequestID(c)

		header := make(http.Header, len(forwardHeaders))
		for _, key := range forwardHeaders {
			if v := c.GetHeader(key); v != "" {
				header.Set(key, v)
			}
		}

		resp, err := upstream.Forward(c.Request.Context(), c.Request.Method, c.Request.URL.RequestURI(), header, c.Request.Body)
		if err != nil {
			log.Printf("[Gateway] request_id=%s upstream=%s 転送に失敗: %v", requestID, upstream.BaseURL(), err)
			if httpclient.IsTimeout(err) {
				response.Fail(c, http.StatusGatewayTimeout, apperror.CodeGatewayTimeout, "上流サービスが時間内に応答しませんでした")
				return
			}
			response.Fail(c, http.StatusServiceUnavailable, apperror.CodeServiceUnavailable, "上流サービスを利用できません")
			return
		}
		defer resp.Body.Close()

		for key, values := range resp.Header {
			if _, skip := hopByHopHeaders[key]; skip {
				continue
			}
			c.Writer.Header()[key] = values
		}
		c.Status(resp.StatusCode)
		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			log.Printf("[Gateway] request_id=%s upstream=%s レスポンスの中継に失敗: %v", requestID, upstream.BaseURL(), err)
		}
	}
}
