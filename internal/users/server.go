package users

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/minishop/pkg/config"
	"github.com/nao1215/minishop/pkg/httpserver"
	"github.com/nao1215/minishop/pkg/middleware"
	"github.com/nao1215/minishop/pkg/response"
)

// serviceName はログとメトリクスに使うサービス名。
const serviceName = "users"

// Server はユーザーサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// service はユーザーのユースケース。
	service *Service
	// store はユーザーの保存先。終了時に閉じる。
	store *Store
	// metrics はHTTPメトリクス。
	metrics *middleware.Metrics
	// startedAt はサーバーの起動日時。
	startedAt time.Time
}

// NewServer は環境変数の設定からユーザーサーバーを生成する。
// USERS_DB_PATHが空の場合はインメモリのSQLiteを使用する。
func NewServer(port string) (*Server, error) {
	store, err := OpenStore(context.Background(), config.GetEnvOr("USERS_DB_PATH", ""))
	if err != nil {
		return nil, fmt.Errorf("ユーザーストアの初期化に失敗: %w", err)
	}

	jwtSecret := config.GetEnvOr("JWT_SECRET", "dev-secret-key")
	ttl := config.GetDurationOr("JWT_EXPIRES_IN", 24*time.Hour)

	s := newServer(port, NewService(store, jwtSecret, ttl), middleware.JWTAuth(jwtSecret))
	s.store = store
	return s, nil
}

// newServer はルーティングを組み立てたServerを生成する。authはプロフィールAPIに適用する認証ミドルウェア。
func newServer(port string, service *Service, auth gin.HandlerFunc) *Server {
	router := gin.New()
	s := &Server{
		router:    router,
		port:      port,
		service:   service,
		metrics:   middleware.NewMetrics(serviceName),
		startedAt: time.Now(),
	}
	router.Use(middleware.RequestID("Users", true))
	router.Use(s.metrics.Middleware())
	router.Use(middleware.Recovery())
	s.setupRoutes(auth)
	return s
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされたら停止する。
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				log.Printf("[Users] データベースのクローズに失敗: %v", err)
			}
		}
	}()
	return httpserver.Run(ctx, fmt.Sprintf(":%s", s.port), s.router)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	v1 := s.router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			// ユーザー登録
			authGroup.POST("/register", s.handleRegister())
			// ログイン
			authGroup.POST("/login", s.handleLogin())
		}

		profile := v1.Group("/users/profile")
		profile.Use(auth)
		{
			// プロフィール取得
			profile.GET("", s.handleGetProfile())
			// プロフィール更新
			profile.PUT("", s.handleUpdateProfile())
		}
	}

	// サービス間通信用。ゲートウェイからは転送しない
	s.router.GET("/internal/v1/users/:id", s.handleLookup())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{
			"status":    "OK",
			"service":   "Users Service",
			"timestamp": time.Now().UTC(),
		})
	})
	s.router.GET("/status", func(c *gin.Context) {
		response.OK(c, gin.H{
			"status": "Users service is running",
			"uptime": time.Since(s.startedAt).Round(time.Second).String(),
		})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password はパスワード。6文字以上。
	Password string `json:"password" binding:"required,min=6"`
	// Name は表示名。
	Name string `json:"name" binding:"required,min=1"`
	// Roles は付与するロール。省略時はuser。
	Roles []string `json:"roles" binding:"omitempty,dive,oneof=user admin manager"`
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// updateProfileRequest はプロフィール更新リクエストのJSON構造。
type updateProfileRequest struct {
	// Name は新しい表示名。
	Name *string `json:"name" binding:"omitempty,min=1"`
	// Email は新しいメールアドレス。
	Email *string `json:"email" binding:"omitempty,email"`
}

// authResponse は登録とログインのレスポンス構造。
type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// handleRegister はユーザー登録を処理するハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := response.BindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}

		u, token, err := s.service.Register(c.Request.Context(), RegisterInput{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			Roles:    req.Roles,
		})
		if err != nil {
			log.Printf("[Users] request_id=%s 登録に失敗 email=%s: %v", middleware.GetRequestID(c), req.Email, err)
			response.Error(c, err)
			return
		}

		log.Printf("[Users] request_id=%s ユーザーを登録しました user_id=%s", middleware.GetRequestID(c), u.ID)
		response.Created(c, authResponse{User: toUserResponse(u), Token: token})
	}
}

// handleLogin はログインを処理するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := response.BindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}

		u, token, err := s.service.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			log.Printf("[Users] request_id=%s ログインに失敗 email=%s", middleware.GetRequestID(c), req.Email)
			response.Error(c, err)
			return
		}

		log.Printf("[Users] request_id=%s ログインしました user_id=%s", middleware.GetRequestID(c), u.ID)
		response.OK(c, authResponse{User: toUserResponse(u), Token: token})
	}
}

// handleGetProfile は認証済みユーザーのプロフィール取得を処理するハンドラを返す。
func (s *Server) handleGetProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.service.Profile(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, toUserResponse(u))
	}
}

// handleUpdateProfile は認証済みユーザーのプロフィール更新を処理するハンドラを返す。
// 存在確認を入力検証より先に行う。
func (s *Server) handleUpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if _, err := s.service.Profile(c.Request.Context(), userID); err != nil {
			response.Error(c, err)
			return
		}

		var req updateProfileRequest
		if err := response.BindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}

		u, err := s.service.UpdateProfile(c.Request.Context(), userID, ProfileUpdate{Name: req.Name, Email: req.Email})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, toUserResponse(u))
	}
}

// handleLookup はサービス間のユーザー存在確認を処理するハンドラを返す。
func (s *Server) handleLookup() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ok, err := s.service.Exists(c.Request.Context(), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		if !ok {
			response.Error(c, userNotFound())
			return
		}
		response.OK(c, gin.H{"id": id, "exists": true})
	}
}
