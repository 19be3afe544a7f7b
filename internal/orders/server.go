package orders

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/minishop/pkg/config"
	"github.com/nao1215/minishop/pkg/event"
	"github.com/nao1215/minishop/pkg/httpclient"
	"github.com/nao1215/minishop/pkg/httpserver"
	"github.com/nao1215/minishop/pkg/middleware"
	"github.com/nao1215/minishop/pkg/response"
	"github.com/shopspring/decimal"
)

// serviceName はログとメトリクスに使うサービス名。
const serviceName = "orders"

// Server は注文サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// service は注文のユースケース。
	service *Service
	// metrics はHTTPメトリクス。
	metrics *middleware.Metrics
	// startedAt はサーバーの起動日時。
	startedAt time.Time
	// closers は終了時に閉じるリソース。
	closers []io.Closer
}

// NewServer は環境変数の設定から注文サーバーを生成する。
// ORDERS_DB_PATHが空の場合はメモリ上に注文を保持する。
func NewServer(port string) (*Server, error) {
	var (
		store   Store
		closers []io.Closer
	)
	broadcaster := event.NewBroadcaster(event.LogObserver{Service: "Orders"})
	if path := config.GetEnvOr("ORDERS_DB_PATH", ""); path != "" {
		sqliteStore, err := OpenSQLiteStore(context.Background(), path)
		if err != nil {
			return nil, fmt.Errorf("注文ストアの初期化に失敗: %w", err)
		}
		store = sqliteStore
		closers = append(closers, sqliteStore)
		// 永続化する場合は発行したイベントも同じデータベースに残す
		broadcaster.Subscribe(NewEventJournal(sqliteStore))
	} else {
		store = NewMemoryStore()
	}

	if brokers := config.GetList("KAFKA_BROKERS"); len(brokers) > 0 {
		kafkaObserver := event.NewKafkaObserver(brokers, config.GetEnvOr("KAFKA_ORDER_TOPIC", "order-events"))
		broadcaster.Subscribe(kafkaObserver)
		closers = append(closers, kafkaObserver)
	}

	var users UserDirectory = AllowAllDirectory{}
	if config.GetBool("USER_CHECK_ENABLED") {
		usersURL := config.GetEnvOr("USERS_SERVICE_URL", "http://localhost:8001")
		users = NewHTTPUserDirectory(httpclient.New(usersURL))
	}

	jwtSecret := config.GetEnvOr("JWT_SECRET", "dev-secret-key")
	s := newServer(port, NewService(store, users, NewEventPublisher(broadcaster)), middleware.JWTAuth(jwtSecret))
	s.closers = closers
	return s, nil
}

// newServer はルーティングを組み立てたServerを生成する。authは注文APIに適用する認証ミドルウェア。
func newServer(port string, service *Service, auth gin.HandlerFunc) *Server {
	router := gin.New()
	s := &Server{
		router:    router,
		port:      port,
		service:   service,
		metrics:   middleware.NewMetrics(serviceName),
		startedAt: time.Now(),
	}
	router.Use(middleware.RequestID("Orders", true))
	router.Use(s.metrics.Middleware())
	router.Use(middleware.Recovery())
	s.setupRoutes(auth)
	return s
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされたら処理中のリクエストを待って停止する。
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	return httpserver.Run(ctx, fmt.Sprintf(":%s", s.port), s.router)
}

// Close はストアやイベント送信先などのリソースを閉じる。
func (s *Server) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			log.Printf("[Orders] リソースのクローズに失敗: %v", err)
		}
	}
	s.closers = nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	api := s.router.Group("/api/v1")
	api.Use(auth)
	{
		orders := api.Group("/orders")
		{
			// 注文作成
			orders.POST("", s.handleCreate())
			// 注文一覧取得
			orders.GET("", s.handleList())
			// 注文詳細取得
			orders.GET("/:id", s.handleGet())
			// ステータス更新
			orders.PUT("/:id/status", s.handleUpdateStatus())
			// 注文キャンセル
			orders.DELETE("/:id", s.handleCancel())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{
			"status":    "OK",
			"service":   "Orders Service",
			"timestamp": time.Now().UTC(),
		})
	})
	s.router.GET("/status", func(c *gin.Context) {
		response.OK(c, gin.H{
			"service": "Orders Service",
			"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
		})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// orderItemRequest は注文明細のリクエスト構造。
type orderItemRequest struct {
	// ProductName は商品名。
	ProductName string `json:"productName" binding:"required"`
	// Quantity は数量。
	Quantity int `json:"quantity" binding:"required,min=1"`
	// Price は単価。正の値かどうかは認可より前にNewOrderで検証する。
	Price decimal.Decimal `json:"price"`
}

// createOrderRequest は注文作成リクエストのJSON構造。
type createOrderRequest struct {
	// UserID は注文者のID。
	UserID string `json:"userId" binding:"required,uuid"`
	// Items は注文明細。
	Items []orderItemRequest `json:"items" binding:"required,min=1,dive"`
	// TotalAmount は合計金額。省略時は明細から計算する。
	TotalAmount *decimal.Decimal `json:"totalAmount"`
}

// updateStatusRequest はステータス更新リクエストのJSON構造。
// 値の検証は存在確認と認可の後に行うため、ここではタグで検証しない。
type updateStatusRequest struct {
	// Status は変更後のステータス。
	Status string `json:"status"`
}

// orderItemResponse は注文明細のJSONレスポンス構造。
type orderItemResponse struct {
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// orderResponse は注文のJSONレスポンス構造。
type orderResponse struct {
	// ID は注文の一意識別子。
	ID string `json:"id"`
	// UserID は注文者のID。
	UserID string `json:"userId"`
	// Items は注文明細。
	Items []orderItemResponse `json:"items"`
	// Status はステータス。
	Status Status `json:"status"`
	// TotalAmount は合計金額。
	TotalAmount decimal.Decimal `json:"totalAmount"`
	// CreatedAt は作成日時（ISO 8601）。
	CreatedAt string `json:"createdAt"`
	// UpdatedAt は更新日時（ISO 8601）。
	UpdatedAt string `json:"updatedAt"`
}

// listResponse は注文一覧のJSONレスポンス構造。
type listResponse struct {
	Orders     []orderResponse `json:"orders"`
	Pagination Pagination      `json:"pagination"`
}

// toOrderResponse は注文をJSONレスポンスに変換する。
func toOrderResponse(o Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{ProductName: item.ProductName, Quantity: item.Quantity, Price: item.Price})
	}
	return orderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		Items:       items,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   o.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// principalFrom はGinコンテキストの認証情報を注文ドメインのプリンシパルに変換する。
func principalFrom(c *gin.Context) Principal {
	p, _ := middleware.GetPrincipal(c)
	return Principal{UserID: p.UserID, Roles: p.Roles}
}

// requestContext はリクエストIDを伝播するコンテキストを返す。
func requestContext(c *gin.Context) context.Context {
	return httpclient.WithRequestID(c.Request.Context(), middleware.GetRequestID(c))
}

// handleCreate は注文作成を処理するハンドラを返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := response.BindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}

		items := make([]Item, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, Item{ProductName: item.ProductName, Quantity: item.Quantity, Price: item.Price})
		}

		o, err := s.service.Create(requestContext(c), principalFrom(c), CreateInput{
			UserID:      req.UserID,
			Items:       items,
			TotalAmount: req.TotalAmount,
		})
		if err != nil {
			response.Error(c, err)
			return
		}

		log.Printf("[Orders] request_id=%s 注文を作成しました order_id=%s user_id=%s total=%s",
			middleware.GetRequestID(c), o.ID, o.UserID, o.TotalAmount)
		response.Created(c, toOrderResponse(o))
	}
}

// handleList は注文一覧取得を処理するハンドラを返す。
// 管理者は全注文、それ以外は自分の注文のみ返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		q := ParseListQuery(
			c.Query("status"),
			c.Query("sortBy"),
			c.Query("sortOrder"),
			c.Query("page"),
			c.Query("limit"),
		)

		page, err := s.service.List(requestContext(c), principalFrom(c), q)
		if err != nil {
			response.Error(c, err)
			return
		}

		orders := make([]orderResponse, 0, len(page.Orders))
		for _, o := range page.Orders {
			orders = append(orders, toOrderResponse(o))
		}
		response.OK(c, listResponse{Orders: orders, Pagination: page.Pagination})
	}
}

// handleGet は注文詳細取得を処理するハンドラを返す。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := s.service.Get(requestContext(c), principalFrom(c), c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, toOrderResponse(o))
	}
}

// handleUpdateStatus はステータス更新を処理するハンドラを返す。
func (s *Server) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateStatusRequest
		if err := response.BindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}

		o, err := s.service.UpdateStatus(requestContext(c), principalFrom(c), c.Param("id"), req.Status)
		if err != nil {
			response.Error(c, err)
			return
		}

		log.Printf("[Orders] request_id=%s ステータスを更新しました order_id=%s status=%s",
			middleware.GetRequestID(c), o.ID, o.Status)
		response.OK(c, toOrderResponse(o))
	}
}

// handleCancel は注文キャンセルを処理するハンドラを返す。
func (s *Server) handleCancel() gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := s.service.Cancel(requestContext(c), principalFrom(c), c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}

		log.Printf("[Orders] request_id=%s 注文をキャンセルしました order_id=%s", middleware.GetRequestID(c), o.ID)
		response.OK(c, toOrderResponse(o))
	}
}
