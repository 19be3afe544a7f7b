package orders

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/minishop/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestServer はテスト用の注文サーバーをメモリストアで構築する。
// JWTミドルウェアの代わりに、X-User-IDとX-Rolesヘッダーからプリンシパルを設定する。
func setupTestServer(t *testing.T) (*Server, *recordingPublisher) {
	t.Helper()

	pub := &recordingPublisher{}
	svc := NewService(NewMemoryStore(), nil, NewEventPublisher(pub))
	s := newServer("0", svc, func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			var roles []string
			if r := c.GetHeader("X-Roles"); r != "" {
				roles = strings.Split(r, ",")
			}
			middleware.SetPrincipal(c, middleware.Principal{UserID: userID, Roles: roles})
		}
		c.Next()
	})
	return s, pub
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(router http.Handler, method, path string, p Principal, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewReader(nil)
	case string:
		reqBody = bytes.NewReader([]byte(b))
	default:
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if p.UserID != "" {
		req.Header.Set("X-User-ID", p.UserID)
		req.Header.Set("X-Roles", strings.Join(p.Roles, ","))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// envelope はレスポンス全体の構造。
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
}

// parseEnvelope はレスポンスボディをパースし、dataをoutにデシリアライズする。
func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder, out any) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v body=%s", err, w.Body.String())
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("dataのパースに失敗: %v body=%s", err, w.Body.String())
		}
	}
	return env
}

// orderJSON はテストでデコードする注文の構造。
type orderJSON struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	Status      string  `json:"status"`
	TotalAmount float64 `json:"totalAmount"`
	Items       []struct {
		ProductName string  `json:"productName"`
		Quantity    int     `json:"quantity"`
		Price       float64 `json:"price"`
	} `json:"items"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func validCreateBody() map[string]any {
	return map[string]any{
		"userId": testUserID,
		"items": []map[string]any{
			{"productName": "Widget", "quantity": 2, "price": 10.25},
			{"productName": "Gadget", "quantity": 1, "price": 0.1},
		},
	}
}

func createViaAPI(t *testing.T, s *Server) orderJSON {
	t.Helper()

	w := doRequest(s.router, http.MethodPost, "/api/v1/orders", ownerPrincipal, validCreateBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("注文作成 status = %d, body = %s", w.Code, w.Body.String())
	}
	var o orderJSON
	parseEnvelope(t, w, &o)
	return o
}

// TestHandleCreate は注文作成APIを検証する。
func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("注文を作成して201を返すこと", func(t *testing.T) {
		t.Parallel()

		s, pub := setupTestServer(t)
		w := doRequest(s.router, http.MethodPost, "/api/v1/orders", ownerPrincipal, validCreateBody())

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201, body = %s", w.Code, w.Body.String())
		}
		var o orderJSON
		env := parseEnvelope(t, w, &o)
		if !env.Success {
			t.Error("success = false")
		}
		if o.Status != "created" || o.UserID != testUserID || len(o.Items) != 2 {
			t.Errorf("order = %+v", o)
		}
		if o.TotalAmount != 20.6 {
			t.Errorf("totalAmount = %v, want 20.6", o.TotalAmount)
		}
		if o.CreatedAt == "" || o.UpdatedAt == "" {
			t.Error("日時が空")
		}
		if len(pub.snapshot()) != 1 {
			t.Errorf("発行されたイベント数 = %d, want 1", len(pub.snapshot()))
		}
	})

	t.Run("合計金額を数値で返すこと", func(t *testing.T) {
		t.Parallel()

		s, _ := setupTestServer(t)
		body := validCreateBody()
		body["totalAmount"] = 15
		w := doRequest(s.router, http.MethodPost, "/api/v1/orders", ownerPrincipal, body)

		if !strings.Contains(w.Body.String(), `"totalAmount":15`) {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	tests := []struct {
		name   string
		mutate func(body map[string]any)
		field  string
	}{
		{name: "userIdがUUIDでない", mutate: func(b map[string]any) { b["userId"] = "not-a-uuid" }, field: "userId"},
		{name: "itemsが空", mutate: func(b map[string]any) { b["items"] = []any{} }, field: "items"},
		{name: "数量が0", mutate: func(b map[string]any) {
			b["items"] = []map[string]any{{"productName": "A", "quantity": 0, "price": 1}}
		}, field: "items[0].quantity"},
		{name: "商品名が空", mutate: func(b map[string]any) {
			b["items"] = []map[string]any{{"productName": "", "quantity": 1, "price": 1}}
		}, field: "items[0].productName"},
		{name: "単価が0", mutate: func(b map[string]any) {
			b["items"] = []map[string]any{{"productName": "A", "quantity": 1, "price": 0}}
		}, field: "items[0].price"},
		{name: "合計金額が負", mutate: func(b map[string]any) { b["totalAmount"] = -1 }, field: "totalAmount"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"場合は400 VALIDATION_ERRORを返すこと", func(t *testing.T) {
			t.Parallel()

			s, pub := setupTestServer(t)
			body := validCreateBody()
			tt.mutate(body)
			w := doRequest(s.router, http.MethodPost, "/api/v1/orders", ownerPrincipal, body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
			}
			env := parseEnvelope(t, w, nil)
			if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
				t.Fatalf("error = %+v", env.Error)
			}
			found := false
			for _, d := range env.Error.Details {
				if d.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("details = %+v, want field %s", env.Error.Details, tt.field)
			}
			if len(pub.snapshot()) != 0 {
				t.Error("検証エラー時にイベントが発行された")
			}
		})
	}

	t.Run("不正なJSONは400を返すこと", func(t *testing.T) {
		t.Parallel()

		s, _ := setupTestServer(t)
		w := doRequest(s.router, http.MethodPost, "/api/v1/orders", ownerPrincipal, `{"userId":`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("他人のuserIdでは403を返すこと", func(t *testing.T) {
		t.Parallel()

		s, _ := setupTestServer(t)
		w := doRequest(s.router, http.MethodPost, "/api/v1/orders", otherPrincipal, validCreateBody())
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403, body = %s", w.Code, w.Body.String())
		}
		if env := parseEnvelope(t, w, nil); env.Error == nil || env.Error.Code != "FORBIDDEN" {
			t.Errorf("error = %+v", env.Error)
		}
	})

	t.Run("他人のuserIdでも入力が不正なら400を返すこと", func(t *testing.T) {
		t.Parallel()

		s, pub := setupTestServer(t)
		body := validCreateBody()
		body["items"] = []map[string]any{{"productName": "A", "quantity": 1, "price": 0}}
		w := doRequest(s.router, http.MethodPost, "/api/v1/orders", otherPrincipal, body)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
		}
		if env := parseEnvelope(t, w, nil); env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("error = %+v", env.Error)
		}
		if len(pub.snapshot()) != 0 {
			t.Error("検証エラー時にイベントが発行された")
		}
	})
}

// TestHandleList は注文一覧APIを検証する。
func TestHandleList(t *testing.T) {
	t.Parallel()

	s, _ := setupTestServer(t)
	for range 3 {
		createViaAPI(t, s)
	}

	t.Run("ページング情報付きで返すこと", func(t *testing.T) {
		t.Parallel()

		w := doRequest(s.router, http.MethodGet, "/api/v1/orders?limit=2&page=1&sortOrder=asc", ownerPrincipal, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		var data struct {
			Orders     []orderJSON `json:"orders"`
			Pagination Pagination  `json:"pagination"`
		}
		parseEnvelope(t, w, &data)
		if len(data.Orders) != 2 {
			t.Errorf("len = %d, want 2", len(data.Orders))
		}
		want := Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2, HasNext: true, HasPrev: false}
		if data.Pagination != want {
			t.Errorf("pagination = %+v, want %+v", data.Pagination, want)
		}
	})

	t.Run("他人の注文は含まれないこと", func(t *testing.T) {
		t.Parallel()

		w := doRequest(s.router, http.MethodGet, "/api/v1/orders", otherPrincipal, nil)
		var data struct {
			Orders     []orderJSON `json:"orders"`
			Pagination Pagination  `json:"pagination"`
		}
		parseEnvelope(t, w, &data)
		if len(data.Orders) != 0 || data.Pagination.Total != 0 {
			t.Errorf("data = %+v", data)
		}
		if !strings.Contains(w.Body.String(), `"orders":[]`) {
			t.Errorf("空の一覧はnullではなく[]であるべき: %s", w.Body.String())
		}
	})

	t.Run("絞り込みや並び替えを指定しても他人の注文は含まれないこと", func(t *testing.T) {
		t.Parallel()

		for _, query := range []string{
			"?status=created",
			"?sortBy=userId&sortOrder=asc",
			"?status=created&sortBy=totalAmount&sortOrder=desc&page=1&limit=100",
		} {
			w := doRequest(s.router, http.MethodGet, "/api/v1/orders"+query, otherPrincipal, nil)
			var data struct {
				Orders     []orderJSON `json:"orders"`
				Pagination Pagination  `json:"pagination"`
			}
			parseEnvelope(t, w, &data)
			if w.Code != http.StatusOK || len(data.Orders) != 0 || data.Pagination.Total != 0 {
				t.Errorf("%s: status = %d, data = %+v", query, w.Code, data)
			}
		}
	})

	t.Run("絞り込みを指定しても自分の注文だけを返すこと", func(t *testing.T) {
		t.Parallel()

		w := doRequest(s.router, http.MethodGet, "/api/v1/orders?status=created&sortBy=userId", ownerPrincipal, nil)
		var data struct {
			Orders []orderJSON `json:"orders"`
		}
		parseEnvelope(t, w, &data)
		if len(data.Orders) != 3 {
			t.Errorf("len = %d, want 3", len(data.Orders))
		}
		for _, o := range data.Orders {
			if o.UserID != testUserID {
				t.Errorf("他人の注文が含まれている: %+v", o)
			}
		}
	})

	t.Run("不正なページ指定は既定値になること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(s.router, http.MethodGet, "/api/v1/orders?page=abc&limit=0", adminPrincipal, nil)
		var data struct {
			Pagination Pagination `json:"pagination"`
		}
		parseEnvelope(t, w, &data)
		if data.Pagination.Page != 1 || data.Pagination.Limit != 10 || data.Pagination.Total != 3 {
			t.Errorf("pagination = %+v", data.Pagination)
		}
	})
}

// TestHandleGet は注文詳細APIを検証する。
func TestHandleGet(t *testing.T) {
	t.Parallel()

	s, _ := setupTestServer(t)
	created := createViaAPI(t, s)

	tests := []struct {
		name      string
		id        string
		principal Principal
		status    int
		code      string
	}{
		{name: "所有者は取得できること", id: created.ID, principal: ownerPrincipal, status: http.StatusOK},
		{name: "管理者は取得できること", id: created.ID, principal: adminPrincipal, status: http.StatusOK},
		{name: "他人は403になること", id: created.ID, principal: otherPrincipal, status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "存在しない注文は404になること", id: "missing", principal: ownerPrincipal, status: http.StatusNotFound, code: "ORDER_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := doRequest(s.router, http.MethodGet, "/api/v1/orders/"+tt.id, tt.principal, nil)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.status, w.Body.String())
			}
			env := parseEnvelope(t, w, nil)
			if tt.code != "" && (env.Error == nil || env.Error.Code != tt.code) {
				t.Errorf("error = %+v, want %s", env.Error, tt.code)
			}
		})
	}
}

// TestHandleUpdateStatus はステータス更新APIを検証する。
func TestHandleUpdateStatus(t *testing.T) {
	t.Parallel()

	t.Run("ステータスを更新できること", func(t *testing.T) {
		t.Parallel()

		s, pub := setupTestServer(t)
		created := createViaAPI(t, s)

		w := doRequest(s.router, http.MethodPut, "/api/v1/orders/"+created.ID+"/status", ownerPrincipal, map[string]string{"status": "in_progress"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		var o orderJSON
		parseEnvelope(t, w, &o)
		if o.Status != "in_progress" {
			t.Errorf("status = %s, want in_progress", o.Status)
		}
		if len(pub.snapshot()) != 2 {
			t.Errorf("イベント数 = %d, want 2", len(pub.snapshot()))
		}
	})

	t.Run("不正なステータスは400 VALIDATION_ERRORを返すこと", func(t *testing.T) {
		t.Parallel()

		s, _ := setupTestServer(t)
		created := createViaAPI(t, s)

		w := doRequest(s.router, http.MethodPut, "/api/v1/orders/"+created.ID+"/status", ownerPrincipal, map[string]string{"status": "shipped"})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if env := parseEnvelope(t, w, nil); env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("error = %+v", env.Error)
		}
	})

	t.Run("完了済みの注文は400 INVALID_OPERATIONを返すこと", func(t *testing.T) {
		t.Parallel()

		s, _ := setupTestServer(t)
		created := createViaAPI(t, s)
		path := "/api/v1/orders/" + created.ID + "/status"
		doRequest(s.router, http.MethodPut, path, ownerPrincipal, map[string]string{"status": "completed"})

		w := doRequest(s.router, http.MethodPut, path, ownerPrincipal, map[string]string{"status": "in_progress"})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if env := parseEnvelope(t, w, nil); env.Error == nil || env.Error.Code != "INVALID_OPERATION" {
			t.Errorf("error = %+v", env.Error)
		}
	})

	t.Run("他人の注文は不正なステータスでも403を返すこと", func(t *testing.T) {
		t.Parallel()

		s, _ := setupTestServer(t)
		created := createViaAPI(t, s)

		w := doRequest(s.router, http.MethodPut, "/api/v1/orders/"+created.ID+"/status", otherPrincipal, map[string]string{"status": "shipped"})
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("存在しない注文は404を返すこと", func(t *testing.T) {
		t.Parallel()

		s, _ := setupTestServer(t)
		w := doRequest(s.router, http.MethodPut, "/api/v1/orders/missing/status", adminPrincipal, map[string]string{"status": "completed"})
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

// TestHandleCancel は注文キャンセルAPIを検証する。
func TestHandleCancel(t *testing.T) {
	t.Parallel()

	t.Run("キャンセルして2回目は400を返すこと", func(t *testing.T) {
		t.Parallel()

		s, _ := setupTestServer(t)
		created := createViaAPI(t, s)

		w := doRequest(s.router, http.MethodDelete, "/api/v1/orders/"+created.ID, ownerPrincipal, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		var o orderJSON
		parseEnvelope(t, w, &o)
		if o.Status != "cancelled" {
			t.Errorf("status = %s, want cancelled", o.Status)
		}

		w = doRequest(s.router, http.MethodDelete, "/api/v1/orders/"+created.ID, ownerPrincipal, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("2回目 status = %d, want 400", w.Code)
		}
	})

	t.Run("他人は403を返すこと", func(t *testing.T) {
		t.Parallel()

		s, _ := setupTestServer(t)
		created := createViaAPI(t, s)

		w := doRequest(s.router, http.MethodDelete, "/api/v1/orders/"+created.ID, otherPrincipal, nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})
}

// TestRequestIDPropagation は各ハンドラがリクエストIDをサービス層に渡すことを検証する。
func TestRequestIDPropagation(t *testing.T) {
	t.Parallel()

	s, pub := setupTestServer(t)
	created := createViaAPI(t, s)

	send := func(method, path, requestID string, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", ownerPrincipal.UserID)
		req.Header.Set("X-Roles", strings.Join(ownerPrincipal.Roles, ","))
		req.Header.Set(middleware.HeaderRequestID, requestID)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	w := send(http.MethodPut, "/api/v1/orders/"+created.ID+"/status", "req-update", `{"status":"in_progress"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("更新 status = %d, body = %s", w.Code, w.Body.String())
	}
	w = send(http.MethodDelete, "/api/v1/orders/"+created.ID, "req-cancel", "")
	if w.Code != http.StatusOK {
		t.Fatalf("キャンセル status = %d, body = %s", w.Code, w.Body.String())
	}

	ids := pub.publishedRequestIDs()
	if len(ids) != 3 {
		t.Fatalf("発行数 = %d, want 3", len(ids))
	}
	if ids[1] != "req-update" || ids[2] != "req-cancel" {
		t.Errorf("requestIDs = %v, want [_ req-update req-cancel]", ids)
	}
}

// TestOperationalEndpoints はヘルスチェックなどの運用エンドポイントを検証する。
func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()

	s, _ := setupTestServer(t)

	t.Run("ヘルスチェックがOKを返すこと", func(t *testing.T) {
		t.Parallel()

		w := doRequest(s.router, http.MethodGet, "/health", Principal{}, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var data struct {
			Status  string `json:"status"`
			Service string `json:"service"`
		}
		parseEnvelope(t, w, &data)
		if data.Status != "OK" || data.Service != "Orders Service" {
			t.Errorf("data = %+v", data)
		}
	})

	t.Run("メトリクスを公開すること", func(t *testing.T) {
		t.Parallel()

		doRequest(s.router, http.MethodGet, "/status", Principal{}, nil)
		w := doRequest(s.router, http.MethodGet, "/metrics", Principal{}, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "minishop_orders_http_requests_total") {
			t.Errorf("メトリクスが含まれていない: %s", w.Body.String())
		}
	})

	t.Run("レスポンスにリクエストIDが付与されること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(s.router, http.MethodGet, "/health", Principal{}, nil)
		if w.Header().Get(middleware.HeaderRequestID) == "" {
			t.Error("X-Request-IDが付与されていない")
		}
	})
}
