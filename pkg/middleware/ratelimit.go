package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/minishop/pkg/apperror"
	"github.com/nao1215/minishop/pkg/response"
)

// RateLimiter はクライアントIPごとの固定ウィンドウ方式のレートリミッタ。
type RateLimiter struct {
	// max はウィンドウ内で許可するリクエスト数。
	max int
	// window はカウントをリセットする間隔。
	window time.Duration
	// now は現在時刻を返す関数。テストで差し替える。
	now func() time.Time
	// mu はclientsへの並行アクセスを保護するミューテックス。
	mu sync.Mutex
	// clients はクライアントごとのカウンタ。
	clients map[string]*windowCounter
}

// windowCounter は1クライアントのウィンドウ内のリクエスト数。
type windowCounter struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter は新しいレートリミッタを生成する。
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     maxRequests,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*windowCounter),
	}
}

// allow はkeyのリクエストを1件数え、許可するかどうかと残数、リセット時刻を返す。
func (l *RateLimiter) allow(key string) (bool, int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	wc, ok := l.clients[key]
	if !ok || !now.Before(wc.resetAt) {
		// 期限切れのカウンタをここでまとめて掃除する
		for k, v := range l.clients {
			if !now.Before(v.resetAt) {
				delete(l.clients, k)
			}
		}
		wc = &windowCounter{resetAt: now.Add(l.window)}
		l.clients[key] = wc
	}

	wc.count++
	remaining := max(l.max-wc.count, 0)
	return wc.count <= l.max, remaining, wc.resetAt
}

// Middleware はレートリミットを適用するGinミドルウェアを返す。
// 上限を超えた場合は429 RATE_LIMIT_EXCEEDEDを返す。
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, remaining, resetAt := l.allow(c.ClientIP())

		resetSeconds := int(resetAt.Sub(l.now()).Seconds())
		if resetSeconds < 0 {
			resetSeconds = 0
		}
		c.Header("RateLimit-Limit", strconv.Itoa(l.max))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(resetSeconds))

		if !ok {
			response.AbortFail(c, http.StatusTooManyRequests, apperror.CodeRateLimitExceeded, "リクエストが多すぎます。しばらくしてから再試行してください")
			return
		}
		c.Next()
	}
}
