package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID はリクエスト相関IDを運ぶHTTPヘッダー。
const HeaderRequestID = "X-Request-ID"

// contextKeyRequestID はGinコンテキストにリクエストIDを格納するキー。
const contextKeyRequestID = "request_id"

// RequestID はリクエストIDを付与し、アクセスログを出力するGinミドルウェアを返す。
// trustIncomingがtrueの場合は受信したX-Request-IDを引き継ぎ、無ければ新しく生成する。
// 外部に公開するgatewayではfalseとし、常に新しいIDを生成する。
func RequestID(service string, trustIncoming bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := ""
		if trustIncoming {
			requestID = c.GetHeader(HeaderRequestID)
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(contextKeyRequestID, requestID)
		c.Request.Header.Set(HeaderRequestID, requestID)
		c.Header(HeaderRequestID, requestID)

		start := time.Now()
		log.Printf("[%s] request_id=%s method=%s path=%s ip=%s ua=%q 受信",
			service, requestID, c.Request.Method, c.Request.URL.RequestURI(), c.ClientIP(), c.Request.UserAgent())

		c.Next()

		log.Printf("[%s] request_id=%s method=%s path=%s status=%d duration=%s 完了",
			service, requestID, c.Request.Method, c.Request.URL.RequestURI(), c.Writer.Status(), time.Since(start))
	}
}

// GetRequestID はGinコンテキストからリクエストIDを取得する。
func GetRequestID(c *gin.Context) string {
	return c.GetString(contextKeyRequestID)
}
