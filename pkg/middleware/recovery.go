package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/minishop/pkg/apperror"
	"github.com/nao1215/minishop/pkg/response"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時に内容をログに出力し、INTERNAL_ERRORのレスポンスを返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] request_id=%s %s %s: %v", GetRequestID(c), c.Request.Method, c.Request.URL.Path, r)
				response.AbortFail(c, http.StatusInternalServerError, apperror.CodeInternal, "内部サーバーエラーが発生しました")
			}
		}()
		c.Next()
	}
}
