// Package response は全サービス共通のJSONレスポンス形式を提供する。
//
// 成功時は {"success": true, "data": ...}、
// 失敗時は {"success": false, "error": {"code", "message", "details"}} を返す。
package response

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/minishop/pkg/apperror"
)

// Envelope はレスポンス全体の構造。
type Envelope struct {
	// Success は処理が成功したかどうか。
	Success bool `json:"success"`
	// Data は成功時のペイロード。
	Data any `json:"data,omitempty"`
	// Error は失敗時のエラー情報。
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody はエラー情報の構造。
type ErrorBody struct {
	// Code はエラーコード。
	Code string `json:"code"`
	// Message はエラーメッセージ。
	Message string `json:"message"`
	// Details は補足情報。
	Details any `json:"details,omitempty"`
}

// OK は200で成功レスポンスを返す。
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created は201で成功レスポンスを返す。
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Fail は指定ステータスでエラーレスポンスを返す。
func Fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

// AbortFail はエラーレスポンスを返し、後続のハンドラを中断する。
func AbortFail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

// Error はerrの種類に応じたステータスコードでエラーレスポンスを返す。
// 想定外のエラーは詳細をログにのみ記録し、クライアントには汎用メッセージを返す。
func Error(c *gin.Context, err error) {
	appErr := apperror.As(err)
	status := StatusOf(appErr.Kind)
	if status == http.StatusInternalServerError {
		log.Printf("[ERROR] request_id=%s %s %s: %v", c.GetString("request_id"), c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// StatusOf はエラーの種類をHTTPステータスコードに変換する。
func StatusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation, apperror.KindInvalidOperation:
		return http.StatusBadRequest
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindRateLimited:
		return http.StatusTooManyRequests
	case apperror.KindUnavailable:
		return http.StatusServiceUnavailable
	case apperror.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
