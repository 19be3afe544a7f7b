// Package apperror は全サービスで共通して使用するエラー分類を提供する。
//
// ドメイン層はHTTPを意識せずにエラーの種類（Kind）とエラーコードを返し、
// 境界のHTTP層（pkg/response）が種類をステータスコードに変換する。
package apperror

import (
	"errors"
	"fmt"
)

// Kind はエラーの種類を表す。HTTPステータスコードへの対応付けに使用する。
type Kind int

const (
	// KindInternal は想定外のエラーを表す。
	KindInternal Kind = iota
	// KindValidation は入力値が不正であることを表す。
	KindValidation
	// KindUnauthorized は認証されていないことを表す。
	KindUnauthorized
	// KindForbidden は認可されていないことを表す。
	KindForbidden
	// KindNotFound は対象が存在しないことを表す。
	KindNotFound
	// KindInvalidOperation は現在の状態では許可されない操作であることを表す。
	KindInvalidOperation
	// KindRateLimited はリクエスト数の上限を超えたことを表す。
	KindRateLimited
	// KindUnavailable は依存先サービスが利用できないことを表す。
	KindUnavailable
	// KindTimeout は依存先サービスが応答しなかったことを表す。
	KindTimeout
)

// レスポンスに含めるエラーコード。
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeForbidden          = "FORBIDDEN"
	CodeOrderNotFound      = "ORDER_NOT_FOUND"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInvalidOperation   = "INVALID_OPERATION"
	CodeInternal           = "INTERNAL_ERROR"
	CodeNoToken            = "NO_TOKEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeGatewayTimeout     = "GATEWAY_TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeNotFound           = "NOT_FOUND"
)

// FieldError は入力検証エラーの1項目を表す。
type FieldError struct {
	// Field は不正だったフィールドのパス。
	Field string `json:"field"`
	// Message はエラー内容。
	Message string `json:"message"`
}

// Error はエラーコードと種類を持つアプリケーションエラー。
type Error struct {
	// Kind はエラーの種類。
	Kind Kind
	// Code はクライアントに返すエラーコード。
	Code string
	// Message は人間が読むためのメッセージ。
	Message string
	// Details は補足情報。入力検証エラーの詳細などを格納する。
	Details any
	// Err は原因となったエラー。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// New は新しいアプリケーションエラーを生成する。
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation は入力検証エラーを生成する。
func Validation(message string, details any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message, Details: details}
}

// Forbidden は認可エラーを生成する。
func Forbidden(message string) *Error {
	return New(KindForbidden, CodeForbidden, message)
}

// NotFound は対象が存在しないことを表すエラーを生成する。
func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

// InvalidOperation は状態遷移違反のエラーを生成する。
func InvalidOperation(message string) *Error {
	return New(KindInvalidOperation, CodeInvalidOperation, message)
}

// Internal は想定外のエラーを原因付きで生成する。
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "内部サーバーエラーが発生しました", Err: err}
}

// As はerrからアプリケーションエラーを取り出す。
// アプリケーションエラーでない場合はInternalエラーとして包んで返す。
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// KindOf はerrの種類を返す。
func KindOf(err error) Kind {
	return As(err).Kind
}
