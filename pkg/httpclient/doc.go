// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// ゲートウェイから下流サービスへのリクエスト転送と、
// 注文サービスからユーザーサービスへの存在確認に使用する。
// リクエストIDはコンテキスト経由でX-Request-IDヘッダーに伝播する。
package httpclient
