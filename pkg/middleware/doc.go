// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証トークンの検証（プリンシパルの解決）、リクエストIDとアクセスログ、
// パニックリカバリ、CORS設定、レートリミット、Prometheusメトリクスなど、
// 全サービスで共通して使用するミドルウェアを含む。
package middleware
