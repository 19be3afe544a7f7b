// Package users はユーザーサービスの内部実装を提供する。
//
// ユーザー登録、ログイン、プロフィールの参照と更新を担当する。
// パスワードはbcryptでハッシュ化してSQLiteに保存し、
// 登録とログインの成功時にJWTトークンを発行する。
//
// /internal/v1/users/:id は注文サービスからのユーザー存在確認に使う。
package users
