// Package gateway はAPIゲートウェイの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、/api/v1/auth と /api/v1/users を
// ユーザーサービスへ、/api/v1/orders を注文サービスへ転送する。
// 認証はゲートウェイでは行わず、Authorizationヘッダーをそのまま上流に渡す。
//
// CORS、クライアントIPごとのレートリミット、リクエストIDの採番をここで行う。
// 上流が応答しない場合は504、接続できない場合は503を返す。
package gateway
