// Package orders は注文サービスの内部実装を提供する。
//
// 注文の作成、参照、一覧、ステータス更新、キャンセルを担当する。
// 注文エンティティはステータス遷移の規則を自ら守り、
// 完了またはキャンセル済みの注文はそれ以上変更できない。
// 一般ユーザーは自分の注文のみ操作でき、adminロールはすべての注文を操作できる。
//
// 変更が保存されるとorder.createdまたはorder.status.updatedイベントを発行する。
// イベントはログに記録され、KAFKA_BROKERSが設定されていればKafkaにも送信する。
// 購読者の失敗はリクエストの結果に影響しない。
package orders
