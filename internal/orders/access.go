package orders

import (
	"slices"

	"github.com/nao1215/minishop/pkg/apperror"
)

// roleAdmin は全注文へのアクセスを許可されるロール。
const roleAdmin = "admin"

// Principal は注文操作を行う認証済みの主体。
type Principal struct {
	// UserID はユーザーの一意識別子。
	UserID string
	// Roles は付与されたロール。
	Roles []string
}

// IsAdmin は管理者ロールを持つかどうかを返す。
func (p Principal) IsAdmin() bool {
	return slices.Contains(p.Roles, roleAdmin)
}

// Action は認可対象の操作。
type Action string

const (
	ActionCreate       Action = "create"
	ActionRead         Action = "read"
	ActionList         Action = "list"
	ActionUpdateStatus Action = "updateStatus"
	ActionCancel       Action = "cancel"
)

// forbiddenMessages は操作ごとの拒否メッセージ。
var forbiddenMessages = map[Action]string{
	ActionCreate:       "自分以外のユーザーの注文は作成できません",
	ActionRead:         "この注文へのアクセス権がありません",
	ActionUpdateStatus: "この注文を変更する権限がありません",
	ActionCancel:       "この注文をキャンセルする権限がありません",
}

// Authorize はプリンシパルがownerIDの注文に対してactionを行えるかを判定する。
// 管理者または所有者本人のみ許可し、それ以外はFORBIDDENを返す。
// 一覧取得は拒否ではなくVisibleToによる絞り込みで扱うため、常に許可する。
func Authorize(p Principal, action Action, ownerID string) error {
	if action == ActionList || p.IsAdmin() {
		return nil
	}
	if p.UserID != "" && p.UserID == ownerID {
		return nil
	}
	msg, ok := forbiddenMessages[action]
	if !ok {
		msg = "この操作を行う権限がありません"
	}
	return apperror.Forbidden(msg)
}

// VisibleTo はプリンシパルが一覧で参照できる注文だけを残す。
// 管理者はすべて、それ以外は自分の注文のみ参照できる。
func VisibleTo(p Principal, orders []Order) []Order {
	if p.IsAdmin() {
		return orders
	}
	visible := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.UserID == p.UserID {
			visible = append(visible, o)
		}
	}
	return visible
}
