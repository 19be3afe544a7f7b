package orders

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/minishop/pkg/apperror"
	"github.com/shopspring/decimal"
)

func init() {
	// 金額はJSONでは文字列ではなく数値として扱う
	decimal.MarshalJSONWithoutQuotes = true
}

// Status は注文のステータスを表す。
type Status string

const (
	// StatusCreated は作成直後の注文。
	StatusCreated Status = "created"
	// StatusInProgress は処理中の注文。
	StatusInProgress Status = "in_progress"
	// StatusCompleted は完了した注文。終端状態。
	StatusCompleted Status = "completed"
	// StatusCancelled はキャンセルされた注文。終端状態。
	StatusCancelled Status = "cancelled"
)

// allStatuses は有効なステータスの一覧。
var allStatuses = []Status{StatusCreated, StatusInProgress, StatusCompleted, StatusCancelled}

// Valid はステータスが有効な値かどうかを返す。
func (s Status) Valid() bool {
	return slices.Contains(allStatuses, s)
}

// IsTerminal はそれ以上遷移できない終端状態かどうかを返す。
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus は文字列をステータスに変換する。無効な値の場合はVALIDATION_ERRORを返す。
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", apperror.Validation("入力データの検証に失敗しました", []apperror.FieldError{{
			Field:   "status",
			Message: "ステータスは created, in_progress, completed, cancelled のいずれかです",
		}})
	}
	return s, nil
}

// Item は注文明細。
type Item struct {
	// ProductName は商品名。空文字は許可しない。
	ProductName string
	// Quantity は数量。1以上。
	Quantity int
	// Price は単価。0より大きい。
	Price decimal.Decimal
}

// Subtotal は明細の小計（単価×数量）を返す。
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order は注文エンティティ。ステータス遷移はメソッド経由でのみ行う。
type Order struct {
	// ID は注文の一意識別子。作成後は変更しない。
	ID string
	// UserID は注文の所有者のID。作成後は変更しない。
	UserID string
	// Items は注文明細。1件以上。
	Items []Item
	// Status は現在のステータス。
	Status Status
	// TotalAmount は合計金額。0より大きい。
	TotalAmount decimal.Decimal
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時。変更のたびに更新する。
	UpdatedAt time.Time
}

// NewOrder は入力を検証して新しい注文を生成する。
// totalAmountがnilの場合は明細の小計の合計を合計金額とする。
func NewOrder(userID string, items []Item, totalAmount *decimal.Decimal, now time.Time) (Order, error) {
	var details []apperror.FieldError
	if userID == "" {
		details = append(details, apperror.FieldError{Field: "userId", Message: "必須項目です"})
	}
	if len(items) == 0 {
		details = append(details, apperror.FieldError{Field: "items", Message: "注文には1件以上の商品が必要です"})
	}
	for i, item := range items {
		if item.ProductName == "" {
			details = append(details, apperror.FieldError{Field: fmt.Sprintf("items[%d].productName", i), Message: "商品名は必須です"})
		}
		if item.Quantity <= 0 {
			details = append(details, apperror.FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "数量は正の整数である必要があります"})
		}
		if !item.Price.IsPositive() {
			details = append(details, apperror.FieldError{Field: fmt.Sprintf("items[%d].price", i), Message: "価格は正の数である必要があります"})
		}
	}
	if totalAmount != nil && !totalAmount.IsPositive() {
		details = append(details, apperror.FieldError{Field: "totalAmount", Message: "合計金額は正の数である必要があります"})
	}
	if len(details) > 0 {
		return Order{}, apperror.Validation("入力データの検証に失敗しました", details)
	}

	o := Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		Items:     slices.Clone(items),
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if totalAmount != nil {
		o.TotalAmount = *totalAmount
	} else {
		o.TotalAmount = o.CalculateTotal()
	}
	return o, nil
}

// CalculateTotal は明細の小計の合計を返す。
func (o *Order) CalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// TransitionStatus はステータスを変更する。
// 終端状態からの変更はINVALID_OPERATION、未定義のステータスはVALIDATION_ERRORとなる。
// 終端状態でなければ後戻りを含めどのステータスへも遷移できる。
func (o *Order) TransitionStatus(newStatus Status, now time.Time) error {
	if o.Status.IsTerminal() {
		return apperror.InvalidOperation("完了またはキャンセル済みの注文のステータスは変更できません")
	}
	if !newStatus.Valid() {
		return apperror.Validation(fmt.Sprintf("無効なステータスです: %s", newStatus), nil)
	}
	o.Status = newStatus
	o.UpdatedAt = now
	return nil
}

// Cancel は注文をキャンセルする。完了済みまたはキャンセル済みの場合はINVALID_OPERATIONとなる。
func (o *Order) Cancel(now time.Time) error {
	switch o.Status {
	case StatusCompleted:
		return apperror.InvalidOperation("完了した注文はキャンセルできません")
	case StatusCancelled:
		return apperror.InvalidOperation("注文は既にキャンセルされています")
	}
	o.Status = StatusCancelled
	o.UpdatedAt = now
	return nil
}

// CanBeModified は注文内容を編集できる状態かどうかを返す。
func (o *Order) CanBeModified() bool {
	return o.Status == StatusCreated
}

// Clone は明細スライスを共有しない複製を返す。
func (o Order) Clone() Order {
	o.Items = slices.Clone(o.Items)
	return o
}
