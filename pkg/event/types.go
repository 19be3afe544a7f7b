// Package event はサービス内で発行するドメインイベントの型を提供する。
//
// イベントは生成後に変更されない値として扱い、購読者には値渡しで配布する。
package event

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeOrderCreated は注文が作成されたことを表す。
	TypeOrderCreated Type = "order.created"
	// TypeOrderStatusUpdated は注文のステータスが変更されたことを表す。
	TypeOrderStatusUpdated Type = "order.status.updated"
)

// Event はドメインイベントの不変レコード。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。メッセージキーとして使用する。
	AggregateID string `json:"aggregateId"`
	// Type はイベントの種類。
	Type Type `json:"type"`
	// Timestamp はイベントが発生した日時。
	Timestamp time.Time `json:"timestamp"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
}

// OrderItemData はイベントに含める注文明細。
type OrderItemData struct {
	// ProductName は商品名。
	ProductName string `json:"productName"`
	// Quantity は数量。
	Quantity int `json:"quantity"`
	// Price は単価。
	Price decimal.Decimal `json:"price"`
}

// OrderCreatedData はorder.createdイベントのデータ。
type OrderCreatedData struct {
	// OrderID は作成された注文のID。
	OrderID string `json:"orderId"`
	// UserID は注文の所有者のID。
	UserID string `json:"userId"`
	// TotalAmount は注文の合計金額。
	TotalAmount decimal.Decimal `json:"totalAmount"`
	// Status は作成時のステータス。
	Status string `json:"status"`
	// Items は注文明細。
	Items []OrderItemData `json:"items"`
}

// OrderStatusUpdatedData はorder.status.updatedイベントのデータ。
type OrderStatusUpdatedData struct {
	// OrderID は対象の注文のID。
	OrderID string `json:"orderId"`
	// UserID は注文の所有者のID。
	UserID string `json:"userId"`
	// OldStatus は変更前のステータス。
	OldStatus string `json:"oldStatus"`
	// NewStatus は変更後のステータス。
	NewStatus string `json:"newStatus"`
	// UpdatedAt は変更日時。
	UpdatedAt time.Time `json:"updatedAt"`
}
