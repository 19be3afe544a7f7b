package orders

import (
	"context"
	"log"

	"github.com/nao1215/minishop/pkg/event"
	"github.com/nao1215/minishop/pkg/httpclient"
)

// Publisher はドメインイベントの配布先。
type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

// EventPublisher は注文の変更をドメインイベントとして発行する。
// 発行の失敗は呼び出し元の処理を失敗させない。
type EventPublisher struct {
	publisher Publisher
}

// NewEventPublisher はpublisherへ発行するEventPublisherを生成する。
func NewEventPublisher(publisher Publisher) *EventPublisher {
	return &EventPublisher{publisher: publisher}
}

// PublishOrderCreated はorder.createdイベントを発行する。
func (p *EventPublisher) PublishOrderCreated(ctx context.Context, o Order) {
	items := make([]event.OrderItemData, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, event.OrderItemData{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	p.publish(ctx, o.ID, event.TypeOrderCreated, event.OrderCreatedData{
		OrderID:     o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		Items:       items,
	})
}

// PublishOrderStatusUpdated はorder.status.updatedイベントを発行する。
func (p *EventPublisher) PublishOrderStatusUpdated(ctx context.Context, o Order, oldStatus Status) {
	p.publish(ctx, o.ID, event.TypeOrderStatusUpdated, event.OrderStatusUpdatedData{
		OrderID:   o.ID,
		UserID:    o.UserID,
		OldStatus: string(oldStatus),
		NewStatus: string(o.Status),
		UpdatedAt: o.UpdatedAt,
	})
}

func (p *EventPublisher) publish(ctx context.Context, orderID string, eventType event.Type, data any) {
	if p == nil || p.publisher == nil {
		return
	}
	e, err := event.New(orderID, eventType, data)
	if err != nil {
		log.Printf("[Orders] request_id=%s イベント生成に失敗 type=%s order_id=%s: %v",
			httpclient.RequestIDFrom(ctx), eventType, orderID, err)
		return
	}
	p.publisher.Publish(ctx, e)
}
