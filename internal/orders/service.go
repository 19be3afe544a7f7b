package orders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nao1215/minishop/pkg/apperror"
	"github.com/shopspring/decimal"
)

// Service は注文のユースケースを実行する。
// 認可、状態遷移、永続化、イベント発行の順で処理する。
type Service struct {
	// store は注文の保存先。
	store Store
	// users は注文者の存在確認に使用する。
	users UserDirectory
	// events は変更を通知するイベント発行者。
	events *EventPublisher
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
	// mu は既存注文の読み込みから保存までを直列化する。
	mu sync.Mutex
}

// NewService は新しいServiceを生成する。usersがnilの場合は存在確認を行わない。
func NewService(store Store, users UserDirectory, events *EventPublisher) *Service {
	if users == nil {
		users = AllowAllDirectory{}
	}
	return &Service{
		store:  store,
		users:  users,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput は注文作成の入力。
type CreateInput struct {
	// UserID は注文者のID。
	UserID string
	// Items は注文明細。
	Items []Item
	// TotalAmount は合計金額。nilの場合は明細から計算する。
	TotalAmount *decimal.Decimal
}

// Create は注文を作成し、order.createdを発行する。
// 入力検証、認可、ユーザーの存在確認の順に判定する。
func (s *Service) Create(ctx context.Context, p Principal, in CreateInput) (Order, error) {
	o, err := NewOrder(in.UserID, in.Items, in.TotalAmount, s.now())
	if err != nil {
		return Order{}, err
	}

	if err := Authorize(p, ActionCreate, in.UserID); err != nil {
		return Order{}, err
	}

	exists, err := s.users.Exists(ctx, in.UserID)
	if err != nil {
		return Order{}, apperror.Internal(err)
	}
	if !exists {
		return Order{}, apperror.New(apperror.KindValidation, apperror.CodeUserNotFound, "ユーザーが見つかりません")
	}

	if err := s.store.Put(ctx, o); err != nil {
		return Order{}, apperror.Internal(err)
	}

	s.events.PublishOrderCreated(ctx, o)
	return o, nil
}

// Get は注文を1件取得する。
func (s *Service) Get(ctx context.Context, p Principal, id string) (Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := Authorize(p, ActionRead, o.UserID); err != nil {
		return Order{}, err
	}
	return o, nil
}

// List はプリンシパルが参照できる注文を検索条件に従って返す。
func (s *Service) List(ctx context.Context, p Principal, q ListQuery) (Page, error) {
	all, err := s.store.All(ctx)
	if err != nil {
		return Page{}, apperror.Internal(err)
	}
	return q.Apply(VisibleTo(p, all)), nil
}

// UpdateStatus は注文のステータスを変更し、order.status.updatedを発行する。
// 存在確認、認可、入力検証、状態遷移の順に判定する。
func (s *Service) UpdateStatus(ctx context.Context, p Principal, id, rawStatus string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.load(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := Authorize(p, ActionUpdateStatus, o.UserID); err != nil {
		return Order{}, err
	}
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return Order{}, err
	}

	oldStatus := o.Status
	if err := o.TransitionStatus(status, s.now()); err != nil {
		return Order{}, err
	}
	if err := s.store.Put(ctx, o); err != nil {
		return Order{}, apperror.Internal(err)
	}

	s.events.PublishOrderStatusUpdated(ctx, o, oldStatus)
	return o, nil
}

// Cancel は注文をキャンセルし、order.status.updatedを発行する。
func (s *Service) Cancel(ctx context.Context, p Principal, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.load(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := Authorize(p, ActionCancel, o.UserID); err != nil {
		return Order{}, err
	}

	oldStatus := o.Status
	if err := o.Cancel(s.now()); err != nil {
		return Order{}, err
	}
	if err := s.store.Put(ctx, o); err != nil {
		return Order{}, apperror.Internal(err)
	}

	s.events.PublishOrderStatusUpdated(ctx, o, oldStatus)
	return o, nil
}

// load は注文を取得し、存在しない場合はORDER_NOT_FOUNDに変換する。
func (s *Service) load(ctx context.Context, id string) (Order, error) {
	o, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrOrderNotFound) {
		return Order{}, apperror.NotFound(apperror.CodeOrderNotFound, "注文が見つかりません")
	}
	if err != nil {
		return Order{}, apperror.Internal(err)
	}
	return o, nil
}
