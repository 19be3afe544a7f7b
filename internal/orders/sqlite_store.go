package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteStore はSQLiteに注文を永続化するStore。
type SQLiteStore struct {
	db *sql.DB
}

// itemRecord はitems列に保存する明細のJSON表現。
type itemRecord struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
}

// OpenSQLiteStore はpathのSQLiteデータベースを開き、スキーマを適用する。
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// 書き込みを直列化する
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore は接続済みのdbでSQLiteStoreを生成する。
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if err := initSchema(ctx, db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put は注文を保存する。既存の注文は挿入順を保ったまま更新する。
func (s *SQLiteStore) Put(ctx context.Context, o Order) error {
	records := make([]itemRecord, 0, len(o.Items))
	for _, item := range o.Items {
		records = append(records, itemRecord{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price.String(),
		})
	}
	items, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("明細のシリアライズに失敗: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, items, total_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			items = excluded.items,
			total_amount = excluded.total_amount,
			updated_at = excluded.updated_at
	`,
		o.ID,
		o.UserID,
		string(o.Status),
		string(items),
		o.TotalAmount.String(),
		o.CreatedAt.UTC().Format(time.RFC3339Nano),
		o.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("注文の保存に失敗: %w", err)
	}
	return nil
}

// Get はIDで注文を取得する。
func (s *SQLiteStore) Get(ctx context.Context, id string) (Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, items, total_amount, created_at, updated_at
		FROM orders WHERE id = ?
	`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("注文の取得に失敗: %w", err)
	}
	return o, nil
}

// All は全注文を挿入順で返す。
func (s *SQLiteStore) All(ctx context.Context) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, status, items, total_amount, created_at, updated_at
		FROM orders ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var all []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("注文の読み込みに失敗: %w", err)
		}
		all = append(all, o)
	}
	return all, rows.Err()
}

// scanner は*sql.Rowと*sql.Rowsの共通部分。
type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(sc scanner) (Order, error) {
	var (
		o                    Order
		status, items, total string
		createdAt, updatedAt string
	)
	if err := sc.Scan(&o.ID, &o.UserID, &status, &items, &total, &createdAt, &updatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)

	var records []itemRecord
	if err := json.Unmarshal([]byte(items), &records); err != nil {
		return Order{}, fmt.Errorf("明細のデシリアライズに失敗: %w", err)
	}
	o.Items = make([]Item, 0, len(records))
	for _, r := range records {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return Order{}, fmt.Errorf("単価の解析に失敗: %w", err)
		}
		o.Items = append(o.Items, Item{ProductName: r.ProductName, Quantity: r.Quantity, Price: price})
	}

	var err error
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return Order{}, fmt.Errorf("合計金額の解析に失敗: %w", err)
	}
	if o.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Order{}, fmt.Errorf("作成日時の解析に失敗: %w", err)
	}
	if o.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Order{}, fmt.Errorf("更新日時の解析に失敗: %w", err)
	}
	return o, nil
}
