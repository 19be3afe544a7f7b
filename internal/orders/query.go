package orders

import (
	"cmp"
	"slices"
	"strconv"
)

const (
	// DefaultPage はページ番号の既定値。
	DefaultPage = 1
	// DefaultLimit は1ページあたりの件数の既定値。
	DefaultLimit = 10
	// MaxLimit は1ページあたりの件数の上限。
	MaxLimit = 100
	// DefaultSortBy は並び替えキーの既定値。
	DefaultSortBy = "createdAt"
)

// SortOrder は並び順。
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListQuery は注文一覧の検索条件。
type ListQuery struct {
	// Status が空でなければ完全一致で絞り込む。
	Status Status
	// SortBy は並び替えに使うフィールド名。
	SortBy string
	// SortOrder は並び順。asc以外はdescとして扱う。
	SortOrder SortOrder
	// Page は1始まりのページ番号。
	Page int
	// Limit は1ページあたりの件数。
	Limit int
}

// ParseListQuery はクエリ文字列の値から検索条件を組み立てる。
// 数値でないまたは1未満のpageとlimitは既定値、上限を超えるlimitはMaxLimitとする。
func ParseListQuery(status, sortBy, sortOrder, page, limit string) ListQuery {
	q := ListQuery{
		Status:    Status(status),
		SortBy:    sortBy,
		SortOrder: SortOrder(sortOrder),
		Page:      parsePositive(page, DefaultPage),
		Limit:     parsePositive(limit, DefaultLimit),
	}
	return q.normalize()
}

func parsePositive(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// normalize は未指定や範囲外の値を既定値に寄せる。
func (q ListQuery) normalize() ListQuery {
	if q.SortBy == "" {
		q.SortBy = DefaultSortBy
	}
	if q.SortOrder != SortAsc {
		q.SortOrder = SortDesc
	}
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// Pagination はページング情報。
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Page は検索結果の1ページ分。
type Page struct {
	Orders     []Order
	Pagination Pagination
}

// Apply は絞り込み、安定ソート、ページングの順に検索条件を適用する。
// 入力のスライスは変更しない。
func (q ListQuery) Apply(orders []Order) Page {
	q = q.normalize()

	filtered := make([]Order, 0, len(orders))
	for _, o := range orders {
		if q.Status == "" || o.Status == q.Status {
			filtered = append(filtered, o)
		}
	}

	slices.SortStableFunc(filtered, func(a, b Order) int {
		c := compareField(a, b, q.SortBy)
		if q.SortOrder == SortDesc {
			return -c
		}
		return c
	})

	total := len(filtered)
	totalPages := (total + q.Limit - 1) / q.Limit
	start := min((q.Page-1)*q.Limit, total)
	end := min(start+q.Limit, total)

	return Page{
		Orders: filtered[start:end],
		Pagination: Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    q.Page < totalPages,
			HasPrev:    q.Page > 1,
		},
	}
}

// compareField はフィールド名で2つの注文を比較する。
// 比較できないフィールド名の場合は等しいとみなし、挿入順を保つ。
func compareField(a, b Order, field string) int {
	switch field {
	case "id":
		return cmp.Compare(a.ID, b.ID)
	case "userId":
		return cmp.Compare(a.UserID, b.UserID)
	case "status":
		return cmp.Compare(a.Status, b.Status)
	case "totalAmount":
		return a.TotalAmount.Cmp(b.TotalAmount)
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return 0
	}
}
