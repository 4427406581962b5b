package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page 分页 + 排序参数；Sort 形如 "createdAt:desc,title:asc"
type Page struct {
	Page  int    `form:"page" json:"page"`
	Limit int    `form:"limit" json:"limit"`
	Sort  string `form:"sort" json:"sort"`
}

// Normalize page>=1，limit 落在 1..100，缺省 20
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

type PageResult[T any] struct {
	List  []T   `json:"list"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

func NewPageResult[T any](items []T, total int64, p Page) *PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return &PageResult[T]{List: items, Total: total, Page: p.Page, Size: p.Limit}
}
