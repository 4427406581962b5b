package domain

import (
	"context"
	"time"
)

type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostReview    PostStatus = "review"
	PostPublished PostStatus = "published"
)

func (s PostStatus) Valid() bool {
	return s == PostDraft || s == PostReview || s == PostPublished
}

type CoverImage struct {
	URL     string `gorm:"size:500" json:"url,omitempty"`
	MediaID string `gorm:"size:64" json:"mediaId,omitempty"`
}

// GuestAuthor 仅历史数据使用；新文章一律归属登录用户
type GuestAuthor struct {
	Name  string `gorm:"size:120" json:"name,omitempty"`
	Email string `gorm:"size:255" json:"email,omitempty"`
}

type Post struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	Title       string      `gorm:"size:200;not null" json:"title"`
	Slug        string      `gorm:"size:220;not null;uniqueIndex" json:"slug"`
	Excerpt     string      `gorm:"size:500" json:"excerpt"`
	Content     string      `gorm:"type:text;not null" json:"content"`
	CoverImage  CoverImage  `gorm:"embedded;embeddedPrefix:cover_" json:"coverImage"`
	CategoryID  *string     `gorm:"size:36;index" json:"categoryId"`
	TagIDs      []string    `gorm:"-" json:"tagIds"`
	Status      PostStatus  `gorm:"size:16;not null;index" json:"status"`
	ScheduledAt *time.Time  `json:"scheduledAt"`
	PublishedAt *time.Time  `gorm:"index" json:"publishedAt"`
	AuthorID    *string     `gorm:"size:36;index" json:"authorId"`
	GuestAuthor GuestAuthor `gorm:"embedded;embeddedPrefix:guest_" json:"guestAuthor"`
	ApprovedBy  *string     `gorm:"size:36" json:"approvedBy"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	DeletedAt   *time.Time  `gorm:"index" json:"deletedAt,omitempty"`
}

func (Post) TableName() string { return "posts" }

// PostTag 文章-标签关联
type PostTag struct {
	PostID string `gorm:"primaryKey;size:36"`
	TagID  string `gorm:"primaryKey;size:36;index"`
}

func (PostTag) TableName() string { return "post_tags" }

/*
文章状态：draft -> review -> published

	SubmitForReview      任意 -> review
	Approve              任意 -> published（需 post:approve）
	Reject               任意 -> draft，清空审批信息
	ApplyStatus          管理端直接设置，可在 draft/published 间跳转
	ResubmitAfterEdit    作者自助编辑后强制回到 review
*/

func (p *Post) IsDeleted() bool { return p.DeletedAt != nil }

func (p *Post) IsAuthoredBy(userID string) bool {
	return p.AuthorID != nil && *p.AuthorID == userID
}

// ApplyStatus 管理端设置状态。后置：published 必有 publishedAt。
func (p *Post) ApplyStatus(s PostStatus, now time.Time) error {
	if !s.Valid() {
		return FieldInvalid("status", "Invalid status")
	}
	p.Status = s
	if s == PostPublished && p.PublishedAt == nil {
		p.PublishedAt = &now
	}
	return nil
}

func (p *Post) SubmitForReview() { p.Status = PostReview }

// Approve 后置：published，approvedBy 为本次审批人；
// scheduledAt 在未来则 publishedAt=scheduledAt，否则为 now。重复审批只刷新审批人和时间。
func (p *Post) Approve(by string, now time.Time) {
	p.Status = PostPublished
	p.ApprovedBy = &by
	at := now
	if p.ScheduledAt != nil && p.ScheduledAt.After(now) {
		at = *p.ScheduledAt
	}
	p.PublishedAt = &at
}

// Reject 退回草稿
func (p *Post) Reject() {
	p.Status = PostDraft
	p.ApprovedBy = nil
	p.PublishedAt = nil
}

// ResubmitAfterEdit 作者改过内容后必须重新审核
func (p *Post) ResubmitAfterEdit() {
	p.Status = PostReview
	p.ApprovedBy = nil
	p.PublishedAt = nil
}

// VisibleAt 公共站点是否可见；honorSchedule=false 时只看状态
func (p *Post) VisibleAt(now time.Time, honorSchedule bool) bool {
	if p.IsDeleted() || p.Status != PostPublished {
		return false
	}
	return !honorSchedule || (p.PublishedAt != nil && !p.PublishedAt.After(now))
}

func (p *Post) SoftDelete(now time.Time) { p.DeletedAt = &now }
func (p *Post) Restore()                 { p.DeletedAt = nil }

type PostFilter struct {
	Status         PostStatus
	CategoryID     string
	TagID          string
	AuthorID       string
	Search         string
	IncludeDeleted bool
	// PublicAt 非零时只返回在该时刻对公众可见的文章
	PublicAt      time.Time
	HonorSchedule bool
}

type PostRepository interface {
	Create(ctx context.Context, p *Post) error
	FindByID(ctx context.Context, id string, includeDeleted bool) (*Post, error)
	FindBySlug(ctx context.Context, slug string) (*Post, error)
	SlugTaken(ctx context.Context, slug, exceptID string) (bool, error)
	Save(ctx context.Context, p *Post) error
	List(ctx context.Context, f PostFilter, pg Page) ([]Post, int64, error)
}
