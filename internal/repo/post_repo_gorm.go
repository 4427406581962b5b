package repo

import (
	"context"

	"gorm.io/gorm"

	"posto-admin/internal/domain"
)

type PostRepo struct{ db *gorm.DB }

func NewPostRepo(db *gorm.DB) *PostRepo { return &PostRepo{db: db} }

var postSortable = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"publishedAt": "published_at",
	"title":       "title",
	"status":      "status",
}

// 文章与其标签关联视为同一份文档，一起写
func (r *PostRepo) Create(ctx context.Context, p *domain.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return writeTags(tx, p)
	})
	return mapErr(err, "slug")
}

func (r *PostRepo) Save(ctx context.Context, p *domain.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", p.ID).Delete(&domain.PostTag{}).Error; err != nil {
			return err
		}
		return writeTags(tx, p)
	})
	return mapErr(err, "slug")
}

func writeTags(tx *gorm.DB, p *domain.Post) error {
	if len(p.TagIDs) == 0 {
		return nil
	}
	rows := make([]domain.PostTag, 0, len(p.TagIDs))
	seen := map[string]bool{}
	for _, id := range p.TagIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, domain.PostTag{PostID: p.ID, TagID: id})
	}
	return tx.Create(&rows).Error
}

func (r *PostRepo) FindByID(ctx context.Context, id string, includeDeleted bool) (*domain.Post, error) {
	var p domain.Post
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if !includeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	if err := q.First(&p).Error; err != nil {
		return nil, mapErr(err, "post")
	}
	posts := []domain.Post{p}
	if err := r.loadTags(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// FindBySlug 不过滤状态，是否可见由 service 判断
func (r *PostRepo) FindBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	var p domain.Post
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, mapErr(err, "post")
	}
	posts := []domain.Post{p}
	if err := r.loadTags(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

func (r *PostRepo) SlugTaken(ctx context.Context, slug, exceptID string) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&domain.Post{}).Where("slug = ?", slug)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *PostRepo) List(ctx context.Context, f domain.PostFilter, pg domain.Page) ([]domain.Post, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Post{})
	if !f.IncludeDeleted || !f.PublicAt.IsZero() {
		q = q.Where("deleted_at IS NULL")
	}
	if !f.PublicAt.IsZero() {
		q = q.Where("status = ?", domain.PostPublished)
		if f.HonorSchedule {
			q = q.Where("published_at IS NOT NULL AND published_at <= ?", f.PublicAt)
		}
	} else if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CategoryID != "" {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.TagID != "" {
		sub := r.db.Model(&domain.PostTag{}).Select("post_id").Where("tag_id = ?", f.TagID)
		q = q.Where("id IN (?)", sub)
	}
	if f.AuthorID != "" {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if f.Search != "" {
		like := likePattern(f.Search)
		q = q.Where("(LOWER(title) LIKE ?"+likeEscape+" OR LOWER(content) LIKE ?"+likeEscape+")", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	fallback := "created_at desc"
	if !f.PublicAt.IsZero() {
		fallback = "published_at desc"
	}
	var posts []domain.Post
	if err := paginate(applySort(q, pg.Sort, postSortable, fallback), pg).Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	if err := r.loadTags(ctx, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepo) loadTags(ctx context.Context, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	idx := make(map[string]int, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		idx[posts[i].ID] = i
		posts[i].TagIDs = []string{}
	}
	var rows []domain.PostTag
	if err := r.db.WithContext(ctx).Where("post_id IN ?", ids).Order("tag_id").Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		i := idx[row.PostID]
		posts[i].TagIDs = append(posts[i].TagIDs, row.TagID)
	}
	return nil
}
