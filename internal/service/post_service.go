package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"posto-admin/internal/domain"
	"posto-admin/pkg/sanitize"
	"posto-admin/pkg/utils"
)

type PostService struct {
	posts         domain.PostRepository
	refs          termRefs
	audit         Auditor
	log           *zap.Logger
	honorSchedule bool
	now           func() time.Time
}

func NewPostService(
	posts domain.PostRepository,
	categories domain.TermRepository[domain.Category],
	tags domain.TermRepository[domain.Tag],
	audit Auditor,
	honorSchedule bool,
	l *zap.Logger,
) *PostService {
	return &PostService{
		posts:         posts,
		refs:          termRefs{categories: categories, tags: tags},
		audit:         audit,
		log:           l,
		honorSchedule: honorSchedule,
		now:           utcNow,
	}
}

type CoverInput struct {
	URL     string `json:"url" binding:"omitempty,url,max=500"`
	MediaID string `json:"mediaId" binding:"max=64"`
}

func (c *CoverInput) toDomain() domain.CoverImage {
	if c == nil {
		return domain.CoverImage{}
	}
	return domain.CoverImage{URL: c.URL, MediaID: c.MediaID}
}

type PostInput struct {
	Title       string            `json:"title" binding:"required,min=2,max=200"`
	Slug        string            `json:"slug" binding:"omitempty,min=2,max=200"`
	Excerpt     string            `json:"excerpt" binding:"max=500"`
	Content     string            `json:"content"`
	CoverImage  *CoverInput       `json:"coverImage"`
	CategoryID  *string           `json:"categoryId" binding:"omitempty,max=36"`
	TagIDs      []string          `json:"tagIds" binding:"omitempty,max=50,dive,required,max=36"`
	Status      domain.PostStatus `json:"status" binding:"omitempty,oneof=draft review published"`
	ScheduledAt *time.Time        `json:"scheduledAt"`
}

type PostPatch struct {
	Title       *string            `json:"title" binding:"omitempty,min=2,max=200"`
	Slug        *string            `json:"slug" binding:"omitempty,min=2,max=200"`
	Excerpt     *string            `json:"excerpt" binding:"omitempty,max=500"`
	Content     *string            `json:"content"`
	CoverImage  *CoverInput        `json:"coverImage"`
	CategoryID  *string            `json:"categoryId" binding:"omitempty,max=36"`
	TagIDs      []string           `json:"tagIds" binding:"omitempty,max=50,dive,required,max=36"`
	Status      *domain.PostStatus `json:"status" binding:"omitempty,oneof=draft review published"`
	ScheduledAt *time.Time         `json:"scheduledAt"`
}

// SubmissionInput 登录用户自助投稿；更新时 TagIDs 为 nil 表示不改
type SubmissionInput struct {
	Title      string      `json:"title" binding:"required,min=5,max=200"`
	Content    string      `json:"content" binding:"required,min=10"`
	CoverImage *CoverInput `json:"coverImage"`
	CategoryID *string     `json:"categoryId" binding:"omitempty,max=36"`
	TagIDs     []string    `json:"tagIds" binding:"omitempty,max=50,dive,required,max=36"`
}

type PostQuery struct {
	Status         domain.PostStatus `form:"status" binding:"omitempty,oneof=draft review published"`
	CategoryID     string            `form:"categoryId"`
	TagID          string            `form:"tagId"`
	AuthorID       string            `form:"authorId"`
	Search         string            `form:"search"`
	IncludeDeleted bool              `form:"includeDeleted"`
	MineOnly       bool              `form:"mineOnly"`
	domain.Page
}

type PublicQuery struct {
	CategoryID string `form:"categoryId"`
	TagID      string `form:"tagId"`
	Search     string `form:"search"`
	domain.Page
}

func (s *PostService) List(ctx context.Context, actor domain.Actor, q PostQuery) (*domain.PageResult[domain.Post], error) {
	if err := validateInput(q); err != nil {
		return nil, err
	}
	f := domain.PostFilter{
		Status:         q.Status,
		CategoryID:     q.CategoryID,
		TagID:          q.TagID,
		AuthorID:       q.AuthorID,
		Search:         q.Search,
		IncludeDeleted: q.IncludeDeleted,
	}
	if q.MineOnly {
		f.AuthorID = actor.ID
	}
	return s.list(ctx, f, q.Page)
}

func (s *PostService) list(ctx context.Context, f domain.PostFilter, pg domain.Page) (*domain.PageResult[domain.Post], error) {
	p := pg.Normalize()
	items, total, err := s.posts.List(ctx, f, p)
	if err != nil {
		return nil, err
	}
	return domain.NewPageResult(items, total, p), nil
}

// Get 先按 id 找，找不到再按 slug
func (s *PostService) Get(ctx context.Context, idOrSlug string) (*domain.Post, error) {
	p, err := s.posts.FindByID(ctx, idOrSlug, false)
	if err == nil || !domain.IsKind(err, domain.KindNotFound) {
		return p, err
	}
	p, err = s.posts.FindBySlug(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted() {
		return nil, domain.NotFound("post not found")
	}
	return p, nil
}

// Create 管理端创建，作者为当前操作者；status=published 时直接发布
func (s *PostService) Create(ctx context.Context, actor domain.Actor, in PostInput) (*domain.Post, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.refs.check(ctx, domain.TaxonomyPost, in.CategoryID, in.TagIDs); err != nil {
		return nil, err
	}
	id := utils.NewID()
	slug, err := resolveSlug(ctx, s.posts.SlugTaken, in.Slug, in.Title, id)
	if err != nil {
		return nil, err
	}
	p := &domain.Post{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Slug:        slug,
		Excerpt:     in.Excerpt,
		Content:     sanitize.HTML(in.Content),
		CoverImage:  in.CoverImage.toDomain(),
		CategoryID:  optionalID(in.CategoryID),
		TagIDs:      dedupe(in.TagIDs),
		ScheduledAt: utcPtr(in.ScheduledAt),
		AuthorID:    &actor.ID,
	}
	status := in.Status
	if status == "" {
		status = domain.PostDraft
	}
	if err := p.ApplyStatus(status, s.now()); err != nil {
		return nil, err
	}
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "post.create", domain.EntityPost, p.ID, map[string]any{"status": p.Status})
	return p, nil
}

// Update 管理端编辑不会强制退回审核
func (s *PostService) Update(ctx context.Context, actor domain.Actor, id string, in PostPatch) (*domain.Post, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	p, err := s.posts.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if in.CategoryID != nil || in.TagIDs != nil {
		if err := s.refs.check(ctx, domain.TaxonomyPost, in.CategoryID, in.TagIDs); err != nil {
			return nil, err
		}
	}
	if in.Slug != nil {
		slug, err := resolveSlug(ctx, s.posts.SlugTaken, *in.Slug, "", p.ID)
		if err != nil {
			return nil, err
		}
		p.Slug = slug
	}
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Excerpt != nil {
		p.Excerpt = *in.Excerpt
	}
	if in.Content != nil {
		p.Content = sanitize.HTML(*in.Content)
	}
	if in.CoverImage != nil {
		p.CoverImage = in.CoverImage.toDomain()
	}
	if in.CategoryID != nil {
		p.CategoryID = optionalID(in.CategoryID)
	}
	if in.TagIDs != nil {
		p.TagIDs = dedupe(in.TagIDs)
	}
	if in.ScheduledAt != nil {
		p.ScheduledAt = utcPtr(in.ScheduledAt)
	}
	status := p.Status
	if in.Status != nil {
		status = *in.Status
	}
	if err := p.ApplyStatus(status, s.now()); err != nil {
		return nil, err
	}
	if err := s.posts.Save(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "post.update", domain.EntityPost, p.ID, map[string]any{"status": p.Status})
	return p, nil
}

func (s *PostService) SubmitForReview(ctx context.Context, actor domain.Actor, id string) (*domain.Post, error) {
	return s.transition(ctx, actor, id, "post.submit_review", nil, func(p *domain.Post) { p.SubmitForReview() })
}

// Approve 重复审批保持 published，审批人更新为最近一次
func (s *PostService) Approve(ctx context.Context, actor domain.Actor, id string) (*domain.Post, error) {
	now := s.now()
	return s.transition(ctx, actor, id, "post.approve", nil, func(p *domain.Post) { p.Approve(actor.ID, now) })
}

type RejectInput struct {
	Note string `json:"note" binding:"max=500"`
}

func (s *PostService) Reject(ctx context.Context, actor domain.Actor, id string, in RejectInput) (*domain.Post, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var meta map[string]any
	if in.Note != "" {
		meta = map[string]any{"note": in.Note}
	}
	return s.transition(ctx, actor, id, "post.reject", meta, func(p *domain.Post) { p.Reject() })
}

func (s *PostService) SoftDelete(ctx context.Context, actor domain.Actor, id string) error {
	now := s.now()
	_, err := s.transition(ctx, actor, id, "post.soft_delete", nil, func(p *domain.Post) { p.SoftDelete(now) })
	return err
}

func (s *PostService) Restore(ctx context.Context, actor domain.Actor, id string) (*domain.Post, error) {
	p, err := s.posts.FindByID(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if !p.IsDeleted() {
		return p, nil
	}
	p.Restore()
	if err := s.posts.Save(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "post.restore", domain.EntityPost, p.ID, nil)
	return p, nil
}

func (s *PostService) transition(ctx context.Context, actor domain.Actor, id, action string, meta map[string]any, apply func(*domain.Post)) (*domain.Post, error) {
	p, err := s.posts.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	apply(p)
	if err := s.posts.Save(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, action, domain.EntityPost, p.ID, meta)
	return p, nil
}

// CreateSubmission 投稿一律进入 review，作者为提交人
func (s *PostService) CreateSubmission(ctx context.Context, actor domain.Actor, in SubmissionInput) (*domain.Post, error) {
	if actor.ID == "" {
		return nil, domain.Unauthenticated("Authentication required")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.refs.check(ctx, domain.TaxonomyPost, in.CategoryID, in.TagIDs); err != nil {
		return nil, err
	}
	id := utils.NewID()
	slug, err := resolveSlug(ctx, s.posts.SlugTaken, "", in.Title, id)
	if err != nil {
		return nil, err
	}
	author := actor.ID
	p := &domain.Post{
		ID:         id,
		Title:      strings.TrimSpace(in.Title),
		Slug:       slug,
		Content:    sanitize.HTML(in.Content),
		CoverImage: in.CoverImage.toDomain(),
		CategoryID: optionalID(in.CategoryID),
		TagIDs:     dedupe(in.TagIDs),
		Status:     domain.PostReview,
		AuthorID:   &author,
	}
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "post.user_submit", domain.EntityPost, p.ID, nil)
	return p, nil
}

// UpdateSubmission 作者编辑自己的文章，无论之前状态都退回 review
func (s *PostService) UpdateSubmission(ctx context.Context, actor domain.Actor, id string, in SubmissionInput) (*domain.Post, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	p, err := s.ownPost(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.refs.check(ctx, domain.TaxonomyPost, in.CategoryID, in.TagIDs); err != nil {
		return nil, err
	}
	p.Title = strings.TrimSpace(in.Title)
	p.Content = sanitize.HTML(in.Content)
	if in.CategoryID != nil {
		p.CategoryID = optionalID(in.CategoryID)
	}
	if in.CoverImage != nil {
		p.CoverImage = in.CoverImage.toDomain()
	}
	if in.TagIDs != nil {
		p.TagIDs = dedupe(in.TagIDs)
	}
	p.ResubmitAfterEdit()
	if err := s.posts.Save(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "post.user_update", domain.EntityPost, p.ID, nil)
	return p, nil
}

func (s *PostService) GetSubmission(ctx context.Context, actor domain.Actor, id string) (*domain.Post, error) {
	return s.ownPost(ctx, actor, id)
}

func (s *PostService) ListMine(ctx context.Context, actor domain.Actor, q PostQuery) (*domain.PageResult[domain.Post], error) {
	if err := validateInput(q); err != nil {
		return nil, err
	}
	return s.list(ctx, domain.PostFilter{
		Status:     q.Status,
		CategoryID: q.CategoryID,
		TagID:      q.TagID,
		Search:     q.Search,
		AuthorID:   actor.ID,
	}, q.Page)
}

// 别人的文章一律报 NotFound
func (s *PostService) ownPost(ctx context.Context, actor domain.Actor, id string) (*domain.Post, error) {
	if actor.ID == "" {
		return nil, domain.Unauthenticated("Authentication required")
	}
	p, err := s.posts.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if !p.IsAuthoredBy(actor.ID) {
		return nil, domain.NotFound("post not found")
	}
	return p, nil
}

func (s *PostService) PublicList(ctx context.Context, q PublicQuery) (*domain.PageResult[domain.Post], error) {
	return s.list(ctx, domain.PostFilter{
		CategoryID:    q.CategoryID,
		TagID:         q.TagID,
		Search:        q.Search,
		PublicAt:      s.now(),
		HonorSchedule: s.honorSchedule,
	}, q.Page)
}

func (s *PostService) PublicGet(ctx context.Context, slug string) (*domain.Post, error) {
	p, err := s.posts.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !p.VisibleAt(s.now(), s.honorSchedule) {
		return nil, domain.NotFound("post not found")
	}
	return p, nil
}
