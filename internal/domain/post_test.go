package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostApprove(t *testing.T) {
	p := &Post{Status: PostReview}
	p.Approve("mod", t0)
	assert.Equal(t, PostPublished, p.Status)
	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, t0, *p.PublishedAt)

	// 再次审批：状态不变，只刷新审批人和时间
	later := t0.Add(time.Hour)
	p.Approve("admin", later)
	assert.Equal(t, PostPublished, p.Status)
	assert.Equal(t, "admin", *p.ApprovedBy)
	assert.Equal(t, later, *p.PublishedAt)
}

func TestPostApproveScheduled(t *testing.T) {
	future := t0.Add(48 * time.Hour)
	p := &Post{Status: PostReview, ScheduledAt: &future}
	p.Approve("mod", t0)
	assert.Equal(t, future, *p.PublishedAt)
	assert.False(t, p.VisibleAt(t0, true))
	assert.True(t, p.VisibleAt(t0, false))
	assert.True(t, p.VisibleAt(future, true))
}

func TestPostRejectAndResubmit(t *testing.T) {
	p := &Post{Status: PostReview}
	p.Approve("mod", t0)
	p.ResubmitAfterEdit()
	assert.Equal(t, PostReview, p.Status)
	assert.Nil(t, p.ApprovedBy)
	assert.Nil(t, p.PublishedAt)

	p.Approve("mod", t0)
	p.Reject()
	assert.Equal(t, PostDraft, p.Status)
	assert.Nil(t, p.PublishedAt)
}

func TestApplyStatus(t *testing.T) {
	p := &Post{Status: PostDraft}
	require.NoError(t, p.ApplyStatus(PostPublished, t0))
	assert.Equal(t, t0, *p.PublishedAt)

	// 已有 publishedAt 时保留
	require.NoError(t, p.ApplyStatus(PostPublished, t0.Add(time.Hour)))
	assert.Equal(t, t0, *p.PublishedAt)

	assert.True(t, IsKind(p.ApplyStatus("archived", t0), KindValidation))
}

func TestVisibleAtDeleted(t *testing.T) {
	p := &Post{Status: PostReview}
	p.Approve("mod", t0)
	p.SoftDelete(t0)
	assert.False(t, p.VisibleAt(t0.Add(time.Hour), false))
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: 20}, Page{}.Normalize())
	assert.Equal(t, 100, Page{Limit: 1000}.Normalize().Limit)
	assert.Equal(t, 40, Page{Page: 3, Limit: 20}.Offset())
	assert.Equal(t, []int{}, NewPageResult[int](nil, 0, Page{}).List)
}
