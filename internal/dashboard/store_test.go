package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/deliverable-studio/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProgressAndStatus(t *testing.T) {
	assert.Equal(t, 0, Progress(models.Subsections{}))
	assert.Equal(t, 33, Progress(models.Subsections{Slides: true}))
	assert.Equal(t, 67, Progress(models.Subsections{Report: true, Gallery: true}))
	assert.Equal(t, 100, Progress(models.Subsections{Report: true, Slides: true, Gallery: true}))

	assert.Equal(t, models.ProjectStatusDraft, DeriveStatus(0, models.ProjectStatusReview))
	assert.Equal(t, models.ProjectStatusInProgress, DeriveStatus(33, models.ProjectStatusDraft))
	assert.Equal(t, models.ProjectStatusReview, DeriveStatus(67, models.ProjectStatusReview))
	assert.Equal(t, models.ProjectStatusCompleted, DeriveStatus(100, models.ProjectStatusReview))
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Create(ctx, NewProject{Title: "  "})
	assert.ErrorIs(t, err, ErrInvalid)

	p, err := s.Create(ctx, NewProject{Title: " Soil Study ", Discipline: "Geology"})
	require.NoError(t, err)
	assert.Equal(t, "Soil Study", p.Title)
	assert.Equal(t, models.ProjectStatusDraft, p.Status)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
	assert.Equal(t, "Geology", got.Discipline)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	updated, err := s.UpdateProgress(ctx, p.ID, models.Subsections{Report: true})
	require.NoError(t, err)
	assert.Equal(t, 33, updated.Progress)
	assert.Equal(t, models.ProjectStatusInProgress, updated.Status)

	reviewed, err := s.SetStatus(ctx, p.ID, models.ProjectStatusReview)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusReview, reviewed.Status)

	updated, err = s.UpdateProgress(ctx, p.ID, models.Subsections{Report: true, Slides: true})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusReview, updated.Status, "review survives partial progress")

	updated, err = s.UpdateProgress(ctx, p.ID, models.Subsections{Report: true, Slides: true, Gallery: true})
	require.NoError(t, err)
	assert.Equal(t, 100, updated.Progress)
	assert.Equal(t, models.ProjectStatusCompleted, updated.Status)

	got, err = s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Subsections, got.Subsections)
	assert.Equal(t, models.ProjectStatusCompleted, got.Status)

	_, err = s.SetStatus(ctx, p.ID, "archived")
	assert.ErrorIs(t, err, ErrInvalid)

	require.NoError(t, s.Delete(ctx, p.ID))
	_, err = s.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, p.ID), ErrNotFound)
	_, err = s.UpdateProgress(ctx, p.ID, models.Subsections{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	a, err := s.Create(ctx, NewProject{Title: "A"})
	require.NoError(t, err)
	b, err := s.Create(ctx, NewProject{Title: "B"})
	require.NoError(t, err)
	_, err = s.UpdateProgress(ctx, a.ID, models.Subsections{Gallery: true})
	require.NoError(t, err)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID, "most recently updated first")
	assert.Equal(t, b.ID, all[1].ID)

	drafts, err := s.List(ctx, models.ProjectStatusDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, b.ID, drafts[0].ID)

	none, err := s.List(ctx, models.ProjectStatusCompleted)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = s.List(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seedProjects), n)

	n, err = s.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding is skipped when projects exist")

	completed, err := s.List(ctx, models.ProjectStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, 100, completed[0].Progress)

	review, err := s.List(ctx, models.ProjectStatusReview)
	require.NoError(t, err)
	assert.Len(t, review, 1)
}
