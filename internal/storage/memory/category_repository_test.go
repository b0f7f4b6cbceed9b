package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
	"github.com/vladislavdragonenkov/foodstore/internal/storage/memory"
)

func TestCategoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCategoryRepository()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, domain.Category{ID: "c1", Name: "Pizza", Slug: "pizza", CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, domain.Category{ID: "c2", Name: "Desserts", Slug: "desserts", CreatedAt: now}))
	require.ErrorIs(t, repo.Create(ctx, domain.Category{ID: "c3", Name: "pizza", Slug: "pizza"}), domain.ErrCategoryExists)
	require.ErrorIs(t, repo.Create(ctx, domain.Category{ID: "c4", Name: "Pizza!", Slug: "pizza"}), domain.ErrCategoryExists)

	got, err := repo.GetBySlug(ctx, "desserts")
	require.NoError(t, err)
	require.Equal(t, "c2", got.ID)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)
	_, err = repo.GetBySlug(ctx, "missing")
	require.True(t, domain.IsNotFound(err))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Desserts", list[0].Name)
}
