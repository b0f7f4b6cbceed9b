package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
	"github.com/vladislavdragonenkov/foodstore/internal/storage/memory"
)

func seedFoods(t *testing.T, repo domain.FoodRepository, n int) []domain.Food {
	t.Helper()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	foods := make([]domain.Food, 0, n)
	for i := 1; i <= n; i++ {
		food := domain.Food{
			ID:          fmt.Sprintf("food-%02d", i),
			Name:        fmt.Sprintf("Dish %d", i),
			Slug:        fmt.Sprintf("dish-%d", i),
			Description: "tasty",
			Price:       decimal.NewFromInt(int64(i * 5)),
			CategoryID:  "cat-a",
			Quantity:    i,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if i%2 == 0 {
			food.CategoryID = "cat-b"
		}
		require.NoError(t, repo.Create(context.Background(), food))
		foods = append(foods, food)
	}
	return foods
}

func ids(foods []domain.Food) []string {
	out := make([]string, 0, len(foods))
	for _, f := range foods {
		out = append(out, f.ID)
	}
	return out
}

func TestFoodRepository_FindPagination(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFoodRepository()
	seedFoods(t, repo, 14)

	first, err := repo.Find(ctx, domain.FoodQuery{Offset: 0, Limit: 6})
	require.NoError(t, err)
	require.Equal(t, []string{"food-14", "food-13", "food-12", "food-11", "food-10", "food-09"}, ids(first))

	second, err := repo.Find(ctx, domain.FoodQuery{Offset: 6, Limit: 6})
	require.NoError(t, err)
	require.Equal(t, []string{"food-08", "food-07", "food-06", "food-05", "food-04", "food-03"}, ids(second))

	beyond, err := repo.Find(ctx, domain.FoodQuery{Offset: 60, Limit: 6})
	require.NoError(t, err)
	require.Empty(t, beyond)
}

func TestFoodRepository_FindFilters(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFoodRepository()
	seedFoods(t, repo, 6)

	byCategory, err := repo.Find(ctx, domain.FoodQuery{
		CategoryIDs: []string{"cat-a"},
		Price:       &domain.PriceRange{Min: decimal.NewFromInt(10), Max: decimal.NewFromInt(20)},
	})
	require.NoError(t, err)
	// cat-a: цены 5, 15, 25; в диапазон попадает только 15.
	require.Equal(t, []string{"food-03"}, ids(byCategory))

	all, err := repo.Find(ctx, domain.FoodQuery{})
	require.NoError(t, err)
	require.Len(t, all, 6)

	related, err := repo.Find(ctx, domain.FoodQuery{CategoryIDs: []string{"cat-b"}, ExcludeID: "food-06", Limit: 3})
	require.NoError(t, err)
	require.Equal(t, []string{"food-04", "food-02"}, ids(related))
}

func TestFoodRepository_FindKeyword(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFoodRepository()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, domain.Food{ID: "1", Name: "Chocolate Cake", Description: "sweet", CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, domain.Food{ID: "2", Name: "Tiramisu", Description: "coffee CAKE dessert", CreatedAt: now.Add(time.Second)}))
	require.NoError(t, repo.Create(ctx, domain.Food{ID: "3", Name: "Ramen", Description: "noodles", CreatedAt: now.Add(2 * time.Second)}))

	found, err := repo.Find(ctx, domain.FoodQuery{Keyword: "cake"})
	require.NoError(t, err)
	require.Equal(t, []string{"2", "1"}, ids(found))
}

func TestFoodRepository_PhotoLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFoodRepository()

	food := domain.Food{
		ID:        "food-1",
		Name:      "Cake",
		Slug:      "cake",
		Photo:     &domain.Photo{Data: []byte{1, 2}, ContentType: "image/png", Size: 2},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, food))

	got, err := repo.Get(ctx, food.ID)
	require.NoError(t, err)
	require.Nil(t, got.Photo, "reads must exclude photo payload")

	food.Photo = nil
	food.Name = "Cheesecake"
	require.NoError(t, repo.Update(ctx, food))

	photo, err := repo.GetPhoto(ctx, food.ID)
	require.NoError(t, err)
	require.Equal(t, "image/png", photo.ContentType)
	require.Equal(t, []byte{1, 2}, photo.Data)

	bySlug, err := repo.GetBySlug(ctx, "cake")
	require.NoError(t, err)
	require.Equal(t, "Cheesecake", bySlug.Name)
}

func TestFoodRepository_EmptyPhotoAndMissing(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFoodRepository()
	require.NoError(t, repo.Create(ctx, domain.Food{ID: "food-1", CreatedAt: time.Now()}))

	photo, err := repo.GetPhoto(ctx, "food-1")
	require.NoError(t, err)
	require.True(t, photo.Empty())

	_, err = repo.GetPhoto(ctx, "missing")
	require.True(t, errors.Is(err, domain.ErrFoodNotFound))

	require.ErrorIs(t, repo.Delete(ctx, "missing"), domain.ErrFoodNotFound)
	require.ErrorIs(t, repo.Update(ctx, domain.Food{ID: "missing"}), domain.ErrFoodNotFound)

	require.NoError(t, repo.Delete(ctx, "food-1"))
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}
