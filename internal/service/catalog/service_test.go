package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
	"github.com/vladislavdragonenkov/foodstore/internal/metrics"
	"github.com/vladislavdragonenkov/foodstore/internal/storage/memory"
	"github.com/vladislavdragonenkov/foodstore/internal/storage/rediscache"
)

// tickClock выдаёт строго возрастающее время, чтобы порядок создания был детерминирован.
type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	svc        *Service
	foods      domain.FoodRepository
	categories domain.CategoryRepository
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()

	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	clock := &tickClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	foods := memory.NewFoodRepository()
	categories := memory.NewCategoryRepository()
	opts = append([]Option{WithLogger(log.NewEntry(logger)), WithClock(clock.Now)}, opts...)
	return fixture{
		svc:        NewService(foods, categories, opts...),
		foods:      foods,
		categories: categories,
	}
}

func (f fixture) category(t *testing.T, name string) domain.Category {
	t.Helper()
	category, err := f.svc.CreateCategory(context.Background(), name)
	require.NoError(t, err)
	return category
}

func (f fixture) food(t *testing.T, name, description, price, categoryID string) domain.Food {
	t.Helper()
	food, err := f.svc.Create(context.Background(), domain.FoodInput{
		Name:        name,
		Description: description,
		Price:       price,
		Category:    categoryID,
		Quantity:    "10",
		Shipping:    "true",
	})
	require.NoError(t, err)
	return food
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	desserts := f.category(t, "Desserts")

	food, err := f.svc.Create(ctx, domain.FoodInput{
		Name:        "Chocolate Cake",
		Description: "Rich and dark",
		Price:       "12.50",
		Category:    desserts.ID,
		Quantity:    "4",
		Shipping:    "false",
		Photo:       &domain.Photo{Data: []byte("jpeg"), ContentType: "image/jpeg", Size: 4},
	})
	require.NoError(t, err)
	require.NotEmpty(t, food.ID)
	require.Equal(t, "chocolate-cake", food.Slug)
	require.Nil(t, food.Photo, "photo payload must not be returned")
	require.NotNil(t, food.Category)
	require.Equal(t, "Desserts", food.Category.Name)
	require.True(t, food.Price.Equal(decimal.RequireFromString("12.5")))

	photo, err := f.svc.GetPhoto(ctx, food.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg"), photo.Data)
	require.Equal(t, "image/jpeg", photo.ContentType)
}

func TestService_Create_ValidationFirstFailureWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	desserts := f.category(t, "Desserts")

	valid := func() domain.FoodInput {
		return domain.FoodInput{
			Name: "Pie", Description: "Apple", Price: "3", Category: desserts.ID, Quantity: "1",
		}
	}

	tests := []struct {
		name   string
		mutate func(in *domain.FoodInput)
		field  string
	}{
		{name: "missing name", mutate: func(in *domain.FoodInput) { in.Name = "" }, field: "name"},
		{name: "missing description and price", mutate: func(in *domain.FoodInput) { in.Description = ""; in.Price = "" }, field: "description"},
		{name: "missing quantity", mutate: func(in *domain.FoodInput) { in.Quantity = " " }, field: "quantity"},
		{name: "photo too large", mutate: func(in *domain.FoodInput) {
			in.Photo = &domain.Photo{Data: []byte("x"), Size: domain.MaxPhotoSize + 1}
		}, field: "photo"},
		{name: "negative price", mutate: func(in *domain.FoodInput) { in.Price = "-1" }, field: "price"},
		{name: "unknown category", mutate: func(in *domain.FoodInput) { in.Category = "nope" }, field: "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)

			_, err := f.svc.Create(ctx, in)
			require.Error(t, err)
			require.True(t, domain.IsValidation(err))

			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr))
			require.Equal(t, tt.field, vErr.Field)
		})
	}

	n, err := f.foods.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n, "nothing must be persisted on validation failure")
}

func TestService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	desserts := f.category(t, "Desserts")
	drinks := f.category(t, "Drinks")

	created, err := f.svc.Create(ctx, domain.FoodInput{
		Name: "Cake", Description: "Sweet", Price: "5", Category: desserts.ID, Quantity: "1",
		Photo: &domain.Photo{Data: []byte("old"), ContentType: "image/png"},
	})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, created.ID, domain.FoodInput{
		Name: "Iced Coffee", Description: "Cold", Price: "3.20", Category: drinks.ID, Quantity: "7",
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, "iced-coffee", updated.Slug)
	require.Equal(t, "Drinks", updated.Category.Name)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)
	require.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	photo, err := f.svc.GetPhoto(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("old"), photo.Data, "photo is kept when no new one is uploaded")

	_, err = f.svc.Update(ctx, created.ID, domain.FoodInput{
		Name: "Iced Coffee", Description: "Cold", Price: "3.20", Category: drinks.ID, Quantity: "7",
		Photo: &domain.Photo{Data: []byte("new"), ContentType: "image/jpeg"},
	})
	require.NoError(t, err)
	photo, err = f.svc.GetPhoto(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), photo.Data)

	_, err = f.svc.Update(ctx, "missing", domain.FoodInput{})
	require.ErrorIs(t, err, domain.ErrFoodNotFound)
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Soups")
	food := f.food(t, "Borscht", "Beet soup", "6", c.ID)

	require.NoError(t, f.svc.Delete(ctx, food.ID))
	require.ErrorIs(t, f.svc.Delete(ctx, food.ID), domain.ErrFoodNotFound)
	require.True(t, domain.IsNotFound(f.svc.Delete(ctx, "never-existed")))

	_, err := f.svc.GetPhoto(ctx, food.ID)
	require.True(t, domain.IsNotFound(err))
}

func TestService_GetAllAndGetOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Mains")
	for i := 1; i <= 14; i++ {
		f.food(t, fmt.Sprintf("Dish %02d", i), "tasty", "10", c.ID)
	}

	all, err := f.svc.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, DefaultLimit)
	require.Equal(t, "Dish 14", all[0].Name)
	for _, food := range all {
		require.NotNil(t, food.Category)
		require.Nil(t, food.Photo)
	}

	one, err := f.svc.GetOne(ctx, "dish-03")
	require.NoError(t, err)
	require.Equal(t, "Dish 03", one.Name)
	require.Equal(t, "Mains", one.Category.Name)

	_, err = f.svc.GetOne(ctx, "no-such-dish")
	require.ErrorIs(t, err, domain.ErrFoodNotFound)
}

func TestService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Mains")
	for i := 1; i <= 12; i++ {
		f.food(t, fmt.Sprintf("Dish %02d", i), "tasty", "10", c.ID)
	}

	first, err := f.svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, PageSize)
	require.Equal(t, "Dish 12", first[0].Name)
	require.Equal(t, "Dish 07", first[5].Name)

	second, err := f.svc.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, second, PageSize)
	require.Equal(t, "Dish 06", second[0].Name)
	require.Equal(t, "Dish 01", second[5].Name)

	zero, err := f.svc.List(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, first, zero, "page < 1 is treated as the first page")

	beyond, err := f.svc.List(ctx, 3)
	require.NoError(t, err)
	require.Empty(t, beyond)

	for _, page := range []int{math.MaxInt/PageSize + 1, math.MaxInt/PageSize + 2, math.MaxInt} {
		far, err := f.svc.List(ctx, page)
		require.NoError(t, err)
		require.Empty(t, far, "page %d is past the end", page)
	}
}

func TestService_Search(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Desserts")
	f.food(t, "Chocolate Cake", "dark", "10", c.ID)
	f.food(t, "Tiramisu", "Coffee CAKE with mascarpone", "9", c.ID)
	f.food(t, "Lemonade", "sour drink", "2", c.ID)

	found, err := f.svc.Search(ctx, "cake")
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "Tiramisu", found[0].Name)
	require.Equal(t, "Chocolate Cake", found[1].Name)

	_, err = f.svc.Search(ctx, "  ")
	require.True(t, domain.IsValidation(err))
}

func TestService_Filter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.category(t, "A")
	b := f.category(t, "B")
	f.food(t, "a-cheap", "x", "5", a.ID)
	f.food(t, "a-mid", "x", "15", a.ID)
	f.food(t, "a-edge", "x", "20", a.ID)
	f.food(t, "b-mid", "x", "12", b.ID)

	bounds := []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(20)}
	found, err := f.svc.Filter(ctx, []string{a.ID}, bounds)
	require.NoError(t, err)
	require.Len(t, found, 2)
	for _, food := range found {
		require.Equal(t, a.ID, food.CategoryID)
		require.True(t, food.Price.GreaterThanOrEqual(bounds[0]) && food.Price.LessThanOrEqual(bounds[1]))
	}

	all, err := f.svc.Filter(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)

	byPrice, err := f.svc.Filter(ctx, []string{}, bounds)
	require.NoError(t, err)
	require.Len(t, byPrice, 3)

	_, err = f.svc.Filter(ctx, nil, []decimal.Decimal{decimal.NewFromInt(1)})
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Equal(t, "radio", vErr.Field)
}

func TestService_Related(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.category(t, "A")
	b := f.category(t, "B")
	target := f.food(t, "target", "x", "1", a.ID)
	for i := 0; i < 4; i++ {
		f.food(t, fmt.Sprintf("sibling %d", i), "x", "1", a.ID)
	}
	f.food(t, "other", "x", "1", b.ID)

	related, err := f.svc.Related(ctx, target.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, related, RelatedLimit)
	for _, food := range related {
		require.NotEqual(t, target.ID, food.ID)
		require.Equal(t, a.ID, food.CategoryID)
		require.Equal(t, "A", food.Category.Name)
	}
}

func TestService_Categories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pizza := f.category(t, "Pizza Time")
	require.Equal(t, "pizza-time", pizza.Slug)
	f.category(t, "Burgers")

	_, err := f.svc.CreateCategory(ctx, "pizza time")
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Equal(t, "Category Already Exists", vErr.Message)

	_, err = f.svc.CreateCategory(ctx, "")
	require.True(t, domain.IsValidation(err))

	_, err = f.svc.CreateCategory(ctx, "Pizza Time!")
	require.True(t, errors.As(err, &vErr), "same slug as an existing category")
	require.Equal(t, "Category Already Exists", vErr.Message)

	_, err = f.svc.CreateCategory(ctx, "!!!")
	require.True(t, errors.As(err, &vErr))
	require.Equal(t, "name", vErr.Field)

	categories, err := f.svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	require.Equal(t, "Burgers", categories[0].Name)

	f.food(t, "Margherita", "x", "8", pizza.ID)
	f.food(t, "Pepperoni", "x", "9", pizza.ID)

	for range 20 {
		resolved, err := f.svc.ResolveBySlug(ctx, "pizza-time")
		require.NoError(t, err)
		require.Equal(t, pizza.ID, resolved.ID)
	}

	category, foods, err := f.svc.ListItemsByCategory(ctx, "pizza-time")
	require.NoError(t, err)
	require.Equal(t, pizza.ID, category.ID)
	require.Len(t, foods, 2)
	for _, food := range foods {
		require.Equal(t, "Pizza Time", food.Category.Name)
	}

	_, _, err = f.svc.ListItemsByCategory(ctx, "sushi")
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)
}

func TestService_Count_UsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewCatalogMetricsWithRegisterer(reg)
	cache := rediscache.NewCountCache(client, rediscache.WithKey("test:count"))
	f := newFixture(t, WithCountCache(cache), WithMetrics(m))
	ctx := context.Background()
	c := f.category(t, "A")
	f.food(t, "one", "x", "1", c.ID)

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	stored, err := mr.Get("test:count")
	require.NoError(t, err)
	require.Equal(t, "1", stored)

	// значение из кеша, даже если репозиторий изменился в обход сервиса
	require.NoError(t, f.foods.Create(ctx, domain.Food{ID: "raw", Name: "raw", CategoryID: c.ID}))
	n, err = f.svc.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	f.food(t, "two", "x", "1", c.ID)
	require.False(t, mr.Exists("test:count"), "create must invalidate the cached count")
	n, err = f.svc.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestService_Count_CacheFailureFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, WithCountCache(rediscache.NewCountCache(client)))
	ctx := context.Background()
	c := f.category(t, "A")
	f.food(t, "one", "x", "1", c.ID)
	mr.Close()

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
