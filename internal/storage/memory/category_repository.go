package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

type categoryRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Category
}

// NewCategoryRepository создаёт in-memory справочник категорий.
func NewCategoryRepository() domain.CategoryRepository {
	return &categoryRepositoryInMemory{
		items: make(map[string]domain.Category),
	}
}

// Create сохраняет категорию; slug уникален, поэтому "Pizza" и "Pizza!" конфликтуют.
func (r *categoryRepositoryInMemory) Create(_ context.Context, category domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.ID == category.ID || existing.Slug == category.Slug || strings.EqualFold(existing.Name, category.Name) {
			return domain.ErrCategoryExists
		}
	}
	r.items[category.ID] = category
	return nil
}

func (r *categoryRepositoryInMemory) Get(_ context.Context, id string) (domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	category, ok := r.items[id]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return category, nil
}

func (r *categoryRepositoryInMemory) GetBySlug(_ context.Context, slug string) (domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, category := range r.items {
		if category.Slug == slug {
			return category, nil
		}
	}
	return domain.Category{}, domain.ErrCategoryNotFound
}

// List возвращает все категории по алфавиту.
func (r *categoryRepositoryInMemory) List(_ context.Context) ([]domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Category, 0, len(r.items))
	for _, category := range r.items {
		result = append(result, category)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

var _ domain.CategoryRepository = (*categoryRepositoryInMemory)(nil)
