package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

// foodRecord хранит блюдо и порядковый номер вставки для стабильной сортировки.
type foodRecord struct {
	food domain.Food
	seq  uint64
}

// foodRepositoryInMemory: in-memory реализация FoodRepository.
type foodRepositoryInMemory struct {
	mu    sync.RWMutex
	seq   uint64
	items map[string]*foodRecord
}

// NewFoodRepository создаёт in-memory хранилище блюд.
func NewFoodRepository() domain.FoodRepository {
	return &foodRepositoryInMemory{
		items: make(map[string]*foodRecord),
	}
}

func (r *foodRepositoryInMemory) Create(_ context.Context, food domain.Food) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[food.ID]; exists {
		return domain.ErrFoodExists
	}
	r.seq++
	r.items[food.ID] = &foodRecord{food: cloneFood(food), seq: r.seq}
	return nil
}

// Update перезаписывает блюдо. Если food.Photo не задано, сохранённое фото остаётся.
func (r *foodRepositoryInMemory) Update(_ context.Context, food domain.Food) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.items[food.ID]
	if !ok {
		return domain.ErrFoodNotFound
	}
	photo := record.food.Photo
	record.food = cloneFood(food)
	if record.food.Photo == nil {
		record.food.Photo = photo
	}
	return nil
}

func (r *foodRepositoryInMemory) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrFoodNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *foodRepositoryInMemory) Get(_ context.Context, id string) (domain.Food, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.items[id]
	if !ok {
		return domain.Food{}, domain.ErrFoodNotFound
	}
	return record.food.WithoutPhoto(), nil
}

// GetBySlug возвращает самое новое блюдо с указанным slug.
func (r *foodRepositoryInMemory) GetBySlug(_ context.Context, slug string) (domain.Food, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *foodRecord
	for _, record := range r.items {
		if record.food.Slug != slug {
			continue
		}
		if found == nil || newer(record, found) {
			found = record
		}
	}
	if found == nil {
		return domain.Food{}, domain.ErrFoodNotFound
	}
	return found.food.WithoutPhoto(), nil
}

func (r *foodRepositoryInMemory) GetPhoto(_ context.Context, id string) (domain.Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.items[id]
	if !ok {
		return domain.Photo{}, domain.ErrFoodNotFound
	}
	if record.food.Photo.Empty() {
		return domain.Photo{}, nil
	}
	photo := *record.food.Photo
	photo.Data = append([]byte(nil), photo.Data...)
	return photo, nil
}

// Find фильтрует блюда и возвращает их от новых к старым.
func (r *foodRepositoryInMemory) Find(_ context.Context, query domain.FoodQuery) ([]domain.Food, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := make(map[string]struct{}, len(query.CategoryIDs))
	for _, id := range query.CategoryIDs {
		categories[id] = struct{}{}
	}
	keyword := strings.ToLower(strings.TrimSpace(query.Keyword))

	matched := make([]*foodRecord, 0, len(r.items))
	for _, record := range r.items {
		food := record.food
		if query.ExcludeID != "" && food.ID == query.ExcludeID {
			continue
		}
		if len(categories) > 0 {
			if _, ok := categories[food.CategoryID]; !ok {
				continue
			}
		}
		if query.Price != nil && !query.Price.Contains(food.Price) {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(food.Name), keyword) &&
			!strings.Contains(strings.ToLower(food.Description), keyword) {
			continue
		}
		matched = append(matched, record)
	}

	sort.Slice(matched, func(i, j int) bool {
		return newer(matched[i], matched[j])
	})

	if query.Offset > 0 {
		if query.Offset >= len(matched) {
			return []domain.Food{}, nil
		}
		matched = matched[query.Offset:]
	}
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}

	result := make([]domain.Food, 0, len(matched))
	for _, record := range matched {
		result = append(result, record.food.WithoutPhoto())
	}
	return result, nil
}

func (r *foodRepositoryInMemory) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.items)), nil
}

func newer(a, b *foodRecord) bool {
	if !a.food.CreatedAt.Equal(b.food.CreatedAt) {
		return a.food.CreatedAt.After(b.food.CreatedAt)
	}
	return a.seq > b.seq
}

func cloneFood(src domain.Food) domain.Food {
	dst := src
	dst.Category = nil
	if src.Photo != nil {
		photo := *src.Photo
		photo.Data = append([]byte(nil), src.Photo.Data...)
		dst.Photo = &photo
	}
	return dst
}

var _ domain.FoodRepository = (*foodRepositoryInMemory)(nil)
