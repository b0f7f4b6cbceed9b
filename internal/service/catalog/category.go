package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

// ResolveBySlug возвращает категорию по slug.
func (s *Service) ResolveBySlug(ctx context.Context, slug string) (domain.Category, error) {
	category, err := s.categories.GetBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return domain.Category{}, storageErr("get category by slug", err)
	}
	return category, nil
}

// ListItemsByCategory возвращает категорию и все её блюда.
func (s *Service) ListItemsByCategory(ctx context.Context, slug string) (domain.Category, []domain.Food, error) {
	category, err := s.ResolveBySlug(ctx, slug)
	if err != nil {
		s.record("list_by_category", err)
		return domain.Category{}, nil, err
	}

	foods, err := s.foods.Find(ctx, domain.FoodQuery{CategoryIDs: []string{category.ID}})
	if err != nil {
		err = storageErr("find foods", err)
		s.record("list_by_category", err)
		return domain.Category{}, nil, err
	}
	for i := range foods {
		c := category
		foods[i].Category = &c
	}
	s.record("list_by_category", nil)
	return category, foods, nil
}

// CreateCategory создаёт категорию. Уникален slug имени: по нему категорию находит /food-category/:slug.
func (s *Service) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	category := domain.Category{Name: strings.TrimSpace(name)}
	if err := category.Validate(); err != nil {
		return domain.Category{}, err
	}
	category.Slug = domain.Slugify(category.Name)
	if category.Slug == "" {
		return domain.Category{}, domain.NewValidationError("name", "Category name must contain letters or digits")
	}
	category.ID = uuid.NewString()
	category.CreatedAt = s.now().UTC()

	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, domain.ErrCategoryExists) {
			err = domain.NewValidationError("name", "Category Already Exists")
		} else {
			err = storageErr("create category", err)
			s.logger.WithError(err).WithField("category_name", category.Name).Error("failed to create category")
		}
		s.record("create_category", err)
		return domain.Category{}, err
	}
	s.record("create_category", nil)
	return category, nil
}

// ListCategories возвращает все категории по имени.
func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, storageErr("list categories", err)
	}
	return categories, nil
}
