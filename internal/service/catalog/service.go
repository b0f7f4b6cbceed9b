package catalog

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
	"github.com/vladislavdragonenkov/foodstore/internal/metrics"
)

const (
	// DefaultLimit: сколько блюд отдаёт GetAll.
	DefaultLimit = 12
	// PageSize: размер страницы List.
	PageSize = 6
	// RelatedLimit: максимум похожих блюд.
	RelatedLimit = 3
)

// CountCache кеширует результат Count. Реализация: rediscache.CountCache.
type CountCache interface {
	Get(ctx context.Context) (int64, bool, error)
	Set(ctx context.Context, n int64) error
	Invalidate(ctx context.Context) error
}

// Options задаёт зависимости сервиса каталога.
type Options struct {
	Logger     *log.Entry
	CountCache CountCache
	Metrics    *metrics.CatalogMetrics
	Now        func() time.Time
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithCountCache включает кеширование количества блюд.
func WithCountCache(cache CountCache) Option {
	return func(opts *Options) {
		opts.CountCache = cache
	}
}

// WithMetrics задаёт метрики каталога.
func WithMetrics(m *metrics.CatalogMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		if now != nil {
			opts.Now = now
		}
	}
}

// Service реализует операции над блюдами и категориями.
// Все методы чтения возвращают блюда без бинарных данных фото.
type Service struct {
	foods      domain.FoodRepository
	categories domain.CategoryRepository
	cache      CountCache
	metrics    *metrics.CatalogMetrics
	logger     *log.Entry
	now        func() time.Time
}

// NewService создаёт сервис каталога.
func NewService(foods domain.FoodRepository, categories domain.CategoryRepository, options ...Option) *Service {
	opts := Options{Now: time.Now}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.New().WithField("component", "catalog")
	}

	return &Service{
		foods:      foods,
		categories: categories,
		cache:      opts.CountCache,
		metrics:    opts.Metrics,
		logger:     opts.Logger.WithField("layer", "service"),
		now:        opts.Now,
	}
}

// Create проверяет форму и сохраняет новое блюдо.
func (s *Service) Create(ctx context.Context, input domain.FoodInput) (domain.Food, error) {
	var food domain.Food
	if err := input.Apply(&food); err != nil {
		s.record("create_food", err)
		return domain.Food{}, err
	}

	category, err := s.requireCategory(ctx, food.CategoryID)
	if err != nil {
		s.record("create_food", err)
		return domain.Food{}, err
	}

	now := s.now().UTC()
	food.ID = uuid.NewString()
	food.CreatedAt = now
	food.UpdatedAt = now

	if err := s.foods.Create(ctx, food); err != nil {
		err = storageErr("create food", err)
		s.logger.WithError(err).WithField("food_name", food.Name).Error("failed to create food")
		s.record("create_food", err)
		return domain.Food{}, err
	}
	s.invalidateCount(ctx)
	s.record("create_food", nil)

	food = food.WithoutPhoto()
	food.Category = &category
	return food, nil
}

// Update перезаписывает блюдо. Фото заменяется, только если в форме пришло новое.
func (s *Service) Update(ctx context.Context, id string, input domain.FoodInput) (domain.Food, error) {
	food, err := s.foods.Get(ctx, id)
	if err != nil {
		err = storageErr("get food", err)
		s.record("update_food", err)
		return domain.Food{}, err
	}

	if err := input.Apply(&food); err != nil {
		s.record("update_food", err)
		return domain.Food{}, err
	}

	category, err := s.requireCategory(ctx, food.CategoryID)
	if err != nil {
		s.record("update_food", err)
		return domain.Food{}, err
	}

	food.UpdatedAt = s.now().UTC()
	if err := s.foods.Update(ctx, food); err != nil {
		err = storageErr("update food", err)
		s.logger.WithError(err).WithField("food_id", id).Error("failed to update food")
		s.record("update_food", err)
		return domain.Food{}, err
	}
	s.record("update_food", nil)

	food = food.WithoutPhoto()
	food.Category = &category
	return food, nil
}

// Delete удаляет блюдо. Повторное удаление возвращает ErrFoodNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.foods.Delete(ctx, id); err != nil {
		err = storageErr("delete food", err)
		s.record("delete_food", err)
		return err
	}
	s.invalidateCount(ctx)
	s.record("delete_food", nil)
	return nil
}

// GetAll возвращает последние DefaultLimit блюд с развёрнутой категорией.
func (s *Service) GetAll(ctx context.Context) ([]domain.Food, error) {
	return s.find(ctx, "get_all", domain.FoodQuery{Limit: DefaultLimit}, true)
}

// GetOne возвращает блюдо по slug.
func (s *Service) GetOne(ctx context.Context, slug string) (domain.Food, error) {
	food, err := s.foods.GetBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return domain.Food{}, storageErr("get food by slug", err)
	}
	foods, err := s.resolve(ctx, []domain.Food{food})
	if err != nil {
		return domain.Food{}, err
	}
	return foods[0], nil
}

// GetPhoto возвращает фото блюда. Пустое фото означает, что оно не загружалось.
func (s *Service) GetPhoto(ctx context.Context, id string) (domain.Photo, error) {
	photo, err := s.foods.GetPhoto(ctx, id)
	if err != nil {
		return domain.Photo{}, storageErr("get food photo", err)
	}
	return photo, nil
}

// Count возвращает приблизительное количество блюд, по возможности из кеша.
func (s *Service) Count(ctx context.Context) (int64, error) {
	if s.cache != nil {
		n, hit, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("count cache lookup failed")
			s.recordCache("error")
		case hit:
			s.recordCache("hit")
			return n, nil
		default:
			s.recordCache("miss")
		}
	}

	n, err := s.foods.Count(ctx)
	if err != nil {
		return 0, storageErr("count foods", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, n); err != nil {
			s.logger.WithError(err).Warn("count cache store failed")
		}
	}
	return n, nil
}

// List возвращает страницу из PageSize блюд. Страницы нумеруются с 1.
func (s *Service) List(ctx context.Context, page int) ([]domain.Food, error) {
	if page < 1 {
		page = 1
	}
	if page > math.MaxInt/PageSize {
		return []domain.Food{}, nil
	}
	return s.find(ctx, "list", domain.FoodQuery{Offset: (page - 1) * PageSize, Limit: PageSize}, false)
}

// Search ищет подстроку в имени или описании без учёта регистра.
func (s *Service) Search(ctx context.Context, keyword string) ([]domain.Food, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, domain.NewValidationError("keyword", "Keyword is Required")
	}
	return s.find(ctx, "search", domain.FoodQuery{Keyword: keyword}, false)
}

// Filter отбирает блюда по набору категорий и диапазону цены.
// Пустой набор или пустой диапазон не ограничивают выборку; диапазон задаётся ровно двумя границами.
func (s *Service) Filter(ctx context.Context, categoryIDs []string, bounds []decimal.Decimal) ([]domain.Food, error) {
	query := domain.FoodQuery{}
	for _, id := range categoryIDs {
		if id = strings.TrimSpace(id); id != "" {
			query.CategoryIDs = append(query.CategoryIDs, id)
		}
	}

	switch len(bounds) {
	case 0:
	case 2:
		query.Price = &domain.PriceRange{Min: bounds[0], Max: bounds[1]}
	default:
		return nil, domain.NewValidationError("radio", "Price range must have exactly two bounds")
	}

	return s.find(ctx, "filter", query, false)
}

// Related возвращает до RelatedLimit других блюд той же категории.
func (s *Service) Related(ctx context.Context, foodID, categoryID string) ([]domain.Food, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return nil, domain.NewValidationError("category", "Category is Required")
	}
	return s.find(ctx, "related", domain.FoodQuery{
		CategoryIDs: []string{categoryID},
		ExcludeID:   foodID,
		Limit:       RelatedLimit,
	}, true)
}

func (s *Service) find(ctx context.Context, op string, query domain.FoodQuery, resolve bool) ([]domain.Food, error) {
	foods, err := s.foods.Find(ctx, query)
	if err != nil {
		err = storageErr("find foods", err)
		s.logger.WithError(err).WithField("operation", op).Error("food query failed")
		s.record(op, err)
		return nil, err
	}
	if resolve {
		if foods, err = s.resolve(ctx, foods); err != nil {
			s.record(op, err)
			return nil, err
		}
	}
	s.record(op, nil)
	return foods, nil
}

// resolve подставляет категории в блюда. Каждая категория читается один раз.
func (s *Service) resolve(ctx context.Context, foods []domain.Food) ([]domain.Food, error) {
	seen := make(map[string]*domain.Category)
	for i := range foods {
		id := foods[i].CategoryID
		category, ok := seen[id]
		if !ok {
			found, err := s.categories.Get(ctx, id)
			switch {
			case err == nil:
				category = &found
			case domain.IsNotFound(err):
				s.logger.WithField("category_id", id).Warn("food references missing category")
			default:
				return nil, storageErr("get category", err)
			}
			seen[id] = category
		}
		if category != nil {
			c := *category
			foods[i].Category = &c
		}
	}
	return foods, nil
}

func (s *Service) requireCategory(ctx context.Context, id string) (domain.Category, error) {
	category, err := s.categories.Get(ctx, id)
	if domain.IsNotFound(err) {
		return domain.Category{}, domain.NewValidationError("category", "Category not found")
	}
	if err != nil {
		return domain.Category{}, storageErr("get category", err)
	}
	return category, nil
}

func (s *Service) invalidateCount(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("count cache invalidation failed")
	}
}

func (s *Service) record(op string, err error) {
	if s.metrics != nil {
		s.metrics.RecordOperation(op, err)
	}
}

func (s *Service) recordCache(result string) {
	if s.metrics != nil {
		s.metrics.RecordCountCache(result)
	}
}

// storageErr оставляет доменные ошибки как есть, остальные помечает как ошибки хранилища.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsNotFound(err) || domain.IsValidation(err) || errors.Is(err, domain.ErrStorage) {
		return err
	}
	return domain.StorageError(op, err)
}
