package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
	"github.com/vladislavdragonenkov/foodstore/internal/metrics"
	"github.com/vladislavdragonenkov/foodstore/internal/service/checkout"
)

const (
	defaultFoodPrefix     = "/api/v1/food"
	defaultCategoryPrefix = "/api/v1/category"
	defaultAuthPrefix     = "/api/v1/auth"

	maxMultipartMemory = 8 << 20
)

// Catalog: операции каталога, которые нужны HTTP-слою.
type Catalog interface {
	Create(ctx context.Context, input domain.FoodInput) (domain.Food, error)
	Update(ctx context.Context, id string, input domain.FoodInput) (domain.Food, error)
	Delete(ctx context.Context, id string) error
	GetAll(ctx context.Context) ([]domain.Food, error)
	GetOne(ctx context.Context, slug string) (domain.Food, error)
	GetPhoto(ctx context.Context, id string) (domain.Photo, error)
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context, page int) ([]domain.Food, error)
	Search(ctx context.Context, keyword string) ([]domain.Food, error)
	Filter(ctx context.Context, categoryIDs []string, bounds []decimal.Decimal) ([]domain.Food, error)
	Related(ctx context.Context, foodID, categoryID string) ([]domain.Food, error)
	ListItemsByCategory(ctx context.Context, slug string) (domain.Category, []domain.Food, error)
	CreateCategory(ctx context.Context, name string) (domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// Checkout: операции оплаты и истории заказов.
type Checkout interface {
	ClientToken(ctx context.Context) (string, error)
	SubmitPayment(ctx context.Context, req checkout.PaymentRequest) (domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
}

// Config задаёт префиксы маршрутов и лимит запросов на оплату.
// Пустой префикс монтирует маршруты в корень.
type Config struct {
	FoodPrefix     string
	CategoryPrefix string
	AuthPrefix     string
	// PaymentRPS и PaymentBurst ограничивают POST /braintree/payment; 0 отключает лимит.
	PaymentRPS   float64
	PaymentBurst int
}

// DefaultConfig возвращает префиксы, которые ожидает клиент витрины.
func DefaultConfig() Config {
	return Config{
		FoodPrefix:     defaultFoodPrefix,
		CategoryPrefix: defaultCategoryPrefix,
		AuthPrefix:     defaultAuthPrefix,
		PaymentRPS:     5,
		PaymentBurst:   10,
	}
}

// Deps: зависимости HTTP API.
type Deps struct {
	Catalog     Catalog
	Checkout    Checkout
	Idempotency domain.IdempotencyRepository
	// ReplayMetrics учитывает ответы, повторённые по Idempotency-Key.
	ReplayMetrics *metrics.CheckoutMetrics
	Metrics       *metrics.HTTPMetrics
	Logger        *log.Entry
}

// Server связывает маршруты gin с сервисами.
type Server struct {
	catalog  Catalog
	checkout Checkout
	idem     domain.IdempotencyRepository
	replays  *metrics.CheckoutMetrics
	logger   *log.Entry
}

// NewRouter собирает gin.Engine со всеми маршрутами API.
func NewRouter(cfg Config, deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "httpapi")
	}
	logger = logger.WithField("layer", "http")

	s := &Server{
		catalog:  deps.Catalog,
		checkout: deps.Checkout,
		idem:     deps.Idempotency,
		replays:  deps.ReplayMetrics,
		logger:   logger,
	}

	router := gin.New()
	router.MaxMultipartMemory = maxMultipartMemory
	router.Use(requestID(), recovery(logger), accessLog(logger), observe(deps.Metrics), identity())

	food := router.Group(normalizePrefix(cfg.FoodPrefix))
	food.POST("/create-food", RequireSignIn(), RequireAdmin(), s.createFood)
	food.PUT("/update-food/:id", RequireSignIn(), RequireAdmin(), s.updateFood)
	food.GET("/get-food", s.getFoods)
	food.GET("/get-food/:slug", s.getFood)
	food.GET("/food-photo/:id", s.foodPhoto)
	food.DELETE("/delete-food/:id", RequireSignIn(), RequireAdmin(), s.deleteFood)
	food.POST("/food-filters", s.filterFoods)
	food.GET("/food-count", s.foodCount)
	food.GET("/food-list/:page", s.foodList)
	food.GET("/search/:keyword", s.searchFoods)
	food.GET("/related-food/:id/:categoryId", s.relatedFoods)
	food.GET("/food-category/:slug", s.foodsByCategory)
	food.GET("/braintree/token", s.clientToken)
	food.POST("/braintree/payment", RequireSignIn(), rateLimit(cfg.PaymentRPS, cfg.PaymentBurst), s.submitPayment)

	category := router.Group(normalizePrefix(cfg.CategoryPrefix))
	category.POST("/create-category", RequireSignIn(), RequireAdmin(), s.createCategory)
	category.GET("/get-category", s.listCategories)

	auth := router.Group(normalizePrefix(cfg.AuthPrefix))
	auth.GET("/orders", RequireSignIn(), s.listOrders)

	router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "Route not found")
	})

	return router
}

// Handler оборачивает router в otelhttp, чтобы каждый запрос получал серверный span.
func Handler(router http.Handler) http.Handler {
	return otelhttp.NewHandler(router, "foodstore-http")
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || prefix == "/" {
		return "/"
	}
	return "/" + strings.Trim(prefix, "/")
}

// newLimiter возвращает nil, если лимит отключён.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
