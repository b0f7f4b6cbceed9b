package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MaxPhotoSize: максимальный размер фото блюда в байтах.
	MaxPhotoSize = 1_000_000
)

// Photo хранит бинарное содержимое фото и его MIME-тип.
type Photo struct {
	Data        []byte
	ContentType string
	// Size: заявленный размер загруженного файла; может превышать len(Data).
	Size int64
}

// Empty сообщает, что фото не загружалось.
func (p *Photo) Empty() bool {
	return p == nil || len(p.Data) == 0
}

// Food: позиция меню, которую можно купить.
type Food struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Price       decimal.Decimal
	CategoryID  string
	// Category заполняется сервисом, когда требуется развернуть ссылку на категорию.
	Category  *Category
	Quantity  int
	Shipping  bool
	Photo     *Photo
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithoutPhoto возвращает копию без бинарных данных фото.
func (f Food) WithoutPhoto() Food {
	f.Photo = nil
	return f
}

// FoodInput: сырые поля формы создания/обновления блюда.
type FoodInput struct {
	Name        string
	Description string
	Price       string
	Category    string
	Quantity    string
	Shipping    string
	Photo       *Photo
}

// foodCheck: именованная проверка поля; failed возвращает true, если правило нарушено.
type foodCheck struct {
	field   string
	message string
	failed  func(in *FoodInput) bool
}

// Порядок важен: наружу уходит первая нарушенная проверка.
var foodChecks = []foodCheck{
	{field: "name", message: "Name is Required", failed: func(in *FoodInput) bool { return blank(in.Name) }},
	{field: "description", message: "Description is Required", failed: func(in *FoodInput) bool { return blank(in.Description) }},
	{field: "price", message: "Price is Required", failed: func(in *FoodInput) bool { return blank(in.Price) }},
	{field: "category", message: "Category is Required", failed: func(in *FoodInput) bool { return blank(in.Category) }},
	{field: "quantity", message: "Quantity is Required", failed: func(in *FoodInput) bool { return blank(in.Quantity) }},
	{field: "photo", message: "photo should be less then 1mb", failed: func(in *FoodInput) bool {
		return in.Photo != nil && (in.Photo.Size > MaxPhotoSize || len(in.Photo.Data) > MaxPhotoSize)
	}},
	{field: "price", message: "Price must be a non-negative number", failed: func(in *FoodInput) bool {
		_, err := parsePrice(in.Price)
		return err != nil
	}},
	{field: "quantity", message: "Quantity must be a non-negative integer", failed: func(in *FoodInput) bool {
		_, err := parseQuantity(in.Quantity)
		return err != nil
	}},
	{field: "shipping", message: "Shipping must be true or false", failed: func(in *FoodInput) bool {
		_, err := parseShipping(in.Shipping)
		return err != nil
	}},
}

// Validate прогоняет цепочку проверок и возвращает первую ошибку.
func (in *FoodInput) Validate() error {
	for _, check := range foodChecks {
		if check.failed(in) {
			return NewValidationError(check.field, check.message)
		}
	}
	return nil
}

// Apply переносит проверенные поля в блюдо и пересчитывает slug.
// Фото заменяется только если в запросе пришло новое.
func (in *FoodInput) Apply(food *Food) error {
	if err := in.Validate(); err != nil {
		return err
	}

	price, _ := parsePrice(in.Price)
	qty, _ := parseQuantity(in.Quantity)
	shipping, _ := parseShipping(in.Shipping)

	food.Name = strings.TrimSpace(in.Name)
	food.Slug = Slugify(food.Name)
	food.Description = strings.TrimSpace(in.Description)
	food.Price = price
	food.CategoryID = strings.TrimSpace(in.Category)
	food.Quantity = qty
	food.Shipping = shipping
	if !in.Photo.Empty() {
		photo := *in.Photo
		photo.Data = append([]byte(nil), in.Photo.Data...)
		photo.Size = int64(len(photo.Data))
		food.Photo = &photo
	}
	return nil
}

// PriceRange: включительный диапазон цены.
type PriceRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Contains проверяет min <= price <= max.
func (r PriceRange) Contains(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(r.Min) && price.LessThanOrEqual(r.Max)
}

// FoodQuery описывает выборку блюд. Пустые поля не ограничивают выборку.
// Результат всегда упорядочен от новых к старым.
type FoodQuery struct {
	CategoryIDs []string
	Price       *PriceRange
	// Keyword ищется без учёта регистра в имени или описании.
	Keyword   string
	ExcludeID string
	Offset    int
	Limit     int
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if price.IsNegative() {
		return decimal.Zero, ErrValidation
	}
	return price, nil
}

func parseQuantity(raw string) (int, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if qty < 0 {
		return 0, ErrValidation
	}
	return qty, nil
}

func parseShipping(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
