package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

// foodColumns: колонки блюда без бинарных данных фото.
const foodColumns = `id, name, slug, description, price, category_id, quantity, shipping, created_at, updated_at`

type foodRepository struct {
	db *sql.DB
}

// NewFoodRepository создаёт PostgreSQL-реализацию FoodRepository.
func NewFoodRepository(store *Store) domain.FoodRepository {
	return &foodRepository{db: store.DB()}
}

func (r *foodRepository) Create(ctx context.Context, food domain.Food) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		photo       []byte
		contentType sql.NullString
	)
	if !food.Photo.Empty() {
		photo = food.Photo.Data
		contentType = sql.NullString{String: food.Photo.ContentType, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO foods (
			id, name, slug, description, price, category_id, quantity, shipping,
			photo, photo_content_type, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		food.ID, food.Name, food.Slug, food.Description, food.Price, food.CategoryID,
		food.Quantity, food.Shipping, photo, contentType, food.CreatedAt, food.UpdatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrFoodExists
		case isForeignKeyViolation(err):
			return domain.ErrCategoryNotFound
		}
		return fmt.Errorf("insert food: %w", err)
	}
	return nil
}

func (r *foodRepository) Update(ctx context.Context, food domain.Food) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		UPDATE foods
		SET name = $2,
		    slug = $3,
		    description = $4,
		    price = $5,
		    category_id = $6,
		    quantity = $7,
		    shipping = $8,
		    updated_at = $9`
	args := []any{
		food.ID, food.Name, food.Slug, food.Description, food.Price,
		food.CategoryID, food.Quantity, food.Shipping, food.UpdatedAt,
	}
	if !food.Photo.Empty() {
		query += `,
		    photo = $10,
		    photo_content_type = $11`
		args = append(args, food.Photo.Data, food.Photo.ContentType)
	}
	query += `
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrCategoryNotFound
		}
		return fmt.Errorf("update food: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrFoodNotFound
	}
	return nil
}

func (r *foodRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM foods WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete food: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrFoodNotFound
	}
	return nil
}

func (r *foodRepository) Get(ctx context.Context, id string) (domain.Food, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+foodColumns+` FROM foods WHERE id = $1`, id)
	return scanFood(row)
}

func (r *foodRepository) GetBySlug(ctx context.Context, slug string) (domain.Food, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+foodColumns+`
		FROM foods
		WHERE slug = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, slug)
	return scanFood(row)
}

func (r *foodRepository) GetPhoto(ctx context.Context, id string) (domain.Photo, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		data        []byte
		contentType sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT photo, photo_content_type FROM foods WHERE id = $1
	`, id).Scan(&data, &contentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Photo{}, domain.ErrFoodNotFound
		}
		return domain.Photo{}, fmt.Errorf("select food photo: %w", err)
	}
	if len(data) == 0 {
		return domain.Photo{}, nil
	}
	return domain.Photo{Data: data, ContentType: contentType.String, Size: int64(len(data))}, nil
}

func (r *foodRepository) Find(ctx context.Context, query domain.FoodQuery) ([]domain.Food, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	where, args := buildFoodFilter(query)
	stmt := `SELECT ` + foodColumns + ` FROM foods` + where + ` ORDER BY created_at DESC, id DESC`
	if query.Limit > 0 {
		args = append(args, query.Limit)
		stmt += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if query.Offset > 0 {
		args = append(args, query.Offset)
		stmt += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("find foods: %w", err)
	}
	defer rows.Close()

	foods := make([]domain.Food, 0)
	for rows.Next() {
		food, err := scanFood(rows)
		if err != nil {
			return nil, err
		}
		foods = append(foods, food)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate food rows: %w", err)
	}
	return foods, nil
}

// Count возвращает оценку планировщика; для неанализированной таблицы считает точно.
func (r *foodRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var estimate float64
	if err := r.db.QueryRowContext(ctx, `
		SELECT reltuples FROM pg_class WHERE oid = 'foods'::regclass
	`).Scan(&estimate); err != nil {
		return 0, fmt.Errorf("estimate food count: %w", err)
	}
	if estimate > 0 {
		return int64(estimate), nil
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM foods`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count foods: %w", err)
	}
	return count, nil
}

// buildFoodFilter собирает WHERE по непустым полям запроса.
func buildFoodFilter(query domain.FoodQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(query.CategoryIDs) > 0 {
		conds = append(conds, "category_id = ANY("+arg(query.CategoryIDs)+")")
	}
	if query.Price != nil {
		conds = append(conds, "price >= "+arg(query.Price.Min), "price <= "+arg(query.Price.Max))
	}
	if kw := strings.TrimSpace(query.Keyword); kw != "" {
		p := arg("%" + escapeLike(kw) + "%")
		conds = append(conds, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if query.ExcludeID != "" {
		conds = append(conds, "id <> "+arg(query.ExcludeID))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFood(row rowScanner) (domain.Food, error) {
	var food domain.Food
	err := row.Scan(
		&food.ID, &food.Name, &food.Slug, &food.Description, &food.Price,
		&food.CategoryID, &food.Quantity, &food.Shipping, &food.CreatedAt, &food.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Food{}, domain.ErrFoodNotFound
		}
		return domain.Food{}, fmt.Errorf("scan food: %w", err)
	}
	food.CreatedAt = food.CreatedAt.In(time.UTC)
	food.UpdatedAt = food.UpdatedAt.In(time.UTC)
	return food, nil
}

var _ domain.FoodRepository = (*foodRepository)(nil)
