package domain

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Category: справочник категорий блюд.
type Category struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

// Slugify строит детерминированный slug: нижний регистр, слова через дефис.
func Slugify(name string) string {
	return slug.Make(strings.TrimSpace(name))
}

// Validate проверяет обязательные поля категории.
func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", "Name is Required")
	}
	return nil
}
