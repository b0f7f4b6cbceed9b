package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func validInput() FoodInput {
	return FoodInput{
		Name:        "Chocolate Cake",
		Description: "Rich layered cake",
		Price:       "12.50",
		Category:    "cat-1",
		Quantity:    "10",
		Shipping:    "true",
	}
}

func TestFoodInputValidate_FirstFailureWins(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(in *FoodInput)
		field string
	}{
		{name: "no name", mut: func(in *FoodInput) { in.Name = "" }, field: "name"},
		{name: "blank name", mut: func(in *FoodInput) { in.Name = "   " }, field: "name"},
		{name: "no description", mut: func(in *FoodInput) { in.Description = "" }, field: "description"},
		{name: "no price", mut: func(in *FoodInput) { in.Price = "" }, field: "price"},
		{name: "no category", mut: func(in *FoodInput) { in.Category = "" }, field: "category"},
		{name: "no quantity", mut: func(in *FoodInput) { in.Quantity = "" }, field: "quantity"},
		{name: "name and price missing", mut: func(in *FoodInput) { in.Name = ""; in.Price = "" }, field: "name"},
		{name: "photo too large", mut: func(in *FoodInput) {
			in.Photo = &Photo{Data: []byte("x"), ContentType: "image/png", Size: MaxPhotoSize + 1}
		}, field: "photo"},
		{name: "price not a number", mut: func(in *FoodInput) { in.Price = "cheap" }, field: "price"},
		{name: "negative price", mut: func(in *FoodInput) { in.Price = "-1" }, field: "price"},
		{name: "fractional quantity", mut: func(in *FoodInput) { in.Quantity = "1.5" }, field: "quantity"},
		{name: "bad shipping", mut: func(in *FoodInput) { in.Shipping = "maybe" }, field: "shipping"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mut(&in)

			err := in.Validate()
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, vErr.Field)
			}
		})
	}
}

func TestFoodInputValidate_PhotoAtLimit(t *testing.T) {
	in := validInput()
	in.Photo = &Photo{Data: make([]byte, MaxPhotoSize), ContentType: "image/jpeg", Size: MaxPhotoSize}

	if err := in.Validate(); err != nil {
		t.Fatalf("photo of exactly %d bytes should pass, got %v", MaxPhotoSize, err)
	}
}

func TestFoodInputApply(t *testing.T) {
	in := validInput()
	in.Photo = &Photo{Data: []byte{1, 2, 3}, ContentType: "image/png", Size: 3}

	var food Food
	if err := in.Apply(&food); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if food.Slug != "chocolate-cake" {
		t.Fatalf("unexpected slug %q", food.Slug)
	}
	if !food.Price.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected price %s", food.Price)
	}
	if food.Quantity != 10 || !food.Shipping || food.CategoryID != "cat-1" {
		t.Fatalf("unexpected fields: %+v", food)
	}
	if food.Photo == nil || food.Photo.ContentType != "image/png" || len(food.Photo.Data) != 3 {
		t.Fatalf("unexpected photo: %+v", food.Photo)
	}

	// Без нового фото старое сохраняется.
	in.Photo = nil
	in.Name = "Vanilla Cake"
	if err := in.Apply(&food); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if food.Slug != "vanilla-cake" {
		t.Fatalf("slug must be re-derived, got %q", food.Slug)
	}
	if food.Photo == nil {
		t.Fatal("existing photo must be kept")
	}
}

func TestSlugify_Deterministic(t *testing.T) {
	names := []string{"Chocolate Cake", "  Spicy   Ramen Bowl ", "Pad Thai", "Crème Brûlée"}
	for _, name := range names {
		first := Slugify(name)
		second := Slugify(name)
		if first != second {
			t.Fatalf("slug for %q is not deterministic: %q vs %q", name, first, second)
		}
		if first != strings.ToLower(first) || strings.Contains(first, " ") {
			t.Fatalf("slug %q must be lowercase without spaces", first)
		}
	}

	if got := Slugify("Spicy Ramen Bowl"); got != "spicy-ramen-bowl" {
		t.Fatalf("unexpected slug %q", got)
	}
}

func TestPriceRangeContains(t *testing.T) {
	r := PriceRange{Min: decimal.NewFromInt(10), Max: decimal.NewFromInt(20)}

	for _, tc := range []struct {
		price string
		want  bool
	}{
		{"9.99", false},
		{"10", true},
		{"15.5", true},
		{"20", true},
		{"20.01", false},
	} {
		if got := r.Contains(decimal.RequireFromString(tc.price)); got != tc.want {
			t.Errorf("Contains(%s) = %v, want %v", tc.price, got, tc.want)
		}
	}
}
