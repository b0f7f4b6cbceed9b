package domain

import (
	"errors"
	"fmt"
)

// Базовые виды ошибок. HTTP-слой сопоставляет их со статусами ответа.
var (
	// ErrValidation: некорректные входные данные запроса.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound: запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrStorage: операция с хранилищем завершилась ошибкой.
	ErrStorage = errors.New("storage failure")
	// ErrGateway: платёжный шлюз отклонил запрос или недоступен.
	ErrGateway = errors.New("payment gateway failure")
)

var (
	// ErrFoodNotFound возвращается, если блюдо не найдено.
	ErrFoodNotFound = fmt.Errorf("food %w", ErrNotFound)
	// ErrCategoryNotFound возвращается, если категория не найдена.
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrOutboxMessageNotFound: сообщение outbox с таким ID не сохранялось.
	ErrOutboxMessageNotFound = fmt.Errorf("outbox message %w", ErrNotFound)
	// ErrFoodExists: блюдо с таким ID уже сохранено.
	ErrFoodExists = errors.New("food already exists")
	// ErrCategoryExists: категория с таким именем уже существует.
	ErrCategoryExists = errors.New("category already exists")
	// ErrOrderExists: заказ с таким ID уже сохранён.
	ErrOrderExists = errors.New("order already exists")

	// ErrPaymentDeclined: платёж отклонён провайдером (бизнес-ошибка).
	ErrPaymentDeclined = fmt.Errorf("payment declined: %w", ErrGateway)
	// ErrPaymentUnavailable: провайдер недоступен или ответил ошибкой транспорта.
	ErrPaymentUnavailable = fmt.Errorf("payment provider unavailable: %w", ErrGateway)
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ValidationError описывает первое нарушенное правило валидации.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError создаёт ошибку валидации для поля.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StorageError оборачивает ошибку хранилища, сохраняя исходную причину.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// IsNotFound проверяет, что ошибка означает отсутствие записи.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation проверяет, что ошибка вызвана некорректным вводом.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
