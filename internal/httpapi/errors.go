package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

// errorResponse: единый формат ответа об ошибке.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
}

// statusFor сопоставляет вид ошибки со статусом ответа.
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsIdempotencyConflict(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorBody строит статус и тело ответа для ошибки сервиса.
// Детали внутренних ошибок наружу не отдаются.
func errorBody(err error, message string) (int, errorResponse) {
	status := statusFor(err)
	body := errorResponse{Success: false, Message: message, Error: message}

	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		body.Message = vErr.Message
		body.Error = vErr.Message
		body.Field = vErr.Field
	case errors.Is(err, domain.ErrPaymentDeclined):
		body.Error = "payment declined"
	case status < http.StatusInternalServerError:
		body.Error = err.Error()
	}
	return status, body
}

// respondError пишет ответ об ошибке сервиса и прикрепляет её к запросу для access-лога.
func respondError(c *gin.Context, err error, message string) {
	_ = c.Error(err)
	status, body := errorBody(err, message)
	c.JSON(status, body)
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, errorResponse{Success: false, Message: message, Error: message})
}
