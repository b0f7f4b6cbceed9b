package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

const (
	// HeaderIdempotencyKey: необязательный ключ повторной отправки оплаты.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay помечает ответ, восстановленный из сохранённой записи.
	HeaderIdempotentReplay = "Idempotent-Replayed"

	idempotencyTTL = 24 * time.Hour
	// idempotencyStoreTimeout ограничивает запись результата после отключения клиента.
	idempotencyStoreTimeout = 5 * time.Second
)

// withIdempotency сохраняет write-ahead запись до вызова run и ответ после него.
// Повтор с тем же ключом и телом получает сохранённый ответ без повторного списания.
func (s *Server) withIdempotency(c *gin.Context, method, scope string, req any, run func() (int, any)) {
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if key == "" || s.idem == nil {
		status, body := run()
		c.JSON(status, body)
		return
	}

	ctx := c.Request.Context()
	hash, err := requestHash(method, scope, req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency request hash")
		writeError(c, http.StatusInternalServerError, "Failed to initialize idempotent request")
		return
	}

	record, err := s.idem.CreateProcessing(ctx, key, hash, time.Now().UTC().Add(idempotencyTTL))
	if err != nil {
		s.replay(c, err, record)
		return
	}

	status, body := run()
	payload, err := json.Marshal(body)
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Error("failed to encode response")
		writeError(c, http.StatusInternalServerError, "Failed to encode response")
		return
	}

	store := s.idem.MarkDone
	if status >= http.StatusBadRequest {
		store = s.idem.MarkFailed
	}
	// Оплата уже проведена: ключ завершается, даже если клиент отключился.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencyStoreTimeout)
	defer cancel()
	if err := store(storeCtx, key, payload, status); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
	c.Data(status, "application/json; charset=utf-8", payload)
}

func (s *Server) replay(c *gin.Context, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		respondError(c, createErr, "Idempotency-Key is already used with a different request")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		if !record.Status.Terminal() {
			respondError(c, createErr, "Request with the same Idempotency-Key is already processing")
			return
		}
		if len(record.ResponseBody) == 0 || record.HTTPStatus == 0 {
			writeError(c, http.StatusInternalServerError, "Stored idempotent response is empty")
			return
		}
		if s.replays != nil {
			s.replays.RecordReplay()
		}
		s.logger.WithFields(log.Fields{
			"idempotency_key": record.Key,
			"status":          record.HTTPStatus,
		}).Info("replaying stored payment response")
		c.Header(HeaderIdempotentReplay, "true")
		c.Data(record.HTTPStatus, "application/json; charset=utf-8", record.ResponseBody)
	case errors.Is(createErr, domain.ErrIdempotencyKeyRequired):
		respondError(c, domain.NewValidationError("idempotency_key", "Idempotency-Key is empty"), "")
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		writeError(c, http.StatusInternalServerError, "Failed to initialize idempotent request")
	}
}

// requestHash связывает ключ с методом, пользователем и телом запроса.
func requestHash(method, scope string, req any) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, len(method)+len(scope)+2+len(data))
	payload = append(payload, method...)
	payload = append(payload, ':')
	payload = append(payload, scope...)
	payload = append(payload, ':')
	payload = append(payload, data...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
