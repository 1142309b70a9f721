package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/domain"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/repo"
)

// deliveryHeader — заголовок с ID доставки от внешней системы.
// Используется как idempotency key: повторная доставка того же
// webhook не создаёт второй run.
const deliveryHeader = "X-Delivery"

// TriggerHook запускает pipeline по webhook.
// POST /api/v1/hooks/{name}
//
// Pipeline находится по имени. Запускается последняя версия.
// Тело запроса (опциональное) несёт inputs для run.
func (h *Handler) TriggerHook(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		BadRequest(w, "pipeline name is required")
		return
	}

	pipeline, err := h.pipelineRepo.GetByName(r.Context(), name)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	if !pipeline.IsActive {
		InvalidState(w, "pipeline is not active")
		return
	}

	latest, err := h.pipelineRepo.GetLatestVersion(r.Context(), pipeline.ID)
	if HandleRepoError(w, h.logger, err, "pipeline has no versions") {
		return
	}

	// Тело опционально: webhook без inputs — валидный триггер
	var req HookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	// Дедупликация повторных доставок
	idempKey := r.Header.Get(deliveryHeader)
	if idempKey != "" {
		existing, err := h.runRepo.GetByIdempotencyKey(r.Context(), pipeline.ID, idempKey)
		if err == nil && existing != nil {
			h.logger.Debug("duplicate webhook delivery",
				"pipeline", pipeline.Name,
				"delivery", idempKey,
				"run_id", existing.ID,
			)
			Success(w, RunFromDomain(*existing))
			return
		}
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			InternalError(w, h.logger, err)
			return
		}
	}

	run := &domain.Run{
		ID:             uuid.New(),
		PipelineID:     pipeline.ID,
		Version:        latest.Version,
		Status:         domain.RunStatusPending,
		Inputs:         req.Inputs,
		IdempotencyKey: idempKey,
		TriggeredBy:    domain.TriggerWebhook,
	}

	if err := h.runRepo.Create(r.Context(), run); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("run triggered by webhook",
		"run_id", run.ID,
		"pipeline", pipeline.Name,
		"version", latest.Version,
		"delivery", idempKey,
	)

	if h.publisher != nil {
		if err := h.publisher.PublishRunPending(r.Context(), run.ID); err != nil {
			h.logger.Warn("failed to publish run.pending", "run_id", run.ID, "error", err)
		}
	}

	Created(w, RunFromDomain(*run))
}
