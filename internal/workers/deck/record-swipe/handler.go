// internal/workers/deck/record-swipe/handler.go
package recordswipe

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "petswipe-workers/internal/common/errors"
	"petswipe-workers/internal/common/logger"
	"petswipe-workers/internal/common/metrics"
)

const (
	TaskType = "record-swipe"
)

// SwipeRecorder persists the decision; satisfied by deck.Store.
type SwipeRecorder interface {
	RecordSwipe(ctx context.Context, userID, petID string, liked bool) error
}

// DeckPruner drops the swiped pet from the user's cached deck; satisfied
// by deck.Cache.
type DeckPruner interface {
	RemoveOne(ctx context.Context, userID, petID string) error
}

type Handler struct {
	config       *Config
	recorder     SwipeRecorder
	pruner       DeckPruner
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, recorder SwipeRecorder, pruner DeckPruner, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		recorder:     recorder,
		pruner:       pruner,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.handleFailure(client, job, apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if input.UserID == "" || input.PetID == "" {
		h.handleFailure(client, job, apperrors.NewInvalidInputError("userId and petId are required"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.handleFailure(client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.recorder.RecordSwipe(ctx, input.UserID, input.PetID, input.Liked); err != nil {
		return nil, err
	}

	// The swipe is already durable; a stale cache entry only means the pet
	// may resurface until the deck expires.
	if err := h.pruner.RemoveOne(ctx, input.UserID, input.PetID); err != nil {
		h.logger.Warn("failed to prune swiped pet from cached deck", map[string]interface{}{
			"userId": input.UserID,
			"petId":  input.PetID,
			"error":  err.Error(),
		})
	}

	h.logger.Info("swipe recorded", map[string]interface{}{
		"userId": input.UserID,
		"petId":  input.PetID,
		"liked":  input.Liked,
	})

	return &Output{
		Recorded: true,
		UserID:   input.UserID,
		PetID:    input.PetID,
		Liked:    input.Liked,
	}, nil
}

// Execute exposes the business logic for direct testing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) handleFailure(client worker.JobClient, job entities.Job, err error) {
	code := "INTERNAL_ERROR"
	if stdErr, ok := err.(*apperrors.StandardError); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}
