// internal/workers/deck/generate-deck/handler.go
package generatedeck

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "petswipe-workers/internal/common/errors"
	"petswipe-workers/internal/common/logger"
	"petswipe-workers/internal/common/metrics"
	"petswipe-workers/internal/deck"
)

const (
	TaskType = "generate-deck"
)

// DeckGenerator runs the generation pipeline; satisfied by deck.Orchestrator.
type DeckGenerator interface {
	GenerateDeck(ctx context.Context, req deck.GenerateRequest) (*deck.Deck, error)
}

type Handler struct {
	config       *Config
	generator    DeckGenerator
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, generator DeckGenerator, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		generator:    generator,
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
	if input.UserID == "" {
		h.handleFailure(client, job, apperrors.NewInvalidInputError("userId is required"))
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
	result, err := h.generator.GenerateDeck(ctx, deck.GenerateRequest{
		UserID: input.UserID,
		Limit:  input.Limit,
		Filters: deck.Filters{
			Type:   input.PetType,
			MinAge: input.MinAgeMonths,
			MaxAge: input.MaxAgeMonths,
		},
		Strategy:     input.StrategyTag,
		ForceRefresh: input.ForceRefresh,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("deck generated", map[string]interface{}{
		"userId":          input.UserID,
		"deckSize":        len(result.Items),
		"totalCandidates": result.Meta.TotalCandidates,
		"cacheHit":        result.Meta.CacheHit,
	})

	return &Output{Items: result.Items, Meta: result.Meta}, nil
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
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode(err)).Inc()
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}

func errorCode(err error) string {
	if stdErr, ok := err.(*apperrors.StandardError); ok {
		return string(stdErr.Code)
	}
	return "INTERNAL_ERROR"
}
