// internal/workers/deck/update-ranking-config/handler.go
package updaterankingconfig

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"

	apperrors "petswipe-workers/internal/common/errors"
	"petswipe-workers/internal/common/logger"
	"petswipe-workers/internal/common/metrics"
	"petswipe-workers/internal/deck"
)

const (
	TaskType = "update-ranking-config"
)

// inputSchema guards the admin payload shape before the domain-level
// range checks run.
const inputSchema = `{
	"type": "object",
	"required": ["weights", "caps"],
	"properties": {
		"weights": {
			"type": "object",
			"required": ["type", "age", "breed", "recency", "popularity", "coldstart"],
			"properties": {
				"type":       {"type": "number", "minimum": 0, "maximum": 1},
				"age":        {"type": "number", "minimum": 0, "maximum": 1},
				"breed":      {"type": "number", "minimum": 0, "maximum": 1},
				"recency":    {"type": "number", "minimum": 0, "maximum": 1},
				"popularity": {"type": "number", "minimum": 0, "maximum": 1},
				"coldstart":  {"type": "number", "minimum": 0, "maximum": 1}
			}
		},
		"caps": {
			"type": "object",
			"required": ["maxPerShelter", "maxConsecutiveSameType", "windowSize"],
			"properties": {
				"maxPerShelter":          {"type": "integer", "minimum": 1},
				"maxConsecutiveSameType": {"type": "integer", "minimum": 1},
				"windowSize":             {"type": "integer", "minimum": 1}
			}
		},
		"updatedBy": {"type": "string"}
	}
}`

// SettingsWriter persists validated settings; satisfied by
// deck.SettingsStore.
type SettingsWriter interface {
	Update(ctx context.Context, weights deck.Weights, caps deck.Caps, updatedBy string) (*deck.Settings, error)
}

type Handler struct {
	config       *Config
	settings     SettingsWriter
	schema       *gojsonschema.Schema
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, settings SettingsWriter, log logger.Logger) (*Handler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(inputSchema))
	if err != nil {
		return nil, err
	}
	return &Handler{
		config:       config,
		settings:     settings,
		schema:       schema,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	if err := h.validatePayload(job.Variables); err != nil {
		h.handleFailure(client, job, err)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.handleFailure(client, job, apperrors.NewInvalidInputError(err.Error()))
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

func (h *Handler) validatePayload(variables string) error {
	result, err := h.schema.Validate(gojsonschema.NewStringLoader(variables))
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return apperrors.NewInvalidInputError(strings.Join(errs, "; "))
	}
	return nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	updated, err := h.settings.Update(ctx, input.Weights, input.Caps, input.UpdatedBy)
	if err != nil {
		return nil, err
	}

	h.logger.Info("ranking config updated", map[string]interface{}{
		"version":   updated.Version,
		"updatedBy": input.UpdatedBy,
	})

	return &Output{
		Weights: updated.Weights,
		Caps:    updated.Caps,
		Version: updated.Version,
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
