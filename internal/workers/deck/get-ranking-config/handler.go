// internal/workers/deck/get-ranking-config/handler.go
package getrankingconfig

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "petswipe-workers/internal/common/errors"
	"petswipe-workers/internal/common/logger"
	"petswipe-workers/internal/common/metrics"
	"petswipe-workers/internal/deck"
)

const (
	TaskType = "get-ranking-config"
)

// SettingsReader provides the active ranking settings; satisfied by
// deck.SettingsStore.
type SettingsReader interface {
	Get(ctx context.Context) (*deck.Settings, error)
}

type Handler struct {
	config       *Config
	settings     SettingsReader
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, settings SettingsReader, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		settings:     settings,
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

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, "INTERNAL_ERROR").Inc()
		h.errorHandler.HandleJobError(context.Background(), client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) execute(ctx context.Context) (*Output, error) {
	settings, err := h.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &Output{
		Weights:   settings.Weights,
		Caps:      settings.Caps,
		Version:   settings.Version,
		UpdatedBy: settings.UpdatedBy,
	}, nil
}

// Execute exposes the business logic for direct testing.
func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	return h.execute(ctx)
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
