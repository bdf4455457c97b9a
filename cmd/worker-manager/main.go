// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"petswipe-workers/internal/common/aws"
	"petswipe-workers/internal/common/config"
	"petswipe-workers/internal/common/database"
	"petswipe-workers/internal/common/logger"
	"petswipe-workers/internal/common/observability"
	"petswipe-workers/internal/deck"

	gd "petswipe-workers/internal/workers/deck/generate-deck"
	grc "petswipe-workers/internal/workers/deck/get-ranking-config"
	rs "petswipe-workers/internal/workers/deck/record-swipe"
	urc "petswipe-workers/internal/workers/deck/update-ranking-config"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Audit Fan-out (optional) ---
	var publisher deck.EventPublisher
	if cfg.Audit.SNSTopicARN != "" {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Audit.AWSRegion)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		publisher = snsClient
		zapLog.Info("SNS audit fan-out enabled", zap.String("topic", cfg.Audit.SNSTopicARN))
	}

	// --- Build Deck Engine ---
	store := deck.NewStore(pg.DB, log)
	cache := deck.NewCache(redis.Client, log)
	settings := deck.NewSettingsStore(pg.DB, log)
	audit := deck.NewAuditSink(pg.DB, publisher, cfg.Audit.SNSTopicARN, log)

	orchOpts := []deck.Option{}
	if cfg.Deck.CacheTTLSeconds > 0 {
		orchOpts = append(orchOpts, deck.WithCacheTTL(time.Duration(cfg.Deck.CacheTTLSeconds)*time.Second))
	}
	if cfg.Deck.TierSize > 0 {
		orchOpts = append(orchOpts, deck.WithTierSize(cfg.Deck.TierSize))
	}
	if cfg.Deck.MinScore > 0 {
		orchOpts = append(orchOpts, deck.WithMinScore(cfg.Deck.MinScore))
	}
	orchestrator := deck.NewOrchestrator(store, cache, settings, audit, log, orchOpts...)

	// --- Register Workers ---
	if cfg.Workers[gd.TaskType].Enabled {
		handler := gd.NewHandler(
			&gd.Config{
				Timeout: time.Duration(cfg.Workers[gd.TaskType].Timeout) * time.Millisecond,
			},
			orchestrator, log,
		)
		startWorker(zeebeClient, gd.TaskType, cfg.Workers[gd.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[rs.TaskType].Enabled {
		handler := rs.NewHandler(
			&rs.Config{
				Timeout: time.Duration(cfg.Workers[rs.TaskType].Timeout) * time.Millisecond,
			},
			store, cache, log,
		)
		startWorker(zeebeClient, rs.TaskType, cfg.Workers[rs.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[grc.TaskType].Enabled {
		handler := grc.NewHandler(
			&grc.Config{
				Timeout: time.Duration(cfg.Workers[grc.TaskType].Timeout) * time.Millisecond,
			},
			settings, log,
		)
		startWorker(zeebeClient, grc.TaskType, cfg.Workers[grc.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[urc.TaskType].Enabled {
		handler, err := urc.NewHandler(
			&urc.Config{
				Timeout: time.Duration(cfg.Workers[urc.TaskType].Timeout) * time.Millisecond,
			},
			settings, log,
		)
		if err != nil {
			zapLog.Fatal("failed to create update-ranking-config handler", zap.Error(err))
		}
		startWorker(zeebeClient, urc.TaskType, cfg.Workers[urc.TaskType], handler.Handle, zapLog)
	}

	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
