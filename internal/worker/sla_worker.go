package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdeck/sla-engine/internal/persistence"
	"github.com/opsdeck/sla-engine/internal/service"
)

const runLockKey = "sla:check:run-lock"

// SlaWorker drives the automation batch on a fixed interval. A redis
// lock serializes overlapping runs, whether scheduled or manual; the
// lock TTL bounds how long a crashed run can block the next one.
type SlaWorker struct {
	automation *service.AutomationService
	redis      *persistence.Redis
	logger     *zap.Logger
	interval   time.Duration
	lockTTL    time.Duration
}

// NewSlaWorker constructs the worker.
func NewSlaWorker(automation *service.AutomationService, redis *persistence.Redis, logger *zap.Logger, interval, lockTTL time.Duration) *SlaWorker {
	return &SlaWorker{
		automation: automation,
		redis:      redis,
		logger:     logger,
		interval:   interval,
		lockTTL:    lockTTL,
	}
}

// Start launches the periodic loop and returns immediately. The loop
// stops when ctx is cancelled.
func (w *SlaWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("sla worker stopped")
				return
			case <-ticker.C:
				if err := w.RunOnce(ctx); err != nil {
					w.logger.Error("sla check run failed", zap.Error(err))
				}
			}
		}
	}()
	w.logger.Info("sla worker started", zap.Duration("interval", w.interval))
}

// RunOnce executes a single batch run under the run lock. When another
// run already holds the lock the call is skipped, not queued.
func (w *SlaWorker) RunOnce(ctx context.Context) error {
	token, acquired := w.acquireLock(ctx)
	if !acquired {
		w.logger.Debug("sla check already running, skipping")
		return nil
	}
	defer w.releaseLock(ctx, token)

	return w.automation.RunSlaCheck(ctx)
}

func (w *SlaWorker) acquireLock(ctx context.Context) (string, bool) {
	if w.redis == nil || w.redis.Client == nil {
		return "", true
	}
	token := uuid.NewString()
	ok, err := w.redis.Client.SetNX(ctx, runLockKey, token, w.lockTTL).Result()
	if err != nil {
		w.logger.Warn("run lock unavailable, proceeding without it", zap.Error(err))
		return "", true
	}
	return token, ok
}

func (w *SlaWorker) releaseLock(ctx context.Context, token string) {
	if w.redis == nil || w.redis.Client == nil || token == "" {
		return
	}
	current, err := w.redis.Client.Get(ctx, runLockKey).Result()
	if err != nil || current != token {
		return
	}
	if err := w.redis.Client.Del(ctx, runLockKey).Err(); err != nil {
		w.logger.Warn("failed to release run lock", zap.Error(err))
	}
}
