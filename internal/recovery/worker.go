// Package recovery implements the Slot Recovery Worker (§4.5): a periodic
// sweep that resets or retires stuck/errored pool slots, grounded on the
// reference layout's SessionCleaner ticker+stopCh loop.
package recovery

import (
	"context"
	"log/slog"
	"time"

	"botfleet/internal/config"
	"botfleet/internal/monitor"
	"botfleet/internal/orchestrator"
	"botfleet/internal/storage"
)

type Worker struct {
	slots   *storage.SlotRepository
	adapter orchestrator.Adapter
	cfg     config.RecoveryConfig
	logger  *slog.Logger
	stopCh  chan struct{}
}

func NewWorker(slots *storage.SlotRepository, adapter orchestrator.Adapter, cfg config.RecoveryConfig, logger *slog.Logger) *Worker {
	return &Worker{
		slots:   slots,
		adapter: adapter,
		cfg:     cfg,
		logger:  logger.With("component", "recovery"),
		stopCh:  make(chan struct{}),
	}
}

// Start runs the 5-minute sweep loop; call in its own goroutine.
func (w *Worker) Start() {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("slot recovery worker started", "interval", w.cfg.Interval)

	for {
		select {
		case <-w.stopCh:
			w.logger.Info("slot recovery worker stopped")
			return
		case <-ticker.C:
			w.Tick(context.Background())
		}
	}
}

func (w *Worker) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

// Tick implements §4.5's sweep algorithm once. Exported so it can be
// driven either by Start's internal ticker (local-development mode) or by
// an external scheduler — the composition root wires it as an asynq
// periodic task in production (§9 "reliable background job processing").
func (w *Worker) Tick(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, 60*time.Second)
	defer cancel()

	slots, err := w.slots.ForRecovery(ctx, w.cfg.StuckDeployThreshold)
	if err != nil {
		w.logger.Error("select slots for recovery failed", "error", err)
		return
	}

	var recovered, failed, deleted int
	for _, slot := range slots {
		if slot.RecoveryAttempts >= w.cfg.MaxAttempts {
			if err := w.adapter.Delete(ctx, slot.ContainerServiceID); err != nil {
				w.logger.Warn("adapter delete during permanent removal failed", "slot_id", slot.ID, "error", err)
			}
			if err := w.slots.Delete(ctx, slot.ID); err != nil {
				w.logger.Error("delete slot row failed", "slot_id", slot.ID, "error", err)
				continue
			}
			deleted++
			monitor.RecoverySweepDeletedTotal.Inc()
			continue
		}

		if err := w.adapter.Stop(ctx, slot.ContainerServiceID); err != nil {
			if _, incErr := w.slots.IncrementRecoveryAttempts(ctx, slot.ID); incErr != nil {
				w.logger.Error("increment recovery attempts failed", "slot_id", slot.ID, "error", incErr)
			}
			failed++
			monitor.RecoverySweepFailedTotal.Inc()
			continue
		}

		if err := w.slots.ResetAfterRecovery(ctx, slot.ID); err != nil {
			w.logger.Error("reset slot after recovery failed", "slot_id", slot.ID, "error", err)
			continue
		}
		recovered++
		monitor.RecoverySweepRecoveredTotal.Inc()
	}

	w.logger.Info("recovery sweep complete", "recovered", recovered, "failed", failed, "deleted", deleted)
}
