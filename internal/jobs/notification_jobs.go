package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository"
	"melange-connection-backend/internal/telemetry"
)

// DispatchNotifications delivers one batch of pending outbox rows.
func (jr *JobRunner) DispatchNotifications() {
	jr.runWithRecovery("DispatchNotifications", func() {
		sent, failed, err := jr.dispatchBatch(context.Background())
		if err != nil {
			logger.Error("Failed to dispatch notifications", "sent", sent, "failed", failed, "error", err)
			return
		}
		logger.Info("Notifications dispatched", "sent", sent, "failed", failed)
	})
}

// dispatchBatch leases a batch of pending rows, then sends and records each
// row on its own. Delivery is at least once: when recording a sent row fails,
// the row is sent again once its lease runs out.
func (jr *JobRunner) dispatchBatch(ctx context.Context) (sent, failed int, err error) {
	cfg := jr.config.Dispatcher

	var pending []domain.Notification
	err = jr.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		claimed, err := repos.Notifications.ClaimPending(ctx, int32(cfg.BatchSize), time.Duration(cfg.LeaseSeconds)*time.Second)
		if err != nil {
			return err
		}
		pending = claimed
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	var errs []error
	for _, n := range pending {
		sendErr := jr.services.Email.Send(ctx, n.Recipients, n.Subject, n.Body)
		if sendErr != nil {
			logger.WarnContext(ctx, "Failed to send notification",
				"notification_id", n.ID,
				"kind", n.Kind,
				"attempt", n.Attempts+1,
				"error", sendErr)
			failed++
		} else {
			sent++
			logger.Debug("Sent notification", "notification_id", n.ID, "kind", n.Kind)
		}

		markErr := jr.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
			if sendErr != nil {
				return repos.Notifications.MarkFailed(ctx, n.ID, sendErr.Error(), int32(cfg.MaxAttempts))
			}
			return repos.Notifications.MarkSent(ctx, n.ID)
		})
		if markErr != nil {
			errs = append(errs, fmt.Errorf("failed to record delivery of notification %d: %w", n.ID, markErr))
		}
	}

	telemetry.NotificationsDispatchedTotal.WithLabelValues("sent").Add(float64(sent))
	telemetry.NotificationsDispatchedTotal.WithLabelValues("failed").Add(float64(failed))
	return sent, failed, errors.Join(errs...)
}
