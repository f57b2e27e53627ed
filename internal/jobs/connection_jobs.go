package jobs

import (
	"context"

	"melange-connection-backend/internal/logger"
)

// ExpireAnonymousConnections deletes emailed invitations that expired unused
func (jr *JobRunner) ExpireAnonymousConnections() {
	jr.runWithRecovery("ExpireAnonymousConnections", func() {
		count, err := jr.services.Anonymous.PurgeExpired(context.Background())
		if err != nil {
			logger.Error("Failed to expire anonymous connections", "error", err)
			return
		}
		logger.Info("Anonymous connections expired", "count", count)
	})
}
