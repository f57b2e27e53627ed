package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/lib/pq"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository"
)

type notificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Enqueue(ctx context.Context, n *domain.Notification) error {
	logger.EnterMethod("notificationRepository.Enqueue", "kind", n.Kind, "recipients", len(n.Recipients))

	query := `INSERT INTO notifications (kind, connection_id, recipients, subject, body, status, attempts, created_on)
	          VALUES ($1, $2, $3, $4, $5, $6, 0, $7) RETURNING id`
	logger.DatabaseCall("INSERT", "notifications", "kind", n.Kind)

	n.Status = domain.NotificationPending
	n.CreatedOn = time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query, n.Kind, nullableInt32(n.ConnectionID), pq.Array(n.Recipients),
		n.Subject, n.Body, n.Status, n.CreatedOn).Scan(&n.ID)
	logger.DatabaseResult("INSERT", 1, err, "notificationID", n.ID)

	if err != nil {
		logger.ExitMethodWithError("notificationRepository.Enqueue", err, "kind", n.Kind)
	} else {
		logger.ExitMethod("notificationRepository.Enqueue", "notificationID", n.ID)
	}
	return err
}

// ClaimPending sets claimed_until on the oldest unleased pending rows in one
// statement, so sending happens outside any transaction.
func (r *notificationRepository) ClaimPending(ctx context.Context, limit int32, lease time.Duration) ([]domain.Notification, error) {
	query := `UPDATE notifications SET claimed_until = $2
	          WHERE id IN (
	              SELECT id FROM notifications
	              WHERE status = 'PENDING' AND (claimed_until IS NULL OR claimed_until <= $1)
	              ORDER BY created_on, id
	              LIMIT $3
	              FOR UPDATE SKIP LOCKED)
	          RETURNING id, kind, connection_id, recipients, subject, body, status, attempts, COALESCE(last_error, ''), created_on, sent_on`
	now := time.Now().UTC()
	logger.DatabaseCall("UPDATE", "notifications", "limit", limit, "lease", lease)
	rows, err := r.db.QueryContext(ctx, query, now, now.Add(lease), limit)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return nil, err
	}
	defer rows.Close()

	var notes []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var kind, status string
		var connID sql.NullInt32
		var sentOn sql.NullTime
		if err := rows.Scan(&n.ID, &kind, &connID, pq.Array(&n.Recipients), &n.Subject, &n.Body,
			&status, &n.Attempts, &n.LastError, &n.CreatedOn, &sentOn); err != nil {
			return nil, err
		}
		n.Kind = domain.NotificationKind(kind)
		n.Status = domain.NotificationStatus(status)
		n.ConnectionID = int32Ptr(connID)
		n.SentOn = timePtr(sentOn)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RETURNING carries no order.
	slices.SortFunc(notes, func(a, b domain.Notification) int {
		if c := a.CreatedOn.Compare(b.CreatedOn); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	logger.DatabaseResult("UPDATE", int64(len(notes)), nil)
	return notes, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id int32) error {
	query := `UPDATE notifications SET status = 'SENT', attempts = attempts + 1, sent_on = $1, last_error = NULL, claimed_until = NULL WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	return err
}

// MarkFailed records a failed attempt; the row stays pending until maxAttempts is reached.
func (r *notificationRepository) MarkFailed(ctx context.Context, id int32, lastErr string, maxAttempts int32) error {
	query := `UPDATE notifications
	          SET attempts = attempts + 1,
	              last_error = $1,
	              claimed_until = NULL,
	              status = CASE WHEN attempts + 1 >= $2 THEN 'FAILED' ELSE 'PENDING' END
	          WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, lastErr, maxAttempts, id)
	return err
}
