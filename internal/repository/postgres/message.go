package postgres

import (
	"context"
	"database/sql"
	"time"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository"
)

type connectionMessageRepository struct {
	db DBTX
}

func NewConnectionMessageRepository(db DBTX) repository.ConnectionMessageRepository {
	return &connectionMessageRepository{db: db}
}

func (r *connectionMessageRepository) Create(ctx context.Context, m *domain.ConnectionMessage) error {
	query := `INSERT INTO connection_messages (connection_id, author_id, content, is_private, is_auto_generated, created_on)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	logger.DatabaseCall("INSERT", "connection_messages", "connectionID", m.ConnectionID, "autoGenerated", m.IsAutoGenerated)

	m.CreatedOn = time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query, m.ConnectionID, nullableInt32(m.AuthorID), m.Content,
		m.IsPrivate, m.IsAutoGenerated, m.CreatedOn).Scan(&m.ID)
	logger.DatabaseResult("INSERT", 1, err, "messageID", m.ID)
	return err
}

func (r *connectionMessageRepository) ListByConnection(ctx context.Context, connectionID int32, includePrivate bool, limit int32) ([]domain.ConnectionMessage, error) {
	query := `SELECT id, connection_id, author_id, content, is_private, is_auto_generated, created_on
	          FROM connection_messages
	          WHERE connection_id = $1 AND ($2 OR NOT is_private)
	          ORDER BY created_on, id LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, connectionID, includePrivate, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.ConnectionMessage
	for rows.Next() {
		var m domain.ConnectionMessage
		var author sql.NullInt32
		if err := rows.Scan(&m.ID, &m.ConnectionID, &author, &m.Content, &m.IsPrivate, &m.IsAutoGenerated, &m.CreatedOn); err != nil {
			return nil, err
		}
		m.AuthorID = int32Ptr(author)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
