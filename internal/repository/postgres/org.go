package postgres

import (
	"context"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/repository"
)

type organizationRepository struct {
	db DBTX
}

func NewOrganizationRepository(db DBTX) repository.OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) GetByID(ctx context.Context, id int32) (*domain.Organization, error) {
	o := &domain.Organization{}
	var status string
	query := `SELECT id, name, status FROM organizations WHERE id = $1`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&o.ID, &o.Name, &status); err != nil {
		return nil, notFound(err, "organization", id)
	}
	o.Status = domain.OrganizationStatus(status)
	return o, nil
}
