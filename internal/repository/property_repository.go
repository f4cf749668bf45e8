package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

type propertyRepository struct {
	db DBTX
}

// NewPropertyRepository reads the property directory maintained by the admin flows.
func NewPropertyRepository(db DBTX) PropertyRepository {
	return &propertyRepository{db: db}
}

func (r *propertyRepository) OrganizationOf(ctx context.Context, propertyID string) (string, error) {
	var orgID string
	if err := r.db.QueryRow(ctx, `SELECT organization_id FROM properties WHERE id=$1`, propertyID).Scan(&orgID); err != nil {
		return "", notFound(err)
	}
	return orgID, nil
}

type propertyFeedRepository struct {
	db DBTX
}

// NewPropertyFeedRepository builds repository.
func NewPropertyFeedRepository(db DBTX) PropertyFeedRepository {
	return &propertyFeedRepository{db: db}
}

func (r *propertyFeedRepository) Append(ctx context.Context, entry *domain.PropertyActivity) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	const query = `
        INSERT INTO property_activity (id, organization_id, property_id, actor_id, action, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.OrganizationID,
		entry.PropertyID,
		entry.ActorID,
		entry.Action,
		entry.Details,
		entry.CreatedAt,
	)
	return err
}

func (r *propertyFeedRepository) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]domain.PropertyActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, organization_id, property_id, actor_id, action, details, created_at
        FROM property_activity WHERE organization_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, organizationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PropertyActivity
	for rows.Next() {
		var entry domain.PropertyActivity
		if err := rows.Scan(
			&entry.ID,
			&entry.OrganizationID,
			&entry.PropertyID,
			&entry.ActorID,
			&entry.Action,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
