package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

type skillGroupRepository struct {
	db DBTX
}

// NewSkillGroupRepository constructs repository.
func NewSkillGroupRepository(db DBTX) SkillGroupRepository {
	return &skillGroupRepository{db: db}
}

func (r *skillGroupRepository) Create(ctx context.Context, group *domain.SkillGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now()
	group.CreatedAt, group.UpdatedAt = now, now
	const query = `
        INSERT INTO skill_groups (id, property_id, code, name, is_manual_assign, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$6)`
	_, err := r.db.Exec(ctx, query,
		group.ID,
		group.PropertyID,
		group.Code,
		group.Name,
		group.IsManualAssign,
		now,
	)
	return err
}

func (r *skillGroupRepository) GetByID(ctx context.Context, id string) (*domain.SkillGroup, error) {
	const query = `
        SELECT id, property_id, code, name, is_manual_assign, created_at, updated_at
        FROM skill_groups WHERE id=$1`
	var group domain.SkillGroup
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&group.ID,
		&group.PropertyID,
		&group.Code,
		&group.Name,
		&group.IsManualAssign,
		&group.CreatedAt,
		&group.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

func (r *skillGroupRepository) ListByProperty(ctx context.Context, propertyID string) ([]domain.SkillGroup, error) {
	const query = `
        SELECT id, property_id, code, name, is_manual_assign, created_at, updated_at
        FROM skill_groups WHERE property_id=$1 ORDER BY code ASC`
	rows, err := r.db.Query(ctx, query, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SkillGroup
	for rows.Next() {
		var group domain.SkillGroup
		if err := rows.Scan(
			&group.ID,
			&group.PropertyID,
			&group.Code,
			&group.Name,
			&group.IsManualAssign,
			&group.CreatedAt,
			&group.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, group)
	}
	return result, rows.Err()
}
