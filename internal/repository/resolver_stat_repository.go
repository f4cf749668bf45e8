package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

const resolverStatColumns = `id, user_id, property_id, skill_group_id, active_flag, available, current_load,
               avg_resolution_minutes, resolved_count, created_at, updated_at`

type resolverStatRepository struct {
	db DBTX
}

// NewResolverStatRepository instantiates the repository.
func NewResolverStatRepository(db DBTX) ResolverStatRepository {
	return &resolverStatRepository{db: db}
}

func (r *resolverStatRepository) Upsert(ctx context.Context, stat *domain.ResolverStat) error {
	if stat.ID == "" {
		stat.ID = uuid.NewString()
	}
	now := time.Now()
	const query = `
        INSERT INTO resolver_stats (id, user_id, property_id, skill_group_id, active_flag, available, current_load,
            avg_resolution_minutes, resolved_count, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
        ON CONFLICT (user_id, property_id, skill_group_id)
        DO UPDATE SET active_flag=EXCLUDED.active_flag, available=EXCLUDED.available, updated_at=EXCLUDED.updated_at
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		stat.ID,
		stat.UserID,
		stat.PropertyID,
		stat.SkillGroupID,
		stat.Active,
		stat.Available,
		stat.CurrentLoad,
		stat.AvgResolutionMinutes,
		stat.ResolvedCount,
		now,
	).Scan(&stat.ID, &stat.CreatedAt, &stat.UpdatedAt)
}

func (r *resolverStatRepository) Get(ctx context.Context, userID, propertyID, skillGroupID string) (*domain.ResolverStat, error) {
	query := `SELECT ` + resolverStatColumns + ` FROM resolver_stats
        WHERE user_id=$1 AND property_id=$2 AND skill_group_id=$3`
	rows, err := r.db.Query(ctx, query, userID, propertyID, skillGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats, err := scanResolverStats(rows)
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, ErrNotFound
	}
	return &stats[0], nil
}

func (r *resolverStatRepository) ListEligible(ctx context.Context, propertyID, skillGroupID string) ([]domain.ResolverStat, error) {
	query := `SELECT ` + resolverStatColumns + ` FROM resolver_stats
        WHERE property_id=$1 AND skill_group_id=$2 AND active_flag AND available
        ORDER BY user_id ASC`
	rows, err := r.db.Query(ctx, query, propertyID, skillGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResolverStats(rows)
}

func (r *resolverStatRepository) SetAvailability(ctx context.Context, userID, propertyID, skillGroupID string, available bool) error {
	const query = `
        UPDATE resolver_stats SET available=$1, updated_at=NOW()
        WHERE user_id=$2 AND property_id=$3 AND skill_group_id=$4`
	return r.execOne(ctx, query, available, userID, propertyID, skillGroupID)
}

func (r *resolverStatRepository) Deactivate(ctx context.Context, userID, propertyID, skillGroupID string) error {
	const query = `
        UPDATE resolver_stats SET active_flag=FALSE, available=FALSE, updated_at=NOW()
        WHERE user_id=$1 AND property_id=$2 AND skill_group_id=$3`
	return r.execOne(ctx, query, userID, propertyID, skillGroupID)
}

func (r *resolverStatRepository) RecordResolution(ctx context.Context, userID, propertyID, skillGroupID string, minutes float64) error {
	const query = `
        UPDATE resolver_stats
        SET avg_resolution_minutes = (avg_resolution_minutes * resolved_count + $1) / (resolved_count + 1),
            resolved_count = resolved_count + 1,
            updated_at = NOW()
        WHERE user_id=$2 AND property_id=$3 AND skill_group_id=$4`
	return r.execOne(ctx, query, minutes, userID, propertyID, skillGroupID)
}

func (r *resolverStatRepository) SetLoad(ctx context.Context, userID, propertyID, skillGroupID string, load int) error {
	const query = `
        UPDATE resolver_stats SET current_load=$1, updated_at=NOW()
        WHERE user_id=$2 AND property_id=$3 AND skill_group_id=$4`
	return r.execOne(ctx, query, load, userID, propertyID, skillGroupID)
}

func (r *resolverStatRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanResolverStats(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]domain.ResolverStat, error) {
	var result []domain.ResolverStat
	for rows.Next() {
		var stat domain.ResolverStat
		if err := rows.Scan(
			&stat.ID,
			&stat.UserID,
			&stat.PropertyID,
			&stat.SkillGroupID,
			&stat.Active,
			&stat.Available,
			&stat.CurrentLoad,
			&stat.AvgResolutionMinutes,
			&stat.ResolvedCount,
			&stat.CreatedAt,
			&stat.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, stat)
	}
	return result, rows.Err()
}
