package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

const ticketColumns = `id, number, property_id, category, sub_category, skill_group_id, priority, title, description, status,
               raised_by, assigned_to, created_at, updated_at, assigned_at, work_started_at, resolved_at, closed_at,
               sla_deadline, sla_breached, sla_paused, sla_paused_at, sla_paused_total_seconds,
               work_paused, work_pause_reason, photo_before_url, photo_after_url, version`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	ticket.Version = 1
	const query = `
        INSERT INTO tickets (id, property_id, category, sub_category, skill_group_id, priority, title, description, status,
            raised_by, assigned_to, created_at, updated_at, assigned_at, sla_deadline, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING number`
	return r.db.QueryRow(ctx, query,
		ticket.ID,
		ticket.PropertyID,
		ticket.Category,
		ticket.SubCategory,
		ticket.SkillGroupID,
		ticket.Priority,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.RaisedBy,
		ticket.AssignedTo,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.AssignedAt,
		ticket.SLADeadline,
		ticket.Version,
	).Scan(&ticket.Number)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, assigned_to=$4, updated_at=$5,
            assigned_at=$6, work_started_at=$7, resolved_at=$8, closed_at=$9,
            sla_breached=$10, sla_paused=$11, sla_paused_at=$12, sla_paused_total_seconds=$13,
            work_paused=$14, work_pause_reason=$15, photo_before_url=$16, photo_after_url=$17,
            version=version+1
        WHERE id=$18 AND version=$19`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.AssignedTo,
		ticket.UpdatedAt,
		ticket.AssignedAt,
		ticket.WorkStartedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.SLABreached,
		ticket.SLAPaused,
		ticket.SLAPausedAt,
		int64(ticket.SLAPausedTotal/time.Second),
		ticket.WorkPaused,
		ticket.WorkPauseReason,
		ticket.PhotoBeforeURL,
		ticket.PhotoAfterURL,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleVersion
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.PropertyID != nil {
		args = append(args, *filter.PropertyID)
		clauses = append(clauses, fmt.Sprintf("property_id=$%d", len(args)))
	}
	if filter.SkillGroupID != nil {
		args = append(args, *filter.SkillGroupID)
		clauses = append(clauses, fmt.Sprintf("skill_group_id=$%d", len(args)))
	}
	if filter.RaisedBy != nil {
		args = append(args, *filter.RaisedBy)
		clauses = append(clauses, fmt.Sprintf("raised_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assigned_to IS NULL")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SLABreached != nil {
		args = append(args, *filter.SLABreached)
		clauses = append(clauses, fmt.Sprintf("sla_breached=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY number ASC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountOpenByAssignee(ctx context.Context, propertyID, skillGroupID string) (map[string]int, error) {
	const query = `
        SELECT assigned_to, COUNT(*) FROM tickets
        WHERE property_id=$1 AND skill_group_id=$2 AND assigned_to IS NOT NULL
          AND status IN ('assigned','in_progress','blocked')
        GROUP BY assigned_to`
	rows, err := r.db.Query(ctx, query, propertyID, skillGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			userID string
			count  int
		)
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, err
		}
		counts[userID] = count
	}
	return counts, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket        domain.Ticket
		pausedSeconds int64
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.PropertyID,
		&ticket.Category,
		&ticket.SubCategory,
		&ticket.SkillGroupID,
		&ticket.Priority,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.RaisedBy,
		&ticket.AssignedTo,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.AssignedAt,
		&ticket.WorkStartedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.SLADeadline,
		&ticket.SLABreached,
		&ticket.SLAPaused,
		&ticket.SLAPausedAt,
		&pausedSeconds,
		&ticket.WorkPaused,
		&ticket.WorkPauseReason,
		&ticket.PhotoBeforeURL,
		&ticket.PhotoAfterURL,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	ticket.SLAPausedTotal = time.Duration(pausedSeconds) * time.Second
	return &ticket, nil
}
