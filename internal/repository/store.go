package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrStaleVersion is returned when an update lost an optimistic version check.
	ErrStaleVersion = errors.New("record was modified concurrently")
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	PropertyID   *string
	SkillGroupID *string
	RaisedBy     *string
	AssignedTo   *string
	Unassigned   bool
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	SLABreached  *bool
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update persists ticket when its Version still matches and bumps Version.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate reads the ticket and holds its row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// CountOpenByAssignee counts assigned, in-progress and blocked tickets per resolver.
	CountOpenByAssignee(ctx context.Context, propertyID, skillGroupID string) (map[string]int, error)
}

// ActivityRepository stores ticket audit entries.
type ActivityRepository interface {
	Create(ctx context.Context, record *domain.ActivityRecord) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.ActivityRecord, error)
	DeleteByTicket(ctx context.Context, ticketID string) (int64, error)
}

// ResolverStatRepository stores resolver eligibility rows.
type ResolverStatRepository interface {
	Upsert(ctx context.Context, stat *domain.ResolverStat) error
	Get(ctx context.Context, userID, propertyID, skillGroupID string) (*domain.ResolverStat, error)
	ListEligible(ctx context.Context, propertyID, skillGroupID string) ([]domain.ResolverStat, error)
	SetAvailability(ctx context.Context, userID, propertyID, skillGroupID string, available bool) error
	Deactivate(ctx context.Context, userID, propertyID, skillGroupID string) error
	// RecordResolution folds one resolution time into the running average.
	RecordResolution(ctx context.Context, userID, propertyID, skillGroupID string, minutes float64) error
	SetLoad(ctx context.Context, userID, propertyID, skillGroupID string, load int) error
}

// SkillGroupRepository stores routing buckets.
type SkillGroupRepository interface {
	Create(ctx context.Context, group *domain.SkillGroup) error
	GetByID(ctx context.Context, id string) (*domain.SkillGroup, error)
	ListByProperty(ctx context.Context, propertyID string) ([]domain.SkillGroup, error)
}

// NotificationRepository stores per-recipient notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
	DeleteByTicket(ctx context.Context, ticketID string) (int64, error)
}

// PropertyRepository resolves properties to their organization.
type PropertyRepository interface {
	OrganizationOf(ctx context.Context, propertyID string) (string, error)
}

// PropertyFeedRepository appends to the property-level activity feed.
type PropertyFeedRepository interface {
	Append(ctx context.Context, entry *domain.PropertyActivity) error
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]domain.PropertyActivity, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Tickets() TicketRepository
	Activity() ActivityRepository
	ResolverStats() ResolverStatRepository
	SkillGroups() SkillGroupRepository
	Notifications() NotificationRepository
	Properties() PropertyRepository
	PropertyFeed() PropertyFeedRepository
}

// Store is the persistent store. InTx runs fn as one unit of work; any error
// rolls the whole unit back.
type Store interface {
	Repositories
	InTx(ctx context.Context, fn func(Repositories) error) error
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgRepositories struct {
	db DBTX
}

func (r pgRepositories) Tickets() TicketRepository             { return NewTicketRepository(r.db) }
func (r pgRepositories) Activity() ActivityRepository          { return NewActivityRepository(r.db) }
func (r pgRepositories) ResolverStats() ResolverStatRepository { return NewResolverStatRepository(r.db) }
func (r pgRepositories) SkillGroups() SkillGroupRepository     { return NewSkillGroupRepository(r.db) }
func (r pgRepositories) Notifications() NotificationRepository { return NewNotificationRepository(r.db) }
func (r pgRepositories) Properties() PropertyRepository        { return NewPropertyRepository(r.db) }
func (r pgRepositories) PropertyFeed() PropertyFeedRepository  { return NewPropertyFeedRepository(r.db) }

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pgRepositories
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgRepositories: pgRepositories{db: pool}, pool: pool}
}

// InTx runs fn inside a read-committed transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(pgRepositories{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
