package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "hdbackend/db/tx"
	"hdbackend/models"
)

type PostgresWorklogsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for the worklog entries table
var worklogsColumns = []string{
	"id",
	"agent_id",
	"ticket_id",
	"started_at",
	"ended_at",
	"source",
	"description",
	"created_at",
	"updated_at",
}

func NewPostgresWorklogsRepository(db *sqlx.DB, schema string) *PostgresWorklogsRepository {
	return &PostgresWorklogsRepository{db: db, schema: schema}
}

// GetActiveEntry returns the single open (ended_at IS NULL) entry for the
// (agent, ticket) pair, if one exists. With forUpdate set the row is locked
// for the remainder of the surrounding transaction.
func (r *PostgresWorklogsRepository) GetActiveEntry(
	ctx context.Context,
	agentID, ticketID string,
	forUpdate bool,
) (mo.Option[*models.WorklogEntry], error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(worklogsColumns, ", ")
	forUpdateClause := ""
	if forUpdate {
		forUpdateClause = " FOR UPDATE"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.worklog_entries
		WHERE agent_id = $1 AND ticket_id = $2 AND ended_at IS NULL%s`,
		columnsStr, r.schema, forUpdateClause)

	entry := &models.WorklogEntry{}
	err := db.QueryRowxContext(ctx, query, agentID, ticketID).StructScan(entry)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return mo.None[*models.WorklogEntry](), nil
		}
		return mo.None[*models.WorklogEntry](), fmt.Errorf("failed to get active worklog entry: %w", err)
	}

	return mo.Some(entry), nil
}

func (r *PostgresWorklogsRepository) CreateEntry(ctx context.Context, entry *models.WorklogEntry) error {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(worklogsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.worklog_entries (id, agent_id, ticket_id, started_at, ended_at, source, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING %s`, r.schema, columnsStr)

	err := db.QueryRowxContext(
		ctx,
		query,
		entry.ID,
		entry.AgentID,
		entry.TicketID,
		entry.StartedAt,
		entry.EndedAt,
		entry.Source,
		entry.Description,
	).StructScan(entry)
	if err != nil {
		return fmt.Errorf("failed to create worklog entry: %w", err)
	}

	return nil
}

// IsDuplicateActiveEntryError reports whether an insert collided with the
// partial unique index that enforces one open entry per (agent, ticket).
func IsDuplicateActiveEntryError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}

// CloseActiveEntry stamps ended_at on the open entry for the pair, if any.
// Returns None when no entry was open, which callers treat as a benign no-op.
func (r *PostgresWorklogsRepository) CloseActiveEntry(
	ctx context.Context,
	agentID, ticketID string,
	endedAt time.Time,
) (mo.Option[*models.WorklogEntry], error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(worklogsColumns, ", ")
	query := fmt.Sprintf(`
		UPDATE %s.worklog_entries
		SET ended_at = $3, updated_at = NOW()
		WHERE agent_id = $1 AND ticket_id = $2 AND ended_at IS NULL
		RETURNING %s`, r.schema, columnsStr)

	entry := &models.WorklogEntry{}
	err := db.QueryRowxContext(ctx, query, agentID, ticketID, endedAt).StructScan(entry)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return mo.None[*models.WorklogEntry](), nil
		}
		return mo.None[*models.WorklogEntry](), fmt.Errorf("failed to close active worklog entry: %w", err)
	}

	return mo.Some(entry), nil
}

func (r *PostgresWorklogsRepository) ListEntriesByTicket(
	ctx context.Context,
	ticketID string,
) ([]*models.WorklogEntry, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(worklogsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.worklog_entries
		WHERE ticket_id = $1
		ORDER BY started_at ASC`, columnsStr, r.schema)

	var entries []*models.WorklogEntry
	err := db.SelectContext(ctx, &entries, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list worklog entries by ticket: %w", err)
	}

	return entries, nil
}

func (r *PostgresWorklogsRepository) ListEntriesByAgent(
	ctx context.Context,
	agentID string,
) ([]*models.WorklogEntry, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(worklogsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.worklog_entries
		WHERE agent_id = $1
		ORDER BY started_at ASC`, columnsStr, r.schema)

	var entries []*models.WorklogEntry
	err := db.SelectContext(ctx, &entries, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list worklog entries by agent: %w", err)
	}

	return entries, nil
}
