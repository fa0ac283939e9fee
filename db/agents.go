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

type PostgresAgentsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for the agents roster table
var agentsColumns = []string{
	"id",
	"slug",
	"display_name",
	"email",
	"avatar_url",
	"role",
	"api_token",
	"presence_status",
	"last_seen_at",
	"created_at",
	"updated_at",
}

func NewPostgresAgentsRepository(db *sqlx.DB, schema string) *PostgresAgentsRepository {
	return &PostgresAgentsRepository{db: db, schema: schema}
}

func (r *PostgresAgentsRepository) GetAgentByID(ctx context.Context, id string) (mo.Option[*models.Agent], error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(agentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.agents
		WHERE id = $1`, columnsStr, r.schema)

	agent := &models.Agent{}
	err := db.QueryRowxContext(ctx, query, id).StructScan(agent)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return mo.None[*models.Agent](), nil
		}
		return mo.None[*models.Agent](), fmt.Errorf("failed to get agent by id: %w", err)
	}

	return mo.Some(agent), nil
}

func (r *PostgresAgentsRepository) GetAgentBySlug(ctx context.Context, slug string) (mo.Option[*models.Agent], error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(agentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.agents
		WHERE slug = $1`, columnsStr, r.schema)

	agent := &models.Agent{}
	err := db.QueryRowxContext(ctx, query, slug).StructScan(agent)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return mo.None[*models.Agent](), nil
		}
		return mo.None[*models.Agent](), fmt.Errorf("failed to get agent by slug: %w", err)
	}

	return mo.Some(agent), nil
}

func (r *PostgresAgentsRepository) GetAgentByAPIToken(
	ctx context.Context,
	apiToken string,
) (mo.Option[*models.Agent], error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(agentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.agents
		WHERE api_token = $1`, columnsStr, r.schema)

	agent := &models.Agent{}
	err := db.QueryRowxContext(ctx, query, apiToken).StructScan(agent)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return mo.None[*models.Agent](), nil
		}
		return mo.None[*models.Agent](), fmt.Errorf("failed to get agent by api token: %w", err)
	}

	return mo.Some(agent), nil
}

// ListAgents returns the full roster in creation order. Mention candidate
// ordering and roster screens rely on this order being stable.
func (r *PostgresAgentsRepository) ListAgents(ctx context.Context) ([]*models.Agent, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(agentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.agents
		ORDER BY created_at ASC`, columnsStr, r.schema)

	var agents []*models.Agent
	err := db.SelectContext(ctx, &agents, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	return agents, nil
}

func (r *PostgresAgentsRepository) CreateAgent(ctx context.Context, agent *models.Agent) error {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(agentsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.agents (id, slug, display_name, email, avatar_url, role, api_token, presence_status, last_seen_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING %s`, r.schema, columnsStr)

	err := db.QueryRowxContext(
		ctx,
		query,
		agent.ID,
		agent.Slug,
		agent.DisplayName,
		agent.Email,
		agent.AvatarURL,
		agent.Role,
		agent.APIToken,
		agent.PresenceStatus,
		agent.LastSeenAt,
	).StructScan(agent)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

// UpdatePresence persists the latest presence status and last-seen timestamp
// so "last seen" survives server restarts.
func (r *PostgresAgentsRepository) UpdatePresence(
	ctx context.Context,
	agentID string,
	status models.PresenceStatus,
	lastSeenAt time.Time,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	query := fmt.Sprintf(`
		UPDATE %s.agents
		SET presence_status = $2, last_seen_at = $3, updated_at = NOW()
		WHERE id = $1`, r.schema)

	result, err := db.ExecContext(ctx, query, agentID, status, lastSeenAt)
	if err != nil {
		return false, fmt.Errorf("failed to update agent presence: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
