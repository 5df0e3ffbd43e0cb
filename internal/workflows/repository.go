package workflows

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no workflow matches the lookup.
var ErrNotFound = errors.New("workflow not found")

const workflowColumns = `id, organization_id, name, trigger_type, conditions, actions,
	is_active, last_fired_at, fire_count, created_at, updated_at`

// Repository provides data access for workflows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new workflow repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanWorkflow(row pgx.Row) (Workflow, error) {
	var w Workflow
	var conditions, actions []byte
	err := row.Scan(&w.ID, &w.OrganizationID, &w.Name, &w.TriggerType, &conditions, &actions,
		&w.IsActive, &w.LastFiredAt, &w.FireCount, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Workflow{}, ErrNotFound
	}
	if err != nil {
		return Workflow{}, err
	}
	if err := json.Unmarshal(conditions, &w.Conditions); err != nil {
		return Workflow{}, err
	}
	if err := json.Unmarshal(actions, &w.Actions); err != nil {
		return Workflow{}, err
	}
	return w, nil
}

// Create inserts a new workflow. The definition must already be validated.
func (r *Repository) Create(ctx context.Context, w Workflow) (Workflow, error) {
	conditions, err := json.Marshal(w.Conditions)
	if err != nil {
		return Workflow{}, err
	}
	actions, err := json.Marshal(w.Actions)
	if err != nil {
		return Workflow{}, err
	}
	return scanWorkflow(r.pool.QueryRow(ctx, `
		INSERT INTO workflows (organization_id, name, trigger_type, conditions, actions, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+workflowColumns+`
	`, w.OrganizationID, w.Name, w.TriggerType, conditions, actions, w.IsActive))
}

// GetByID retrieves one workflow scoped to its organization.
func (r *Repository) GetByID(ctx context.Context, id, orgID uuid.UUID) (Workflow, error) {
	return scanWorkflow(r.pool.QueryRow(ctx, `
		SELECT `+workflowColumns+`
		FROM workflows
		WHERE id = $1 AND organization_id = $2
	`, id, orgID))
}

// ListByOrganization returns all workflows of an organization.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]Workflow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workflowColumns+`
		FROM workflows
		WHERE organization_id = $1
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWorkflows(rows)
}

// ListActive returns the active workflows the engine evaluates.
func (r *Repository) ListActive(ctx context.Context, orgID uuid.UUID) ([]Workflow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workflowColumns+`
		FROM workflows
		WHERE organization_id = $1 AND is_active = true
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWorkflows(rows)
}

func collectWorkflows(rows pgx.Rows) ([]Workflow, error) {
	var out []Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Update replaces a workflow's definition.
func (r *Repository) Update(ctx context.Context, w Workflow) (Workflow, error) {
	conditions, err := json.Marshal(w.Conditions)
	if err != nil {
		return Workflow{}, err
	}
	actions, err := json.Marshal(w.Actions)
	if err != nil {
		return Workflow{}, err
	}
	return scanWorkflow(r.pool.QueryRow(ctx, `
		UPDATE workflows
		SET name = $3, trigger_type = $4, conditions = $5, actions = $6, is_active = $7, updated_at = now()
		WHERE id = $1 AND organization_id = $2
		RETURNING `+workflowColumns+`
	`, w.ID, w.OrganizationID, w.Name, w.TriggerType, conditions, actions, w.IsActive))
}

// SetActive toggles a workflow without touching its definition.
func (r *Repository) SetActive(ctx context.Context, id, orgID uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE workflows SET is_active = $3, updated_at = now()
		WHERE id = $1 AND organization_id = $2
	`, id, orgID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a workflow.
func (r *Repository) Delete(ctx context.Context, id, orgID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM workflows WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordFired bumps the fire bookkeeping. fire_count only ever increments;
// it records "the rule matched", independent of action outcomes.
func (r *Repository) RecordFired(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE workflows
		SET fire_count = fire_count + 1, last_fired_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
