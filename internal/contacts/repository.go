package contacts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no contact matches the lookup.
var ErrNotFound = errors.New("contact not found")

const contactColumns = `id, organization_id, ghl_contact_id, first_name, last_name, email, phone,
	lifecycle_stage, health_status, engagement_score, ltv_cents, last_activity_at, created_at, updated_at`

// Repository provides data access for contacts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new contact repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	var ghlID, firstName, lastName, email, phone *string
	err := row.Scan(
		&c.ID, &c.OrganizationID, &ghlID, &firstName, &lastName, &email, &phone,
		&c.LifecycleStage, &c.HealthStatus, &c.Score, &c.LTVCents, &c.LastActivityAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, err
	}
	c.GHLContactID = deref(ghlID)
	c.FirstName = deref(firstName)
	c.LastName = deref(lastName)
	c.Email = deref(email)
	c.Phone = deref(phone)
	return c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetByID retrieves one contact.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = $1
	`, id))
}

// FindByGHLContactID matches a contact by its CRM provider id within an organization.
func (r *Repository) FindByGHLContactID(ctx context.Context, orgID uuid.UUID, ghlContactID string) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE organization_id = $1 AND ghl_contact_id = $2
	`, orgID, ghlContactID))
}

// FindByEmail matches a contact by email within an organization.
func (r *Repository) FindByEmail(ctx context.Context, orgID uuid.UUID, email string) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE organization_id = $1 AND lower(email) = lower($2)
	`, orgID, email))
}

// FindByPhone matches a contact by phone within an organization.
func (r *Repository) FindByPhone(ctx context.Context, orgID uuid.UUID, phone string) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE organization_id = $1 AND phone = $2
	`, orgID, phone))
}

// Create inserts a new contact. Zero-value profile fields are stored as NULL
// so soft-identifier lookups never match on empty strings.
func (r *Repository) Create(ctx context.Context, c Contact) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `
		INSERT INTO contacts (organization_id, ghl_contact_id, first_name, last_name, email, phone,
			lifecycle_stage, health_status, engagement_score, ltv_cents, last_activity_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
			$7, $8, $9, $10, $11)
		RETURNING `+contactColumns+`
	`, c.OrganizationID, c.GHLContactID, c.FirstName, c.LastName, c.Email, c.Phone,
		c.LifecycleStage, c.HealthStatus, ClampScore(c.Score), c.LTVCents, c.LastActivityAt))
}

// TouchActivity stamps the contact's last activity time.
func (r *Repository) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contacts SET last_activity_at = $2, updated_at = now()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustLTV adds deltaCents (which may be negative) to the contact's lifetime
// value, floored at zero.
func (r *Repository) AdjustLTV(ctx context.Context, id uuid.UUID, deltaCents int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contacts SET ltv_cents = GREATEST(0, ltv_cents + $2), updated_at = now()
		WHERE id = $1
	`, id, deltaCents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateEngagement persists the scoring engine's derived state.
func (r *Repository) UpdateEngagement(ctx context.Context, id uuid.UUID, score int, health HealthStatus, stage LifecycleStage) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contacts
		SET engagement_score = $2, health_status = $3, lifecycle_stage = $4, updated_at = now()
		WHERE id = $1
	`, id, ClampScore(score), health, stage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkChurned forces a contact into the churned stage with critical health.
// Used when the billing provider reports a subscription cancellation.
func (r *Repository) MarkChurned(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contacts
		SET lifecycle_stage = $2, health_status = $3, updated_at = now()
		WHERE id = $1
	`, id, StageChurned, HealthCritical)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile merges non-empty profile fields from a provider payload onto
// an existing contact. The provider id is only ever set, never cleared.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, ghlContactID, firstName, lastName, email, phone string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contacts SET
			ghl_contact_id = COALESCE(ghl_contact_id, NULLIF($2, '')),
			first_name = COALESCE(NULLIF($3, ''), first_name),
			last_name = COALESCE(NULLIF($4, ''), last_name),
			email = COALESCE(NULLIF($5, ''), email),
			phone = COALESCE(NULLIF($6, ''), phone),
			updated_at = now()
		WHERE id = $1
	`, id, ghlContactID, firstName, lastName, email, phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListLive returns contacts in re-scorable stages. A nil orgID selects live
// contacts across all organizations (the periodic sweep).
func (r *Repository) ListLive(ctx context.Context, orgID *uuid.UUID) ([]Contact, error) {
	live := LiveStages()
	stages := make([]string, len(live))
	for i, s := range live {
		stages[i] = string(s)
	}
	var rows pgx.Rows
	var err error
	if orgID != nil {
		rows, err = r.pool.Query(ctx, `
			SELECT `+contactColumns+`
			FROM contacts
			WHERE organization_id = $1 AND lifecycle_stage = ANY($2)
			ORDER BY created_at
		`, *orgID, stages)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+contactColumns+`
			FROM contacts
			WHERE lifecycle_stage = ANY($1)
			ORDER BY created_at
		`, stages)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
