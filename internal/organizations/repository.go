package organizations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no organization matches the lookup.
var ErrNotFound = errors.New("organization not found")

const orgColumns = `id, name, ghl_location_id, ghl_api_key_ref, stripe_account_id,
	telnyx_phone_number, telnyx_api_key_ref, alert_email, created_at`

// Repository provides data access for organizations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new organization repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanOrg(row pgx.Row) (Organization, error) {
	var o Organization
	var ghlLoc, ghlRef, stripeAcct, telnyxNum, telnyxRef, alertEmail *string
	err := row.Scan(&o.ID, &o.Name, &ghlLoc, &ghlRef, &stripeAcct, &telnyxNum, &telnyxRef, &alertEmail, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	if err != nil {
		return Organization{}, err
	}
	o.GHLLocationID = deref(ghlLoc)
	o.GHLAPIKeyRef = deref(ghlRef)
	o.StripeAccountID = deref(stripeAcct)
	o.TelnyxPhoneNumber = deref(telnyxNum)
	o.TelnyxAPIKeyRef = deref(telnyxRef)
	o.AlertEmail = deref(alertEmail)
	return o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetByID retrieves one organization.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `
		SELECT `+orgColumns+` FROM organizations WHERE id = $1
	`, id))
}

// FindByGHLLocation resolves the tenant for an inbound CRM webhook.
func (r *Repository) FindByGHLLocation(ctx context.Context, locationID string) (Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `
		SELECT `+orgColumns+` FROM organizations WHERE ghl_location_id = $1
	`, locationID))
}

// FindByStripeAccount resolves the tenant for an inbound billing webhook.
func (r *Repository) FindByStripeAccount(ctx context.Context, accountID string) (Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `
		SELECT `+orgColumns+` FROM organizations WHERE stripe_account_id = $1
	`, accountID))
}

// FindByTelnyxNumber resolves the tenant for an inbound telephony webhook.
func (r *Repository) FindByTelnyxNumber(ctx context.Context, phoneNumber string) (Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `
		SELECT `+orgColumns+` FROM organizations WHERE telnyx_phone_number = $1
	`, phoneNumber))
}

// FindOrgByContactEmail resolves a tenant through one of its contacts' email.
// Fallback used by the billing adapter when the account id is absent.
func (r *Repository) FindOrgByContactEmail(ctx context.Context, email string) (Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `
		SELECT `+orgColumns+` FROM organizations o
		WHERE o.id = (
			SELECT c.organization_id FROM contacts c
			WHERE lower(c.email) = lower($1)
			ORDER BY c.created_at
			LIMIT 1
		)
	`, email))
}
