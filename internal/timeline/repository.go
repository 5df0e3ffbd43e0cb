package timeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides append and read access to the event store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new timeline repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts one event. The store is insert-only; there is no update or
// delete path anywhere in this package.
func (r *Repository) Append(ctx context.Context, e Event) (Event, error) {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return Event{}, err
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO events (organization_id, contact_id, event_type, source_system, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, e.OrganizationID, e.ContactID, e.EventType, e.SourceSystem, e.Description, raw).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

// ListByContactSince returns a contact's events newer than the cutoff,
// most recent first. Ties on created_at fall back to insertion order.
func (r *Repository) ListByContactSince(ctx context.Context, contactID uuid.UUID, since time.Time) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, contact_id, event_type, source_system, description, metadata, created_at
		FROM events
		WHERE contact_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, seq DESC
	`, contactID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListByContact returns a page of a contact's history, most recent first.
func (r *Repository) ListByContact(ctx context.Context, contactID uuid.UUID, limit, offset int) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, contact_id, event_type, source_system, description, metadata, created_at
		FROM events
		WHERE contact_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`, contactID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListByOrganization returns an organization's activity feed, most recent first.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, contact_id, event_type, source_system, description, metadata, created_at
		FROM events
		WHERE organization_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var e Event
		var raw []byte
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.ContactID, &e.EventType,
			&e.SourceSystem, &e.Description, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
