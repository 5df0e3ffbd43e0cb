// Package organizations provides the tenant boundary: organization records,
// provider account identifiers used for inbound tenant resolution, and
// credential references resolved for the action executor.
package organizations

import (
	"time"

	"github.com/google/uuid"
)

// Organization is one tenant of the platform.
//
// Provider API keys are not stored on the row. The *_key_ref columns hold
// secret references (environment variable names) resolved at execution time
// by a CredentialResolver, so the engines never see raw keys.
type Organization struct {
	ID                uuid.UUID
	Name              string
	GHLLocationID     string
	GHLAPIKeyRef      string
	StripeAccountID   string
	TelnyxPhoneNumber string
	TelnyxAPIKeyRef   string
	AlertEmail        string
	CreatedAt         time.Time
}

// Credentials are the resolved provider secrets for one organization.
// A zero-value field means the organization has not configured that provider.
type Credentials struct {
	GHLAPIKey         string
	GHLLocationID     string
	TelnyxAPIKey      string
	TelnyxPhoneNumber string
	AlertEmail        string
}

// HasGHL reports whether CRM provider calls can be made.
func (c Credentials) HasGHL() bool { return c.GHLAPIKey != "" }

// HasTelnyx reports whether telephony provider calls can be made.
func (c Credentials) HasTelnyx() bool { return c.TelnyxAPIKey != "" && c.TelnyxPhoneNumber != "" }
