package organizations

import (
	"context"
	"os"

	"github.com/google/uuid"
)

// SecretSource resolves a secret reference to its value.
type SecretSource func(ref string) string

// EnvSecretSource resolves references against the process environment.
// In production the references point at injected secrets, never at values
// committed to the database.
func EnvSecretSource(ref string) string {
	if ref == "" {
		return ""
	}
	return os.Getenv(ref)
}

// CredentialResolver turns an organization's secret references into resolved
// provider credentials for the action executor.
type CredentialResolver struct {
	repo   *Repository
	source SecretSource
}

// NewCredentialResolver creates a resolver backed by the given secret source.
// A nil source defaults to the environment.
func NewCredentialResolver(repo *Repository, source SecretSource) *CredentialResolver {
	if source == nil {
		source = EnvSecretSource
	}
	return &CredentialResolver{repo: repo, source: source}
}

// Resolve loads an organization and materializes its provider credentials.
// Unconfigured providers come back as zero values; callers treat those as
// skip preconditions, not errors.
func (cr *CredentialResolver) Resolve(ctx context.Context, org Organization) Credentials {
	return Credentials{
		GHLAPIKey:         cr.source(org.GHLAPIKeyRef),
		GHLLocationID:     org.GHLLocationID,
		TelnyxAPIKey:      cr.source(org.TelnyxAPIKeyRef),
		TelnyxPhoneNumber: org.TelnyxPhoneNumber,
		AlertEmail:        org.AlertEmail,
	}
}

// ResolveByID loads the organization first, then resolves its credentials.
func (cr *CredentialResolver) ResolveByID(ctx context.Context, orgID uuid.UUID) (Credentials, error) {
	org, err := cr.repo.GetByID(ctx, orgID)
	if err != nil {
		return Credentials{}, err
	}
	return cr.Resolve(ctx, org), nil
}
