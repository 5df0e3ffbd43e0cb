// Package ingest is the normalizer for inbound provider payloads. It maps
// raw webhook bodies onto the internal event model, resolves the owning
// organization and contact, applies the single contact mutation the event
// implies, and hands the contact to the scoring queue.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"selestial_backend/internal/contacts"
	"selestial_backend/internal/events"
	"selestial_backend/internal/organizations"
	"selestial_backend/internal/timeline"
	"selestial_backend/platform/apperr"
	"selestial_backend/platform/logger"
	"selestial_backend/platform/phone"
	"selestial_backend/platform/sanitize"

	"github.com/google/uuid"
)

// OrganizationStore resolves tenants from provider identifiers.
type OrganizationStore interface {
	FindByStripeAccount(ctx context.Context, accountID string) (organizations.Organization, error)
	FindByGHLLocation(ctx context.Context, locationID string) (organizations.Organization, error)
	FindByTelnyxNumber(ctx context.Context, phoneNumber string) (organizations.Organization, error)
	FindOrgByContactEmail(ctx context.Context, email string) (organizations.Organization, error)
}

// ContactStore is the contact access ingestion needs.
type ContactStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (contacts.Contact, error)
	FindByGHLContactID(ctx context.Context, orgID uuid.UUID, ghlContactID string) (contacts.Contact, error)
	FindByEmail(ctx context.Context, orgID uuid.UUID, email string) (contacts.Contact, error)
	FindByPhone(ctx context.Context, orgID uuid.UUID, phoneNumber string) (contacts.Contact, error)
	Create(ctx context.Context, c contacts.Contact) (contacts.Contact, error)
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error
	AdjustLTV(ctx context.Context, id uuid.UUID, deltaCents int64) error
	MarkChurned(ctx context.Context, id uuid.UUID) error
	UpdateProfile(ctx context.Context, id uuid.UUID, ghlContactID, firstName, lastName, email, phoneNumber string) error
}

// EventStore appends normalized events to the activity log.
type EventStore interface {
	Append(ctx context.Context, e timeline.Event) (timeline.Event, error)
}

// Archiver stores raw payloads for replay and debugging. May be nil.
type Archiver interface {
	Store(ctx context.Context, provider string, raw []byte) error
}

// ScoringQueue enqueues a scoring pass for a contact whose history changed.
type ScoringQueue interface {
	EnqueueScoreContact(ctx context.Context, orgID, contactID uuid.UUID) error
}

// Result reports what one ingest call did. A dropped payload is a success
// from the caller's point of view; Dropped and Reason exist for logging and
// the benign response body.
type Result struct {
	Dropped   bool
	Reason    string
	EventID   uuid.UUID
	ContactID *uuid.UUID
	Created   bool
}

// Service is the ingestion pipeline.
type Service struct {
	orgs     OrganizationStore
	contacts ContactStore
	eventLog EventStore
	archive  Archiver
	queue    ScoringQueue
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

func NewService(orgs OrganizationStore, contactStore ContactStore, eventLog EventStore, archive Archiver, queue ScoringQueue, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		orgs:     orgs,
		contacts: contactStore,
		eventLog: eventLog,
		archive:  archive,
		queue:    queue,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// IngestStripe handles a billing provider webhook body.
func (s *Service) IngestStripe(ctx context.Context, raw []byte) (Result, error) {
	payload, err := decode(raw)
	if err != nil {
		return Result{Dropped: true, Reason: "malformed payload"}, nil
	}
	s.archiveRaw(ctx, string(timeline.SourceStripe), raw)

	tenant, normalized := normalizeStripe(payload)

	org, ok := s.resolveStripeTenant(ctx, tenant)
	if !ok {
		s.log.WebhookDropped(string(timeline.SourceStripe), "no matching organization")
		return Result{Dropped: true, Reason: "no matching organization"}, nil
	}

	return s.apply(ctx, org, normalized)
}

// IngestGHL handles a CRM provider webhook body.
func (s *Service) IngestGHL(ctx context.Context, raw []byte) (Result, error) {
	payload, err := decode(raw)
	if err != nil {
		return Result{Dropped: true, Reason: "malformed payload"}, nil
	}
	s.archiveRaw(ctx, string(timeline.SourceGHL), raw)

	locationID, normalized := normalizeGHL(payload)
	if locationID == "" {
		s.log.WebhookDropped(string(timeline.SourceGHL), "no location id")
		return Result{Dropped: true, Reason: "no location id"}, nil
	}

	org, err := s.orgs.FindByGHLLocation(ctx, locationID)
	if err != nil {
		if errors.Is(err, organizations.ErrNotFound) {
			s.log.WebhookDropped(string(timeline.SourceGHL), "no matching organization")
			return Result{Dropped: true, Reason: "no matching organization"}, nil
		}
		return Result{}, fmt.Errorf("resolve organization: %w", err)
	}

	return s.apply(ctx, org, normalized)
}

// IngestTelnyx handles a telephony provider webhook body.
func (s *Service) IngestTelnyx(ctx context.Context, raw []byte) (Result, error) {
	payload, err := decode(raw)
	if err != nil {
		return Result{Dropped: true, Reason: "malformed payload"}, nil
	}
	s.archiveRaw(ctx, string(timeline.SourceTelnyx), raw)

	tenant, normalized := normalizeTelnyx(payload)

	org, ok := s.resolveTelnyxTenant(ctx, tenant)
	if !ok {
		s.log.WebhookDropped(string(timeline.SourceTelnyx), "no matching organization")
		return Result{Dropped: true, Reason: "no matching organization"}, nil
	}

	return s.apply(ctx, org, normalized)
}

// ManualEvent is an operator-submitted event for backfills and corrections.
type ManualEvent struct {
	ContactID   *uuid.UUID     `json:"contact_id" validate:"omitempty"`
	Email       string         `json:"email" validate:"omitempty,email"`
	Phone       string         `json:"phone" validate:"omitempty"`
	EventType   string         `json:"event_type" validate:"required,max=100"`
	Description string         `json:"description" validate:"max=500"`
	Metadata    map[string]any `json:"metadata"`
}

// IngestManual records an event on behalf of an already-authenticated
// organization. The contact may be addressed directly by id or resolved by
// the usual identifier order.
func (s *Service) IngestManual(ctx context.Context, orgID uuid.UUID, req ManualEvent) (Result, error) {
	normalized := Normalized{
		EventType:    req.EventType,
		SourceSystem: timeline.SourceManual,
		Description:  sanitize.Text(req.Description),
		Metadata:     req.Metadata,
		Identity:     Identity{Email: req.Email, Phone: req.Phone},
	}
	if normalized.Description == "" {
		normalized.Description = fmt.Sprintf("Manual event: %s", req.EventType)
	}

	org := organizations.Organization{ID: orgID}
	if req.ContactID != nil {
		normalized.Identity = Identity{}
		return s.applyToContact(ctx, org, normalized, *req.ContactID)
	}
	return s.apply(ctx, org, normalized)
}

func (s *Service) resolveStripeTenant(ctx context.Context, tenant stripeTenant) (organizations.Organization, bool) {
	if tenant.AccountID != "" {
		org, err := s.orgs.FindByStripeAccount(ctx, tenant.AccountID)
		if err == nil {
			return org, true
		}
		if !errors.Is(err, organizations.ErrNotFound) {
			s.log.DatabaseError("resolve stripe account", err)
		}
	}
	if tenant.CustomerEmail != "" {
		org, err := s.orgs.FindOrgByContactEmail(ctx, tenant.CustomerEmail)
		if err == nil {
			return org, true
		}
		if !errors.Is(err, organizations.ErrNotFound) {
			s.log.DatabaseError("resolve org by contact email", err)
		}
	}
	return organizations.Organization{}, false
}

func (s *Service) resolveTelnyxTenant(ctx context.Context, tenant telnyxTenant) (organizations.Organization, bool) {
	for _, num := range []string{tenant.ToNumber, tenant.FromNumber} {
		if num == "" {
			continue
		}
		org, err := s.orgs.FindByTelnyxNumber(ctx, num)
		if err == nil {
			return org, true
		}
		if !errors.Is(err, organizations.ErrNotFound) {
			s.log.DatabaseError("resolve telnyx number", err)
		}
	}
	return organizations.Organization{}, false
}

// apply resolves the contact and finishes the ingest. A payload without any
// contact identifier still records its event, unattributed.
func (s *Service) apply(ctx context.Context, org organizations.Organization, n Normalized) (Result, error) {
	if n.Identity.Phone != "" {
		n.Identity.Phone = phone.NormalizeE164(n.Identity.Phone)
	}

	contact, created, found, err := s.resolveContact(ctx, org.ID, n)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return s.finish(ctx, org, n, nil, false)
	}
	return s.finishWithContact(ctx, org, n, contact, created)
}

// applyToContact finishes an ingest for an explicitly addressed contact. The
// contact must belong to the calling organization; an id from another tenant
// is indistinguishable from a missing one.
func (s *Service) applyToContact(ctx context.Context, org organizations.Organization, n Normalized, contactID uuid.UUID) (Result, error) {
	contact, err := s.contacts.GetByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, contacts.ErrNotFound) {
			return Result{}, apperr.NotFound("contact not found").WithOp("ingest.IngestManual")
		}
		return Result{}, fmt.Errorf("load contact: %w", err)
	}
	if contact.OrganizationID != org.ID {
		return Result{}, apperr.NotFound("contact not found").WithOp("ingest.IngestManual")
	}
	return s.finishWithContact(ctx, org, n, contact, false)
}

// resolveContact looks the contact up by provider id, then email, then
// phone, and creates one when the payload carries at least one identifier.
func (s *Service) resolveContact(ctx context.Context, orgID uuid.UUID, n Normalized) (contacts.Contact, bool, bool, error) {
	id := n.Identity
	if id.Empty() {
		return contacts.Contact{}, false, false, nil
	}

	type lookup struct {
		key  string
		find func() (contacts.Contact, error)
	}
	lookups := []lookup{
		{id.GHLContactID, func() (contacts.Contact, error) { return s.contacts.FindByGHLContactID(ctx, orgID, id.GHLContactID) }},
		{id.Email, func() (contacts.Contact, error) { return s.contacts.FindByEmail(ctx, orgID, id.Email) }},
		{id.Phone, func() (contacts.Contact, error) { return s.contacts.FindByPhone(ctx, orgID, id.Phone) }},
	}
	for _, l := range lookups {
		if l.key == "" {
			continue
		}
		contact, err := l.find()
		if err == nil {
			return contact, false, true, nil
		}
		if !errors.Is(err, contacts.ErrNotFound) {
			return contacts.Contact{}, false, false, fmt.Errorf("resolve contact: %w", err)
		}
	}

	now := s.now()
	created, err := s.contacts.Create(ctx, contacts.Contact{
		OrganizationID: orgID,
		GHLContactID:   id.GHLContactID,
		FirstName:      id.FirstName,
		LastName:       id.LastName,
		Email:          id.Email,
		Phone:          id.Phone,
		LifecycleStage: contacts.StageLead,
		HealthStatus:   contacts.HealthHealthy,
		Score:          contacts.DefaultScore,
		LastActivityAt: &now,
	})
	if err != nil {
		return contacts.Contact{}, false, false, fmt.Errorf("create contact: %w", err)
	}
	return created, true, true, nil
}

func (s *Service) finishWithContact(ctx context.Context, org organizations.Organization, n Normalized, contact contacts.Contact, created bool) (Result, error) {
	if n.UpdateProfile && !created {
		id := n.Identity
		if err := s.contacts.UpdateProfile(ctx, contact.ID, id.GHLContactID, id.FirstName, id.LastName, id.Email, id.Phone); err != nil {
			return Result{}, fmt.Errorf("update profile: %w", err)
		}
	}
	if n.MarkChurned {
		if err := s.contacts.MarkChurned(ctx, contact.ID); err != nil {
			return Result{}, fmt.Errorf("mark churned: %w", err)
		}
	}
	if n.LTVDeltaCents != 0 {
		if err := s.contacts.AdjustLTV(ctx, contact.ID, n.LTVDeltaCents); err != nil {
			return Result{}, fmt.Errorf("adjust ltv: %w", err)
		}
	}
	if err := s.contacts.TouchActivity(ctx, contact.ID, s.now()); err != nil {
		return Result{}, fmt.Errorf("touch activity: %w", err)
	}
	return s.finish(ctx, org, n, &contact.ID, created)
}

// finish appends the event, publishes, and enqueues scoring.
func (s *Service) finish(ctx context.Context, org organizations.Organization, n Normalized, contactID *uuid.UUID, created bool) (Result, error) {
	appended, err := s.eventLog.Append(ctx, timeline.Event{
		OrganizationID: org.ID,
		ContactID:      contactID,
		EventType:      n.EventType,
		SourceSystem:   n.SourceSystem,
		Description:    n.Description,
		Metadata:       n.Metadata,
	})
	if err != nil {
		return Result{}, fmt.Errorf("append event: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.EventIngested{
			BaseEvent:      events.NewBaseEvent(),
			EventID:        appended.ID,
			OrganizationID: org.ID,
			ContactID:      contactID,
			EventType:      n.EventType,
			SourceSystem:   string(n.SourceSystem),
		})
		if created && contactID != nil {
			s.bus.Publish(ctx, events.ContactCreated{
				BaseEvent:      events.NewBaseEvent(),
				ContactID:      *contactID,
				OrganizationID: org.ID,
				SourceSystem:   string(n.SourceSystem),
			})
		}
	}

	if contactID != nil && s.queue != nil {
		if err := s.queue.EnqueueScoreContact(ctx, org.ID, *contactID); err != nil {
			// Scoring catches up on the next sweep; never fail the ingest.
			s.log.Error("enqueue scoring failed", "contact_id", *contactID, "error", err)
		}
	}

	return Result{EventID: appended.ID, ContactID: contactID, Created: created}, nil
}

func (s *Service) archiveRaw(ctx context.Context, provider string, raw []byte) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Store(ctx, provider, raw); err != nil {
		s.log.Warn("payload archive failed", "provider", provider, "error", err)
	}
}

func decode(raw []byte) (rawPayload, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
