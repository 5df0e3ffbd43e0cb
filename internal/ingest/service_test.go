package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"selestial_backend/internal/contacts"
	"selestial_backend/internal/organizations"
	"selestial_backend/internal/timeline"
	"selestial_backend/platform/apperr"
	"selestial_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeOrgs struct {
	byStripe map[string]organizations.Organization
	byGHL    map[string]organizations.Organization
	byTelnyx map[string]organizations.Organization
	byEmail  map[string]organizations.Organization
}

func (f *fakeOrgs) FindByStripeAccount(ctx context.Context, accountID string) (organizations.Organization, error) {
	if org, ok := f.byStripe[accountID]; ok {
		return org, nil
	}
	return organizations.Organization{}, organizations.ErrNotFound
}

func (f *fakeOrgs) FindByGHLLocation(ctx context.Context, locationID string) (organizations.Organization, error) {
	if org, ok := f.byGHL[locationID]; ok {
		return org, nil
	}
	return organizations.Organization{}, organizations.ErrNotFound
}

func (f *fakeOrgs) FindByTelnyxNumber(ctx context.Context, phoneNumber string) (organizations.Organization, error) {
	if org, ok := f.byTelnyx[phoneNumber]; ok {
		return org, nil
	}
	return organizations.Organization{}, organizations.ErrNotFound
}

func (f *fakeOrgs) FindOrgByContactEmail(ctx context.Context, email string) (organizations.Organization, error) {
	if org, ok := f.byEmail[email]; ok {
		return org, nil
	}
	return organizations.Organization{}, organizations.ErrNotFound
}

type fakeContacts struct {
	contacts map[uuid.UUID]*contacts.Contact
	created  []contacts.Contact
}

func newFakeContacts() *fakeContacts {
	return &fakeContacts{contacts: make(map[uuid.UUID]*contacts.Contact)}
}

func (f *fakeContacts) add(c contacts.Contact) *contacts.Contact {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.contacts[c.ID] = &c
	return f.contacts[c.ID]
}

func (f *fakeContacts) GetByID(ctx context.Context, id uuid.UUID) (contacts.Contact, error) {
	if c, ok := f.contacts[id]; ok {
		return *c, nil
	}
	return contacts.Contact{}, contacts.ErrNotFound
}

func (f *fakeContacts) FindByGHLContactID(ctx context.Context, orgID uuid.UUID, ghlContactID string) (contacts.Contact, error) {
	for _, c := range f.contacts {
		if c.OrganizationID == orgID && c.GHLContactID == ghlContactID {
			return *c, nil
		}
	}
	return contacts.Contact{}, contacts.ErrNotFound
}

func (f *fakeContacts) FindByEmail(ctx context.Context, orgID uuid.UUID, email string) (contacts.Contact, error) {
	for _, c := range f.contacts {
		if c.OrganizationID == orgID && c.Email == email {
			return *c, nil
		}
	}
	return contacts.Contact{}, contacts.ErrNotFound
}

func (f *fakeContacts) FindByPhone(ctx context.Context, orgID uuid.UUID, phoneNumber string) (contacts.Contact, error) {
	for _, c := range f.contacts {
		if c.OrganizationID == orgID && c.Phone == phoneNumber {
			return *c, nil
		}
	}
	return contacts.Contact{}, contacts.ErrNotFound
}

func (f *fakeContacts) Create(ctx context.Context, c contacts.Contact) (contacts.Contact, error) {
	c.ID = uuid.New()
	f.contacts[c.ID] = &c
	f.created = append(f.created, c)
	return c, nil
}

func (f *fakeContacts) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	if c, ok := f.contacts[id]; ok {
		c.LastActivityAt = &at
		return nil
	}
	return contacts.ErrNotFound
}

func (f *fakeContacts) AdjustLTV(ctx context.Context, id uuid.UUID, deltaCents int64) error {
	if c, ok := f.contacts[id]; ok {
		c.LTVCents += deltaCents
		if c.LTVCents < 0 {
			c.LTVCents = 0
		}
		return nil
	}
	return contacts.ErrNotFound
}

func (f *fakeContacts) MarkChurned(ctx context.Context, id uuid.UUID) error {
	if c, ok := f.contacts[id]; ok {
		c.LifecycleStage = contacts.StageChurned
		c.HealthStatus = contacts.HealthCritical
		return nil
	}
	return contacts.ErrNotFound
}

func (f *fakeContacts) UpdateProfile(ctx context.Context, id uuid.UUID, ghlContactID, firstName, lastName, email, phoneNumber string) error {
	c, ok := f.contacts[id]
	if !ok {
		return contacts.ErrNotFound
	}
	if c.GHLContactID == "" {
		c.GHLContactID = ghlContactID
	}
	if firstName != "" {
		c.FirstName = firstName
	}
	if lastName != "" {
		c.LastName = lastName
	}
	return nil
}

type fakeEventLog struct {
	events []timeline.Event
}

func (f *fakeEventLog) Append(ctx context.Context, e timeline.Event) (timeline.Event, error) {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	f.events = append(f.events, e)
	return e, nil
}

type fakeQueue struct {
	enqueued []uuid.UUID
}

func (f *fakeQueue) EnqueueScoreContact(ctx context.Context, orgID, contactID uuid.UUID) error {
	f.enqueued = append(f.enqueued, contactID)
	return nil
}

func newTestService(orgs *fakeOrgs, contactStore *fakeContacts, eventLog *fakeEventLog, queue *fakeQueue) *Service {
	return NewService(orgs, contactStore, eventLog, nil, queue, nil, logger.NewNop())
}

func stripePaymentPayload(account, email string, amountCents int64) []byte {
	raw, _ := json.Marshal(map[string]any{
		"type":    "payment_intent.succeeded",
		"account": account,
		"data": map[string]any{
			"object": map[string]any{
				"id":             "pi_123",
				"amount":         amountCents,
				"currency":       "usd",
				"customer_email": email,
			},
		},
	})
	return raw
}

func TestIngestStripePaymentIncrementsLTV(t *testing.T) {
	org := organizations.Organization{ID: uuid.New()}
	orgs := &fakeOrgs{byStripe: map[string]organizations.Organization{"acct_1": org}}
	store := newFakeContacts()
	contact := store.add(contacts.Contact{OrganizationID: org.ID, Email: "ada@example.com", LTVCents: 5000})
	eventLog := &fakeEventLog{}
	queue := &fakeQueue{}
	svc := newTestService(orgs, store, eventLog, queue)

	result, err := svc.IngestStripe(context.Background(), stripePaymentPayload("acct_1", "ada@example.com", 2500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Dropped {
		t.Fatalf("expected ingest, got drop: %s", result.Reason)
	}

	if contact.LTVCents != 7500 {
		t.Fatalf("expected LTV 7500 cents, got %d", contact.LTVCents)
	}
	if len(eventLog.events) != 1 {
		t.Fatalf("expected one event, got %d", len(eventLog.events))
	}
	e := eventLog.events[0]
	if e.EventType != timeline.TypePaymentReceived {
		t.Fatalf("expected payment_received, got %s", e.EventType)
	}
	if e.SourceSystem != timeline.SourceStripe {
		t.Fatalf("expected stripe source, got %s", e.SourceSystem)
	}
	if contact.LastActivityAt == nil {
		t.Fatal("expected last activity to be touched")
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != contact.ID {
		t.Fatalf("expected scoring enqueued for contact, got %v", queue.enqueued)
	}
}

func TestIngestStripeRefundFloorsLTVAtZero(t *testing.T) {
	org := organizations.Organization{ID: uuid.New()}
	orgs := &fakeOrgs{byStripe: map[string]organizations.Organization{"acct_1": org}}
	store := newFakeContacts()
	contact := store.add(contacts.Contact{OrganizationID: org.ID, Email: "ada@example.com", LTVCents: 1000})

	raw, _ := json.Marshal(map[string]any{
		"type":    "charge.refunded",
		"account": "acct_1",
		"data": map[string]any{
			"object": map[string]any{
				"amount_refunded": 99999,
				"customer_email":  "ada@example.com",
			},
		},
	})

	svc := newTestService(orgs, store, &fakeEventLog{}, &fakeQueue{})
	if _, err := svc.IngestStripe(context.Background(), raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contact.LTVCents != 0 {
		t.Fatalf("expected LTV floored at 0, got %d", contact.LTVCents)
	}
}

func TestIngestStripeSubscriptionCancelledMarksChurned(t *testing.T) {
	org := organizations.Organization{ID: uuid.New()}
	orgs := &fakeOrgs{byStripe: map[string]organizations.Organization{"acct_1": org}}
	store := newFakeContacts()
	contact := store.add(contacts.Contact{OrganizationID: org.ID, Email: "ada@example.com", LifecycleStage: contacts.StageActive})

	raw, _ := json.Marshal(map[string]any{
		"type":    "customer.subscription.deleted",
		"account": "acct_1",
		"data": map[string]any{
			"object": map[string]any{"customer_email": "ada@example.com"},
		},
	})

	eventLog := &fakeEventLog{}
	svc := newTestService(orgs, store, eventLog, &fakeQueue{})
	if _, err := svc.IngestStripe(context.Background(), raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contact.LifecycleStage != contacts.StageChurned {
		t.Fatalf("expected churned stage, got %s", contact.LifecycleStage)
	}
	if contact.HealthStatus != contacts.HealthCritical {
		t.Fatalf("expected critical health, got %s", contact.HealthStatus)
	}
	if eventLog.events[0].EventType != timeline.TypeSubscriptionCancelled {
		t.Fatalf("expected subscription_cancelled, got %s", eventLog.events[0].EventType)
	}
}

func TestIngestStripeUnresolvedTenantDrops(t *testing.T) {
	svc := newTestService(&fakeOrgs{}, newFakeContacts(), &fakeEventLog{}, &fakeQueue{})

	result, err := svc.IngestStripe(context.Background(), stripePaymentPayload("acct_unknown", "nobody@example.com", 100))
	if err != nil {
		t.Fatalf("a tenant miss must not be an error, got %v", err)
	}
	if !result.Dropped {
		t.Fatal("expected the payload to be dropped")
	}
}

func ghlPayload(locationID, contactID, email, eventType string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"locationId": locationID,
		"contactId":  contactID,
		"email":      email,
		"firstName":  "Ada",
		"lastName":   "Lovelace",
		"type":       eventType,
	})
	return raw
}

func TestIngestGHLCreatesContactWithDefaults(t *testing.T) {
	org := organizations.Organization{ID: uuid.New()}
	orgs := &fakeOrgs{byGHL: map[string]organizations.Organization{"loc_1": org}}
	store := newFakeContacts()
	eventLog := &fakeEventLog{}
	svc := newTestService(orgs, store, eventLog, &fakeQueue{})

	result, err := svc.IngestGHL(context.Background(), ghlPayload("loc_1", "ghl-9", "ada@example.com", "ContactCreate"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Created {
		t.Fatal("expected a new contact")
	}
	if len(store.created) != 1 {
		t.Fatalf("expected one created contact, got %d", len(store.created))
	}
	c := store.created[0]
	if c.LifecycleStage != contacts.StageLead {
		t.Fatalf("expected lead stage, got %s", c.LifecycleStage)
	}
	if c.Score != 50 {
		t.Fatalf("expected default score 50, got %d", c.Score)
	}
	if c.HealthStatus != contacts.HealthHealthy {
		t.Fatalf("expected healthy, got %s", c.HealthStatus)
	}
	if c.GHLContactID != "ghl-9" {
		t.Fatalf("expected provider id stored, got %q", c.GHLContactID)
	}
}

func TestIngestGHLProviderIDWinsOverEmail(t *testing.T) {
	org := organizations.Organization{ID: uuid.New()}
	orgs := &fakeOrgs{byGHL: map[string]organizations.Organization{"loc_1": org}}
	store := newFakeContacts()
	byID := store.add(contacts.Contact{OrganizationID: org.ID, GHLContactID: "ghl-9", Email: "old@example.com"})
	store.add(contacts.Contact{OrganizationID: org.ID, Email: "ada@example.com"})

	eventLog := &fakeEventLog{}
	svc := newTestService(orgs, store, eventLog, &fakeQueue{})

	result, err := svc.IngestGHL(context.Background(), ghlPayload("loc_1", "ghl-9", "ada@example.com", "FormSubmitted"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ContactID == nil || *result.ContactID != byID.ID {
		t.Fatalf("provider id must win over email, got %v", result.ContactID)
	}
}

func TestIngestGHLMissingLocationDrops(t *testing.T) {
	svc := newTestService(&fakeOrgs{}, newFakeContacts(), &fakeEventLog{}, &fakeQueue{})

	raw, _ := json.Marshal(map[string]any{"type": "ContactCreate"})
	result, err := svc.IngestGHL(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Dropped {
		t.Fatal("expected drop without location id")
	}
}

func telnyxPayload(eventType, from, to string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"event_type": eventType,
			"payload": map[string]any{
				"from": map[string]any{"phone_number": from},
				"to":   []any{map[string]any{"phone_number": to}},
			},
		},
	})
	return raw
}

func TestIngestTelnyxInboundSMSResolvesContactByFromNumber(t *testing.T) {
	org := organizations.Organization{ID: uuid.New()}
	orgs := &fakeOrgs{byTelnyx: map[string]organizations.Organization{"+15550001111": org}}
	store := newFakeContacts()
	contact := store.add(contacts.Contact{OrganizationID: org.ID, Phone: "+15551234567"})

	eventLog := &fakeEventLog{}
	svc := newTestService(orgs, store, eventLog, &fakeQueue{})

	result, err := svc.IngestTelnyx(context.Background(), telnyxPayload("message.received", "+15551234567", "+15550001111"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ContactID == nil || *result.ContactID != contact.ID {
		t.Fatalf("expected contact resolved by from number, got %v", result.ContactID)
	}
	if eventLog.events[0].EventType != timeline.TypeSMSReceived {
		t.Fatalf("expected sms_received, got %s", eventLog.events[0].EventType)
	}
}

func TestIngestManualWithExplicitContact(t *testing.T) {
	org := organizations.Organization{ID: uuid.New()}
	store := newFakeContacts()
	contact := store.add(contacts.Contact{OrganizationID: org.ID})
	eventLog := &fakeEventLog{}
	queue := &fakeQueue{}
	svc := newTestService(&fakeOrgs{}, store, eventLog, queue)

	result, err := svc.IngestManual(context.Background(), org.ID, ManualEvent{
		ContactID: &contact.ID,
		EventType: "support_ticket",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ContactID == nil || *result.ContactID != contact.ID {
		t.Fatalf("expected event attributed to contact, got %v", result.ContactID)
	}
	e := eventLog.events[0]
	if e.SourceSystem != timeline.SourceManual {
		t.Fatalf("expected manual source, got %s", e.SourceSystem)
	}
	if e.Description != fmt.Sprintf("Manual event: %s", "support_ticket") {
		t.Fatalf("unexpected description %q", e.Description)
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("expected scoring enqueued, got %d", len(queue.enqueued))
	}
}

func TestIngestManualRejectsForeignContact(t *testing.T) {
	orgA := organizations.Organization{ID: uuid.New()}
	orgB := organizations.Organization{ID: uuid.New()}
	store := newFakeContacts()
	foreign := store.add(contacts.Contact{OrganizationID: orgB.ID})
	eventLog := &fakeEventLog{}
	queue := &fakeQueue{}
	svc := newTestService(&fakeOrgs{}, store, eventLog, queue)

	_, err := svc.IngestManual(context.Background(), orgA.ID, ManualEvent{
		ContactID: &foreign.ID,
		EventType: "support_ticket",
	})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
	if len(eventLog.events) != 0 {
		t.Fatalf("event appended to another tenant's contact: %d", len(eventLog.events))
	}
	if foreign.LastActivityAt != nil {
		t.Fatal("foreign contact activity was touched")
	}
	if len(queue.enqueued) != 0 {
		t.Fatalf("scoring enqueued for foreign contact: %d", len(queue.enqueued))
	}
}

func TestIngestManualUnknownContact(t *testing.T) {
	org := organizations.Organization{ID: uuid.New()}
	eventLog := &fakeEventLog{}
	svc := newTestService(&fakeOrgs{}, newFakeContacts(), eventLog, &fakeQueue{})

	missing := uuid.New()
	_, err := svc.IngestManual(context.Background(), org.ID, ManualEvent{
		ContactID: &missing,
		EventType: "support_ticket",
	})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
	if len(eventLog.events) != 0 {
		t.Fatalf("event appended for missing contact: %d", len(eventLog.events))
	}
}
