package ingest

import (
	"fmt"

	"selestial_backend/internal/timeline"
)

// Identity carries the contact identifiers a provider payload exposes.
// Resolution prefers the provider id over soft identifiers.
type Identity struct {
	GHLContactID string
	Email        string
	Phone        string
	FirstName    string
	LastName     string
}

func (i Identity) Empty() bool {
	return i.GHLContactID == "" && i.Email == "" && i.Phone == ""
}

// Normalized is one provider payload mapped onto the internal event model,
// together with the contact mutation it implies.
type Normalized struct {
	EventType     string
	SourceSystem  timeline.SourceSystem
	Description   string
	Metadata      map[string]any
	Identity      Identity
	LTVDeltaCents int64
	MarkChurned   bool
	UpdateProfile bool
}

// rawPayload wraps a decoded JSON object with tolerant accessors. Provider
// payloads vary in shape; a missing key reads as the zero value.
type rawPayload map[string]any

func (p rawPayload) sub(key string) rawPayload {
	if m, ok := p[key].(map[string]any); ok {
		return m
	}
	return rawPayload{}
}

func (p rawPayload) str(keys ...string) string {
	for _, key := range keys {
		if s, ok := p[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (p rawPayload) num(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// phoneField reads a Telnyx to/from field, which is either a bare string,
// an object with phone_number, or a one-element array of such objects.
func (p rawPayload) phoneField(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case map[string]any:
		return rawPayload(v).str("phone_number")
	case []any:
		if len(v) > 0 {
			if m, ok := v[0].(map[string]any); ok {
				return rawPayload(m).str("phone_number")
			}
		}
	}
	return ""
}

// stripeTenant holds the tenant lookup hints a billing payload carries.
type stripeTenant struct {
	AccountID     string
	CustomerEmail string
}

func normalizeStripe(payload rawPayload) (stripeTenant, Normalized) {
	object := payload.sub("data").sub("object")
	tenant := stripeTenant{
		AccountID:     payload.str("account"),
		CustomerEmail: object.str("customer_email"),
	}

	n := Normalized{
		SourceSystem: timeline.SourceStripe,
		Identity:     Identity{Email: object.str("customer_email", "receipt_email")},
		Metadata:     map[string]any(object),
	}

	switch payload.str("type") {
	case "payment_intent.succeeded":
		amountCents := int64(object.num("amount"))
		n.EventType = timeline.TypePaymentReceived
		n.Description = fmt.Sprintf("Payment received: $%.2f", float64(amountCents)/100)
		n.LTVDeltaCents = amountCents
		n.Metadata = map[string]any{
			"stripe_payment_intent": object.str("id"),
			"amount_cents":          amountCents,
			"currency":              object.str("currency"),
		}
	case "customer.subscription.deleted":
		n.EventType = timeline.TypeSubscriptionCancelled
		n.Description = "Subscription cancelled"
		n.MarkChurned = true
	case "charge.refunded":
		refundCents := int64(object.num("amount_refunded"))
		n.EventType = timeline.TypeRefundIssued
		n.Description = fmt.Sprintf("Refund issued: $%.2f", float64(refundCents)/100)
		n.LTVDeltaCents = -refundCents
	default:
		// Unknown billing events pass through with their raw type.
		n.EventType = payload.str("type")
		n.Description = fmt.Sprintf("Stripe event: %s", payload.str("type"))
	}
	return tenant, n
}

func normalizeGHL(payload rawPayload) (locationID string, n Normalized) {
	locationID = payload.str("locationId", "location_id")
	contact := payload.sub("contact")
	rawType := payload.str("type", "event")
	if rawType == "" {
		rawType = "unknown"
	}

	n = Normalized{
		SourceSystem: timeline.SourceGHL,
		Identity: Identity{
			GHLContactID: payload.str("contactId", "contact_id"),
			Email:        firstNonEmpty(payload.str("email"), contact.str("email")),
			Phone:        firstNonEmpty(payload.str("phone"), contact.str("phone")),
			FirstName:    firstNonEmpty(payload.str("firstName", "first_name"), contact.str("firstName")),
			LastName:     firstNonEmpty(payload.str("lastName", "last_name"), contact.str("lastName")),
		},
		Metadata: map[string]any(payload),
	}

	fullName := fmt.Sprintf("%s %s", n.Identity.FirstName, n.Identity.LastName)

	switch rawType {
	case "ContactCreate":
		n.EventType = timeline.TypeContactCreated
		n.Description = fmt.Sprintf("New contact: %s", fullName)
		n.UpdateProfile = true
	case "ContactUpdate":
		n.EventType = timeline.TypeContactUpdated
		n.Description = fmt.Sprintf("Contact updated: %s", fullName)
		n.UpdateProfile = true
	case "OpportunityStatusUpdate":
		n.EventType = timeline.TypePipelineMoved
		n.Description = fmt.Sprintf("Pipeline stage changed to: %s", payload.str("status", "stage"))
	case "FormSubmitted":
		n.EventType = timeline.TypeFormSubmitted
		form := payload.str("formName")
		if form == "" {
			form = "unknown form"
		}
		n.Description = fmt.Sprintf("Form submitted: %s", form)
	case "NoteCreate":
		n.EventType = timeline.TypeNoteAdded
		n.Description = "Note added to contact"
	case "TaskCreate":
		n.EventType = timeline.TypeTaskCreated
		title := payload.str("title")
		if title == "" {
			title = "untitled"
		}
		n.Description = fmt.Sprintf("Task created: %s", title)
	default:
		n.EventType = rawType
		n.Description = fmt.Sprintf("GHL event: %s", rawType)
	}
	return locationID, n
}

// telnyxTenant holds the phone numbers a telephony payload carries; either
// side may be the organization's own number.
type telnyxTenant struct {
	ToNumber   string
	FromNumber string
}

func normalizeTelnyx(payload rawPayload) (telnyxTenant, Normalized) {
	data := payload.sub("data")
	inner := data.sub("payload")
	eventType := data.str("event_type")

	tenant := telnyxTenant{
		ToNumber:   inner.phoneField("to"),
		FromNumber: inner.phoneField("from"),
	}

	// Inbound traffic comes from the contact's number; outbound goes to it.
	contactPhone := tenant.ToNumber
	if isInbound(eventType, inner.str("direction")) {
		contactPhone = tenant.FromNumber
	}

	n := Normalized{
		SourceSystem: timeline.SourceTelnyx,
		Identity:     Identity{Phone: contactPhone},
		Metadata:     map[string]any(inner),
	}

	switch eventType {
	case "message.received":
		n.EventType = timeline.TypeSMSReceived
		n.Description = fmt.Sprintf("SMS received from %s", tenant.FromNumber)
	case "message.sent":
		n.EventType = timeline.TypeSMSSent
		n.Description = fmt.Sprintf("SMS sent to %s", tenant.ToNumber)
	case "call.answered":
		n.EventType = timeline.TypeCallConnected
		n.Description = fmt.Sprintf("Call connected with %s", contactPhone)
	case "call.hangup":
		n.EventType = timeline.TypeCallCompleted
		n.Description = fmt.Sprintf("Call completed (%.0fs)", inner.num("duration_secs"))
	default:
		n.EventType = eventType
		n.Description = fmt.Sprintf("Telnyx event: %s", eventType)
	}
	return tenant, n
}

func isInbound(eventType, direction string) bool {
	if eventType == "message.received" {
		return true
	}
	return direction == "inbound" || direction == "incoming"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
