package ingest

import (
	"testing"

	"selestial_backend/internal/timeline"
)

func TestNormalizeStripePayment(t *testing.T) {
	tenant, n := normalizeStripe(rawPayload{
		"type":    "payment_intent.succeeded",
		"account": "acct_1",
		"data": map[string]any{
			"object": map[string]any{
				"id":             "pi_1",
				"amount":         float64(12345),
				"currency":       "usd",
				"customer_email": "ada@example.com",
			},
		},
	})

	if tenant.AccountID != "acct_1" {
		t.Fatalf("expected account id, got %q", tenant.AccountID)
	}
	if n.EventType != timeline.TypePaymentReceived {
		t.Fatalf("expected payment_received, got %s", n.EventType)
	}
	if n.LTVDeltaCents != 12345 {
		t.Fatalf("expected 12345 cents, got %d", n.LTVDeltaCents)
	}
	if n.Description != "Payment received: $123.45" {
		t.Fatalf("unexpected description %q", n.Description)
	}
}

func TestNormalizeStripeUnknownTypePassesThrough(t *testing.T) {
	_, n := normalizeStripe(rawPayload{
		"type": "invoice.finalized",
		"data": map[string]any{"object": map[string]any{}},
	})
	if n.EventType != "invoice.finalized" {
		t.Fatalf("expected raw type passthrough, got %s", n.EventType)
	}
}

func TestNormalizeGHLEventMapping(t *testing.T) {
	cases := []struct {
		raw    string
		mapped string
	}{
		{"ContactCreate", timeline.TypeContactCreated},
		{"ContactUpdate", timeline.TypeContactUpdated},
		{"OpportunityStatusUpdate", timeline.TypePipelineMoved},
		{"FormSubmitted", timeline.TypeFormSubmitted},
		{"NoteCreate", timeline.TypeNoteAdded},
		{"TaskCreate", timeline.TypeTaskCreated},
	}
	for _, tc := range cases {
		_, n := normalizeGHL(rawPayload{"locationId": "loc_1", "type": tc.raw})
		if n.EventType != tc.mapped {
			t.Fatalf("%s: expected %s, got %s", tc.raw, tc.mapped, n.EventType)
		}
	}
}

func TestNormalizeGHLNestedContactFields(t *testing.T) {
	_, n := normalizeGHL(rawPayload{
		"locationId": "loc_1",
		"type":       "ContactUpdate",
		"contact": map[string]any{
			"email":     "ada@example.com",
			"firstName": "Ada",
		},
	})
	if n.Identity.Email != "ada@example.com" || n.Identity.FirstName != "Ada" {
		t.Fatalf("expected nested contact fields, got %+v", n.Identity)
	}
	if !n.UpdateProfile {
		t.Fatal("ContactUpdate must request a profile merge")
	}
}

func TestNormalizeTelnyxCallHangup(t *testing.T) {
	tenant, n := normalizeTelnyx(rawPayload{
		"data": map[string]any{
			"event_type": "call.hangup",
			"payload": map[string]any{
				"from":          map[string]any{"phone_number": "+15551234567"},
				"to":            "+15550001111",
				"direction":     "inbound",
				"duration_secs": float64(42),
			},
		},
	})

	if tenant.FromNumber != "+15551234567" || tenant.ToNumber != "+15550001111" {
		t.Fatalf("unexpected tenant numbers %+v", tenant)
	}
	if n.EventType != timeline.TypeCallCompleted {
		t.Fatalf("expected call_completed, got %s", n.EventType)
	}
	if n.Identity.Phone != "+15551234567" {
		t.Fatalf("inbound call must attribute the from number, got %q", n.Identity.Phone)
	}
	if n.Description != "Call completed (42s)" {
		t.Fatalf("unexpected description %q", n.Description)
	}
}
