package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultWeight applies to event types without an explicit entry. Any
// activity counts for something.
const defaultWeight = 1.0

// Weights maps normalized event types to their signed score contribution.
// Positive values are engagement signals, negative values adverse ones.
type Weights map[string]float64

// DefaultWeights returns the built-in weight table.
func DefaultWeights() Weights {
	return Weights{
		"payment_received":       10,
		"form_submitted":         5,
		"sms_received":           4,
		"call_completed":         6,
		"email_opened":           2,
		"login":                  3,
		"contact_updated":        1,
		"pipeline_moved":         3,
		"support_ticket":         -2,
		"subscription_cancelled": -20,
		"refund_issued":          -15,
	}
}

// For returns the weight for an event type, falling back to the default.
func (w Weights) For(eventType string) float64 {
	if v, ok := w[eventType]; ok {
		return v
	}
	return defaultWeight
}

// LoadWeights reads a YAML override file and merges it onto the defaults.
// An empty path returns the defaults unchanged.
//
// File format:
//
//	payment_received: 12
//	demo_booked: 8
func LoadWeights(path string) (Weights, error) {
	weights := DefaultWeights()
	if path == "" {
		return weights, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read score weights file: %w", err)
	}

	var overrides map[string]float64
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse score weights file: %w", err)
	}

	for eventType, weight := range overrides {
		weights[eventType] = weight
	}
	return weights, nil
}
