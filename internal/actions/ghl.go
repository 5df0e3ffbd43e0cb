package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"selestial_backend/internal/organizations"

	"golang.org/x/time/rate"
)

const (
	ghlBaseURL    = "https://services.leadconnectorhq.com"
	ghlAPIVersion = "2021-07-28"
)

// GHLClient performs outbound calls against the CRM provider. Credentials
// are passed per call; one client serves every organization.
type GHLClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewGHLClient creates a CRM provider client with a shared rate limit.
func NewGHLClient() *GHLClient {
	return &GHLClient{
		baseURL: ghlBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

func (c *GHLClient) post(ctx context.Context, apiKey, path string, payload any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal ghl payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Version", ghlAPIVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ghl request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ghl returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}

// MovePipelineStage creates/moves an opportunity to the given pipeline stage.
func (c *GHLClient) MovePipelineStage(ctx context.Context, creds organizations.Credentials, ghlContactID, contactName, pipelineID, stageID string) error {
	return c.post(ctx, creds.GHLAPIKey, "/opportunities/", map[string]any{
		"pipelineId": pipelineID,
		"stageId":    stageID,
		"contactId":  ghlContactID,
		"locationId": creds.GHLLocationID,
		"name":       contactName,
		"status":     "open",
	})
}

// AddTag attaches a tag to the contact in the CRM.
func (c *GHLClient) AddTag(ctx context.Context, creds organizations.Credentials, ghlContactID, tag string) error {
	return c.post(ctx, creds.GHLAPIKey, "/contacts/"+ghlContactID+"/tags", map[string]any{
		"tags": []string{tag},
	})
}

// CreateTask creates a follow-up task on the contact in the CRM.
func (c *GHLClient) CreateTask(ctx context.Context, creds organizations.Credentials, ghlContactID, title, description string, dueDate time.Time) error {
	return c.post(ctx, creds.GHLAPIKey, "/contacts/"+ghlContactID+"/tasks", map[string]any{
		"title":     title,
		"body":      description,
		"dueDate":   dueDate.UTC().Format(time.RFC3339),
		"completed": false,
	})
}
