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

const telnyxMessagesURL = "https://api.telnyx.com/v2/messages"

// TelnyxClient sends outbound SMS through the telephony provider.
type TelnyxClient struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
}

func NewTelnyxClient() *TelnyxClient {
	return &TelnyxClient{
		url:     telnyxMessagesURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// SendSMS delivers a single text message to the contact's phone number.
func (c *TelnyxClient) SendSMS(ctx context.Context, creds organizations.Credentials, toNumber, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"from": creds.TelnyxPhoneNumber,
		"to":   toNumber,
		"text": text,
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+creds.TelnyxAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telnyx request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telnyx returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
