package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"phishguard-backend/internal/models"
)

// SMSTransport sends artifacts through an HTTP SMS gateway. With no gateway
// URL configured it runs in dev mode and logs the message instead.
type SMSTransport struct {
	gatewayURL string
	apiKey     string
	client     *http.Client
	devMode    bool
}

type smsGatewayRequest struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
}

func NewSMSTransport(gatewayURL, apiKey string) *SMSTransport {
	devMode := gatewayURL == ""
	if devMode {
		log.Println("⚠ SMS transport running in DEV MODE (logging to console)")
	}
	return &SMSTransport{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 30 * time.Second},
		devMode:    devMode,
	}
}

func (t *SMSTransport) Channel() models.Channel {
	return models.ChannelSMS
}

func (t *SMSTransport) Send(ctx context.Context, recipient models.Recipient, artifact *models.ContentArtifact) error {
	if !validPhoneNumber(recipient.Address) {
		return fmt.Errorf("%s: %q is not a phone number", ErrCategoryInvalidAddress, recipient.Address)
	}

	if t.devMode {
		log.Printf("📱 [DEV SMS] To: %s | %s", recipient.Address, artifact.Body)
		return nil
	}

	payload, err := json.Marshal(smsGatewayRequest{
		Recipients: []string{recipient.Address},
		Message:    artifact.Body,
	})
	if err != nil {
		return fmt.Errorf("%s: marshal gateway request: %v", ErrCategoryTransportDown, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.gatewayURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("%s: build gateway request: %v", ErrCategoryTransportDown, err)
	}
	req.Header.Set("x-api-key", t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		log.Printf("❌ SMS gateway request for %s failed: %v", recipient.Address, err)
		return fmt.Errorf("%s: gateway unreachable", ErrCategoryTransportDown)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: gateway throttled the request", ErrCategoryThrottled)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("❌ SMS gateway returned status %d for %s", resp.StatusCode, recipient.Address)
		return fmt.Errorf("%s: gateway returned status %d", ErrCategoryTransportDown, resp.StatusCode)
	}

	log.Printf("📱 SMS sent to %s", recipient.Address)
	return nil
}

// validPhoneNumber accepts E.164-style numbers with an optional leading plus.
func validPhoneNumber(s string) bool {
	if s == "" {
		return false
	}
	digits := 0
	for i, r := range s {
		switch {
		case r == '+' && i == 0:
		case r >= '0' && r <= '9':
			digits++
		default:
			return false
		}
	}
	return digits >= 7
}
