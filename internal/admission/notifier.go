package admission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier asks the external AI service to join a session over its
// WebSocket endpoint. Implements interfaces.Notifier.
type Notifier struct {
	serviceURL string
	client     *http.Client
}

// NewNotifier creates a notifier targeting the AI service join endpoint.
func NewNotifier(serviceURL string) *Notifier {
	return &Notifier{
		serviceURL: serviceURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type joinRequest struct {
	SessionID    string `json:"session_id"`
	WebsocketURL string `json:"websocket_url"`
}

// Notify posts the join request. Callers treat failures as best-effort:
// the error is for logging, never for session state.
func (n *Notifier) Notify(ctx context.Context, sessionID, websocketURL string) error {
	body, err := json.Marshal(joinRequest{
		SessionID:    sessionID,
		WebsocketURL: websocketURL,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal join request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.serviceURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build join request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("AI service unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("AI service returned status %d", resp.StatusCode)
	}

	return nil
}
