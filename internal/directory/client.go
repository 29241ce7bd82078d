// Package directory looks up recipient contact info from the identity
// service.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	appErr "github.com/careerlink/notifications/internal/errors"
)

// Client resolves user ids against the identity service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL string, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Resolve returns the user's email address. A user the identity service does
// not know yields a not-found error, which dispatch treats as permanent.
func (c *Client) Resolve(ctx context.Context, userID string) (string, error) {
	url := fmt.Sprintf("%s/internal/users/%s/contact", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build contact request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", appErr.NewUnavailable("identity service unreachable: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", appErr.NewNotFound("user %s", userID)
	case resp.StatusCode != http.StatusOK:
		return "", appErr.NewUnavailable("identity service returned %d", resp.StatusCode)
	}

	var data struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("failed to decode contact response: %w", err)
	}
	if data.Email == "" {
		return "", appErr.NewNotFound("user %s has no contact address", userID)
	}
	return data.Email, nil
}
