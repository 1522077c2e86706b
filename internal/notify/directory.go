package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPDirectory looks up user emails through the auth service's admin
// endpoint, authenticated with the service key.
type HTTPDirectory struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

func NewHTTPDirectory(baseURL, serviceKey string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *HTTPDirectory) EmailFor(ctx context.Context, userID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		d.baseURL+"/admin/users/"+userID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+d.serviceKey)

	resp, err := d.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("directory lookup for user %s: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("directory returned status %d for user %s", resp.StatusCode, userID)
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.Email == "" {
		return "", fmt.Errorf("directory has no email for user %s", userID)
	}
	return payload.Email, nil
}
