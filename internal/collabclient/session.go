package collabclient

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// Session is an anonymous collaborator identity issued by the server.
type Session struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// FetchSession obtains a fresh identity from the server's session endpoint.
// baseURL is the http(s) base, e.g. "http://localhost:8080".
func FetchSession(ctx context.Context, baseURL string) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/session", nil)
	if err != nil {
		return Session{}, fmt.Errorf("build session request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("fetch session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("fetch session: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, fmt.Errorf("read session response: %w", err)
	}

	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return Session{}, fmt.Errorf("decode session response: %w", err)
	}
	if s.Token == "" || s.UserID == "" {
		return Session{}, fmt.Errorf("session response missing token or user id")
	}
	return s, nil
}
