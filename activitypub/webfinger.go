package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

// handlePattern matches exactly @name@domain.
var handlePattern = regexp.MustCompile(`^@([^@\s]+)@([^@\s]+)$`)

// WebfingerResponse is the discovery document mapping an acct: resource to
// its actor id.
type WebfingerResponse struct {
	Subject string   `json:"subject"`
	Aliases []string `json:"aliases,omitempty"`
	Links   []struct {
		Rel  string `json:"rel"`
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"links"`
}

// ResolveHandle converts a human-readable @name@domain handle into the
// actor id it advertises via WebFinger. Only the first link with
// rel "self" and the activity+json type counts; anything else is an error.
func (s *Service) ResolveHandle(ctx context.Context, handle string) (string, error) {
	m := handlePattern.FindStringSubmatch(handle)
	if m == nil {
		return "", fmt.Errorf("malformed handle: %q", handle)
	}
	name, domainName := m[1], m[2]

	discoveryURL := fmt.Sprintf("%s://%s/.well-known/webfinger?resource=acct:%s@%s",
		s.scheme, domainName, name, domainName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "minipub/0.1 ActivityPub")

	resp, err := s.fetcher.Do(req)
	if err != nil {
		return "", fmt.Errorf("webfinger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("handle %s not discoverable: status %d", handle, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read webfinger response: %w", err)
	}

	var webfinger WebfingerResponse
	if err := json.Unmarshal(body, &webfinger); err != nil {
		return "", fmt.Errorf("failed to parse webfinger response: %w", err)
	}

	for _, link := range webfinger.Links {
		if link.Rel == "self" && link.Type == "application/activity+json" {
			return link.Href, nil
		}
	}

	return "", fmt.Errorf("handle %s has no activity+json self link", handle)
}
