package activitypub

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"code.superseriousbusiness.org/httpsig"
)

// Client issues outbound HTTP requests signed with the local actor's
// private key. Apart from the Date header, which is taken from the
// injectable clock, a request built from the same inputs signs to the same
// bytes every time.
type Client struct {
	keyID      string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(privateKey *rsa.PrivateKey, keyID string) *Client {
	return &Client{
		keyID:      keyID,
		privateKey: privateKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// BuildRequest constructs a signed request. The signed header set is
// (request-target), host and date, plus digest when a body is present.
func (c *Client) BuildRequest(ctx context.Context, method string, url string, body []byte, contentType string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/ld+json")
	req.Header.Set("User-Agent", "minipub/0.1 ActivityPub")
	req.Header.Set("Date", c.now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	headers := []string{httpsig.RequestTarget, "host", "date"}
	if body != nil {
		hash := sha256.Sum256(body)
		req.Header.Set("Digest", "SHA-256="+base64.StdEncoding.EncodeToString(hash[:]))
		headers = append(headers, "digest")
	}

	if err := SignRequest(req, c.privateKey, c.keyID, headers); err != nil {
		return nil, err
	}

	return req, nil
}

// Send builds a signed request and performs it. The caller owns the
// response body.
func (c *Client) Send(ctx context.Context, method string, url string, body []byte, contentType string) (*http.Response, error) {
	req, err := c.BuildRequest(ctx, method, url, body, contentType)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// SendActivity delivers an activity document to a remote inbox, one
// attempt, no retry. A non-2xx status is an error.
func (c *Client) SendActivity(ctx context.Context, activity interface{}, inboxURI string) error {
	activityJSON, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	resp, err := c.Send(ctx, http.MethodPost, inboxURI, activityJSON, "application/activity+json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}

	return nil
}

// SignRequest signs an outgoing HTTP request with the given private key.
// keyId format: "https://example.com/users/alice#main-key"
func SignRequest(req *http.Request, privateKey *rsa.PrivateKey, keyId string, headers []string) error {
	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		headers,
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}

	// Digest is computed by the caller, so the body passed here stays nil.
	return signer.SignRequest(privateKey, keyId, req, nil)
}
