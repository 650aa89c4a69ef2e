// Package secretsvc fetches executor auth material (API keys, OAuth client
// secrets) referenced by name from config, via GCP Secret Manager.
//
// Grounded on internal/cloud/gcp/secrets.go's SecretManagerClient, with the
// project ID taken directly from config (internal/config's
// SecretsConfig.GCPProject) instead of probed from environment variables or
// the GCP metadata server — a local server process is told its project
// explicitly rather than inferring it from the VM it's running on.
package secretsvc

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"github.com/vibe-kanban/attemptcore/internal/apperror"
	"github.com/vibe-kanban/attemptcore/internal/security"
)

// Fetcher retrieves secret material by name.
type Fetcher interface {
	Fetch(ctx context.Context, secretPath string) (string, error)
	Close() error
}

// Client wraps the GCP Secret Manager client, caching resolved values for
// cacheTTL so a busy executor registry isn't re-fetching the same API key
// on every attempt it starts.
type Client struct {
	client    *secretmanager.Client
	projectID string
	cacheTTL  time.Duration
	limiter   *security.RateLimiter

	mu    sync.Mutex
	cache map[string]cachedSecret
}

// WithRateLimit caps how often any one secret path can be fetched from
// Secret Manager, guarding against a misbehaving executor registry
// hammering the API (and its per-access billing) on every attempt start.
func WithRateLimit(rate int, interval time.Duration) func(*Client) {
	return func(c *Client) { c.limiter = security.NewRateLimiter(rate, interval) }
}

type cachedSecret struct {
	value     string
	fetchedAt time.Time
}

// New constructs a Client for projectID. cacheTTL of zero disables caching.
// Apply WithRateLimit to also cap per-secret fetch rate.
func New(ctx context.Context, projectID string, cacheTTL time.Duration, opts ...func(*Client)) (*Client, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create secret manager client: %w", err)
	}
	c := &Client{
		client:    client,
		projectID: projectID,
		cacheTTL:  cacheTTL,
		cache:     make(map[string]cachedSecret),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch retrieves a secret. secretPath may be:
//   - projects/PROJECT/secrets/NAME/versions/VERSION (used as-is)
//   - projects/PROJECT/secrets/NAME (defaults to latest)
//   - NAME (resolved against c.projectID, latest version)
func (c *Client) Fetch(ctx context.Context, secretPath string) (string, error) {
	if c.cacheTTL > 0 {
		c.mu.Lock()
		if cached, ok := c.cache[secretPath]; ok && time.Since(cached.fetchedAt) < c.cacheTTL {
			c.mu.Unlock()
			return cached.value, nil
		}
		c.mu.Unlock()
	}

	if c.limiter != nil && !c.limiter.Allow(secretPath) {
		return "", apperror.New(apperror.Transient, "secret fetch rate limit exceeded for "+secretPath)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req := &secretmanagerpb.AccessSecretVersionRequest{Name: c.normalizePath(secretPath)}
	result, err := c.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("access secret version %s: %w", secretPath, err)
	}
	value := string(result.Payload.Data)

	if c.cacheTTL > 0 {
		c.mu.Lock()
		c.cache[secretPath] = cachedSecret{value: value, fetchedAt: time.Now()}
		c.mu.Unlock()
	}
	return value, nil
}

func (c *Client) normalizePath(secretPath string) string {
	if strings.HasPrefix(secretPath, "projects/") && strings.Contains(secretPath, "/versions/") {
		return secretPath
	}
	if strings.HasPrefix(secretPath, "projects/") && strings.Contains(secretPath, "/secrets/") {
		return secretPath + "/versions/latest"
	}
	name := path.Base(secretPath)
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.projectID, name)
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

var _ Fetcher = (*Client)(nil)
