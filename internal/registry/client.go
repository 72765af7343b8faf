// Package registry is the HTTP client for the Semgrep web API: deployment
// lookup, findings listing, and rule retrieval.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/semgrep-mcp/semgrep-mcp/internal/config"
	"github.com/semgrep-mcp/semgrep-mcp/pkg/models"
)

// ruleSchemaURL serves the JSON-schema spec of the Semgrep rule syntax.
const ruleSchemaURL = "https://raw.githubusercontent.com/semgrep/semgrep-interfaces/refs/heads/main/rule_schema_v1.yaml"

// Client talks to the Semgrep web API. The deployment slug is looked up
// once per process and cached.
type Client struct {
	baseURL  string
	appToken string
	http     *http.Client

	mu   sync.Mutex
	slug string
}

// NewClient creates a registry client. appToken may be empty; endpoints
// that require it fail with a descriptive error.
func NewClient(cfg config.RegistryConfig, appToken string) *Client {
	return &Client{
		baseURL:  cfg.URL,
		appToken: appToken,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// DeploymentSlug resolves the deployment the app token belongs to,
// caching the result for the process lifetime.
func (c *Client) DeploymentSlug(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slug != "" {
		return c.slug, nil
	}
	if c.appToken == "" {
		return "", fmt.Errorf("no Semgrep app token configured; set SEMGREP_APP_TOKEN or log in with `semgrep login`")
	}

	body, err := c.get(ctx, c.baseURL+"/api/agent/deployments/current", true)
	if err != nil {
		return "", fmt.Errorf("failed to look up deployment: %w", err)
	}

	var resp struct {
		Deployment struct {
			Slug string `json:"slug"`
		} `json:"deployment"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode deployment response: %w", err)
	}
	if resp.Deployment.Slug == "" {
		return "", fmt.Errorf("app token is not associated with a deployment")
	}

	c.slug = resp.Deployment.Slug
	log.Info().Str("deployment", c.slug).Msg("Semgrep deployment resolved")
	return c.slug, nil
}

// FindingsQuery filters the findings listing.
type FindingsQuery struct {
	Status     string
	Severities []string
	PageSize   int
}

// Findings lists findings for the token's deployment.
func (c *Client) Findings(ctx context.Context, q FindingsQuery) ([]models.Finding, error) {
	slug, err := c.DeploymentSlug(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	for _, sev := range q.Severities {
		params.Add("severities", sev)
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	params.Set("page_size", strconv.Itoa(pageSize))

	endpoint := fmt.Sprintf("%s/api/v1/deployments/%s/findings?%s", c.baseURL, url.PathEscape(slug), params.Encode())
	body, err := c.get(ctx, endpoint, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}

	var resp struct {
		Findings []models.Finding `json:"findings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode findings response: %w", err)
	}
	return resp.Findings, nil
}

// RuleSchema fetches the YAML rule syntax schema.
func (c *Client) RuleSchema(ctx context.Context) (string, error) {
	body, err := c.get(ctx, ruleSchemaURL, false)
	if err != nil {
		return "", fmt.Errorf("failed to load rule schema: %w", err)
	}
	return string(body), nil
}

// RuleYAML fetches a registry rule by ID in YAML form.
func (c *Client) RuleYAML(ctx context.Context, ruleID string) (string, error) {
	body, err := c.get(ctx, c.baseURL+"/c/r/"+url.PathEscape(ruleID), false)
	if err != nil {
		return "", fmt.Errorf("failed to load rule %s: %w", ruleID, err)
	}
	return string(body), nil
}

// get performs a GET with bounded exponential-backoff retries on network
// failures and 5xx responses.
func (c *Client) get(ctx context.Context, endpoint string, authed bool) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if authed {
			req.Header.Set("Authorization", "Bearer "+c.appToken)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error: %s", resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status: %s", resp.Status))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}
