// Package hackerone fetches programs and structured scopes from the
// HackerOne hacker API.
package hackerone

import (
	"context"
	"fmt"
	"net/url"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
)

const pageSize = 100

// Client implements core.PlatformClient for HackerOne
type Client struct {
	baseURL string
	api     *httpclient.Client
	log     *logger.Logger
}

var _ core.PlatformClient = (*Client)(nil)

// NewClient creates a HackerOne client authenticating with username and
// API token over basic auth
func NewClient(cfg config.PlatformConfig, log *logger.Logger) *Client {
	log = log.WithPlatform(string(scope.PlatformHackerOne))
	return &Client{
		baseURL: cfg.BaseURL,
		api: httpclient.New(httpclient.Config{
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, httpclient.BasicAuth(cfg.Username, cfg.APIToken), log),
		log: log,
	}
}

func (c *Client) Name() string {
	return string(scope.PlatformHackerOne)
}

// ValidAccess checks the credentials with a one item program listing
func (c *Client) ValidAccess(ctx context.Context) bool {
	var resp programsResponse
	if err := c.api.GetJSON(ctx, c.programsURL(1), &resp); err != nil {
		c.log.Warnw("HackerOne access check failed", "error", err)
		return false
	}
	return true
}

// FetchPrograms walks every page of the program listing, then every page of
// each program's structured scopes
func (c *Client) FetchPrograms(ctx context.Context) ([]scope.RawProgram, error) {
	var listed []programData
	next := c.programsURL(pageSize)
	for next != "" {
		var page programsResponse
		if err := c.api.GetJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("failed to list programs: %w", err)
		}
		listed = append(listed, page.Data...)
		next = page.Links.Next
	}

	programs := make([]scope.RawProgram, 0, len(listed))
	for _, p := range listed {
		if p.Attributes.SubmissionState == "disabled" {
			continue
		}
		scopes, err := c.fetchScopes(ctx, p.Attributes.Handle)
		if err != nil {
			return nil, fmt.Errorf("failed to get scopes for %s: %w", p.Attributes.Handle, err)
		}
		programs = append(programs, scope.RawProgram{
			Slug:   p.Attributes.Handle,
			Name:   p.Attributes.Name,
			Bounty: p.Attributes.OffersBounties,
			Scopes: scopes,
		})
	}

	c.log.Infow("Fetched HackerOne programs", "programs", len(programs))
	return programs, nil
}

func (c *Client) fetchScopes(ctx context.Context, handle string) ([]scope.RawScope, error) {
	var scopes []scope.RawScope
	next := fmt.Sprintf("%s/hackers/programs/%s/structured_scopes?page%%5Bsize%%5D=%d",
		c.baseURL, url.PathEscape(handle), pageSize)
	for next != "" {
		var page scopesResponse
		if err := c.api.GetJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, s := range page.Data {
			scopes = append(scopes, convertScope(s))
		}
		next = page.Links.Next
	}
	return scopes, nil
}

func (c *Client) programsURL(size int) string {
	return fmt.Sprintf("%s/hackers/programs?page%%5Bsize%%5D=%d", c.baseURL, size)
}

func convertScope(s scopeData) scope.RawScope {
	return scope.RawScope{
		Value:     s.Attributes.AssetIdentifier,
		Type:      scope.MapAssetType(scope.PlatformHackerOne, s.Attributes.AssetType),
		IsInScope: s.Attributes.EligibleForSubmission,
	}
}
