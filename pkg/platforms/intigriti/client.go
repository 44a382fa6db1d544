// Package intigriti fetches programs and domains from the Intigriti
// researcher API.
package intigriti

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
)

const (
	pageSize       = 500
	outOfScopeTier = "out of scope"
	closedStatus   = "closed"
)

// Client implements core.PlatformClient for Intigriti
type Client struct {
	baseURL string
	api     *httpclient.Client
	log     *logger.Logger
}

var _ core.PlatformClient = (*Client)(nil)

// NewClient creates an Intigriti client using a personal access token
func NewClient(cfg config.PlatformConfig, log *logger.Logger) *Client {
	log = log.WithPlatform(string(scope.PlatformIntigriti))
	return &Client{
		baseURL: cfg.BaseURL,
		api: httpclient.New(httpclient.Config{
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, httpclient.BearerToken(cfg.APIToken), log),
		log: log,
	}
}

func (c *Client) Name() string {
	return string(scope.PlatformIntigriti)
}

func (c *Client) ValidAccess(ctx context.Context) bool {
	var resp programsResponse
	if err := c.api.GetJSON(ctx, c.programsURL(1, 0), &resp); err != nil {
		c.log.Warnw("Intigriti access check failed", "error", err)
		return false
	}
	return true
}

// FetchPrograms lists every program, then loads each program's domains.
// Closed programs are skipped.
func (c *Client) FetchPrograms(ctx context.Context) ([]scope.RawProgram, error) {
	var records []programRecord
	for offset := 0; ; {
		var page programsResponse
		if err := c.api.GetJSON(ctx, c.programsURL(pageSize, offset), &page); err != nil {
			return nil, fmt.Errorf("failed to list programs: %w", err)
		}
		records = append(records, page.Records...)
		offset += len(page.Records)
		if len(page.Records) == 0 || offset >= page.MaxCount {
			break
		}
	}

	programs := make([]scope.RawProgram, 0, len(records))
	for _, r := range records {
		if strings.EqualFold(r.Status.Value, closedStatus) {
			continue
		}

		var detail programDetail
		if err := c.api.GetJSON(ctx, fmt.Sprintf("%s/programs/%s", c.baseURL, url.PathEscape(r.ID)), &detail); err != nil {
			return nil, fmt.Errorf("failed to get program %s: %w", r.Handle, err)
		}

		program := scope.RawProgram{
			Slug:   r.Handle,
			Name:   r.Name,
			Bounty: r.MaxBounty.Value > 0,
		}
		for _, d := range detail.Domains.Content {
			program.Scopes = append(program.Scopes, scope.RawScope{
				Value:     d.Endpoint,
				Type:      scope.MapAssetType(scope.PlatformIntigriti, d.Type.Value),
				IsInScope: !strings.EqualFold(d.Tier.Value, outOfScopeTier),
			})
		}
		programs = append(programs, program)
	}

	c.log.Infow("Fetched Intigriti programs", "programs", len(programs))
	return programs, nil
}

func (c *Client) programsURL(limit, offset int) string {
	return fmt.Sprintf("%s/programs?limit=%d&offset=%d", c.baseURL, limit, offset)
}
