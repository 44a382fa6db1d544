// Package bugcrowd fetches programs and their targets from the Bugcrowd API.
package bugcrowd

import (
	"context"
	"fmt"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
)

const (
	pageSize    = 100
	contentType = "application/vnd.bugcrowd+json"
)

// Client implements core.PlatformClient for Bugcrowd
type Client struct {
	baseURL string
	api     *httpclient.Client
	log     *logger.Logger
}

var _ core.PlatformClient = (*Client)(nil)

// NewClient creates a Bugcrowd client using token authentication
func NewClient(cfg config.PlatformConfig, log *logger.Logger) *Client {
	log = log.WithPlatform(string(scope.PlatformBugcrowd))
	return &Client{
		baseURL: cfg.BaseURL,
		api: httpclient.New(httpclient.Config{
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Accept:            contentType,
		}, httpclient.TokenAuth("Token", cfg.APIToken), log),
		log: log,
	}
}

func (c *Client) Name() string {
	return string(scope.PlatformBugcrowd)
}

func (c *Client) ValidAccess(ctx context.Context) bool {
	var resp programsResponse
	if err := c.api.GetJSON(ctx, c.programsURL(1, 0), &resp); err != nil {
		c.log.Warnw("Bugcrowd access check failed", "error", err)
		return false
	}
	return true
}

// FetchPrograms pages through the program listing. Targets are embedded in
// each program. Archived programs are skipped.
func (c *Client) FetchPrograms(ctx context.Context) ([]scope.RawProgram, error) {
	programs := make([]scope.RawProgram, 0)
	offset := 0
	for {
		var page programsResponse
		if err := c.api.GetJSON(ctx, c.programsURL(pageSize, offset), &page); err != nil {
			return nil, fmt.Errorf("failed to get programs: %w", err)
		}

		for _, p := range page.Programs {
			if p.State == "archived" {
				continue
			}
			programs = append(programs, convertProgram(p))
		}

		offset += len(page.Programs)
		if len(page.Programs) == 0 || offset >= page.Meta.TotalHits {
			break
		}
	}

	c.log.Infow("Fetched Bugcrowd programs", "programs", len(programs))
	return programs, nil
}

func (c *Client) programsURL(limit, offset int) string {
	return fmt.Sprintf("%s/programs?limit=%d&offset=%d&include=targets", c.baseURL, limit, offset)
}

func convertProgram(p programData) scope.RawProgram {
	program := scope.RawProgram{
		Slug:   p.Code,
		Name:   p.Name,
		Bounty: p.MaxPayout > 0,
	}
	for _, t := range p.Targets {
		program.Scopes = append(program.Scopes, scope.RawScope{
			Value:     t.Name,
			Type:      scope.MapAssetType(scope.PlatformBugcrowd, t.Category),
			IsInScope: t.InScope,
		})
	}
	return program
}
