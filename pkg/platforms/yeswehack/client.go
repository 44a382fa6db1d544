// Package yeswehack fetches programs and scopes from the YesWeHack API.
package yeswehack

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

// Client implements core.PlatformClient for YesWeHack
type Client struct {
	baseURL string
	api     *httpclient.Client
	log     *logger.Logger
}

var _ core.PlatformClient = (*Client)(nil)

// NewClient creates a YesWeHack client using a bearer token
func NewClient(cfg config.PlatformConfig, log *logger.Logger) *Client {
	log = log.WithPlatform(string(scope.PlatformYesWeHack))
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
	return string(scope.PlatformYesWeHack)
}

func (c *Client) ValidAccess(ctx context.Context) bool {
	var user map[string]interface{}
	if err := c.api.GetJSON(ctx, c.baseURL+"/user", &user); err != nil {
		c.log.Warnw("YesWeHack access check failed", "error", err)
		return false
	}
	return true
}

// FetchPrograms pages through the program list and loads each program's
// scopes. Out of scope entries are plain strings in the detail payload.
func (c *Client) FetchPrograms(ctx context.Context) ([]scope.RawProgram, error) {
	var items []programItem
	for page := 1; ; page++ {
		var resp programsResponse
		if err := c.api.GetJSON(ctx, fmt.Sprintf("%s/programs?page=%d", c.baseURL, page), &resp); err != nil {
			return nil, fmt.Errorf("failed to list programs: %w", err)
		}
		items = append(items, resp.Items...)
		if len(resp.Items) == 0 || page >= resp.Pagination.NbPages {
			break
		}
	}

	programs := make([]scope.RawProgram, 0, len(items))
	for _, item := range items {
		if item.Disabled {
			continue
		}

		var detail programDetail
		if err := c.api.GetJSON(ctx, fmt.Sprintf("%s/programs/%s", c.baseURL, url.PathEscape(item.Slug)), &detail); err != nil {
			return nil, fmt.Errorf("failed to get program %s: %w", item.Slug, err)
		}

		program := scope.RawProgram{
			Slug:   item.Slug,
			Name:   item.Title,
			Bounty: item.Bounty,
		}
		for _, s := range detail.Scopes {
			program.Scopes = append(program.Scopes, scope.RawScope{
				Value:     s.Scope,
				Type:      scope.MapAssetType(scope.PlatformYesWeHack, s.ScopeType),
				IsInScope: true,
			})
		}
		for _, value := range detail.OutOfScope {
			program.Scopes = append(program.Scopes, scope.RawScope{
				Value:     value,
				Type:      scope.AssetTypeOther,
				IsInScope: false,
			})
		}
		programs = append(programs, program)
	}

	c.log.Infow("Fetched YesWeHack programs", "programs", len(programs))
	return programs, nil
}
