// Package platforms builds the platform clients enabled in configuration.
package platforms

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/platforms/bugcrowd"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/platforms/hackerone"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/platforms/intigriti"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/platforms/yeswehack"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
)

// New returns the client for one platform.
func New(platform scope.Platform, cfg config.PlatformConfig, log *logger.Logger) (core.PlatformClient, error) {
	switch platform {
	case scope.PlatformHackerOne:
		return hackerone.NewClient(cfg, log), nil
	case scope.PlatformBugcrowd:
		return bugcrowd.NewClient(cfg, log), nil
	case scope.PlatformIntigriti:
		return intigriti.NewClient(cfg, log), nil
	case scope.PlatformYesWeHack:
		return yeswehack.NewClient(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
}

// Enabled builds a client for every enabled platform, in display order.
// An enabled platform without an API token is an error.
func Enabled(cfg *config.Config, log *logger.Logger) ([]core.PlatformClient, error) {
	var clients []core.PlatformClient
	for _, platform := range scope.KnownPlatforms {
		pc, _ := cfg.Platforms.Get(platform)
		if !pc.Enabled {
			continue
		}
		if pc.APIToken == "" {
			return nil, fmt.Errorf("platforms.%s.api_token is required when the platform is enabled", platform)
		}
		if platform == scope.PlatformHackerOne && pc.Username == "" {
			return nil, fmt.Errorf("platforms.%s.username is required when the platform is enabled", platform)
		}
		client, err := New(platform, pc, log)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, nil
}
