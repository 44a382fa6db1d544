package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyOverride(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		declared AssetType
		want     AssetType
	}{
		{"cidr beats declared web", "1.2.3.4/24", AssetTypeWeb, AssetTypeCIDR},
		{"class a cidr", "10.0.0.0/8", AssetTypeOther, AssetTypeCIDR},
		{"bare ip keeps declared", "1.2.3.4", AssetTypeWeb, AssetTypeWeb},
		{"github repository", "https://github.com/a/b", AssetTypeOther, AssetTypeSourceCode},
		{"github with www", "https://www.github.com/org", AssetTypeWeb, AssetTypeSourceCode},
		{"gitlab", "http://gitlab.com/group/project", AssetTypeWeb, AssetTypeSourceCode},
		{"atlassian marketplace", "https://marketplace.atlassian.com/apps/1", AssetTypeWeb, AssetTypeSourceCode},
		{"lookalike host keeps declared", "https://github.company.com", AssetTypeWeb, AssetTypeWeb},
		{"play store", "https://play.google.com/store/apps/details?id=com.x", AssetTypeWeb, AssetTypeMobile},
		{"app store", "https://apps.apple.com/us/app/x/id1", AssetTypeOther, AssetTypeMobile},
		{"itunes", "https://itunes.apple.com/app/id1", AssetTypeOther, AssetTypeMobile},
		{"chrome webstore legacy", "https://chrome.google.com/webstore/detail/abc", AssetTypeWeb, AssetTypeExecutable},
		{"chrome webstore", "https://chromewebstore.google.com/detail/abc", AssetTypeWeb, AssetTypeExecutable},
		{"wildcard forces web", "*.x.com", AssetTypeOther, AssetTypeWeb},
		{"plain value keeps declared", "com.example.app", AssetTypeMobile, AssetTypeMobile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyOverride(tt.value, tt.declared))
		})
	}
}

func TestMapAssetType(t *testing.T) {
	tests := []struct {
		platform Platform
		raw      string
		want     AssetType
	}{
		{PlatformHackerOne, "WILDCARD", AssetTypeWeb},
		{PlatformHackerOne, "URL", AssetTypeWeb},
		{PlatformHackerOne, "CIDR", AssetTypeCIDR},
		{PlatformHackerOne, "GOOGLE_PLAY_APP_ID", AssetTypeMobile},
		{PlatformHackerOne, "SOURCE_CODE", AssetTypeSourceCode},
		{PlatformHackerOne, "AI_MODEL", AssetTypeOther},
		{PlatformBugcrowd, "website", AssetTypeWeb},
		{PlatformBugcrowd, "api", AssetTypeWeb},
		{PlatformBugcrowd, "android", AssetTypeMobile},
		{PlatformIntigriti, "IpRange", AssetTypeCIDR},
		{PlatformIntigriti, "Url", AssetTypeWeb},
		{PlatformYesWeHack, "web-application", AssetTypeWeb},
		{PlatformYesWeHack, "mobile-application-ios", AssetTypeMobile},
		{Platform("custom"), "website", AssetTypeOther},
	}

	for _, tt := range tests {
		t.Run(string(tt.platform)+"/"+tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, MapAssetType(tt.platform, tt.raw))
		})
	}
}
