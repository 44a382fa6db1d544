package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		platform Platform
		raw      string
		want     []string
	}{
		{
			name:     "intigriti tld placeholder and separator",
			platform: PlatformIntigriti,
			raw:      "a.com / b.<tld>",
			want:     []string{"a.com", "b.com"},
		},
		{
			name:     "intigriti uppercase tld placeholder",
			platform: PlatformIntigriti,
			raw:      "shop.example.<TLD>",
			want:     []string{"shop.example.com"},
		},
		{
			name:     "hackerone star tld and comma list",
			platform: PlatformHackerOne,
			raw:      "x.*,y.com",
			want:     []string{"x.com", "y.com"},
		},
		{
			name:     "hackerone parenthesised tld",
			platform: PlatformHackerOne,
			raw:      "example.(TLD)",
			want:     []string{"example.com"},
		},
		{
			name:     "hackerone duplicates collapse",
			platform: PlatformHackerOne,
			raw:      "a.com, b.com, a.com",
			want:     []string{"a.com", "b.com"},
		},
		{
			name:     "yeswehack tld group expansion",
			platform: PlatformYesWeHack,
			raw:      "*.ex.(com|net)",
			want:     []string{"*.ex.com", "*.ex.net"},
		},
		{
			name:     "yeswehack tld group keeps scheme prefix",
			platform: PlatformYesWeHack,
			raw:      "https://app.ex.(fr|de)",
			want:     []string{"https://app.ex.fr", "https://app.ex.de"},
		},
		{
			name:     "yeswehack plain value passes through",
			platform: PlatformYesWeHack,
			raw:      "www.ex.com",
			want:     []string{"www.ex.com"},
		},
		{
			name:     "bugcrowd trailing description",
			platform: PlatformBugcrowd,
			raw:      "api.example.com - Main API",
			want:     []string{"api.example.com"},
		},
		{
			name:     "leading dot becomes wildcard",
			platform: PlatformBugcrowd,
			raw:      ".foo.com",
			want:     []string{"*.foo.com"},
		},
		{
			name:     "leading dot on unknown platform",
			platform: Platform("custom"),
			raw:      ".foo.com",
			want:     []string{"*.foo.com"},
		},
		{
			name:     "wildcard url loses scheme and slash",
			platform: PlatformHackerOne,
			raw:      "https://*.example.com/",
			want:     []string{"*.example.com"},
		},
		{
			name:     "spaced wildcard",
			platform: PlatformBugcrowd,
			raw:      "* .example.com",
			want:     []string{"*.example.com"},
		},
		{
			name:     "wildcard dot space",
			platform: PlatformBugcrowd,
			raw:      "*. example.com",
			want:     []string{"*.example.com"},
		},
		{
			name:     "wildcard without dot",
			platform: PlatformBugcrowd,
			raw:      "* example.com",
			want:     []string{"*.example.com"},
		},
		{
			name:     "stray leading star dropped",
			platform: PlatformBugcrowd,
			raw:      "*example.com",
			want:     []string{"example.com"},
		},
		{
			name:     "escaped slashes and trailing slash",
			platform: PlatformBugcrowd,
			raw:      `https:\/\/example.com\/path\/`,
			want:     []string{"https://example.com/path"},
		},
		{
			name:     "trailing path wildcard",
			platform: PlatformBugcrowd,
			raw:      "example.com/*",
			want:     []string{"example.com"},
		},
		{
			name:     "lowercase and trailing backslash",
			platform: PlatformBugcrowd,
			raw:      "  EXAMPLE.com\\ ",
			want:     []string{"example.com"},
		},
		{
			name:     "unknown platform is identity after common steps",
			platform: Platform("custom"),
			raw:      "x.*",
			want:     []string{"x.*"},
		},
		{
			name:     "blank input",
			platform: PlatformHackerOne,
			raw:      "   ",
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.platform, tt.raw))
		})
	}
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		input string
		want  Platform
		ok    bool
	}{
		{"hackerone", PlatformHackerOne, true},
		{"HackerOne", PlatformHackerOne, true},
		{"yes_we_hack", PlatformYesWeHack, true},
		{" Bug_Crowd ", PlatformBugcrowd, true},
		{"INTIGRITI", PlatformIntigriti, true},
		{"synack", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePlatform(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
