package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidWebTarget(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		typ    AssetType
		want   bool
		reason string
	}{
		{"plain domain", "example.com", AssetTypeWeb, true, ""},
		{"api type is checked", "api.example.com", AssetTypeAPI, true, ""},
		{"localhost url", "http://localhost", AssetTypeWeb, true, ""},
		{"url with fragment in path", "https://ex.com/path#frag", AssetTypeWeb, true, ""},
		{"wildcard", "*.example.com", AssetTypeWeb, true, ""},
		{"wildcard on multi label suffix", "*.example.co.uk", AssetTypeWeb, true, ""},
		{"too short", "a.bc", AssetTypeWeb, false, ReasonTooShort},
		{"too short api", "x.y", AssetTypeAPI, false, ReasonTooShort},
		{"bare word", "localhost", AssetTypeWeb, false, ReasonNoDot},
		{"whitespace", "foo bar.com", AssetTypeWeb, false, ReasonWhitespace},
		{"template placeholder", "{{company}}.com", AssetTypeWeb, false, ReasonForbiddenChar},
		{"angle brackets", "example.com/<id>", AssetTypeWeb, false, ReasonForbiddenChar},
		{"percent", "example.com/%20", AssetTypeWeb, false, ReasonForbiddenChar},
		{"hash in host", "https://ex#.com/?q", AssetTypeWeb, false, ReasonHashInHost},
		{"double wildcard", "*.sub*.x.com", AssetTypeWeb, false, ReasonMultipleWildcards},
		{"leading hyphen", "*.-x.com", AssetTypeWeb, false, ReasonWildcardHyphen},
		{"inner wildcard", "api.*.example.com", AssetTypeWeb, false, ReasonWildcardPrefix},
		{"wildcard with path", "*.example.com/path", AssetTypeWeb, false, ReasonWildcardPath},
		{"wildcard on public suffix", "*.co.uk", AssetTypeWeb, false, ReasonWildcardSuffix},
		{"wildcard on tld", "*.com", AssetTypeWeb, false, ReasonWildcardSuffix},
		{"source code always passes", "anything", AssetTypeSourceCode, true, ""},
		{"mobile bundle id", "com.example.app", AssetTypeMobile, true, ""},
		{"cidr skips wildcard rules", "*.sub*.x.com", AssetTypeCIDR, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidWebTarget(tt.value, tt.typ))
			assert.Equal(t, tt.reason, RejectionReason(tt.value, tt.typ))
		})
	}
}

func TestPipelineOnPublishedValues(t *testing.T) {
	var kept []string
	for _, v := range Normalize(PlatformHackerOne, "https://*.Example.com, *.co.uk, shop.example.(TLD)") {
		typ := ClassifyOverride(v, AssetTypeOther)
		if IsValidWebTarget(v, typ) {
			kept = append(kept, v)
		}
	}

	// the scheme is dropped because the raw string holds a wildcard
	assert.Equal(t, []string{"*.example.com", "shop.example.com"}, kept)
}
