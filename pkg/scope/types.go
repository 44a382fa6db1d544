package scope

import "strings"

// Platform identifies a bug bounty platform. The set is closed; anything else
// is treated as an unknown platform and passes through normalization untouched.
type Platform string

const (
	PlatformHackerOne Platform = "hackerone"
	PlatformBugcrowd  Platform = "bugcrowd"
	PlatformIntigriti Platform = "intigriti"
	PlatformYesWeHack Platform = "yeswehack"
)

// KnownPlatforms lists every platform with dedicated handling, in display order.
var KnownPlatforms = []Platform{
	PlatformHackerOne,
	PlatformBugcrowd,
	PlatformIntigriti,
	PlatformYesWeHack,
}

// ParsePlatform resolves a user supplied name ("HackerOne", "yes_we_hack") to a
// known platform. Matching ignores case and underscores.
func ParsePlatform(name string) (Platform, bool) {
	key := CanonicalName(name)
	for _, p := range KnownPlatforms {
		if CanonicalName(string(p)) == key {
			return p, true
		}
	}
	return "", false
}

// CanonicalName folds a platform name for comparison.
func CanonicalName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", ""))
}

func (p Platform) String() string {
	return string(p)
}

// DisplayName is the platform's brand spelling, or the raw key when unknown.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformHackerOne:
		return "HackerOne"
	case PlatformBugcrowd:
		return "Bugcrowd"
	case PlatformIntigriti:
		return "Intigriti"
	case PlatformYesWeHack:
		return "YesWeHack"
	default:
		return string(p)
	}
}

// AssetType is the fixed scope taxonomy.
type AssetType string

const (
	AssetTypeWeb        AssetType = "web"
	AssetTypeMobile     AssetType = "mobile"
	AssetTypeSourceCode AssetType = "source_code"
	AssetTypeExecutable AssetType = "executable"
	AssetTypeCIDR       AssetType = "cidr"
	AssetTypeHardware   AssetType = "hardware"
	AssetTypeOther      AssetType = "other"

	// AssetTypeAPI is accepted as a declared type and validated like web, but
	// platform mappings fold it into web before persistence.
	AssetTypeAPI AssetType = "api"
)

// AssetTypes lists the persisted types.
var AssetTypes = []AssetType{
	AssetTypeWeb,
	AssetTypeMobile,
	AssetTypeSourceCode,
	AssetTypeExecutable,
	AssetTypeCIDR,
	AssetTypeHardware,
	AssetTypeOther,
}

// IsWebLike reports whether structural validation applies to the type.
func (t AssetType) IsWebLike() bool {
	return t == AssetTypeWeb || t == AssetTypeAPI
}

// RawProgram is a program as reported by a platform client, before any
// normalization.
type RawProgram struct {
	Slug   string     `json:"slug"`
	Name   string     `json:"name"`
	Bounty bool       `json:"bounty"`
	Scopes []RawScope `json:"scopes"`
}

// RawScope is a single scope entry as reported by a platform client. Type is
// the declared type already mapped onto the fixed taxonomy.
type RawScope struct {
	Value     string    `json:"value"`
	Type      AssetType `json:"type"`
	IsInScope bool      `json:"is_in_scope"`
}

// Category returns "in" or "out".
func (s RawScope) Category() string {
	return Category(s.IsInScope)
}

// Category maps an in-scope flag onto the history category label.
func Category(inScope bool) string {
	if inScope {
		return "in"
	}
	return "out"
}
