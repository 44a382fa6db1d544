package scope

import (
	"regexp"
	"strings"
)

var (
	cidrRe       = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}/\d{1,2}$`)
	sourceCodeRe = regexp.MustCompile(`^https?://(www\.)?(github\.com|gitlab\.com|marketplace\.atlassian\.com)(/|$)`)
	appStoreRe   = regexp.MustCompile(`^https?://(apps\.apple\.com|itunes\.apple\.com|play\.google\.com)(/|$)`)
	extensionRe  = regexp.MustCompile(`^https?://(chrome\.google\.com/webstore|chromewebstore\.google\.com)(/|$)`)
)

// ClassifyOverride corrects the declared type of a canonical value when the
// value itself makes the type obvious. The first matching rule wins.
func ClassifyOverride(value string, declared AssetType) AssetType {
	switch {
	case cidrRe.MatchString(value):
		return AssetTypeCIDR
	case sourceCodeRe.MatchString(value):
		return AssetTypeSourceCode
	case appStoreRe.MatchString(value):
		return AssetTypeMobile
	case extensionRe.MatchString(value):
		return AssetTypeExecutable
	case strings.HasPrefix(value, "*."):
		return AssetTypeWeb
	default:
		return declared
	}
}

// platformTypes maps each platform's own asset category onto the fixed
// taxonomy. Keys are folded with foldTypeKey.
var platformTypes = map[Platform]map[string]AssetType{
	PlatformHackerOne: {
		"url":                      AssetTypeWeb,
		"wildcard":                 AssetTypeWeb,
		"domain":                   AssetTypeWeb,
		"api":                      AssetTypeWeb,
		"ip_address":               AssetTypeWeb,
		"cidr":                     AssetTypeCIDR,
		"google_play_app_id":       AssetTypeMobile,
		"apple_store_app_id":       AssetTypeMobile,
		"testflight":               AssetTypeMobile,
		"other_apk":                AssetTypeMobile,
		"other_ipa":                AssetTypeMobile,
		"windows_app_store_app_id": AssetTypeExecutable,
		"downloadable_executables": AssetTypeExecutable,
		"source_code":              AssetTypeSourceCode,
		"smart_contract":           AssetTypeSourceCode,
		"hardware":                 AssetTypeHardware,
	},
	PlatformBugcrowd: {
		"website":    AssetTypeWeb,
		"api":        AssetTypeWeb,
		"network":    AssetTypeCIDR,
		"android":    AssetTypeMobile,
		"ios":        AssetTypeMobile,
		"mobile":     AssetTypeMobile,
		"code":       AssetTypeSourceCode,
		"executable": AssetTypeExecutable,
		"hardware":   AssetTypeHardware,
		"iot":        AssetTypeHardware,
	},
	PlatformIntigriti: {
		"url":      AssetTypeWeb,
		"wildcard": AssetTypeWeb,
		"iprange":  AssetTypeCIDR,
		"android":  AssetTypeMobile,
		"ios":      AssetTypeMobile,
		"device":   AssetTypeHardware,
	},
	PlatformYesWeHack: {
		"web_application":            AssetTypeWeb,
		"wildcard":                   AssetTypeWeb,
		"api":                        AssetTypeWeb,
		"ip_address":                 AssetTypeWeb,
		"ip_range":                   AssetTypeCIDR,
		"mobile_application":         AssetTypeMobile,
		"mobile_application_android": AssetTypeMobile,
		"mobile_application_ios":     AssetTypeMobile,
		"application":                AssetTypeExecutable,
		"source_code":                AssetTypeSourceCode,
		"hardware":                   AssetTypeHardware,
	},
}

// MapAssetType translates a platform specific category into an AssetType.
// Unknown categories become AssetTypeOther.
func MapAssetType(platform Platform, rawType string) AssetType {
	if t, ok := platformTypes[platform][foldTypeKey(rawType)]; ok {
		return t
	}
	return AssetTypeOther
}

func foldTypeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
