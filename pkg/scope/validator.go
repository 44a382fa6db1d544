package scope

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"
)

// Rejection reasons recorded on ignored assets.
const (
	ReasonNoDot             = "not a hostname or url"
	ReasonWhitespace        = "contains whitespace"
	ReasonForbiddenChar     = "contains forbidden characters"
	ReasonHashInHost        = "fragment marker in host"
	ReasonTooShort          = "too short"
	ReasonWildcardPrefix    = "wildcard not in leading position"
	ReasonMultipleWildcards = "multiple wildcards"
	ReasonWildcardPath      = "wildcard with path"
	ReasonWildcardHyphen    = "wildcard label starts with hyphen"
	ReasonWildcardSuffix    = "wildcard on public suffix"
)

const minTargetLength = 4

var schemeRe = regexp.MustCompile(`^https?://`)

// IsValidWebTarget reports whether a canonical value is structurally
// acceptable for its type. Only web and api values are checked.
func IsValidWebTarget(value string, t AssetType) bool {
	return RejectionReason(value, t) == ""
}

// RejectionReason returns why a canonical value is not a usable target, or ""
// when it is valid.
func RejectionReason(value string, t AssetType) string {
	if !t.IsWebLike() {
		return ""
	}

	if !strings.Contains(value, ".") && !schemeRe.MatchString(value) {
		return ReasonNoDot
	}
	if strings.ContainsFunc(value, unicode.IsSpace) {
		return ReasonWhitespace
	}
	if strings.ContainsAny(value, "!()[]<>%{}") {
		return ReasonForbiddenChar
	}
	if strings.ContainsAny(value, "#?") && strings.Contains(hostPart(value), "#") {
		return ReasonHashInHost
	}
	// a.bc is the shortest thing that looks like a domain and is still noise
	if len(value) <= minTargetLength {
		return ReasonTooShort
	}

	if strings.Contains(value, "*") {
		return wildcardRejection(value)
	}
	return ""
}

func wildcardRejection(value string) string {
	if !strings.HasPrefix(value, "*.") {
		return ReasonWildcardPrefix
	}
	if strings.Count(value, "*") != 1 {
		return ReasonMultipleWildcards
	}
	if strings.Contains(value, "/") {
		return ReasonWildcardPath
	}

	rest := value[2:]
	if strings.HasPrefix(rest, "-") {
		return ReasonWildcardHyphen
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(rest)
	if err != nil {
		return ReasonWildcardSuffix
	}
	if label, _, _ := strings.Cut(registrable, "."); label == "" {
		return ReasonWildcardSuffix
	}
	return ""
}

func hostPart(value string) string {
	host := schemeRe.ReplaceAllString(value, "")
	host, _, _ = strings.Cut(host, "/")
	host, _, _ = strings.Cut(host, "?")
	return host
}
