package scope

import (
	"regexp"
	"strings"
)

var (
	schemePrefixRe   = regexp.MustCompile(`(?i)^https?://`)
	wildcardPrefixRe = regexp.MustCompile(`\*(?:\s+\.?|\.)\s*`)

	// yeswehack publishes multi-TLD scopes such as "*.example.(com|net|fr)".
	tldGroupRe = regexp.MustCompile(`^(https?://|\*\.)?(.+)\.\(([^()]+)\)$`)

	intigritiTLDRe = regexp.MustCompile(`(?i)\.<tld>`)
	hackeroneTLDRe = regexp.MustCompile(`(?i)\.\(tld\)`)
)

// Normalize reduces a raw scope string published by platform to zero or more
// canonical values. The result is deduplicated and keeps first-seen order.
func Normalize(platform Platform, raw string) []string {
	value := strings.TrimSpace(raw)

	if strings.Contains(value, "*") {
		value = schemePrefixRe.ReplaceAllString(value, "")
	}

	value = wildcardPrefixRe.ReplaceAllString(value, "*.")
	value = strings.ReplaceAll(value, `\/`, "/")

	if strings.HasSuffix(value, "/*") {
		value = strings.TrimSuffix(value, "/*")
	} else {
		value = strings.TrimSuffix(value, "/")
	}
	if strings.HasPrefix(value, "*") && !strings.HasPrefix(value, "*.") {
		value = value[1:]
	}

	if strings.HasPrefix(value, ".") {
		value = "*" + value
	}

	value = strings.ToLower(value)
	value = strings.TrimSuffix(value, `\`)

	return compact(expandForPlatform(platform, value))
}

func expandForPlatform(platform Platform, value string) []string {
	switch platform {
	case PlatformYesWeHack:
		return expandTLDGroup(value)
	case PlatformIntigriti:
		value = intigritiTLDRe.ReplaceAllString(value, ".com")
		value = strings.ReplaceAll(value, ".*", ".com")
		if strings.Contains(value, " / ") {
			return strings.Split(value, " / ")
		}
		return []string{value}
	case PlatformHackerOne:
		value = strings.ReplaceAll(value, ".*", ".com")
		value = hackeroneTLDRe.ReplaceAllString(value, ".com")
		if strings.Contains(value, ",") {
			return strings.Split(value, ",")
		}
		return []string{value}
	case PlatformBugcrowd:
		if idx := strings.Index(value, " - "); idx >= 0 {
			value = value[:idx]
		}
		return []string{value}
	default:
		return []string{value}
	}
}

func expandTLDGroup(value string) []string {
	m := tldGroupRe.FindStringSubmatch(value)
	if m == nil {
		return []string{value}
	}

	prefix, middle := m[1], m[2]
	tlds := strings.Split(m[3], "|")
	out := make([]string, 0, len(tlds))
	for _, tld := range tlds {
		out = append(out, prefix+middle+"."+strings.TrimSpace(tld))
	}
	return out
}

func compact(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
