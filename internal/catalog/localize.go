package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// ResolveLocalized picks a label for requested from an i18n map. The lookup
// order is the requested locale, its base language, the default locale, ja, and
// finally the lexically first non-blank key.
func ResolveLocalized(values map[string]string, requested, defaultLocale string) string {
	if len(values) == 0 {
		return ""
	}
	if value, ok := lookupLocale(values, requested); ok {
		return value
	}
	if base := baseLanguage(requested); base != "" {
		if value, ok := lookupLocale(values, base); ok {
			return value
		}
	}
	if value, ok := lookupLocale(values, defaultLocale); ok {
		return value
	}
	if value, ok := lookupLocale(values, DefaultLocale); ok {
		return value
	}

	keys := make([]string, 0, len(values))
	for key, value := range values {
		if strings.TrimSpace(value) != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return strings.TrimSpace(values[keys[0]])
}

func lookupLocale(values map[string]string, target string) (string, bool) {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return "", false
	}
	for key, value := range values {
		if strings.ToLower(strings.TrimSpace(key)) != target {
			continue
		}
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed, true
		}
	}
	return "", false
}

// baseLanguage returns "en" for "en-us"; "" when the tag has no region or
// script part or cannot be parsed.
func baseLanguage(locale string) string {
	locale = strings.TrimSpace(locale)
	if !strings.Contains(locale, "-") {
		return ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return strings.ToLower(base.String())
}
