package core

import (
	"net/url"
	"strings"

	"golang.org/x/text/language"
)

// ResolveLocale picks the best supported locale from ordered candidates.
// Candidates are tried in priority order; empty entries are skipped. Falls
// back to the first supported locale when nothing matches.
func ResolveLocale(supported []string, candidates ...string) string {
	tags := make([]language.Tag, 0, len(supported))
	names := make([]string, 0, len(supported))
	for _, locale := range supported {
		trimmed := strings.TrimSpace(locale)
		if trimmed == "" {
			continue
		}
		tag, err := language.Parse(trimmed)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		names = append(names, trimmed)
	}
	if len(tags) == 0 {
		return "en"
	}
	matcher := language.NewMatcher(tags)

	for _, candidate := range candidates {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" {
			continue
		}
		desired, err := language.Parse(trimmed)
		if err != nil {
			continue
		}
		_, index, confidence := matcher.Match(desired)
		if confidence == language.No {
			continue
		}
		return names[index]
	}
	return names[0]
}

// LocaleHintFromOrigin extracts a locale hint from the storefront origin URL,
// where the first path segment may carry a language prefix ("/de/checkout").
func LocaleHintFromOrigin(originURL string) string {
	trimmed := strings.TrimSpace(originURL)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	head := strings.TrimSpace(segments[0])
	if len(head) < 2 || len(head) > 5 {
		return ""
	}
	if _, parseErr := language.Parse(head); parseErr != nil {
		return ""
	}
	return head
}
