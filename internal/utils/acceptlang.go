package utils

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLocale is used when nothing else matches.
const DefaultLocale = "en"

// DetermineLocale picks a locale from supported. An explicit query parameter
// wins over the Accept-Language header; the first supported locale is the fallback.
// Returned values are base language codes such as "en" or "zh".
func DetermineLocale(queryLang, acceptLang string, supported []string) string {
	if len(supported) == 0 {
		supported = []string{DefaultLocale}
	}
	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		if t, err := language.Parse(s); err == nil {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return DefaultLocale
	}
	matcher := language.NewMatcher(tags)

	pick := func(candidates []language.Tag) (string, bool) {
		if len(candidates) == 0 {
			return "", false
		}
		_, idx, conf := matcher.Match(candidates...)
		if conf == language.No {
			return "", false
		}
		return baseOf(tags[idx]), true
	}

	if q := strings.TrimSpace(queryLang); q != "" {
		if t, err := language.Parse(q); err == nil {
			if v, ok := pick([]language.Tag{t}); ok {
				return v
			}
		}
	}
	if acceptLang != "" {
		if prefs, _, err := language.ParseAcceptLanguage(acceptLang); err == nil {
			if v, ok := pick(prefs); ok {
				return v
			}
		}
	}
	return baseOf(tags[0])
}

func baseOf(t language.Tag) string {
	b, _ := t.Base()
	return b.String()
}
