package extractors

import (
	"regexp"
	"sort"
	"strings"
)

// Israeli phone shapes recognized in free text.
var (
	intlPhonePattern  = regexp.MustCompile(`\+972[\s\-]?\d{1,2}[\s\-]?\d{3}[\s\-]?\d{4}`)
	localPhonePattern = regexp.MustCompile(`0\d{1,2}[\s\-]?\d{3}[\s\-]?\d{4}`)
	barePhonePattern  = regexp.MustCompile(`\d{3}[\s\-]?\d{3}[\s\-]?\d{4}`)

	urlSpanPattern = regexp.MustCompile(`(?i)https?://\S+|www\.\S+|[a-zA-Z0-9-]+\.(com|net|org|co\.il|gov|io|app)\S*`)

	nonPhoneChars = regexp.MustCompile(`[^\d+\-]`)
	nonDigits     = regexp.MustCompile(`[^\d]`)
)

// NormalizePhone canonicalizes a phone number string.
// Numbers starting with +972 keep the international form with dash separators;
// local 10-digit numbers starting with 0 are converted to +972-XXX-XXXX.
func NormalizePhone(raw string) string {
	phone := nonPhoneChars.ReplaceAllString(strings.TrimSpace(raw), "")
	switch {
	case strings.HasPrefix(phone, "+972"):
		phone = strings.ReplaceAll(phone, " ", "-")
	case strings.HasPrefix(phone, "0"):
		if len(strings.ReplaceAll(phone, "-", "")) == 10 {
			digits := strings.ReplaceAll(phone, "-", "")
			phone = "+972-" + digits[1:4] + "-" + digits[4:]
		}
	}
	return phone
}

// CountDigits returns the number of digit characters in a phone string.
func CountDigits(phone string) int {
	return len(nonDigits.ReplaceAllString(phone, ""))
}

// phoneMatch pairs a raw in-text candidate with its normalized form and
// the byte span it was found at. The span addresses the raw text, which is
// what name and context heuristics must slice.
type phoneMatch struct {
	raw        string
	normalized string
	start, end int
}

// findPhoneMatches locates Israeli phone numbers in free text, excluding
// digit runs that live inside URLs or look like social-media IDs and query
// parameters. One match per distinct normalized number, ordered by the
// position of its first occurrence.
func findPhoneMatches(text string) []phoneMatch {
	urlSpans := urlSpanPattern.FindAllStringIndex(text, -1)

	inURL := func(start, end int) bool {
		for _, span := range urlSpans {
			if (span[0] <= start && start <= span[1]) || (span[0] <= end && end <= span[1]) {
				return true
			}
		}
		return false
	}

	seen := make(map[string]bool)
	var matches []phoneMatch
	for _, pattern := range []*regexp.Regexp{intlPhonePattern, localPhonePattern, barePhonePattern} {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			if inURL(start, end) {
				continue
			}
			// A separator right before the match means a URL path or a
			// key=value parameter, not a phone number.
			before := text[max(0, start-10):start]
			if strings.ContainsAny(before, "./=?&#") {
				continue
			}
			after := text[end:min(len(text), end+10)]
			if len(after) > 0 && strings.ContainsAny(after[:1], "/?&") {
				continue
			}

			// Digit count is checked on the national part of the raw
			// candidate: counting the 972 country code would push every
			// international number past the limit.
			raw := text[start:end]
			national := strings.TrimPrefix(raw, "+972")
			if digits := CountDigits(national); digits < 9 || digits > 10 {
				continue
			}
			normalized := NormalizePhone(raw)
			if !strings.HasPrefix(normalized, "0") && !strings.HasPrefix(normalized, "+972") {
				continue
			}
			if !seen[normalized] {
				seen[normalized] = true
				matches = append(matches, phoneMatch{raw: raw, normalized: normalized, start: start, end: end})
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	return matches
}

// ExtractPhoneNumbers finds Israeli phone numbers in free text. Results
// are normalized, deduplicated and sorted so callers get a deterministic
// order.
func ExtractPhoneNumbers(text string) []string {
	matches := findPhoneMatches(text)
	phones := make([]string, 0, len(matches))
	for _, m := range matches {
		phones = append(phones, m.normalized)
	}
	sort.Strings(phones)
	return phones
}

// ExtractSenderPhone normalizes the sender field of a chat message.
// WhatsApp exports show either the contact name or the raw phone number;
// when a plausible phone number is present it is returned normalized,
// otherwise the sender string is passed through untouched.
func ExtractSenderPhone(sender string) string {
	if phones := ExtractPhoneNumbers(sender); len(phones) > 0 {
		return phones[0]
	}

	trimmed := strings.TrimSpace(sender)
	if trimmed == "" {
		return sender
	}
	first := trimmed[0]
	if first == '+' || (first >= '0' && first <= '9') {
		normalized := NormalizePhone(trimmed)
		if CountDigits(normalized) >= 9 {
			return normalized
		}
	}
	return sender
}
