package extractors

import (
	"regexp"
	"strings"
)

// UnknownName is the sentinel used when a recommendation has no resolvable
// provider name. Records are demoted to it rather than emitted with an
// empty name.
const UnknownName = "Unknown"

// Personal-relation words that are contact labels, not provider names.
var personalContactNames = map[string]bool{
	"אבא":     true,
	"אמא":     true,
	"אבא של":  true,
	"אמא של":  true,
	"אח":      true,
	"אחות":    true,
	"אח של":   true,
	"אחות של": true,
}

// URL and tracking-parameter shapes that disqualify a name candidate.
var urlIndicatorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://`),
	regexp.MustCompile(`^www\.`),
	regexp.MustCompile(`\.(com|net|org|co\.il|gov)`),
	regexp.MustCompile(`[?&]`),
	regexp.MustCompile(`=`),
	regexp.MustCompile(`%[0-9A-Fa-f]{2}`),
	regexp.MustCompile(`gclid=`),
	regexp.MustCompile(`fbid=`),
	regexp.MustCompile(`campaignid=`),
	regexp.MustCompile(`gad_source=`),
	regexp.MustCompile(`gbraid=`),
	regexp.MustCompile(`utm_`),
	regexp.MustCompile(`story_fbid`),
}

var trackingPrefixPattern = regexp.MustCompile(`^(gad_|utm_|gclid|fbid|campaignid|gbraid)`)

// IsValidName reports whether a candidate string is usable as a provider
// name. It rejects too-short strings, personal-relation labels, and
// anything that looks like a URL, a query parameter or a tracking token.
// This predicate gates every place a name enters the output.
func IsValidName(name string) bool {
	if len([]rune(name)) < 2 {
		return false
	}

	name = strings.TrimSpace(strings.ReplaceAll(name, "\n", " "))

	if personalContactNames[name] {
		return false
	}

	lower := strings.ToLower(name)
	for _, pattern := range urlIndicatorPatterns {
		if pattern.MatchString(lower) {
			return false
		}
	}

	urlChars := 0
	for _, r := range name {
		if strings.ContainsRune("=?&/%#", r) {
			urlChars++
		}
	}
	if urlChars > 2 {
		return false
	}

	return !trackingPrefixPattern.MatchString(lower)
}

// SplitNameService detects a "Name - Service" pattern (plain dash, en dash
// or em dash) and returns both halves. The service half must be at least 3
// characters and the name half at least 2.
func SplitNameService(name string) (namePart, servicePart string, ok bool) {
	part1, part2, found := splitOnDash(strings.TrimSpace(name))
	if !found {
		return "", "", false
	}
	if len([]rune(part2)) >= 3 && len([]rune(part1)) >= 2 {
		return part1, part2, true
	}
	return "", "", false
}

// ExtractServiceFromName returns the service half of a "Name - Service"
// string, or "" when the name has no usable dash split.
func ExtractServiceFromName(name string) string {
	if _, service, ok := SplitNameService(name); ok {
		return service
	}
	return ""
}

// Interrogative patterns asking for a service provider.
var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`מישהו מכיר ([^?]+)\?`),
	regexp.MustCompile(`יש ([^?]+)\?`),
	regexp.MustCompile(`מחפש ([^?]+)`),
	regexp.MustCompile(`צריך ([^?]+)`),
	regexp.MustCompile(`המלצה ל([^?]+)`),
	regexp.MustCompile(`מי מכיר ([^?]+)`),
}

// Explicit-recommendation phrasings.
var explicitServicePatterns = []*regexp.Regexp{
	regexp.MustCompile(`מומלץ ל([^.\n]{3,30})`),
	regexp.MustCompile(`המלצה ל([^.\n]{3,30})`),
	regexp.MustCompile(`איש ([^.\n]{3,30})`),
}

var serviceTokenCleaner = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// ExtractServiceFromContext infers a service description from chat context.
// When a message index and the full message list are given, the current
// message and the two preceding ones are scanned for question patterns
// first; question matches always win over the explicit-phrase scan of the
// given text span. msgIndex < 0 disables the question scan.
func ExtractServiceFromContext(text string, msgIndex int, messages []Message) string {
	if messages != nil && msgIndex >= 0 && msgIndex < len(messages) {
		for i := max(0, msgIndex-2); i <= msgIndex; i++ {
			for _, pattern := range questionPatterns {
				if m := pattern.FindStringSubmatch(messages[i].Text); m != nil {
					if candidate := sanitizeServiceCandidate(m[1]); candidate != "" {
						return candidate
					}
				}
			}
		}
	}

	for _, pattern := range explicitServicePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if candidate := sanitizeServiceCandidate(m[1]); candidate != "" {
				return candidate
			}
		}
	}
	return ""
}

// sanitizeServiceCandidate keeps letters, digits and spaces only and
// rejects candidates shorter than 3 characters.
func sanitizeServiceCandidate(raw string) string {
	candidate := strings.TrimSpace(serviceTokenCleaner.ReplaceAllString(strings.TrimSpace(raw), ""))
	if len([]rune(candidate)) < 3 {
		return ""
	}
	return candidate
}
