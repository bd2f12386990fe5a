package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"recserver/extractors"
)

// minPhoneDigits phones with fewer digits are flagged as suspicious
const minPhoneDigits = 7

// shortContextLen contexts at or below this rune count carry little signal
const shortContextLen = 20

// Report groups suspicious entries found in a final recommendation set.
// No category mutates the input; entries may appear in several categories.
type Report struct {
	Total int `json:"total"`

	UnknownNames      []extractors.Recommendation `json:"unknown_names"`
	VeryShortNames    []extractors.Recommendation `json:"very_short_names"`
	NamesWithNewlines []extractors.Recommendation `json:"names_with_newlines"`
	NoPhone           []extractors.Recommendation `json:"no_phone"`
	NoService         []extractors.Recommendation `json:"no_service"`
	NoDate            []extractors.Recommendation `json:"no_date"`
	InvalidPhones     []extractors.Recommendation `json:"invalid_phones"`
	ShortContexts     []extractors.Recommendation `json:"short_contexts"`
	DuplicatePhones   []extractors.Recommendation `json:"duplicate_phones"`
}

// Analyze scans recommendations for entries a reviewer should look at.
func Analyze(recs []extractors.Recommendation) *Report {
	report := &Report{Total: len(recs)}

	phoneCounts := make(map[string]int, len(recs))
	for _, rec := range recs {
		if key := phoneKey(rec.Phone); key != "" {
			phoneCounts[key]++
		}
	}

	for _, rec := range recs {
		if rec.Name == extractors.UnknownName {
			report.UnknownNames = append(report.UnknownNames, rec)
		}
		if utf8.RuneCountInString(rec.Name) <= 2 {
			report.VeryShortNames = append(report.VeryShortNames, rec)
		}
		if strings.Contains(rec.Name, "\n") {
			report.NamesWithNewlines = append(report.NamesWithNewlines, rec)
		}

		if rec.Phone == "" {
			report.NoPhone = append(report.NoPhone, rec)
		} else if digitCount(rec.Phone) < minPhoneDigits {
			report.InvalidPhones = append(report.InvalidPhones, rec)
		}
		if key := phoneKey(rec.Phone); key != "" && phoneCounts[key] > 1 {
			report.DuplicatePhones = append(report.DuplicatePhones, rec)
		}

		if rec.Service == nil || *rec.Service == "" {
			report.NoService = append(report.NoService, rec)
		}
		if rec.Date == nil || *rec.Date == "" {
			report.NoDate = append(report.NoDate, rec)
		}
		if utf8.RuneCountInString(strings.TrimSpace(rec.Context)) <= shortContextLen {
			report.ShortContexts = append(report.ShortContexts, rec)
		}
	}

	return report
}

// IssueCount counts entries in categories that indicate real problems.
// Missing service and date are informational: unmentioned contact-file
// entries legitimately have neither.
func (r *Report) IssueCount() int {
	return len(r.UnknownNames) + len(r.VeryShortNames) + len(r.NamesWithNewlines) +
		len(r.NoPhone) + len(r.InvalidPhones) + len(r.DuplicatePhones)
}

// Summary renders the report as the plain-text block the CLI prints.
func (r *Report) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Total recommendations: %d\n", r.Total)

	if r.IssueCount() > 0 {
		b.WriteString("\n=== ISSUES FOUND ===\n")
	}

	writeCategory(&b, "Unknown names", r.UnknownNames, 5, func(rec extractors.Recommendation) string {
		return fmt.Sprintf("Phone: %s, Service: %s", rec.Phone, strValue(rec.Service))
	})
	writeCategory(&b, "Very short names (<=2 chars)", r.VeryShortNames, 10, func(rec extractors.Recommendation) string {
		return fmt.Sprintf("%q (phone: %s)", rec.Name, rec.Phone)
	})
	writeCategory(&b, "Names with newlines", r.NamesWithNewlines, 10, func(rec extractors.Recommendation) string {
		return fmt.Sprintf("%q (phone: %s)", rec.Name, rec.Phone)
	})
	writeCategory(&b, "No phone", r.NoPhone, 5, func(rec extractors.Recommendation) string {
		return fmt.Sprintf("%q (service: %s)", rec.Name, strValue(rec.Service))
	})
	writeCategory(&b, "Suspicious phone numbers", r.InvalidPhones, 5, func(rec extractors.Recommendation) string {
		return fmt.Sprintf("%q: %s", rec.Name, rec.Phone)
	})
	writeCategory(&b, "Duplicate phones", r.DuplicatePhones, 10, func(rec extractors.Recommendation) string {
		return fmt.Sprintf("%q: %s", rec.Name, rec.Phone)
	})

	if n := len(r.NoService); n > 0 {
		fmt.Fprintf(&b, "\nNo service: %d (informational)\n", n)
	}
	if n := len(r.NoDate); n > 0 {
		fmt.Fprintf(&b, "\nNo date: %d (from unmentioned contact files)\n", n)
	}
	if n := len(r.ShortContexts); n > 0 {
		fmt.Fprintf(&b, "\nShort contexts (<=%d chars): %d (informational)\n", shortContextLen, n)
	}

	b.WriteString("\n=== SUMMARY ===\n")
	fmt.Fprintf(&b, "Total recommendations: %d\n", r.Total)
	fmt.Fprintf(&b, "Items with issues: %d\n", r.IssueCount())

	return b.String()
}

func writeCategory(b *strings.Builder, title string, recs []extractors.Recommendation, limit int, line func(extractors.Recommendation) string) {
	if len(recs) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s: %d\n", title, len(recs))
	for i, rec := range recs {
		if i == limit {
			fmt.Fprintf(b, "   ... and %d more\n", len(recs)-limit)
			break
		}
		fmt.Fprintf(b, "   - %s\n", line(rec))
	}
}

// phoneKey collapses formatting so +972 and leading-0 forms collide.
func phoneKey(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	key := b.String()
	if strings.HasPrefix(key, "972") {
		key = "0" + key[3:]
	}
	return key
}

func digitCount(s string) int {
	count := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			count++
		}
	}
	return count
}

func strValue(s *string) string {
	if s == nil {
		return "null"
	}
	return *s
}
