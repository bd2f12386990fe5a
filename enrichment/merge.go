package enrichment

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"recserver/extractors"
)

var digitPattern = regexp.MustCompile(`\d`)

// MergeEnhancements folds model output back into the original records.
// Matches by position when the phone agrees, otherwise by phone scan;
// unmatched originals pass through untouched.
func MergeEnhancements(original []extractors.Recommendation, enhanced []ModelRecord) []extractors.Recommendation {
	merged := make([]extractors.Recommendation, 0, len(original))

	for i, orig := range original {
		var match *ModelRecord

		if i < len(enhanced) && enhanced[i].Phone == orig.Phone {
			match = &enhanced[i]
		}
		if match == nil {
			for j := range enhanced {
				if enhanced[j].Phone == orig.Phone {
					match = &enhanced[j]
					break
				}
			}
		}

		if match != nil {
			applyEnhancement(&orig, *match)
		}
		merged = append(merged, orig)
	}

	return merged
}

// applyEnhancement merges one model record into an original record.
// Phone, date, and chat_message_index are never overwritten.
func applyEnhancement(orig *extractors.Recommendation, enh ModelRecord) {
	// service is filled only where it was missing
	if enh.Service != "" && orig.Service == nil {
		service := enh.Service
		orig.Service = &service
	}

	if enh.Name != "" {
		if orig.Name == extractors.UnknownName && enh.Name != extractors.UnknownName {
			orig.Name = enh.Name
		} else if utf8.RuneCountInString(enh.Name) > utf8.RuneCountInString(orig.Name) {
			orig.Name = enh.Name
		}
	}

	if enh.Context != "" && enh.Context != orig.Context {
		switch {
		case strings.TrimSpace(orig.Context) == "":
			orig.Context = enh.Context
		case strings.Contains(orig.Context, enh.Context):
			// already present, keep as is
		case strings.Contains(enh.Context, orig.Context):
			// model returned the original plus additions
			orig.Context = enh.Context
		default:
			orig.Context = strings.TrimSpace(orig.Context + ". " + enh.Context)
		}
	}

	origRecommender := ""
	if orig.Recommender != nil {
		origRecommender = *orig.Recommender
	}
	if enh.Recommender != "" && enh.Recommender != origRecommender {
		// models sometimes return "Name - Phone" despite instructions
		if strings.Contains(enh.Recommender, " - ") {
			parts := strings.SplitN(enh.Recommender, " - ", 2)
			phonePart := strings.TrimSpace(parts[1])
			if phonePart != "" {
				orig.Recommender = &phonePart
			}
		} else if origRecommender == "" || origRecommender == extractors.UnknownName {
			if digitPattern.MatchString(enh.Recommender) {
				recommender := enh.Recommender
				orig.Recommender = &recommender
			}
		}
	}
}

// normalizeMatchPhone reduces a phone to digits with a leading 0 for matching.
func normalizeMatchPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if strings.HasPrefix(normalized, "+972") {
		normalized = "0" + normalized[4:]
	} else if strings.HasPrefix(normalized, "972") {
		normalized = "0" + normalized[3:]
	}
	return normalized
}

func normalizeMatchName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
