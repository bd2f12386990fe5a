package cleanup

import (
	"log"
	"regexp"
	"strings"

	"recserver/extractors"
)

// Stats counts the effect of one cleanup pass.
type Stats struct {
	DuplicatesRemoved   int `json:"duplicates_removed"`
	ServicesCleaned     int `json:"services_cleaned"`
	ContextsCleaned     int `json:"contexts_cleaned"`
	ServicesFromNames   int `json:"services_from_names"`
	NamesNormalized     int `json:"names_normalized"`
	NamesDemoted        int `json:"names_demoted"`
	InvalidNameDropped  int `json:"invalid_name_dropped"`
	InvalidPhoneDropped int `json:"invalid_phone_dropped"`
	ShortPhoneDropped   int `json:"short_phone_dropped"`
	PersonalDropped     int `json:"personal_dropped"`
	NullServiceDropped  int `json:"null_service_dropped"`
}

// Cleaner applies the field normalization and filtering passes over the
// extracted recommendation set.
type Cleaner struct {
	opts            Options
	prefixPatterns  []*regexp.Regexp
	suffixPatterns  []*regexp.Regexp
	stemmer         *EnglishStemmer
	stemmedKeywords map[string]string // stem -> original keyword
}

var (
	fileAttachedPattern = regexp.MustCompile(`(?i)(?:[^\s]+\.vcf\s*)?\(file attached\)`)
	truecallerPattern   = regexp.MustCompile(`(?i)(?:https?://[^\s]*)?truecaller\.com[^\s]*`)
	duplicateDots       = regexp.MustCompile(`\.\s*\.`)
	trailingDot         = regexp.MustCompile(`\s*\.\s*$`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
	urlPathFragment     = regexp.MustCompile(`^/|/.*\.|\.\w+/`)
)

// NewCleaner compiles the pattern lists once. Invalid pattern sources are
// logged and skipped rather than failing the whole pass.
func NewCleaner(opts Options) *Cleaner {
	c := &Cleaner{
		opts:            opts,
		stemmer:         NewEnglishStemmer(),
		stemmedKeywords: make(map[string]string),
	}
	for _, src := range opts.ServicePrefixPatterns {
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			log.Printf("Skipping invalid service prefix pattern %q: %v", src, err)
			continue
		}
		c.prefixPatterns = append(c.prefixPatterns, re)
	}
	for _, src := range opts.ServiceSuffixPatterns {
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			log.Printf("Skipping invalid service suffix pattern %q: %v", src, err)
			continue
		}
		c.suffixPatterns = append(c.suffixPatterns, re)
	}
	for _, keyword := range opts.OccupationKeywords {
		if isASCIILetters(strings.ReplaceAll(keyword, " ", "")) {
			c.stemmedKeywords[c.stemmer.Stem(keyword)] = keyword
		}
	}
	return c
}

// CleanServiceText strips conversational framing from a service
// description and caps its length. An empty result means "no service";
// callers map it to null.
func (c *Cleaner) CleanServiceText(service string) string {
	cleaned := strings.TrimSpace(service)
	if cleaned == "" {
		return ""
	}

	for _, re := range c.prefixPatterns {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	for _, re := range c.suffixPatterns {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(whitespaceRun.ReplaceAllString(cleaned, " "))

	if len([]rune(cleaned)) > c.opts.ServiceMaxLen {
		if keyword := c.findOccupationKeyword(cleaned); keyword != "" {
			return keyword
		}
		words := strings.Fields(cleaned)
		if len(words) > 3 {
			words = words[:3]
		}
		cleaned = strings.Join(words, " ")
	}

	return cleaned
}

// CleanContextText strips attachment boilerplate and tracking URLs from a
// context string and collapses whitespace and duplicated punctuation.
func (c *Cleaner) CleanContextText(context string) string {
	if context == "" {
		return ""
	}

	cleaned := fileAttachedPattern.ReplaceAllString(context, "")
	cleaned = truecallerPattern.ReplaceAllString(cleaned, "")
	cleaned = whitespaceRun.ReplaceAllString(cleaned, " ")
	cleaned = duplicateDots.ReplaceAllString(cleaned, ".")
	cleaned = trailingDot.ReplaceAllString(cleaned, "")

	return strings.TrimSpace(cleaned)
}

// findOccupationKeyword searches text for a known occupation. Hebrew
// keywords match as substrings; English keywords match stemmed tokens.
func (c *Cleaner) findOccupationKeyword(text string) string {
	lower := strings.ToLower(text)
	for _, keyword := range c.opts.OccupationKeywords {
		if !isASCIILetters(strings.ReplaceAll(keyword, " ", "")) && strings.Contains(lower, keyword) {
			return keyword
		}
	}
	for _, token := range strings.Fields(lower) {
		if keyword, ok := c.stemmedKeywords[c.stemmer.Stem(token)]; ok {
			return keyword
		}
	}
	return ""
}

func (c *Cleaner) containsOccupationKeyword(text string) bool {
	return c.findOccupationKeyword(text) != ""
}

func (c *Cleaner) containsFamilyKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range c.opts.FamilyKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// IsPersonalContact reports whether a record names a relative or friend
// rather than a service provider. A record with a known service is never
// personal: providers may be somebody's family.
func (c *Cleaner) IsPersonalContact(rec extractors.Recommendation) bool {
	if rec.Service != nil && *rec.Service != "" {
		return false
	}
	combined := rec.Name + " " + rec.Context
	if !c.containsFamilyKeyword(combined) {
		return false
	}
	return !c.containsOccupationKeyword(combined)
}

// isDenylistedName reports whether the name is a bare URL/host fragment
// that invalidates the whole record.
func (c *Cleaner) isDenylistedName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, token := range c.opts.NonNameTokens {
		if lower == token {
			return true
		}
	}
	return urlPathFragment.MatchString(lower)
}

// hasValidPhoneShape checks a present phone against the Israeli number
// shape: 9 or 10 digits in the national part. Prefix validation already
// happened at detection time; records arriving here with an odd prefix
// but a plausible digit count are kept.
func hasValidPhoneShape(phone string) bool {
	national := strings.TrimPrefix(phone, "+972")
	digits := extractors.CountDigits(national)
	return digits >= 9 && digits <= 10
}

// PreEnrichment runs the ordered pre-enrichment pass: dedup, field
// cleaning, structural filtering, name demotion, short-phone and
// personal-contact drops.
func (c *Cleaner) PreEnrichment(recs []extractors.Recommendation) ([]extractors.Recommendation, Stats) {
	var stats Stats

	before := len(recs)
	recs = extractors.Deduplicate(recs)
	stats.DuplicatesRemoved = before - len(recs)

	for i := range recs {
		if recs[i].Service != nil {
			cleaned := c.CleanServiceText(*recs[i].Service)
			if cleaned != *recs[i].Service {
				stats.ServicesCleaned++
			}
			if cleaned == "" {
				recs[i].Service = nil
			} else {
				recs[i].Service = &cleaned
			}
		}

		// A null-service record whose name still carries a dash-delimited
		// occupation donates that suffix to the service field.
		if recs[i].Service == nil && recs[i].Name != extractors.UnknownName {
			if namePart, servicePart, ok := extractors.SplitNameService(recs[i].Name); ok {
				recs[i].Service = &servicePart
				recs[i].Name = namePart
				stats.ServicesFromNames++
			}
		}

		if recs[i].Context != "" {
			cleaned := c.CleanContextText(recs[i].Context)
			if cleaned != recs[i].Context {
				stats.ContextsCleaned++
			}
			recs[i].Context = cleaned
		}
	}

	kept := recs[:0]
	for _, rec := range recs {
		if c.isDenylistedName(rec.Name) {
			stats.InvalidNameDropped++
			continue
		}
		if rec.Phone != "" && !hasValidPhoneShape(rec.Phone) {
			stats.InvalidPhoneDropped++
			continue
		}
		kept = append(kept, rec)
	}
	recs = kept

	for i := range recs {
		normalized := NormalizeText(recs[i].Name)
		if normalized != recs[i].Name {
			recs[i].Name = normalized
			stats.NamesNormalized++
		}
		if recs[i].Name != extractors.UnknownName && !extractors.IsValidName(recs[i].Name) {
			recs[i].Name = extractors.UnknownName
			stats.NamesDemoted++
		}
	}

	kept = recs[:0]
	for _, rec := range recs {
		if rec.Phone != "" && extractors.CountDigits(rec.Phone) < c.opts.MinPhoneDigits {
			stats.ShortPhoneDropped++
			continue
		}
		if c.IsPersonalContact(rec) {
			stats.PersonalDropped++
			continue
		}
		kept = append(kept, rec)
	}

	return kept, stats
}

// PostEnrichment runs after an enrichment attempt, successful or not:
// re-clean service and context, then drop records whose service is still
// null. A null service after enrichment carries no actionable
// information.
func (c *Cleaner) PostEnrichment(recs []extractors.Recommendation) ([]extractors.Recommendation, Stats) {
	var stats Stats

	for i := range recs {
		if recs[i].Service != nil {
			cleaned := c.CleanServiceText(*recs[i].Service)
			if cleaned != *recs[i].Service {
				stats.ServicesCleaned++
			}
			if cleaned == "" {
				recs[i].Service = nil
			} else {
				recs[i].Service = &cleaned
			}
		}
		if recs[i].Context != "" {
			cleaned := c.CleanContextText(recs[i].Context)
			if cleaned != recs[i].Context {
				stats.ContextsCleaned++
			}
			recs[i].Context = cleaned
		}
	}

	kept := recs[:0]
	for _, rec := range recs {
		if rec.Service == nil || *rec.Service == "" {
			stats.NullServiceDropped++
			continue
		}
		kept = append(kept, rec)
	}

	return kept, stats
}
