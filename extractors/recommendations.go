package extractors

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Recommendation is a single extracted service provider record. Optional
// attributes are pointers so an absent value survives serialization as
// null instead of an empty string.
type Recommendation struct {
	Name             string  `json:"name"`
	Phone            string  `json:"phone"`
	Service          *string `json:"service"`
	Date             *string `json:"date"`
	Recommender      *string `json:"recommender"`
	Context          string  `json:"context"`
	ChatMessageIndex *int    `json:"chat_message_index,omitempty"`
}

// vcfMentionPattern matches a contact file attachment reference inside a
// chat message, e.g. "יוסי חשמלאי.vcf (file attached)".
var vcfMentionPattern = regexp.MustCompile(`(?i)([^.\n]+\.vcf)\s*\(file attached\)`)

// System notices WhatsApp injects into exports. Messages containing these
// carry no recommendation content.
var systemMessageMarkers = []string{
	"end-to-end encrypted",
	"created group",
	"created this group",
	"added you",
	"changed the subject",
	"changed this group's icon",
	"הודעות ושיחות מוצפנות",
	"<Media omitted>",
}

var (
	callToActionNamePattern = regexp.MustCompile(`תתקשר ל([^.\n]{2,30}?)(?:\s*[.:,]|\s*$|\s+\d|\s*\+972)`)
	thereIsNamePattern      = regexp.MustCompile(`יש את ([^.\n]{2,30}?)(?:\s*[.:,]|\s*$|\s+\d|\s*\+972)`)

	// Trailing phrase of letters, spaces and dashes right before a phone
	// number. Dashes stay inside the capture so a "Name - Service" phrase
	// survives as one candidate.
	trailingPhrasePattern = regexp.MustCompile(`([\p{L}][\p{L} \-–—]{0,30})$`)

	// Recommendation verbs that precede the actual name.
	leadInPattern = regexp.MustCompile(`^(?:ממליץ|ממליצה|ממליצים|מומלץ|המלצה)\s+(?:על\s+)?`)
)

// Words that precede a phone number but are never a provider name.
var excludedPrecedingWords = map[string]bool{
	"תתקשר": true,
	"יש":    true,
	"את":    true,
	"ל":     true,
	"מישהו": true,
	"חברים": true,
	"המלצה": true,
	"פנו":   true,
	"ות":    true,
}

func isSystemMessage(msg Message) bool {
	for _, marker := range systemMessageMarkers {
		if strings.Contains(msg.Text, marker) {
			return true
		}
	}
	return false
}

// ExtractTextRecommendations scans chat messages for phone numbers and
// builds a recommendation around each occurrence. The name is resolved
// from the text near the number, the service from the surrounding context,
// and the sender becomes the recommender. A record is emitted only when at
// least a name or a service was found.
func ExtractTextRecommendations(messages []Message) []Recommendation {
	var recommendations []Recommendation

	for idx, msg := range messages {
		if isSystemMessage(msg) {
			continue
		}

		for _, match := range findPhoneMatches(msg.Text) {
			window := strings.TrimSpace(msg.Text[max(0, match.start-100):min(len(msg.Text), match.end+100)])

			name := extractNameNearPhone(msg.Text, match)

			service := ExtractServiceFromContext(msg.Text, idx, messages)
			if service == "" {
				service = ExtractServiceFromContext(window, -1, nil)
			}

			// A "Name - Service" candidate keeps only the name half and
			// fills the service when one was not already found.
			if name != "" {
				if namePart, servicePart, ok := SplitNameService(name); ok {
					name = namePart
					if service == "" {
						service = servicePart
					}
				}
			}
			if name != "" && !IsValidName(name) {
				name = ""
			}

			if name == "" && service == "" {
				continue
			}
			if name == "" {
				name = UnknownName
			}

			rec := Recommendation{
				Name:    name,
				Phone:   match.normalized,
				Context: window,
			}
			if service != "" {
				rec.Service = &service
			}
			if msg.Date != "" {
				date := msg.Date
				rec.Date = &date
			}
			if msg.Sender != "" {
				recommender := ExtractSenderPhone(msg.Sender)
				rec.Recommender = &recommender
			}
			msgIndex := idx
			rec.ChatMessageIndex = &msgIndex
			recommendations = append(recommendations, rec)
		}
	}

	return recommendations
}

// extractNameNearPhone resolves a provider name for a phone occurrence.
// Explicit call-to-action phrasings win, then the phrase immediately
// before the number, then the first valid word of the sentence holding
// it. The returned candidate may still carry a "Name - Service" suffix;
// the caller splits it.
func extractNameNearPhone(text string, match phoneMatch) string {
	before := text[max(0, match.start-50):match.start]

	for _, pattern := range []*regexp.Regexp{callToActionNamePattern, thereIsNamePattern} {
		if m := pattern.FindStringSubmatch(before); m != nil {
			candidate := strings.TrimSpace(m[1])
			if IsValidName(candidate) && !containsExcludedWord(candidate) {
				return candidate
			}
		}
	}

	// Trailing phrase right before the number, trimmed of the separator
	// punctuation between phrase and number.
	trimmed := strings.TrimRight(before, " ,.:;\n")
	if m := trailingPhrasePattern.FindStringSubmatch(trimmed); m != nil {
		candidate := strings.TrimSpace(leadInPattern.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		if candidate != "" && !containsExcludedWord(candidate) {
			if IsValidName(candidate) || strings.ContainsAny(candidate, "-–—") {
				return candidate
			}
		}
	}

	// Sentence fallback: first usable word of the sentence the phone sits in.
	for _, sentence := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '\n' || r == '!' || r == '?'
	}) {
		if !strings.Contains(sentence, match.raw) {
			continue
		}
		for _, word := range strings.Fields(sentence) {
			word = strings.Trim(word, ",.:;-")
			if excludedPrecedingWords[word] || strings.ContainsAny(word, "0123456789") {
				continue
			}
			if IsValidName(word) {
				return word
			}
		}
	}

	return ""
}

// containsExcludedWord reports whether any word of the candidate phrase is
// a known non-name word.
func containsExcludedWord(candidate string) bool {
	for _, word := range strings.Fields(candidate) {
		if excludedPrecedingWords[strings.Trim(word, ",.:;")] {
			return true
		}
	}
	return false
}

// ExtractContactMentions walks the chat for contact file attachments and
// joins them with the parsed vCard records. Every mentioned filename is
// recorded in mentioned before the contact is validated, so a mention of a
// broken or invalid-name vCard still counts as mentioned even though it
// emits nothing. The surrounding chat context can supply a more specific
// service than the contact record carries; when it does, it wins.
func ExtractContactMentions(messages []Message, contacts map[string]*ContactRecord, mentioned map[string]bool) []Recommendation {
	var recommendations []Recommendation

	for idx, msg := range messages {
		for _, m := range vcfMentionPattern.FindAllStringSubmatch(msg.Text, -1) {
			filename := strings.TrimSpace(m[1])
			key := strings.ToLower(filename)
			mentioned[key] = true

			contact, ok := contacts[key]
			if !ok || contact == nil {
				continue
			}
			if !IsValidName(contact.Name) {
				continue
			}

			service := contact.Service
			if fromContext := ExtractServiceFromContext(msg.Text, idx, messages); fromContext != "" {
				service = &fromContext
			}

			rec := Recommendation{
				Name:    contact.Name,
				Phone:   NormalizePhone(contact.Phone),
				Service: service,
				Context: strings.TrimSpace(msg.Text),
			}
			if msg.Date != "" {
				date := msg.Date
				rec.Date = &date
			}
			if msg.Sender != "" {
				recommender := ExtractSenderPhone(msg.Sender)
				rec.Recommender = &recommender
			}
			msgIndex := idx
			rec.ChatMessageIndex = &msgIndex
			recommendations = append(recommendations, rec)
		}
	}

	return recommendations
}

// IncludeUnmentionedContacts emits a recommendation for every parsed vCard
// that was never referenced in the chat. Their context names the source
// file instead of a chat message.
func IncludeUnmentionedContacts(contacts map[string]*ContactRecord, mentioned map[string]bool) []Recommendation {
	keys := make([]string, 0, len(contacts))
	for key := range contacts {
		if !mentioned[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	recommendations := make([]Recommendation, 0, len(keys))
	for _, key := range keys {
		contact := contacts[key]
		if contact == nil || !IsValidName(contact.Name) {
			continue
		}
		recommendations = append(recommendations, Recommendation{
			Name:    contact.Name,
			Phone:   NormalizePhone(contact.Phone),
			Service: contact.Service,
			Context: fmt.Sprintf("From file: %s", contact.Filename),
		})
	}

	return recommendations
}

// Extract runs the three extraction streams over a parsed chat and its
// vCard directory and returns the deduplicated result: text-derived
// records first, then chat-mentioned contacts, then contacts never
// mentioned in the chat.
func Extract(messages []Message, contacts map[string]*ContactRecord) []Recommendation {
	mentioned := make(map[string]bool)

	all := ExtractTextRecommendations(messages)
	all = append(all, ExtractContactMentions(messages, contacts, mentioned)...)
	all = append(all, IncludeUnmentionedContacts(contacts, mentioned)...)

	return Deduplicate(all)
}

// dedupKey identifies a provider by normalized name and digits-only phone.
// The +972 country prefix folds back to a leading 0 so a local and an
// international rendering of the same number collide.
func dedupKey(rec Recommendation) string {
	name := strings.ToLower(strings.TrimSpace(rec.Name))
	phone := strings.Map(func(r rune) rune {
		if strings.ContainsRune(" +-()", r) {
			return -1
		}
		return r
	}, rec.Phone)
	if strings.HasPrefix(phone, "972") {
		phone = "0" + phone[3:]
	}
	return name + "\x00" + phone
}

// InformationScore rates how much a record tells us about the provider:
// one point each for a known service, a substantial context and a date.
func InformationScore(rec Recommendation) int {
	score := 0
	if rec.Service != nil && *rec.Service != "" {
		score++
	}
	if len(rec.Context) > 20 {
		score++
	}
	if rec.Date != nil && *rec.Date != "" {
		score++
	}
	return score
}

// Deduplicate collapses records sharing the same name and phone, keeping
// the one with the higher information score. On a tie the record seen
// first wins, and first-seen order is preserved in the output.
func Deduplicate(recommendations []Recommendation) []Recommendation {
	order := make([]string, 0, len(recommendations))
	best := make(map[string]Recommendation, len(recommendations))

	for _, rec := range recommendations {
		key := dedupKey(rec)
		existing, seen := best[key]
		if !seen {
			order = append(order, key)
			best[key] = rec
			continue
		}
		if InformationScore(rec) > InformationScore(existing) {
			best[key] = rec
		}
	}

	result := make([]Recommendation, 0, len(order))
	for _, key := range order {
		result = append(result, best[key])
	}
	return result
}
