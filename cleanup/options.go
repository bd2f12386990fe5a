package cleanup

// Options carries the tunable content of the cleanup passes. The phrase
// lists are data, not behavior: deployments covering other chat languages
// swap the lists and keep the pipeline.
type Options struct {
	// ServicePrefixPatterns are regex sources stripped from the start of a
	// service description, applied repeatedly in order.
	ServicePrefixPatterns []string

	// ServiceSuffixPatterns are regex sources stripped from the end of a
	// service description.
	ServiceSuffixPatterns []string

	// OccupationKeywords name known professions. Used to shorten overlong
	// service descriptions and to keep family members who are also
	// service providers.
	OccupationKeywords []string

	// FamilyKeywords mark personal contacts (relatives, friends).
	FamilyKeywords []string

	// NonNameTokens are host/url fragments that disqualify a record
	// entirely when they appear as its name.
	NonNameTokens []string

	// ServiceMaxLen caps the service description length. Longer values
	// are reduced to an occupation keyword or truncated.
	ServiceMaxLen int

	// MinPhoneDigits is the lower bound below which a present phone
	// number invalidates the whole record.
	MinPhoneDigits int
}

// DefaultOptions returns the options tuned for Hebrew WhatsApp groups.
func DefaultOptions() Options {
	return Options{
		ServicePrefixPatterns: []string{
			`^למישהו\s+המלצה\s+על?\s*`,
			`^למישהו\s+איש\s+`,
			`^למישהו\s+במקרה\s+`,
			`^למישהו\s+`,
			`^מישהו\s+`,
			`^המלצה\s+על?\s*`,
			`^המלצות?\s*`,
			`^מחפשת?\s+`,
			`^צריכה?\s+`,
			`^דחוף\s+`,
		},
		ServiceSuffixPatterns: []string{
			`\s+מניסיון.*$`,
			`\s+מומלץ.*$`,
			`\s+טוב$`,
			`\s+מעולה$`,
			`\s+אמין$`,
			`\s+דחוף$`,
			`\s+תודה.*$`,
			`\s+בבקשה$`,
			`\s+באזור\s+\S+$`,
			`https?://\S+`,
		},
		OccupationKeywords: []string{
			"חשמלאי", "אינסטלטור", "שרברב", "גנן", "צבעי", "צבע", "מנעולן",
			"טכנאי", "מזגנים", "מיזוג", "הובלות", "מוביל", "נגר", "מסגר",
			"חשמל", "אינסטלציה", "שיפוצים", "שיפוצניק", "מדביר", "הדברה",
			"רצף", "גבס", "איטום", "זגג", "מורה", "מאמן", "עורך דין",
			"רואה חשבון", "מתווך", "ספר", "קוסמטיקאית", "בייביסיטר",
			"מטפלת", "וטרינר", "גז", "דוד שמש",
			"electrician", "plumber", "gardener", "painter", "technician",
			"handyman", "mover", "carpenter", "locksmith", "exterminator",
			"tutor", "lawyer", "accountant", "babysitter",
		},
		FamilyKeywords: []string{
			"אבא שלי", "אמא שלי", "אח שלי", "אחות שלי", "סבא", "סבתא",
			"דוד שלי", "דודה שלי", "בעלי", "אשתי", "בן שלי", "בת שלי",
			"גיס", "גיסה", "חבר שלי", "חברה שלי", "בן דוד", "משפחה",
		},
		NonNameTokens: []string{
			"www", "http", "https", "com", "co.il", "facebook", "whatsapp",
			"google", "link", "null", "undefined",
		},
		ServiceMaxLen:  100,
		MinPhoneDigits: 7,
	}
}
