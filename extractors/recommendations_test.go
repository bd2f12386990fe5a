package extractors

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

// TestExtractEndToEnd verifies the full pipeline over a one-line chat:
// name, service, phone and recommender all resolved from a single message
func TestExtractEndToEnd(t *testing.T) {
	content := "01/01/2024, 10:00 - 0501234567: ממליץ על דוד - חשמלאי, 0521112222\n"
	messages := ParseChat(content)
	if len(messages) != 1 {
		t.Fatalf("ParseChat() returned %d messages, want 1", len(messages))
	}

	recs := Extract(messages, map[string]*ContactRecord{})
	if len(recs) != 1 {
		t.Fatalf("Extract() returned %d recommendations, want 1", len(recs))
	}

	rec := recs[0]
	if rec.Phone != "+972-521-112222" {
		t.Errorf("phone = %q, want %q", rec.Phone, "+972-521-112222")
	}
	if rec.Name != "דוד" {
		t.Errorf("name = %q, want %q", rec.Name, "דוד")
	}
	if rec.Service == nil || !strings.Contains(*rec.Service, "חשמלאי") {
		t.Errorf("service = %v, want to contain %q", rec.Service, "חשמלאי")
	}
	if rec.Recommender == nil || *rec.Recommender != "+972-501-234567" {
		t.Errorf("recommender = %v, want %q", rec.Recommender, "+972-501-234567")
	}
	if rec.Date == nil || *rec.Date != "2024-01-01 10:00:00" {
		t.Errorf("date = %v, want %q", rec.Date, "2024-01-01 10:00:00")
	}
	if rec.ChatMessageIndex == nil || *rec.ChatMessageIndex != 0 {
		t.Errorf("chat message index = %v, want 0", rec.ChatMessageIndex)
	}
}

// TestExtractTextRecommendations verifies name and service resolution
// around detected phone numbers
func TestExtractTextRecommendations(t *testing.T) {
	t.Run("call to action name", func(t *testing.T) {
		messages := []Message{{
			Date:   "2024-01-01 10:00:00",
			Sender: "0501234567",
			Text:   "תתקשר לדוד: 0521112222",
		}}
		recs := ExtractTextRecommendations(messages)
		if len(recs) != 1 {
			t.Fatalf("got %d recommendations, want 1", len(recs))
		}
		if recs[0].Name != "דוד" {
			t.Errorf("name = %q, want %q", recs[0].Name, "דוד")
		}
	})

	t.Run("no name and no service skipped", func(t *testing.T) {
		messages := []Message{{
			Date:   "2024-01-01 10:00:00",
			Sender: "0501234567",
			Text:   "0521112222",
		}}
		if recs := ExtractTextRecommendations(messages); len(recs) != 0 {
			t.Errorf("got %d recommendations, want 0", len(recs))
		}
	})

	t.Run("service without name yields Unknown", func(t *testing.T) {
		messages := []Message{
			{Text: "מישהו מכיר חשמלאי?"},
			{Date: "2024-01-01 10:00:00", Sender: "0501234567", Text: "0521112222"},
		}
		recs := ExtractTextRecommendations(messages)
		if len(recs) != 1 {
			t.Fatalf("got %d recommendations, want 1", len(recs))
		}
		if recs[0].Name != UnknownName {
			t.Errorf("name = %q, want %q", recs[0].Name, UnknownName)
		}
		if recs[0].Service == nil || *recs[0].Service != "חשמלאי" {
			t.Errorf("service = %v, want %q", recs[0].Service, "חשמלאי")
		}
	})

	t.Run("system message skipped", func(t *testing.T) {
		messages := []Message{{
			Date:   "2024-01-01 10:00:00",
			Sender: "אדמין",
			Text:   "created group with 0521112222",
		}}
		if recs := ExtractTextRecommendations(messages); len(recs) != 0 {
			t.Errorf("got %d recommendations, want 0", len(recs))
		}
	})
}

// TestExtractContactMentions verifies joining of chat mentions with
// parsed contact cards
func TestExtractContactMentions(t *testing.T) {
	messages := []Message{{
		Date:   "2024-01-01 10:00:00",
		Sender: "0501234567",
		Text:   "דוד חשמלאי.vcf (file attached)",
	}}
	contacts := map[string]*ContactRecord{
		"דוד חשמלאי.vcf": {
			Name:     "דוד",
			Phone:    "+972-521-112222",
			Service:  strPtr("חשמלאי"),
			Filename: "דוד חשמלאי.vcf",
		},
	}

	mentioned := make(map[string]bool)
	recs := ExtractContactMentions(messages, contacts, mentioned)

	if len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recs))
	}
	if recs[0].Name != "דוד" {
		t.Errorf("name = %q, want %q", recs[0].Name, "דוד")
	}
	if recs[0].Recommender == nil || *recs[0].Recommender != "+972-501-234567" {
		t.Errorf("recommender = %v, want normalized sender", recs[0].Recommender)
	}
	if !mentioned["דוד חשמלאי.vcf"] {
		t.Error("mentioned filename not tracked")
	}
}

// TestContactMentionServiceFromContext verifies that the chat context
// around a mention overrides the service inferred from the card filename
func TestContactMentionServiceFromContext(t *testing.T) {
	messages := []Message{
		{Sender: "0509998877", Text: "מישהו מכיר גנן?"},
		{Sender: "0501234567", Text: "דוד חשמלאי.vcf (file attached)"},
	}
	contacts := map[string]*ContactRecord{
		"דוד חשמלאי.vcf": {
			Name:     "דוד",
			Phone:    "+972-521-112222",
			Service:  strPtr("חשמלאי"),
			Filename: "דוד חשמלאי.vcf",
		},
	}

	recs := ExtractContactMentions(messages, contacts, make(map[string]bool))

	if len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recs))
	}
	if recs[0].Service == nil || *recs[0].Service != "גנן" {
		t.Errorf("service = %v, want context-derived %q", recs[0].Service, "גנן")
	}
}

// TestContactMentionInvalidNameSkipped verifies that a mentioned contact
// card with a personal-relation name emits nothing while the mention
// itself stays tracked
func TestContactMentionInvalidNameSkipped(t *testing.T) {
	messages := []Message{{Sender: "0501234567", Text: "אבא.vcf (file attached)"}}
	contacts := map[string]*ContactRecord{
		"אבא.vcf": {Name: "אבא", Phone: "+972-521-112222", Filename: "אבא.vcf"},
	}

	mentioned := make(map[string]bool)
	recs := ExtractContactMentions(messages, contacts, mentioned)

	if len(recs) != 0 {
		t.Errorf("got %d recommendations, want 0", len(recs))
	}
	if !mentioned["אבא.vcf"] {
		t.Error("mention of the skipped contact card not tracked")
	}
}

// TestUnmentionedInvalidNameSkipped verifies that a contact card with a
// personal-relation name never enters the file-sourced stream either
func TestUnmentionedInvalidNameSkipped(t *testing.T) {
	contacts := map[string]*ContactRecord{
		"אבא.vcf": {Name: "אבא", Phone: "+972-521-112222", Filename: "אבא.vcf"},
	}

	messages := []Message{{Sender: "0501234567", Text: "אבא.vcf (file attached)"}}
	if recs := Extract(messages, contacts); len(recs) != 0 {
		t.Errorf("mentioned card: got %d recommendations, want 0", len(recs))
	}
	if recs := Extract(nil, contacts); len(recs) != 0 {
		t.Errorf("unmentioned card: got %d recommendations, want 0", len(recs))
	}
}

// TestMentionTrackedWithoutContact verifies that a mention counts even
// when its contact card is missing or broken
func TestMentionTrackedWithoutContact(t *testing.T) {
	messages := []Message{{Text: "חסר.vcf (file attached)"}}

	mentioned := make(map[string]bool)
	recs := ExtractContactMentions(messages, map[string]*ContactRecord{}, mentioned)

	if len(recs) != 0 {
		t.Errorf("got %d recommendations, want 0", len(recs))
	}
	if !mentioned["חסר.vcf"] {
		t.Error("mention of a missing contact card not tracked")
	}
}

// TestIncludeUnmentionedContacts verifies the file-sourced stream
func TestIncludeUnmentionedContacts(t *testing.T) {
	contacts := map[string]*ContactRecord{
		"דוד.vcf": {Name: "דוד", Phone: "+972-521-112222", Filename: "דוד.vcf"},
		"יוסי.vcf": {Name: "יוסי", Phone: "+972-501-234567", Filename: "יוסי.vcf"},
	}
	mentioned := map[string]bool{"דוד.vcf": true}

	recs := IncludeUnmentionedContacts(contacts, mentioned)
	if len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recs))
	}
	if recs[0].Name != "יוסי" {
		t.Errorf("name = %q, want %q", recs[0].Name, "יוסי")
	}
	if recs[0].Context != "From file: יוסי.vcf" {
		t.Errorf("context = %q, want file reference", recs[0].Context)
	}
}

// TestInformationScore verifies the record quality score
func TestInformationScore(t *testing.T) {
	tests := []struct {
		name string
		rec  Recommendation
		want int
	}{
		{
			name: "bare record",
			rec:  Recommendation{Name: "דוד", Phone: "+972-521-112222", Context: "קצר"},
			want: 0,
		},
		{
			name: "service only",
			rec:  Recommendation{Name: "דוד", Phone: "+972-521-112222", Service: strPtr("חשמלאי")},
			want: 1,
		},
		{
			name: "all components",
			rec: Recommendation{
				Name:    "דוד",
				Phone:   "+972-521-112222",
				Service: strPtr("חשמלאי"),
				Date:    strPtr("2024-01-01 10:00:00"),
				Context: "הקשר ארוך מספיק כדי להיחשב",
			},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InformationScore(tt.rec); got != tt.want {
				t.Errorf("InformationScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestDeduplicate verifies duplicate collapse by name and phone
func TestDeduplicate(t *testing.T) {
	t.Run("richer record wins", func(t *testing.T) {
		poor := Recommendation{Name: "דוד", Phone: "+972-521-112222", Context: "קצר"}
		rich := Recommendation{Name: "דוד", Phone: "+972-521-112222", Service: strPtr("חשמלאי")}

		got := Deduplicate([]Recommendation{poor, rich})
		if len(got) != 1 {
			t.Fatalf("got %d recommendations, want 1", len(got))
		}
		if got[0].Service == nil {
			t.Error("richer record was not kept")
		}
	})

	t.Run("tie keeps first", func(t *testing.T) {
		first := Recommendation{Name: "דוד", Phone: "+972-521-112222", Service: strPtr("חשמלאי")}
		second := Recommendation{Name: "דוד", Phone: "+972-521-112222", Service: strPtr("אינסטלטור")}

		got := Deduplicate([]Recommendation{first, second})
		if len(got) != 1 {
			t.Fatalf("got %d recommendations, want 1", len(got))
		}
		if *got[0].Service != "חשמלאי" {
			t.Errorf("service = %q, want the first record kept", *got[0].Service)
		}
	})

	t.Run("phone format variants collide", func(t *testing.T) {
		local := Recommendation{Name: "דוד", Phone: "0521112222"}
		intl := Recommendation{Name: "דוד", Phone: "+972-521-112222"}

		if got := Deduplicate([]Recommendation{local, intl}); len(got) != 1 {
			t.Errorf("got %d recommendations, want 1", len(got))
		}
	})

	t.Run("case insensitive name", func(t *testing.T) {
		a := Recommendation{Name: "David", Phone: "0521112222"}
		b := Recommendation{Name: "david", Phone: "0521112222"}

		if got := Deduplicate([]Recommendation{a, b}); len(got) != 1 {
			t.Errorf("got %d recommendations, want 1", len(got))
		}
	})

	t.Run("different providers kept in order", func(t *testing.T) {
		a := Recommendation{Name: "דוד", Phone: "0521112222"}
		b := Recommendation{Name: "יוסי", Phone: "0501234567"}

		got := Deduplicate([]Recommendation{a, b})
		if len(got) != 2 {
			t.Fatalf("got %d recommendations, want 2", len(got))
		}
		if got[0].Name != "דוד" || got[1].Name != "יוסי" {
			t.Error("first-seen order not preserved")
		}
	})
}
