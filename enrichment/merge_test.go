package enrichment

import (
	"testing"

	"recserver/extractors"
)

func strPtr(s string) *string { return &s }

func TestMergeEnhancementsServiceOnlyWhenNull(t *testing.T) {
	original := []extractors.Recommendation{
		{Name: "דוד", Phone: "+972-52-111-2222"},
		{Name: "יוסי", Phone: "+972-50-123-4567", Service: strPtr("אינסטלטור")},
	}
	enhanced := []ModelRecord{
		{Name: "דוד", Phone: "+972-52-111-2222", Service: "חשמלאי"},
		{Name: "יוסי", Phone: "+972-50-123-4567", Service: "גנן"},
	}

	merged := MergeEnhancements(original, enhanced)

	if merged[0].Service == nil || *merged[0].Service != "חשמלאי" {
		t.Errorf("null service should be filled, got %v", merged[0].Service)
	}
	if *merged[1].Service != "אינסטלטור" {
		t.Errorf("existing service must not change, got %q", *merged[1].Service)
	}
}

func TestMergeEnhancementsName(t *testing.T) {
	original := []extractors.Recommendation{
		{Name: extractors.UnknownName, Phone: "050"},
		{Name: "דוד", Phone: "052"},
		{Name: "דוד כהן", Phone: "053"},
	}
	enhanced := []ModelRecord{
		{Name: "משה", Phone: "050"},
		{Name: "דוד כהן", Phone: "052"},
		{Name: "דוד", Phone: "053"},
	}

	merged := MergeEnhancements(original, enhanced)

	if merged[0].Name != "משה" {
		t.Errorf("Unknown name should be replaced, got %q", merged[0].Name)
	}
	if merged[1].Name != "דוד כהן" {
		t.Errorf("longer name should win, got %q", merged[1].Name)
	}
	if merged[2].Name != "דוד כהן" {
		t.Errorf("shorter name must not replace, got %q", merged[2].Name)
	}
}

func TestMergeEnhancementsContext(t *testing.T) {
	original := []extractors.Recommendation{
		{Name: "דוד", Phone: "050", Context: "עבודה מצוינת"},
		{Name: "יוסי", Phone: "052"},
		{Name: "רון", Phone: "053", Context: "עבודה מצוינת"},
	}
	enhanced := []ModelRecord{
		{Name: "דוד", Phone: "050", Context: "מחירים הוגנים"},
		{Name: "יוסי", Phone: "052", Context: "זמין בערב"},
		{Name: "רון", Phone: "053", Context: "עבודה מצוינת. מחירים הוגנים"},
	}

	merged := MergeEnhancements(original, enhanced)

	if merged[0].Context != "עבודה מצוינת. מחירים הוגנים" {
		t.Errorf("contexts should concatenate, got %q", merged[0].Context)
	}
	if merged[1].Context != "זמין בערב" {
		t.Errorf("empty context should adopt enhanced, got %q", merged[1].Context)
	}
	if merged[2].Context != "עבודה מצוינת. מחירים הוגנים" {
		t.Errorf("superset context should replace, got %q", merged[2].Context)
	}

	// re-merging the same enhancement must not duplicate the context
	again := MergeEnhancements(merged, enhanced)
	if again[0].Context != "עבודה מצוינת. מחירים הוגנים" {
		t.Errorf("merge should be idempotent, got %q", again[0].Context)
	}
}

func TestMergeEnhancementsRecommender(t *testing.T) {
	original := []extractors.Recommendation{
		{Name: "דוד", Phone: "050", Recommender: strPtr("+972-50-111-1111")},
		{Name: "יוסי", Phone: "052"},
		{Name: "רון", Phone: "053"},
	}
	enhanced := []ModelRecord{
		{Name: "דוד", Phone: "050", Recommender: "משה לוי - +972-50-222-3333"},
		{Name: "יוסי", Phone: "052", Recommender: "+972-50-444-5555"},
		{Name: "רון", Phone: "053", Recommender: "משה לוי"},
	}

	merged := MergeEnhancements(original, enhanced)

	if merged[0].Recommender == nil || *merged[0].Recommender != "+972-50-222-3333" {
		t.Errorf("Name - Phone should reduce to phone part, got %v", merged[0].Recommender)
	}
	if merged[1].Recommender == nil || *merged[1].Recommender != "+972-50-444-5555" {
		t.Errorf("empty recommender should adopt phone, got %v", merged[1].Recommender)
	}
	if merged[2].Recommender != nil {
		t.Errorf("bare name without digits must not be adopted, got %v", merged[2].Recommender)
	}
}

func TestMergeEnhancementsUnmatchedPassThrough(t *testing.T) {
	original := []extractors.Recommendation{
		{Name: "דוד", Phone: "050"},
		{Name: "יוסי", Phone: "052"},
	}
	enhanced := []ModelRecord{
		{Name: "יוסי המוביל", Phone: "052", Service: "מוביל"},
	}

	merged := MergeEnhancements(original, enhanced)

	if len(merged) != 2 {
		t.Fatalf("expected 2 records, got %d", len(merged))
	}
	if merged[0].Name != "דוד" || merged[0].Service != nil {
		t.Errorf("unmatched record should pass through untouched: %+v", merged[0])
	}
	if merged[1].Service == nil || *merged[1].Service != "מוביל" {
		t.Errorf("phone match should merge despite position shift, got %v", merged[1].Service)
	}
}

func TestNormalizeMatchPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+972-52-111-2222", "0521112222"},
		{"972521112222", "0521112222"},
		{"052 111 2222", "0521112222"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeMatchPhone(tt.in); got != tt.want {
			t.Errorf("normalizeMatchPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
