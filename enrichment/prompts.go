package enrichment

import (
	"fmt"
	"strings"

	"recserver/extractors"
)

const (
	// DefaultBatchSize batch size for the main enhancement pass
	DefaultBatchSize = 100
	// NullServiceBatchSize smaller batch size for the extended-context second pass
	NullServiceBatchSize = 50
	// NullServiceWindow messages of context on each side for null-service entries
	NullServiceWindow = 10
	// StandardWindow messages of context on each side for entries with a service
	StandardWindow = 5
)

// modelContextLimits approximate context window sizes per model
var modelContextLimits = map[string]int{
	"gpt-4o-mini":   128000,
	"gpt-4o":        128000,
	"gpt-3.5-turbo": 16385,
	"gpt-5":         200000,
	"gpt-4.1":       128000,
	"o4-mini":       128000,
}

// EstimateTokens rough token count, about 4 characters per token
func EstimateTokens(text string) int {
	return len(text) / 4
}

// SafeInputTokens returns the prompt budget for a model, reserving response
// tokens per record plus a safety margin.
func SafeInputTokens(model string, batchSize, perRecordReserve int) int {
	limit, ok := modelContextLimits[model]
	if !ok {
		limit = 128000
	}
	return limit - batchSize*perRecordReserve - 1000
}

const enhancementSystemPrompt = "You are a helpful assistant that extracts and enhances business recommendations from chat messages. " +
	"CRITICAL: The 'service' field is the MOST IMPORTANT field. Extract ONLY the service/occupation name (e.g., 'מוביל', 'חשמלאי') - NOT full sentences like 'לכם המלצה על מוביל טוב'. " +
	"Remove conversational prefixes. IMPORTANT: Only update the 'service' field when it is null - do NOT change existing service values. " +
	"For ALL entries (regardless of service value), update the 'context' field with additional relevant information. " +
	"For the 'recommender' field: Keep it as the phone number only. Do NOT add names or format as 'Name - Phone'. " +
	"The recommender is the SENDER of the message (their phone number is already in the field). Always return valid JSON arrays."

const nullServiceSystemPrompt = "You are a helpful assistant that extracts OCCUPATIONS from chat messages. " +
	"The 'service' field should contain the person's OCCUPATION. Other relevant details should go in the 'context' field. " +
	"For the 'recommender' field: Keep it as the phone number only. Do NOT add names or format as 'Name - Phone'. " +
	"The recommender is the SENDER of the message (their phone number is already in the field). Always return valid JSON arrays. " +
	"Only update the 'service', 'context', and 'recommender' fields for entries where service is null."

// BuildEnhancementPrompt builds the prompt for the main pass: enrich context
// and recommender for every record, fill service only where it is null.
func BuildEnhancementPrompt(recs []extractors.Recommendation, messages []extractors.Message, contextWindow int) string {
	var b strings.Builder

	b.WriteString("You are analyzing WhatsApp chat messages and contact files to extract and enhance business recommendations.\n")
	b.WriteString("\n")
	b.WriteString("CRITICAL: The 'service' field is the MOST IMPORTANT field. Extract ONLY the service/occupation name - NOT full sentences.\n")
	b.WriteString("\n")
	b.WriteString("For each recommendation below, I need you to:\n")
	b.WriteString("1. Extract OCCUPATION in the 'service' field ONLY when service is null (do NOT change existing service values)\n")
	b.WriteString("2. The 'service' field should contain ONLY the person's OCCUPATION/SERVICE NAME - NOT full sentences or conversational text.\n")
	b.WriteString("\n")
	b.WriteString("EXAMPLES of CORRECT service extraction:\n")
	b.WriteString("  - 'מוביל' (NOT 'לכם המלצה על מוביל טוב')\n")
	b.WriteString("  - 'חשמלאי' (NOT 'המלצה על חשמלאי מעולה')\n")
	b.WriteString("  - 'מתקין מזגנים' (NOT 'מומלץ מתקין מזגנים')\n")
	b.WriteString("\n")
	b.WriteString("3. For ALL entries (regardless of service value): Place other important information in the 'context' field (work quality, location, pricing, specializations, experience level, etc.)\n")
	b.WriteString("4. For ALL entries (regardless of service value): Keep the 'recommender' field as the phone number only. Do NOT add names or format as 'Name - Phone'. The recommender is the SENDER of the message (their phone number is already in the field).\n")
	b.WriteString("5. Improve/correct existing fields (name, context, recommender) - but do NOT change existing service values\n")
	b.WriteString("6. Preserve valid existing data (especially existing service values)\n")
	b.WriteString("7. All responses must be in valid JSON format\n")
	b.WriteString("\n")
	b.WriteString("IMPORTANT:\n")
	b.WriteString("- Return ALL recommendations in your response (even if unchanged)\n")
	b.WriteString("- Use the exact same structure as input\n")
	b.WriteString("- Keep phone numbers exactly as provided\n")
	b.WriteString("- Preserve dates and other metadata\n")
	b.WriteString("- For ALL entries: Keep 'recommender' field as phone number only. Do NOT add names.\n")
	b.WriteString("- For ALL entries: Update 'context' field with additional relevant information\n")
	b.WriteString("- Only update 'service' field when it is null (do NOT change existing service values)\n")
	b.WriteString("- When extracting service, extract ONLY the service/occupation name - remove conversational prefixes like 'לכם המלצה על', 'מומלץ', etc.\n")
	b.WriteString("- Only enhance/improve fields, don't remove valid data\n")
	b.WriteString("- 'service' = OCCUPATION only; other details go in 'context'\n")
	b.WriteString("\n")
	b.WriteString("RECOMMENDATIONS TO ENHANCE:\n")
	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n")

	for i, rec := range recs {
		fmt.Fprintf(&b, "\n--- Recommendation %d/%d ---\n", i+1, len(recs))
		b.WriteString("Current data:\n")
		fmt.Fprintf(&b, "  Name: %s\n", rec.Name)
		fmt.Fprintf(&b, "  Phone: %s\n", rec.Phone)
		fmt.Fprintf(&b, "  Service: %s\n", strOrNull(rec.Service))
		fmt.Fprintf(&b, "  Date: %s\n", strOrNA(rec.Date))
		fmt.Fprintf(&b, "  Recommender: %s\n", strOrNA(rec.Recommender))
		b.WriteString("\nFull chat context:\n")
		b.WriteString(extractors.FullContext(rec, messages, contextWindow))
		b.WriteString("\n\n")
	}

	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n\n")
	b.WriteString("Return a JSON object with this structure:\n")
	b.WriteString(`{"recommendations": [/* array of enhanced recommendations */]}`)
	b.WriteString("\n\n")
	b.WriteString("Each recommendation should have: name, phone, service, date, recommender, context, chat_message_index\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Return ALL recommendations in the same order\n")
	b.WriteString("- Extract OCCUPATION in 'service' field ONLY when service is null (do NOT update existing service values)\n")
	b.WriteString("- 'service' should contain ONLY the occupation/service name - NOT full sentences\n")
	b.WriteString("  Examples: 'מוביל', 'חשמלאי', 'מתקין מזגנים', 'רופא' - remove prefixes like 'לכם המלצה על', 'מומלץ', etc.\n")
	b.WriteString("- For ALL entries (regardless of service value): Update 'context' field with additional relevant information (work quality, location, pricing, specializations, experience, etc.)\n")
	b.WriteString("- For ALL entries (regardless of service value): Keep 'recommender' field as phone number only. Do NOT add names or format as 'Name - Phone'.\n")
	b.WriteString("  The recommender is the SENDER of the message (their phone number is already in the field).\n")
	b.WriteString("- Improve names if they are 'Unknown' or clearly wrong\n")
	b.WriteString("- Preserve all valid existing data (phone, date, chat_message_index)\n")
	b.WriteString("- Keep phone numbers exactly as provided\n")
	b.WriteString("- Return service as null if occupation cannot be determined, otherwise extract it from context ONLY when service was originally null\n")

	return b.String()
}

// BuildNullServicePrompt builds the focused second-pass prompt: extract an
// occupation for records whose service is still null, using extended context.
func BuildNullServicePrompt(recs []extractors.Recommendation, messages []extractors.Message, contextWindow int) string {
	var b strings.Builder

	b.WriteString("You are analyzing WhatsApp chat messages to extract OCCUPATIONS/SERVICES for recommendations.\n")
	b.WriteString("\n")
	b.WriteString("CRITICAL: The 'service' field is the MOST IMPORTANT field. If service cannot be extracted, the entry should be removed.\n")
	b.WriteString("\n")
	b.WriteString("For each recommendation below that has service=null, extract the OCCUPATION from the chat context.\n")
	b.WriteString("The 'service' field should contain ONLY the person's OCCUPATION/SERVICE NAME - NOT full sentences or conversational text.\n")
	b.WriteString("\n")
	b.WriteString("EXAMPLES of CORRECT service extraction:\n")
	b.WriteString("  - 'מוביל' (NOT 'לכם המלצה על מוביל טוב')\n")
	b.WriteString("  - 'חשמלאי' (NOT 'המלצה על חשמלאי מעולה')\n")
	b.WriteString("  - 'מתקין מזגנים' (NOT 'מומלץ מתקין מזגנים')\n")
	b.WriteString("  - 'אינסטלטור' (NOT 'יש לכם המלצה על אינסטלטור?')\n")
	b.WriteString("\n")
	b.WriteString("The 'service' field should contain the person's OCCUPATION (e.g., 'מתקין מזגנים', 'חשמלאי', 'אינסטלטור', 'רופא', 'טכנאי מחשבים', 'מוביל', 'גנן').\n")
	b.WriteString("Any other important information (quality of work, location hints, pricing, etc.) should be placed in the 'context' field.\n")
	b.WriteString("For the 'recommender' field: Keep it as the phone number only. Do NOT add names. The recommender is the SENDER of the message (their phone number is already in the field).\n")
	b.WriteString("  Keep the recommender field as just the phone number - do NOT format as 'Name - Phone'.\n")
	b.WriteString("\n")
	b.WriteString("IMPORTANT:\n")
	b.WriteString("- Return ALL recommendations in your response (even if unchanged)\n")
	b.WriteString("- Only update the 'service' field (with OCCUPATION) for recommendations where service is null\n")
	b.WriteString("- Extract ONLY the service/occupation name - remove all conversational prefixes like 'לכם המלצה על', 'מומלץ', etc.\n")
	b.WriteString("- Update the 'context' field with any additional relevant information from the chat (work quality, location, pricing, etc.)\n")
	b.WriteString("- For the 'recommender' field: Keep it as the phone number only. Do NOT add names or format as 'Name - Phone'.\n")
	b.WriteString("- Use the exact same structure as input\n")
	b.WriteString("- Keep all other fields (name, phone, date, chat_message_index) exactly as provided\n")
	b.WriteString("- If you cannot determine an occupation from context, leave service as null (entry will be removed)\n")
	b.WriteString("\n")
	b.WriteString("RECOMMENDATIONS TO ENHANCE (service=null):\n")
	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n")

	for i, rec := range recs {
		fmt.Fprintf(&b, "\n--- Recommendation %d/%d ---\n", i+1, len(recs))
		b.WriteString("Current data:\n")
		fmt.Fprintf(&b, "  Name: %s\n", rec.Name)
		fmt.Fprintf(&b, "  Phone: %s\n", rec.Phone)
		b.WriteString("  Service: null (NEEDS EXTRACTION)\n")
		fmt.Fprintf(&b, "  Date: %s\n", strOrNA(rec.Date))
		fmt.Fprintf(&b, "  Recommender: %s\n", strOrNA(rec.Recommender))
		fmt.Fprintf(&b, "\nExtended chat context (±%d messages):\n", contextWindow)
		b.WriteString(extractors.FullContext(rec, messages, contextWindow))
		b.WriteString("\n\n")
	}

	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n\n")
	b.WriteString("Return a JSON object with this structure:\n")
	b.WriteString(`{"recommendations": [/* array of recommendations with extracted services */]}`)
	b.WriteString("\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Return ALL recommendations in the same order\n")
	b.WriteString("- ONLY update the 'service' field (with OCCUPATION) for entries where service was null\n")
	b.WriteString("- Extract ONLY the OCCUPATION/SERVICE NAME from the extended context - NOT full sentences\n")
	b.WriteString("  Examples: 'מוביל', 'חשמלאי', 'מתקין מזגנים', 'אינסטלטור', 'רופא', 'טכנאי מחשבים', 'גנן', 'מתווך'\n")
	b.WriteString("  Remove conversational prefixes like 'לכם המלצה על', 'מומלץ', 'המלצה על' - extract just the service name\n")
	b.WriteString("- Update 'context' field with additional relevant information (work quality, location, pricing, specializations, etc.)\n")
	b.WriteString("- For the 'recommender' field: Keep it as the phone number only. Do NOT add names or format as 'Name - Phone'.\n")
	b.WriteString("  The recommender is the SENDER of the message (their phone number is already in the field).\n")
	b.WriteString("- Keep all other fields exactly as provided\n")
	b.WriteString("- If occupation cannot be determined, leave service as null (entry will be removed)\n")

	return b.String()
}

func strOrNull(s *string) string {
	if s == nil || *s == "" {
		return "null"
	}
	return *s
}

func strOrNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}
