package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"recserver/extractors"
)

// Format export format
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatExcel    Format = "xlsx"
	FormatMarkdown Format = "markdown"
)

// Write renders recommendations to w in the given format.
func Write(w io.Writer, format Format, recs []extractors.Recommendation) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, recs)
	case FormatCSV:
		return WriteCSV(w, recs)
	case FormatExcel:
		return WriteExcel(w, recs)
	case FormatMarkdown:
		return WriteMarkdown(w, recs)
	default:
		return fmt.Errorf("unknown export format: %s", format)
	}
}

// WriteFile renders recommendations into a file.
func WriteFile(format Format, filename string, recs []extractors.Recommendation) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return Write(file, format, recs)
}

// WriteJSON writes the recommendation array as indented JSON
func WriteJSON(w io.Writer, recs []extractors.Recommendation) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if recs == nil {
		recs = []extractors.Recommendation{}
	}
	if err := encoder.Encode(recs); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// WriteCSV writes recommendations as CSV with a header row
func WriteCSV(w io.Writer, recs []extractors.Recommendation) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	headers := []string{"Name", "Phone", "Service", "Date", "Recommender", "Context"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for _, rec := range recs {
		record := []string{
			rec.Name,
			rec.Phone,
			strValue(rec.Service),
			strValue(rec.Date),
			strValue(rec.Recommender),
			rec.Context,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}

// WriteExcel writes recommendations as a styled Excel workbook
func WriteExcel(w io.Writer, recs []extractors.Recommendation) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Recommendations"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	headers := []string{"Name", "Phone", "Service", "Date", "Recommender", "Context"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, rec := range recs {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), rec.Name)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), rec.Phone)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), strValue(rec.Service))
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), strValue(rec.Date))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), strValue(rec.Recommender))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), rec.Context)
	}

	widths := []float64{20, 18, 20, 20, 18, 45}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, width)
	}

	f.SetActiveSheet(index)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}

	return nil
}

// WriteMarkdown writes recommendations as a Markdown table, entries with a
// service first, sorted by service then name.
func WriteMarkdown(w io.Writer, recs []extractors.Recommendation) error {
	sorted := make([]extractors.Recommendation, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		iHas := sorted[i].Service != nil && *sorted[i].Service != ""
		jHas := sorted[j].Service != nil && *sorted[j].Service != ""
		if iHas != jHas {
			return iHas
		}
		iService, jService := strValue(sorted[i].Service), strValue(sorted[j].Service)
		if iService != jService {
			return iService < jService
		}
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	var b strings.Builder
	b.WriteString("# Recommendations\n\n")
	fmt.Fprintf(&b, "Total recommendations: %d\n\n", len(recs))
	b.WriteString("| Name | Phone | Service | Date | Recommender | Context |\n")
	b.WriteString("|------|-------|---------|------|-------------|--------|\n")

	for _, rec := range sorted {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			escapeMarkdown(rec.Name),
			FormatPhone(rec.Phone),
			escapeMarkdown(strValue(rec.Service)),
			formatDate(strValue(rec.Date)),
			escapeMarkdown(strValue(rec.Recommender)),
			truncate(escapeMarkdown(rec.Context), 60),
		)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write markdown: %w", err)
	}
	return nil
}

// FormatPhone renders a phone in the local display form 0XX-XXX-XXXX
func FormatPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	if strings.HasPrefix(phone, "+972") {
		rest := strings.TrimPrefix(phone, "+972")
		rest = strings.ReplaceAll(strings.TrimPrefix(rest, "-"), "-", "")
		switch {
		case strings.HasPrefix(rest, "0") && len(rest) >= 10:
			return rest[:3] + "-" + rest[3:6] + "-" + rest[6:]
		case len(rest) >= 9:
			return "0" + rest[:2] + "-" + rest[2:5] + "-" + rest[5:]
		}
		return phone
	}

	phone = strings.NewReplacer(" ", "-", "(", "", ")", "").Replace(phone)
	digits := digitsOf(phone)
	switch len(digits) {
	case 9:
		return digits[:2] + "-" + digits[2:5] + "-" + digits[5:]
	case 10:
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
	}
	return phone
}

// formatDate keeps the date part of a "YYYY-MM-DD HH:MM:SS" timestamp
func formatDate(date string) string {
	if date == "" {
		return ""
	}
	if idx := strings.IndexByte(date, ' '); idx > 0 {
		return date[:idx]
	}
	return date
}

func escapeMarkdown(text string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ", "\r", " ").Replace(text)
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
