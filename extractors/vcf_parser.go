package extractors

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ContactRecord is one parsed contact card.
type ContactRecord struct {
	Name     string  // display name, cleaned of any "- Service" suffix
	Phone    string  // normalized phone
	Service  *string // inferred from the name or the filename, may be nil
	Filename string  // source filename, the correlation key for chat mentions
}

var (
	vcfFormattedName = regexp.MustCompile(`(?m)^FN(?:;[^:]*)?:([^\r\n]+)`)
	vcfStructured    = regexp.MustCompile(`(?m)^N(?:;[^:]*)?:([^\r\n]+)`)
	vcfTelPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`TEL[^:]*:([+\d\s\-]+)`),
		regexp.MustCompile(`item\d+\.TEL[^:]*:([+\d\s\-]+)`),
	}

	dashSuffixPattern = regexp.MustCompile(`\s*[-–—]\s*.*$`)
	separatorRuns     = regexp.MustCompile(`[.\-_]+`)
	whitespaceRuns    = regexp.MustCompile(`\s+`)
	dotSpaceRuns      = regexp.MustCompile(`[.\s]+`)
)

// ParseContact parses one contact card's content. The filename participates
// in name and service inference. A record needs both a name and a phone;
// anything less yields nil.
func ParseContact(filename, content string) *ContactRecord {
	name := contactName(filename, content)
	phone := contactPhone(content)
	if name == "" || phone == "" {
		return nil
	}

	// Service inference priority: "Name - Service" split inside the name
	// itself, then the filename.
	var service *string
	if namePart, servicePart, ok := SplitNameService(name); ok {
		name = namePart
		service = &servicePart
	} else if s := extractServiceFromFilename(filename, name); s != "" {
		service = &s
	}

	return &ContactRecord{
		Name:     name,
		Phone:    phone,
		Service:  service,
		Filename: filename,
	}
}

// contactName resolves the display name: FN field, then the N field with
// semicolon components joined, then the filename stem with any dash suffix
// stripped.
func contactName(filename, content string) string {
	if m := vcfFormattedName.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}

	if m := vcfStructured.FindStringSubmatch(content); m != nil {
		var parts []string
		for _, p := range strings.Split(strings.TrimSpace(m[1]), ";") {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			return strings.TrimSpace(strings.Join(parts, " "))
		}
	}

	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	name := strings.TrimSpace(dashSuffixPattern.ReplaceAllString(stem, ""))
	if len([]rune(name)) < 2 {
		return ""
	}
	return name
}

func contactPhone(content string) string {
	for _, pattern := range vcfTelPatterns {
		if m := pattern.FindStringSubmatch(content); m != nil {
			return NormalizePhone(m[1])
		}
	}
	return ""
}

// extractServiceFromFilename infers a service description from a contact
// filename. A "PartA - PartB" split is resolved against the known name to
// decide which side is the service; without a match the longer side wins.
// Otherwise the name is stripped out of the stem and any remaining
// meaningful text is taken as the service.
func extractServiceFromFilename(filename, name string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	if part1, part2, ok := splitOnDash(stem); ok {
		nameClean := strings.ToLower(strings.TrimSpace(name))
		prefix := nameClean
		if len([]rune(prefix)) > 3 {
			prefix = string([]rune(prefix)[:3])
		}
		p1, p2 := strings.ToLower(part1), strings.ToLower(part2)
		switch {
		case nameClean != "" && (p1 == nameClean || strings.HasPrefix(p1, prefix)):
			if len([]rune(part2)) >= 3 {
				return part2
			}
		case nameClean != "" && (p2 == nameClean || strings.HasPrefix(p2, prefix)):
			if len([]rune(part1)) >= 3 {
				return part1
			}
		default:
			if len([]rune(part1)) >= 3 && len(part1) > len(part2) {
				return part1
			}
			if len([]rune(part2)) >= 3 {
				return part2
			}
		}
	}

	// Fallback: remove the known name (in several separator spellings)
	// and keep whatever meaningful text remains.
	remainder := stem
	if name != "" {
		for _, variant := range []string{
			name,
			strings.ReplaceAll(name, " ", ""),
			strings.ReplaceAll(name, ".", ""),
			strings.ReplaceAll(name, " ", "."),
			strings.ReplaceAll(name, ".", " "),
		} {
			re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(variant))
			if err != nil {
				continue
			}
			remainder = re.ReplaceAllString(remainder, "")
			remainder = strings.TrimSpace(dotSpaceRuns.ReplaceAllString(remainder, " "))
		}
	}

	remainder = separatorRuns.ReplaceAllString(remainder, " ")
	remainder = strings.TrimSpace(whitespaceRuns.ReplaceAllString(remainder, " "))

	// A remainder still contained in the name is leftover of a partial
	// strip, not a service.
	if len([]rune(remainder)) >= 3 && !strings.Contains(strings.ToLower(name), strings.ToLower(remainder)) {
		return remainder
	}
	return ""
}

// splitOnDash splits "PartA - PartB" on the first dash variant.
func splitOnDash(s string) (string, string, bool) {
	for _, dash := range []string{"-", "–", "—"} {
		if idx := strings.Index(s, dash); idx > 0 {
			part1 := strings.TrimSpace(s[:idx])
			part2 := strings.TrimSpace(s[idx+len(dash):])
			if part1 != "" && part2 != "" {
				return part1, part2, true
			}
		}
	}
	return "", "", false
}

// ParseContactFile reads and parses one contact card file.
func ParseContactFile(path string) (*ContactRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contact file: %w", err)
	}
	return ParseContact(filepath.Base(path), string(content)), nil
}

// ParseContactDir parses every *.vcf file in dir and returns records keyed
// by lowercased filename. Unreadable or incomplete cards are skipped.
func ParseContactDir(dir string) (map[string]*ContactRecord, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.vcf"))
	if err != nil {
		return nil, fmt.Errorf("failed to list contact files: %w", err)
	}
	sort.Strings(entries)

	contacts := make(map[string]*ContactRecord)
	for _, path := range entries {
		record, err := ParseContactFile(path)
		if err != nil {
			log.Printf("Skipping contact file %s: %v", filepath.Base(path), err)
			continue
		}
		if record != nil {
			contacts[strings.ToLower(record.Filename)] = record
		}
	}
	return contacts, nil
}
