// Generates a synthetic WhatsApp export for manual testing: a chat
// transcript with recommendation messages, a set of vCard files and a
// zip archive bundling both, shaped like a real phone export.
package main

import (
	"archive/zip"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var hebrewFirstNames = []string{
	"דוד", "יוסי", "משה", "רון", "אבי", "שרה", "רחל", "מיכל", "נועה", "תמר",
}

var hebrewLastNames = []string{
	"כהן", "לוי", "מזרחי", "פרץ", "ביטון", "אברהם", "פרידמן", "שפירא",
}

var services = []string{
	"חשמלאי", "אינסטלטור", "שיפוצניק", "גנן", "מנעולן", "טכנאי מזגנים",
	"צבעי", "הובלות", "מורה פרטי", "מטפלת",
}

var recommendationTemplates = []string{
	"ממליץ על %s - %s, %s",
	"ממליצה בחום על %s %s, מספר: %s",
	"יש את %s, %s מעולה. %s",
	"תתקשרו ל%s (%s) %s, עשה אצלנו עבודה מצוינת",
}

var requestTemplates = []string{
	"מישהו מכיר %s טוב באזור?",
	"מחפשת %s דחוף, תודה",
	"המלצות על %s בבקשה",
}

func main() {
	outDir := flag.String("out", "testdata/generated", "output directory")
	messages := flag.Int("messages", 120, "number of chat messages")
	contacts := flag.Int("contacts", 15, "number of vCard files")
	seed := flag.Int64("seed", 0, "random seed (0 for fixed output)")
	flag.Parse()

	gofakeit.Seed(*seed)

	vcfDir := filepath.Join(*outDir, "vcf")
	txtDir := filepath.Join(*outDir, "txt")
	for _, dir := range []string{vcfDir, txtDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("creating %s: %v", dir, err)
		}
	}

	vcfFiles := writeContacts(vcfDir, *contacts)
	chatPath := writeChat(txtDir, *messages, vcfFiles)

	zipPath := filepath.Join(*outDir, "export.zip")
	if err := writeArchive(zipPath, append([]string{chatPath}, vcfFiles...)); err != nil {
		log.Fatalf("writing archive: %v", err)
	}

	fmt.Printf("Generated %d messages, %d contacts under %s\n", *messages, *contacts, *outDir)
	fmt.Printf("Archive: %s\n", zipPath)
}

func hebrewName() string {
	first := hebrewFirstNames[gofakeit.Number(0, len(hebrewFirstNames)-1)]
	last := hebrewLastNames[gofakeit.Number(0, len(hebrewLastNames)-1)]
	return first + " " + last
}

func israeliPhone() string {
	return fmt.Sprintf("05%d%07d", gofakeit.Number(0, 8), gofakeit.Number(0, 9999999))
}

func service() string {
	return services[gofakeit.Number(0, len(services)-1)]
}

func writeContacts(dir string, count int) []string {
	var paths []string
	for i := 0; i < count; i++ {
		name := hebrewName()
		filename := name + ".vcf"
		if gofakeit.Bool() {
			filename = name + " - " + service() + ".vcf"
		}

		content := strings.Join([]string{
			"BEGIN:VCARD",
			"VERSION:3.0",
			"FN:" + strings.TrimSuffix(filename, ".vcf"),
			"TEL;CELL:" + israeliPhone(),
			"END:VCARD",
			"",
		}, "\n")

		path := filepath.Join(dir, filename)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			log.Fatalf("writing %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	return paths
}

func writeChat(dir string, count int, vcfFiles []string) string {
	var b strings.Builder
	when := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		when = when.Add(time.Duration(gofakeit.Number(1, 180)) * time.Minute)
		stamp := when.Format("02/01/2006, 15:04")
		sender := israeliPhone()

		var text string
		switch gofakeit.Number(0, 5) {
		case 0, 1:
			tmpl := recommendationTemplates[gofakeit.Number(0, len(recommendationTemplates)-1)]
			text = fmt.Sprintf(tmpl, hebrewName(), service(), israeliPhone())
		case 2:
			tmpl := requestTemplates[gofakeit.Number(0, len(requestTemplates)-1)]
			text = fmt.Sprintf(tmpl, service())
		case 3:
			if len(vcfFiles) > 0 {
				name := filepath.Base(vcfFiles[gofakeit.Number(0, len(vcfFiles)-1)])
				text = name + " (file attached)"
			} else {
				text = "תודה רבה!"
			}
		default:
			text = gofakeit.Sentence(gofakeit.Number(3, 8))
		}

		fmt.Fprintf(&b, "%s - %s: %s\n", stamp, sender, text)
	}

	path := filepath.Join(dir, "WhatsApp Chat with Neighborhood.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		log.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func writeArchive(zipPath string, files []string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		entry, err := zw.Create(filepath.Base(path))
		if err != nil {
			return err
		}
		if _, err := entry.Write(data); err != nil {
			return err
		}
	}
	return nil
}
