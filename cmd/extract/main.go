// Command extract runs the recommendation pipeline over an exported chat
// on disk and writes the result set to JSON, with optional tabular
// exports and a post-run quality report.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"recserver/analysis"
	"recserver/enrichment"
	"recserver/export"
	"recserver/extractors"
	"recserver/pipeline"
	"recserver/server/services"
)

func main() {
	input := flag.String("input", "", "zip archive or directory with the exported chat")
	vcfDir := flag.String("vcf-dir", "", "directory with .vcf contact files (overrides -input routing)")
	txtDir := flag.String("txt-dir", "", "directory with .txt chat transcripts (overrides -input routing)")
	out := flag.String("out", "recommendations.json", "output JSON path")
	useAI := flag.Bool("use-ai", false, "enhance records with OpenAI")
	model := flag.String("model", "gpt-4o-mini", "OpenAI model for enhancement")
	apiKey := flag.String("api-key", "", "OpenAI API key (defaults to OPENAI_API_KEY / api_key.txt)")
	skipCleanup := flag.Bool("skip-cleanup", false, "skip both cleanup passes")
	skipAnalysis := flag.Bool("skip-analysis", false, "skip the quality report")
	exportFormat := flag.String("export", "", "additional export format: xlsx, csv or markdown")
	flag.Parse()

	if err := run(*input, *vcfDir, *txtDir, *out, *useAI, *model, *apiKey, *skipCleanup, *skipAnalysis, *exportFormat); err != nil {
		log.Fatal(err)
	}
}

func run(input, vcfDir, txtDir, out string, useAI bool, model, apiKey string, skipCleanup, skipAnalysis bool, exportFormat string) error {
	opts := pipeline.Options{
		SkipCleanup: skipCleanup,
		// The merged extraction output hits disk before cleanup and
		// enhancement mutate it, so an interrupted run still leaves
		// the raw set behind.
		OnExtracted: func(recs []extractors.Recommendation) error {
			if err := backupExisting(out); err != nil {
				return err
			}
			if err := export.WriteFile(export.FormatJSON, out, recs); err != nil {
				return err
			}
			log.Printf("Wrote %d extracted recommendations to %s", len(recs), out)
			return nil
		},
		OnPreEnhancement: func(recs []extractors.Recommendation) error {
			backup := strings.TrimSuffix(out, filepath.Ext(out)) + "_backup.json"
			if err := export.WriteFile(export.FormatJSON, backup, recs); err != nil {
				return err
			}
			log.Printf("Wrote pre-enhancement backup to %s", backup)
			return nil
		},
	}

	switch {
	case vcfDir != "" || txtDir != "":
		opts.VCFDir = vcfDir
		opts.ChatDir = txtDir
	case input == "":
		return fmt.Errorf("either -input or -vcf-dir/-txt-dir is required")
	case strings.HasSuffix(strings.ToLower(input), ".zip"):
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("reading %s: %w", input, err)
		}
		extracted, err := services.ExtractArchive(data)
		if err != nil {
			return fmt.Errorf("extracting %s: %w", input, err)
		}
		defer extracted.Cleanup()
		opts.VCFDir = extracted.VCFDir
		opts.ChatDir = extracted.ChatDir
	default:
		// A plain directory serves both roles, the parsers pick their
		// own extensions.
		opts.VCFDir = input
		opts.ChatDir = input
	}

	if useAI {
		key, err := enrichment.ResolveAPIKey(apiKey)
		if err != nil {
			return err
		}
		opts.Enhancer = enrichment.NewEnhancer(enrichment.NewClient(key), model)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}

	if err := export.WriteFile(export.FormatJSON, out, outcome.Recommendations); err != nil {
		return err
	}
	log.Printf("Wrote %d recommendations to %s", len(outcome.Recommendations), out)

	if exportFormat != "" {
		format := export.Format(exportFormat)
		path := strings.TrimSuffix(out, filepath.Ext(out)) + "." + exportExtension(format)
		if err := export.WriteFile(format, path, outcome.Recommendations); err != nil {
			return err
		}
		log.Printf("Wrote %s export to %s", format, path)
	}

	if !skipAnalysis {
		report := analysis.Analyze(outcome.Recommendations)
		fmt.Println(report.Summary())
	}
	return nil
}

// backupExisting snapshots a previous output file before it is
// overwritten.
func backupExisting(path string) error {
	src, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening existing output: %w", err)
	}
	defer src.Close()

	backup := fmt.Sprintf("%s.backup-%s", path, time.Now().Format("20060102-150405"))
	dst, err := os.Create(backup)
	if err != nil {
		return fmt.Errorf("creating backup: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	log.Printf("Backed up previous output to %s", backup)
	return nil
}

func exportExtension(format export.Format) string {
	if format == export.FormatMarkdown {
		return "md"
	}
	return string(format)
}
