// Package pipeline runs the full extraction flow over an exported chat:
// parse contacts and transcripts, extract and deduplicate recommendations,
// clean the records and optionally enhance them with a language model.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"

	"recserver/cleanup"
	"recserver/enrichment"
	"recserver/extractors"
)

// Options selects the inputs and the optional stages of a run.
type Options struct {
	// VCFDir holds the exported .vcf contact files. Optional, a missing
	// directory means the chat carried no contact attachments.
	VCFDir string

	// ChatDir holds the exported .txt transcripts.
	ChatDir string

	// Enhancer, when non-nil, runs the model enhancement passes after
	// cleanup. Nil skips enhancement entirely.
	Enhancer *enrichment.Enhancer

	// SkipCleanup bypasses both cleanup passes and returns the raw
	// deduplicated extraction output.
	SkipCleanup bool

	// OnExtracted receives the deduplicated extraction output before
	// cleanup or enhancement touch it, so callers can persist the
	// merged set while later stages still mutate their copy. A non-nil
	// error aborts the run. Optional.
	OnExtracted func(recs []extractors.Recommendation) error

	// OnPreEnhancement receives the record set about to enter the
	// enhancement passes. Only invoked when an Enhancer is configured
	// and there is something to enhance. A non-nil error aborts the
	// run. Optional.
	OnPreEnhancement func(recs []extractors.Recommendation) error

	// Progress receives human-readable step updates. Optional.
	Progress func(msg string)
}

// Outcome is the aggregate result of a pipeline run.
type Outcome struct {
	Recommendations []extractors.Recommendation `json:"recommendations"`
	Messages        []extractors.Message        `json:"-"`
	ContactCount    int                         `json:"contact_count"`
	ExtractedCount  int                         `json:"extracted_count"`
	PreCleanup      cleanup.Stats               `json:"pre_cleanup"`
	PostCleanup     cleanup.Stats               `json:"post_cleanup"`
	Enhanced        bool                        `json:"enhanced"`
	SecondPass      *enrichment.SecondPassStats `json:"second_pass,omitempty"`
}

func report(progress func(string), format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[Pipeline] %s", msg)
	if progress != nil {
		progress(msg)
	}
}

// Run executes the pipeline over the configured input directories. When
// enhancement is interrupted by ctx, the outcome accumulated so far is
// returned together with the error.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	out := &Outcome{}

	report(opts.Progress, "Parsing contact files...")
	contacts, err := parseContacts(opts.VCFDir)
	if err != nil {
		return nil, fmt.Errorf("parsing contacts: %w", err)
	}
	out.ContactCount = len(contacts)
	report(opts.Progress, "Parsed %d contact files", len(contacts))

	report(opts.Progress, "Parsing chat transcripts...")
	messages, err := extractors.ParseChatDir(opts.ChatDir)
	if err != nil {
		return nil, fmt.Errorf("parsing chat transcripts: %w", err)
	}
	out.Messages = messages
	report(opts.Progress, "Parsed %d chat messages", len(messages))

	report(opts.Progress, "Extracting recommendations...")
	recs := extractors.Extract(messages, contacts)
	out.ExtractedCount = len(recs)
	report(opts.Progress, "Extracted %d unique recommendations", len(recs))

	if opts.OnExtracted != nil {
		if err := opts.OnExtracted(recs); err != nil {
			return nil, fmt.Errorf("after extraction: %w", err)
		}
	}

	if !opts.SkipCleanup {
		report(opts.Progress, "Cleaning records...")
		cleaner := cleanup.NewCleaner(cleanup.DefaultOptions())
		recs, out.PreCleanup = cleaner.PreEnrichment(recs)
		report(opts.Progress, "%d records after cleanup", len(recs))
	}

	if opts.Enhancer != nil && len(recs) > 0 {
		if opts.OnPreEnhancement != nil {
			if err := opts.OnPreEnhancement(recs); err != nil {
				return nil, fmt.Errorf("before enhancement: %w", err)
			}
		}

		report(opts.Progress, "Enhancing records with AI...")
		result, err := opts.Enhancer.EnhanceAll(ctx, recs, messages)
		if result != nil {
			recs = result.Enhanced
		}
		if err != nil {
			out.Recommendations = recs
			return out, fmt.Errorf("enhancement: %w", err)
		}
		out.Enhanced = true

		report(opts.Progress, "Extracting missing service descriptions...")
		second, err := opts.Enhancer.EnhanceNullServices(ctx, recs, messages)
		if second != nil {
			recs = second.Enhanced
			out.SecondPass = &second.Stats
		}
		if err != nil {
			out.Recommendations = recs
			return out, fmt.Errorf("second enhancement pass: %w", err)
		}

		if !opts.SkipCleanup {
			report(opts.Progress, "Final cleanup...")
			cleaner := cleanup.NewCleaner(cleanup.DefaultOptions())
			recs, out.PostCleanup = cleaner.PostEnrichment(recs)
		}
	}

	out.Recommendations = recs
	report(opts.Progress, "Done: %d recommendations", len(recs))
	return out, nil
}

// parseContacts tolerates an absent directory: exports without contact
// attachments simply contribute no vCard stream.
func parseContacts(dir string) (map[string]*extractors.ContactRecord, error) {
	if dir == "" {
		return map[string]*extractors.ContactRecord{}, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return map[string]*extractors.ContactRecord{}, nil
	}
	return extractors.ParseContactDir(dir)
}
