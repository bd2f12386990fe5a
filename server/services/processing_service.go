// Package services runs uploaded chat exports through the extraction
// pipeline and records the outcome against the owning session.
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"recserver/database"
	"recserver/enrichment"
	"recserver/pipeline"
)

// ErrProcessingTimeout marks a run that exceeded the configured
// processing deadline.
var ErrProcessingTimeout = errors.New("processing exceeded timeout limit")

const timeoutStatusMessage = "Processing exceeded timeout limit"

// ProcessingService unpacks uploads, runs the pipeline and persists
// session state transitions.
type ProcessingService struct {
	db      *database.DB
	timeout time.Duration
	apiKey  string
	model   string
}

// NewProcessingService creates a processing service. An empty apiKey
// disables the enhancement stages.
func NewProcessingService(db *database.DB, timeout time.Duration, apiKey, model string) *ProcessingService {
	return &ProcessingService{
		db:      db,
		timeout: timeout,
		apiKey:  apiKey,
		model:   model,
	}
}

// Process runs the full pipeline over a zip upload and moves the session
// to its terminal status. Designed to run on its own goroutine, all
// failures are recorded on the session rather than returned.
func (s *ProcessingService) Process(sessionID string, zipData []byte) {
	if err := s.db.UpdateSessionStatus(sessionID, database.StatusProcessing, ""); err != nil {
		log.Printf("[Processing] %s: marking session processing: %v", sessionID, err)
		return
	}

	err := s.run(sessionID, zipData)
	switch {
	case err == nil:
		if err := s.db.UpdateSessionStatus(sessionID, database.StatusCompleted, ""); err != nil {
			log.Printf("[Processing] %s: marking session completed: %v", sessionID, err)
		}
		log.Printf("[Processing] %s: completed", sessionID)
	case errors.Is(err, ErrProcessingTimeout):
		if err := s.db.UpdateSessionStatus(sessionID, database.StatusTimeout, timeoutStatusMessage); err != nil {
			log.Printf("[Processing] %s: marking session timed out: %v", sessionID, err)
		}
		log.Printf("[Processing] %s: timed out after %s", sessionID, s.timeout)
	default:
		if dbErr := s.db.UpdateSessionStatus(sessionID, database.StatusError, err.Error()); dbErr != nil {
			log.Printf("[Processing] %s: marking session failed: %v", sessionID, dbErr)
		}
		log.Printf("[Processing] %s: failed: %v", sessionID, err)
	}
}

func (s *ProcessingService) run(sessionID string, zipData []byte) error {
	input, err := ExtractArchive(zipData)
	if err != nil {
		return fmt.Errorf("extracting upload: %w", err)
	}
	defer input.Cleanup()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var enhancer *enrichment.Enhancer
	if s.apiKey != "" {
		enhancer = enrichment.NewEnhancer(enrichment.NewClient(s.apiKey), s.model)
		enhancer.Progress = func(msg string) {
			s.progress(sessionID, msg)
		}
	}

	out, err := pipeline.Run(ctx, pipeline.Options{
		VCFDir:   input.VCFDir,
		ChatDir:  input.ChatDir,
		Enhancer: enhancer,
		Progress: func(msg string) {
			s.progress(sessionID, msg)
		},
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ErrProcessingTimeout
		}
		return err
	}

	if _, err := s.db.SaveResult(sessionID, out.Recommendations, out.Enhanced); err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}

// progress records pipeline progress on the session. Best effort, a
// failed update never interrupts processing.
func (s *ProcessingService) progress(sessionID, msg string) {
	if err := s.db.UpdateSessionProgress(sessionID, msg); err != nil {
		log.Printf("[Processing] %s: recording progress: %v", sessionID, err)
	}
}
