package enrichment

import (
	"context"
	"fmt"
	"log"

	"recserver/extractors"
)

// Enhancer runs recommendation batches through a chat completion model.
// The first pass enriches every record; the second pass retries service
// extraction for records still missing one, with a wider context window.
type Enhancer struct {
	client              *Client
	model               string
	batchSize           int
	secondPassBatchSize int
	secondPassWindow    int

	// Progress, when set, receives human-readable status lines.
	Progress func(msg string)
}

// SecondPassStats match statistics from the null-service pass
type SecondPassStats struct {
	MatchedExact   int `json:"matched_exact"`
	MatchedByPhone int `json:"matched_by_phone"`
	Unmatched      int `json:"unmatched"`
	Extracted      int `json:"extracted"`
}

// Result the outcome of an enhancement pass
type Result struct {
	Enhanced     []extractors.Recommendation
	RawResponses []string
	Stats        SecondPassStats
}

// NewEnhancer creates an enhancer with default batch sizes
func NewEnhancer(client *Client, model string) *Enhancer {
	return &Enhancer{
		client:              client,
		model:               model,
		batchSize:           DefaultBatchSize,
		secondPassBatchSize: NullServiceBatchSize,
		secondPassWindow:    NullServiceWindow,
	}
}

func (e *Enhancer) report(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[Enhancer] %s", msg)
	if e.Progress != nil {
		e.Progress(msg)
	}
}

// EnhanceAll runs the main enhancement pass. Records missing a service get an
// extended context window; the rest get the standard one. A failed batch keeps
// its original records, so the output always has one record per input.
func (e *Enhancer) EnhanceAll(ctx context.Context, recs []extractors.Recommendation, messages []extractors.Message) (*Result, error) {
	result := &Result{}
	if len(recs) == 0 {
		return result, nil
	}

	totalBatches := (len(recs) + e.batchSize - 1) / e.batchSize
	e.report("Enhancing %d recommendations in %d batches of up to %d", len(recs), totalBatches, e.batchSize)

	for batchNum := 0; batchNum < totalBatches; batchNum++ {
		if err := ctx.Err(); err != nil {
			// keep the untouched remainder so counts stay intact
			result.Enhanced = append(result.Enhanced, recs[batchNum*e.batchSize:]...)
			return result, fmt.Errorf("enhancement interrupted: %w", err)
		}

		start := batchNum * e.batchSize
		end := start + e.batchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[start:end]

		e.report("Batch %d/%d (%d recommendations)", batchNum+1, totalBatches, len(batch))

		// split by service presence but remember each record's slot, so
		// two records sharing a phone land back in their own positions
		var nullService, hasService []extractors.Recommendation
		var nullSlots, hasSlots []int
		for i, rec := range batch {
			if rec.Service == nil || *rec.Service == "" {
				nullService = append(nullService, rec)
				nullSlots = append(nullSlots, i)
			} else {
				hasService = append(hasService, rec)
				hasSlots = append(hasSlots, i)
			}
		}

		enhancedBatch := make([]extractors.Recommendation, len(batch))
		copy(enhancedBatch, batch)
		if len(nullService) > 0 {
			placeGroup(enhancedBatch, nullSlots, e.runGroup(ctx, nullService, messages, NullServiceWindow, result))
		}
		if len(hasService) > 0 {
			placeGroup(enhancedBatch, hasSlots, e.runGroup(ctx, hasService, messages, StandardWindow, result))
		}
		result.Enhanced = append(result.Enhanced, enhancedBatch...)
	}

	if len(result.Enhanced) != len(recs) {
		e.report("Enhanced count %d does not match original %d, reconciling", len(result.Enhanced), len(recs))
		result.Enhanced = reconcile(recs, result.Enhanced)
	}

	return result, nil
}

// placeGroup writes a group's records back into their original batch
// slots. runGroup returns one record per input in input order, so slots
// and merged line up.
func placeGroup(batch []extractors.Recommendation, slots []int, merged []extractors.Recommendation) {
	for i, rec := range merged {
		if i < len(slots) {
			batch[slots[i]] = rec
		}
	}
}

// runGroup sends one group of records through the model and merges the reply.
// Any failure falls back to the unmodified group.
func (e *Enhancer) runGroup(ctx context.Context, group []extractors.Recommendation, messages []extractors.Message, window int, result *Result) []extractors.Recommendation {
	prompt := BuildEnhancementPrompt(group, messages, window)
	promptTokens := EstimateTokens(prompt)
	safeLimit := SafeInputTokens(e.model, e.batchSize, 500)
	if promptTokens > safeLimit {
		e.report("Prompt size ~%d tokens exceeds safe limit %d, consider a smaller batch size", promptTokens, safeLimit)
	}

	raw, err := e.client.ChatCompletion(ctx, e.model, []ChatMessage{
		{Role: "system", Content: enhancementSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		e.report("Group of %d failed, keeping originals: %v", len(group), err)
		return group
	}
	result.RawResponses = append(result.RawResponses, raw)

	parsed, err := ParseResponse(raw)
	if err != nil {
		e.report("Group of %d failed to parse, keeping originals: %v", len(group), err)
		return group
	}
	if len(parsed) != len(group) {
		e.report("Expected %d recommendations, got %d, merging what matched", len(group), len(parsed))
	}

	return MergeEnhancements(group, parsed)
}

// EnhanceNullServices runs the second pass over records whose service is still
// missing, then folds extracted services back into the full list.
func (e *Enhancer) EnhanceNullServices(ctx context.Context, recs []extractors.Recommendation, messages []extractors.Message) (*Result, error) {
	result := &Result{Enhanced: recs}

	var nullRecs []extractors.Recommendation
	for _, rec := range recs {
		if rec.Service == nil || *rec.Service == "" {
			nullRecs = append(nullRecs, rec)
		}
	}
	if len(nullRecs) == 0 {
		e.report("No recommendations with null service, skipping second pass")
		return result, nil
	}

	totalBatches := (len(nullRecs) + e.secondPassBatchSize - 1) / e.secondPassBatchSize
	e.report("Second pass: extracting services for %d recommendations in %d batches (±%d messages context)",
		len(nullRecs), totalBatches, e.secondPassWindow)

	var enhancedNull []extractors.Recommendation
	for batchNum := 0; batchNum < totalBatches; batchNum++ {
		if err := ctx.Err(); err != nil {
			enhancedNull = append(enhancedNull, nullRecs[batchNum*e.secondPassBatchSize:]...)
			e.mergeBack(recs, enhancedNull, result)
			return result, fmt.Errorf("second pass interrupted: %w", err)
		}

		start := batchNum * e.secondPassBatchSize
		end := start + e.secondPassBatchSize
		if end > len(nullRecs) {
			end = len(nullRecs)
		}
		batch := nullRecs[start:end]

		e.report("Second pass batch %d/%d (%d recommendations)", batchNum+1, totalBatches, len(batch))

		prompt := BuildNullServicePrompt(batch, messages, e.secondPassWindow)
		promptTokens := EstimateTokens(prompt)
		safeLimit := SafeInputTokens(e.model, e.secondPassBatchSize, 300)
		if promptTokens > safeLimit {
			e.report("Prompt size ~%d tokens exceeds safe limit %d", promptTokens, safeLimit)
		}

		raw, err := e.client.ChatCompletion(ctx, e.model, []ChatMessage{
			{Role: "system", Content: nullServiceSystemPrompt},
			{Role: "user", Content: prompt},
		})
		if err != nil {
			e.report("Second pass batch %d failed, keeping originals: %v", batchNum+1, err)
			enhancedNull = append(enhancedNull, batch...)
			continue
		}
		result.RawResponses = append(result.RawResponses, raw)

		parsed, err := ParseResponse(raw)
		if err != nil {
			e.report("Second pass batch %d failed to parse: %v", batchNum+1, err)
			enhancedNull = append(enhancedNull, batch...)
			continue
		}
		if len(parsed) != len(batch) {
			e.report("Expected %d recommendations, got %d, the model may have filtered some", len(batch), len(parsed))
		}

		enhancedNull = append(enhancedNull, MergeEnhancements(batch, parsed)...)
	}

	e.mergeBack(recs, enhancedNull, result)
	return result, nil
}

// mergeBack matches second-pass output to the full list by normalized
// phone+name, falling back to phone when it is unambiguous.
func (e *Enhancer) mergeBack(recs []extractors.Recommendation, enhancedNull []extractors.Recommendation, result *Result) {
	type matchKey struct {
		phone string
		name  string
	}

	exact := make(map[matchKey]extractors.Recommendation, len(enhancedNull))
	byPhone := make(map[string][]extractors.Recommendation)
	for _, rec := range enhancedNull {
		phone := normalizeMatchPhone(rec.Phone)
		key := matchKey{phone: phone, name: normalizeMatchName(rec.Name)}
		exact[key] = rec
		if phone != "" {
			byPhone[phone] = append(byPhone[phone], rec)
		}
	}

	nullBefore := countNullServices(recs)

	updated := make([]extractors.Recommendation, 0, len(recs))
	for _, rec := range recs {
		if rec.Service != nil && *rec.Service != "" {
			updated = append(updated, rec)
			continue
		}

		phone := normalizeMatchPhone(rec.Phone)
		key := matchKey{phone: phone, name: normalizeMatchName(rec.Name)}

		var enhanced *extractors.Recommendation
		if match, ok := exact[key]; ok {
			enhanced = &match
			result.Stats.MatchedExact++
		} else if candidates, ok := byPhone[phone]; ok && phone != "" && len(candidates) == 1 {
			enhanced = &candidates[0]
			result.Stats.MatchedByPhone++
		}

		if enhanced != nil {
			applySecondPass(&rec, *enhanced)
		} else {
			result.Stats.Unmatched++
		}
		updated = append(updated, rec)
	}

	result.Stats.Extracted = nullBefore - countNullServices(updated)
	result.Enhanced = updated

	e.report("Second pass matches: %d exact, %d by phone, %d unmatched, %d services extracted",
		result.Stats.MatchedExact, result.Stats.MatchedByPhone, result.Stats.Unmatched, result.Stats.Extracted)
	if result.Stats.Unmatched > 0 {
		e.report("%d recommendations were not matched, likely filtered by the model", result.Stats.Unmatched)
	}
}

// applySecondPass updates service, context, and recommender only.
// Name, phone, date, and chat_message_index stay as extracted.
func applySecondPass(orig *extractors.Recommendation, enh extractors.Recommendation) {
	model := ModelRecord{Context: enh.Context}
	if enh.Service != nil {
		model.Service = *enh.Service
	}
	if enh.Recommender != nil {
		model.Recommender = *enh.Recommender
	}
	model.Name = orig.Name
	applyEnhancement(orig, model)
}

func countNullServices(recs []extractors.Recommendation) int {
	count := 0
	for _, rec := range recs {
		if rec.Service == nil || *rec.Service == "" {
			count++
		}
	}
	return count
}

func reconcile(original, enhanced []extractors.Recommendation) []extractors.Recommendation {
	byPhone := make(map[string]extractors.Recommendation, len(enhanced))
	for _, rec := range enhanced {
		if _, seen := byPhone[rec.Phone]; !seen {
			byPhone[rec.Phone] = rec
		}
	}

	out := make([]extractors.Recommendation, 0, len(original))
	for i, rec := range original {
		if match, ok := byPhone[rec.Phone]; ok {
			out = append(out, match)
		} else if i < len(enhanced) && enhanced[i].Phone == rec.Phone {
			out = append(out, enhanced[i])
		} else {
			out = append(out, rec)
		}
	}
	return out
}
