// Package llm assembles extraction prompts from effective schemas and
// document content, invokes the configured LLM provider (batching large
// documents into character-bounded calls), and parses the structured
// extraction result.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tarsy-labs/extrakt/pkg/config"
	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// Options bundles the per-call knobs Orchestrator.Extract resolves from the
// job's ExtractionConfig falling back to server defaults.
type Options struct {
	AllowedTypes        []string
	AvailableTags       []string
	ExistingEntities    []models.ContextEntity
	ExtractionMethod    config.ExtractionMethod
	TimeoutSeconds      int
	BatchSizeChars      int
	SimilarityThreshold float64
}

// Orchestrator implements LLMOrchestrator.
type Orchestrator struct {
	provider external.LLMProvider
}

// New constructs an Orchestrator around a configured LLMProvider.
func New(provider external.LLMProvider) *Orchestrator {
	return &Orchestrator{provider: provider}
}

// Extract builds the extraction prompt, invokes the provider once per
// character-bounded batch of the document, and merges the per-batch results.
// If every batch call fails, Extract returns a fatal error; if only some
// fail, it returns the merged partial result with a nil error, and the
// per-call outcomes are recorded in RawResponse["llm_calls"].
func (o *Orchestrator) Extract(ctx context.Context, document string, basePrompt string, effective *models.EffectiveSchema, opts Options) (*models.ExtractionResult, error) {
	if !o.provider.IsConfigured() {
		return nil, fmt.Errorf("llm provider %q is not configured", o.provider.Name())
	}

	batches := splitIntoBatches(document, opts.BatchSizeChars)

	merged := &models.ExtractionResult{RawResponse: map[string]interface{}{}}
	var calls []models.LLMCallOutcome
	var firstErr error
	successCount := 0

	for _, batch := range batches {
		callOpts := external.LLMOptions{
			ObjectSchemas:       effective.ObjectSchemas,
			RelationshipSchemas: effective.RelationshipSchemas,
			AllowedTypes:        opts.AllowedTypes,
			AvailableTags:       opts.AvailableTags,
			ExistingEntities:    opts.ExistingEntities,
			DocumentChunks:      []string{batch},
			ExtractionMethod:    string(opts.ExtractionMethod),
			TimeoutMs:           opts.TimeoutSeconds * 1000,
			BatchSizeChars:      opts.BatchSizeChars,
			SimilarityThreshold: opts.SimilarityThreshold,
		}

		result, err := o.provider.ExtractEntities(ctx, batch, basePrompt, callOpts)
		if err != nil {
			calls = append(calls, models.LLMCallOutcome{Status: "error", Error: err.Error()})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		calls = append(calls, models.LLMCallOutcome{Status: "success"})
		successCount++
		mergeResult(merged, result)
	}

	merged.RawResponse["llm_calls"] = calls

	if successCount == 0 {
		return nil, fmt.Errorf("all %d llm calls failed: %w (failed_calls=%d)", len(batches), firstErr, len(batches))
	}
	return merged, nil
}

func mergeResult(dst *models.ExtractionResult, src *models.ExtractionResult) {
	if src == nil {
		return
	}
	dst.Entities = append(dst.Entities, src.Entities...)
	dst.Relationships = append(dst.Relationships, src.Relationships...)
	dst.DiscoveredTypes = appendUnique(dst.DiscoveredTypes, src.DiscoveredTypes...)
	if src.Usage != nil {
		if dst.Usage == nil {
			dst.Usage = &models.LLMUsage{}
		}
		dst.Usage.PromptTokens += src.Usage.PromptTokens
		dst.Usage.CompletionTokens += src.Usage.CompletionTokens
		dst.Usage.TotalTokens += src.Usage.TotalTokens
	}
}

func appendUnique(dst []string, src ...string) []string {
	seen := map[string]bool{}
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range src {
		if !seen[v] {
			seen[v] = true
			dst = append(dst, v)
		}
	}
	return dst
}

// splitIntoBatches divides document into character-bounded chunks when
// batchSizeChars is positive; otherwise the whole document is one batch.
// Splits occur on paragraph boundaries where possible to avoid cutting
// sentences mid-word.
func splitIntoBatches(document string, batchSizeChars int) []string {
	if batchSizeChars <= 0 || len(document) <= batchSizeChars {
		return []string{document}
	}

	var batches []string
	paragraphs := strings.Split(document, "\n\n")
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			batches = append(batches, current.String())
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		if current.Len() > 0 && current.Len()+len(p)+2 > batchSizeChars {
			flush()
		}
		if len(p) > batchSizeChars {
			flush()
			for len(p) > batchSizeChars {
				batches = append(batches, p[:batchSizeChars])
				p = p[batchSizeChars:]
			}
			if p != "" {
				current.WriteString(p)
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()

	if len(batches) == 0 {
		return []string{document}
	}
	return batches
}
