package coordinator

import (
	"github.com/tarsy-labs/extrakt/pkg/config"
	"github.com/tarsy-labs/extrakt/pkg/confidence"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

const (
	sourceJob     = "job"
	sourceProject = "project"
	sourceServer  = "server"
)

// resolveThresholds computes the effective (min, review, auto) confidence
// bands for one job, sourced in order from the job's own ExtractionConfig
// override, then the project's, then the server default, recording where
// each value came from for the debug-info audit trail.
func resolveThresholds(job *models.Job, project *models.Project, defaults *config.Defaults) (confidence.Thresholds, models.ThresholdAudit) {
	min, minSrc := pickThreshold(
		extractionConfigOf(job),
		extractionConfigOf2(project),
		defaults.ConfidenceThresholdMin,
		func(c *models.ExtractionConfig) *float64 { return c.ConfidenceThresholdMin },
	)
	review, reviewSrc := pickThreshold(
		extractionConfigOf(job),
		extractionConfigOf2(project),
		defaults.ConfidenceThresholdReview,
		func(c *models.ExtractionConfig) *float64 { return c.ConfidenceThresholdReview },
	)
	auto, autoSrc := pickThreshold(
		extractionConfigOf(job),
		extractionConfigOf2(project),
		defaults.ConfidenceThresholdAuto,
		func(c *models.ExtractionConfig) *float64 { return c.ConfidenceThresholdAuto },
	)

	thresholds := confidence.Thresholds{Min: min, Review: review, Auto: auto}

	audit := models.ThresholdAudit{Min: min, Review: review, Auto: auto}
	audit.Sources.Min = minSrc
	audit.Sources.Review = reviewSrc
	audit.Sources.Auto = autoSrc
	audit.Interpretation.Rejected = "confidence < min"
	audit.Interpretation.Draft = "min <= confidence < auto"
	audit.Interpretation.Accepted = "confidence >= auto"

	return thresholds, audit
}

func extractionConfigOf(job *models.Job) *models.ExtractionConfig {
	if job == nil {
		return nil
	}
	return job.ExtractionConfig
}

func extractionConfigOf2(project *models.Project) *models.ExtractionConfig {
	if project == nil {
		return nil
	}
	return project.ExtractionConfig
}

func pickThreshold(jobCfg, projectCfg *models.ExtractionConfig, serverDefault float64, get func(*models.ExtractionConfig) *float64) (float64, string) {
	if jobCfg != nil {
		if v := get(jobCfg); v != nil {
			return *v, sourceJob
		}
	}
	if projectCfg != nil {
		if v := get(projectCfg); v != nil {
			return *v, sourceProject
		}
	}
	return serverDefault, sourceServer
}

// resolveExtractionMethod picks the method override in the same order:
// job, project, server default.
func resolveExtractionMethod(job *models.Job, project *models.Project, defaults *config.Defaults) config.ExtractionMethod {
	if jc := extractionConfigOf(job); jc != nil && jc.ExtractionMethod != "" {
		return config.ExtractionMethod(jc.ExtractionMethod)
	}
	if pc := extractionConfigOf2(project); pc != nil && pc.ExtractionMethod != "" {
		return config.ExtractionMethod(pc.ExtractionMethod)
	}
	return defaults.ExtractionMethod
}

// resolveTimeoutSeconds picks the per-call timeout in the same order.
func resolveTimeoutSeconds(job *models.Job, project *models.Project, defaults *config.Defaults) int {
	if jc := extractionConfigOf(job); jc != nil && jc.TimeoutSeconds != nil {
		return *jc.TimeoutSeconds
	}
	if pc := extractionConfigOf2(project); pc != nil && pc.TimeoutSeconds != nil {
		return *pc.TimeoutSeconds
	}
	return defaults.ExtractionTimeoutSeconds
}

// resolveBatchSizeChars picks the batching threshold in the same order.
func resolveBatchSizeChars(job *models.Job, project *models.Project, defaults *config.Defaults) int {
	if jc := extractionConfigOf(job); jc != nil && jc.BatchSizeChars != nil {
		return *jc.BatchSizeChars
	}
	if pc := extractionConfigOf2(project); pc != nil && pc.BatchSizeChars != nil {
		return *pc.BatchSizeChars
	}
	return defaults.ExtractionBatchSizeChars
}

// resolveSimilarityThreshold picks the entity-linking/context similarity
// threshold in the same order.
func resolveSimilarityThreshold(job *models.Job, project *models.Project, defaults *config.Defaults) float64 {
	if jc := extractionConfigOf(job); jc != nil && jc.EntitySimilarityThreshold != nil {
		return *jc.EntitySimilarityThreshold
	}
	if pc := extractionConfigOf2(project); pc != nil && pc.EntitySimilarityThreshold != nil {
		return *pc.EntitySimilarityThreshold
	}
	return defaults.EntitySimilarityThreshold
}
