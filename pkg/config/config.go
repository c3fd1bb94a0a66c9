// Package config loads and validates the extraction worker's configuration:
// confidence thresholds, queue/worker tuning, rate-limiter budget, and the
// schema-pack auto-install default.
package config

// Config is the umbrella configuration object returned by Initialize() and
// threaded through the coordinator and its collaborators.
type Config struct {
	configDir string

	// Defaults holds server-wide fallback values consulted when a job does
	// not override them via its ExtractionConfig.
	Defaults *Defaults

	// Queue controls the polling loop and worker pool.
	Queue *QueueConfig

	// RateLimit controls the token-budget admission policy.
	RateLimit *RateLimiterConfig

	// SchemaPack controls auto-install behavior.
	SchemaPack *SchemaPackConfig
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Defaults contains the server-wide fallback values for per-job overridable
// settings. A nil/zero field on a job's ExtractionConfig always falls back
// here.
type Defaults struct {
	// ConfidenceThresholdMin/Review/Auto define the reject/review/auto bands.
	// Min <= Review <= Auto, each in [0,1].
	ConfidenceThresholdMin    float64 `yaml:"confidence_threshold_min"`
	ConfidenceThresholdReview float64 `yaml:"confidence_threshold_review"`
	ConfidenceThresholdAuto   float64 `yaml:"confidence_threshold_auto"`

	// EntityLinkingStrategy selects the EntityLinker behavior.
	EntityLinkingStrategy LinkingStrategy `yaml:"entity_linking_strategy"`

	// ExtractionMethod selects function_calling or responseSchema.
	ExtractionMethod ExtractionMethod `yaml:"extraction_method"`

	// ExtractionTimeoutSeconds bounds a single LLM call.
	ExtractionTimeoutSeconds int `yaml:"extraction_timeout_seconds"`

	// ExtractionBatchSizeChars, if non-zero, splits documents into
	// character-bounded batches before invoking the LLM.
	ExtractionBatchSizeChars int `yaml:"extraction_batch_size_chars"`

	// EntitySimilarityThreshold is used by the vector_similarity linking
	// strategy and by ContextLoader's vector search.
	EntitySimilarityThreshold float64 `yaml:"entity_similarity_threshold"`

	// DefaultTemplatePackID is auto-installed when a project has no active
	// schema packs.
	DefaultTemplatePackID string `yaml:"default_template_pack_id"`

	// BasePromptDefault is used when the settings store has no
	// extraction.basePrompt value.
	BasePromptDefault string `yaml:"base_prompt_default"`

	// VerificationEnabled gates the optional Verifier stage for pipelines
	// that are not pre-verified.
	VerificationEnabled bool `yaml:"verification_enabled"`

	// EmbeddingsEnabled gates on-demand chunk embedding generation.
	EmbeddingsEnabled bool `yaml:"embeddings_enabled"`

	// MaxRetries bounds how many times a failed job may be re-enqueued.
	MaxRetries int `yaml:"max_retries"`
}

// LinkingStrategy selects how EntityLinker resolves candidates against
// existing graph content.
type LinkingStrategy string

// Recognized linking strategies.
const (
	LinkingKeyMatch         LinkingStrategy = "key_match"
	LinkingVectorSimilarity LinkingStrategy = "vector_similarity"
	LinkingAlwaysNew        LinkingStrategy = "always_new"
)

// ExtractionMethod selects the LLM invocation style.
type ExtractionMethod string

// Recognized extraction methods.
const (
	MethodFunctionCalling ExtractionMethod = "function_calling"
	MethodResponseSchema  ExtractionMethod = "responseSchema"
)

// SchemaPackConfig controls SchemaPackResolver auto-install behavior.
type SchemaPackConfig struct {
	AutoInstallEnabled bool `yaml:"auto_install_enabled"`
}
