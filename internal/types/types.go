// Package types defines the shared data model of the aird pipeline:
// chunk records, per-chunk metrics, the readiness fingerprint, policy
// results, and the chunking/embedding configuration negotiated between
// the content analyzer and playbooks.
package types

import "time"

// =============================================================================
// CHUNK RECORDS
// =============================================================================

// ChunkRecord is one line of processed JSONL. ChunkID is unique within a
// (product, version).
type ChunkRecord struct {
	ChunkID    string   `json:"chunk_id"`
	Text       string   `json:"text"`
	Section    string   `json:"section"`
	FieldName  string   `json:"field_name,omitempty"`
	Page       int      `json:"page,omitempty"`
	DocumentID string   `json:"document_id"`
	TokenEst   int      `json:"token_est"`
	Tags       []string `json:"tags,omitempty"`
	Source     string   `json:"source,omitempty"`
	Audience   string   `json:"audience,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
}

// ChunkMetrics is one entry of metrics.json: the per-chunk quality scores.
// All scores are 0..100.
type ChunkMetrics struct {
	File    string `json:"file"`
	ChunkID string `json:"chunk_id"`
	Section string `json:"section,omitempty"`

	AITrustScore     float64 `json:"AI_Trust_Score"`
	Completeness     float64 `json:"Completeness"`
	Quality          float64 `json:"Quality"`
	Secure           float64 `json:"Secure"`
	MetadataPresence float64 `json:"Metadata_Presence"`
	KBReady          float64 `json:"KnowledgeBase_Ready"`

	TokenEst int `json:"token_est,omitempty"`
}

// =============================================================================
// FINGERPRINT
// =============================================================================

// Fingerprint is the aggregated, multi-dimensional readiness assessment of
// a (product, version). All values are clamped to [0,100].
type Fingerprint struct {
	AITrustScore     float64 `json:"AI_Trust_Score"`
	Completeness     float64 `json:"Completeness"`
	Quality          float64 `json:"Quality"`
	Secure           float64 `json:"Secure"`
	MetadataPresence float64 `json:"Metadata_Presence"`
	KBReady          float64 `json:"KnowledgeBase_Ready"`

	ChunkBoundaryQuality float64 `json:"Chunk_Boundary_Quality,omitempty"`

	// Vector/RAG dimensions, filled by the indexing stage.
	EmbeddingDimensionConsistency float64 `json:"Embedding_Dimension_Consistency,omitempty"`
	EmbeddingSuccessRate          float64 `json:"Embedding_Success_Rate,omitempty"`
	VectorQualityScore            float64 `json:"Vector_Quality_Score,omitempty"`
	EmbeddingModelHealth          float64 `json:"Embedding_Model_Health,omitempty"`
	SemanticSearchReadiness       float64 `json:"Semantic_Search_Readiness,omitempty"`
	RetrievalRecallAtK            float64 `json:"Retrieval_Recall_At_K,omitempty"`
	AveragePrecisionAtK           float64 `json:"Average_Precision_At_K,omitempty"`
}

// IsZero reports whether no dimension has been set.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// =============================================================================
// POLICY
// =============================================================================

// PolicyStatus is the outcome class of a policy evaluation.
type PolicyStatus string

const (
	PolicyPassed   PolicyStatus = "passed"
	PolicyFailed   PolicyStatus = "failed"
	PolicyWarnings PolicyStatus = "warnings"
)

// PolicyThresholds gate promotion. Zero values fall back to defaults.
type PolicyThresholds struct {
	MinTrustScore       float64 `json:"min_trust_score"`
	MinSecure           float64 `json:"min_secure"`
	MinMetadataPresence float64 `json:"min_metadata_presence"`
	MinKBReady          float64 `json:"min_kb_ready"`
}

// PolicyResult is the outcome of evaluating a fingerprint.
type PolicyResult struct {
	Status       PolicyStatus     `json:"status"`
	PolicyPassed bool             `json:"policy_passed"`
	Violations   []string         `json:"violations"`
	Warnings     []string         `json:"warnings"`
	Thresholds   PolicyThresholds `json:"thresholds"`
}

// =============================================================================
// CHUNKING / EMBEDDING CONFIG
// =============================================================================

// ChunkingMode selects whether the resolved settings came from the
// analyzer or were pinned manually.
type ChunkingMode string

const (
	ChunkingAuto   ChunkingMode = "auto"
	ChunkingManual ChunkingMode = "manual"
)

// OptimizationMode selects the analyzer backend.
type OptimizationMode string

const (
	OptimizePattern OptimizationMode = "pattern"
	OptimizeHybrid  OptimizationMode = "hybrid"
	OptimizeLLM     OptimizationMode = "llm"
)

// ChunkSettings are the resolved chunking parameters, in tokens.
type ChunkSettings struct {
	ChunkSize int    `json:"chunk_size"`
	Overlap   int    `json:"overlap"`
	MinSize   int    `json:"min_size"`
	MaxSize   int    `json:"max_size"`
	Strategy  string `json:"strategy"` // fixed_size|recursive|sentence_boundary|paragraph_boundary|semantic
}

// PreprocessingFlags toggle optional normalization behavior.
type PreprocessingFlags struct {
	EnhancedNormalization bool `json:"enhanced_normalization"`
	ForceMetadata         bool `json:"force_metadata_extraction"`
	RedactionStrict       bool `json:"redaction_strict"`
}

// ChunkingConfig is the product-level chunking configuration.
type ChunkingConfig struct {
	Mode         ChunkingMode       `json:"mode"`
	Optimization OptimizationMode   `json:"optimization"`
	Settings     ChunkSettings      `json:"settings"`
	Flags        PreprocessingFlags `json:"preprocessing_flags"`
}

// EmbeddingSpec is the product-level embedding configuration.
type EmbeddingSpec struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// =============================================================================
// STAGE RESULTS
// =============================================================================

// StageStatus classifies a stage outcome.
type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageResult is the contract every stage returns to the tracker.
type StageResult struct {
	Status     StageStatus       `json:"status"`
	StageName  string            `json:"stage_name"`
	ProductID  int64             `json:"product_id"`
	Version    int               `json:"version"`
	Metrics    map[string]any    `json:"metrics"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Artifacts  map[string]string `json:"artifacts,omitempty"` // name -> object key
}
