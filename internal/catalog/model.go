package catalog

import (
	"time"

	"aird/internal/types"
)

// RawFileStatus is the lifecycle state of an ingested byte object.
type RawFileStatus string

const (
	RawIngested   RawFileStatus = "ingested"
	RawProcessing RawFileStatus = "processing"
	RawProcessed  RawFileStatus = "processed"
	RawFailed     RawFileStatus = "failed"
	RawDeleted    RawFileStatus = "deleted"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunQueued            RunStatus = "queued"
	RunRunning           RunStatus = "running"
	RunSucceeded         RunStatus = "succeeded"
	RunFailed            RunStatus = "failed"
	RunReadyWithWarnings RunStatus = "ready_with_warnings"
	RunFailedPolicy      RunStatus = "failed_policy"
)

// Terminal reports whether a run status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunSucceeded, RunFailed, RunReadyWithWarnings, RunFailedPolicy:
		return true
	}
	return false
}

// ArtifactStatus is the registry state of a produced object.
type ArtifactStatus string

const (
	ArtifactActive   ArtifactStatus = "active"
	ArtifactArchived ArtifactStatus = "archived"
	ArtifactDeleted  ArtifactStatus = "deleted"
	ArtifactPurged   ArtifactStatus = "purged"
)

// Retention classes for artifacts.
type Retention string

const (
	RetainForever         Retention = "keep_forever"
	Retain30d             Retention = "30d"
	Retain90d             Retention = "90d"
	Retain365d            Retention = "365d"
	RetainDeleteOnPromote Retention = "delete_on_promote"
	RetainFailureKeep90   Retention = "on_failure_keep_90"
)

// retentionWindow maps a retention class to its purge window. Zero means
// never purge automatically.
func retentionWindow(r Retention) time.Duration {
	const day = 24 * time.Hour
	switch r {
	case Retain30d:
		return 30 * day
	case Retain90d, RetainFailureKeep90:
		return 90 * day
	case Retain365d:
		return 365 * day
	default:
		return 0
	}
}

// AccessType scopes an ACL row.
type AccessType string

const (
	AccessFull     AccessType = "full"
	AccessIndex    AccessType = "index"
	AccessDocument AccessType = "document"
	AccessField    AccessType = "field"
)

// Product is one dataset under a workspace.
type Product struct {
	ID               int64
	WorkspaceID      int64
	Name             string
	CurrentVersion   int
	PromotedVersion  *int
	PlaybookID       string
	Chunking         types.ChunkingConfig
	Embedding        types.EmbeddingSpec
	Fingerprint      *types.Fingerprint
	TrustScore       *float64
	PolicyStatus     string
	PolicyViolations []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RawFile is the catalog row for one ingested byte object.
type RawFile struct {
	ID          int64
	ProductID   int64
	Version     int
	Filename    string
	FileStem    string
	Bucket      string
	ObjectKey   string
	Size        int64
	Checksum    string
	ContentType string
	Status      RawFileStatus
	DataSource  string
	CreatedAt   time.Time
}

// PipelineRun is one execution of the stage pipeline for (product, version).
type PipelineRun struct {
	ID         int64
	ProductID  int64
	Version    int
	Status     RunStatus
	DagID      string
	Metrics    map[string]any
	StartedAt  *time.Time
	FinishedAt *time.Time

	// Recorded by the indexing stage; trusted by later runs of the version.
	EmbeddingModel     string
	EmbeddingDimension int
}

// ArtifactRef points at an upstream artifact for lineage.
type ArtifactRef struct {
	ArtifactID int64  `json:"artifact_id"`
	Stage      string `json:"stage"`
	Name       string `json:"name"`
}

// Artifact is one registered pipeline output.
type Artifact struct {
	ID             int64
	RunID          int64
	WorkspaceID    int64
	ProductID      int64
	Version        int
	StageName      string
	ArtifactType   string // jsonl|json|csv|pdf|vector|text|binary
	ArtifactName   string
	Bucket         string
	ObjectKey      string
	Size           int64
	Checksum       string
	InputArtifacts []ArtifactRef
	Metadata       map[string]any
	Status         ArtifactStatus
	Retention      Retention
	DeletedAt      *time.Time
	CreatedAt      time.Time
}

// ACL grants a user scoped access to a product's chunks.
type ACL struct {
	ID         int64
	UserID     string
	ProductID  int64
	AccessType AccessType
	IndexScope string // comma-separated ids
	DocScope   string
	FieldScope string
}
