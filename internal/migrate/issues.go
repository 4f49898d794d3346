package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cognitedata/cdf-tk/internal/cdf"
	"github.com/cognitedata/cdf-tk/internal/errors"
)

// AssetCentricId identifies a legacy resource by kind and numeric id. It is
// the join key between a conversion issue and the original resource.
type AssetCentricId struct {
	ResourceType string `json:"resourceType"`
	Id           int64  `json:"id"`
}

func (id AssetCentricId) String() string {
	return fmt.Sprintf("%s:%d", id.ResourceType, id.Id)
}

// FailedConversion records one property value that could not be converted.
type FailedConversion struct {
	SourcePath     string `json:"sourcePath"`
	TargetProperty string `json:"targetProperty"`
	Value          any    `json:"value"`
	Error          string `json:"error"`
}

// InvalidTypeProperty records a mapping entry pointing at a view property
// that cannot be written through this pipeline (connection, missing type).
type InvalidTypeProperty struct {
	SourcePath     string `json:"sourcePath"`
	TargetProperty string `json:"targetProperty"`
}

// ConversionIssue is the per-resource audit record of what was dropped,
// missing or failed during conversion. It is produced for every conversion,
// clean or not, and never mutated after being returned.
type ConversionIssue struct {
	AssetCentricId AssetCentricId `json:"assetCentricId"`
	InstanceId     cdf.InstanceId `json:"instanceId"`
	// IgnoredAssetCentricProperties lists source paths present in the
	// resource that no mapping entry consumed.
	IgnoredAssetCentricProperties []string `json:"ignoredAssetCentricProperties"`
	// MissingAssetCentricProperties lists mapping source paths that could not
	// be applied: absent from the resource, or targeting an undeclared view property.
	MissingAssetCentricProperties []string              `json:"missingAssetCentricProperties"`
	InvalidTypeProperties         []InvalidTypeProperty `json:"invalidTypeProperties"`
	FailedConversions             []FailedConversion    `json:"failedConversions"`
}

// Clean reports whether the conversion completed without any dropped data.
func (c *ConversionIssue) Clean() bool {
	return len(c.IgnoredAssetCentricProperties) == 0 &&
		len(c.MissingAssetCentricProperties) == 0 &&
		len(c.InvalidTypeProperties) == 0 &&
		len(c.FailedConversions) == 0
}

// IssueLog appends conversion issues to a JSON-lines file for post-run
// inspection. Safe for concurrent use.
type IssueLog struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

// NewIssueLog creates the issue log for one migration run.
func NewIssueLog(dir, runID string) (*IssueLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Newf("failed to create log directory %s: %w", dir, err).
			Component("migrate").
			Category(errors.CategoryFileIO).
			Build()
	}
	path := filepath.Join(dir, fmt.Sprintf("migration_issues_%s.jsonl", runID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Newf("failed to open issue log %s: %w", path, err).
			Component("migrate").
			Category(errors.CategoryFileIO).
			Build()
	}
	return &IssueLog{file: file, enc: json.NewEncoder(file), path: path}, nil
}

// Path returns the log file location, surfaced to the user at end of run.
func (l *IssueLog) Path() string {
	return l.path
}

// Write appends one issue as a JSON line.
func (l *IssueLog) Write(issue *ConversionIssue) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(issue)
}

// Close flushes and closes the underlying file.
func (l *IssueLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
