package migrate

import (
	"fmt"
	"sync"

	"github.com/cognitedata/cdf-tk/internal/cdf"
)

// DataSelector describes where the source data of a migration comes from.
type DataSelector interface {
	ResourceType() cdf.ResourceType
	String() string
}

// MappingFileSelector sources migration intent from a CSV mapping file.
// The file is parsed lazily on first access and cached; malformed files fail
// before any API call.
type MappingFileSelector struct {
	Kind cdf.ResourceType
	Path string

	mu       sync.Mutex
	loaded   bool
	mappings []MigrationMapping
	warnings []string
	loadErr  error
}

// NewMappingFileSelector creates a selector backed by the given CSV file.
func NewMappingFileSelector(kind cdf.ResourceType, path string) *MappingFileSelector {
	return &MappingFileSelector{Kind: kind, Path: path}
}

func (s *MappingFileSelector) ResourceType() cdf.ResourceType {
	return s.Kind
}

func (s *MappingFileSelector) String() string {
	return fmt.Sprintf("mapping file %s (%s)", s.Path, s.Kind)
}

// Mappings parses the mapping file once and returns the cached rows.
func (s *MappingFileSelector) Mappings() ([]MigrationMapping, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.mappings, s.warnings, s.loadErr = ReadMappingCSV(s.Path, s.Kind)
		s.loaded = true
	}
	return s.mappings, s.warnings, s.loadErr
}

// DataSetSelector migrates every resource of one kind in a data set.
// Mappings are synthesized during streaming for resources that have none.
type DataSetSelector struct {
	Kind              cdf.ResourceType
	DataSetExternalId string
	// InstanceSpace is the target space for synthesized mappings. When empty
	// the missing-instance-space marker is used and surfaced per item.
	InstanceSpace         string
	IngestionView         string
	PreferredConsumerView *cdf.ViewId
}

func (s *DataSetSelector) ResourceType() cdf.ResourceType {
	return s.Kind
}

func (s *DataSetSelector) String() string {
	return fmt.Sprintf("data set %s (%s)", s.DataSetExternalId, s.Kind)
}
