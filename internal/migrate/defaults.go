package migrate

import (
	"fmt"

	"github.com/cognitedata/cdf-tk/internal/cdf"
)

// Core data model space holding the built-in target views.
const coreModelSpace = "cdf_cdm"

// ProvenanceViewId is the migration bookkeeping view every migrated instance
// writes to, linking the instance back to its legacy identity.
var ProvenanceViewId = cdf.ViewId{
	Space:      "cognite_migration",
	ExternalId: "AssetCentricResource",
	Version:    "v1",
}

// DefaultIngestionView returns the built-in ingestion view name used when a
// mapping row does not name one.
func DefaultIngestionView(rt cdf.ResourceType) string {
	switch rt {
	case cdf.ResourceTypeAsset:
		return "asset"
	case cdf.ResourceTypeEvent:
		return "event"
	case cdf.ResourceTypeTimeSeries:
		return "timeseries"
	case cdf.ResourceTypeFile:
		return "file"
	case cdf.ResourceTypeSequence:
		return "sequence"
	default:
		panic(fmt.Sprintf("unhandled resource type %d", int(rt)))
	}
}

// DefaultMappings builds the built-in property-mapping registry targeting the
// core data model. The registry is an explicit value handed to the migrator
// at startup; nothing here is cached at package level.
func DefaultMappings() *MappingRegistry {
	return NewMappingRegistry(
		ResourceViewMapping{
			Name:         "asset",
			ResourceType: cdf.ResourceTypeAsset,
			ViewId:       cdf.ViewId{Space: coreModelSpace, ExternalId: "CogniteAsset", Version: "v1"},
			PropertyMapping: []PropertyMapping{
				{Source: "name", Target: "name"},
				{Source: "description", Target: "description"},
				{Source: "source", Target: "sourceId"},
			},
		},
		ResourceViewMapping{
			Name:         "event",
			ResourceType: cdf.ResourceTypeEvent,
			ViewId:       cdf.ViewId{Space: coreModelSpace, ExternalId: "CogniteActivity", Version: "v1"},
			PropertyMapping: []PropertyMapping{
				{Source: "description", Target: "description"},
				{Source: "source", Target: "sourceId"},
				{Source: "startTime", Target: "startTime"},
				{Source: "endTime", Target: "endTime"},
			},
		},
		ResourceViewMapping{
			Name:         "timeseries",
			ResourceType: cdf.ResourceTypeTimeSeries,
			ViewId:       cdf.ViewId{Space: coreModelSpace, ExternalId: "CogniteTimeSeries", Version: "v1"},
			PropertyMapping: []PropertyMapping{
				{Source: "name", Target: "name"},
				{Source: "description", Target: "description"},
				{Source: "unit", Target: "sourceUnit"},
				{Source: "isStep", Target: "isStep"},
			},
		},
		ResourceViewMapping{
			Name:         "file",
			ResourceType: cdf.ResourceTypeFile,
			ViewId:       cdf.ViewId{Space: coreModelSpace, ExternalId: "CogniteFile", Version: "v1"},
			PropertyMapping: []PropertyMapping{
				{Source: "name", Target: "name"},
				{Source: "mimeType", Target: "mimeType"},
				{Source: "source", Target: "sourceId"},
				{Source: "directory", Target: "directory"},
			},
		},
		ResourceViewMapping{
			Name:         "sequence",
			ResourceType: cdf.ResourceTypeSequence,
			ViewId:       cdf.ViewId{Space: coreModelSpace, ExternalId: "CogniteSequence", Version: "v1"},
			PropertyMapping: []PropertyMapping{
				{Source: "name", Target: "name"},
				{Source: "description", Target: "description"},
			},
		},
	)
}
