package migrate

import (
	"sort"

	"github.com/cognitedata/cdf-tk/internal/cdf"
	"github.com/cognitedata/cdf-tk/internal/errors"
)

// ConvertResource maps one asset-centric resource into a data-model node.
//
// Conversion never aborts on a single bad property: anything that cannot be
// applied degrades to partial data plus an entry in the returned issue. The
// issue is produced even on full success so every conversion is auditable.
// The only fatal error is a resource without a usable integer id.
func ConvertResource(
	rt cdf.ResourceType,
	resource cdf.RawResource,
	target cdf.InstanceId,
	viewSource ResourceViewMapping,
	view cdf.ViewDefinition,
) (cdf.NodeApply, *ConversionIssue, error) {
	// Work on a copy so the caller's resource is never mutated.
	remaining := make(map[string]any, len(resource))
	for k, v := range resource {
		remaining[k] = v
	}

	legacyId, err := resource.ID()
	if err != nil {
		return cdf.NodeApply{}, nil, errors.New(err).
			Component("migrate").
			Category(errors.CategoryConversion).
			Context("resource_type", rt.String()).
			Build()
	}
	delete(remaining, "id")

	dataSetId := resource.DataSetID()
	delete(remaining, "dataSetId")

	classicExternalId := resource.ExternalID()
	delete(remaining, "externalId")

	issue := &ConversionIssue{
		AssetCentricId: AssetCentricId{ResourceType: rt.String(), Id: legacyId},
		InstanceId:     target,
	}

	flat := flattenResource(remaining, viewSource.wholesaleSources())

	properties := make(map[string]any)
	consumed := make(map[string]bool, len(flat))
	populated := make(map[string]bool)

	for _, pm := range viewSource.PropertyMapping {
		value, present := flat[pm.Source]
		if !present {
			issue.MissingAssetCentricProperties = append(issue.MissingAssetCentricProperties, pm.Source)
			consumed[pm.Source] = true
			continue
		}
		// First mapping entry for a target wins; later ones are ignored.
		if populated[pm.Target] {
			issue.IgnoredAssetCentricProperties = append(issue.IgnoredAssetCentricProperties, pm.Source)
			consumed[pm.Source] = true
			continue
		}
		viewProp, declared := view.Properties[pm.Target]
		if !declared {
			issue.MissingAssetCentricProperties = append(issue.MissingAssetCentricProperties, pm.Source)
			consumed[pm.Source] = true
			continue
		}
		if !viewProp.IsMapped() {
			issue.InvalidTypeProperties = append(issue.InvalidTypeProperties, InvalidTypeProperty{
				SourcePath:     pm.Source,
				TargetProperty: pm.Target,
			})
			consumed[pm.Source] = true
			continue
		}

		converted, err := ConvertToPrimaryProperty(value, viewProp.Type, viewProp.IsNullable())
		consumed[pm.Source] = true
		if err != nil {
			issue.FailedConversions = append(issue.FailedConversions, FailedConversion{
				SourcePath:     pm.Source,
				TargetProperty: pm.Target,
				Value:          value,
				Error:          err.Error(),
			})
			continue
		}
		properties[pm.Target] = converted
		populated[pm.Target] = true
	}

	// Everything left in the flattened resource was dropped, record it.
	var leftover []string
	for path := range flat {
		if !consumed[path] {
			leftover = append(leftover, path)
		}
	}
	sort.Strings(leftover)
	issue.IgnoredAssetCentricProperties = append(issue.IgnoredAssetCentricProperties, leftover...)

	node := cdf.NodeApply{
		Space:      target.Space,
		ExternalId: target.ExternalId,
	}
	if len(properties) > 0 {
		node.Sources = append(node.Sources, cdf.InstanceSource{
			Source:     viewSource.ViewId,
			Properties: properties,
		})
	}
	node.Sources = append(node.Sources, provenanceSource(rt, legacyId, dataSetId, classicExternalId))

	return node, issue, nil
}

// provenanceSource builds the mandatory bookkeeping source written to every
// migrated instance, enabling reverse lookup and idempotent re-migration.
func provenanceSource(rt cdf.ResourceType, legacyId, dataSetId int64, classicExternalId string) cdf.InstanceSource {
	props := map[string]any{
		"resourceType": rt.String(),
		"id":           legacyId,
	}
	if dataSetId != 0 {
		props["dataSetId"] = dataSetId
	} else {
		props["dataSetId"] = nil
	}
	if classicExternalId != "" {
		props["classicExternalId"] = classicExternalId
	} else {
		props["classicExternalId"] = nil
	}
	return cdf.InstanceSource{Source: ProvenanceViewId, Properties: props}
}
