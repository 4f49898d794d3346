package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/cognitedata/cdf-tk/internal/cdf"
	"github.com/cognitedata/cdf-tk/internal/errors"
)

// aclForResourceType maps a resource kind to its capability ACL name.
func aclForResourceType(rt cdf.ResourceType) string {
	switch rt {
	case cdf.ResourceTypeAsset:
		return "assetsAcl"
	case cdf.ResourceTypeEvent:
		return "eventsAcl"
	case cdf.ResourceTypeTimeSeries:
		return "timeSeriesAcl"
	case cdf.ResourceTypeFile:
		return "filesAcl"
	case cdf.ResourceTypeSequence:
		return "sequencesAcl"
	default:
		panic(fmt.Sprintf("unhandled resource type %d", int(rt)))
	}
}

// resolvedMapping pairs an ingestion view's declared mapping with the live
// view schema it targets. Built once during pre-flight, read-only afterwards.
type resolvedMapping struct {
	ViewSource ResourceViewMapping
	View       cdf.ViewDefinition
}

// validateModelAvailable checks that the migration bookkeeping view exists in
// the project. Without it no provenance can be written, so this is fatal.
func (m *Migrator) validateModelAvailable(ctx context.Context) error {
	views, err := m.client.RetrieveViews(ctx, []cdf.ViewId{ProvenanceViewId})
	if err != nil {
		return err
	}
	if len(views) == 0 {
		return errors.Newf("migration model is not deployed: view %s not found", ProvenanceViewId).
			Component("migrate").
			Category(errors.CategoryNotFound).
			Build()
	}
	return nil
}

// validateCapabilities verifies the token carries the grants the run needs:
// read on the source kind, write on data-model instances, read on data models,
// and write on the source kind when pending-instance-id linking applies.
// When the run enumerates a data set, the source read grant must also be
// scoped to cover that data set.
func (m *Migrator) validateCapabilities(ctx context.Context, rt cdf.ResourceType, dataSetId int64) error {
	capabilities, err := m.client.InspectToken(ctx)
	if err != nil {
		return err
	}

	type requirement struct {
		acl    string
		action string
	}
	required := []requirement{
		{aclForResourceType(rt), "READ"},
		{"dataModelsAcl", "READ"},
		{"dataModelInstancesAcl", "READ"},
		{"dataModelInstancesAcl", "WRITE"},
	}
	if rt.SupportsPendingInstanceId() {
		required = append(required, requirement{aclForResourceType(rt), "WRITE"})
	}

	var missing []string
	for _, req := range required {
		if !cdf.HasCapability(capabilities, req.acl, req.action) {
			missing = append(missing, fmt.Sprintf("%s:%s", req.acl, req.action))
		}
	}
	if dataSetId > 0 && !cdf.HasCapabilityForDataSet(capabilities, aclForResourceType(rt), "READ", dataSetId) {
		missing = append(missing, fmt.Sprintf("%s:READ for data set %d", aclForResourceType(rt), dataSetId))
	}
	if len(missing) > 0 {
		return errors.Newf("missing required capabilities: %s", strings.Join(missing, ", ")).
			Component("migrate").
			Category(errors.CategoryCapability).
			Build()
	}
	return nil
}

// validateInstanceSpaces checks that every instance space the selector
// targets exists before anything is read. Mappings carrying the
// missing-space marker are excluded here; those fail per item during
// conversion instead.
func (m *Migrator) validateInstanceSpaces(ctx context.Context, selector DataSelector) error {
	spaces := map[string]bool{}
	switch sel := selector.(type) {
	case *MappingFileSelector:
		mappings, _, err := sel.Mappings()
		if err != nil {
			return err
		}
		for _, mapping := range mappings {
			if mapping.InstanceId.Space != MissingInstanceSpace {
				spaces[mapping.InstanceId.Space] = true
			}
		}
	case *DataSetSelector:
		if sel.InstanceSpace != "" {
			spaces[sel.InstanceSpace] = true
		}
	}

	for space := range spaces {
		exists, err := m.client.SpaceExists(ctx, space)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Newf("instance space %q does not exist", space).
				Component("migrate").
				Category(errors.CategoryNotFound).
				Build()
		}
	}
	return nil
}

// validateCapacity refuses to start a migration that could exhaust the
// project's instance quota, keeping the configured margin free.
func (m *Migrator) validateCapacity(ctx context.Context, requested int64) error {
	usage, err := m.client.RetrieveInstanceUsage(ctx)
	if err != nil {
		return err
	}
	if usage.InstancesLimit <= 0 {
		// No quota reported, nothing to enforce.
		return nil
	}

	budget := int64(float64(usage.InstancesLimit) * (1 - m.capacityMargin))
	if usage.Total()+requested > budget {
		return errors.Newf(
			"insufficient instance capacity: %d in use, %d requested, budget %d of %d (margin %.0f%%)",
			usage.Total(), requested, budget, usage.InstancesLimit, m.capacityMargin*100).
			Component("migrate").
			Category(errors.CategoryCapacity).
			Build()
	}
	return nil
}

// estimateVolume returns the number of instances the selector will request,
// used for capacity validation and progress estimates.
func (m *Migrator) estimateVolume(ctx context.Context, selector DataSelector, limit int) (int64, error) {
	var volume int64
	switch sel := selector.(type) {
	case *MappingFileSelector:
		mappings, _, err := sel.Mappings()
		if err != nil {
			return 0, err
		}
		volume = int64(len(mappings))
	case *DataSetSelector:
		count, err := m.client.AggregateCount(ctx, sel.Kind, sel.DataSetExternalId)
		if err != nil {
			return 0, err
		}
		volume = count
	default:
		return 0, errors.Newf("unsupported selector %T", selector).
			Category(errors.CategoryValidation).
			Build()
	}
	if limit > 0 && volume > int64(limit) {
		volume = int64(limit)
	}
	return volume, nil
}

// ingestionViewNames collects every ingestion view name the selector will use.
func (m *Migrator) ingestionViewNames(selector DataSelector) ([]string, error) {
	names := map[string]bool{}
	switch sel := selector.(type) {
	case *MappingFileSelector:
		mappings, _, err := sel.Mappings()
		if err != nil {
			return nil, err
		}
		for _, mapping := range mappings {
			names[mapping.EffectiveIngestionView()] = true
		}
	case *DataSetSelector:
		name := sel.IngestionView
		if name == "" {
			name = DefaultIngestionView(sel.Kind)
		}
		names[name] = true
	default:
		return nil, errors.Newf("unsupported selector %T", selector).
			Category(errors.CategoryValidation).
			Build()
	}

	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	return out, nil
}

// buildViewCache resolves every referenced ingestion view name to its mapping
// and to the live view schema. Any unresolved name, kind mismatch or missing
// view is a hard pre-flight failure, not a per-item issue. The cache is
// read-only for the rest of the run and shared across pipeline stages
// without locking.
func (m *Migrator) buildViewCache(ctx context.Context, rt cdf.ResourceType, names []string) (map[string]resolvedMapping, error) {
	viewSources := make([]ResourceViewMapping, 0, len(names))
	viewIds := make([]cdf.ViewId, 0, len(names))
	for _, name := range names {
		viewSource, ok := m.registry.Get(name)
		if !ok {
			return nil, errors.Newf("ingestion view %q is not defined", name).
				Component("migrate").
				Category(errors.CategoryValidation).
				Build()
		}
		if viewSource.ResourceType != rt {
			return nil, errors.Newf("ingestion view %q maps %s resources, not %s",
				name, viewSource.ResourceType, rt).
				Component("migrate").
				Category(errors.CategoryValidation).
				Build()
		}
		viewSources = append(viewSources, viewSource)
		viewIds = append(viewIds, viewSource.ViewId)
	}

	views, err := m.client.RetrieveViews(ctx, viewIds)
	if err != nil {
		return nil, err
	}
	byId := make(map[cdf.ViewId]cdf.ViewDefinition, len(views))
	for _, view := range views {
		byId[view.ID()] = view
	}

	cache := make(map[string]resolvedMapping, len(viewSources))
	for _, viewSource := range viewSources {
		view, ok := byId[viewSource.ViewId]
		if !ok {
			return nil, errors.Newf("view %s referenced by ingestion view %q does not exist",
				viewSource.ViewId, viewSource.Name).
				Component("migrate").
				Category(errors.CategoryNotFound).
				Build()
		}
		cache[viewSource.Name] = resolvedMapping{ViewSource: viewSource, View: view}
	}
	return cache, nil
}
