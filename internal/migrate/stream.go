package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cognitedata/cdf-tk/internal/cdf"
	"github.com/cognitedata/cdf-tk/internal/errors"
)

// ChunkSize is the number of (resource, mapping) pairs per streamed page and
// the batch size of every bulk API call.
const ChunkSize = 1000

// MissingInstanceSpace marks synthesized mappings whose target space could
// not be resolved; such items fail conversion-side validation instead of
// being silently written into a wrong space.
const MissingInstanceSpace = "MISSING_INSTANCE_SPACE"

// ResourcePair is one legacy resource zipped with its migration mapping.
type ResourcePair struct {
	Resource cdf.RawResource
	Mapping  MigrationMapping
}

// Page is one streamed batch of pairs, at most ChunkSize long.
type Page struct {
	Pairs []ResourcePair
}

// Streamer bridges selectors to streamed pages of (resource, mapping) pairs
// and performs the pending-instance-id linking step before upload.
type Streamer struct {
	client    *cdf.Client
	chunkSize int
	logger    *slog.Logger
}

// NewStreamer creates a streamer using the given client.
func NewStreamer(client *cdf.Client, chunkSize int, logger *slog.Logger) *Streamer {
	if chunkSize <= 0 || chunkSize > ChunkSize {
		chunkSize = ChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{client: client, chunkSize: chunkSize, logger: logger}
}

// StreamData produces pages of pairs for the selector and hands each to emit.
// limit <= 0 means no limit. Streaming stops on the first emit error, so the
// pipeline's backpressure propagates to the API reads.
func (s *Streamer) StreamData(ctx context.Context, selector DataSelector, limit int, emit func(Page) error) error {
	switch sel := selector.(type) {
	case *MappingFileSelector:
		return s.streamFromMappings(ctx, sel, limit, emit)
	case *DataSetSelector:
		return s.streamFromDataSet(ctx, sel, limit, emit)
	default:
		return errors.Newf("unsupported selector %T", selector).
			Component("migrate").
			Category(errors.CategoryValidation).
			Build()
	}
}

// streamFromMappings pages the mapping list, bulk-retrieves the legacy
// resources per chunk and zips them by id. Mappings whose resource no longer
// exists are dropped with a debug log.
func (s *Streamer) streamFromMappings(ctx context.Context, sel *MappingFileSelector, limit int, emit func(Page) error) error {
	mappings, warnings, err := sel.Mappings()
	if err != nil {
		return err
	}
	for _, w := range warnings {
		s.logger.Warn(w)
	}
	if limit > 0 && len(mappings) > limit {
		mappings = mappings[:limit]
	}

	for start := 0; start < len(mappings); start += s.chunkSize {
		end := min(start+s.chunkSize, len(mappings))
		chunk := mappings[start:end]

		ids := make([]int64, len(chunk))
		byId := make(map[int64]MigrationMapping, len(chunk))
		for i, m := range chunk {
			ids[i] = m.LegacyId
			byId[m.LegacyId] = m
		}

		resources, err := s.client.RetrieveResources(ctx, sel.Kind, ids)
		if err != nil {
			return err
		}

		retrieved := make(map[int64]bool, len(resources))
		pairs := make([]ResourcePair, 0, len(resources))
		for _, resource := range resources {
			id, err := resource.ID()
			if err != nil {
				s.logger.Warn("skipping resource without usable id", "error", err)
				continue
			}
			mapping, ok := byId[id]
			if !ok {
				continue
			}
			retrieved[id] = true
			pairs = append(pairs, ResourcePair{Resource: resource, Mapping: mapping})
		}
		for _, m := range chunk {
			if !retrieved[m.LegacyId] {
				s.logger.Debug("mapped resource no longer exists, dropping",
					"resource_type", sel.Kind.String(), "id", m.LegacyId)
			}
		}

		if len(pairs) == 0 {
			continue
		}
		if err := emit(Page{Pairs: pairs}); err != nil {
			return err
		}
	}
	return nil
}

// streamFromDataSet enumerates a data set and synthesizes a mapping for each
// resource: space from the selector (or the missing-space marker), external
// id from the resource or a sentinel pattern when it has none.
func (s *Streamer) streamFromDataSet(ctx context.Context, sel *DataSetSelector, limit int, emit func(Page) error) error {
	space := sel.InstanceSpace
	if space == "" {
		space = MissingInstanceSpace
	}

	dataSetId, err := s.client.RetrieveDataSetID(ctx, sel.DataSetExternalId)
	if err != nil {
		return err
	}

	cursor := ""
	remaining := limit
	for {
		pageLimit := s.chunkSize
		if limit > 0 && remaining < pageLimit {
			pageLimit = remaining
		}
		resources, nextCursor, err := s.client.ListResourcesByDataSet(ctx, sel.Kind, sel.DataSetExternalId, cursor, pageLimit)
		if err != nil {
			return err
		}

		pairs := make([]ResourcePair, 0, len(resources))
		for _, resource := range resources {
			id, err := resource.ID()
			if err != nil {
				s.logger.Warn("skipping resource without usable id", "error", err)
				continue
			}
			externalId := resource.ExternalID()
			if externalId == "" {
				externalId = fmt.Sprintf("%s_%d", sel.Kind, id)
			}
			pairs = append(pairs, ResourcePair{
				Resource: resource,
				Mapping: MigrationMapping{
					ResourceType:          sel.Kind,
					LegacyId:              id,
					InstanceId:            cdf.InstanceId{Space: space, ExternalId: externalId},
					DataSetId:             dataSetId,
					IngestionView:         sel.IngestionView,
					PreferredConsumerView: sel.PreferredConsumerView,
				},
			})
		}

		if len(pairs) > 0 {
			if err := emit(Page{Pairs: pairs}); err != nil {
				return err
			}
		}
		if limit > 0 {
			remaining -= len(resources)
			if remaining <= 0 {
				return nil
			}
		}
		if nextCursor == "" {
			return nil
		}
		cursor = nextCursor
	}
}

// LinkFailure reports one item excluded from upload because linking failed.
type LinkFailure struct {
	Mapping MigrationMapping
	Err     error
}

// LinkPendingInstances pre-registers pending instance ids for the chunk.
// Only successfully linked pairs are returned for upload; a pair that fails
// linking is never written as an orphaned instance. skipLinking bypasses the
// two-phase discipline for kinds without pending-id support.
func (s *Streamer) LinkPendingInstances(ctx context.Context, rt cdf.ResourceType, pairs []ResourcePair, skipLinking bool) ([]ResourcePair, []LinkFailure, error) {
	if skipLinking || !rt.SupportsPendingInstanceId() {
		return pairs, nil, nil
	}

	items := make([]cdf.PendingIdItem, len(pairs))
	for i, p := range pairs {
		items[i] = cdf.PendingIdItem{
			Id:                p.Mapping.LegacyId,
			PendingInstanceId: p.Mapping.InstanceId,
		}
	}

	results, err := s.client.SetPendingInstanceIds(ctx, rt, items)
	if err != nil {
		return nil, nil, err
	}

	linked := make([]ResourcePair, 0, len(pairs))
	var failures []LinkFailure
	for i, result := range results {
		if result.Failed() {
			failures = append(failures, LinkFailure{Mapping: pairs[i].Mapping, Err: result.Err})
			continue
		}
		linked = append(linked, pairs[i])
	}
	return linked, failures, nil
}
