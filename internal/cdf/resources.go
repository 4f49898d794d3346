package cdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/cognitedata/cdf-tk/internal/errors"
)

// ResourceType is the closed set of asset-centric resource kinds.
type ResourceType int

const (
	ResourceTypeAsset ResourceType = iota
	ResourceTypeEvent
	ResourceTypeTimeSeries
	ResourceTypeFile
	ResourceTypeSequence
)

// AllResourceTypes lists every supported resource type.
var AllResourceTypes = []ResourceType{
	ResourceTypeAsset,
	ResourceTypeEvent,
	ResourceTypeTimeSeries,
	ResourceTypeFile,
	ResourceTypeSequence,
}

func (rt ResourceType) String() string {
	switch rt {
	case ResourceTypeAsset:
		return "asset"
	case ResourceTypeEvent:
		return "event"
	case ResourceTypeTimeSeries:
		return "timeseries"
	case ResourceTypeFile:
		return "file"
	case ResourceTypeSequence:
		return "sequence"
	default:
		return fmt.Sprintf("resourcetype(%d)", int(rt))
	}
}

// ParseResourceType parses the string form used in CSV mapping files and CLI flags.
func ParseResourceType(s string) (ResourceType, error) {
	switch s {
	case "asset":
		return ResourceTypeAsset, nil
	case "event":
		return ResourceTypeEvent, nil
	case "timeseries":
		return ResourceTypeTimeSeries, nil
	case "file":
		return ResourceTypeFile, nil
	case "sequence":
		return ResourceTypeSequence, nil
	default:
		return 0, errors.Newf("unknown resource type %q", s).
			Category(errors.CategoryValidation).
			Build()
	}
}

// basePath returns the API path prefix for the resource type.
func (rt ResourceType) basePath() string {
	switch rt {
	case ResourceTypeAsset:
		return "/assets"
	case ResourceTypeEvent:
		return "/events"
	case ResourceTypeTimeSeries:
		return "/timeseries"
	case ResourceTypeFile:
		return "/files"
	case ResourceTypeSequence:
		return "/sequences"
	default:
		panic(fmt.Sprintf("unhandled resource type %d", int(rt)))
	}
}

// SupportsPendingInstanceId reports whether the kind has a
// set-pending-instance-ids endpoint. Only time series and files do.
func (rt ResourceType) SupportsPendingInstanceId() bool {
	switch rt {
	case ResourceTypeTimeSeries, ResourceTypeFile:
		return true
	case ResourceTypeAsset, ResourceTypeEvent, ResourceTypeSequence:
		return false
	default:
		panic(fmt.Sprintf("unhandled resource type %d", int(rt)))
	}
}

// RawResource is one asset-centric resource as returned by the API.
// Numbers are json.Number so 64-bit ids survive decoding.
type RawResource map[string]any

// ID returns the numeric id, or an error when absent or non-integer.
func (r RawResource) ID() (int64, error) {
	v, ok := r["id"]
	if !ok {
		return 0, errors.NewStd("resource has no id")
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, errors.Newf("resource id has unexpected type %T", v).Build()
	}
	id, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("resource id %q is not an integer: %w", n.String(), err)
	}
	return id, nil
}

// ExternalID returns the externalId field when present.
func (r RawResource) ExternalID() string {
	if s, ok := r["externalId"].(string); ok {
		return s
	}
	return ""
}

// DataSetID returns the dataSetId field, zero when absent.
func (r RawResource) DataSetID() int64 {
	if n, ok := r["dataSetId"].(json.Number); ok {
		if id, err := n.Int64(); err == nil {
			return id
		}
	}
	return 0
}

// resourceItemsResponse decodes {"items": [...]} preserving number precision.
type resourceItemsResponse struct {
	Items      []RawResource `json:"items"`
	NextCursor string        `json:"nextCursor"`
}

// postJSONNumbers is postJSON with json.Number decoding for resource payloads.
func (c *Client) postJSONNumbers(ctx context.Context, path string, body any, out *resourceItemsResponse) error {
	var raw json.RawMessage
	if err := c.postJSON(ctx, path, body, &raw); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errors.Newf("failed to decode items from %s: %w", path, err).
			Component("cdf").
			Category(errors.CategoryHTTP).
			Build()
	}
	return nil
}

// RetrieveResources fetches resources of one kind by numeric id in a single
// bulk call. Unknown ids are ignored, so the result may be shorter than ids.
func (c *Client) RetrieveResources(ctx context.Context, rt ResourceType, ids []int64) ([]RawResource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	items := make([]map[string]any, len(ids))
	for i, id := range ids {
		items[i] = map[string]any{"id": id}
	}
	body := map[string]any{"items": items, "ignoreUnknownIds": true}

	var resp resourceItemsResponse
	if err := c.postJSONNumbers(ctx, rt.basePath()+"/byids", body, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListResourcesByDataSet returns one page of resources in the given data set.
// Pass the returned cursor to fetch the next page; an empty cursor means done.
func (c *Client) ListResourcesByDataSet(ctx context.Context, rt ResourceType, dataSetExternalId, cursor string, limit int) ([]RawResource, string, error) {
	body := map[string]any{
		"filter": map[string]any{
			"dataSetIds": []map[string]any{{"externalId": dataSetExternalId}},
		},
		"limit": limit,
	}
	if cursor != "" {
		body["cursor"] = cursor
	}

	var resp resourceItemsResponse
	if err := c.postJSONNumbers(ctx, rt.basePath()+"/list", body, &resp); err != nil {
		return nil, "", err
	}
	return resp.Items, resp.NextCursor, nil
}

// AggregateCount returns the number of resources of one kind in a data set.
func (c *Client) AggregateCount(ctx context.Context, rt ResourceType, dataSetExternalId string) (int64, error) {
	body := map[string]any{
		"filter": map[string]any{
			"dataSetIds": []map[string]any{{"externalId": dataSetExternalId}},
		},
	}
	var resp struct {
		Items []struct {
			Count int64 `json:"count"`
		} `json:"items"`
	}
	if err := c.postJSON(ctx, rt.basePath()+"/aggregate", body, &resp); err != nil {
		return 0, err
	}
	if len(resp.Items) == 0 {
		return 0, nil
	}
	return resp.Items[0].Count, nil
}

// PendingIdItem pre-links one legacy resource to a not-yet-written instance id.
type PendingIdItem struct {
	Id                int64      `json:"id"`
	PendingInstanceId InstanceId `json:"pendingInstanceId"`
}

// SetPendingInstanceIds registers pending instance ids for resources of one
// kind, returning per-item results. The kind must support pending ids.
func (c *Client) SetPendingInstanceIds(ctx context.Context, rt ResourceType, items []PendingIdItem) ([]ItemResult, error) {
	if !rt.SupportsPendingInstanceId() {
		return nil, errors.Newf("resource type %s does not support pending instance ids", rt).
			Component("cdf").
			Category(errors.CategoryValidation).
			Build()
	}
	reqItems := make([]any, len(items))
	for i, item := range items {
		reqItems[i] = item
	}
	return c.RequestItems(ctx, ItemsRequest{
		Path:  rt.basePath() + "/set-pending-instance-ids",
		Items: reqItems,
	})
}

// RetrieveDataSetID resolves a data set external id to its numeric id,
// with a TTL cache in front of the API call.
func (c *Client) RetrieveDataSetID(ctx context.Context, externalId string) (int64, error) {
	cacheKey := "dataset:" + externalId
	if cached, ok := c.lookupCache.Get(cacheKey); ok {
		return cached.(int64), nil
	}

	body := map[string]any{"items": []map[string]any{{"externalId": externalId}}}
	var resp resourceItemsResponse
	if err := c.postJSONNumbers(ctx, "/datasets/byids", body, &resp); err != nil {
		return 0, err
	}
	if len(resp.Items) == 0 {
		return 0, errors.Newf("data set %q not found", externalId).
			Component("cdf").
			Category(errors.CategoryNotFound).
			Build()
	}
	id, err := resp.Items[0].ID()
	if err != nil {
		return 0, err
	}
	c.lookupCache.SetDefault(cacheKey, id)
	return id, nil
}
