package cdf

import (
	"context"

	"github.com/cognitedata/cdf-tk/internal/errors"
)

// ItemsRequest bundles an endpoint path and a list of items for a bulk call.
type ItemsRequest struct {
	// Path is the project-scoped endpoint, e.g. "/timeseries/set-pending-instance-ids".
	Path string
	// Items is the payload list sent under the "items" key.
	Items []any
	// ExtraBody carries additional top-level body fields alongside "items".
	ExtraBody map[string]any
}

// ItemResult tags one request item with its outcome.
type ItemResult struct {
	Item any
	Err  error
}

// Failed reports whether the item was rejected.
func (r ItemResult) Failed() bool {
	return r.Err != nil
}

// RequestItems posts the items in one bulk call and returns a per-item result
// list. When the whole call is rejected with a client error and more than one
// item was sent, the batch is bisected and retried so that only the offending
// items end up tagged as failed. Transport-level retries for transient errors
// happen below this layer.
func (c *Client) RequestItems(ctx context.Context, req ItemsRequest) ([]ItemResult, error) {
	if len(req.Items) == 0 {
		return nil, nil
	}

	body := map[string]any{"items": req.Items}
	for k, v := range req.ExtraBody {
		body[k] = v
	}

	err := c.postJSON(ctx, req.Path, body, nil)
	if err == nil {
		results := make([]ItemResult, len(req.Items))
		for i, item := range req.Items {
			results[i] = ItemResult{Item: item}
		}
		return results, nil
	}

	// Network and auth failures apply to the call, not the items.
	if !errors.Is(err, &errors.EnhancedError{Category: errors.CategoryHTTP}) {
		return nil, err
	}

	if len(req.Items) == 1 {
		return []ItemResult{{Item: req.Items[0], Err: err}}, nil
	}

	mid := len(req.Items) / 2
	left, err := c.RequestItems(ctx, ItemsRequest{Path: req.Path, Items: req.Items[:mid], ExtraBody: req.ExtraBody})
	if err != nil {
		return nil, err
	}
	right, err := c.RequestItems(ctx, ItemsRequest{Path: req.Path, Items: req.Items[mid:], ExtraBody: req.ExtraBody})
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// RaiseOnFailure collapses a result list into an error if any item failed.
func RaiseOnFailure(results []ItemResult) error {
	var errs []error
	for _, r := range results {
		if r.Failed() {
			errs = append(errs, r.Err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
