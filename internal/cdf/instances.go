package cdf

import (
	"context"
)

// InstanceSource carries the typed properties written through one view.
type InstanceSource struct {
	Source     ViewId         `json:"-"`
	Properties map[string]any `json:"properties"`
}

// instanceSourceWire is the wire form with the view reference expanded.
type instanceSourceWire struct {
	Source     viewReference  `json:"source"`
	Properties map[string]any `json:"properties"`
}

// NodeApply is one node in a bulk instance upsert.
type NodeApply struct {
	Space      string
	ExternalId string
	Sources    []InstanceSource
}

// wire returns the JSON shape the instances endpoint expects.
func (n NodeApply) wire() map[string]any {
	sources := make([]instanceSourceWire, len(n.Sources))
	for i, s := range n.Sources {
		sources[i] = instanceSourceWire{Source: s.Source.reference(), Properties: s.Properties}
	}
	return map[string]any{
		"instanceType": "node",
		"space":        n.Space,
		"externalId":   n.ExternalId,
		"sources":      sources,
	}
}

// InstanceID returns the node's identity.
func (n NodeApply) InstanceID() InstanceId {
	return InstanceId{Space: n.Space, ExternalId: n.ExternalId}
}

// ApplyInstances upserts nodes in one bulk call, returning per-item results.
// Writes are keyed by (space, externalId), so replays are idempotent.
func (c *Client) ApplyInstances(ctx context.Context, nodes []NodeApply) ([]ItemResult, error) {
	items := make([]any, len(nodes))
	for i, n := range nodes {
		items[i] = n.wire()
	}
	return c.RequestItems(ctx, ItemsRequest{
		Path:  "/models/instances",
		Items: items,
		ExtraBody: map[string]any{
			"autoCreateDirectRelations": true,
			"replace":                   false,
		},
	})
}
