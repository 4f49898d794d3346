package cdf

import (
	"context"
)

// PropertyTypeSpec describes the declared type of a mapped view property.
type PropertyTypeSpec struct {
	Type string `json:"type"`
	List bool   `json:"list,omitempty"`
	// Values holds the legal values of an enum property, keyed by identifier.
	Values map[string]EnumValue `json:"values,omitempty"`
}

// EnumValue is one declared enum member.
type EnumValue struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ViewProperty is one property declared by a view. Mapped (container-backed)
// properties carry Type and Nullable; connection properties carry
// ConnectionType instead and cannot be written through this pipeline.
type ViewProperty struct {
	Nullable       *bool             `json:"nullable,omitempty"`
	AutoIncrement  bool              `json:"autoIncrement,omitempty"`
	Type           *PropertyTypeSpec `json:"type,omitempty"`
	ConnectionType string            `json:"connectionType,omitempty"`
}

// IsMapped reports whether the property is a plain container-backed property
// that accepts a value on instance write.
func (p ViewProperty) IsMapped() bool {
	return p.ConnectionType == "" && p.Type != nil
}

// IsNullable defaults to true when the view does not declare nullability.
func (p ViewProperty) IsNullable() bool {
	if p.Nullable == nil {
		return true
	}
	return *p.Nullable
}

// ViewDefinition is a data-modeling view as returned by /models/views/byids.
type ViewDefinition struct {
	Space      string                  `json:"space"`
	ExternalId string                  `json:"externalId"`
	Version    string                  `json:"version"`
	Name       string                  `json:"name,omitempty"`
	Properties map[string]ViewProperty `json:"properties"`
}

// ID returns the view's identifier triple.
func (v ViewDefinition) ID() ViewId {
	return ViewId{Space: v.Space, ExternalId: v.ExternalId, Version: v.Version}
}

type viewItemsResponse struct {
	Items []ViewDefinition `json:"items"`
}

// RetrieveViews fetches view definitions by id. Missing views are simply
// absent from the result; callers decide whether that is fatal.
func (c *Client) RetrieveViews(ctx context.Context, ids []ViewId) ([]ViewDefinition, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	items := make([]map[string]any, len(ids))
	for i, id := range ids {
		items[i] = map[string]any{"space": id.Space, "externalId": id.ExternalId, "version": id.Version}
	}
	body := map[string]any{"items": items, "ignoreUnknownIds": true}

	var resp viewItemsResponse
	if err := c.postJSON(ctx, "/models/views/byids", body, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}
