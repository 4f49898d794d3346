package cdf

import (
	"context"
	"encoding/json"
)

// Capability is one ACL grant from token inspection. Actions are e.g.
// "READ"/"WRITE"; the scope is kept raw since its shape varies per ACL.
type Capability struct {
	ACL     string
	Actions []string
	Scope   json.RawMessage
}

// tokenInspectResponse mirrors /api/v1/token/inspect. Each capability entry
// is an object with a single <something>Acl key.
type tokenInspectResponse struct {
	Subject      string `json:"subject"`
	Capabilities []map[string]struct {
		Actions []string        `json:"actions"`
		Scope   json.RawMessage `json:"scope"`
	} `json:"capabilities"`
}

// InspectToken lists the capabilities granted to the current credentials.
func (c *Client) InspectToken(ctx context.Context) ([]Capability, error) {
	headers, err := c.authHeaders()
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Get(ctx, c.baseURL+"/api/v1/token/inspect", headers)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp, "/api/v1/token/inspect")
	}

	var decoded tokenInspectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	var capabilities []Capability
	for _, entry := range decoded.Capabilities {
		for acl, grant := range entry {
			capabilities = append(capabilities, Capability{
				ACL:     acl,
				Actions: grant.Actions,
				Scope:   grant.Scope,
			})
		}
	}
	return capabilities, nil
}

// HasCapability reports whether any grant covers the given ACL and action,
// regardless of scope. Scoped grants that turn out too narrow fail at
// request time instead.
func HasCapability(capabilities []Capability, acl, action string) bool {
	for _, c := range capabilities {
		if c.ACL == acl && hasAction(c.Actions, action) {
			return true
		}
	}
	return false
}

// capabilityScope models the two scope shapes the pre-flight check can
// reason about. Every other shape stays raw and counts as not covering.
type capabilityScope struct {
	All          *struct{} `json:"all"`
	DataSetScope *struct {
		Ids []json.Number `json:"ids"`
	} `json:"datasetScope"`
}

// HasCapabilityForDataSet reports whether a grant covers the ACL and action
// for one specific data set, either through an all scope or through a
// data-set scope listing its id.
func HasCapabilityForDataSet(capabilities []Capability, acl, action string, dataSetId int64) bool {
	for _, c := range capabilities {
		if c.ACL != acl || !hasAction(c.Actions, action) {
			continue
		}
		var scope capabilityScope
		if len(c.Scope) == 0 || json.Unmarshal(c.Scope, &scope) != nil {
			continue
		}
		if scope.All != nil {
			return true
		}
		if scope.DataSetScope == nil {
			continue
		}
		for _, id := range scope.DataSetScope.Ids {
			if n, err := id.Int64(); err == nil && n == dataSetId {
				return true
			}
		}
	}
	return false
}

func hasAction(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
