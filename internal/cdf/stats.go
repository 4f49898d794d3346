package cdf

import (
	"context"
)

// InstanceUsage is the project-wide data-modeling instance usage and quota.
type InstanceUsage struct {
	Nodes          int64 `json:"nodes"`
	Edges          int64 `json:"edges"`
	InstancesLimit int64 `json:"instancesLimit"`
	SoftDeleted    int64 `json:"softDeletedNodes"`
}

// Total returns the number of live instances counted against the quota.
func (u InstanceUsage) Total() int64 {
	return u.Nodes + u.Edges
}

type statisticsResponse struct {
	Instances InstanceUsage `json:"instances"`
}

// RetrieveInstanceUsage fetches the project's current instance usage.
func (c *Client) RetrieveInstanceUsage(ctx context.Context) (InstanceUsage, error) {
	var resp statisticsResponse
	if err := c.getJSON(ctx, "/models/statistics", &resp); err != nil {
		return InstanceUsage{}, err
	}
	return resp.Instances, nil
}
