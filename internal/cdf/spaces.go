package cdf

import (
	"context"
)

// SpaceExists reports whether the instance space exists in the project, with
// a TTL cache in front of the API call. Misses are not cached, so a space
// created between runs is picked up immediately.
func (c *Client) SpaceExists(ctx context.Context, space string) (bool, error) {
	cacheKey := "space:" + space
	if _, ok := c.lookupCache.Get(cacheKey); ok {
		return true, nil
	}

	body := map[string]any{"items": []map[string]any{{"space": space}}}
	var resp struct {
		Items []struct {
			Space string `json:"space"`
		} `json:"items"`
	}
	if err := c.postJSON(ctx, "/models/spaces/byids", body, &resp); err != nil {
		return false, err
	}
	if len(resp.Items) == 0 {
		return false, nil
	}
	c.lookupCache.SetDefault(cacheKey, true)
	return true, nil
}
