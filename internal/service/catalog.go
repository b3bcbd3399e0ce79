package service

import "context"

// StaticCatalog is a service catalog backed by a fixed id set. The real
// catalog lives in an external system; this adapter covers deployments
// where the set is configured rather than fetched.
type StaticCatalog struct {
	ids map[string]struct{}
}

func NewStaticCatalog(ids []string) *StaticCatalog {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &StaticCatalog{ids: set}
}

func (c *StaticCatalog) Known(ctx context.Context, serviceID string) bool {
	// An empty catalog accepts everything, matching open deployments.
	if len(c.ids) == 0 {
		return true
	}
	_, ok := c.ids[serviceID]
	return ok
}
