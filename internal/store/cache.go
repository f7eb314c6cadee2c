package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/chatforge/chatforge/internal/flow"
	"github.com/chatforge/chatforge/pkg/schema"
)

const activeFlowsKey = "\x00active"

// FlowCache serves normalized flow documents from a short-lived cache in
// front of the Store. The engine parses a flow on every run attempt; the
// cache keeps hot flows out of the database without holding stale
// definitions longer than the TTL.
type FlowCache struct {
	store Store
	cache *gocache.Cache
}

// NewFlowCache creates a FlowCache with the given TTL.
func NewFlowCache(s Store, ttl time.Duration) *FlowCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &FlowCache{
		store: s,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Flow loads one normalized flow document by ID.
func (c *FlowCache) Flow(ctx context.Context, flowID string) (*schema.FlowDocument, error) {
	if v, ok := c.cache.Get(flowID); ok {
		return v.(*schema.FlowDocument), nil
	}

	f, err := c.store.GetFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	doc, err := flow.Normalize(f.Document)
	if err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = f.ID
	}
	if doc.Name == "" {
		doc.Name = f.Name
	}

	c.cache.SetDefault(flowID, doc)
	return doc, nil
}

// ActiveFlows returns the normalized documents of all active flows, for
// keyword trigger matching.
func (c *FlowCache) ActiveFlows(ctx context.Context) ([]*schema.FlowDocument, error) {
	if v, ok := c.cache.Get(activeFlowsKey); ok {
		return v.([]*schema.FlowDocument), nil
	}

	flows, err := c.store.ListFlows(ctx, FlowFilter{Status: FlowStatusActive})
	if err != nil {
		return nil, err
	}

	docs := make([]*schema.FlowDocument, 0, len(flows))
	for _, f := range flows {
		doc, err := flow.Normalize(f.Document)
		if err != nil {
			// One broken document must not take keyword triggering down
			// for every other flow.
			continue
		}
		if doc.ID == "" {
			doc.ID = f.ID
		}
		docs = append(docs, doc)
	}

	c.cache.SetDefault(activeFlowsKey, docs)
	return docs, nil
}

// Invalidate drops a flow (and the active list) from the cache, called
// after a flow is created, updated, or deleted.
func (c *FlowCache) Invalidate(flowID string) {
	c.cache.Delete(flowID)
	c.cache.Delete(activeFlowsKey)
}
