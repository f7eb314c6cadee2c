package main

import (
	"context"

	"github.com/chatforge/chatforge/internal/store"
	"github.com/chatforge/chatforge/pkg/schema"
)

// journalStore adapts the persistence layer to the engine's Journal port.
type journalStore struct {
	store store.Store
}

func (j *journalStore) Record(ctx context.Context, event *schema.RunEvent) error {
	return j.store.AppendEvent(ctx, event)
}
