package syncengine

import (
	"context"
	"errors"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/domain/destination"
)

// collectionCache memoizes destination collection lookups by normalized title
// for the duration of one reconciler run, so a collection shared by many
// product groups costs one search (or one create) instead of one per group.
type collectionCache struct {
	entries map[string]*destination.Collection
}

func newCollectionCache() *collectionCache {
	return &collectionCache{entries: make(map[string]*destination.Collection)}
}

// ensure returns the destination collection for the source collection,
// finding or creating it on first use.
func (c *collectionCache) ensure(ctx context.Context, platform destination.Platform, src catalogsync.SourceCollection, call func(ctx context.Context, fn func(ctx context.Context) error) error) (*destination.Collection, bool, error) {
	key := catalogsync.NormalizeTitle(src.Title)
	if coll, ok := c.entries[key]; ok {
		return coll, false, nil
	}

	var found *destination.Collection
	err := call(ctx, func(ctx context.Context) error {
		coll, err := platform.FindCollectionByTitle(ctx, src.Title)
		if err != nil {
			return err
		}
		found = coll
		return nil
	})
	if err == nil {
		c.entries[key] = found
		return found, false, nil
	}
	if !errors.Is(err, destination.ErrCollectionNotFound) {
		return nil, false, err
	}

	var created *destination.Collection
	err = call(ctx, func(ctx context.Context) error {
		coll, err := platform.CreateCollection(ctx, destination.NewCollection{
			Title:       src.Title,
			Type:        src.Type,
			Rules:       src.Rules,
			Disjunctive: src.Disjunctive,
		})
		if err != nil {
			return err
		}
		created = coll
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	c.entries[key] = created
	return created, true, nil
}
