// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resolve

import (
	"context"
	"sync"

	"github.com/juju/errors"

	"github.com/juju/charmkit/charm"
)

// Cache holds resolved charm models by reference. It is safe for
// concurrent use; the models it holds must not be modified.
type Cache struct {
	mu     sync.RWMutex
	charms map[string]*charm.Charm
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		charms: make(map[string]*charm.Charm),
	}
}

// Get returns the model cached for reference.
func (c *Cache) Get(reference string) (*charm.Charm, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.charms[reference]
	return ch, ok
}

// Put caches ch under reference. The cache takes ownership of ch, and
// closes any model it replaces.
func (c *Cache) Put(reference string, ch *charm.Charm) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.charms[reference]; ok && old != ch {
		if err := old.Close(); err != nil {
			logger.Warningf("closing replaced charm %q: %v", reference, err)
		}
	}
	c.charms[reference] = ch
}

// Close closes every cached model and empties the cache. The first
// error encountered is returned, after every model has been closed.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for reference, ch := range c.charms {
		if err := ch.Close(); err != nil && first == nil {
			first = errors.Annotatef(err, "closing charm %q", reference)
		}
		delete(c.charms, reference)
	}
	return first
}

// FindRelation returns the role and interface of the named relation of
// the charm at reference. If cache is not nil, a model cached for the
// reference is used, and a newly resolved model is added to it.
// Otherwise the model is resolved and discarded.
//
// The role and interface are both empty if the charm has no such
// relation. It is an error for the charm to declare no relations at all.
func (r *Resolver) FindRelation(ctx context.Context, reference, relation string, cache *Cache) (charm.RelationRole, string, error) {
	var ch *charm.Charm
	if cache != nil {
		ch, _ = cache.Get(reference)
	}
	if ch == nil {
		var err error
		if ch, err = r.Resolve(ctx, reference); err != nil {
			return "", "", errors.Trace(err)
		}
		if cache != nil {
			cache.Put(reference, ch)
		} else {
			defer func() {
				if err := ch.Close(); err != nil {
					logger.Warningf("closing charm %q: %v", reference, err)
				}
			}()
		}
	}
	role, iface, err := ch.Relation(relation)
	if err != nil {
		return "", "", errors.Trace(err)
	}
	return role, iface, nil
}
