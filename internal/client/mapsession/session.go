// Package mapsession holds the client's current map and the operations that
// mutate it: basemap changes, resets and the item association made by a save.
package mapsession

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/client/basemap"
	"github.com/atinyakov/GophMaps/internal/mapping"
)

// Session owns one map. All methods are safe for concurrent use, but the
// presentation layer is expected to issue one action at a time.
type Session struct {
	mu           sync.Mutex
	m            *mapping.Map
	catalog      basemap.Catalog
	registry     basemap.Registry
	resetBasemap mapping.Basemap

	events *observers
	log    *zap.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a session whose map starts on the start basemap. reset is the
// basemap used by Reset and must not need the network.
func New(ctx context.Context, catalog basemap.Catalog, registry basemap.Registry, start, reset basemap.Choice, opts ...Option) (*Session, error) {
	s := &Session{catalog: catalog, registry: registry, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.events = newObservers(s.log)

	if basemap.Remote(reset) {
		return nil, fmt.Errorf("reset basemap %q requires the network", reset)
	}
	rb, err := registry.Build(ctx, reset)
	if err != nil {
		return nil, fmt.Errorf("build reset basemap: %w", err)
	}
	s.resetBasemap = rb

	sb, err := registry.Build(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("build start basemap: %w", err)
	}
	s.m = mapping.New(sb)
	return s, nil
}

// Catalog returns the basemaps this session accepts.
func (s *Session) Catalog() basemap.Catalog {
	return s.catalog
}

// Subscribe registers fn for session events and returns a function that removes it.
func (s *Session) Subscribe(fn Observer) (unsubscribe func()) {
	return s.events.subscribe(fn)
}

// ChangeBasemap replaces the basemap of the current map with the one named.
// Layers, viewpoint and item association are kept. Unknown names fail with
// apperr.ErrUnknownBasemap; failures of remote basemaps match apperr.ErrNetwork.
// In both cases the map is left untouched.
func (s *Session) ChangeBasemap(ctx context.Context, name string) error {
	ch, err := s.catalog.Lookup(name)
	if err != nil {
		return err
	}
	b, err := s.registry.Build(ctx, ch)
	if err != nil {
		s.log.Warn("basemap change failed", zap.Stringer("basemap", ch), zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.m.Basemap = b
	snap := s.m.Clone()
	s.mu.Unlock()

	s.log.Debug("basemap changed", zap.Stringer("basemap", ch))
	s.events.publish(Event{Type: EventMapChanged, Map: snap})
	return nil
}

// Reset discards the current map and starts a new unsaved one on the reset basemap.
func (s *Session) Reset() {
	s.mu.Lock()
	s.m = mapping.New(s.resetBasemap)
	snap := s.m.Clone()
	s.mu.Unlock()

	s.log.Debug("map reset", zap.String("basemap", snap.Basemap.Name))
	s.events.publish(Event{Type: EventMapReplaced, Map: snap})
}

// Restore replaces the current map with m, e.g. one loaded from local state.
func (s *Session) Restore(m *mapping.Map) error {
	if m == nil || len(m.Basemap.Layers) == 0 {
		return errors.New("restore: map has no basemap")
	}
	s.mu.Lock()
	s.m = m.Clone()
	snap := s.m.Clone()
	s.mu.Unlock()

	s.events.publish(Event{Type: EventMapReplaced, Map: snap})
	return nil
}

// Map returns a copy of the current map.
func (s *Session) Map() *mapping.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Clone()
}

// Basemap returns a copy of the current basemap.
func (s *Session) Basemap() mapping.Basemap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Basemap.Clone()
}

// IsSaved reports whether the current map is associated with a portal item.
func (s *Session) IsSaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Item != nil
}

// Item returns the associated portal item, or nil when the map is unsaved.
func (s *Session) Item() *mapping.ItemRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m.Item == nil {
		return nil
	}
	it := *s.m.Item
	return &it
}

// PrepareCreate serializes the current map with vp as its initial viewpoint
// without changing the session.
func (s *Session) PrepareCreate(vp mapping.Viewpoint) ([]byte, error) {
	s.mu.Lock()
	c := s.m.Clone()
	s.mu.Unlock()

	c.InitialViewpoint = &vp
	return mapping.MarshalWebMap(c)
}

// CommitCreate records a successful create: the map takes vp as its initial
// viewpoint and becomes associated with item. It fails if the map is already saved.
func (s *Session) CommitCreate(item mapping.ItemRef, vp mapping.Viewpoint) error {
	if item.ID == "" {
		return errors.New("commit: empty item id")
	}
	s.mu.Lock()
	if s.m.Item != nil {
		s.mu.Unlock()
		return fmt.Errorf("commit: map already saved as item %s", s.m.Item.ID)
	}
	s.m.InitialViewpoint = &vp
	s.m.Item = &item
	snap := s.m.Clone()
	s.mu.Unlock()

	s.log.Info("map saved", zap.String("item", item.ID))
	s.events.publish(Event{Type: EventMapSaved, Map: snap})
	return nil
}

// Content returns the serialized current map and its item id for an update.
func (s *Session) Content() (data []byte, itemID string, err error) {
	s.mu.Lock()
	c := s.m.Clone()
	s.mu.Unlock()

	if c.Item == nil {
		return nil, "", errors.New("map is not saved")
	}
	data, err = mapping.MarshalWebMap(c)
	return data, c.Item.ID, err
}
