package mapsession

import (
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/mapping"
)

// EventType tells observers what happened to the session's map.
type EventType int

const (
	// EventMapChanged is raised when the current map is mutated in place (basemap change).
	EventMapChanged EventType = iota + 1
	// EventMapReplaced is raised when the map is swapped for a new one (reset, restore).
	EventMapReplaced
	// EventMapSaved is raised when the map becomes associated with a portal item.
	EventMapSaved
)

func (t EventType) String() string {
	switch t {
	case EventMapChanged:
		return "map_changed"
	case EventMapReplaced:
		return "map_replaced"
	case EventMapSaved:
		return "map_saved"
	}
	return "unknown"
}

// Event carries a copy of the map after the change.
type Event struct {
	Type EventType
	Map  *mapping.Map
}

// Observer receives session events.
type Observer func(Event)

type observers struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Observer
	order  []int
	log    *zap.Logger
}

func newObservers(log *zap.Logger) *observers {
	return &observers{subs: make(map[int]Observer), log: log}
}

func (o *observers) subscribe(fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.order = append(o.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			for i, x := range o.order {
				if x == id {
					o.order = append(o.order[:i], o.order[i+1:]...)
					break
				}
			}
		})
	}
}

// publish delivers ev to every observer in subscription order on the caller's goroutine.
func (o *observers) publish(ev Event) {
	o.mu.RLock()
	fns := make([]Observer, 0, len(o.order))
	for _, id := range o.order {
		fns = append(fns, o.subs[id])
	}
	o.mu.RUnlock()

	for _, fn := range fns {
		o.deliver(fn, ev)
	}
}

func (o *observers) deliver(fn Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("panic in map session observer", zap.Stringer("event", ev.Type), zap.Any("panic", r))
		}
	}()
	fn(ev)
}
