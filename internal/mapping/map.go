// Package mapping holds the map model shared by the client and the portal:
// basemaps, layers, viewpoints and their web map JSON form.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Layer types understood by the client.
const (
	LayerTiled      = "ArcGISTiledMapServiceLayer"
	LayerVectorTile = "VectorTileLayer"
)

// webMapVersion is written into every serialized map.
const webMapVersion = "2.31"

// Layer is one layer of a basemap or of the map's operational content.
type Layer struct {
	ID     string `json:"id"`
	Type   string `json:"layerType"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
	ItemID string `json:"itemId,omitempty"`
}

// Basemap is the background of a map: a named stack of layers.
type Basemap struct {
	Name   string  `json:"title"`
	Layers []Layer `json:"baseMapLayers"`
}

// Clone returns a deep copy of b.
func (b Basemap) Clone() Basemap {
	b.Layers = append([]Layer(nil), b.Layers...)
	return b
}

// ItemRef associates a map with a portal item.
type ItemRef struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Map is the client-side map state. A map with a non-nil Item has been saved to a portal.
type Map struct {
	Basemap          Basemap
	Layers           []Layer
	InitialViewpoint *Viewpoint
	Item             *ItemRef
}

// New returns an unsaved map over the given basemap.
func New(b Basemap) *Map {
	return &Map{Basemap: b.Clone()}
}

// Clone returns a deep copy of m.
func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	c := &Map{
		Basemap: m.Basemap.Clone(),
		Layers:  append([]Layer(nil), m.Layers...),
	}
	if m.InitialViewpoint != nil {
		vp := *m.InitialViewpoint
		c.InitialViewpoint = &vp
	}
	if m.Item != nil {
		it := *m.Item
		c.Item = &it
	}
	return c
}

type webMap struct {
	OperationalLayers []Layer          `json:"operationalLayers"`
	BaseMap           Basemap          `json:"baseMap"`
	SpatialReference  SpatialReference `json:"spatialReference"`
	InitialState      *initialState    `json:"initialState,omitempty"`
	Version           string           `json:"version"`
}

type initialState struct {
	Viewpoint Viewpoint `json:"viewpoint"`
}

// MarshalWebMap serializes the portable part of m: layers, basemap and initial viewpoint.
// The item association is not part of the document.
func MarshalWebMap(m *Map) ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil map")
	}
	doc := webMap{
		OperationalLayers: m.Layers,
		BaseMap:           m.Basemap,
		SpatialReference:  SpatialReference{WKID: WebMercator},
		Version:           webMapVersion,
	}
	if doc.OperationalLayers == nil {
		doc.OperationalLayers = []Layer{}
	}
	if m.InitialViewpoint != nil {
		doc.InitialState = &initialState{Viewpoint: *m.InitialViewpoint}
	}
	return json.Marshal(doc)
}

// UnmarshalWebMap parses a web map document. The result has no item association.
func UnmarshalWebMap(data []byte) (*Map, error) {
	var doc webMap
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode web map: %w", err)
	}
	if len(doc.BaseMap.Layers) == 0 {
		return nil, errors.New("web map has no basemap layers")
	}
	m := &Map{Basemap: doc.BaseMap, Layers: doc.OperationalLayers}
	if len(m.Layers) == 0 {
		m.Layers = nil
	}
	if doc.InitialState != nil {
		vp := doc.InitialState.Viewpoint
		m.InitialViewpoint = &vp
	}
	return m, nil
}
