package mapping

import (
	"errors"
	"fmt"
	"math"
)

// WebMercator is the well-known id of the spatial reference the basemaps are published in.
const WebMercator = 102100

// SpatialReference identifies a coordinate system by its well-known id.
type SpatialReference struct {
	WKID int `json:"wkid"`
}

// Envelope is an axis-aligned bounding box.
type Envelope struct {
	XMin             float64          `json:"xmin"`
	YMin             float64          `json:"ymin"`
	XMax             float64          `json:"xmax"`
	YMax             float64          `json:"ymax"`
	SpatialReference SpatialReference `json:"spatialReference"`
}

// Viewpoint is the visible area of a map, used as a map's initial extent when it is saved.
type Viewpoint struct {
	TargetGeometry Envelope `json:"targetGeometry"`
	Scale          float64  `json:"scale,omitempty"`
	Rotation       float64  `json:"rotation,omitempty"`
}

// WorldViewpoint covers the whole web mercator world.
func WorldViewpoint() Viewpoint {
	return NewViewpoint(-20037508.34, -20037508.34, 20037508.34, 20037508.34)
}

// NewViewpoint returns a web mercator viewpoint over the given extent.
func NewViewpoint(xmin, ymin, xmax, ymax float64) Viewpoint {
	return Viewpoint{TargetGeometry: Envelope{
		XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax,
		SpatialReference: SpatialReference{WKID: WebMercator},
	}}
}

// Validate rejects empty, inverted or non-finite extents.
func (v Viewpoint) Validate() error {
	e := v.TargetGeometry
	for _, f := range []float64{e.XMin, e.YMin, e.XMax, e.YMax, v.Scale, v.Rotation} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("viewpoint has non-finite value %g", f)
		}
	}
	if e.XMin >= e.XMax || e.YMin >= e.YMax {
		return fmt.Errorf("invalid extent [%g %g %g %g]", e.XMin, e.YMin, e.XMax, e.YMax)
	}
	if e.SpatialReference.WKID == 0 {
		return errors.New("extent has no spatial reference")
	}
	return nil
}
