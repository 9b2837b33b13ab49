package basemap

import (
	"context"
	"fmt"

	"github.com/atinyakov/GophMaps/internal/apperr"
	"github.com/atinyakov/GophMaps/internal/mapping"
)

// Constructor builds the basemap for one choice.
type Constructor func(ctx context.Context) (mapping.Basemap, error)

func static(f func() mapping.Basemap) Constructor {
	return func(context.Context) (mapping.Basemap, error) {
		return f(), nil
	}
}

// Registry maps every Choice to its constructor. It is built once and never changes.
type Registry struct {
	ctors map[Choice]Constructor
}

// NewRegistry binds every choice to the matching provider call.
func NewRegistry(p Provider) Registry {
	return Registry{ctors: map[Choice]Constructor{
		Topographic:           static(p.Topographic),
		TopographicVector:     static(p.TopographicVector),
		Streets:               static(p.Streets),
		StreetsVector:         static(p.StreetsVector),
		Imagery:               static(p.Imagery),
		Oceans:                static(p.Oceans),
		LightGrayCanvasVector: static(p.LightGrayCanvasVector),
		USGSNationalMap: func(ctx context.Context) (mapping.Basemap, error) {
			return p.FromItem(ctx, USGSNationalMapItemID)
		},
		WorldGlobe1812: func(ctx context.Context) (mapping.Basemap, error) {
			return p.FromTiledService(ctx, WorldGlobe1812URL)
		},
	}}
}

// Build runs the constructor for ch. Failures of remote constructors match apperr.ErrNetwork.
func (r Registry) Build(ctx context.Context, ch Choice) (mapping.Basemap, error) {
	ctor, ok := r.ctors[ch]
	if !ok {
		return mapping.Basemap{}, fmt.Errorf("%w: %s", apperr.ErrUnknownBasemap, ch)
	}
	b, err := ctor(ctx)
	if err != nil {
		return mapping.Basemap{}, fmt.Errorf("build basemap %q: %w", ch, err)
	}
	if b.Name == "" {
		b.Name = ch.String()
	}
	return b, nil
}

// Remote reports whether building ch needs a network round trip.
func Remote(ch Choice) bool {
	return ch == USGSNationalMap || ch == WorldGlobe1812
}
