// Package basemap provides the closed set of basemap choices, the ordered
// catalogs shown to the user, and the provider that turns a choice into a
// mapping.Basemap.
package basemap

import (
	"fmt"
	"strings"

	"github.com/atinyakov/GophMaps/internal/apperr"
)

// Choice identifies one basemap style. The set is closed.
type Choice int

const (
	Topographic Choice = iota + 1
	TopographicVector
	Streets
	StreetsVector
	Imagery
	Oceans
	USGSNationalMap
	WorldGlobe1812
	LightGrayCanvasVector
)

var choiceNames = map[Choice]string{
	Topographic:           "Topographic",
	TopographicVector:     "Topographic Vector",
	Streets:               "Streets",
	StreetsVector:         "Streets Vector",
	Imagery:               "Imagery",
	Oceans:                "Oceans",
	USGSNationalMap:       "USGS National Map",
	WorldGlobe1812:        "World Globe 1812",
	LightGrayCanvasVector: "Light Gray Canvas Vector",
}

// AllChoices lists every choice in declaration order.
func AllChoices() []Choice {
	return []Choice{
		Topographic, TopographicVector, Streets, StreetsVector, Imagery,
		Oceans, USGSNationalMap, WorldGlobe1812, LightGrayCanvasVector,
	}
}

// String returns the display name.
func (c Choice) String() string {
	if n, ok := choiceNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Choice(%d)", int(c))
}

// Valid reports whether c is one of the declared choices.
func (c Choice) Valid() bool {
	_, ok := choiceNames[c]
	return ok
}

// Catalog is an ordered, read-only list of choices offered to the user.
type Catalog struct {
	choices []Choice
}

// NewCatalog builds a catalog. Invalid or repeated choices are rejected.
func NewCatalog(choices ...Choice) (Catalog, error) {
	seen := make(map[Choice]bool, len(choices))
	for _, c := range choices {
		if !c.Valid() {
			return Catalog{}, fmt.Errorf("invalid basemap choice %d", int(c))
		}
		if seen[c] {
			return Catalog{}, fmt.Errorf("basemap %q listed twice", c)
		}
		seen[c] = true
	}
	return Catalog{choices: append([]Choice(nil), choices...)}, nil
}

func mustCatalog(choices ...Choice) Catalog {
	c, err := NewCatalog(choices...)
	if err != nil {
		panic(err)
	}
	return c
}

// Classic is the six-style catalog of the portal tutorial.
func Classic() Catalog {
	return mustCatalog(Topographic, TopographicVector, Streets, StreetsVector, Imagery, Oceans)
}

// Extended adds the two network-backed styles to Classic.
func Extended() Catalog {
	return mustCatalog(Topographic, TopographicVector, Streets, StreetsVector, Imagery, Oceans, USGSNationalMap, WorldGlobe1812)
}

// Choices returns a copy of the catalog entries.
func (c Catalog) Choices() []Choice {
	return append([]Choice(nil), c.choices...)
}

// Names returns the display names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c.choices))
	for i, ch := range c.choices {
		names[i] = ch.String()
	}
	return names
}

// Len returns the number of entries.
func (c Catalog) Len() int {
	return len(c.choices)
}

// Contains reports whether ch is offered by the catalog.
func (c Catalog) Contains(ch Choice) bool {
	for _, x := range c.choices {
		if x == ch {
			return true
		}
	}
	return false
}

// Lookup converts a raw display name into a choice. Matching ignores case and
// surrounding whitespace. Names outside this catalog fail with apperr.ErrUnknownBasemap.
func (c Catalog) Lookup(name string) (Choice, error) {
	want := strings.TrimSpace(name)
	for _, ch := range c.choices {
		if strings.EqualFold(ch.String(), want) {
			return ch, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperr.ErrUnknownBasemap, name)
}
