package basemap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/apperr"
	"github.com/atinyakov/GophMaps/internal/mapping"
)

// Remote sources used by the network-backed choices.
const (
	USGSNationalMapItemID = "809d37b42ca340a48def914df43e2c31"
	WorldGlobe1812URL     = "https://tiles.arcgis.com/tiles/IEuSomXfi6iB7a25/arcgis/rest/services/World_Globe_1812/MapServer"
)

const (
	servicesRoot   = "https://services.arcgisonline.com/ArcGIS/rest/services"
	vectorRoot     = "https://basemaps.arcgis.com/arcgis/rest/services"
	worldBasemapV2 = vectorRoot + "/World_Basemap_v2/VectorTileServer"
)

// Provider constructs basemaps. The static constructors never fail; the two
// remote ones perform a network round trip.
type Provider interface {
	Topographic() mapping.Basemap
	TopographicVector() mapping.Basemap
	Streets() mapping.Basemap
	StreetsVector() mapping.Basemap
	Imagery() mapping.Basemap
	Oceans() mapping.Basemap
	LightGrayCanvasVector() mapping.Basemap
	// FromItem builds a basemap from the web map stored in a portal item.
	FromItem(ctx context.Context, itemID string) (mapping.Basemap, error)
	// FromTiledService builds a single-layer basemap from a tiled map service.
	FromTiledService(ctx context.Context, serviceURL string) (mapping.Basemap, error)
}

// ItemSource reads the data of a portal item.
type ItemSource interface {
	ItemData(ctx context.Context, itemID string) ([]byte, error)
}

// Standard is the Provider backed by the public basemap services.
type Standard struct {
	items  ItemSource
	client *http.Client
	log    *zap.Logger
}

// NewStandard returns a provider that reads basemap items from items and probes
// tiled services with client. A nil client means http.DefaultClient.
func NewStandard(items ItemSource, client *http.Client, log *zap.Logger) *Standard {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Standard{items: items, client: client, log: log}
}

func tiled(name, service string) mapping.Basemap {
	return mapping.Basemap{Name: name, Layers: []mapping.Layer{{
		ID:    layerID(service),
		Type:  mapping.LayerTiled,
		Title: service,
		URL:   servicesRoot + "/" + service + "/MapServer",
	}}}
}

func vector(name, style string) mapping.Basemap {
	return mapping.Basemap{Name: name, Layers: []mapping.Layer{{
		ID:    layerID(style),
		Type:  mapping.LayerVectorTile,
		Title: style,
		URL:   worldBasemapV2 + "/resources/styles/" + style,
	}}}
}

func layerID(s string) string {
	return strings.ToLower(strings.NewReplacer("/", "-", " ", "-").Replace(s))
}

func (p *Standard) Topographic() mapping.Basemap {
	return tiled(Topographic.String(), "World_Topo_Map")
}

func (p *Standard) TopographicVector() mapping.Basemap {
	return vector(TopographicVector.String(), "World_Topographic")
}

func (p *Standard) Streets() mapping.Basemap {
	return tiled(Streets.String(), "World_Street_Map")
}

func (p *Standard) StreetsVector() mapping.Basemap {
	return vector(StreetsVector.String(), "World_Street_Map")
}

func (p *Standard) Imagery() mapping.Basemap {
	return tiled(Imagery.String(), "World_Imagery")
}

// Oceans stacks the ocean reference labels on top of the ocean base.
func (p *Standard) Oceans() mapping.Basemap {
	b := tiled(Oceans.String(), "Ocean/World_Ocean_Base")
	b.Layers = append(b.Layers, tiled("", "Ocean/World_Ocean_Reference").Layers...)
	return b
}

func (p *Standard) LightGrayCanvasVector() mapping.Basemap {
	return vector(LightGrayCanvasVector.String(), "World_Light_Gray_Base")
}

// FromItem reads the item's web map and keeps only its basemap.
func (p *Standard) FromItem(ctx context.Context, itemID string) (mapping.Basemap, error) {
	if p.items == nil {
		return mapping.Basemap{}, fmt.Errorf("%w: no portal configured for basemap item %s", apperr.ErrNetwork, itemID)
	}
	data, err := p.items.ItemData(ctx, itemID)
	if err != nil {
		return mapping.Basemap{}, fmt.Errorf("load basemap item %s: %w", itemID, err)
	}
	m, err := mapping.UnmarshalWebMap(data)
	if err != nil {
		return mapping.Basemap{}, fmt.Errorf("%w: basemap item %s: %w", apperr.ErrNetwork, itemID, err)
	}
	b := m.Basemap
	if b.Name == "" {
		b.Name = itemID
	}
	p.log.Debug("loaded basemap from item", zap.String("item", itemID), zap.Int("layers", len(b.Layers)))
	return b, nil
}

type serviceInfo struct {
	MapName      string          `json:"mapName"`
	TileInfo     json.RawMessage `json:"tileInfo"`
	DocumentInfo struct {
		Title string `json:"Title"`
	} `json:"documentInfo"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FromTiledService checks that serviceURL is a cached map service and wraps it as a basemap.
func (p *Standard) FromTiledService(ctx context.Context, serviceURL string) (mapping.Basemap, error) {
	u, err := url.Parse(serviceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return mapping.Basemap{}, fmt.Errorf("%w: invalid service url %q", apperr.ErrNetwork, serviceURL)
	}
	q := u.Query()
	q.Set("f", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return mapping.Basemap{}, fmt.Errorf("%w: %w", apperr.ErrNetwork, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return mapping.Basemap{}, apperr.CallErr{Req: req, Err: fmt.Errorf("probe tiled service: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mapping.Basemap{}, apperr.CallErr{Req: req, Resp: resp, Err: fmt.Errorf("probe tiled service: status %d", resp.StatusCode)}
	}
	var info serviceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return mapping.Basemap{}, apperr.CallErr{Req: req, Resp: resp, Err: fmt.Errorf("invalid service description: %w", err)}
	}
	if info.Error != nil {
		return mapping.Basemap{}, apperr.CallErr{Req: req, Resp: resp, Err: fmt.Errorf("service error %d: %s", info.Error.Code, info.Error.Message)}
	}
	if len(info.TileInfo) == 0 || string(info.TileInfo) == "null" {
		return mapping.Basemap{}, fmt.Errorf("%w: %s is not a tiled map service", apperr.ErrNetwork, serviceURL)
	}

	name := info.DocumentInfo.Title
	if name == "" {
		name = info.MapName
	}
	p.log.Debug("probed tiled service", zap.String("url", serviceURL), zap.String("name", name))
	return mapping.Basemap{Name: name, Layers: []mapping.Layer{{
		ID:    "tiled-" + layerID(name),
		Type:  mapping.LayerTiled,
		Title: name,
		URL:   serviceURL,
	}}}, nil
}
