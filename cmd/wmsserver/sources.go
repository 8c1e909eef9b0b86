package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb/maptile"

	"github.com/Bobfrat/gowms/pkg/cache"
	"github.com/Bobfrat/gowms/pkg/mapper"
	"github.com/Bobfrat/gowms/pkg/model"
	"github.com/Bobfrat/gowms/pkg/wms"
)

// SourceDescription is one entry of the yaml config file.
type SourceDescription struct {
	Name        string   `yaml:"name"`
	Key         string   `yaml:"key"`
	Url         string   `yaml:"url"`
	Layers      []string `yaml:"layers"`
	Styles      string   `yaml:"styles"`
	Version     string   `yaml:"version"`
	Format      string   `yaml:"format"`
	Transparent bool     `yaml:"transparent"`
	Uppercase   bool     `yaml:"uppercase"`
	Cache       bool     `yaml:"cache"`
	MinZoom     int      `yaml:"minZoom"`
	MaxZoom     int      `yaml:"maxZoom"`
	Attribution string   `yaml:"attribution"`
}

// ProxySource republishes one WMS endpoint as a z/x/y tile service,
// optionally behind an mbtiles cache.
type ProxySource struct {
	logger  *slog.Logger
	desc    *SourceDescription
	params  wms.Params
	fetch   model.Fetcher
	cache   *cache.MBTiles
	minZoom int
	maxZoom int
}

func NewProxySource(d *SourceDescription, logger *slog.Logger, cacheDir string) (*ProxySource, error) {
	p := wms.DefaultParams()

	if d.Version != "" {
		p["version"] = d.Version
	}

	if d.Format != "" {
		p["format"] = d.Format
	}

	if d.Styles != "" {
		p["styles"] = d.Styles
	}

	p["layers"] = strings.Join(d.Layers, ",")
	p["transparent"] = strconv.FormatBool(d.Transparent)

	s := &ProxySource{
		logger:  logger,
		desc:    d,
		params:  p,
		fetch:   model.NewHTTPFetcher(),
		minZoom: d.MinZoom,
		maxZoom: d.MaxZoom,
	}

	if s.maxZoom == 0 {
		s.maxZoom = 19
	}

	if d.Cache {
		c, err := cache.Open(filepath.Join(cacheDir, d.Key+".mbtiles"), d.Name, formatExt(p["format"]))

		if err != nil {
			return nil, err
		}

		s.cache = c
	}

	return s, nil
}

func (s *ProxySource) GetKey() string {
	return s.desc.Key
}

func (s *ProxySource) GetName() string {
	return s.desc.Name
}

func (s *ProxySource) GetMinZoom() int {
	return s.minZoom
}

func (s *ProxySource) GetMaxZoom() int {
	return s.maxZoom
}

func (s *ProxySource) GetAttribution() string {
	return s.desc.Attribution
}

func (s *ProxySource) GetContentType() string {
	switch formatExt(s.params["format"]) {
	case "jpg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

func (s *ProxySource) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// GetTile serves one slippy tile, from the cache when possible, else by
// a GetMap request with the tile's mercator bbox.
func (s *ProxySource) GetTile(ctx context.Context, z, x, y int) ([]byte, error) {
	if z < s.minZoom || z > s.maxZoom {
		return nil, fmt.Errorf("invalid zoom")
	}

	if s.cache != nil {
		if data, err := s.cache.Get(z, x, y); err == nil && len(data) > 0 {
			return data, nil
		}
	}

	tile := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))

	p := s.params.Clone()
	p.MergeBounds(tile.Bound(), mapper.TileSize, mapper.TileSize, mapper.EPSG3857, p.Version())

	u := (&wms.Request{BaseURL: s.desc.Url, Params: p, Uppercase: s.desc.Uppercase}).URL()

	data, err := s.fetch.Get(ctx, u)

	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Put(z, x, y, data); err != nil {
			s.logger.Warn("cache write failed", "error", err)
		}
	}

	return data, nil
}

// IdentifyQuery carries the client's viewport state for GetFeatureInfo.
type IdentifyQuery struct {
	Bbox   string
	SRS    string
	Width  int
	Height int
	X      int
	Y      int
}

// Identify proxies a GetFeatureInfo request. A transport failure becomes
// an inline frame pointing at the same URL, never an error.
func (s *ProxySource) Identify(ctx context.Context, q IdentifyQuery) string {
	p := s.params.Clone()

	key := "srs"
	if p.Version() >= 1.3 {
		key = "crs"
	}

	srs := q.SRS
	if srs == "" {
		srs = mapper.EPSG3857.Code()
	}

	p[key] = srs
	p["bbox"] = q.Bbox
	p["width"] = strconv.Itoa(q.Width)
	p["height"] = strconv.Itoa(q.Height)

	fi := wms.FeatureInfoParams(p, s.desc.Layers, q.X, q.Y)
	u := (&wms.Request{BaseURL: s.desc.Url, Params: fi, Uppercase: s.desc.Uppercase}).URL()

	data, err := s.fetch.Get(ctx, u)

	if err != nil {
		s.logger.Warn("identify failed", "url", u, "error", err)
		return "<iframe src='" + u + "' style='border:none'>"
	}

	return string(data)
}

func formatExt(format string) string {
	switch format {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func NewSources() *Sources {
	return &Sources{
		data: sync.Map{},
	}
}

type Sources struct {
	data sync.Map
}

func (h *Sources) Clear() {
	h.All(func(s *ProxySource) bool {
		s.Close()
		h.data.Delete(s.GetKey())

		return true
	})
}

func (h *Sources) Get(key string) (*ProxySource, bool) {
	if v, ok := h.data.Load(key); ok {
		if s, ok1 := v.(*ProxySource); ok1 {
			return s, true
		}
	}

	return nil, false
}

func (h *Sources) Add(s *ProxySource) {
	if s == nil {
		return
	}

	h.data.Store(s.GetKey(), s)
}

func (h *Sources) All(f func(s *ProxySource) bool) {
	h.data.Range(func(_, value any) bool {
		if s, ok := value.(*ProxySource); ok {
			return f(s)
		}

		return true
	})
}
