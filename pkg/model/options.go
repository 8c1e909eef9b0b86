package model

import (
	"log/slog"

	"github.com/Bobfrat/gowms/pkg/mapper"
	"github.com/Bobfrat/gowms/pkg/wms"
)

// Options configures a Source and its overlay. The zero value disables
// identify; use DefaultOptions for the usual interactive setup.
type Options struct {
	// Tiled selects the tiled rendering mode instead of one viewport image.
	Tiled bool
	// Identify enables click-driven GetFeatureInfo queries.
	Identify bool
	// IdentifyLayers, when set, overrides the active sub-layer set as the
	// layers queried on identify.
	IdentifyLayers []string
	// Uppercase forces upper-case parameter keys in request URLs.
	Uppercase bool
	// CRS overrides the map's reference system for requests.
	CRS mapper.CRS
	// Opacity of displayed images, 1 when left zero.
	Opacity float64
	// Attribution text the host adapter may display.
	Attribution string
	// OnError receives overlay image failures. Without it they are logged
	// and the previous image stays.
	OnError func(err error)
	// Params are extra initial WMS parameters merged over the defaults.
	Params wms.Params

	Fetcher Fetcher
	Logger  *slog.Logger
}

func DefaultOptions() *Options {
	return &Options{
		Identify: true,
		Opacity:  1,
	}
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		return DefaultOptions().withDefaults()
	}

	out := *o

	if out.Opacity == 0 {
		out.Opacity = 1
	}

	if out.Fetcher == nil {
		out.Fetcher = NewHTTPFetcher()
	}

	if out.Logger == nil {
		out.Logger = slog.Default()
	}

	return &out
}
