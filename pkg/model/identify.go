package model

import (
	"github.com/paulmach/orb"

	"github.com/Bobfrat/gowms/pkg/wms"
)

// IdentifyHooks is the strategy for click-driven feature identification.
// Each slot is defaulted and independently replaceable, so custom
// behavior swaps one function instead of reimplementing the flow.
type IdentifyHooks struct {
	// Layers picks which layers a query asks about, given the active
	// sub-layer set.
	Layers func(active []string) []string
	// Params builds the GetFeatureInfo query from the overlay's current
	// GetMap state.
	Params func(base wms.Params, layers []string, ev Event) wms.Params
	// Parse turns a raw response, or a transport failure, into display
	// content.
	Parse func(body string, err error, url string) string
	// Show delivers the parsed content for the clicked location.
	Show func(m MapContext, at orb.Point, content string)

	ShowWaiting func(m MapContext)
	HideWaiting func(m MapContext)
}

func (s *Source) defaultHooks() IdentifyHooks {
	return IdentifyHooks{
		Layers: func(active []string) []string {
			if len(s.opts.IdentifyLayers) > 0 {
				return s.opts.IdentifyLayers
			}

			return active
		},
		Params: func(base wms.Params, layers []string, ev Event) wms.Params {
			return wms.FeatureInfoParams(base, layers, ev.Point.X, ev.Point.Y)
		},
		Parse: func(body string, err error, url string) string {
			if err != nil {
				// let the service render its own error page inline
				return "<iframe src='" + url + "' style='border:none'>"
			}

			return body
		},
		Show: func(m MapContext, at orb.Point, content string) {
			m.OpenPopup(content, at)
		},
		ShowWaiting: func(m MapContext) { m.SetWaiting(true) },
		HideWaiting: func(m MapContext) { m.SetWaiting(false) },
	}
}
