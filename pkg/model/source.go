package model

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/paulmach/orb"

	"github.com/Bobfrat/gowms/pkg/wms"
)

// Source owns the overlay for one WMS endpoint and the set of named
// sub-layers composited into it. Sub-layers come and go through Layer
// handles; the source keeps the overlay's layers parameter equal to the
// comma join of the active set and detaches the overlay entirely while
// the set is empty, so an unused source costs no requests.
type Source struct {
	mx sync.Mutex

	url     string
	opts    *Options
	logger  *slog.Logger
	fetch   Fetcher
	overlay Renderer
	hooks   IdentifyHooks

	mapCtx   MapContext
	offClick func()
	subs     []string
	seq      uint64
}

func NewSource(url string, opts *Options) *Source {
	opts = opts.withDefaults()

	s := &Source{
		url:    url,
		opts:   opts,
		logger: opts.Logger,
		fetch:  opts.Fetcher,
	}

	if opts.Tiled {
		s.overlay = NewTiledOverlay(url, opts)
	} else {
		s.overlay = NewOverlay(url, opts)
	}

	s.hooks = s.defaultHooks()

	return s
}

func (s *Source) URL() string {
	return s.url
}

func (s *Source) Overlay() Renderer {
	return s.overlay
}

// Hooks exposes the identify strategy slots for replacement.
func (s *Source) Hooks() *IdentifyHooks {
	return &s.hooks
}

// SubLayers returns the active sub-layer names in insertion order.
func (s *Source) SubLayers() []string {
	s.mx.Lock()
	defer s.mx.Unlock()

	return append([]string(nil), s.subs...)
}

func (s *Source) Attached() bool {
	s.mx.Lock()
	defer s.mx.Unlock()

	return s.mapCtx != nil
}

func (s *Source) AttachTo(m MapContext) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.mapCtx != nil {
		return
	}

	s.mapCtx = m

	if s.opts.Identify {
		s.offClick = m.On(EventClick, func(ev Event) { s.Identify(ev) })
	}

	s.refresh()
}

func (s *Source) Detach() {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.mapCtx == nil {
		return
	}

	if s.offClick != nil {
		s.offClick()
		s.offClick = nil
	}

	s.overlay.Detach()
	s.seq++
	s.mapCtx = nil
}

// AddSubLayer activates a named sub-layer. Re-adding an active name is a
// no-op and keeps its position.
func (s *Source) AddSubLayer(name string) {
	s.mx.Lock()
	defer s.mx.Unlock()

	for _, n := range s.subs {
		if n == name {
			return
		}
	}

	s.subs = append(s.subs, name)
	s.refresh()
}

func (s *Source) RemoveSubLayer(name string) {
	s.mx.Lock()
	defer s.mx.Unlock()

	for i, n := range s.subs {
		if n == name {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}

	s.refresh()
}

// refresh is called with s.mx held.
func (s *Source) refresh() {
	if s.mapCtx == nil {
		return
	}

	if len(s.subs) == 0 {
		s.overlay.Detach()
		return
	}

	s.overlay.SetParams(wms.Params{"layers": strings.Join(s.subs, ",")})
	s.overlay.AttachTo(s.mapCtx)
}

// Identify runs a GetFeatureInfo query for a map click and shows the
// result. Every stage goes through a hook slot; see IdentifyHooks. Only
// the newest in-flight query's response is shown.
func (s *Source) Identify(ev Event) {
	s.mx.Lock()

	m := s.mapCtx
	if m == nil {
		s.mx.Unlock()
		return
	}

	layers := s.hooks.Layers(append([]string(nil), s.subs...))
	if len(layers) == 0 {
		s.mx.Unlock()
		return
	}

	params := s.hooks.Params(s.overlay.Params(), layers, ev)
	u := (&wms.Request{BaseURL: s.url, Params: params, Uppercase: s.opts.Uppercase}).URL()

	s.seq++
	seq := s.seq
	s.mx.Unlock()

	s.hooks.ShowWaiting(m)

	go s.finishIdentify(seq, m, u, ev.LatLng)
}

func (s *Source) finishIdentify(seq uint64, m MapContext, url string, at orb.Point) {
	data, err := s.fetch.Get(context.Background(), url)

	// waiting is cleared no matter how the query went
	s.hooks.HideWaiting(m)

	s.mx.Lock()
	stale := seq != s.seq || s.mapCtx == nil
	s.mx.Unlock()

	if stale {
		return
	}

	s.hooks.Show(m, at, s.hooks.Parse(string(data), err, url))
}
