package model

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"github.com/Bobfrat/gowms/pkg/mapper"
	"github.com/Bobfrat/gowms/pkg/wms"
)

// Renderer is what a Source drives: the single-image overlay or the
// tiled variant.
type Renderer interface {
	SetParams(p wms.Params)
	Params() wms.Params
	AttachTo(m MapContext)
	Detach()
	Attached() bool
	Update()
}

var _ Renderer = &Overlay{}

// Overlay renders one GetMap image covering the whole viewport and swaps
// it wholesale when the viewport or the parameters change. The previous
// image stays visible until its replacement has loaded.
type Overlay struct {
	mx sync.Mutex

	url    string
	params wms.Params
	opts   *Options
	logger *slog.Logger
	fetch  Fetcher

	mapCtx    MapContext
	offMove   func()
	lastURL   string
	seq       uint64
	displayed ImageHandle
}

func NewOverlay(url string, opts *Options) *Overlay {
	opts = opts.withDefaults()

	p := wms.DefaultParams()
	p.Merge(opts.Params)

	return &Overlay{
		url:    url,
		params: p,
		opts:   opts,
		logger: opts.Logger,
		fetch:  opts.Fetcher,
	}
}

func (o *Overlay) URL() string {
	return o.url
}

func (o *Overlay) Params() wms.Params {
	o.mx.Lock()
	defer o.mx.Unlock()

	return o.params.Clone()
}

// SetParams merges partial into the request parameters and refreshes the
// displayed image.
func (o *Overlay) SetParams(p wms.Params) {
	o.mx.Lock()
	o.params.Merge(p)
	o.mx.Unlock()

	o.Update()
}

func (o *Overlay) Attached() bool {
	o.mx.Lock()
	defer o.mx.Unlock()

	return o.mapCtx != nil
}

// AttachTo connects the overlay to a map and issues the first request.
// Further updates follow the map's moveend events.
func (o *Overlay) AttachTo(m MapContext) {
	o.mx.Lock()

	if o.mapCtx != nil {
		o.mx.Unlock()
		return
	}

	o.mapCtx = m
	o.offMove = m.On(EventMoveEnd, func(Event) { o.Update() })
	o.mx.Unlock()

	o.Update()
}

func (o *Overlay) Detach() {
	o.mx.Lock()
	defer o.mx.Unlock()

	if o.mapCtx == nil {
		return
	}

	o.offMove()
	o.offMove = nil

	if o.displayed != nil {
		o.displayed.Remove()
		o.displayed = nil
	}

	// a later re-attach with an unchanged viewport must fetch again
	o.lastURL = ""
	o.seq++
	o.mapCtx = nil
}

// ImageURL returns the GetMap URL for the current viewport without
// issuing a request. Empty when detached.
func (o *Overlay) ImageURL() string {
	o.mx.Lock()
	defer o.mx.Unlock()

	if o.mapCtx == nil {
		return ""
	}

	b := o.mapCtx.Bounds()
	w, h := o.mapCtx.Size()

	p := o.params.Clone()
	p.MergeBounds(b, w, h, o.crs(), o.params.Version())

	return (&wms.Request{BaseURL: o.url, Params: p, Uppercase: o.opts.Uppercase}).URL()
}

// Update recomputes the request URL from the viewport and starts loading
// a new image when it differs from the last one issued. Completions of
// superseded requests are discarded, so the newest requested image wins
// regardless of arrival order.
func (o *Overlay) Update() {
	o.mx.Lock()

	if o.mapCtx == nil {
		o.mx.Unlock()
		return
	}

	b := o.mapCtx.Bounds()
	w, h := o.mapCtx.Size()

	o.params.MergeBounds(b, w, h, o.crs(), o.params.Version())

	u := (&wms.Request{BaseURL: o.url, Params: o.params, Uppercase: o.opts.Uppercase}).URL()

	if u == o.lastURL {
		o.mx.Unlock()
		return
	}

	o.lastURL = u
	o.seq++
	seq := o.seq
	o.mx.Unlock()

	go o.load(seq, u, b)
}

// crs is called with o.mx held.
func (o *Overlay) crs() mapper.CRS {
	if o.opts.CRS != nil {
		return o.opts.CRS
	}

	return o.mapCtx.CRS()
}

func (o *Overlay) load(seq uint64, url string, bound orb.Bound) {
	data, err := o.fetch.Get(context.Background(), url)

	if err == nil {
		if _, _, derr := image.Decode(bytes.NewReader(data)); derr != nil {
			err = &LoadError{URL: url, Err: derr}
		}
	}

	o.finish(seq, url, bound, err)
}

// finish applies a completed load. Only the newest issued request may
// touch the displayed image.
func (o *Overlay) finish(seq uint64, url string, bound orb.Bound, err error) {
	o.mx.Lock()

	if seq != o.seq || o.mapCtx == nil {
		o.mx.Unlock()
		return
	}

	if err != nil {
		o.mx.Unlock()
		o.fail(url, err)
		return
	}

	old := o.displayed
	o.displayed = o.mapCtx.AddImage(url, bound, o.opts.Opacity)
	o.mx.Unlock()

	if old != nil {
		old.Remove()
	}
}

func (o *Overlay) fail(url string, err error) {
	if o.opts.OnError != nil {
		o.opts.OnError(err)
		return
	}

	o.logger.Error("image load failed", "url", url, "error", err)
}
