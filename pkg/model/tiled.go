package model

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/Bobfrat/gowms/pkg/mapper"
	"github.com/Bobfrat/gowms/pkg/wms"
)

var _ Renderer = &TiledOverlay{}

// tileSlot tracks one tile position. url is the newest request issued
// for it, handle the image currently on the map; they differ while a
// replacement is loading.
type tileSlot struct {
	url    string
	handle ImageHandle
}

// TiledOverlay renders the viewport as fixed-size GetMap tiles instead
// of one large image. Tiles scrolled out of view are dropped on update,
// visible ones stay until their replacement has loaded.
type TiledOverlay struct {
	mx sync.Mutex

	url    string
	params wms.Params
	opts   *Options
	logger *slog.Logger
	fetch  Fetcher

	mapCtx  MapContext
	offMove func()
	shown   map[string]*tileSlot
}

func NewTiledOverlay(url string, opts *Options) *TiledOverlay {
	opts = opts.withDefaults()

	p := wms.DefaultParams()
	p.Merge(opts.Params)

	return &TiledOverlay{
		url:    url,
		params: p,
		opts:   opts,
		logger: opts.Logger,
		fetch:  opts.Fetcher,
		shown:  make(map[string]*tileSlot),
	}
}

func (t *TiledOverlay) URL() string {
	return t.url
}

func (t *TiledOverlay) Params() wms.Params {
	t.mx.Lock()
	defer t.mx.Unlock()

	return t.params.Clone()
}

func (t *TiledOverlay) SetParams(p wms.Params) {
	t.mx.Lock()
	t.params.Merge(p)
	t.mx.Unlock()

	t.Update()
}

func (t *TiledOverlay) Attached() bool {
	t.mx.Lock()
	defer t.mx.Unlock()

	return t.mapCtx != nil
}

func (t *TiledOverlay) AttachTo(m MapContext) {
	t.mx.Lock()

	if t.mapCtx != nil {
		t.mx.Unlock()
		return
	}

	t.mapCtx = m
	t.offMove = m.On(EventMoveEnd, func(Event) { t.Update() })
	t.mx.Unlock()

	t.Update()
}

func (t *TiledOverlay) Detach() {
	t.mx.Lock()
	defer t.mx.Unlock()

	if t.mapCtx == nil {
		return
	}

	t.offMove()
	t.offMove = nil

	for key, slot := range t.shown {
		if slot.handle != nil {
			slot.handle.Remove()
		}

		delete(t.shown, key)
	}

	t.mapCtx = nil
}

// Update recomputes the tiles covering the viewport and fetches the
// ones whose request URL changed. The slot records the newest URL
// issued per tile, so an unchanged viewport re-dispatches nothing, not
// even tiles still loading, and a completion is applied only while its
// URL is still the newest one for its slot.
func (t *TiledOverlay) Update() {
	t.mx.Lock()

	if t.mapCtx == nil {
		t.mx.Unlock()
		return
	}

	b := t.mapCtx.Bounds()
	zoom := maptile.Zoom(t.mapCtx.Zoom())
	crs := t.crs()
	version := t.params.Version()

	type job struct {
		key   string
		url   string
		bound orb.Bound
	}

	wanted := make(map[string]bool)

	var jobs []job

	for _, tile := range mapper.Covering(b, zoom) {
		key := fmt.Sprintf("%d/%d/%d", tile.Z, tile.X, tile.Y)
		wanted[key] = true

		p := t.params.Clone()
		p.MergeBounds(tile.Bound(), mapper.TileSize, mapper.TileSize, crs, version)

		u := (&wms.Request{BaseURL: t.url, Params: p, Uppercase: t.opts.Uppercase}).URL()

		slot, ok := t.shown[key]

		if ok && slot.url == u {
			continue
		}

		if ok {
			slot.url = u
		} else {
			t.shown[key] = &tileSlot{url: u}
		}

		jobs = append(jobs, job{key: key, url: u, bound: tile.Bound()})
	}

	for key, slot := range t.shown {
		if !wanted[key] {
			if slot.handle != nil {
				slot.handle.Remove()
			}

			delete(t.shown, key)
		}
	}

	t.mx.Unlock()

	for _, j := range jobs {
		go t.load(j.key, j.url, j.bound)
	}
}

// crs is called with t.mx held.
func (t *TiledOverlay) crs() mapper.CRS {
	if t.opts.CRS != nil {
		return t.opts.CRS
	}

	return t.mapCtx.CRS()
}

func (t *TiledOverlay) load(key, url string, bound orb.Bound) {
	data, err := t.fetch.Get(context.Background(), url)

	if err == nil {
		if _, _, derr := image.Decode(bytes.NewReader(data)); derr != nil {
			err = &LoadError{URL: url, Err: derr}
		}
	}

	t.finish(key, url, bound, err)
}

// finish applies a completed tile load. Discarded when the tile left
// the viewport, a newer request superseded it, or the overlay detached.
func (t *TiledOverlay) finish(key, url string, bound orb.Bound, err error) {
	t.mx.Lock()

	slot, ok := t.shown[key]

	if !ok || slot.url != url || t.mapCtx == nil {
		t.mx.Unlock()
		return
	}

	if err != nil {
		t.mx.Unlock()
		t.fail(url, err)
		return
	}

	old := slot.handle
	slot.handle = t.mapCtx.AddImage(url, bound, t.opts.Opacity)
	t.mx.Unlock()

	if old != nil {
		old.Remove()
	}
}

func (t *TiledOverlay) fail(url string, err error) {
	if t.opts.OnError != nil {
		t.opts.OnError(err)
		return
	}

	t.logger.Error("tile load failed", "url", url, "error", err)
}
