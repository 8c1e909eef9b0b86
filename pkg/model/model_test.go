package model

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/Bobfrat/gowms/pkg/mapper"
)

const testURL = "http://example.com/wms"

type fakeImage struct {
	url     string
	bound   orb.Bound
	opacity float64
	m       *fakeMap
}

func (i *fakeImage) Remove() {
	i.m.mx.Lock()
	defer i.m.mx.Unlock()

	for n, img := range i.m.images {
		if img == i {
			i.m.images = append(i.m.images[:n], i.m.images[n+1:]...)
			return
		}
	}
}

type popup struct {
	at      orb.Point
	content string
}

type fakeMap struct {
	mx sync.Mutex

	bounds orb.Bound
	width  int
	height int
	zoom   int

	images   []*fakeImage
	popups   []popup
	waiting  []bool
	handlers map[string][]func(Event)
}

func newFakeMap() *fakeMap {
	return &fakeMap{
		bounds:   orb.Bound{Min: orb.Point{-10, -5}, Max: orb.Point{20, 15}},
		width:    800,
		height:   600,
		zoom:     3,
		handlers: make(map[string][]func(Event)),
	}
}

func (m *fakeMap) Bounds() orb.Bound {
	m.mx.Lock()
	defer m.mx.Unlock()

	return m.bounds
}

func (m *fakeMap) Size() (int, int) {
	m.mx.Lock()
	defer m.mx.Unlock()

	return m.width, m.height
}

func (m *fakeMap) Zoom() int {
	m.mx.Lock()
	defer m.mx.Unlock()

	return m.zoom
}

func (m *fakeMap) CRS() mapper.CRS {
	return mapper.EPSG4326
}

func (m *fakeMap) AddImage(url string, bound orb.Bound, opacity float64) ImageHandle {
	m.mx.Lock()
	defer m.mx.Unlock()

	img := &fakeImage{url: url, bound: bound, opacity: opacity, m: m}
	m.images = append(m.images, img)

	return img
}

func (m *fakeMap) OpenPopup(content string, at orb.Point) {
	m.mx.Lock()
	defer m.mx.Unlock()

	m.popups = append(m.popups, popup{at: at, content: content})
}

func (m *fakeMap) SetWaiting(waiting bool) {
	m.mx.Lock()
	defer m.mx.Unlock()

	m.waiting = append(m.waiting, waiting)
}

func (m *fakeMap) On(event string, fn func(Event)) func() {
	m.mx.Lock()
	defer m.mx.Unlock()

	m.handlers[event] = append(m.handlers[event], fn)
	idx := len(m.handlers[event]) - 1

	return func() {
		m.mx.Lock()
		defer m.mx.Unlock()

		m.handlers[event][idx] = nil
	}
}

func (m *fakeMap) fire(ev Event) {
	m.mx.Lock()
	hs := append([]func(Event){}, m.handlers[ev.Type]...)
	m.mx.Unlock()

	for _, h := range hs {
		if h != nil {
			h(ev)
		}
	}
}

func (m *fakeMap) setBounds(b orb.Bound) {
	m.mx.Lock()
	defer m.mx.Unlock()

	m.bounds = b
}

func (m *fakeMap) imageURLs() []string {
	m.mx.Lock()
	defer m.mx.Unlock()

	urls := make([]string, 0, len(m.images))
	for _, img := range m.images {
		urls = append(urls, img.url)
	}

	return urls
}

func (m *fakeMap) popupContents() []string {
	m.mx.Lock()
	defer m.mx.Unlock()

	out := make([]string, 0, len(m.popups))
	for _, p := range m.popups {
		out = append(out, p.content)
	}

	return out
}

func (m *fakeMap) waitingLog() []bool {
	m.mx.Lock()
	defer m.mx.Unlock()

	return append([]bool(nil), m.waiting...)
}

type fetchResult struct {
	data []byte
	err  error
}

type fakeFetcher struct {
	mx        sync.Mutex
	def       fetchResult
	responses map[string]fetchResult
	requests  []string
}

func (f *fakeFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	f.mx.Lock()
	f.requests = append(f.requests, url)
	r, ok := f.responses[url]
	f.mx.Unlock()

	if !ok {
		r = f.def
	}

	return r.data, r.err
}

func (f *fakeFetcher) count() int {
	f.mx.Lock()
	defer f.mx.Unlock()

	return len(f.requests)
}

func (f *fakeFetcher) last() string {
	f.mx.Lock()
	defer f.mx.Unlock()

	if len(f.requests) == 0 {
		return ""
	}

	return f.requests[len(f.requests)-1]
}

// find returns the first request whose URL contains substr.
func (f *fakeFetcher) find(substr string) string {
	f.mx.Lock()
	defer f.mx.Unlock()

	for _, u := range f.requests {
		if strings.Contains(u, substr) {
			return u
		}
	}

	return ""
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

// newImageFetcher answers every request with a valid one-pixel image.
func newImageFetcher(t *testing.T) *fakeFetcher {
	t.Helper()

	return &fakeFetcher{def: fetchResult{data: pngBytes(t)}}
}

func bound(minLon, minLat, maxLon, maxLat float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
}

func timeout() <-chan time.Time {
	return time.After(time.Second * 2)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second * 2)

	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(time.Millisecond * 5)
	}

	t.Fatalf("timeout waiting for %s", what)
}
