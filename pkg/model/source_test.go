package model

import (
	"image"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

func newTestSource(t *testing.T, f Fetcher, opts *Options) *Source {
	t.Helper()

	if opts == nil {
		opts = DefaultOptions()
	}

	opts.Fetcher = f

	return NewSource(testURL, opts)
}

func clickAt(x, y int) Event {
	return Event{Type: EventClick, Point: image.Pt(x, y), LatLng: orb.Point{1, 2}}
}

func TestSourceSubLayerSet(t *testing.T) {
	m := newFakeMap()
	f := newImageFetcher(t)
	s := newTestSource(t, f, nil)

	s.AttachTo(m)

	if s.Overlay().Attached() {
		t.Error("overlay attached with an empty sub-layer set")
	}

	s.AddSubLayer("roads")

	if !s.Overlay().Attached() {
		t.Fatal("overlay not attached after first sub-layer")
	}

	if got := s.Overlay().Params()["layers"]; got != "roads" {
		t.Errorf("wrong layers: %s", got)
	}

	s.AddSubLayer("rivers")

	if got := s.Overlay().Params()["layers"]; got != "roads,rivers" {
		t.Errorf("wrong layers: %s", got)
	}

	// re-adding keeps the insertion position
	s.AddSubLayer("roads")

	if got := s.Overlay().Params()["layers"]; got != "roads,rivers" {
		t.Errorf("wrong layers after re-add: %s", got)
	}

	s.RemoveSubLayer("roads")

	if got := s.Overlay().Params()["layers"]; got != "rivers" {
		t.Errorf("wrong layers after remove: %s", got)
	}

	s.RemoveSubLayer("rivers")

	if s.Overlay().Attached() {
		t.Error("overlay still attached with an empty sub-layer set")
	}
}

func TestIdentifyNoLayers(t *testing.T) {
	m := newFakeMap()
	f := newImageFetcher(t)
	s := newTestSource(t, f, nil)

	s.AttachTo(m)
	s.Identify(clickAt(10, 20))

	if f.count() != 0 {
		t.Errorf("identify without layers issued a request: %d", f.count())
	}

	if len(m.waitingLog()) != 0 {
		t.Error("waiting indicator touched without a query")
	}
}

func TestIdentifyTransportErrorFallback(t *testing.T) {
	m := newFakeMap()
	f := &fakeFetcher{def: fetchResult{err: &TransportError{URL: testURL, Status: 502}}}
	s := newTestSource(t, f, nil)

	s.AttachTo(m)
	s.AddSubLayer("roads")
	s.Identify(clickAt(10, 20))

	waitFor(t, "popup", func() bool { return len(m.popupContents()) == 1 })

	content := m.popupContents()[0]

	if !strings.HasPrefix(content, "<iframe src='"+testURL+"?") {
		t.Errorf("wrong fallback content: %s", content)
	}

	if !strings.Contains(content, "style='border:none'") {
		t.Errorf("wrong fallback content: %s", content)
	}

	if !strings.Contains(content, "request=GetFeatureInfo") {
		t.Errorf("fallback does not point at the query url: %s", content)
	}
}

func TestIdentifyShowsText(t *testing.T) {
	m := newFakeMap()
	f := &fakeFetcher{def: fetchResult{data: []byte("feature info")}}

	opts := DefaultOptions()
	opts.OnError = func(error) {} // overlay image fetches fail decode, not under test

	s := newTestSource(t, f, opts)

	s.AttachTo(m)
	s.AddSubLayer("roads")
	s.Identify(clickAt(10, 20))

	waitFor(t, "popup", func() bool { return len(m.popupContents()) == 1 })

	if got := m.popupContents()[0]; got != "feature info" {
		t.Errorf("wrong content: %s", got)
	}

	// the overlay's own GetMap fetch may land after the identify one
	u := f.find("request=GetFeatureInfo")

	if u == "" {
		t.Fatal("no feature info request issued")
	}

	if !strings.Contains(u, "X=10") || !strings.Contains(u, "Y=20") {
		t.Errorf("pixel offsets missing: %s", u)
	}

	if !strings.Contains(u, "query_layers=roads") {
		t.Errorf("query_layers missing: %s", u)
	}
}

func TestIdentifyWaitingIndicator(t *testing.T) {
	m := newFakeMap()
	f := &fakeFetcher{def: fetchResult{err: &TransportError{URL: testURL, Status: 500}}}
	s := newTestSource(t, f, nil)

	s.AttachTo(m)
	s.AddSubLayer("roads")
	s.Identify(clickAt(10, 20))

	waitFor(t, "waiting cleared", func() bool { return len(m.waitingLog()) == 2 })

	log := m.waitingLog()

	if !log[0] || log[1] {
		t.Errorf("wrong waiting sequence: %v", log)
	}
}

func TestIdentifyLayersOverride(t *testing.T) {
	m := newFakeMap()
	f := &fakeFetcher{def: fetchResult{data: []byte("x")}}

	opts := DefaultOptions()
	opts.IdentifyLayers = []string{"a", "b"}
	opts.OnError = func(error) {}

	s := newTestSource(t, f, opts)

	s.AttachTo(m)
	s.Identify(clickAt(1, 1))

	waitFor(t, "popup", func() bool { return len(m.popupContents()) == 1 })

	if f.find("query_layers=a%2Cb") == "" {
		t.Error("override layers missing from the feature info request")
	}
}

func TestIdentifyHookReplacement(t *testing.T) {
	m := newFakeMap()
	f := &fakeFetcher{def: fetchResult{data: []byte("raw")}}

	opts := DefaultOptions()
	opts.OnError = func(error) {}

	s := newTestSource(t, f, opts)
	s.Hooks().Parse = func(body string, err error, url string) string { return "custom:" + body }

	s.AttachTo(m)
	s.AddSubLayer("roads")
	s.Identify(clickAt(1, 1))

	waitFor(t, "popup", func() bool { return len(m.popupContents()) == 1 })

	if got := m.popupContents()[0]; got != "custom:raw" {
		t.Errorf("wrong content: %s", got)
	}
}

func TestIdentifyStaleResponseDiscarded(t *testing.T) {
	m := newFakeMap()
	f := &fakeFetcher{def: fetchResult{data: []byte("late")}}

	opts := DefaultOptions()
	opts.OnError = func(error) {}

	s := newTestSource(t, f, opts)

	s.AttachTo(m)
	s.AddSubLayer("roads")
	s.Identify(clickAt(1, 1))

	waitFor(t, "popup", func() bool { return len(m.popupContents()) == 1 })

	// a completion carrying an older sequence number must not be shown
	s.finishIdentify(0, m, testURL+"?stale", orb.Point{0, 0})

	if len(m.popupContents()) != 1 {
		t.Errorf("stale identify response was shown: %v", m.popupContents())
	}
}

func TestSourceClickDispatch(t *testing.T) {
	m := newFakeMap()
	f := &fakeFetcher{def: fetchResult{data: []byte("clicked")}}

	opts := DefaultOptions()
	opts.OnError = func(error) {}

	s := newTestSource(t, f, opts)

	s.AttachTo(m)
	s.AddSubLayer("roads")

	m.fire(clickAt(5, 5))

	waitFor(t, "popup", func() bool { return len(m.popupContents()) == 1 })
}

func TestSourceIdentifyDisabled(t *testing.T) {
	m := newFakeMap()
	f := newImageFetcher(t)

	opts := DefaultOptions()
	opts.Identify = false

	s := newTestSource(t, f, opts)

	s.AttachTo(m)
	s.AddSubLayer("roads")

	waitFor(t, "overlay image", func() bool { return len(m.imageURLs()) == 1 })

	n := f.count()
	m.fire(clickAt(5, 5))

	if f.count() != n {
		t.Error("click handled with identify disabled")
	}
}
