package model

// Layer is a thin handle binding one named sub-layer to a shared Source.
// All durable state lives in the Source, so layers are safe to create
// and discard freely.
type Layer struct {
	source *Source
	name   string
}

func NewLayer(source *Source, name string) *Layer {
	return &Layer{
		source: source,
		name:   name,
	}
}

// NewLayerForURL resolves the Source through a registry, creating and
// caching it on first use.
func NewLayerForURL(reg *Registry, url, name string, opts *Options) *Layer {
	return NewLayer(reg.GetOrCreate(url, opts), name)
}

func (l *Layer) Name() string {
	return l.name
}

func (l *Layer) Source() *Source {
	return l.source
}

// AttachTo makes sure the shared source is on the map, then registers
// this layer's name with it.
func (l *Layer) AttachTo(m MapContext) {
	if !l.source.Attached() {
		l.source.AttachTo(m)
	}

	l.source.AddSubLayer(l.name)
}

func (l *Layer) Detach() {
	l.source.RemoveSubLayer(l.name)
}
