package model

import "sync"

// Registry caches Sources by URL so several layers, possibly on several
// maps, share a single request pipeline per endpoint. Entries are never
// evicted; a cached Source outlives the maps it has been attached to.
type Registry struct {
	data sync.Map
}

func NewRegistry() *Registry {
	return &Registry{
		data: sync.Map{},
	}
}

func (r *Registry) Get(url string) (*Source, bool) {
	if v, ok := r.data.Load(url); ok {
		if s, ok1 := v.(*Source); ok1 {
			return s, true
		}
	}

	return nil, false
}

// GetOrCreate returns the cached Source for url, creating it with opts
// on first lookup. Later lookups ignore opts.
func (r *Registry) GetOrCreate(url string, opts *Options) *Source {
	if s, ok := r.Get(url); ok {
		return s
	}

	v, _ := r.data.LoadOrStore(url, NewSource(url, opts))

	return v.(*Source)
}

func (r *Registry) Remove(url string) {
	r.data.Delete(url)
}

func (r *Registry) All(f func(s *Source) bool) {
	r.data.Range(func(_, value any) bool {
		if s, ok := value.(*Source); ok {
			return f(s)
		}

		return true
	})
}
