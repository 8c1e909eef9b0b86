package model

import (
	"image"

	"github.com/paulmach/orb"

	"github.com/Bobfrat/gowms/pkg/mapper"
)

// Event names a MapContext dispatches.
const (
	EventMoveEnd = "moveend"
	EventClick   = "click"
)

// Event carries what the host map knows about a user interaction.
// Point and LatLng are filled for click events only.
type Event struct {
	Type   string
	Point  image.Point
	LatLng orb.Point
}

// ImageHandle is a displayed overlay image owned by the host map.
type ImageHandle interface {
	Remove()
}

// MapContext is the capability interface a host map adapter implements.
// The client core depends on nothing but this, never on a concrete map
// engine's type hierarchy.
type MapContext interface {
	Bounds() orb.Bound
	Size() (width, height int)
	Zoom() int
	CRS() mapper.CRS
	AddImage(url string, bound orb.Bound, opacity float64) ImageHandle
	OpenPopup(content string, at orb.Point)
	SetWaiting(waiting bool)

	// On subscribes to a map event and returns an unsubscribe func.
	On(event string, fn func(Event)) func()
}
