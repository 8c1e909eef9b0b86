package mapper

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadius = 6378137.0

func radians(a float64) float64 {
	return a / 180 * math.Pi
}

func deg(a float64) float64 {
	return a / math.Pi * 180
}

// CRS projects geographic lon/lat degrees into a reference system's own
// coordinates and back.
type CRS interface {
	Code() string
	Geographic() bool
	Project(p orb.Point) orb.Point
	Unproject(p orb.Point) orb.Point
}

var (
	EPSG4326 CRS = epsg4326{}
	EPSG3857 CRS = epsg3857{}
)

// ByCode resolves the reference systems this package knows about.
func ByCode(code string) (CRS, bool) {
	switch code {
	case "EPSG:4326", "CRS:84":
		return EPSG4326, true
	case "EPSG:3857", "EPSG:900913":
		return EPSG3857, true
	}

	return nil, false
}

type epsg4326 struct{}

func (epsg4326) Code() string {
	return "EPSG:4326"
}

func (epsg4326) Geographic() bool {
	return true
}

func (epsg4326) Project(p orb.Point) orb.Point {
	return p
}

func (epsg4326) Unproject(p orb.Point) orb.Point {
	return p
}

type epsg3857 struct{}

func (epsg3857) Code() string {
	return "EPSG:3857"
}

func (epsg3857) Geographic() bool {
	return false
}

func (epsg3857) Project(p orb.Point) orb.Point {
	x := earthRadius * radians(p.Lon())
	y := earthRadius * math.Log(math.Tan(math.Pi/4+radians(p.Lat())/2))

	return orb.Point{x, y}
}

func (epsg3857) Unproject(p orb.Point) orb.Point {
	lon := deg(p.X() / earthRadius)
	lat := deg(2*math.Atan(math.Exp(p.Y()/earthRadius)) - math.Pi/2)

	return orb.Point{lon, lat}
}
