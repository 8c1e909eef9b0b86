package wms

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/Bobfrat/gowms/pkg/mapper"
)

// Request assembles a WMS request URL from a base URL and parameters.
type Request struct {
	BaseURL   string
	Params    Params
	Uppercase bool
}

func (r *Request) URL() string {
	return r.BaseURL + "?" + r.Params.Encode(r.Uppercase)
}

// BoundsParams computes the spatial parameters for a viewport: projected
// bbox, pixel size and the reference system key. Version >= 1.3 names the
// key "crs" instead of "srs", and with a geographic reference system it
// also flips the bbox to latitude-first. Both rules come from the WMS
// standard and must match the server's expectation exactly.
func BoundsParams(b orb.Bound, width, height int, crs mapper.CRS, version float64) Params {
	nw := crs.Project(orb.Point{b.Left(), b.Top()})
	se := crs.Project(orb.Point{b.Right(), b.Bottom()})

	key := "srs"
	if version >= 1.3 {
		key = "crs"
	}

	var bbox []float64
	if version >= 1.3 && crs.Code() == mapper.EPSG4326.Code() {
		bbox = []float64{se.Y(), nw.X(), nw.Y(), se.X()}
	} else {
		bbox = []float64{nw.X(), se.Y(), se.X(), nw.Y()}
	}

	return Params{
		"width":  strconv.Itoa(width),
		"height": strconv.Itoa(height),
		key:      crs.Code(),
		"bbox":   formatBbox(bbox),
	}
}

// MergeBounds merges the spatial parameters for a viewport into p and
// drops the reference system key the version does not use, so switching
// versions cannot leave both srs and crs behind.
func (p Params) MergeBounds(b orb.Bound, width, height int, crs mapper.CRS, version float64) {
	p.Merge(BoundsParams(b, width, height, crs, version))

	if version >= 1.3 {
		delete(p, "srs")
	} else {
		delete(p, "crs")
	}
}

// FeatureInfoParams derives a GetFeatureInfo query from current GetMap
// state. X and Y are pixel offsets of the queried point in the viewport.
func FeatureInfoParams(base Params, layers []string, x, y int) Params {
	p := base.Clone()

	p.Merge(Params{
		"request":      "GetFeatureInfo",
		"query_layers": strings.Join(layers, ","),
		"X":            strconv.Itoa(x),
		"Y":            strconv.Itoa(y),
	})

	return p
}

func formatBbox(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}

	return strings.Join(parts, ",")
}
