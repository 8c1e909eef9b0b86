package wms

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Params holds WMS query parameters as key-value pairs.
type Params map[string]string

// DefaultParams returns the GetMap defaults every request starts from.
func DefaultParams() Params {
	return Params{
		"service":     "WMS",
		"request":     "GetMap",
		"version":     "1.1.1",
		"layers":      "",
		"styles":      "",
		"format":      "image/jpeg",
		"transparent": "false",
	}
}

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}

	return out
}

// Merge copies values from other into p, overriding existing keys.
func (p Params) Merge(other Params) {
	for k, v := range other {
		p[k] = v
	}
}

// Version returns the protocol version as major.minor, so "1.1.1"
// reads as 1.1 and "1.3.0" as 1.3.
func (p Params) Version() float64 {
	v := p["version"]

	parts := strings.SplitN(v, ".", 3)
	if len(parts) >= 2 {
		if f, err := strconv.ParseFloat(parts[0]+"."+parts[1], 64); err == nil {
			return f
		}
	}

	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}

	return 0
}

// Encode serializes the parameters as percent-encoded key=value pairs in
// key order. Uppercase applies to keys only, values are left as they are.
func (p Params) Encode(uppercase bool) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder

	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}

		name := k
		if uppercase {
			name = strings.ToUpper(name)
		}

		sb.WriteString(url.QueryEscape(name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p[k]))
	}

	return sb.String()
}
