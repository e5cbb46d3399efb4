package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MinPerimeterPoints is three distinct vertices plus the closing point.
const MinPerimeterPoints = 4

// ErrInvalidPerimeter is wrapped by every geometry failure from Validate,
// ParsePerimeter and UnmarshalJSON.
var ErrInvalidPerimeter = errors.New("invalid_perimeter")

// Point is a longitude/latitude pair in WGS84 degrees.
type Point struct {
	Lon float64
	Lat float64
}

// Perimeter is a closed polygon ring. The first and last points must match.
type Perimeter []Point

// DefaultPerimeter is a small square in downtown Raleigh used as the
// prefilled test geometry.
func DefaultPerimeter() Perimeter {
	return Perimeter{
		{Lon: -78.64, Lat: 35.78},
		{Lon: -78.64, Lat: 35.79},
		{Lon: -78.63, Lat: 35.79},
		{Lon: -78.64, Lat: 35.78},
	}
}

// Validate checks closure, vertex count and coordinate ranges.
func (p Perimeter) Validate() error {
	if len(p) < MinPerimeterPoints {
		return fmt.Errorf("%w: need at least %d points, got %d", ErrInvalidPerimeter, MinPerimeterPoints, len(p))
	}
	for i, pt := range p {
		if math.IsNaN(pt.Lon) || math.IsInf(pt.Lon, 0) || math.IsNaN(pt.Lat) || math.IsInf(pt.Lat, 0) {
			return fmt.Errorf("%w: point %d is not a finite coordinate", ErrInvalidPerimeter, i)
		}
		if pt.Lon < -180 || pt.Lon > 180 {
			return fmt.Errorf("%w: point %d longitude %g out of range", ErrInvalidPerimeter, i, pt.Lon)
		}
		if pt.Lat < -90 || pt.Lat > 90 {
			return fmt.Errorf("%w: point %d latitude %g out of range", ErrInvalidPerimeter, i, pt.Lat)
		}
	}
	if !p.Ring().Closed() {
		return fmt.Errorf("%w: ring is not closed (first point differs from last)", ErrInvalidPerimeter)
	}
	distinct := make(map[Point]struct{}, len(p))
	for _, pt := range p[:len(p)-1] {
		distinct[pt] = struct{}{}
	}
	if len(distinct) < MinPerimeterPoints-1 {
		return fmt.Errorf("%w: need at least %d distinct vertices, got %d", ErrInvalidPerimeter, MinPerimeterPoints-1, len(distinct))
	}
	return nil
}

// Clone returns a copy that shares no backing array with p.
func (p Perimeter) Clone() Perimeter {
	if p == nil {
		return nil
	}
	out := make(Perimeter, len(p))
	copy(out, p)
	return out
}

// String renders the compact "lon,lat lon,lat ..." form read by ParsePerimeter.
func (p Perimeter) String() string {
	parts := make([]string, len(p))
	for i, pt := range p {
		parts[i] = strconv.FormatFloat(pt.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(pt.Lat, 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}

// ParsePerimeter reads "lon,lat" pairs separated by whitespace or semicolons.
// It only parses; call Validate to check the ring.
func ParsePerimeter(s string) (Perimeter, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no points given", ErrInvalidPerimeter)
	}
	p := make(Perimeter, 0, len(fields))
	for i, f := range fields {
		lonStr, latStr, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("%w: point %d %q is not lon,lat", ErrInvalidPerimeter, i, f)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: point %d longitude %q", ErrInvalidPerimeter, i, lonStr)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: point %d latitude %q", ErrInvalidPerimeter, i, latStr)
		}
		p = append(p, Point{Lon: lon, Lat: lat})
	}
	return p, nil
}

// Ring returns p as an orb ring.
func (p Perimeter) Ring() orb.Ring {
	if p == nil {
		return nil
	}
	r := make(orb.Ring, len(p))
	for i, pt := range p {
		r[i] = orb.Point{pt.Lon, pt.Lat}
	}
	return r
}

// PerimeterFromRing converts an orb ring. It does not validate.
func PerimeterFromRing(r orb.Ring) Perimeter {
	if r == nil {
		return nil
	}
	p := make(Perimeter, len(r))
	for i, pt := range r {
		p[i] = Point{Lon: pt.Lon(), Lat: pt.Lat()}
	}
	return p
}

// MarshalJSON encodes the ring as a GeoJSON Polygon with a single ring.
func (p Perimeter) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return geojson.NewGeometry(orb.Polygon{p.Ring()}).MarshalJSON()
}

// UnmarshalJSON decodes a GeoJSON Polygon with exactly one ring. Positions
// must carry two or three numbers (lon, lat and an ignored altitude).
func (p *Perimeter) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = nil
		return nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPerimeter, err)
	}
	poly, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return fmt.Errorf("%w: geometry type %q, want Polygon", ErrInvalidPerimeter, g.Type)
	}
	if len(poly) != 1 {
		return fmt.Errorf("%w: want exactly one ring, got %d", ErrInvalidPerimeter, len(poly))
	}

	// orb decodes positions into fixed pairs, so a short position would
	// come back zero-filled. Check arity on the raw coordinates.
	var raw struct {
		Coordinates [][][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPerimeter, err)
	}
	for _, ring := range raw.Coordinates {
		for i, pos := range ring {
			if len(pos) < 2 || len(pos) > 3 {
				return fmt.Errorf("%w: position %d has %d values, want 2 or 3", ErrInvalidPerimeter, i, len(pos))
			}
		}
	}

	*p = PerimeterFromRing(poly[0])
	return nil
}
