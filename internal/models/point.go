package models

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkbhex"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// SRID of WGS84 longitude/latitude.
const SRID = 4326

// Point is a WGS84 position stored as a PostGIS point geometry.
// SQLite stores the same value as EWKT text.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// NewPoint returns a point at lon/lat.
func NewPoint(lon, lat float64) *Point {
	return &Point{Lon: lon, Lat: lat}
}

// Geom returns the point as a go-geom geometry tagged with SRID 4326.
func (p Point) Geom() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat}).SetSRID(SRID)
}

// EWKT renders the point as "SRID=4326;POINT (lon lat)".
func (p Point) EWKT() (string, error) {
	text, err := wkt.Marshal(p.Geom())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SRID=%d;%s", SRID, text), nil
}

func (p Point) Value() (driver.Value, error) {
	return p.EWKT()
}

// Scan accepts EWKT/WKT text or hex-encoded EWKB as returned by PostGIS.
func (p *Point) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("failed to scan Point from %T", value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	g, err := decodeGeometry(raw)
	if err != nil {
		return fmt.Errorf("decode point: %w", err)
	}

	pt, ok := g.(*geom.Point)
	if !ok {
		return fmt.Errorf("expected point geometry, got %T", g)
	}
	p.Lon = pt.X()
	p.Lat = pt.Y()
	return nil
}

func decodeGeometry(raw string) (geom.T, error) {
	upper := strings.ToUpper(raw)
	if strings.HasPrefix(upper, "SRID=") {
		if i := strings.IndexByte(raw, ';'); i >= 0 {
			return wkt.Unmarshal(raw[i+1:])
		}
		return nil, fmt.Errorf("malformed EWKT %q", raw)
	}
	if strings.HasPrefix(upper, "POINT") {
		return wkt.Unmarshal(raw)
	}
	return ewkbhex.Decode(raw)
}
