package geometry

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SRID is the spatial reference of every coordinate in the system:
// EPSG:28992 (Amersfoort / RD New), a planar CRS in meters. The API neither
// accepts nor produces any other reference system.
const SRID = 28992

// CRS is the identifier reported to clients.
const CRS = "EPSG:28992"

// Polygon is the GeoJSON codec for a footprint boundary. It carries a
// single outer ring; interior rings (holes) and MultiPolygons are not
// supported.
type Polygon struct {
	Ring Ring
}

// geoJSONPolygon is the wire form: GeoJSON nests polygon coordinates one
// level deeper than a bare ring to make room for holes.
type geoJSONPolygon struct {
	Type        string `json:"type"`
	Coordinates []Ring `json:"coordinates"`
}

// MarshalJSON implements json.Marshaler, producing a GeoJSON Polygon
// geometry object.
func (p Polygon) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSONPolygon{
		Type:        "Polygon",
		Coordinates: []Ring{p.Ring},
	})
}

// UnmarshalJSON implements json.Unmarshaler for GeoJSON Polygon input.
// Exactly one ring is accepted; a polygon with interior rings is rejected
// rather than silently dropping the holes.
func (p *Polygon) UnmarshalJSON(data []byte) error {
	var geom geoJSONPolygon
	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal polygon: %w", err)
	}
	if geom.Type != "" && geom.Type != "Polygon" {
		return fmt.Errorf("expected Polygon type, got %s", geom.Type)
	}
	if len(geom.Coordinates) == 0 {
		return fmt.Errorf("polygon has no rings")
	}
	if len(geom.Coordinates) > 1 {
		return fmt.Errorf("polygons with interior rings are not supported, got %d rings", len(geom.Coordinates))
	}
	p.Ring = geom.Coordinates[0]
	return nil
}

// Scan implements sql.Scanner for reading a polygon from a JSONB column.
func (p *Polygon) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan Polygon: expected []byte or string, got %T", value)
	}

	return p.UnmarshalJSON(data)
}

// Value implements driver.Valuer for writing a polygon into a JSONB column.
func (p Polygon) Value() (driver.Value, error) {
	if len(p.Ring) == 0 {
		return nil, nil
	}
	data, err := p.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon to GeoJSON: %w", err)
	}
	return string(data), nil
}
