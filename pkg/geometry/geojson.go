package geometry

import (
	"encoding/json"
	"fmt"
)

// GeoJSON geometry type names.
const (
	TypePoint      = "Point"
	TypeLineString = "LineString"
)

// LineStringJSON encodes a line as a GeoJSON LineString geometry object.
func LineStringJSON(l Line) json.RawMessage {
	coords := make([][2]float64, 0, len(l))
	for _, c := range l {
		coords = append(coords, [2]float64{c.Lon, c.Lat})
	}
	out, _ := json.Marshal(map[string]interface{}{
		"type":        TypeLineString,
		"coordinates": coords,
	})
	return out
}

// PointJSON encodes a coordinate as a GeoJSON Point geometry object.
func PointJSON(c Coordinate) json.RawMessage {
	out, _ := json.Marshal(map[string]interface{}{
		"type":        TypePoint,
		"coordinates": [2]float64{c.Lon, c.Lat},
	})
	return out
}

// ParseLineString decodes a GeoJSON LineString geometry into a Line.
func ParseLineString(raw []byte) (Line, error) {
	var g struct {
		Type        string       `json:"type"`
		Coordinates [][2]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	if g.Type != TypeLineString {
		return nil, fmt.Errorf("unexpected geometry type %q", g.Type)
	}

	line := make(Line, 0, len(g.Coordinates))
	for _, c := range g.Coordinates {
		line = append(line, Coordinate{Lon: c[0], Lat: c[1]})
	}
	return line, nil
}

// Feature is a GeoJSON feature with free-form properties.
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection creates an empty feature collection.
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
}

// AddLineString appends a LineString feature with the given properties.
func (fc *FeatureCollection) AddLineString(l Line, props map[string]interface{}) {
	fc.Features = append(fc.Features, Feature{
		Type:       "Feature",
		Geometry:   LineStringJSON(l),
		Properties: props,
	})
}

// AddPoint appends a Point feature with the given properties.
func (fc *FeatureCollection) AddPoint(c Coordinate, props map[string]interface{}) {
	fc.Features = append(fc.Features, Feature{
		Type:       "Feature",
		Geometry:   PointJSON(c),
		Properties: props,
	})
}
