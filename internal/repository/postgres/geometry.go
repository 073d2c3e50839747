package postgres

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// marshalGeometry encodes a polygon as GeoJSON for a jsonb column.
func marshalGeometry(p orb.Polygon) ([]byte, error) {
	data, err := geojson.NewGeometry(p).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geometry: %w", err)
	}
	return data, nil
}

// unmarshalGeometry decodes a stored GeoJSON polygon.
func unmarshalGeometry(data []byte) (orb.Polygon, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal geometry: %w", err)
	}
	p, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("stored geometry is %s, want Polygon", g.Type)
	}
	return p, nil
}
