package geomapper

import (
	geo "github.com/kellydunn/golang-geo"

	"github.com/starwit/sae-geo-mapper/config"
)

// mappingArea restricts mapped detections to a geographic polygon. The
// polygon is treated as planar, consistent with the tangent-plane
// approximation of the camera model.
type mappingArea struct {
	polygon *geo.Polygon
}

// newMappingArea builds the containment polygon from a validated GeoJSON
// style geometry. GeoJSON vertices are [longitude, latitude]; an explicit
// ring closure is dropped since geo.Polygon closes implicitly.
func newMappingArea(area *config.MappingArea) *mappingArea {
	ring := area.Coordinates[0]
	if len(ring) > 1 {
		first, last := ring[0], ring[len(ring)-1]
		if first[0] == last[0] && first[1] == last[1] {
			ring = ring[:len(ring)-1]
		}
	}
	polygon := &geo.Polygon{}
	for _, vertex := range ring {
		polygon.Add(geo.NewPoint(vertex[1], vertex[0]))
	}
	return &mappingArea{polygon: polygon}
}

// Contains reports whether the point lies inside the polygon.
func (a *mappingArea) Contains(lat, lon float64) bool {
	return a.polygon.Contains(geo.NewPoint(lat, lon))
}
