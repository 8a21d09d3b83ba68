package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Journal rows store positions in WKB so they can be read back during
// migrations with the geometry type's inherent Scan function. Coordinates
// stay in 3857 (game meters); conversion to 4326 happens only on export for
// the web map.

// Point3857 builds a simplefeatures point from a world position. Game
// coordinates are always finite; a non-finite input yields the empty point.
func Point3857(pos Position) geom.Point {
	pt, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: pos.X, Y: pos.Y},
			Z:    pos.Z,
			Type: geom.DimXYZ,
		},
	)
	if err != nil {
		return geom.Point{}
	}
	return pt
}

// LatLongFrom3857 converts a 3857 position to WGS84 longitude/latitude for
// map display.
func LatLongFrom3857(pos Position) (long, lat float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(3857, 4326)
	long, lat, _ = f(pos.X, pos.Y, 0)
	return long, lat
}
