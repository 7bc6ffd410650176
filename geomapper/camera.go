package geomapper

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"

	"github.com/starwit/sae-geo-mapper/config"
)

// metersPerDegreeLatitude is the local tangent-plane scale (earth radius
// 6371 km). Valid for the short ranges of a fixed surveillance camera, not
// for multi-kilometer spans.
const metersPerDegreeLatitude = 6371000.0 * math.Pi / 180

// ErrRayAboveHorizon is returned by ImageToGeo when the viewing ray is
// parallel to or points away from the ground plane and therefore never
// reaches it.
var ErrRayAboveHorizon = errors.New("ray does not intersect the ground plane")

// Camera aggregates projection, lens distortion and spatial orientation for
// one stream and converts between image and geographic coordinates.
type Camera struct {
	projection  RectilinearProjection
	orientation *SpatialOrientation
}

// NewCamera builds a Camera from a validated MAP-mode configuration, picking
// the distortion model: Brown takes precedence over ABC, absent coefficients
// mean no distortion.
func NewCamera(cam *config.CameraConfig) (*Camera, error) {
	var lens Distortion = NoDistortion{}
	if cam.ABCDistortionA != nil {
		lens = ABCDistortion{A: *cam.ABCDistortionA, B: *cam.ABCDistortionB, C: *cam.ABCDistortionC}
	}
	if cam.BrownDistortionK1 != nil {
		lens = BrownDistortion{K1: *cam.BrownDistortionK1, K2: *cam.BrownDistortionK2, K3: *cam.BrownDistortionK3}
	}
	proj, err := NewRectilinearProjection(cam, lens)
	if err != nil {
		return nil, err
	}
	return &Camera{
		projection:  proj,
		orientation: NewSpatialOrientation(cam.ElevationM, cam.TiltDeg, cam.HeadingDeg, cam.RollDeg),
	}, nil
}

// SetGPSPosition updates the anchor from the current frame. Cameras are
// treated as potentially moving.
func (c *Camera) SetGPSPosition(lat, lon float64) {
	c.orientation.SetGPSPosition(lat, lon)
}

// ImageToGeo casts the viewing ray of a pixel into the ground plane at
// groundElevationM and returns the intersection as latitude/longitude.
func (c *Camera) ImageToGeo(pixelX, pixelY, groundElevationM float64) (lat, lon float64, err error) {
	ray := c.orientation.CameraToWorld(c.projection.PixelToRay(pixelX, pixelY))
	// Plane height relative to the camera center.
	dz := groundElevationM - c.orientation.ElevationM
	if ray.Z == 0 {
		return 0, 0, ErrRayAboveHorizon
	}
	s := dz / ray.Z
	if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 0, 0, ErrRayAboveHorizon
	}
	east := s * ray.X
	north := s * ray.Y
	lat0, lon0 := c.orientation.GPSPosition()
	lat = lat0 + north/metersPerDegreeLatitude
	lon = lon0 + east/(metersPerDegreeLatitude*math.Cos(lat0*math.Pi/180))
	return lat, lon, nil
}

// GeoToImage is the forward transform of ImageToGeo: project a geographic
// point at the given elevation back into pixel coordinates. Not used on the
// processing path; it exists to verify transform symmetry.
func (c *Camera) GeoToImage(lat, lon, elevationM float64) (Point, error) {
	lat0, lon0 := c.orientation.GPSPosition()
	world := r3.Vector{
		X: (lon - lon0) * metersPerDegreeLatitude * math.Cos(lat0*math.Pi/180),
		Y: (lat - lat0) * metersPerDegreeLatitude,
		Z: elevationM - c.orientation.ElevationM,
	}
	return c.projection.RayToPixel(c.orientation.WorldToCamera(world))
}
