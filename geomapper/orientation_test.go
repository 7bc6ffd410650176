package geomapper

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func assertVectorInDelta(t *testing.T, want, got r3.Vector, delta float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta)
	assert.InDelta(t, want.Y, got.Y, delta)
	assert.InDelta(t, want.Z, got.Z, delta)
}

func TestNadirOrientation(t *testing.T) {
	// tilt 0 looks straight down, heading 0 keeps image up pointing north
	o := NewSpatialOrientation(10, 0, 0, 0)

	assertVectorInDelta(t, r3.Vector{Z: -1}, o.CameraToWorld(r3.Vector{Z: 1}), 1e-12)
	assertVectorInDelta(t, r3.Vector{X: 1}, o.CameraToWorld(r3.Vector{X: 1}), 1e-12)
	// image down points south
	assertVectorInDelta(t, r3.Vector{Y: -1}, o.CameraToWorld(r3.Vector{Y: 1}), 1e-12)
}

func TestHorizonOrientation(t *testing.T) {
	o := NewSpatialOrientation(10, 90, 0, 0)

	// optical axis points north, image down points at the ground
	assertVectorInDelta(t, r3.Vector{Y: 1}, o.CameraToWorld(r3.Vector{Z: 1}), 1e-12)
	assertVectorInDelta(t, r3.Vector{Z: -1}, o.CameraToWorld(r3.Vector{Y: 1}), 1e-12)
	assertVectorInDelta(t, r3.Vector{X: 1}, o.CameraToWorld(r3.Vector{X: 1}), 1e-12)
}

func TestHeadingRotatesView(t *testing.T) {
	east := NewSpatialOrientation(10, 90, 90, 0)
	assertVectorInDelta(t, r3.Vector{X: 1}, east.CameraToWorld(r3.Vector{Z: 1}), 1e-12)

	south := NewSpatialOrientation(10, 90, 180, 0)
	assertVectorInDelta(t, r3.Vector{Y: -1}, south.CameraToWorld(r3.Vector{Z: 1}), 1e-12)
}

func TestRollRotatesAboutOpticalAxis(t *testing.T) {
	o := NewSpatialOrientation(10, 90, 0, 180)

	// a half roll flips the lateral axis, the optical axis stays put
	assertVectorInDelta(t, r3.Vector{Y: 1}, o.CameraToWorld(r3.Vector{Z: 1}), 1e-12)
	assertVectorInDelta(t, r3.Vector{X: -1}, o.CameraToWorld(r3.Vector{X: 1}), 1e-12)
}

func TestWorldToCameraIsInverse(t *testing.T) {
	o := NewSpatialOrientation(10, 45, 135, 12)
	for _, v := range []r3.Vector{
		{X: 1, Y: 0, Z: 0},
		{X: 0.3, Y: -0.5, Z: 0.8},
		{X: -1, Y: 2, Z: -3},
	} {
		assertVectorInDelta(t, v, o.WorldToCamera(o.CameraToWorld(v)), 1e-12)
	}
}

func TestSetGPSPositionKeepsPose(t *testing.T) {
	o := NewSpatialOrientation(10, 45, 135, 0)
	before := o.CameraToWorld(r3.Vector{Z: 1})

	o.SetGPSPosition(10.0, 20.0)
	lat, lon := o.GPSPosition()
	assert.Equal(t, 10.0, lat)
	assert.Equal(t, 20.0, lon)
	assert.Equal(t, 10.0, o.ElevationM)

	assertVectorInDelta(t, before, o.CameraToWorld(r3.Vector{Z: 1}), 1e-15)
}
