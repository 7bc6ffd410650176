package geomapper

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starwit/sae-geo-mapper/config"
)

func f64(v float64) *float64 { return &v }

func testCameraConfig() *config.CameraConfig {
	return &config.CameraConfig{
		StreamID:      "stream1",
		Mode:          config.ModeMap,
		ImageWidthPx:  1920,
		ImageHeightPx: 1080,
		ViewXDeg:      f64(60),
	}
}

func TestCenterPixelLooksAlongOpticalAxis(t *testing.T) {
	p, err := NewRectilinearProjection(testCameraConfig(), nil)
	require.NoError(t, err)

	ray := p.PixelToRay(960, 540)
	assert.InDelta(t, 0, ray.X, 1e-12)
	assert.InDelta(t, 0, ray.Y, 1e-12)
	assert.InDelta(t, 1, ray.Z, 1e-12)
}

func TestFocalLengthFromFieldOfView(t *testing.T) {
	p, err := NewRectilinearProjection(testCameraConfig(), nil)
	require.NoError(t, err)

	// The right image edge must sit half the horizontal FOV off axis.
	ray := p.PixelToRay(1920, 540)
	angle := math.Atan2(ray.X, ray.Z) * 180 / math.Pi
	assert.InDelta(t, 30, angle, 1e-9)
}

func TestFocalLengthFromSensorGeometry(t *testing.T) {
	cam := testCameraConfig()
	cam.ViewXDeg = nil
	cam.FocalLengthMM = f64(8)
	cam.SensorWidthMM = f64(6.4)
	cam.SensorHeightMM = f64(3.6)
	p, err := NewRectilinearProjection(cam, nil)
	require.NoError(t, err)

	// 8mm focal / 6.4mm sensor * 1920px = 2400px
	assert.InDelta(t, 2400, p.focalXPx, 1e-9)
	assert.InDelta(t, 2400, p.focalYPx, 1e-9)
}

func TestMissingProjectionParameters(t *testing.T) {
	cam := testCameraConfig()
	cam.ViewXDeg = nil
	_, err := NewRectilinearProjection(cam, nil)
	assert.Error(t, err)
}

func TestPixelRayRoundTrip(t *testing.T) {
	p, err := NewRectilinearProjection(testCameraConfig(), BrownDistortion{K1: 0.05, K2: 0.001, K3: 0})
	require.NoError(t, err)

	for _, px := range []Point{
		{X: 960, Y: 540},
		{X: 100, Y: 100},
		{X: 1820, Y: 980},
		{X: 0, Y: 1080},
	} {
		back, err := p.RayToPixel(p.PixelToRay(px.X, px.Y))
		require.NoError(t, err)
		assert.InDelta(t, px.X, back.X, 1e-6)
		assert.InDelta(t, px.Y, back.Y, 1e-6)
	}
}

func TestRayBehindCamera(t *testing.T) {
	p, err := NewRectilinearProjection(testCameraConfig(), nil)
	require.NoError(t, err)

	_, err = p.RayToPixel(r3.Vector{X: 0, Y: 0, Z: -1})
	assert.ErrorIs(t, err, ErrBehindCamera)

	_, err = p.RayToPixel(r3.Vector{X: 1, Y: 0, Z: 0})
	assert.ErrorIs(t, err, ErrBehindCamera)
}
