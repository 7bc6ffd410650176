package geomapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapCamera(t *testing.T, tiltDeg, headingDeg float64) *Camera {
	t.Helper()
	cfg := testCameraConfig()
	cfg.ElevationM = 10
	cfg.TiltDeg = tiltDeg
	cfg.HeadingDeg = headingDeg
	cam, err := NewCamera(cfg)
	require.NoError(t, err)
	cam.SetGPSPosition(10.0, 20.0)
	return cam
}

func TestNadirCenterPixelHitsAnchor(t *testing.T) {
	cam := testMapCamera(t, 0, 0)

	lat, lon, err := cam.ImageToGeo(960, 540, 0)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, lat, 1e-9)
	assert.InDelta(t, 20.0, lon, 1e-9)
}

func TestSteeperTiltMapsFurtherAway(t *testing.T) {
	// With heading 0 the center pixel lands due north of the anchor, at a
	// distance growing with the tilt angle.
	prev := 0.0
	for _, tilt := range []float64{10, 30, 45, 60, 80} {
		cam := testMapCamera(t, tilt, 0)
		lat, lon, err := cam.ImageToGeo(960, 540, 0)
		require.NoError(t, err)
		assert.InDelta(t, 20.0, lon, 1e-9)
		offset := lat - 10.0
		assert.Greater(t, offset, prev, "tilt %v", tilt)
		prev = offset
	}
}

func TestHeadingRotatesGroundPoint(t *testing.T) {
	// heading 135 puts the center pixel southeast of the anchor
	cam := testMapCamera(t, 45, 135)

	lat, lon, err := cam.ImageToGeo(960, 540, 0)
	require.NoError(t, err)
	assert.Less(t, lat, 10.0)
	assert.Greater(t, lon, 20.0)

	// elevation 10m at tilt 45 gives a 10m ground range, so the offset must
	// be far above coordinate noise yet well below a kilometer
	assert.Greater(t, 10.0-lat, 0.00001)
	assert.Less(t, 10.0-lat, 0.01)
	assert.Greater(t, lon-20.0, 0.00001)
	assert.Less(t, lon-20.0, 0.01)
}

func TestRayAboveHorizon(t *testing.T) {
	cam := testMapCamera(t, 90, 0)

	// center pixel runs parallel to the ground
	_, _, err := cam.ImageToGeo(960, 540, 0)
	assert.ErrorIs(t, err, ErrRayAboveHorizon)

	// upper half of the image points at the sky
	_, _, err = cam.ImageToGeo(960, 100, 0)
	assert.ErrorIs(t, err, ErrRayAboveHorizon)

	// lower half still reaches the ground
	_, _, err = cam.ImageToGeo(960, 980, 0)
	assert.NoError(t, err)
}

func TestGeoImageRoundTrip(t *testing.T) {
	cam := testMapCamera(t, 45, 135)

	for _, px := range []Point{
		{X: 960, Y: 540},
		{X: 400, Y: 300},
		{X: 1500, Y: 800},
	} {
		lat, lon, err := cam.ImageToGeo(px.X, px.Y, 0)
		require.NoError(t, err)
		back, err := cam.GeoToImage(lat, lon, 0)
		require.NoError(t, err)
		assert.InDelta(t, px.X, back.X, 1e-6)
		assert.InDelta(t, px.Y, back.Y, 1e-6)
	}
}

func TestBrownTakesPrecedenceOverABC(t *testing.T) {
	cfg := testCameraConfig()
	cfg.ABCDistortionA = f64(0.01)
	cfg.ABCDistortionB = f64(0.02)
	cfg.ABCDistortionC = f64(0.03)
	cfg.BrownDistortionK1 = f64(0)
	cfg.BrownDistortionK2 = f64(0)
	cfg.BrownDistortionK3 = f64(0)
	cam, err := NewCamera(cfg)
	require.NoError(t, err)

	// Brown with zero coefficients behaves like no distortion, which an ABC
	// model with these coefficients would not.
	_, ok := cam.projection.lens.(BrownDistortion)
	assert.True(t, ok)
}
