package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestEmptyCameras(t *testing.T) {
	cfg := &GeoMapperConfig{}
	assert.Error(t, cfg.Validate())
}

func TestCopyCameraMinimal(t *testing.T) {
	cfg := &GeoMapperConfig{
		Cameras: []CameraConfig{{StreamID: "stream1", Mode: ModeCopy}},
	}
	assert.NoError(t, cfg.Validate())
}

func TestMapCameraWithView(t *testing.T) {
	cfg := &GeoMapperConfig{
		Cameras: []CameraConfig{{
			StreamID:      "stream1",
			Mode:          ModeMap,
			ImageWidthPx:  1920,
			ImageHeightPx: 1080,
			ViewXDeg:      f64(60),
			HeadingDeg:    180,
		}},
	}
	assert.NoError(t, cfg.Validate())
}

func TestMapCameraMissingProjection(t *testing.T) {
	cfg := &GeoMapperConfig{
		Cameras: []CameraConfig{{
			StreamID:      "stream1",
			Mode:          ModeMap,
			ImageWidthPx:  1920,
			ImageHeightPx: 1080,
		}},
	}
	assert.Error(t, cfg.Validate())
}

func TestDuplicateStreamID(t *testing.T) {
	cfg := &GeoMapperConfig{
		Cameras: []CameraConfig{
			{StreamID: "stream1", Mode: ModeCopy},
			{StreamID: "stream1", Mode: ModeCopy},
		},
	}
	assert.Error(t, cfg.Validate())
}

func TestUnknownMode(t *testing.T) {
	cfg := &GeoMapperConfig{
		Cameras: []CameraConfig{{StreamID: "stream1", Mode: "passthrough"}},
	}
	assert.Error(t, cfg.Validate())
}

func TestPartialDistortionCoefficients(t *testing.T) {
	cfg := &GeoMapperConfig{
		Cameras: []CameraConfig{{
			StreamID:          "stream1",
			Mode:              ModeMap,
			ImageWidthPx:      1920,
			ImageHeightPx:     1080,
			ViewXDeg:          f64(60),
			BrownDistortionK1: f64(0.1),
		}},
	}
	assert.Error(t, cfg.Validate())
}

func TestMappingAreaValidation(t *testing.T) {
	base := CameraConfig{
		StreamID:      "stream1",
		Mode:          ModeMap,
		ImageWidthPx:  1920,
		ImageHeightPx: 1080,
		ViewXDeg:      f64(60),
	}

	tooFew := base
	tooFew.MappingArea = &MappingArea{
		Type:        "Polygon",
		Coordinates: [][][]float64{{{20.0, 10.0}, {20.1, 10.0}}},
	}
	assert.Error(t, (&GeoMapperConfig{Cameras: []CameraConfig{tooFew}}).Validate())

	wrongType := base
	wrongType.MappingArea = &MappingArea{
		Type:        "MultiPolygon",
		Coordinates: [][][]float64{{{20.0, 10.0}, {20.1, 10.0}, {20.1, 10.1}}},
	}
	assert.Error(t, (&GeoMapperConfig{Cameras: []CameraConfig{wrongType}}).Validate())

	ok := base
	ok.MappingArea = &MappingArea{
		Type:        "Polygon",
		Coordinates: [][][]float64{{{20.0, 10.0}, {20.1, 10.0}, {20.1, 10.1}}},
	}
	assert.NoError(t, (&GeoMapperConfig{Cameras: []CameraConfig{ok}}).Validate())
}

func TestLoadFromYAML(t *testing.T) {
	raw := `
logLevel: debug
objectCenterElevationM: 0.5
kafka:
  bootstrapServers: broker:9092
cameras:
  - streamId: stream1
    mode: map
    imageWidthPx: 1920
    imageHeightPx: 1080
    viewXDeg: 60.0
    elevationM: 10.0
    tiltDeg: 45.0
    headingDeg: 135.0
    removeUnmappedDetections: true
  - streamId: stream2
    mode: copy
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.5, cfg.ObjectCenterElevationM)
	assert.Equal(t, "broker:9092", cfg.Kafka.BootstrapServers)
	// defaults survive a partial kafka section
	assert.Equal(t, "videosource", cfg.Kafka.InputTopicPrefix)
	require.Len(t, cfg.Cameras, 2)
	assert.Equal(t, ModeMap, cfg.Cameras[0].Mode)
	assert.True(t, cfg.Cameras[0].RemoveUnmappedDetections)
	require.NotNil(t, cfg.Cameras[0].ViewXDeg)
	assert.Equal(t, 60.0, *cfg.Cameras[0].ViewXDeg)
	assert.Equal(t, ModeCopy, cfg.Cameras[1].Mode)
}
