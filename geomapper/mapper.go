// Package geomapper converts pixel-space detections into geographic
// coordinates using the configured camera's projection geometry.
package geomapper

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/starwit/sae-geo-mapper/config"
	"github.com/starwit/sae-geo-mapper/logger"
	"github.com/starwit/sae-geo-mapper/monitor"
	"github.com/starwit/sae-geo-mapper/sae"
)

// streamState is the per-stream dispatch entry, resolved once at setup.
type streamState struct {
	cfg    *config.CameraConfig
	camera *Camera      // MAP mode only
	area   *mappingArea // optional
}

// GeoMapper owns the per-stream camera registry and annotates detections with
// geographic coordinates. Frames of one stream must be processed
// sequentially; GeoMapper performs no locking.
type GeoMapper struct {
	streams                map[string]*streamState
	objectCenterElevationM float64
}

// New builds the registry from a validated configuration. Construction
// errors are configuration errors and must abort startup.
func New(cfg *config.GeoMapperConfig) (*GeoMapper, error) {
	g := &GeoMapper{
		streams:                make(map[string]*streamState, len(cfg.Cameras)),
		objectCenterElevationM: cfg.ObjectCenterElevationM,
	}
	for i := range cfg.Cameras {
		cam := &cfg.Cameras[i]
		state := &streamState{cfg: cam}
		if cam.Mode == config.ModeMap {
			camera, err := NewCamera(cam)
			if err != nil {
				return nil, fmt.Errorf("setup camera for stream %q: %w", cam.StreamID, err)
			}
			state.camera = camera
			if cam.MappingArea != nil {
				state.area = newMappingArea(cam.MappingArea)
			}
		}
		g.streams[cam.StreamID] = state
	}
	return g, nil
}

// Process annotates the message's detections with geo coordinates. It
// returns the message ready for re-serialization, or nil when the whole
// frame must be discarded.
func (g *GeoMapper) Process(msg *sae.SaeMessage) *sae.SaeMessage {
	if msg.Type != sae.MessageTypeSae {
		logger.Log().Warn("Unexpected message type, discarding message",
			zap.Int32("type", int32(msg.Type)))
		monitor.FramesDropped.WithLabelValues("unexpected_type").Inc()
		return nil
	}
	sourceID := msg.Frame.SourceID
	if msg.Frame.CameraLocation == nil {
		logger.Log().Warn("Camera location is not set, discarding message",
			zap.String("source_id", sourceID))
		monitor.FramesDropped.WithLabelValues("missing_location").Inc()
		return nil
	}
	state, ok := g.streams[sourceID]
	if !ok {
		logger.Log().Warn("No camera config for source_id found, possible stream_id/source_id mismatch, discarding message",
			zap.String("source_id", sourceID))
		monitor.FramesDropped.WithLabelValues("unknown_stream").Inc()
		return nil
	}

	switch state.cfg.Mode {
	case config.ModeCopy:
		g.copyLocation(msg)
	case config.ModeMap:
		g.mapDetections(msg, state)
	}
	return msg
}

// copyLocation sets every detection's geo coordinate to the frame's camera
// location. No filtering happens in copy mode.
func (g *GeoMapper) copyLocation(msg *sae.SaeMessage) {
	loc := msg.Frame.CameraLocation
	for _, detection := range msg.Detections {
		detection.GeoCoordinate = &sae.GeoCoordinate{
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
		}
	}
}

// mapDetections projects each detection's bounding-box center into the
// ground plane and optionally filters by mapping area.
func (g *GeoMapper) mapDetections(msg *sae.SaeMessage, state *streamState) {
	timer := prometheus.NewTimer(monitor.TransformDuration)
	defer timer.ObserveDuration()

	// Cameras can move, so the anchor comes from the current frame.
	state.camera.SetGPSPosition(msg.Frame.CameraLocation.Latitude, msg.Frame.CameraLocation.Longitude)

	widthPx := float64(state.cfg.ImageWidthPx)
	heightPx := float64(state.cfg.ImageHeightPx)

	retained := make([]*sae.Detection, 0, len(msg.Detections))
	for _, detection := range msg.Detections {
		center := boundingBoxCenter(&detection.BoundingBox)
		lat, lon, err := state.camera.ImageToGeo(center.X*widthPx, center.Y*heightPx, g.objectCenterElevationM)
		if err != nil {
			logger.Log().Debug("SKIPPED: ray above horizon",
				zap.Int32("cls", detection.ClassID),
				zap.String("oid", fmt.Sprintf("%x", detection.ObjectID)))
			continue
		}
		if state.area != nil && !state.area.Contains(lat, lon) {
			logger.Log().Debug("SKIPPED: outside mapping area",
				zap.Int32("cls", detection.ClassID),
				zap.String("oid", fmt.Sprintf("%x", detection.ObjectID)),
				zap.Float64("lat", lat),
				zap.Float64("lon", lon))
			continue
		}
		detection.GeoCoordinate = &sae.GeoCoordinate{Latitude: lat, Longitude: lon}
		retained = append(retained, detection)
		monitor.ObjectCounter.Inc()
		logger.Log().Debug("mapped detection",
			zap.Int32("cls", detection.ClassID),
			zap.String("oid", fmt.Sprintf("%x", detection.ObjectID)),
			zap.Float64("lat", lat),
			zap.Float64("lon", lon))
	}

	if state.cfg.RemoveUnmappedDetections {
		msg.Detections = retained
	}
}

func boundingBoxCenter(box *sae.BoundingBox) Point {
	return Point{
		X: (box.MinX + box.MaxX) / 2,
		Y: (box.MinY + box.MaxY) / 2,
	}
}
