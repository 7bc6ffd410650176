// Package config loads and validates the stage configuration. Validation runs
// once at startup; a bad config must never surface mid-stream.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// CameraMode selects how detections of a stream get their geo coordinate.
type CameraMode string

const (
	// ModeCopy copies the frame's camera location onto every detection.
	ModeCopy CameraMode = "copy"
	// ModeMap projects each detection into the ground plane through the
	// camera model.
	ModeMap CameraMode = "map"
)

// MappingArea is a GeoJSON-style polygon geometry. Coordinates are rings of
// [longitude, latitude] pairs; only the outer ring is used.
type MappingArea struct {
	Type        string        `yaml:"type"`
	Coordinates [][][]float64 `yaml:"coordinates"`
}

// CameraConfig describes one stream. MAP-only fields are pointers so that
// absence is distinguishable from zero.
type CameraConfig struct {
	StreamID string     `yaml:"streamId"`
	Mode     CameraMode `yaml:"mode"`

	FocalLengthMM  *float64 `yaml:"focalLengthMm"`
	SensorWidthMM  *float64 `yaml:"sensorWidthMm"`
	SensorHeightMM *float64 `yaml:"sensorHeightMm"`
	ImageWidthPx   int      `yaml:"imageWidthPx"`
	ImageHeightPx  int      `yaml:"imageHeightPx"`
	ViewXDeg       *float64 `yaml:"viewXDeg"`
	ViewYDeg       *float64 `yaml:"viewYDeg"`

	ElevationM float64 `yaml:"elevationM"`
	TiltDeg    float64 `yaml:"tiltDeg"`
	HeadingDeg float64 `yaml:"headingDeg"`
	RollDeg    float64 `yaml:"rollDeg"`

	ABCDistortionA *float64 `yaml:"abcDistortionA"`
	ABCDistortionB *float64 `yaml:"abcDistortionB"`
	ABCDistortionC *float64 `yaml:"abcDistortionC"`

	BrownDistortionK1 *float64 `yaml:"brownDistortionK1"`
	BrownDistortionK2 *float64 `yaml:"brownDistortionK2"`
	BrownDistortionK3 *float64 `yaml:"brownDistortionK3"`

	MappingArea *MappingArea `yaml:"mappingArea"`

	RemoveUnmappedDetections bool `yaml:"removeUnmappedDetections"`
}

// KafkaConfig holds the stream transport settings. Credentials may be
// overridden from the environment (see applyEnv).
type KafkaConfig struct {
	BootstrapServers  string `yaml:"bootstrapServers"`
	GroupID           string `yaml:"groupId"`
	InputTopicPrefix  string `yaml:"inputTopicPrefix"`
	OutputTopicPrefix string `yaml:"outputTopicPrefix"`
	SecurityProtocol  string `yaml:"securityProtocol"`
	SASLMechanism     string `yaml:"saslMechanism"`
	SASLUsername      string `yaml:"saslUsername"`
	SASLPassword      string `yaml:"saslPassword"`
}

// RegistrationConfig controls the optional stage registration heartbeat.
type RegistrationConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// GeoMapperConfig is the root configuration of the stage.
type GeoMapperConfig struct {
	LogLevel               string             `yaml:"logLevel"`
	ObjectCenterElevationM float64            `yaml:"objectCenterElevationM"`
	MonitoringPort         int                `yaml:"monitoringPort"`
	Kafka                  KafkaConfig        `yaml:"kafka"`
	Registration           RegistrationConfig `yaml:"registration"`
	Cameras                []CameraConfig     `yaml:"cameras"`
}

// Load reads, env-overlays and validates the configuration file.
func Load(path string) (*GeoMapperConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := &GeoMapperConfig{
		LogLevel:       "info",
		MonitoringPort: 50053,
		Kafka: KafkaConfig{
			BootstrapServers:  "localhost:9092",
			GroupID:           "geo-mapper",
			InputTopicPrefix:  "videosource",
			OutputTopicPrefix: "geomapper",
		},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays broker settings from the environment so credentials can be
// kept out of the config file.
func (c *GeoMapperConfig) applyEnv() {
	c.Kafka.BootstrapServers = getEnv("KAFKA_BOOTSTRAP_SERVERS", c.Kafka.BootstrapServers)
	c.Kafka.SecurityProtocol = getEnv("KAFKA_SECURITY_PROTOCOL", c.Kafka.SecurityProtocol)
	c.Kafka.SASLMechanism = getEnv("KAFKA_SASL_MECHANISM", c.Kafka.SASLMechanism)
	c.Kafka.SASLUsername = getEnv("KAFKA_SASL_USERNAME", c.Kafka.SASLUsername)
	c.Kafka.SASLPassword = getEnv("KAFKA_SASL_PASSWORD", c.Kafka.SASLPassword)
	if v := os.Getenv("MONITORING_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MonitoringPort = port
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate checks the whole configuration and fails fast on the first
// contradiction.
func (c *GeoMapperConfig) Validate() error {
	if len(c.Cameras) == 0 {
		return fmt.Errorf("config: at least one camera is required")
	}
	seen := make(map[string]bool, len(c.Cameras))
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		if cam.StreamID == "" {
			return fmt.Errorf("config: camera %d: streamId is required", i)
		}
		if seen[cam.StreamID] {
			return fmt.Errorf("config: duplicate streamId %q", cam.StreamID)
		}
		seen[cam.StreamID] = true
		switch cam.Mode {
		case ModeCopy:
			// copy mode needs nothing beyond the stream id
		case ModeMap:
			if err := cam.validateMap(); err != nil {
				return fmt.Errorf("config: camera %q: %w", cam.StreamID, err)
			}
		default:
			return fmt.Errorf("config: camera %q: unknown mode %q", cam.StreamID, cam.Mode)
		}
	}
	return nil
}

func (cam *CameraConfig) validateMap() error {
	if cam.ImageWidthPx <= 0 || cam.ImageHeightPx <= 0 {
		return fmt.Errorf("map mode requires positive imageWidthPx/imageHeightPx")
	}
	hasFocal := cam.FocalLengthMM != nil && cam.SensorWidthMM != nil
	hasView := cam.ViewXDeg != nil
	if !hasFocal && !hasView {
		return fmt.Errorf("map mode requires focalLengthMm+sensorWidthMm or viewXDeg")
	}
	if err := cam.validateDistortion(); err != nil {
		return err
	}
	if cam.MappingArea != nil {
		if err := cam.MappingArea.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (cam *CameraConfig) validateDistortion() error {
	abc := countSet(cam.ABCDistortionA, cam.ABCDistortionB, cam.ABCDistortionC)
	if abc != 0 && abc != 3 {
		return fmt.Errorf("abc distortion requires all of a, b and c")
	}
	brown := countSet(cam.BrownDistortionK1, cam.BrownDistortionK2, cam.BrownDistortionK3)
	if brown != 0 && brown != 3 {
		return fmt.Errorf("brown distortion requires all of k1, k2 and k3")
	}
	return nil
}

func (a *MappingArea) validate() error {
	if a.Type != "Polygon" {
		return fmt.Errorf("mappingArea: unsupported geometry type %q", a.Type)
	}
	if len(a.Coordinates) == 0 {
		return fmt.Errorf("mappingArea: missing polygon ring")
	}
	ring := a.Coordinates[0]
	if len(ring) < 3 {
		return fmt.Errorf("mappingArea: outer ring needs at least 3 vertices")
	}
	for _, vertex := range ring {
		if len(vertex) < 2 {
			return fmt.Errorf("mappingArea: vertices must be [longitude, latitude] pairs")
		}
	}
	return nil
}

func countSet(vals ...*float64) int {
	n := 0
	for _, v := range vals {
		if v != nil {
			n++
		}
	}
	return n
}
