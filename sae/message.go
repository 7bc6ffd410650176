// Package sae holds the streaming analytics envelope passed between pipeline
// stages, together with its protobuf wire codec.
package sae

// MessageType discriminates envelope payloads on the stream.
type MessageType int32

const (
	MessageTypeUnknown MessageType = 0
	MessageTypeSae     MessageType = 1
)

// GeoCoordinate is a WGS 84 position in degrees.
type GeoCoordinate struct {
	Latitude  float64
	Longitude float64
}

// BoundingBox is an axis-aligned box in normalized [0,1] image coordinates.
type BoundingBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Shape describes the pixel dimensions of the frame the detections refer to.
type Shape struct {
	Width    int32
	Height   int32
	Channels int32
}

// Detection is a single detected object. GeoCoordinate is nil until a
// downstream stage has mapped the detection into geographic space.
type Detection struct {
	BoundingBox   BoundingBox
	Confidence    float64
	ClassID       int32
	ObjectID      []byte
	GeoCoordinate *GeoCoordinate
}

// Frame carries the per-frame metadata. CameraLocation is nil when the video
// source has no GPS fix.
type Frame struct {
	TimestampUTCMs int64
	SourceID       string
	Shape          Shape
	CameraLocation *GeoCoordinate
}

// SaeMessage is the envelope exchanged on the stream.
type SaeMessage struct {
	Type       MessageType
	Frame      Frame
	Detections []*Detection
}
