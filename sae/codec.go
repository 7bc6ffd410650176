package sae

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire schema (see sae.proto). The codec is written directly against
// protowire so the envelope stays compatible with protobuf consumers in other
// languages without vendoring generated bindings. Unknown fields are skipped
// on decode and dropped on re-encode.

const (
	fieldMessageType = 1
	fieldFrame       = 2
	fieldDetection   = 3

	fieldFrameTimestamp = 1
	fieldFrameSourceID  = 2
	fieldFrameShape     = 3
	fieldFrameLocation  = 4

	fieldShapeWidth    = 1
	fieldShapeHeight   = 2
	fieldShapeChannels = 3

	fieldDetectionBox        = 1
	fieldDetectionConfidence = 2
	fieldDetectionClassID    = 3
	fieldDetectionObjectID   = 4
	fieldDetectionGeo        = 5

	fieldBoxMinX = 1
	fieldBoxMinY = 2
	fieldBoxMaxX = 3
	fieldBoxMaxY = 4

	fieldGeoLatitude  = 1
	fieldGeoLongitude = 2
)

// Marshal encodes the envelope into protobuf wire format.
func Marshal(m *SaeMessage) []byte {
	var b []byte
	if m.Type != MessageTypeUnknown {
		b = protowire.AppendTag(b, fieldMessageType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Type))
	}
	b = protowire.AppendTag(b, fieldFrame, protowire.BytesType)
	b = protowire.AppendBytes(b, appendFrame(nil, &m.Frame))
	for _, d := range m.Detections {
		b = protowire.AppendTag(b, fieldDetection, protowire.BytesType)
		b = protowire.AppendBytes(b, appendDetection(nil, d))
	}
	return b
}

func appendFrame(b []byte, f *Frame) []byte {
	if f.TimestampUTCMs != 0 {
		b = protowire.AppendTag(b, fieldFrameTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.TimestampUTCMs))
	}
	if f.SourceID != "" {
		b = protowire.AppendTag(b, fieldFrameSourceID, protowire.BytesType)
		b = protowire.AppendString(b, f.SourceID)
	}
	b = protowire.AppendTag(b, fieldFrameShape, protowire.BytesType)
	b = protowire.AppendBytes(b, appendShape(nil, &f.Shape))
	if f.CameraLocation != nil {
		b = protowire.AppendTag(b, fieldFrameLocation, protowire.BytesType)
		b = protowire.AppendBytes(b, appendGeo(nil, f.CameraLocation))
	}
	return b
}

func appendShape(b []byte, s *Shape) []byte {
	b = protowire.AppendTag(b, fieldShapeWidth, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Width))
	b = protowire.AppendTag(b, fieldShapeHeight, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Height))
	b = protowire.AppendTag(b, fieldShapeChannels, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Channels))
	return b
}

func appendDetection(b []byte, d *Detection) []byte {
	b = protowire.AppendTag(b, fieldDetectionBox, protowire.BytesType)
	b = protowire.AppendBytes(b, appendBox(nil, &d.BoundingBox))
	b = protowire.AppendTag(b, fieldDetectionConfidence, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(d.Confidence))
	b = protowire.AppendTag(b, fieldDetectionClassID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(d.ClassID)))
	if len(d.ObjectID) > 0 {
		b = protowire.AppendTag(b, fieldDetectionObjectID, protowire.BytesType)
		b = protowire.AppendBytes(b, d.ObjectID)
	}
	if d.GeoCoordinate != nil {
		b = protowire.AppendTag(b, fieldDetectionGeo, protowire.BytesType)
		b = protowire.AppendBytes(b, appendGeo(nil, d.GeoCoordinate))
	}
	return b
}

func appendBox(b []byte, box *BoundingBox) []byte {
	for i, v := range [...]float64{box.MinX, box.MinY, box.MaxX, box.MaxY} {
		b = protowire.AppendTag(b, protowire.Number(fieldBoxMinX+i), protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

func appendGeo(b []byte, g *GeoCoordinate) []byte {
	b = protowire.AppendTag(b, fieldGeoLatitude, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(g.Latitude))
	b = protowire.AppendTag(b, fieldGeoLongitude, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(g.Longitude))
	return b
}

// Unmarshal decodes an envelope from protobuf wire format.
func Unmarshal(data []byte) (*SaeMessage, error) {
	m := &SaeMessage{}
	err := eachField(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case fieldMessageType:
			v, err := asVarint(typ, payload)
			if err != nil {
				return err
			}
			m.Type = MessageType(v)
		case fieldFrame:
			return unmarshalFrame(payload, &m.Frame)
		case fieldDetection:
			d := &Detection{}
			if err := unmarshalDetection(payload, d); err != nil {
				return err
			}
			m.Detections = append(m.Detections, d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode sae message: %w", err)
	}
	return m, nil
}

func unmarshalFrame(data []byte, f *Frame) error {
	return eachField(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case fieldFrameTimestamp:
			v, err := asVarint(typ, payload)
			if err != nil {
				return err
			}
			f.TimestampUTCMs = int64(v)
		case fieldFrameSourceID:
			if typ != protowire.BytesType {
				return fmt.Errorf("frame.source_id: unexpected wire type %v", typ)
			}
			f.SourceID = string(payload)
		case fieldFrameShape:
			return unmarshalShape(payload, &f.Shape)
		case fieldFrameLocation:
			g := &GeoCoordinate{}
			if err := unmarshalGeo(payload, g); err != nil {
				return err
			}
			f.CameraLocation = g
		}
		return nil
	})
}

func unmarshalShape(data []byte, s *Shape) error {
	return eachField(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case fieldShapeWidth, fieldShapeHeight, fieldShapeChannels:
		default:
			return nil
		}
		v, err := asVarint(typ, payload)
		if err != nil {
			return err
		}
		switch num {
		case fieldShapeWidth:
			s.Width = int32(v)
		case fieldShapeHeight:
			s.Height = int32(v)
		case fieldShapeChannels:
			s.Channels = int32(v)
		}
		return nil
	})
}

func unmarshalDetection(data []byte, d *Detection) error {
	return eachField(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case fieldDetectionBox:
			return unmarshalBox(payload, &d.BoundingBox)
		case fieldDetectionConfidence:
			v, err := asDouble(typ, payload)
			if err != nil {
				return err
			}
			d.Confidence = v
		case fieldDetectionClassID:
			v, err := asVarint(typ, payload)
			if err != nil {
				return err
			}
			d.ClassID = int32(v)
		case fieldDetectionObjectID:
			if typ != protowire.BytesType {
				return fmt.Errorf("detection.object_id: unexpected wire type %v", typ)
			}
			d.ObjectID = append([]byte(nil), payload...)
		case fieldDetectionGeo:
			g := &GeoCoordinate{}
			if err := unmarshalGeo(payload, g); err != nil {
				return err
			}
			d.GeoCoordinate = g
		}
		return nil
	})
}

func unmarshalBox(data []byte, box *BoundingBox) error {
	return eachField(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case fieldBoxMinX, fieldBoxMinY, fieldBoxMaxX, fieldBoxMaxY:
		default:
			return nil
		}
		v, err := asDouble(typ, payload)
		if err != nil {
			return err
		}
		switch num {
		case fieldBoxMinX:
			box.MinX = v
		case fieldBoxMinY:
			box.MinY = v
		case fieldBoxMaxX:
			box.MaxX = v
		case fieldBoxMaxY:
			box.MaxY = v
		}
		return nil
	})
}

func unmarshalGeo(data []byte, g *GeoCoordinate) error {
	return eachField(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case fieldGeoLatitude, fieldGeoLongitude:
		default:
			return nil
		}
		v, err := asDouble(typ, payload)
		if err != nil {
			return err
		}
		switch num {
		case fieldGeoLatitude:
			g.Latitude = v
		case fieldGeoLongitude:
			g.Longitude = v
		}
		return nil
	})
}

// eachField walks the fields of a wire-format buffer. For bytes-typed fields
// the callback receives the unpacked payload, for scalar fields the raw field
// bytes. Fields the callback does not recognize are skipped.
func eachField(data []byte, fn func(num protowire.Number, typ protowire.Type, payload []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		var payload []byte
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			payload = v
			data = data[n:]
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			payload = data[:n]
			data = data[n:]
		case protowire.Fixed64Type:
			_, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			payload = data[:n]
			data = data[n:]
		case protowire.Fixed32Type:
			_, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			payload = data[:n]
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}
		if err := fn(num, typ, payload); err != nil {
			return err
		}
	}
	return nil
}

func asVarint(typ protowire.Type, payload []byte) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("unexpected wire type %v, want varint", typ)
	}
	v, n := protowire.ConsumeVarint(payload)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}

func asDouble(typ protowire.Type, payload []byte) (float64, error) {
	if typ != protowire.Fixed64Type {
		return 0, fmt.Errorf("unexpected wire type %v, want fixed64", typ)
	}
	v, n := protowire.ConsumeFixed64(payload)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return math.Float64frombits(v), nil
}
