package geomapper

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// SpatialOrientation is the camera pose: height above ground plus the fixed
// rotation between the camera frame (x right, y down, z forward) and a local
// east-north-up frame anchored at the current GPS position.
//
// Angle conventions: heading is a compass bearing about the vertical axis
// (0 = north, 90 = east), tilt rotates about the camera's lateral axis
// (0 = straight down, 90 = horizon), roll rotates about the optical axis.
// Rotations compose roll first, then tilt, then heading.
type SpatialOrientation struct {
	ElevationM float64

	camToWorld quat.Number
	worldToCam quat.Number

	lat float64
	lon float64
}

// NewSpatialOrientation builds the pose rotation once; only the GPS anchor
// mutates afterwards.
func NewSpatialOrientation(elevationM, tiltDeg, headingDeg, rollDeg float64) *SpatialOrientation {
	// With heading 0, tilt 90 and roll 0 the camera looks north: x maps to
	// east, y (image down) to -up, z (forward) to north. Folding that frame
	// change into the tilt rotation gives a single rotation about the x axis
	// by tilt-180 degrees.
	q := quat.Mul(
		rotationQuat(r3.Vector{Z: 1}, -headingDeg),
		quat.Mul(
			rotationQuat(r3.Vector{X: 1}, tiltDeg-180),
			rotationQuat(r3.Vector{Z: 1}, rollDeg),
		),
	)
	return &SpatialOrientation{
		ElevationM: elevationM,
		camToWorld: q,
		worldToCam: quat.Conj(q),
	}
}

// SetGPSPosition overwrites the anchor, leaving elevation and rotation
// untouched. Called once per processed frame.
func (o *SpatialOrientation) SetGPSPosition(lat, lon float64) {
	o.lat = lat
	o.lon = lon
}

// GPSPosition returns the current anchor in degrees.
func (o *SpatialOrientation) GPSPosition() (lat, lon float64) {
	return o.lat, o.lon
}

// CameraToWorld rotates a camera-frame direction into the local ENU frame.
func (o *SpatialOrientation) CameraToWorld(v r3.Vector) r3.Vector {
	return rotateVector(o.camToWorld, v)
}

// WorldToCamera rotates a local ENU direction into the camera frame.
func (o *SpatialOrientation) WorldToCamera(v r3.Vector) r3.Vector {
	return rotateVector(o.worldToCam, v)
}

func rotationQuat(axis r3.Vector, deg float64) quat.Number {
	half := deg * math.Pi / 360
	sin := math.Sin(half)
	return quat.Number{
		Real: math.Cos(half),
		Imag: axis.X * sin,
		Jmag: axis.Y * sin,
		Kmag: axis.Z * sin,
	}
}

func rotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}
