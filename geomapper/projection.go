package geomapper

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/starwit/sae-geo-mapper/config"
)

// ErrBehindCamera is returned by RayToPixel for directions that do not point
// through the image plane.
var ErrBehindCamera = errors.New("direction points behind the camera")

// RectilinearProjection converts between pixel coordinates and camera-frame
// ray directions for a pinhole camera with lens distortion. The camera frame
// is x right, y down, z forward along the optical axis.
type RectilinearProjection struct {
	focalXPx float64
	focalYPx float64
	centerX  float64
	centerY  float64
	lens     Distortion
}

// NewRectilinearProjection derives the effective focal length in pixels from
// focal length and sensor dimensions, falling back to the field of view when
// no focal length is configured.
func NewRectilinearProjection(cam *config.CameraConfig, lens Distortion) (RectilinearProjection, error) {
	if lens == nil {
		lens = NoDistortion{}
	}
	p := RectilinearProjection{
		centerX: float64(cam.ImageWidthPx) / 2,
		centerY: float64(cam.ImageHeightPx) / 2,
		lens:    lens,
	}
	switch {
	case cam.FocalLengthMM != nil && cam.SensorWidthMM != nil:
		p.focalXPx = *cam.FocalLengthMM / *cam.SensorWidthMM * float64(cam.ImageWidthPx)
		if cam.SensorHeightMM != nil {
			p.focalYPx = *cam.FocalLengthMM / *cam.SensorHeightMM * float64(cam.ImageHeightPx)
		} else {
			p.focalYPx = p.focalXPx
		}
	case cam.ViewXDeg != nil:
		p.focalXPx = p.centerX / math.Tan(*cam.ViewXDeg/2*math.Pi/180)
		if cam.ViewYDeg != nil {
			p.focalYPx = p.centerY / math.Tan(*cam.ViewYDeg/2*math.Pi/180)
		} else {
			p.focalYPx = p.focalXPx
		}
	default:
		return p, fmt.Errorf("camera %q: neither focal length nor field of view configured", cam.StreamID)
	}
	if p.focalXPx <= 0 || p.focalYPx <= 0 {
		return p, fmt.Errorf("camera %q: non-positive effective focal length", cam.StreamID)
	}
	return p, nil
}

// PixelToRay maps a pixel position to the unit direction of the ray entering
// that pixel, in the camera frame.
func (p RectilinearProjection) PixelToRay(pixelX, pixelY float64) r3.Vector {
	n := p.lens.Undistort(Point{
		X: (pixelX - p.centerX) / p.focalXPx,
		Y: (pixelY - p.centerY) / p.focalYPx,
	})
	return r3.Vector{X: n.X, Y: n.Y, Z: 1}.Normalize()
}

// RayToPixel maps a camera-frame direction to pixel coordinates.
func (p RectilinearProjection) RayToPixel(dir r3.Vector) (Point, error) {
	if dir.Z <= 1e-12 {
		return Point{}, ErrBehindCamera
	}
	d := p.lens.Distort(Point{X: dir.X / dir.Z, Y: dir.Y / dir.Z})
	return Point{
		X: p.centerX + d.X*p.focalXPx,
		Y: p.centerY + d.Y*p.focalYPx,
	}, nil
}
