package geomapper

import "math"

// Point is a 2-D coordinate, either in pixels or normalized sensor units
// depending on context.
type Point struct {
	X float64
	Y float64
}

// Distortion maps between distorted sensor coordinates (as observed on the
// image) and ideal pinhole coordinates. Both sides are normalized by the
// focal length relative to the optical center. Distort and Undistort are
// inverse to numerical tolerance.
type Distortion interface {
	// Distort maps ideal pinhole coordinates to distorted sensor coordinates.
	Distort(p Point) Point
	// Undistort maps distorted sensor coordinates back to ideal coordinates.
	Undistort(p Point) Point
}

// NoDistortion is the identity lens model.
type NoDistortion struct{}

func (NoDistortion) Distort(p Point) Point   { return p }
func (NoDistortion) Undistort(p Point) Point { return p }

// ABCDistortion is the PTGui-style three-parameter radial model. The radius
// scale is the cubic polynomial a*r^3 + b*r^2 + c*r + (1-a-b-c) in the ideal
// radius.
type ABCDistortion struct {
	A float64
	B float64
	C float64
}

func (d ABCDistortion) scale(r float64) float64 {
	return ((d.A*r+d.B)*r+d.C)*r + (1 - d.A - d.B - d.C)
}

func (d ABCDistortion) Distort(p Point) Point {
	return scaleRadial(p, d.scale(radius(p)))
}

func (d ABCDistortion) Undistort(p Point) Point {
	return invertRadial(p, d.scale)
}

// BrownDistortion is the standard even-power radial model with coefficients
// for r^2, r^4 and r^6.
type BrownDistortion struct {
	K1 float64
	K2 float64
	K3 float64
}

func (d BrownDistortion) scale(r float64) float64 {
	r2 := r * r
	return 1 + r2*(d.K1+r2*(d.K2+r2*d.K3))
}

func (d BrownDistortion) Distort(p Point) Point {
	return scaleRadial(p, d.scale(radius(p)))
}

func (d BrownDistortion) Undistort(p Point) Point {
	return invertRadial(p, d.scale)
}

func radius(p Point) float64 {
	return math.Hypot(p.X, p.Y)
}

func scaleRadial(p Point, s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// invertRadial solves r_distorted = r * scale(r) for r by fixed-point
// iteration and rescales p accordingly. The radial polynomials in use are
// near 1 over the sensor, so the iteration converges in a few steps.
func invertRadial(p Point, scale func(float64) float64) Point {
	rd := radius(p)
	if rd == 0 {
		return p
	}
	ru := rd
	for i := 0; i < 25; i++ {
		s := scale(ru)
		if s <= 0 {
			break
		}
		next := rd / s
		if math.Abs(next-ru) < 1e-12 {
			ru = next
			break
		}
		ru = next
	}
	return scaleRadial(p, ru/rd)
}
