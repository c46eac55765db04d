// Package geom holds the 2D vector helpers shared by the physics and tile code.
// Vectors are mgl64.Vec2 values; the helpers add the zero-safe variants the
// simulation relies on.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Vec2 = mgl64.Vec2

func V(x, y float64) Vec2 { return Vec2{x, y} }

// Normalize returns v scaled to unit length, or the zero vector for zero input.
func Normalize(v Vec2) Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v[0] / l, v[1] / l}
}

func Distance(a, b Vec2) float64 {
	return a.Sub(b).Len()
}

// Mix interpolates linearly between a and b.
func Mix(a, b Vec2, t float64) Vec2 {
	return a.Add(b.Sub(a).Mul(t))
}

func MixScalar(a, b, t float64) float64 {
	return a + (b-a)*t
}

// ClosestPointOnLine projects p onto the segment a-b. ok is false when the
// projection falls outside the segment.
func ClosestPointOnLine(a, b, p Vec2) (Vec2, bool) {
	ab := b.Sub(a)
	sq := ab.Dot(ab)
	if sq <= 0 {
		return a, true
	}
	t := p.Sub(a).Dot(ab) / sq
	if t < 0 || t > 1 {
		return clampToSegment(a, b, t), false
	}
	return a.Add(ab.Mul(t)), true
}

func clampToSegment(a, b Vec2, t float64) Vec2 {
	if t < 0 {
		return a
	}
	return b
}

// Direction returns the unit vector for an angle in radians.
func Direction(angle float64) Vec2 {
	return Vec2{math.Cos(angle), math.Sin(angle)}
}

// Angle returns the angle of v in radians.
func Angle(v Vec2) float64 {
	return math.Atan2(v[1], v[0])
}

// RoundToInt rounds half away from zero like the network quantizer does.
func RoundToInt(f float64) int {
	if f > 0 {
		return int(f + 0.5)
	}
	return int(f - 0.5)
}

// SaturatedAdd adds modifier to current while keeping the result inside
// [min, max], without pulling an already out-of-range value further out.
func SaturatedAdd(min, max, current, modifier float64) float64 {
	if modifier < 0 {
		if current < min {
			return current
		}
		current += modifier
		if current < min {
			current = min
		}
		return current
	}
	if current > max {
		return current
	}
	current += modifier
	if current > max {
		current = max
	}
	return current
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
