package geom

// Rect is an axis-aligned rectangle on the X/Z plane.
type Rect struct {
	MinX float64 `json:"minX" yaml:"minX"`
	MaxX float64 `json:"maxX" yaml:"maxX"`
	MinZ float64 `json:"minZ" yaml:"minZ"`
	MaxZ float64 `json:"maxZ" yaml:"maxZ"`
}

// RectFromBounds builds the X/Z footprint of a 3D bounding box.
func RectFromBounds(min, max Vec3) Rect {
	return Rect{MinX: min.X, MaxX: max.X, MinZ: min.Z, MaxZ: max.Z}.Normalize()
}

// Normalize swaps inverted bounds so that Min <= Max on both axes.
func (r Rect) Normalize() Rect {
	if r.MinX > r.MaxX {
		r.MinX, r.MaxX = r.MaxX, r.MinX
	}
	if r.MinZ > r.MaxZ {
		r.MinZ, r.MaxZ = r.MaxZ, r.MinZ
	}
	return r
}

// Inverted reports whether either axis has Min > Max.
func (r Rect) Inverted() bool {
	return r.MinX > r.MaxX || r.MinZ > r.MaxZ
}

// Finite reports whether all four bounds are real numbers.
func (r Rect) Finite() bool {
	return Finite(r.MinX) && Finite(r.MaxX) && Finite(r.MinZ) && Finite(r.MaxZ)
}

// Degenerate reports a rectangle with no width or no depth.
func (r Rect) Degenerate() bool {
	return r.MinX == r.MaxX || r.MinZ == r.MaxZ
}

// Width is the X extent.
func (r Rect) Width() float64 {
	return r.MaxX - r.MinX
}

// Depth is the Z extent.
func (r Rect) Depth() float64 {
	return r.MaxZ - r.MinZ
}

// Contains reports whether p lies inside or on the edge of r.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Z >= r.MinZ && p.Z <= r.MaxZ
}

// Inflate grows r by pad on every side.
func (r Rect) Inflate(pad float64) Rect {
	return Rect{MinX: r.MinX - pad, MaxX: r.MaxX + pad, MinZ: r.MinZ - pad, MaxZ: r.MaxZ + pad}
}

// Intersects reports AABB overlap, edges touching included.
func (r Rect) Intersects(o Rect) bool {
	return r.MinX <= o.MaxX && r.MaxX >= o.MinX && r.MinZ <= o.MaxZ && r.MaxZ >= o.MinZ
}

// Closest returns the point of r nearest to p.
func (r Rect) Closest(p Vec2) Vec2 {
	return Vec2{X: Clamp(p.X, r.MinX, r.MaxX), Z: Clamp(p.Z, r.MinZ, r.MaxZ)}
}
