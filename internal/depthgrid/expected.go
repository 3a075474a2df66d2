package depthgrid

import (
	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// TriangleDepth is the constant depth the vertex shader assigns to every
// vertex, so every covered texel lands on the same value.
const TriangleDepth float32 = 0.1337

// triangleNDC are the clip-space positions hard-coded in
// shaders/triangle.vert. With w = 1 they are also the normalized device
// coordinates; y points down, matching the framebuffer.
var triangleNDC = [3]mgl32.Vec2{
	{0.0, -0.5},
	{0.5, 0.5},
	{-0.5, 0.5},
}

// ndcToPixel applies the viewport transform for a width×height viewport at
// origin, mapping [-1, 1] NDC onto framebuffer coordinates.
func ndcToPixel(v mgl32.Vec2, width, height int) mgl32.Vec2 {
	return mgl32.Vec2{
		(v.X() + 1) * float32(width) / 2,
		(v.Y() + 1) * float32(height) / 2,
	}
}

// edge returns the signed area term of point p relative to the directed edge
// a→b. Points on the same side of every edge share the sign of all three
// terms.
func edge(a, b, p mgl32.Vec2) float32 {
	ab := b.Sub(a)
	ap := p.Sub(a)
	return ab.X()*ap.Y() - ab.Y()*ap.X()
}

// Expected rasterizes the shader's triangle analytically: a texel is covered
// when its center lies strictly inside the triangle, mirroring the sample
// point the device tests. Covered texels get the quantized depth the device
// would write back; for the viewport sizes the programs use, no texel center
// falls exactly on an edge.
func Expected(width, height int) Grid {
	v0 := ndcToPixel(triangleNDC[0], width, height)
	v1 := ndcToPixel(triangleNDC[1], width, height)
	v2 := ndcToPixel(triangleNDC[2], width, height)

	depth := Unpack(PackUnorm24(TriangleDepth))
	g := NewGrid(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			center := mgl32.Vec2{float32(x) + 0.5, float32(y) + 0.5}
			e0 := edge(v0, v1, center)
			e1 := edge(v1, v2, center)
			e2 := edge(v2, v0, center)
			if (e0 > 0 && e1 > 0 && e2 > 0) || (e0 < 0 && e1 < 0 && e2 < 0) {
				g.set(x, y, depth)
			}
		}
	}
	return g
}
