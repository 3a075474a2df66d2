package depthgrid

import (
	"testing"
)

func TestExpectedShape(t *testing.T) {
	g := Expected(20, 20)
	if g.Width != 20 || g.Height != 20 {
		t.Fatalf("grid is %dx%d", g.Width, g.Height)
	}

	// The apex sits at pixel (10, 5) and the base spans (5, 15)-(15, 15),
	// so nothing lands in the top quarter, the bottom quarter, or the
	// corners.
	for _, y := range []int{0, 4, 15, 19} {
		for x := 0; x < 20; x++ {
			if g.At(x, y) != 0 {
				t.Fatalf("texel (%d,%d) = %v, want empty row", x, y, g.At(x, y))
			}
		}
	}
	for _, x := range []int{0, 19} {
		for y := 0; y < 20; y++ {
			if g.At(x, y) != 0 {
				t.Fatalf("texel (%d,%d) = %v, want empty column", x, y, g.At(x, y))
			}
		}
	}

	if g.At(10, 12) == 0 {
		t.Error("texel near the centroid is empty")
	}
}

func TestExpectedCoverage(t *testing.T) {
	g := Expected(20, 20)
	// Row-by-row widths of the triangle with the apex at (10, 5): rows 6-14
	// cover 2, 2, 4, 4, 6, 6, 8, 8 and 10 texel centers.
	if n := g.Coverage(); n != 50 {
		t.Errorf("Coverage = %d, want 50", n)
	}
}

func TestExpectedValues(t *testing.T) {
	g := Expected(20, 20)
	want := Unpack(PackUnorm24(TriangleDepth))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			v := g.At(x, y)
			if v != 0 && v != want {
				t.Fatalf("texel (%d,%d) = %v, want 0 or %v", x, y, v, want)
			}
		}
	}
}

func TestExpectedSymmetry(t *testing.T) {
	// The triangle is symmetric about x = 10, so the sampled grid mirrors
	// around the vertical center line.
	g := Expected(20, 20)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if g.At(x, y) != g.At(19-x, y) {
				t.Fatalf("texel (%d,%d) breaks mirror symmetry", x, y)
			}
		}
	}
}
