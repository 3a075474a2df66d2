// Package depthgrid turns depth texels read back from the device into host
// side values, text grids, and images.
//
// The render target format is D24_UNORM_S8_UINT. Copying its depth aspect to
// a buffer yields X8_D24_UNORM_PACK32 texels: 32-bit words in host byte
// order whose low 24 bits hold the unsigned normalized depth and whose high
// byte is undefined.
package depthgrid

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
)

// depthMask selects the 24 depth bits of an X8_D24 texel.
const depthMask = 0xFFFFFF

// Unpack converts one X8_D24 texel to a depth in [0, 1]. A texel still at
// the maximum value was never written by the draw and maps to 0 so that the
// background stays visually empty.
func Unpack(texel uint32) float32 {
	d := texel & depthMask
	if d == depthMask {
		return 0
	}
	return float32(d) / float32(depthMask)
}

// PackUnorm24 quantizes a depth in [0, 1] to the 24-bit unsigned normalized
// encoding the device writes, rounding to nearest. Values outside the range
// clamp.
func PackUnorm24(depth float32) uint32 {
	if depth <= 0 {
		return 0
	}
	if depth >= 1 {
		return depthMask
	}
	return uint32(depth*depthMask + 0.5)
}

// Grid is a row-major raster of depth values, row 0 at the top.
type Grid struct {
	Width  int
	Height int
	Values []float32
}

// NewGrid returns a zero-filled grid.
func NewGrid(width, height int) Grid {
	return Grid{
		Width:  width,
		Height: height,
		Values: make([]float32, width*height),
	}
}

// At returns the depth value of the texel at (x, y).
func (g Grid) At(x, y int) float32 {
	return g.Values[y*g.Width+x]
}

func (g Grid) set(x, y int, v float32) {
	g.Values[y*g.Width+x] = v
}

// FromTexels unpacks width*height X8_D24 texels into a grid.
func FromTexels(texels []uint32, width, height int) (Grid, error) {
	if len(texels) != width*height {
		return Grid{}, fmt.Errorf("got %d texels, want %dx%d = %d", len(texels), width, height, width*height)
	}
	g := NewGrid(width, height)
	for i, t := range texels {
		g.Values[i] = Unpack(t)
	}
	return g, nil
}

// FromBytes decodes raw readback bytes as 32-bit texels in host byte order
// and unpacks them into a grid.
func FromBytes(data []byte, width, height int) (Grid, error) {
	if len(data) != 4*width*height {
		return Grid{}, fmt.Errorf("got %d bytes, want %dx%d texels = %d bytes", len(data), width, height, 4*width*height)
	}
	texels := make([]uint32, width*height)
	for i := range texels {
		texels[i] = binary.NativeEndian.Uint32(data[4*i:])
	}
	return FromTexels(texels, width, height)
}

// WriteTo writes the grid as text, four decimals and a space per texel, one
// line per row.
func (g Grid) WriteTo(w io.Writer) error {
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if _, err := fmt.Fprintf(w, "%.4f ", g.At(x, y)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the text grid to path.
func (g Grid) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := g.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Image renders the grid as an 8-bit grayscale image, depth 1 mapping to
// white.
func (g Grid) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(g.At(x, y)*255 + 0.5)})
		}
	}
	return img
}

// WritePNG writes the grayscale rendering of the grid to path.
func (g Grid) WritePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, g.Image()); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

// Diff counts texels whose values differ between two grids of equal shape.
func (g Grid) Diff(o Grid) int {
	if g.Width != o.Width || g.Height != o.Height {
		panic(fmt.Sprintf("grid shape mismatch: %dx%d vs %dx%d", g.Width, g.Height, o.Width, o.Height))
	}
	n := 0
	for i := range g.Values {
		if g.Values[i] != o.Values[i] {
			n++
		}
	}
	return n
}

// Coverage counts texels with a nonzero depth value.
func (g Grid) Coverage() int {
	n := 0
	for _, v := range g.Values {
		if v != 0 {
			n++
		}
	}
	return n
}
