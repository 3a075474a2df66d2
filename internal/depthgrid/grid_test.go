package depthgrid

import (
	"encoding/binary"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUnpack(t *testing.T) {
	cases := []struct {
		texel uint32
		want  float32
	}{
		{0x000000, 0},
		{0xFFFFFF, 0},   // untouched clear value maps to background
		{0xABFFFFFF, 0}, // undefined high byte is ignored
		{0x800000, float32(0x800000) / float32(0xFFFFFF)},
		{0xCD000001, float32(1) / float32(0xFFFFFF)},
	}
	for _, c := range cases {
		if got := Unpack(c.texel); got != c.want {
			t.Errorf("Unpack(0x%08x) = %v, want %v", c.texel, got, c.want)
		}
	}
}

func TestPackUnorm24(t *testing.T) {
	cases := []struct {
		depth float32
		want  uint32
	}{
		{0, 0},
		{-1, 0},
		{1, 0xFFFFFF},
		{2, 0xFFFFFF},
		{TriangleDepth, 2243114},
	}
	for _, c := range cases {
		if got := PackUnorm24(c.depth); got != c.want {
			t.Errorf("PackUnorm24(%v) = %d, want %d", c.depth, got, c.want)
		}
	}
}

func TestTriangleDepthFormatsToFourDecimals(t *testing.T) {
	got := fmt.Sprintf("%.4f", Unpack(PackUnorm24(TriangleDepth)))
	if got != "0.1337" {
		t.Errorf("quantized triangle depth prints as %s, want 0.1337", got)
	}
}

func TestFromTexels(t *testing.T) {
	g, err := FromTexels([]uint32{0xFFFFFF, PackUnorm24(0.5), 0, 0xFFFFFF}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := g.At(0, 0); got != 0 {
		t.Errorf("At(0,0) = %v, want 0", got)
	}
	if got := g.At(1, 0); got == 0 {
		t.Error("At(1,0) = 0, want written depth")
	}
	if g.Coverage() != 1 {
		t.Errorf("Coverage = %d, want 1", g.Coverage())
	}

	if _, err := FromTexels([]uint32{1, 2, 3}, 2, 2); err == nil {
		t.Error("short texel slice accepted")
	}
}

func TestFromBytes(t *testing.T) {
	texels := []uint32{0xFFFFFF, PackUnorm24(TriangleDepth), 0xCCFFFFFF, 0xFFFFFF}
	data := make([]byte, 4*len(texels))
	for i, texel := range texels {
		binary.NativeEndian.PutUint32(data[4*i:], texel)
	}
	g, err := FromBytes(data, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := g.At(1, 0); got != Unpack(PackUnorm24(TriangleDepth)) {
		t.Errorf("At(1,0) = %v, want quantized triangle depth", got)
	}
	if g.Coverage() != 1 {
		t.Errorf("Coverage = %d, want 1", g.Coverage())
	}

	if _, err := FromBytes(data[:7], 2, 2); err == nil {
		t.Error("truncated byte slice accepted")
	}
}

func TestWriteTo(t *testing.T) {
	g := NewGrid(3, 2)
	g.set(1, 0, Unpack(PackUnorm24(TriangleDepth)))
	g.set(2, 1, 0.5)

	var sb strings.Builder
	if err := g.WriteTo(&sb); err != nil {
		t.Fatal(err)
	}
	want := "0.0000 0.1337 0.0000 \n0.0000 0.0000 0.5000 \n"
	if sb.String() != want {
		t.Errorf("WriteTo output:\n%q\nwant:\n%q", sb.String(), want)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.dat")
	g := NewGrid(2, 1)
	g.set(0, 0, 1)
	if err := g.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "1.0000 0.0000 \n" {
		t.Errorf("file content %q", data)
	}
}

func TestImage(t *testing.T) {
	g := NewGrid(2, 2)
	g.set(0, 0, 1)
	g.set(1, 1, Unpack(PackUnorm24(TriangleDepth)))
	img := g.Image()
	if got := img.GrayAt(0, 0).Y; got != 255 {
		t.Errorf("full depth maps to gray %d, want 255", got)
	}
	if got := img.GrayAt(1, 0).Y; got != 0 {
		t.Errorf("empty texel maps to gray %d, want 0", got)
	}
	if got := img.GrayAt(1, 1).Y; got != 34 {
		t.Errorf("triangle depth maps to gray %d, want 34", got)
	}
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	g := NewGrid(4, 3)
	g.set(2, 1, 1)
	if err := g.WritePNG(path); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("decoded bounds %v", img.Bounds())
	}
	r, _, _, _ := img.At(2, 1).RGBA()
	if r != 0xFFFF {
		t.Errorf("written texel decoded as %#x, want white", r)
	}
}

func TestDiff(t *testing.T) {
	a := Expected(20, 20)
	b := Expected(20, 20)
	if n := a.Diff(b); n != 0 {
		t.Errorf("identical grids diff by %d", n)
	}
	b.set(3, 3, 0.25)
	b.set(10, 10, 0.75)
	if n := a.Diff(b); n != 2 {
		t.Errorf("Diff = %d, want 2", n)
	}
}
