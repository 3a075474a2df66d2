package spirv

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// fakeModule builds a minimal well-formed binary: magic, version, generator,
// bound, schema, followed by the given instruction words.
func fakeModule(instructions ...uint32) []byte {
	words := append([]uint32{Magic, 0x00010000, 0, 1, 0}, instructions...)
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

func TestWords(t *testing.T) {
	code := fakeModule(0x00020011, 0x00000001)
	words, err := Words(code)
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(words) != len(code)/4 {
		t.Fatalf("got %d words, want %d", len(words), len(code)/4)
	}
	if words[0] != Magic {
		t.Errorf("words[0] = 0x%08x, want magic 0x%08x", words[0], uint32(Magic))
	}
	if words[5] != 0x00020011 {
		t.Errorf("words[5] = 0x%08x, want 0x00020011", words[5])
	}
}

func TestWordsRejectsEmpty(t *testing.T) {
	if _, err := Words(nil); err == nil {
		t.Error("empty binary accepted")
	}
}

func TestWordsRejectsMisaligned(t *testing.T) {
	code := fakeModule()
	if _, err := Words(code[:len(code)-1]); err == nil {
		t.Error("truncated binary accepted")
	}
}

func TestWordsRejectsBadMagic(t *testing.T) {
	code := fakeModule()
	code[0] ^= 0xFF
	if _, err := Words(code); err == nil {
		t.Error("binary without magic accepted")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shader.vert.spv")
	code := fakeModule(0x00020011, 0x00000001)
	if err := os.WriteFile(path, code, 0o644); err != nil {
		t.Fatal(err)
	}
	words, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(words) != len(code)/4 {
		t.Errorf("got %d words, want %d", len(words), len(code)/4)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.spv")); err == nil {
		t.Error("missing file accepted")
	}
}
