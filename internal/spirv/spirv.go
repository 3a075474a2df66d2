// Package spirv loads precompiled SPIR-V binaries for shader module creation.
package spirv

import (
	"errors"
	"fmt"
	"os"
	"unsafe"
)

// Magic is the SPIR-V magic number, the first word of every valid binary.
const Magic = 0x07230203

// Words validates a SPIR-V binary and reinterprets it as the 32-bit word
// stream shader module creation expects. The code must be non-empty and a
// multiple of 4 bytes; the first word must be the magic number in host byte
// order (a binary compiled on the same machine always is).
func Words(code []byte) ([]uint32, error) {
	if len(code) == 0 {
		return nil, errors.New("empty shader binary")
	}
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("shader binary is %d bytes, not a multiple of 4", len(code))
	}
	words := (*[1 << 30]uint32)(unsafe.Pointer(&code[0]))[: len(code)/4 : len(code)/4]
	if words[0] != Magic {
		return nil, fmt.Errorf("shader binary starts with 0x%08x, want SPIR-V magic 0x%08x", words[0], uint32(Magic))
	}
	return words, nil
}

// Load reads a SPIR-V binary from disk and returns its word stream.
func Load(path string) ([]uint32, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shader binary: %w", err)
	}
	words, err := Words(code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return words, nil
}
