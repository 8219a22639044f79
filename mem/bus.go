package mem

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the number of 16-bit words on the Bus. Note that this is one
// short of the full 64k address space: addresses reduce modulo Size, so
// a program counter that runs off the end wraps back to zero rather than
// faulting.
const Size = 0xFFFF // 65,535 words

var (
	// ErrOddImage reports an image whose byte length is not a multiple
	// of 2. The image still loads; the trailing byte is dropped.
	ErrOddImage = errors.New("image length is odd")

	// ErrImageTooBig reports an image that does not fit in memory.
	// Nothing is loaded.
	ErrImageTooBig = errors.New("image does not fit in memory")
)

// A Bus owns the word-addressed memory that a Cpu executes against. The
// Cpu itself holds no memory; code and data both live here, with no
// protection between them.
//
// One or more components (structs) can be connected to a Bus by means of
// a pointer; e.g. Cpu.Bus = &Bus{}.
type Bus struct {
	Words [Size]uint16 // zeroed on init
}

// Read returns the word at addr, wrapping past the end of memory.
func (b *Bus) Read(addr uint16) uint16 {
	return b.Words[addr%Size]
}

// Write stores val at addr, wrapping past the end of memory.
func (b *Bus) Write(addr uint16, val uint16) {
	b.Words[addr%Size] = val
}

// Clear zeroes every word.
func (b *Bus) Clear() {
	clear(b.Words[:])
}

// LoadImage copies a little-endian byte image into memory starting at
// word 0. Two bytes encode one word, low byte first. An image larger
// than memory is rejected outright; an odd-length image loads with the
// trailing byte dropped and reports ErrOddImage.
//
// Existing memory outside the image is left alone; callers wanting a
// clean machine should Clear first.
func (b *Bus) LoadImage(data []byte) error {
	if len(data) > 2*Size {
		return fmt.Errorf("%w: %d bytes, %d words available", ErrImageTooBig, len(data), Size)
	}
	var err error
	if len(data)%2 != 0 {
		err = ErrOddImage
		data = data[:len(data)-1]
	}
	for i := 0; i < len(data); i += 2 {
		b.Words[i/2] = binary.LittleEndian.Uint16(data[i:])
	}
	return err
}

// Image returns the whole of memory in the same byte format LoadImage
// consumes: word n at bytes 2n (low) and 2n+1 (high).
func (b *Bus) Image() []byte {
	out := make([]byte, 2*Size)
	for i, w := range b.Words {
		binary.LittleEndian.PutUint16(out[2*i:], w)
	}
	return out
}
