//go:build !unix

package networkio

import (
	"bytes"
	"os"
)

// MappedImage is a read-only view over a network image. On non-unix
// platforms this falls back to a plain in-memory read, since x/sys/unix's
// Mmap is unavailable.
type MappedImage struct {
	data []byte
}

// OpenMapped reads path fully into memory and returns a MappedImage over it.
func OpenMapped(path string) (*MappedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &MappedImage{data: data}, nil
}

// Reader returns a reader over the image bytes, suitable for Read.
func (m *MappedImage) Reader() *bytes.Reader {
	return bytes.NewReader(m.data)
}

// Close releases the backing buffer. The MappedImage must not be used
// afterward.
func (m *MappedImage) Close() error {
	m.data = nil
	return nil
}
