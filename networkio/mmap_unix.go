//go:build unix

package networkio

import (
	"bytes"
	"os"

	"golang.org/x/sys/unix"
)

// MappedImage is a memory-mapped network image opened read-only, avoiding a
// full-file copy into the process heap for large persistent networks.
type MappedImage struct {
	data []byte
}

// OpenMapped mmaps path read-only and returns an io.Reader view over it via
// Reader. The caller must call Close when done to release the mapping.
func OpenMapped(path string) (*MappedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return &MappedImage{data: nil}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &MappedImage{data: data}, nil
}

// Reader returns a reader over the mapped bytes, suitable for Read.
func (m *MappedImage) Reader() *bytes.Reader {
	return bytes.NewReader(m.data)
}

// Close unmaps the image. The MappedImage must not be used afterward.
func (m *MappedImage) Close() error {
	if m.data == nil {
		return nil
	}
	return unix.Munmap(m.data)
}
