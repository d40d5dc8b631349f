package httpapi

import (
	"io"
	"os"
)

// tempFileBuf adapts a temporary file to both coordinator.ByteSource
// and coordinator.ByteSink, the way the original command parser
// adapted tempfile.TemporaryFile to its duck-typed read/write/seek
// parameter.
type tempFileBuf struct {
	f *os.File
}

func newTempFileBuf() (*tempFileBuf, error) {
	f, err := os.CreateTemp("", "nameserver-*")
	if err != nil {
		return nil, err
	}
	return &tempFileBuf{f: f}, nil
}

func (b *tempFileBuf) Write(p []byte) (int, error) { return b.f.Write(p) }
func (b *tempFileBuf) Read(p []byte) (int, error)  { return b.f.Read(p) }

func (b *tempFileBuf) Rewind() error {
	_, err := b.f.Seek(0, io.SeekStart)
	return err
}

// Close releases the underlying temp file and removes it from disk.
func (b *tempFileBuf) Close() error {
	name := b.f.Name()
	closeErr := b.f.Close()
	if removeErr := os.Remove(name); removeErr != nil && closeErr == nil {
		return removeErr
	}
	return closeErr
}
