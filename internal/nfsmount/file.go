package nfsmount

import (
	"io"
)

// entryFile is a read-only billy.File over the bytes of a layout entry.
type entryFile struct {
	name string
	data []byte
	pos  int64
}

func (f *entryFile) Name() string { return f.name }

func (f *entryFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *entryFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *entryFile) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		pos = int64(len(f.data)) + offset
	}
	f.pos = max(pos, 0)
	return f.pos, nil
}

func (f *entryFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *entryFile) Truncate(int64) error      { return errReadOnly }
func (f *entryFile) Lock() error               { return nil }
func (f *entryFile) Unlock() error             { return nil }
func (f *entryFile) Close() error              { return nil }
