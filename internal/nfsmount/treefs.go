// Package nfsmount serves a service layout over NFS so the property trees
// can be browsed with ordinary file tools.
package nfsmount

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/wfsproxy-manager/internal/export"
)

var errReadOnly = errors.New("read-only filesystem")

// TreeFS is a read-only billy.Filesystem over an export.Layout.
// The layout can be replaced while the filesystem is served.
type TreeFS struct {
	layout atomic.Pointer[export.Layout]
}

// NewTreeFS creates a filesystem serving l.
func NewTreeFS(l *export.Layout) *TreeFS {
	fs := &TreeFS{}
	fs.layout.Store(l)
	return fs
}

// Swap replaces the served layout.
func (fs *TreeFS) Swap(l *export.Layout) {
	fs.layout.Store(l)
}

func (fs *TreeFS) lookup(op, filename string) (*export.Layout, *export.Entry, error) {
	l := fs.layout.Load()
	e, ok := l.Lookup(filename)
	if !ok {
		return l, nil, &os.PathError{Op: op, Path: filename, Err: os.ErrNotExist}
	}
	return l, e, nil
}

// --- billy.Basic ---

func (fs *TreeFS) Create(string) (billy.File, error) {
	return nil, errReadOnly
}

func (fs *TreeFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *TreeFS) OpenFile(filename string, flag int, _ os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, errReadOnly
	}
	_, e, err := fs.lookup("open", filename)
	if err != nil {
		return nil, err
	}
	if e.Dir {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errors.New("is a directory")}
	}
	return &entryFile{name: e.Name(), data: e.Data}, nil
}

func (fs *TreeFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *TreeFS) Rename(string, string) error { return errReadOnly }
func (fs *TreeFS) Remove(string) error         { return errReadOnly }

func (fs *TreeFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *TreeFS) TempFile(string, string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *TreeFS) ReadDir(path string) ([]os.FileInfo, error) {
	l, e, err := fs.lookup("readdir", path)
	if err != nil {
		return nil, err
	}
	if !e.Dir {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: errors.New("not a directory")}
	}
	kids := l.Children(e.Path)
	infos := make([]os.FileInfo, 0, len(kids))
	for _, k := range kids {
		infos = append(infos, entryInfo(k, l.ModTime))
	}
	return infos, nil
}

func (fs *TreeFS) MkdirAll(string, os.FileMode) error { return errReadOnly }

// --- billy.Symlink ---

func (fs *TreeFS) Lstat(filename string) (os.FileInfo, error) {
	l, e, err := fs.lookup("lstat", filename)
	if err != nil {
		return nil, err
	}
	return entryInfo(e, l.ModTime), nil
}

func (fs *TreeFS) Symlink(string, string) error { return billy.ErrNotSupported }

func (fs *TreeFS) Readlink(string) (string, error) { return "", billy.ErrNotSupported }

// --- billy.Chroot ---

func (fs *TreeFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *TreeFS) Root() string { return "/" }

// --- billy.Capable ---

func (fs *TreeFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

func entryInfo(e *export.Entry, modTime time.Time) os.FileInfo {
	mode := os.FileMode(0o444)
	if e.Dir {
		mode = os.ModeDir | 0o555
	}
	return &staticFileInfo{
		name:    e.Name(),
		size:    int64(len(e.Data)),
		mode:    mode,
		modTime: modTime,
	}
}

type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() any           { return nil }

var (
	_ billy.Filesystem = (*TreeFS)(nil)
	_ billy.Capable    = (*TreeFS)(nil)
	_ billy.File       = (*entryFile)(nil)
)
