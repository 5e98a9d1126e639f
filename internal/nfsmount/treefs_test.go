package nfsmount

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/wfsproxy-manager/api"
	"github.com/agentic-research/wfsproxy-manager/internal/export"
	"github.com/agentic-research/wfsproxy-manager/internal/store"
)

func newTestFS(t *testing.T) *TreeFS {
	t.Helper()
	raw, err := os.ReadFile("../store/testdata/service.json")
	require.NoError(t, err)
	var cfg api.ServiceConfig
	require.NoError(t, json.Unmarshal(raw, &cfg))
	s := store.NewStore()
	s.Put(&cfg)
	l, err := export.Service(s.Snapshot(), "inspire", nil)
	require.NoError(t, err)
	return NewTreeFS(l)
}

const streetPath = "/building/app:Building/app:address/app:street.json"

func TestStatRoot(t *testing.T) {
	fs := newTestFS(t)

	info, err := fs.Stat("/")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "/", info.Name())
}

func TestStatFile(t *testing.T) {
	fs := newTestFS(t)

	info, err := fs.Stat(streetPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, "app:street.json", info.Name())
	assert.Positive(t, info.Size())
	assert.Equal(t, os.FileMode(0o444), info.Mode())
}

func TestStatNotFound(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Stat("/nonexistent")
	assert.True(t, os.IsNotExist(err))
}

func TestReadDir(t *testing.T) {
	fs := newTestFS(t)

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Equal(t, []string{"_service.json", "building", "parcel"}, names)

	entries, err = fs.ReadDir("building/app:Building/app:address")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = fs.ReadDir(streetPath)
	assert.Error(t, err)
}

func TestOpenAndRead(t *testing.T) {
	fs := newTestFS(t)

	f, err := fs.Open(streetPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	var targets api.MimeMappings
	require.NoError(t, json.Unmarshal(data, &targets))
	assert.Equal(t, "Street", targets["text/html"][0].Name)

	pos, err := f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.Zero(t, pos)

	buf := make([]byte, 1)
	n, err := f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "{", string(buf[:n]))
}

func TestOpenDirectory(t *testing.T) {
	fs := newTestFS(t)
	_, err := fs.Open("/building")
	assert.Error(t, err)
}

func TestReadOnly(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Create("newfile.txt")
	assert.Equal(t, errReadOnly, err)
	_, err = fs.OpenFile(streetPath, os.O_RDWR, 0)
	assert.Equal(t, errReadOnly, err)
	assert.Equal(t, errReadOnly, fs.MkdirAll("/newdir", 0o755))
	assert.Equal(t, errReadOnly, fs.Remove(streetPath))
	assert.Equal(t, errReadOnly, fs.Rename("/building", "/renamed"))

	f, err := fs.Open(streetPath)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	assert.Equal(t, errReadOnly, err)
}

func TestSwap(t *testing.T) {
	fs := newTestFS(t)

	s := store.NewStore()
	s.Put(&api.ServiceConfig{ID: "empty"})
	l, err := export.Service(s.Snapshot(), "empty", nil)
	require.NoError(t, err)
	fs.Swap(l)

	_, err = fs.Stat("/building")
	assert.True(t, os.IsNotExist(err))
	_, err = fs.Stat("/_service.json")
	assert.NoError(t, err)
}

func TestChroot(t *testing.T) {
	fs := newTestFS(t)
	sub, err := fs.Chroot("building")
	require.NoError(t, err)
	info, err := sub.Stat("_mapping.json")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestMountCommand(t *testing.T) {
	cmd, err := mountCommand("linux", 2049, "/mnt/wfs")
	require.NoError(t, err)
	assert.Equal(t, []string{"sudo", "mount", "-t", "nfs", "-o",
		"port=2049,mountport=2049,vers=3,tcp,local_lock=all,nolock,ro", "localhost:/", "/mnt/wfs"}, cmd.Args)

	_, err = mountCommand("plan9", 2049, "/mnt/wfs")
	assert.Error(t, err)
}

func TestNFSServerStarts(t *testing.T) {
	srv, err := NewServer(newTestFS(t), "", zerolog.Nop())
	require.NoError(t, err)

	assert.Positive(t, srv.Port())
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", srv.Port()))
	require.NoError(t, err)
	_ = conn.Close()

	require.NoError(t, srv.Close())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NotErrorIs(t, srv.Wait(ctx), context.DeadlineExceeded)
}
