package nfsmount

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"

	billy "github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// handleCacheSize bounds the NFS file handle cache.
const handleCacheSize = 4096

// Server is a running NFS server.
type Server struct {
	listener net.Listener
	port     int
	done     chan error
}

// NewServer starts an NFS server for fs. An empty addr listens on an
// ephemeral localhost port.
func NewServer(fs billy.Filesystem, addr string, log zerolog.Logger) (*Server, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nfs listen: %w", err)
	}
	s := &Server{
		listener: listener,
		port:     listener.Addr().(*net.TCPAddr).Port,
		done:     make(chan error, 1),
	}

	handler := nfshelper.NewCachingHandler(nfshelper.NewNullAuthHandler(fs), handleCacheSize)
	go func() {
		err := nfs.Serve(listener, handler)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Err(err).Int("port", s.port).Msg("nfs server stopped")
		}
		s.done <- err
	}()

	log.Info().Int("port", s.port).Msg("nfs server listening")
	return s, nil
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.port
}

// Close stops the server.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Wait blocks until the server stops or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case err := <-s.done:
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mountCommand builds the read-only system mount of localhost:port.
func mountCommand(goos string, port int, mountpoint string) (*exec.Cmd, error) {
	var opts string
	switch goos {
	case "darwin":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,locallocks,noresvport,rdonly", port, port)
	case "linux":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,local_lock=all,nolock,ro", port, port)
	default:
		return nil, fmt.Errorf("unsupported OS: %s", goos)
	}
	return exec.Command("sudo", "mount", "-t", "nfs", "-o", opts, "localhost:/", mountpoint), nil
}

// Mount mounts the server on port at mountpoint. Requires sudo.
func Mount(port int, mountpoint string) error {
	cmd, err := mountCommand(runtime.GOOS, port, mountpoint)
	if err != nil {
		return err
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount failed: %w\n%s", err, string(output))
	}
	return nil
}

// Unmount unmounts mountpoint.
func Unmount(mountpoint string) error {
	if runtime.GOOS == "darwin" {
		// user NFS mounts come off without sudo
		if err := exec.Command("diskutil", "unmount", mountpoint).Run(); err == nil {
			return nil
		}
	}
	output, err := exec.Command("sudo", "umount", mountpoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("unmount failed: %w\n%s", err, string(output))
	}
	return nil
}
