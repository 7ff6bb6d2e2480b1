// Package results resolves logical result paths against the distributed
// filesystem and streams their bytes as one continuous sequence.
package results

import (
	"io"
	"log/slog"
	"os"
	"path"

	"gridbatch/internal/apperrors"
	"gridbatch/internal/dfs"
)

// streamBufferSize is the fixed per-request transfer buffer.
const streamBufferSize = 4096

// Streamer resolves result paths and streams their content.
type Streamer struct {
	fs dfs.FileSystem
}

// NewStreamer creates a streamer over the given filesystem.
func NewStreamer(fs dfs.FileSystem) *Streamer {
	return &Streamer{fs: fs}
}

// ResultSet is a resolved result path with a precomputed total byte length.
// The length is known before any byte is streamed so the transport can
// commit to a Content-Length header.
type ResultSet struct {
	fs    dfs.FileSystem
	paths []string
	size  int64
}

// Size returns the total byte length of the result set.
func (rs *ResultSet) Size() int64 {
	return rs.size
}

// Resolve resolves a logical result path. A single object yields a one-entry
// set of its own length. A directory yields its immediate non-directory
// children in enumeration order; sub-directories are skipped, not recursed.
func (s *Streamer) Resolve(resultPath string) (*ResultSet, error) {
	info, err := s.fs.Stat(resultPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("results path", resultPath)
		}
		return nil, apperrors.Internal("dfs.stat", err)
	}

	logger := slog.With("path", resultPath)

	if !info.IsDir() {
		logger.Info("Results path is a single file", "bytes", info.Size())
		return &ResultSet{
			fs:    s.fs,
			paths: []string{resultPath},
			size:  info.Size(),
		}, nil
	}

	children, err := s.fs.ReadDir(resultPath)
	if err != nil {
		return nil, apperrors.Internal("dfs.readdir", err)
	}

	rs := &ResultSet{fs: s.fs}
	for _, child := range children {
		if child.IsDir() {
			continue
		}
		rs.paths = append(rs.paths, path.Join(resultPath, child.Name()))
		rs.size += child.Size()
	}

	logger.Info("Results path is a directory", "children", len(children), "files", len(rs.paths), "bytes", rs.size)
	return rs, nil
}

// WriteTo streams every file in the set into w, concatenated with no
// delimiter, in resolution order. The filesystem handle and transfer buffer
// are released on both success and failure paths.
func (rs *ResultSet) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, streamBufferSize)

	var written int64
	for _, p := range rs.paths {
		n, err := rs.streamFile(p, w, buf)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (rs *ResultSet) streamFile(p string, w io.Writer, buf []byte) (int64, error) {
	slog.Info("Streaming result file", "path", p)

	file, err := rs.fs.Open(p)
	if err != nil {
		return 0, apperrors.Internal("dfs.open", err)
	}
	defer file.Close()

	n, err := io.CopyBuffer(w, file, buf)
	if err != nil {
		return n, apperrors.Internal("dfs.read", err)
	}
	return n, nil
}
