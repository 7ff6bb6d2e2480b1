// Package dfs abstracts the distributed filesystem that holds job results.
//
// The service never mutates result data; it only resolves paths, lists
// directories, and reads object bytes. The client is created once at
// startup and shared across requests.
package dfs

import (
	"io"
	"os"
)

// FileSystem is the read-only view of the distributed filesystem.
// Implementations must report missing paths with an error satisfying
// errors.Is(err, os.ErrNotExist).
type FileSystem interface {
	// Stat returns metadata for the object or directory at path.
	Stat(path string) (os.FileInfo, error)

	// ReadDir lists the immediate children of a directory, in the
	// enumeration order the filesystem returns them.
	ReadDir(path string) ([]os.FileInfo, error)

	// Open opens the object at path for reading.
	Open(path string) (io.ReadCloser, error)
}
