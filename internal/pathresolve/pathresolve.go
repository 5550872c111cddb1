// Package pathresolve implements absolute-path resolution against the
// directory tree (§4.6): walking a slash-separated path component by
// component from a known root inode, and splitting a path into its parent
// directory and final component for create/mkdir/unlink/rmdir.
//
// Grounded on the teacher's driver/driver.go (getObjectAtPathNoFollow) and
// basedriver/driver.go (NormalizePath), stripped of symlink-following:
// TFS has no links (spec.md §1 Non-goals), so the walk is a plain,
// non-recursive loop over dirent.Lookup.
package pathresolve

import (
	"strings"

	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/dirent"
	"github.com/tinytfs/tfs/internal/inode"
	"github.com/tinytfs/tfs/internal/layout"
	"github.com/tinytfs/tfs/internal/tfserr"
)

// Resolve walks path component by component starting at rootIno, returning
// the inode number of the final component. The empty path and "/" both
// resolve to rootIno.
func Resolve(dev *block.Device, store *inode.Store, path string, rootIno uint32) (uint32, error) {
	if len(path) > layout.MaxPathLength {
		return 0, tfserr.ErrNameTooLong
	}

	components, err := split(path)
	if err != nil {
		return 0, err
	}

	current := rootIno
	for _, name := range components {
		currentInode, err := store.Read(current)
		if err != nil {
			return 0, err
		}
		if currentInode.Type != inode.TypeDir {
			return 0, tfserr.ErrNotADirectory
		}

		d, err := dirent.Lookup(dev, &currentInode, name)
		if err != nil {
			return 0, err
		}
		current = d.Ino
	}

	return current, nil
}

// Split divides an absolute path into its parent directory path and final
// component name, per §4.6's "scan backwards from the end to the last /"
// rule. For a child of the root the parent path is "/".
func Split(path string) (parentPath string, name string, err error) {
	if len(path) > layout.MaxPathLength {
		return "", "", tfserr.ErrNameTooLong
	}

	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return "", "", tfserr.ErrInvalidArgument.WithMessage("path must be absolute: " + path)
	}

	name = trimmed[idx+1:]
	if name == "" {
		return "", "", tfserr.ErrInvalidArgument.WithMessage("path has no final component: " + path)
	}
	if len(name) > layout.MaxNameLength {
		return "", "", tfserr.ErrNameTooLong
	}

	if idx == 0 {
		return "/", name, nil
	}
	return trimmed[:idx], name, nil
}

// split breaks an absolute path into its non-empty components. A leading
// "/" is a separator, not a component; "/" itself yields no components.
func split(path string) ([]string, error) {
	if path == "" || path == "/" {
		return nil, nil
	}
	if path[0] != '/' {
		return nil, tfserr.ErrInvalidArgument.WithMessage("path must be absolute: " + path)
	}

	parts := strings.Split(path, "/")
	components := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if len(p) > layout.MaxNameLength {
			return nil, tfserr.ErrNameTooLong
		}
		components = append(components, p)
	}
	return components, nil
}
