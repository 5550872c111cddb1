// Package fuseadapter wires an fsops.FileSystem into
// github.com/hanwen/go-fuse/v2's fuse/pathfs.FileSystem interface, which is
// path-keyed (name string, not an inode handle) and therefore maps almost
// one-to-one onto the host callback list in §6: GetAttr, OpenDir, Mkdir,
// Rmdir, Create, Open, Unlink, Truncate, Utimens. The node-based fs/nodefs
// flavor of the same library (the one KarpelesLab-squashfs demonstrates)
// would need an extra inode-keyed indirection layer that TFS's own
// path-resolution design doesn't require.
package fuseadapter

import (
	"errors"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"

	"github.com/tinytfs/tfs/internal/fsops"
	"github.com/tinytfs/tfs/internal/inode"
	"github.com/tinytfs/tfs/internal/tfserr"
)

// FS adapts an fsops.FileSystem to pathfs.FileSystem. Every unimplemented
// method (symlinks, xattrs, hard links) falls back to
// pathfs.NewDefaultFileSystem's ENOSYS stubs, matching the Non-goals in
// spec.md §1.
type FS struct {
	pathfs.FileSystem
	ops *fsops.FileSystem
}

// New wraps ops for mounting with pathfs.NewPathNodeFs.
func New(ops *fsops.FileSystem) *FS {
	return &FS{FileSystem: pathfs.NewDefaultFileSystem(), ops: ops}
}

// toPath turns pathfs's root-relative name ("", "a", "a/b") into the
// absolute paths fsops and pathresolve expect.
func toPath(name string) string {
	if name == "" {
		return "/"
	}
	return "/" + name
}

func status(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	switch {
	case errors.Is(err, tfserr.ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, tfserr.ErrDuplicateEntry):
		return fuse.Status(syscall.EEXIST)
	case errors.Is(err, tfserr.ErrNoSpace):
		return fuse.Status(syscall.ENOSPC)
	case errors.Is(err, tfserr.ErrFileTooBig):
		return fuse.Status(syscall.EFBIG)
	case errors.Is(err, tfserr.ErrCorruptImage):
		return fuse.EIO
	case errors.Is(err, tfserr.ErrDirectoryNotEmpty):
		return fuse.Status(syscall.ENOTEMPTY)
	case errors.Is(err, tfserr.ErrNotADirectory):
		return fuse.ENOTDIR
	case errors.Is(err, tfserr.ErrIsADirectory):
		return fuse.Status(syscall.EISDIR)
	case errors.Is(err, tfserr.ErrInvalidArgument):
		return fuse.EINVAL
	case errors.Is(err, tfserr.ErrNameTooLong):
		return fuse.Status(syscall.ENAMETOOLONG)
	default:
		return fuse.EIO
	}
}

func toAttr(vs inode.VStat) *fuse.Attr {
	return &fuse.Attr{
		Ino:     uint64(vs.Ino),
		Size:    uint64(vs.Size),
		Blocks:  uint64(vs.Blocks),
		Blksize: uint32(vs.BlockSize),
		Mode:    vs.Mode,
		Nlink:   1,
		Mtime:   uint64(vs.ModTime),
		Ctime:   uint64(vs.ModTime),
		Atime:   uint64(vs.ModTime),
	}
}

// GetAttr implements stat/getattr, per §4.9.
func (f *FS) GetAttr(name string, _ *fuse.Context) (*fuse.Attr, fuse.Status) {
	vs, err := f.ops.GetAttr(toPath(name))
	if err != nil {
		return nil, status(err)
	}
	return toAttr(vs), fuse.OK
}

// OpenDir implements readdir, per §4.9.
func (f *FS) OpenDir(name string, _ *fuse.Context) ([]fuse.DirEntry, fuse.Status) {
	var entries []fuse.DirEntry
	err := f.ops.ReadDir(toPath(name), func(childName string) error {
		entries = append(entries, fuse.DirEntry{Name: childName})
		return nil
	})
	if err != nil {
		return nil, status(err)
	}
	return entries, fuse.OK
}

// Mkdir implements mkdir.
func (f *FS) Mkdir(name string, mode uint32, _ *fuse.Context) fuse.Status {
	return status(f.ops.Mkdir(toPath(name), mode))
}

// Rmdir implements rmdir.
func (f *FS) Rmdir(name string, _ *fuse.Context) fuse.Status {
	return status(f.ops.Rmdir(toPath(name)))
}

// Unlink implements unlink.
func (f *FS) Unlink(name string, _ *fuse.Context) fuse.Status {
	return status(f.ops.Unlink(toPath(name)))
}

// Truncate implements truncate.
func (f *FS) Truncate(name string, size uint64, _ *fuse.Context) fuse.Status {
	return status(f.ops.Truncate(toPath(name), int64(size)))
}

// Utimens implements utimens.
func (f *FS) Utimens(name string, atime, mtime *time.Time, _ *fuse.Context) fuse.Status {
	var a, m time.Time
	if atime != nil {
		a = *atime
	}
	if mtime != nil {
		m = *mtime
	}
	return status(f.ops.SetTimes(toPath(name), a, m))
}

// Create implements create: it makes the file, then opens it for I/O.
func (f *FS) Create(name string, _ uint32, mode uint32, context *fuse.Context) (nodefs.File, fuse.Status) {
	if err := f.ops.Create(toPath(name), mode); err != nil {
		return nil, status(err)
	}
	return f.Open(name, 0, context)
}

// Open implements open, returning a File that reads and writes through ops.
func (f *FS) Open(name string, _ uint32, _ *fuse.Context) (nodefs.File, fuse.Status) {
	if _, err := f.ops.GetAttr(toPath(name)); err != nil {
		return nil, status(err)
	}
	return &File{File: nodefs.NewDefaultFile(), ops: f.ops, path: toPath(name)}, fuse.OK
}

// File adapts fsops.FileSystem's Read/Write/Truncate to nodefs.File. It
// holds no buffered state of its own: every call goes straight to disk,
// matching §5's "no in-memory cache" contract.
type File struct {
	nodefs.File
	ops  *fsops.FileSystem
	path string
}

// Read implements read, per §4.8.
func (fh *File) Read(dest []byte, off int64) (fuse.ReadResult, fuse.Status) {
	n, err := fh.ops.Read(fh.path, dest, len(dest), off)
	if err != nil {
		return nil, status(err)
	}
	return fuse.ReadResultData(dest[:n]), fuse.OK
}

// Write implements write, per §4.7.
func (fh *File) Write(data []byte, off int64) (uint32, fuse.Status) {
	n, err := fh.ops.Write(fh.path, data, len(data), off)
	if err != nil {
		return uint32(n), status(err)
	}
	return uint32(n), fuse.OK
}

// Truncate implements ftruncate on an already-open file handle.
func (fh *File) Truncate(size uint64) fuse.Status {
	return status(fh.ops.Truncate(fh.path, int64(size)))
}

// Flush and Release are no-ops: every Write already persists its inode
// before returning, so there is nothing left to flush on close.
func (fh *File) Flush() fuse.Status {
	return fuse.OK
}

func (fh *File) Release() {}
