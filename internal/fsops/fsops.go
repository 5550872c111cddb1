// Package fsops implements the high-level TFS operations described in §4.9:
// mkfs/mount, getattr, mkdir/create, rmdir/unlink, read/write, and readdir.
// It is the orchestration layer that resolves paths and then drives the
// allocator, inode store, and directory package in the sequence
// original_source/tfs.c's tfs_* callbacks use, generalized the way the
// teacher's driver/driver.go and driver/file.go orchestrate
// DriverImplementation calls.
package fsops

import (
	"fmt"
	"time"

	"github.com/tinytfs/tfs/internal/allocator"
	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/dirent"
	"github.com/tinytfs/tfs/internal/inode"
	"github.com/tinytfs/tfs/internal/layout"
	"github.com/tinytfs/tfs/internal/pathresolve"
	"github.com/tinytfs/tfs/internal/superblock"
	"github.com/tinytfs/tfs/internal/tfserr"
)

// FileSystem is a mounted TFS image: a block device plus the allocator and
// inode store built on top of it. There is no in-memory cache of inodes,
// bitmaps, or directory blocks (§5); every operation rereads from disk and
// every mutation is persisted before it returns.
type FileSystem struct {
	dev   *block.Device
	alloc *allocator.Allocator
	store *inode.Store
}

// Mount opens (formatting if necessary) the image at path and returns a
// ready-to-use FileSystem, per §4.9 "mount init".
func Mount(path string) (*FileSystem, error) {
	dev, err := superblock.EnsureMounted(path)
	if err != nil {
		return nil, err
	}
	return newFileSystem(dev)
}

// MountDevice builds a FileSystem on top of an already-open, already-
// formatted device. Used by tests and by in-memory images.
func MountDevice(dev *block.Device) (*FileSystem, error) {
	sb, err := superblock.Read(dev)
	if err != nil {
		return nil, err
	}
	if !sb.Valid() {
		if err := superblock.Format(dev); err != nil {
			return nil, err
		}
	}
	return newFileSystem(dev)
}

func newFileSystem(dev *block.Device) (*FileSystem, error) {
	alloc, err := allocator.Load(dev)
	if err != nil {
		return nil, err
	}
	return &FileSystem{dev: dev, alloc: alloc, store: inode.NewStore(dev)}, nil
}

// Close releases the backing device.
func (fs *FileSystem) Close() error {
	return fs.dev.Close()
}

func (fs *FileSystem) resolve(path string) (uint32, error) {
	return pathresolve.Resolve(fs.dev, fs.store, path, layout.RootInode)
}

// GetAttr resolves path and returns the cached attribute view from its
// inode.
func (fs *FileSystem) GetAttr(path string) (inode.VStat, error) {
	ino, err := fs.resolve(path)
	if err != nil {
		return inode.VStat{}, err
	}

	in, err := fs.store.Read(ino)
	if err != nil {
		return inode.VStat{}, err
	}
	return in.VStat, nil
}

// ReadDir resolves path to a directory inode and invokes fn once per live
// entry's name, per §4.9 readdir.
func (fs *FileSystem) ReadDir(path string, fn func(name string) error) error {
	ino, err := fs.resolve(path)
	if err != nil {
		return err
	}

	dirInode, err := fs.store.Read(ino)
	if err != nil {
		return err
	}
	if dirInode.Type != inode.TypeDir {
		return tfserr.ErrNotADirectory
	}

	return dirent.ForEachLive(fs.dev, &dirInode, func(d dirent.Dirent) error {
		return fn(d.Name)
	})
}

// Mkdir creates a new, empty directory at path with the given mode bits.
//
// Link-count policy (§9 Open Question, resolved in DESIGN.md): the parent's
// Link is incremented because the new child is itself a directory (its
// ".." entry would point back at the parent under traditional Unix
// semantics); file children added via Create do not bump the parent's Link.
func (fs *FileSystem) Mkdir(path string, mode uint32) error {
	return fs.createChild(path, inode.TypeDir, mode)
}

// Create creates a new, empty regular file at path with the given mode bits.
func (fs *FileSystem) Create(path string, mode uint32) error {
	return fs.createChild(path, inode.TypeFile, mode)
}

func (fs *FileSystem) createChild(path string, childType inode.Type, mode uint32) error {
	parentPath, name, err := pathresolve.Split(path)
	if err != nil {
		return err
	}

	parentIno, err := fs.resolve(parentPath)
	if err != nil {
		return err
	}

	parentInode, err := fs.store.Read(parentIno)
	if err != nil {
		return err
	}
	if parentInode.Type != inode.TypeDir {
		return tfserr.ErrNotADirectory
	}

	// Reject duplicates before allocating anything, so a failed create
	// never leaves a bitmap bit set with nothing referencing it (§7).
	if _, err := dirent.Lookup(fs.dev, &parentInode, name); err == nil {
		return tfserr.ErrDuplicateEntry
	} else if err != tfserr.ErrNotFound {
		return err
	}

	childIno, err := fs.alloc.AllocateInode()
	if err != nil {
		return err
	}

	relBlock, err := fs.alloc.AllocateDataBlock()
	if err != nil {
		fs.alloc.FreeInode(childIno)
		return err
	}
	childBlockNo := allocator.AbsoluteBlock(relBlock)

	rollback := func() {
		fs.alloc.FreeInode(childIno)
		fs.alloc.FreeDataBlock(relBlock)
	}

	direct := inode.NewFreeDirectPtr()
	var child inode.Inode

	switch childType {
	case inode.TypeDir:
		direct[0] = int32(childBlockNo)
		if err := fs.dev.WriteBlock(childBlockNo, make([]byte, layout.BlockSize)); err != nil {
			rollback()
			return err
		}
		child = inode.Inode{
			Ino: childIno, Valid: true, Type: inode.TypeDir,
			Size: layout.BlockSize, Link: 2, DirectPtr: direct,
			VStat: inode.VStat{
				Mode: (uint32(0o040000)) | (mode & 0o7777),
				Size: layout.BlockSize, BlockSize: layout.BlockSize,
				Blocks: 1, Ino: childIno,
			},
		}
	case inode.TypeFile:
		direct[0] = int32(childBlockNo)
		if err := fs.dev.WriteBlock(childBlockNo, make([]byte, layout.BlockSize)); err != nil {
			rollback()
			return err
		}
		child = inode.Inode{
			Ino: childIno, Valid: true, Type: inode.TypeFile,
			Size: 0, Link: 1, DirectPtr: direct,
			VStat: inode.VStat{
				Mode: (uint32(0o100000)) | (mode & 0o7777),
				Size: 0, BlockSize: layout.BlockSize,
				Blocks: 1, Ino: childIno,
			},
		}
	default:
		rollback()
		return fmt.Errorf("unknown inode type %d", childType)
	}

	if err := fs.store.Write(&child); err != nil {
		rollback()
		return err
	}

	if err := dirent.Add(fs.dev, fs.alloc, fs.store, &parentInode, childIno, name); err != nil {
		// child is already persisted with Valid=true (invariant 2 requires
		// inode_bitmap[i]=1 <=> inode_table[i].valid=1), so the bitmap bits
		// can't be freed until that's undone on disk too.
		child.Valid = false
		if werr := fs.store.Write(&child); werr != nil {
			return fmt.Errorf("rolling back child inode after directory full: %w (original error: %s)", werr, err)
		}
		rollback()
		return err
	}

	if childType == inode.TypeDir {
		parentInode.Link++
		if err := fs.store.Write(&parentInode); err != nil {
			return fmt.Errorf("persisting parent link count after mkdir: %w", err)
		}
	}

	return nil
}

// freeInodeBlocks clears every allocated data-bitmap bit referenced by in's
// DirectPtr and resets those slots to the sentinel, per §9 "Direct pointer
// sentinel on removal".
// Scans every slot rather than stopping at the first sentinel: Write backs
// DirectPtr's density invariant by construction, but a full scan here costs
// nothing and means a stray gap leaks no bits instead of leaking all blocks
// past it.
func (fs *FileSystem) freeInodeBlocks(in *inode.Inode) error {
	for i, blockNo := range in.DirectPtr {
		if blockNo == layout.NoBlock {
			continue
		}
		if err := fs.alloc.FreeDataBlock(allocator.RelativeBlock(uint32(blockNo))); err != nil {
			return err
		}
		in.DirectPtr[i] = layout.NoBlock
	}
	return nil
}

// Unlink removes a regular file.
func (fs *FileSystem) Unlink(path string) error {
	return fs.removeChild(path, inode.TypeFile)
}

// Rmdir removes an empty directory. A non-empty directory is rejected with
// tfserr.ErrDirectoryNotEmpty (§9 "Non-empty directory removal").
func (fs *FileSystem) Rmdir(path string) error {
	return fs.removeChild(path, inode.TypeDir)
}

func (fs *FileSystem) removeChild(path string, wantType inode.Type) error {
	parentPath, name, err := pathresolve.Split(path)
	if err != nil {
		return err
	}

	parentIno, err := fs.resolve(parentPath)
	if err != nil {
		return err
	}

	parentInode, err := fs.store.Read(parentIno)
	if err != nil {
		return err
	}

	targetDirent, err := dirent.Lookup(fs.dev, &parentInode, name)
	if err != nil {
		return err
	}

	targetInode, err := fs.store.Read(targetDirent.Ino)
	if err != nil {
		return err
	}

	if targetInode.Type != wantType {
		if wantType == inode.TypeDir {
			return tfserr.ErrNotADirectory
		}
		return tfserr.ErrIsADirectory
	}

	if wantType == inode.TypeDir {
		empty, err := dirent.IsEmpty(fs.dev, &targetInode)
		if err != nil {
			return err
		}
		if !empty {
			return tfserr.ErrDirectoryNotEmpty
		}
	}

	if err := fs.freeInodeBlocks(&targetInode); err != nil {
		return err
	}
	targetInode.Valid = false
	if err := fs.store.Write(&targetInode); err != nil {
		return err
	}
	if err := fs.alloc.FreeInode(targetInode.Ino); err != nil {
		return err
	}

	if err := dirent.Remove(fs.dev, &parentInode, name); err != nil {
		return err
	}

	if wantType == inode.TypeDir && parentInode.Link > 0 {
		parentInode.Link--
		if err := fs.store.Write(&parentInode); err != nil {
			return fmt.Errorf("persisting parent link count after rmdir: %w", err)
		}
	}

	return nil
}

// Read copies min(size, fileSize-offset) bytes starting at offset into buf,
// which must be at least size bytes long, and returns the number of bytes
// copied. Reading at or past end-of-file returns 0 bytes and no error,
// matching write's refusal to punch holes (§4.8, supplementing the stub
// left by the original implementation — see SPEC_FULL.md §12.1).
func (fs *FileSystem) Read(path string, buf []byte, size int, offset int64) (int, error) {
	ino, err := fs.resolve(path)
	if err != nil {
		return 0, err
	}

	in, err := fs.store.Read(ino)
	if err != nil {
		return 0, err
	}
	if in.Type != inode.TypeFile {
		return 0, tfserr.ErrIsADirectory
	}

	if offset >= in.Size {
		return 0, nil
	}
	if int64(size) > in.Size-offset {
		size = int(in.Size - offset)
	}
	if size <= 0 {
		return 0, nil
	}

	startBlock := int(offset / layout.BlockSize)
	startOff := int(offset % layout.BlockSize)

	blockBuf := make([]byte, layout.BlockSize)
	read := 0
	blockIdx := startBlock
	inBlockOff := startOff

	for read < size {
		ptr := in.DirectPtr[blockIdx]
		n := layout.BlockSize - inBlockOff
		if n > size-read {
			n = size - read
		}

		if ptr == layout.NoBlock {
			// A hole: contribute zero bytes, as no write ever allocated
			// this block.
			for i := 0; i < n; i++ {
				buf[read+i] = 0
			}
		} else {
			if err := fs.dev.ReadBlock(uint32(ptr), blockBuf); err != nil {
				return read, err
			}
			copy(buf[read:read+n], blockBuf[inBlockOff:inBlockOff+n])
		}

		read += n
		inBlockOff = 0
		blockIdx++
	}

	return read, nil
}

// Write copies size bytes from buf into the file at path starting at
// offset, allocating new data blocks on demand, and returns the number of
// bytes written. It rejects offset+size > layout.MaxFileSize with
// tfserr.ErrFileTooBig (§4.7).
func (fs *FileSystem) Write(path string, buf []byte, size int, offset int64) (int, error) {
	ino, err := fs.resolve(path)
	if err != nil {
		return 0, err
	}

	in, err := fs.store.Read(ino)
	if err != nil {
		return 0, err
	}
	if in.Type != inode.TypeFile {
		return 0, tfserr.ErrIsADirectory
	}

	if offset+int64(size) > layout.MaxFileSize {
		return 0, tfserr.ErrFileTooBig
	}
	if size <= 0 {
		return 0, nil
	}

	startBlock := int(offset / layout.BlockSize)
	startOff := int(offset % layout.BlockSize)

	// persist flushes the inode's current DirectPtr/Size/VStat to disk. It's
	// called after every newly allocated block, not just once at the end, so
	// that a failure partway through never leaves a data-bitmap bit set
	// without the inode referencing it (invariant 3) or vice versa (§7).
	persist := func() error {
		in.VStat.Blocks = int32(in.NumBlocksUsed())
		return fs.store.Write(&in)
	}

	written := 0

	// Writing at a gap (starting past a never-written block) would otherwise
	// leave DirectPtr with a live entry after an unset sentinel, violating
	// invariant 4 (§3/§8): back-fill every skipped slot with a zeroed
	// allocation before touching startBlock itself.
	for i := 0; i < startBlock; i++ {
		if in.DirectPtr[i] != layout.NoBlock {
			continue
		}
		relBlock, err := fs.alloc.AllocateDataBlock()
		if err != nil {
			persist()
			return written, err
		}
		absBlock := allocator.AbsoluteBlock(relBlock)
		if err := fs.dev.WriteBlock(absBlock, make([]byte, layout.BlockSize)); err != nil {
			fs.alloc.FreeDataBlock(relBlock)
			persist()
			return written, err
		}
		in.DirectPtr[i] = int32(absBlock)
		if err := persist(); err != nil {
			fs.alloc.FreeDataBlock(relBlock)
			in.DirectPtr[i] = layout.NoBlock
			return written, err
		}
	}

	blockBuf := make([]byte, layout.BlockSize)
	blockIdx := startBlock
	inBlockOff := startOff

	for written < size {
		n := layout.BlockSize - inBlockOff
		if n > size-written {
			n = size - written
		}
		fullBlock := inBlockOff == 0 && n == layout.BlockSize

		if in.DirectPtr[blockIdx] == layout.NoBlock {
			relBlock, err := fs.alloc.AllocateDataBlock()
			if err != nil {
				persist()
				return written, err
			}
			in.DirectPtr[blockIdx] = int32(allocator.AbsoluteBlock(relBlock))
			if err := persist(); err != nil {
				fs.alloc.FreeDataBlock(relBlock)
				in.DirectPtr[blockIdx] = layout.NoBlock
				return written, err
			}
		}

		absBlock := uint32(in.DirectPtr[blockIdx])

		if fullBlock {
			// Unnecessary read-before-overwrite skipped for full-block
			// writes, per §9.
			copy(blockBuf, buf[written:written+n])
		} else {
			if err := fs.dev.ReadBlock(absBlock, blockBuf); err != nil {
				persist()
				return written, err
			}
			copy(blockBuf[inBlockOff:inBlockOff+n], buf[written:written+n])
		}

		if err := fs.dev.WriteBlock(absBlock, blockBuf); err != nil {
			persist()
			return written, err
		}

		written += n
		inBlockOff = 0
		blockIdx++

		newEnd := offset + int64(written)
		if newEnd > in.Size {
			in.Size = newEnd
			in.VStat.Size = newEnd
		}
	}

	if err := persist(); err != nil {
		return written, err
	}

	return written, nil
}

// Truncate resizes the file at path to size bytes. Growing is a metadata-
// only no-op (matching the original implementation's stub); shrinking frees
// trailing data blocks and resets their DirectPtr slots to the sentinel,
// per §9 and §12.5 of SPEC_FULL.md.
func (fs *FileSystem) Truncate(path string, size int64) error {
	ino, err := fs.resolve(path)
	if err != nil {
		return err
	}

	in, err := fs.store.Read(ino)
	if err != nil {
		return err
	}
	if in.Type != inode.TypeFile {
		return tfserr.ErrIsADirectory
	}

	if size >= in.Size {
		in.Size = size
		in.VStat.Size = size
		return fs.store.Write(&in)
	}

	keepBlocks := int((size + layout.BlockSize - 1) / layout.BlockSize)
	for i := keepBlocks; i < layout.DirectPointersPerInode; i++ {
		if in.DirectPtr[i] == layout.NoBlock {
			break
		}
		if err := fs.alloc.FreeDataBlock(allocator.RelativeBlock(uint32(in.DirectPtr[i]))); err != nil {
			return err
		}
		in.DirectPtr[i] = layout.NoBlock
	}

	in.Size = size
	in.VStat.Size = size
	in.VStat.Blocks = int32(in.NumBlocksUsed())
	return fs.store.Write(&in)
}

// SetTimes persists mtime into the inode's cached attributes; atime is
// accepted and not stored. The original implementation never did this
// (utimens was an unconditional stub); TFS tracks the most recent mtime as
// part of VStat so getattr reflects it (§12.6 of SPEC_FULL.md).
func (fs *FileSystem) SetTimes(path string, atime, mtime time.Time) error {
	ino, err := fs.resolve(path)
	if err != nil {
		return err
	}
	in, err := fs.store.Read(ino)
	if err != nil {
		return err
	}
	_ = atime // accepted for interface symmetry with utimens(2); TFS tracks mtime only
	in.VStat.ModTime = mtime.Unix()
	return fs.store.Write(&in)
}
