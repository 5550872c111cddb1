// Package dirent implements directory entries and the directory operations
// that manipulate them: lookup, add-with-growth, and tombstone-based
// removal (§4.5). Grounded on the teacher's drivers/unixv6/dirents.go
// (a raw on-disk directory-entry design for an inode-based filesystem) and
// original_source/tfs.c's dir_find/dir_add/dir_remove, corrected per §9:
// lookup's "stop at first unset" is restated as "stop at first slot whose
// Ino == 0 and Name is empty"; tombstones (Valid == 0, Ino != 0) are
// skippable but are NOT scan terminators.
package dirent

import (
	"encoding/binary"
	"fmt"

	"github.com/tinytfs/tfs/internal/allocator"
	"github.com/tinytfs/tfs/internal/block"
	"github.com/tinytfs/tfs/internal/inode"
	"github.com/tinytfs/tfs/internal/layout"
	"github.com/tinytfs/tfs/internal/tfserr"
)

// Dirent is one name -> inode mapping within a directory block.
type Dirent struct {
	Ino   uint32
	Valid bool
	Name  string
}

// isUnset reports whether this slot has never held a live entry: the scan
// terminator for a block, per §9's collapsed representation
// (valid=0, ino=0, name[0]=0).
func (d Dirent) isUnset() bool {
	return !d.Valid && d.Ino == 0 && d.Name == ""
}

// marshal encodes a dirent into a layout.DirentRecordSize-byte buffer. The
// on-disk inode number is 2 bytes, not 4: layout.MaxInodeCount comfortably
// fits a uint16, and the 2 bytes it saves are exactly what lets the name
// field reach layout.MaxNameLength (252) within the 256-byte record.
func (d Dirent) marshal() []byte {
	buf := make([]byte, layout.DirentRecordSize)
	le := binary.LittleEndian

	le.PutUint16(buf[0:2], uint16(d.Ino))
	if d.Valid {
		buf[2] = 1
	}
	nameBytes := []byte(d.Name)
	if len(nameBytes) > layout.MaxNameLength {
		nameBytes = nameBytes[:layout.MaxNameLength]
	}
	copy(buf[4:4+layout.MaxNameLength], nameBytes)

	return buf
}

func unmarshalDirent(buf []byte) Dirent {
	le := binary.LittleEndian

	nameField := buf[4 : 4+layout.MaxNameLength]
	nameLen := 0
	for nameLen < len(nameField) && nameField[nameLen] != 0 {
		nameLen++
	}

	return Dirent{
		Ino:   uint32(le.Uint16(buf[0:2])),
		Valid: buf[2] != 0,
		Name:  string(nameField[:nameLen]),
	}
}

// dirBlock is an in-memory view of one directory block's 16 dirent slots.
type dirBlock struct {
	slots [layout.DirentsPerBlock]Dirent
}

func readDirBlock(dev *block.Device, blockNo uint32) (dirBlock, error) {
	raw := make([]byte, layout.BlockSize)
	if err := dev.ReadBlock(blockNo, raw); err != nil {
		return dirBlock{}, err
	}

	var db dirBlock
	for i := 0; i < layout.DirentsPerBlock; i++ {
		off := i * layout.DirentRecordSize
		db.slots[i] = unmarshalDirent(raw[off : off+layout.DirentRecordSize])
	}
	return db, nil
}

func writeDirBlock(dev *block.Device, blockNo uint32, db dirBlock) error {
	raw := make([]byte, layout.BlockSize)
	for i, d := range db.slots {
		off := i * layout.DirentRecordSize
		copy(raw[off:off+layout.DirentRecordSize], d.marshal())
	}
	return dev.WriteBlock(blockNo, raw)
}

func zeroDirBlock() dirBlock {
	return dirBlock{}
}

// Lookup scans parent's data blocks in order, stopping at the first block
// whose list is terminated (DirectPtr == layout.NoBlock), and within each
// block stopping at the first unset slot, per §4.5.
func Lookup(dev *block.Device, parent *inode.Inode, name string) (Dirent, error) {
	for _, blockNo := range parent.DirectPtr {
		if blockNo == layout.NoBlock {
			break
		}

		db, err := readDirBlock(dev, uint32(blockNo))
		if err != nil {
			return Dirent{}, err
		}

		for _, d := range db.slots {
			if d.isUnset() {
				break
			}
			if d.Valid && d.Name == name {
				return d, nil
			}
		}
	}

	return Dirent{}, tfserr.ErrNotFound
}

// Add installs a new live dirent named name -> childIno in parent's block
// list, growing the list with a freshly allocated block if every existing
// block is full and a direct-pointer slot remains. It returns
// tfserr.ErrDuplicateEntry if name already has a live entry, and
// tfserr.ErrNoSpace if the directory has no room left anywhere.
//
// Scanning is left-to-right and takes the first acceptable slot (the first
// unset slot, or the first tombstone if it's seen before any unset slot),
// which keeps Lookup's "stop at first unset" rule from ever skipping a live
// entry (§4.5 "Ordering policy").
func Add(dev *block.Device, alloc *allocator.Allocator, store *inode.Store, parent *inode.Inode, childIno uint32, name string) error {
	if len(name) > layout.MaxNameLength {
		return tfserr.ErrNameTooLong
	}

	// A tombstone or unset slot can come before a live entry of the same
	// name, so the slot scan below alone would miss that duplicate.
	if _, err := Lookup(dev, parent, name); err == nil {
		return tfserr.ErrDuplicateEntry
	} else if err != tfserr.ErrNotFound {
		return err
	}

	for blockIdx, blockNo := range parent.DirectPtr {
		if blockNo == layout.NoBlock {
			return growAndAdd(dev, alloc, store, parent, blockIdx, childIno, name)
		}

		db, err := readDirBlock(dev, uint32(blockNo))
		if err != nil {
			return err
		}

		for i, d := range db.slots {
			if d.isUnset() || !d.Valid {
				db.slots[i] = Dirent{Ino: childIno, Valid: true, Name: name}
				return writeDirBlock(dev, uint32(blockNo), db)
			}
			if d.Name == name {
				return tfserr.ErrDuplicateEntry
			}
		}
	}

	return tfserr.ErrNoSpace
}

// growAndAdd allocates a fresh data block for parent's direct pointer slot
// blockIdx, places the new dirent at index 0, and updates parent's metadata.
// It rolls back the allocated block (and bitmap bit) if any later step
// fails, so no partial update is observable (§7).
func growAndAdd(dev *block.Device, alloc *allocator.Allocator, store *inode.Store, parent *inode.Inode, blockIdx int, childIno uint32, name string) error {
	relIdx, err := alloc.AllocateDataBlock()
	if err != nil {
		return err
	}
	newBlockNo := allocator.AbsoluteBlock(relIdx)

	db := zeroDirBlock()
	db.slots[0] = Dirent{Ino: childIno, Valid: true, Name: name}

	if err := writeDirBlock(dev, newBlockNo, db); err != nil {
		alloc.FreeDataBlock(relIdx)
		return err
	}

	parent.DirectPtr[blockIdx] = int32(newBlockNo)
	parent.Size += layout.BlockSize
	parent.VStat.Size += layout.BlockSize
	parent.VStat.Blocks++

	if err := store.Write(parent); err != nil {
		alloc.FreeDataBlock(relIdx)
		parent.DirectPtr[blockIdx] = layout.NoBlock
		return fmt.Errorf("persisting parent inode after directory growth: %w", err)
	}

	return nil
}

// Remove tombstones the live dirent named name in parent's block list
// (Valid = 0; Ino and Name are left intact so later scans can tell a
// tombstone apart from a never-used slot, per §9). It does not reclaim the
// data block even if every dirent in it becomes a tombstone.
func Remove(dev *block.Device, parent *inode.Inode, name string) error {
	for _, blockNo := range parent.DirectPtr {
		if blockNo == layout.NoBlock {
			return tfserr.ErrNotFound
		}

		db, err := readDirBlock(dev, uint32(blockNo))
		if err != nil {
			return err
		}

		for i, d := range db.slots {
			if d.isUnset() {
				return tfserr.ErrNotFound
			}
			if d.Valid && d.Name == name {
				db.slots[i].Valid = false
				return writeDirBlock(dev, uint32(blockNo), db)
			}
		}
	}

	return tfserr.ErrNotFound
}

// ForEachLive invokes fn once per live dirent in parent's block list, in
// block then slot order, for use by readdir (§4.9).
func ForEachLive(dev *block.Device, parent *inode.Inode, fn func(Dirent) error) error {
	for _, blockNo := range parent.DirectPtr {
		if blockNo == layout.NoBlock {
			return nil
		}

		db, err := readDirBlock(dev, uint32(blockNo))
		if err != nil {
			return err
		}

		for _, d := range db.slots {
			if d.isUnset() {
				break
			}
			if d.Valid {
				if err := fn(d); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// IsEmpty reports whether a directory inode has no live entries other than
// an implicit root. Used by rmdir to implement the §9-recommended NOT_EMPTY
// check.
func IsEmpty(dev *block.Device, dirInode *inode.Inode) (bool, error) {
	empty := true
	err := ForEachLive(dev, dirInode, func(Dirent) error {
		empty = false
		return nil
	})
	return empty, err
}
