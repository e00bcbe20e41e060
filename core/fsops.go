package core

import (
	"github.com/dargueta/tinyfs"
)

// Attr is the subset of inode metadata the filesystem-operations layer
// reports back to callers (SPEC_FULL.md §4.6 getattr).
type Attr struct {
	Mode  uint32
	Size  uint32
	Nlink uint32
	Mtime uint32
}

// Access returns nil if path resolves to an inode, else ErrNotFound.
func Access(img *Image, path string) error {
	_, err := TreeLookup(img, path)
	return err
}

// GetAttr resolves path and returns its metadata.
func GetAttr(img *Image, path string) (Attr, error) {
	inum, err := TreeLookup(img, path)
	if err != nil {
		return Attr{}, err
	}
	node := GetInode(img, inum)
	return Attr{Mode: node.Mode, Size: node.Size, Nlink: node.Refs, Mtime: node.Time}, nil
}

// ReadDir resolves path to a directory and returns its entry names
// (SPEC_FULL.md §4.6 readdir, built on List).
func ReadDir(img *Image, path string) ([]string, error) {
	inum, err := TreeLookup(img, path)
	if err != nil {
		return nil, err
	}
	return List(img, inum), nil
}

// Mknod allocates a new inode with the given mode, eagerly allocates both
// direct blocks, and links it into its parent directory under its basename
// (SPEC_FULL.md §4.6 mknod).
func Mknod(img *Image, path string, mode uint32) (int, error) {
	parent, err := ParentInodeOf(img, path)
	if err != nil {
		return -1, err
	}
	if _, err := Lookup(img, parent, BasenameOf(path)); err == nil {
		return -1, tinyfs.ErrExists()
	}

	inum, err := NewInode(img)
	if err != nil {
		return -1, err
	}

	block0, err := AllocBlock(img)
	if err != nil {
		return -1, err
	}
	block1, err := AllocBlock(img)
	if err != nil {
		return -1, err
	}

	node := Inode{
		Refs: 1,
		Mode: mode,
		Size: 0,
		Time: now(),
	}
	node.Ptrs[0] = uint32(block0)
	node.Ptrs[1] = uint32(block1)
	putInode(img, inum, node)

	if err := Put(img, parent, BasenameOf(path), inum); err != nil {
		return -1, err
	}
	return inum, nil
}

// Mkdir creates a directory inode at path (SPEC_FULL.md §4.6 mkdir). Per
// spec, only the root's "." self-entry is materialized at image-init time;
// subdirectories created here get no "." or ".." entries.
func Mkdir(img *Image, path string, mode uint32) (int, error) {
	return Mknod(img, path, mode|tinyfs.ModeDirectory)
}

// Link resolves from to an inode, increments its reference count, and adds
// a new directory entry for it at to (SPEC_FULL.md §4.6 link).
func Link(img *Image, from, to string) error {
	inum, err := TreeLookup(img, from)
	if err != nil {
		return err
	}

	parent, err := ParentInodeOf(img, to)
	if err != nil {
		return err
	}
	if _, err := Lookup(img, parent, BasenameOf(to)); err == nil {
		return tinyfs.ErrExists()
	}

	node := GetInode(img, inum)
	node.Refs++
	putInode(img, inum, node)

	return Put(img, parent, BasenameOf(to), inum)
}

// remove implements the shared body of unlink and rmdir: free one
// reference to the resolved inode, then remove its directory entry
// (SPEC_FULL.md §4.6 unlink/rmdir).
func remove(img *Image, path string) error {
	inum, err := TreeLookup(img, path)
	if err != nil {
		return err
	}
	if err := FreeInode(img, inum); err != nil {
		return err
	}

	parent, err := ParentInodeOf(img, path)
	if err != nil {
		return err
	}
	return Delete(img, parent, BasenameOf(path))
}

// Unlink removes a directory entry and releases its inode reference. It
// refuses to remove a directory (SPEC_FULL.md §7 error taxonomy).
func Unlink(img *Image, path string) error {
	inum, err := TreeLookup(img, path)
	if err != nil {
		return err
	}
	if tinyfs.IsDir(GetInode(img, inum).Mode) {
		return tinyfs.ErrIsDir()
	}
	return remove(img, path)
}

// Rmdir removes a directory entry and releases its inode reference. It
// refuses to remove a non-directory or a non-empty directory (SPEC_FULL.md
// §7 error taxonomy).
func Rmdir(img *Image, path string) error {
	inum, err := TreeLookup(img, path)
	if err != nil {
		return err
	}
	node := GetInode(img, inum)
	if !tinyfs.IsDir(node.Mode) {
		return tinyfs.ErrNotDir()
	}
	if len(List(img, inum)) > 0 {
		return tinyfs.ErrNotEmpty()
	}
	return remove(img, path)
}

// Rename re-links the inode at from under to's name, then removes from's
// entry. No refcount change (SPEC_FULL.md §4.6 rename).
func Rename(img *Image, from, to string) error {
	inum, err := TreeLookup(img, from)
	if err != nil {
		return err
	}

	toParent, err := ParentInodeOf(img, to)
	if err != nil {
		return err
	}
	if err := Put(img, toParent, BasenameOf(to), inum); err != nil {
		return err
	}

	fromParent, err := ParentInodeOf(img, from)
	if err != nil {
		return err
	}
	return Delete(img, fromParent, BasenameOf(from))
}

// Chmod overwrites an inode's mode word.
func Chmod(img *Image, path string, mode uint32) error {
	inum, err := TreeLookup(img, path)
	if err != nil {
		return err
	}
	node := GetInode(img, inum)
	node.Mode = mode
	putInode(img, inum, node)
	return nil
}

// Truncate overwrites an inode's size field only; it releases no blocks and
// performs no zero-fill (SPEC_FULL.md §4.6 truncate).
func Truncate(img *Image, path string, size uint32) error {
	inum, err := TreeLookup(img, path)
	if err != nil {
		return err
	}
	node := GetInode(img, inum)
	node.Size = size
	putInode(img, inum, node)
	return nil
}

// OpenFile is a no-op success; there is no open-file-table state to build
// (SPEC_FULL.md §4.6 open).
func OpenFile(img *Image, path string) error {
	return nil
}

// Read copies up to size bytes starting at offset from path's data blocks
// into a freshly allocated buffer, clipping the final page's copy to the
// remaining requested size (SPEC_FULL.md §9 — this fixes the original's
// buffer-overrun bug).
func Read(img *Image, path string, size, offset int) ([]byte, error) {
	inum, err := TreeLookup(img, path)
	if err != nil {
		return nil, err
	}
	node := GetInode(img, inum)
	return readInode(img, node, size, offset), nil
}

func readInode(img *Image, node Inode, size, offset int) []byte {
	firstPage := offset / BlockSize
	rem := offset % BlockSize
	npages := (rem + size + BlockSize - 1) / BlockSize

	out := make([]byte, 0, size)
	copied := 0
	for i := 0; i < npages && copied < size; i++ {
		page := firstPage + i
		block := img.Block(int(PageToBlock(img, node, page)))

		var chunk []byte
		if i == 0 {
			chunk = block[rem:]
		} else {
			chunk = block
		}

		remaining := size - copied
		if len(chunk) > remaining {
			chunk = chunk[:remaining]
		}
		out = append(out, chunk...)
		copied += len(chunk)
	}
	return out
}

// Write grows path's inode to offset+len(data) then copies data into its
// data blocks using the same page-walking algorithm as Read
// (SPEC_FULL.md §4.6 write).
func Write(img *Image, path string, data []byte, offset int) (int, error) {
	inum, err := TreeLookup(img, path)
	if err != nil {
		return 0, err
	}

	newSize := uint32(offset + len(data))
	if err := Grow(img, inum, newSize); err != nil {
		return 0, err
	}
	node := GetInode(img, inum)

	firstPage := offset / BlockSize
	rem := offset % BlockSize
	npages := (rem + len(data) + BlockSize - 1) / BlockSize

	written := 0
	for i := 0; i < npages; i++ {
		page := firstPage + i
		block := img.Block(int(PageToBlock(img, node, page)))

		start := 0
		if i == 0 {
			start = rem
		}
		remaining := len(data) - written
		n := len(block) - start
		if n > remaining {
			n = remaining
		}
		copy(block[start:start+n], data[written:written+n])
		written += n
	}

	node.Size = newSize
	node.Time = now()
	putInode(img, inum, node)
	return written, nil
}

// Utimens sets an inode's modification timestamp.
func Utimens(img *Image, path string, mtime uint32) error {
	inum, err := TreeLookup(img, path)
	if err != nil {
		return err
	}
	node := GetInode(img, inum)
	node.Time = mtime
	putInode(img, inum, node)
	return nil
}

// Symlink creates a symlink inode at linkPath whose data is target
// (SPEC_FULL.md §4.6 symlink).
func Symlink(img *Image, target, linkPath string) error {
	if _, err := Mknod(img, linkPath, tinyfs.ModeSymlink|0o777); err != nil {
		return err
	}
	_, err := Write(img, linkPath, []byte(target), 0)
	return err
}

// Readlink returns the stored target of the symlink at path.
func Readlink(img *Image, path string) (string, error) {
	inum, err := TreeLookup(img, path)
	if err != nil {
		return "", err
	}
	node := GetInode(img, inum)
	data, err := Read(img, path, int(node.Size), 0)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
