package core

import (
	"strings"

	"github.com/dargueta/tinyfs"
)

// Directory-entry layout constants (SPEC_FULL.md §3).
const (
	NameSize     = 48
	reservedSize = 12
	EntrySize    = NameSize + 4 + reservedSize
	EntriesPerBlock = BlockSize / EntrySize
)

func entryOffset(slot int) int {
	return slot * EntrySize
}

func decodeName(raw []byte) string {
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

func encodeName(dst []byte, name string) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst[:len(dst)-1], name)
}

func entryInum(block []byte, slot int) uint32 {
	off := entryOffset(slot)
	data := block[off+NameSize : off+NameSize+4]
	return uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
}

func setEntryInum(block []byte, slot int, inum uint32) {
	off := entryOffset(slot)
	data := block[off+NameSize : off+NameSize+4]
	data[0] = byte(inum)
	data[1] = byte(inum >> 8)
	data[2] = byte(inum >> 16)
	data[3] = byte(inum >> 24)
}

func entryName(block []byte, slot int) string {
	off := entryOffset(slot)
	return decodeName(block[off : off+NameSize])
}

func setEntryName(block []byte, slot int, name string) {
	off := entryOffset(slot)
	encodeName(block[off:off+NameSize], name)
}

func zeroEntry(block []byte, slot int) {
	off := entryOffset(slot)
	entry := block[off : off+EntrySize]
	for i := range entry {
		entry[i] = 0
	}
}

// Put scans the directory inode's slots in order and places name/inum into
// the first slot whose inode number is 0 (SPEC_FULL.md §4.5). name is
// truncated to NameSize-1 characters; the directory's size and timestamp are
// updated.
func Put(img *Image, dirInode int, name string, inum int) error {
	node := GetInode(img, dirInode)
	block := img.Block(int(node.Ptrs[0]))

	for slot := 0; slot < EntriesPerBlock; slot++ {
		if entryInum(block, slot) == 0 {
			setEntryName(block, slot, name)
			setEntryInum(block, slot, uint32(inum))
			node.Size += EntrySize
			node.Time = now()
			putInode(img, dirInode, node)
			return nil
		}
	}
	return tinyfs.ErrNoSpace()
}

// Delete removes the entry named name from dirInode's directory body,
// shifting every following slot down by one and zeroing the vacated tail
// slot so the empty-name sentinel List relies on stays contiguous
// (SPEC_FULL.md §9 — this fixes the original's tail-zeroing bug).
func Delete(img *Image, dirInode int, name string) error {
	node := GetInode(img, dirInode)
	block := img.Block(int(node.Ptrs[0]))

	k := -1
	for slot := 0; slot < EntriesPerBlock; slot++ {
		if entryInum(block, slot) != 0 && entryName(block, slot) == name {
			k = slot
			break
		}
	}
	if k < 0 {
		return tinyfs.ErrNotFound()
	}

	for slot := k; slot < EntriesPerBlock-1; slot++ {
		nextOff := entryOffset(slot + 1)
		curOff := entryOffset(slot)
		copy(block[curOff:curOff+EntrySize], block[nextOff:nextOff+EntrySize])
	}
	zeroEntry(block, EntriesPerBlock-1)

	node.Time = now()
	putInode(img, dirInode, node)
	return nil
}

// Lookup returns the inode number stored under name in dirInode's
// directory body, or ErrNotFound.
func Lookup(img *Image, dirInode int, name string) (int, error) {
	node := GetInode(img, dirInode)
	block := img.Block(int(node.Ptrs[0]))

	for slot := 0; slot < EntriesPerBlock; slot++ {
		if entryInum(block, slot) != 0 && entryName(block, slot) == name {
			return int(entryInum(block, slot)), nil
		}
	}
	return -1, tinyfs.ErrNotFound()
}

// List returns every entry name in dirInode's directory body, stopping at
// the first slot whose name is empty (the sentinel preserved by Delete's
// tail-zeroing).
func List(img *Image, dirInode int) []string {
	node := GetInode(img, dirInode)
	block := img.Block(int(node.Ptrs[0]))

	var names []string
	for slot := 0; slot < EntriesPerBlock; slot++ {
		name := entryName(block, slot)
		if name == "" {
			break
		}
		names = append(names, name)
	}
	return names
}

// SplitPath splits a '/'-delimited absolute path into its ordered,
// non-empty components. This replaces the original's refcounted linked-list
// splitter (SPEC_FULL.md §9) with a plain, owned slice.
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	components := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			components = append(components, p)
		}
	}
	return components
}

// TreeLookup resolves an absolute path to an inode number by walking every
// component from the root. "/" resolves to the root inode directly.
func TreeLookup(img *Image, path string) (int, error) {
	components := SplitPath(path)
	if len(components) == 0 {
		return RootInode, nil
	}

	parent, err := ParentInodeOf(img, path)
	if err != nil {
		return -1, err
	}
	return Lookup(img, parent, components[len(components)-1])
}

// ParentInodeOf returns the inode number of the directory containing path,
// walking every component but the last from the root. This fixes the
// original's bug where the parent-walk loop never advanced past its
// zero-initialized guard (SPEC_FULL.md §9).
func ParentInodeOf(img *Image, path string) (int, error) {
	components := SplitPath(path)
	current := RootInode
	if len(components) == 0 {
		return current, nil
	}

	for _, name := range components[:len(components)-1] {
		next, err := Lookup(img, current, name)
		if err != nil {
			return -1, err
		}
		current = next
	}
	return current, nil
}

// BasenameOf returns the last '/'-delimited component of path.
func BasenameOf(path string) string {
	components := SplitPath(path)
	if len(components) == 0 {
		return ""
	}
	return components[len(components)-1]
}
