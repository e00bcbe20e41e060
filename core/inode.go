package core

import (
	"encoding/binary"
)

// Inode is the decoded form of one 28-byte on-disk inode record: refs, mode,
// size, two direct block pointers, one indirect block pointer, and a
// modification timestamp, all 4-byte little-endian fields
// (SPEC_FULL.md §3).
type Inode struct {
	Refs uint32
	Mode uint32
	Size uint32
	Ptrs [2]uint32
	Iptr uint32
	Time uint32
}

func inodeOffset(i int) int {
	return inodeTableOffset + i*InodeSize
}

// GetInode decodes inode record i. Not bounds-checked, matching
// SPEC_FULL.md §4.4.
func GetInode(img *Image, i int) Inode {
	data := img.Block(0)[inodeOffset(i) : inodeOffset(i)+InodeSize]
	return Inode{
		Refs: binary.LittleEndian.Uint32(data[0:4]),
		Mode: binary.LittleEndian.Uint32(data[4:8]),
		Size: binary.LittleEndian.Uint32(data[8:12]),
		Ptrs: [2]uint32{
			binary.LittleEndian.Uint32(data[12:16]),
			binary.LittleEndian.Uint32(data[16:20]),
		},
		Iptr: binary.LittleEndian.Uint32(data[20:24]),
		Time: binary.LittleEndian.Uint32(data[24:28]),
	}
}

func putInode(img *Image, i int, node Inode) {
	data := img.Block(0)[inodeOffset(i) : inodeOffset(i)+InodeSize]
	binary.LittleEndian.PutUint32(data[0:4], node.Refs)
	binary.LittleEndian.PutUint32(data[4:8], node.Mode)
	binary.LittleEndian.PutUint32(data[8:12], node.Size)
	binary.LittleEndian.PutUint32(data[12:16], node.Ptrs[0])
	binary.LittleEndian.PutUint32(data[16:20], node.Ptrs[1])
	binary.LittleEndian.PutUint32(data[20:24], node.Iptr)
	binary.LittleEndian.PutUint32(data[24:28], node.Time)
}

// PutInode overwrites inode record i with node.
func PutInode(img *Image, i int, node Inode) {
	putInode(img, i, node)
}

// NewInode allocates a fresh inode bit and returns its index with a
// zeroed record. It is a thin wrapper over the allocator, as specified in
// SPEC_FULL.md §4.4.
func NewInode(img *Image) (int, error) {
	i, err := AllocInode(img)
	if err != nil {
		return -1, err
	}
	putInode(img, i, Inode{})
	return i, nil
}

const indirectEntrySize = 4
const indirectEntriesPerBlock = BlockSize / indirectEntrySize

func readIndirectEntry(img *Image, iptr uint32, idx int) uint32 {
	block := img.Block(int(iptr))
	return binary.LittleEndian.Uint32(block[idx*indirectEntrySize : idx*indirectEntrySize+indirectEntrySize])
}

func writeIndirectEntry(img *Image, iptr uint32, idx int, value uint32) {
	block := img.Block(int(iptr))
	binary.LittleEndian.PutUint32(block[idx*indirectEntrySize:idx*indirectEntrySize+indirectEntrySize], value)
}

// PageToBlock resolves file page p of node to a block index. Pages 0 and 1
// come from the direct pointers; subsequent pages are read from the
// indirect array at a 4-byte stride (SPEC_FULL.md §4.4).
func PageToBlock(img *Image, node Inode, p int) uint32 {
	if p < 2 {
		return node.Ptrs[p]
	}
	return readIndirectEntry(img, node.Iptr, p-2)
}

// Grow ensures node has enough allocated blocks to hold newSize bytes,
// allocating an indirect block lazily and any missing data blocks up to the
// required page count. Growing never frees; it does not shrink allocation
// on a smaller newSize (SPEC_FULL.md §4.4).
func Grow(img *Image, i int, newSize uint32) error {
	node := GetInode(img, i)
	blocksNeeded := int((newSize + BlockSize - 1) / BlockSize)

	if blocksNeeded > 2 {
		if node.Iptr == 0 {
			iptr, err := AllocBlock(img)
			if err != nil {
				return err
			}
			node.Iptr = uint32(iptr)
		}
		for idx := 0; idx < blocksNeeded-2; idx++ {
			if readIndirectEntry(img, node.Iptr, idx) == 0 {
				blk, err := AllocBlock(img)
				if err != nil {
					return err
				}
				writeIndirectEntry(img, node.Iptr, idx, uint32(blk))
			}
		}
	}

	node.Size = newSize
	putInode(img, i, node)
	return nil
}

// FreeInode releases one reference to inode i. If refs drop to zero it
// releases both direct blocks and the indirect block along with every
// block it references (SPEC_FULL.md §4.4 — this implementation fixes the
// indirect-block leak noted in SPEC_FULL.md §9), then clears the record
// and the inode bit.
func FreeInode(img *Image, i int) error {
	node := GetInode(img, i)
	if node.Refs > 1 {
		node.Refs--
		putInode(img, i, node)
		return nil
	}

	if node.Ptrs[0] != 0 {
		FreeBlock(img, int(node.Ptrs[0]))
	}
	if node.Ptrs[1] != 0 {
		FreeBlock(img, int(node.Ptrs[1]))
	}
	if node.Iptr != 0 {
		for idx := 0; idx < indirectEntriesPerBlock; idx++ {
			entry := readIndirectEntry(img, node.Iptr, idx)
			if entry != 0 {
				FreeBlock(img, int(entry))
			}
		}
		FreeBlock(img, int(node.Iptr))
	}

	putInode(img, i, Inode{})
	img.inodeBitmap().Set(i, false)
	return nil
}
