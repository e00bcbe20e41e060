package core

import "github.com/boljen/go-bitmap"

// Superblock layout constants (SPEC_FULL.md §3).
const (
	blockBitmapOffset = 0
	blockBitmapSize   = 32

	inodeBitmapOffset = 32
	inodeBitmapSize   = 32

	inodeTableOffset = 64

	// InodeSize is the encoded width of one inode record: seven 4-byte
	// little-endian fields (refs, mode, size, ptrs[0], ptrs[1], iptr, time).
	InodeSize = 28
	// MaxInodes is the number of inode slots the superblock's inode table
	// can hold, given the byte-exact layout fixed in SPEC_FULL.md §3.
	MaxInodes = (BlockSize - inodeTableOffset) / InodeSize
)

// Bitmap is a bit-level view, LSB-first within each byte, with no bounds
// checking (SPEC_FULL.md §4.2). It is a zero-copy alias over
// github.com/boljen/go-bitmap's byte-backed Bitmap type, used directly over
// slices of the mapped superblock.
type Bitmap = bitmap.Bitmap

func bitmapView(data []byte) Bitmap {
	return Bitmap(data)
}

func (img *Image) blockBitmap() Bitmap {
	super := img.Block(0)
	return bitmapView(super[blockBitmapOffset : blockBitmapOffset+blockBitmapSize])
}

func (img *Image) inodeBitmap() Bitmap {
	super := img.Block(0)
	return bitmapView(super[inodeBitmapOffset : inodeBitmapOffset+inodeBitmapSize])
}
