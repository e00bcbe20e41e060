package core

import (
	"fmt"
	"syscall"

	"github.com/dargueta/tinyfs"
)

// AllocBlock scans bits 1..TotalBlocks-1 of the block bitmap, first-fit,
// lowest index. Bit 0 (the superblock) is never returned.
func AllocBlock(img *Image) (int, error) {
	bm := img.blockBitmap()
	for i := 1; i < TotalBlocks; i++ {
		if !bm.Get(i) {
			bm.Set(i, true)
			return i, nil
		}
	}
	return -1, tinyfs.ErrNoSpace()
}

// FreeBlock clears bit i of the block bitmap.
func FreeBlock(img *Image, i int) error {
	if i <= 0 || i >= TotalBlocks {
		return tinyfs.ErrInvalid(fmt.Sprintf("invalid block id: %d not in range (0, %d)", i, TotalBlocks))
	}
	bm := img.blockBitmap()
	if !bm.Get(i) {
		return tinyfs.NewWithMessage(syscall.EALREADY, fmt.Sprintf("block %d is already free", i))
	}
	bm.Set(i, false)
	return nil
}

// AllocInode scans bits 0..MaxInodes-1 of the inode bitmap, first-fit,
// lowest index.
func AllocInode(img *Image) (int, error) {
	bm := img.inodeBitmap()
	for i := 0; i < MaxInodes; i++ {
		if !bm.Get(i) {
			bm.Set(i, true)
			return i, nil
		}
	}
	return -1, tinyfs.ErrNoSpace()
}
