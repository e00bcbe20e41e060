// Package core implements the on-disk layout and allocation engine: the
// image, bitmap, allocator, inode, and directory layers, plus the
// filesystem operations built on top of them.
package core

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/dargueta/tinyfs"
)

const (
	// BlockSize is the fixed size, in bytes, of every block in the image.
	BlockSize = 4096
	// TotalBlocks is the fixed number of blocks in the image.
	TotalBlocks = 256
	// ImageSize is the fixed total size of the image file.
	ImageSize = BlockSize * TotalBlocks

	// RootInode is the inode number of the filesystem root.
	RootInode = 0
)

// Image owns the memory-mapped backing file for the lifetime of the mount.
// All other layers hold non-owning slices into data, matching the ownership
// rule in SPEC_FULL.md §5.
type Image struct {
	file *os.File
	data []byte
}

// Open opens or creates path, fixes it at ImageSize bytes, and maps it
// PROT_READ|PROT_WRITE/MAP_SHARED. If the image is freshly created (block
// bit 0 clear), it is initialized: bit 0 is set and the root directory is
// materialized.
func Open(path string) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() != ImageSize {
		if err := f.Truncate(ImageSize); err != nil {
			f.Close()
			return nil, err
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, ImageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}

	img := &Image{file: f, data: data}

	blockBitmap := img.Block(0)[blockBitmapOffset : blockBitmapOffset+blockBitmapSize]
	if !bitmapView(blockBitmap).Get(0) {
		if err := img.format(); err != nil {
			img.Close()
			return nil, err
		}
	}
	return img, nil
}

// Block returns a zero-copy view of block i. Not bounds-checked, matching
// SPEC_FULL.md §4.1.
func (img *Image) Block(i int) []byte {
	start := i * BlockSize
	return img.data[start : start+BlockSize]
}

// Close flushes outstanding writes to the backing file and unmaps the image.
func (img *Image) Close() error {
	if err := unix.Msync(img.data, unix.MS_SYNC); err != nil {
		return err
	}
	if err := unix.Munmap(img.data); err != nil {
		return err
	}
	return img.file.Close()
}

// format initializes a fresh image: marks block 0 used in the block bitmap,
// allocates the root inode/directory, and writes the "." self-entry.
func (img *Image) format() error {
	super := img.Block(0)
	blockBitmap := bitmapView(super[blockBitmapOffset : blockBitmapOffset+blockBitmapSize])
	blockBitmap.Set(0, true)

	inodeBitmap := bitmapView(super[inodeBitmapOffset : inodeBitmapOffset+inodeBitmapSize])
	inodeBitmap.Set(RootInode, true)

	dirBlock, err := AllocBlock(img)
	if err != nil {
		return tinyfs.ErrNoSpace()
	}

	root := Inode{
		Refs: 1,
		Mode: tinyfs.ModeDirectory | 0o755,
		Size: 0,
	}
	root.Ptrs[0] = uint32(dirBlock)
	second, err := AllocBlock(img)
	if err != nil {
		return tinyfs.ErrNoSpace()
	}
	root.Ptrs[1] = uint32(second)
	putInode(img, RootInode, root)

	return Put(img, RootInode, ".", RootInode)
}
