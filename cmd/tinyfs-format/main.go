// Command tinyfs-format pre-creates and formats a tinyfs image file outside
// of a live mount, the way the teacher's test fixtures build images for
// tests. Usage: tinyfs-format <image-file>.
package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/noxer/bytewriter"
	"github.com/xaionaro-go/bytesextra"

	"github.com/dargueta/tinyfs/core"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <image-file>\n", os.Args[0])
		os.Exit(1)
	}

	if err := formatImage(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// formatImage writes a fresh, empty superblock into a ImageSize-byte buffer
// and flushes it to path. It builds the same bytes core.Open's lazy format
// step would produce, so the two must be kept in sync.
func formatImage(path string) error {
	buf := make([]byte, core.ImageSize)
	writer := bytewriter.New(buf)

	// Block bitmap: bits 0-2 set (the superblock plus the root directory's
	// two direct blocks, written below), everything else clear.
	blockBitmap := make([]byte, 32)
	blockBitmap[0] = 0x07
	if _, err := writer.Write(blockBitmap); err != nil {
		return err
	}

	// Inode bitmap: bit 0 (the root) set, everything else clear.
	inodeBitmap := make([]byte, 32)
	inodeBitmap[0] = 0x01
	if _, err := writer.Write(inodeBitmap); err != nil {
		return err
	}

	// Root inode: refs=1, mode=directory|0755, size=one entry (the "."
	// below), ptrs={1,2}, iptr=0, time=now. Blocks 1 and 2 are the root's
	// two direct blocks; block 1 holds its directory body.
	rootInode := struct {
		Refs, Mode, Size, Ptr0, Ptr1, Iptr, Time uint32
	}{Refs: 1, Mode: 0o040755, Size: core.EntrySize, Ptr0: 1, Ptr1: 2, Time: uint32(time.Now().Unix())}
	if err := binary.Write(writer, binary.LittleEndian, &rootInode); err != nil {
		return err
	}

	// Remaining inode slots stay zeroed (free).
	zeroInode := bytes.Repeat([]byte{0}, core.InodeSize*(core.MaxInodes-1))
	if _, err := writer.Write(zeroInode); err != nil {
		return err
	}

	// Block 1 (the root's directory body): a single "." entry, with the
	// remaining slots left zeroed as the empty-name sentinel.
	dirBlock := bytesextra.NewReadWriteSeeker(buf[core.BlockSize : 2*core.BlockSize])
	dotEntry := make([]byte, core.NameSize+4)
	copy(dotEntry, ".")
	binary.LittleEndian.PutUint32(dotEntry[core.NameSize:], 0)
	if _, err := dirBlock.Write(dotEntry); err != nil {
		return err
	}
	if _, err := dirBlock.Seek(0, io.SeekStart); err != nil {
		return err
	}

	return os.WriteFile(path, buf, 0o644)
}
