package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dargueta/tinyfs/core"
)

// newTestImage creates a fresh backing file in a temp directory and opens
// it, guaranteeing either a usable image or a failed test.
func newTestImage(t *testing.T) *core.Image {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")

	img, err := core.Open(path)
	require.NoError(t, err, "failed to open fresh image")

	t.Cleanup(func() {
		img.Close()
	})
	return img
}

func TestOpen__CreatesExactSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")

	img, err := core.Open(path)
	require.NoError(t, err)
	defer img.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, core.ImageSize, info.Size())
}

func TestOpen__RootDirectoryHasDotEntry(t *testing.T) {
	img := newTestImage(t)

	names, err := core.ReadDir(img, "/")
	require.NoError(t, err)
	require.Contains(t, names, ".")
}

func TestMknod__WriteThenRead(t *testing.T) {
	img := newTestImage(t)

	_, err := core.Mknod(img, "/a", 0o100644)
	require.NoError(t, err)

	_, err = core.Write(img, "/a", []byte("hello"), 0)
	require.NoError(t, err)

	data, err := core.Read(img, "/a", 5, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	attr, err := core.GetAttr(img, "/a")
	require.NoError(t, err)
	require.EqualValues(t, 5, attr.Size)
}

func TestLink__SharesDataAndSurvivesUnlink(t *testing.T) {
	img := newTestImage(t)

	_, err := core.Mknod(img, "/a", 0o100644)
	require.NoError(t, err)
	require.NoError(t, core.Link(img, "/a", "/b"))

	attrA, err := core.GetAttr(img, "/a")
	require.NoError(t, err)
	require.EqualValues(t, 2, attrA.Nlink)

	attrB, err := core.GetAttr(img, "/b")
	require.NoError(t, err)
	require.EqualValues(t, 2, attrB.Nlink)

	_, err = core.Write(img, "/a", []byte("hello"), 0)
	require.NoError(t, err)

	require.NoError(t, core.Unlink(img, "/a"))

	attrB, err = core.GetAttr(img, "/b")
	require.NoError(t, err)
	require.EqualValues(t, 1, attrB.Nlink)

	data, err := core.Read(img, "/b", 5, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestRename__MovesEntry(t *testing.T) {
	img := newTestImage(t)

	_, err := core.Mknod(img, "/a", 0o100644)
	require.NoError(t, err)
	require.NoError(t, core.Rename(img, "/a", "/b"))

	err = core.Access(img, "/a")
	require.Error(t, err)

	err = core.Access(img, "/b")
	require.NoError(t, err)
}

func TestSymlink__ReadlinkReturnsTarget(t *testing.T) {
	img := newTestImage(t)

	require.NoError(t, core.Symlink(img, "/target", "/l"))

	target, err := core.Readlink(img, "/l")
	require.NoError(t, err)
	require.Equal(t, "/target", target)
}

func TestTruncate__OverwritesSizeOnly(t *testing.T) {
	img := newTestImage(t)

	_, err := core.Mknod(img, "/a", 0o100644)
	require.NoError(t, err)
	require.NoError(t, core.Truncate(img, "/a", 42))

	attr, err := core.GetAttr(img, "/a")
	require.NoError(t, err)
	require.EqualValues(t, 42, attr.Size)
}

func TestMkdir__NestedPathResolves(t *testing.T) {
	img := newTestImage(t)

	_, err := core.Mkdir(img, "/sub", 0o755)
	require.NoError(t, err)

	_, err = core.Mknod(img, "/sub/file", 0o100644)
	require.NoError(t, err)

	attr, err := core.GetAttr(img, "/sub/file")
	require.NoError(t, err)
	require.EqualValues(t, 0, attr.Size)
}

func TestDelete__LookupAfterDeleteFails(t *testing.T) {
	img := newTestImage(t)

	_, err := core.Mknod(img, "/a", 0o100644)
	require.NoError(t, err)
	require.NoError(t, core.Unlink(img, "/a"))

	err = core.Access(img, "/a")
	require.Error(t, err)
}

func TestAllocBlock__ExhaustsEventually(t *testing.T) {
	img := newTestImage(t)

	var lastErr error
	count := 0
	for {
		if _, err := core.AllocBlock(img); err != nil {
			lastErr = err
			break
		}
		count++
		if count > core.TotalBlocks {
			t.Fatal("AllocBlock never returned ENOSPC")
		}
	}
	require.Error(t, lastErr)
}
