// Package bridge adapts the tinyfs core to the OS via a FUSE mount, using
// jacobsa/fuse's fuseops/fuseutil API (SPEC_FULL.md §6). Grounded on
// distr1-distri's internal/fuse/fuse.go: a fuseFS struct embedding
// fuseutil.NotImplementedFileSystem, wired up through
// fuseutil.NewFileSystemServer and fuse.Mount/MountConfig.
package bridge

import (
	"context"
	"log"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/dargueta/tinyfs"
	"github.com/dargueta/tinyfs/core"
)

// FS implements fuseutil.FileSystem against a tinyfs core.Image. mu
// serializes every request so the lock-free core (SPEC_FULL.md §5, which
// assumes requests are delivered and processed one at a time) always sees
// the effects of prior requests in arrival order.
type FS struct {
	fuseutil.NotImplementedFileSystem

	mu    sync.Mutex
	img   *core.Image
	paths map[fuseops.InodeID]string
}

// New wraps img as a fuseutil.FileSystem.
func New(img *core.Image) *FS {
	return &FS{
		img:   img,
		paths: map[fuseops.InodeID]string{fuseops.RootInodeID: "/"},
	}
}

// pathFor returns the path remembered for a wire inode ID, defaulting to
// root for anything not yet looked up.
func (fs *FS) pathFor(id fuseops.InodeID) string {
	if p, ok := fs.paths[id]; ok {
		return p
	}
	return "/"
}

func (fs *FS) remember(id fuseops.InodeID, path string) {
	fs.paths[id] = path
}

func (fs *FS) forgetPath(path string) {
	for id, p := range fs.paths {
		if p == path {
			delete(fs.paths, id)
		}
	}
}

func (fs *FS) forgetInode(id fuseops.InodeID) {
	delete(fs.paths, id)
}

// toInodeID maps a core inode index to its wire inode ID: the root (0) is
// fuseops.RootInodeID (1), everything else is shifted by one. This mirrors
// the offset scheme used by squashfs's publicInodeNum() in the retrieved
// example pack.
func toInodeID(i int) fuseops.InodeID {
	return fuseops.InodeID(i + 1)
}

func toCoreInode(id fuseops.InodeID) int {
	return int(id) - 1
}

// errnoOf translates a core/tinyfs error into the syscall.Errno jacobsa/fuse
// expects a FileSystem method to return.
func errnoOf(err error) error {
	if err == nil {
		return nil
	}
	if de, ok := err.(*tinyfs.DriverError); ok {
		return de.Errno
	}
	return syscall.EIO
}

func attrOf(a core.Attr) fuseops.InodeAttributes {
	mtime := time.Unix(int64(a.Mtime), 0)

	m := os.FileMode(a.Mode & 0o777)
	if tinyfs.IsDir(a.Mode) {
		m |= os.ModeDir
	}
	if tinyfs.IsSymlink(a.Mode) {
		m |= os.ModeSymlink
	}

	return fuseops.InodeAttributes{
		Size:  uint64(a.Size),
		Nlink: a.Nlink,
		Mode:  m,
		Mtime: mtime,
		Ctime: mtime,
		Atime: mtime,
	}
}

// StatFS reports coarse filesystem-wide statistics.
func (fs *FS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	op.BlockSize = core.BlockSize
	op.Blocks = core.TotalBlocks
	op.IoSize = core.BlockSize
	op.Inodes = core.MaxInodes
	return nil
}

// LookUpInode resolves a child name under a parent directory.
func (fs *FS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath := fs.pathFor(op.Parent)
	childPath := joinPath(parentPath, op.Name)

	inum, err := core.TreeLookup(fs.img, childPath)
	if err != nil {
		return errnoOf(err)
	}
	fs.remember(toInodeID(inum), childPath)

	attr, err := core.GetAttr(fs.img, childPath)
	if err != nil {
		return errnoOf(err)
	}
	op.Entry = fuseops.ChildInodeEntry{
		Child:      toInodeID(inum),
		Attributes: attrOf(attr),
	}
	return nil
}

// GetInodeAttributes reports one inode's metadata.
func (fs *FS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.pathFor(op.Inode)
	attr, err := core.GetAttr(fs.img, path)
	if err != nil {
		return errnoOf(err)
	}
	op.Attributes = attrOf(attr)
	return nil
}

// SetInodeAttributes applies chmod/truncate/utimens depending on which
// fields the caller set.
func (fs *FS) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.pathFor(op.Inode)

	if op.Mode != nil {
		if err := core.Chmod(fs.img, path, uint32(*op.Mode)); err != nil {
			return errnoOf(err)
		}
	}
	if op.Size != nil {
		if err := core.Truncate(fs.img, path, uint32(*op.Size)); err != nil {
			return errnoOf(err)
		}
	}
	if op.Mtime != nil {
		if err := core.Utimens(fs.img, path, uint32(op.Mtime.Unix())); err != nil {
			return errnoOf(err)
		}
	}

	attr, err := core.GetAttr(fs.img, path)
	if err != nil {
		return errnoOf(err)
	}
	op.Attributes = attrOf(attr)
	return nil
}

// OpenDir is a no-op success; directory handles carry no extra state.
func (fs *FS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return nil
}

// ReadDir lists a directory's entries into op.Dst starting at op.Offset.
func (fs *FS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.pathFor(op.Inode)
	names, err := core.ReadDir(fs.img, path)
	if err != nil {
		return errnoOf(err)
	}

	for i := int(op.Offset); i < len(names); i++ {
		childPath := joinPath(path, names[i])
		inum, err := core.TreeLookup(fs.img, childPath)
		if err != nil {
			continue
		}
		attr, err := core.GetAttr(fs.img, childPath)
		if err != nil {
			continue
		}

		dtype := fuseutil.DT_File
		if tinyfs.IsDir(attr.Mode) {
			dtype = fuseutil.DT_Directory
		} else if tinyfs.IsSymlink(attr.Mode) {
			dtype = fuseutil.DT_Link
		}

		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  toInodeID(inum),
			Name:   names[i],
			Type:   dtype,
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

// MkDir creates a subdirectory.
func (fs *FS) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath := fs.pathFor(op.Parent)
	childPath := joinPath(parentPath, op.Name)

	inum, err := core.Mkdir(fs.img, childPath, uint32(op.Mode))
	if err != nil {
		return errnoOf(err)
	}
	fs.remember(toInodeID(inum), childPath)

	attr, err := core.GetAttr(fs.img, childPath)
	if err != nil {
		return errnoOf(err)
	}
	op.Entry = fuseops.ChildInodeEntry{Child: toInodeID(inum), Attributes: attrOf(attr)}
	return nil
}

// MkNode creates a regular file or special node.
func (fs *FS) MkNode(ctx context.Context, op *fuseops.MkNodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.createFile(op.Parent, op.Name, uint32(op.Mode), &op.Entry)
}

// CreateFile creates and opens a regular file in one step.
func (fs *FS) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.createFile(op.Parent, op.Name, uint32(op.Mode), &op.Entry)
}

func (fs *FS) createFile(parent fuseops.InodeID, name string, mode uint32, entry *fuseops.ChildInodeEntry) error {
	parentPath := fs.pathFor(parent)
	childPath := joinPath(parentPath, name)

	inum, err := core.Mknod(fs.img, childPath, mode)
	if err != nil {
		return errnoOf(err)
	}
	fs.remember(toInodeID(inum), childPath)

	attr, err := core.GetAttr(fs.img, childPath)
	if err != nil {
		return errnoOf(err)
	}
	*entry = fuseops.ChildInodeEntry{Child: toInodeID(inum), Attributes: attrOf(attr)}
	return nil
}

// CreateLink hard-links an existing inode under a new name.
func (fs *FS) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	targetPath := fs.pathFor(op.Target)
	parentPath := fs.pathFor(op.Parent)
	childPath := joinPath(parentPath, op.Name)

	if err := core.Link(fs.img, targetPath, childPath); err != nil {
		return errnoOf(err)
	}
	fs.remember(toInodeID(toCoreInode(op.Target)), childPath)

	attr, err := core.GetAttr(fs.img, childPath)
	if err != nil {
		return errnoOf(err)
	}
	op.Entry = fuseops.ChildInodeEntry{Child: op.Target, Attributes: attrOf(attr)}
	return nil
}

// CreateSymlink creates a symlink whose data is op.Target.
func (fs *FS) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath := fs.pathFor(op.Parent)
	childPath := joinPath(parentPath, op.Name)

	if err := core.Symlink(fs.img, op.Target, childPath); err != nil {
		return errnoOf(err)
	}
	inum, err := core.TreeLookup(fs.img, childPath)
	if err != nil {
		return errnoOf(err)
	}
	fs.remember(toInodeID(inum), childPath)

	attr, err := core.GetAttr(fs.img, childPath)
	if err != nil {
		return errnoOf(err)
	}
	op.Entry = fuseops.ChildInodeEntry{Child: toInodeID(inum), Attributes: attrOf(attr)}
	return nil
}

// ReadSymlink returns a symlink's stored target.
func (fs *FS) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.pathFor(op.Inode)
	target, err := core.Readlink(fs.img, path)
	if err != nil {
		return errnoOf(err)
	}
	op.Target = target
	return nil
}

// Rename moves a directory entry from one parent/name to another.
func (fs *FS) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	oldPath := joinPath(fs.pathFor(op.OldParent), op.OldName)
	newPath := joinPath(fs.pathFor(op.NewParent), op.NewName)

	if err := core.Rename(fs.img, oldPath, newPath); err != nil {
		return errnoOf(err)
	}
	fs.forgetPath(oldPath)
	return nil
}

// RmDir removes an empty subdirectory's entry.
func (fs *FS) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := joinPath(fs.pathFor(op.Parent), op.Name)
	if err := core.Rmdir(fs.img, path); err != nil {
		return errnoOf(err)
	}
	fs.forgetPath(path)
	return nil
}

// Unlink removes a file's directory entry.
func (fs *FS) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := joinPath(fs.pathFor(op.Parent), op.Name)
	if err := core.Unlink(fs.img, path); err != nil {
		return errnoOf(err)
	}
	fs.forgetPath(path)
	return nil
}

// OpenFile is a no-op success (SPEC_FULL.md §4.6 open).
func (fs *FS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return nil
}

// ReadFile copies file data into op.Dst.
func (fs *FS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.pathFor(op.Inode)
	data, err := core.Read(fs.img, path, len(op.Dst), int(op.Offset))
	if err != nil {
		return errnoOf(err)
	}
	op.BytesRead = copy(op.Dst, data)
	return nil
}

// WriteFile writes op.Data at op.Offset.
func (fs *FS) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.pathFor(op.Inode)
	_, err := core.Write(fs.img, path, op.Data, int(op.Offset))
	return errnoOf(err)
}

// ForgetInode drops the path-cache entry for a forgotten inode.
func (fs *FS) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.forgetInode(op.Inode)
	return nil
}

// Destroy is called once when the mount is torn down.
func (fs *FS) Destroy() {}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// Serve mounts img at mountpoint and blocks until it is unmounted. debug
// enables jacobsa/fuse's protocol-level debug log.
func Serve(ctx context.Context, img *core.Image, mountpoint string, debug bool) error {
	fs := New(img)
	server := fuseutil.NewFileSystemServer(fs)

	cfg := &fuse.MountConfig{
		FSName:      "tinyfs",
		ErrorLogger: log.New(os.Stderr, "tinyfs: ", log.LstdFlags),
	}
	if debug {
		cfg.DebugLogger = log.New(os.Stderr, "tinyfs(debug): ", log.LstdFlags)
	}

	mfs, err := fuse.Mount(mountpoint, server, cfg)
	if err != nil {
		return err
	}
	defer fuse.Unmount(mountpoint)
	return mfs.Join(ctx)
}
