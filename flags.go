package tinyfs

// Type bits occupy the high nibble of the mode word, exactly as specified
// in SPEC_FULL.md §3: directories use 0o040000, symlinks 0o120000, regular
// files whatever the caller supplies (typically 0o100000).
const (
	ModeTypeMask  = 0o170000
	ModeDirectory = 0o040000
	ModeSymlink   = 0o120000
)

func IsDir(mode uint32) bool     { return mode&ModeTypeMask == ModeDirectory }
func IsSymlink(mode uint32) bool { return mode&ModeTypeMask == ModeSymlink }
