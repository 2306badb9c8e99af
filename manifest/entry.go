package manifest

// Entry is one of the four kinds of manifest record:
// a directory, a normal file, an executable file, or a symlink. It is a
// closed sum type, pattern-matched with a type switch rather than modeled
// as an interface hierarchy.
type Entry interface {
	isEntry()
}

// NormalFile records a regular, non-executable file: its content digest,
// its modification time (Unix seconds), and its size in bytes.
type NormalFile struct {
	Digest  string
	ModTime int64
	Size    int64
}

func (NormalFile) isEntry() {}

// ExecutableFile is a NormalFile with the executable bit set.
type ExecutableFile struct {
	Digest  string
	ModTime int64
	Size    int64
}

func (ExecutableFile) isEntry() {}

// Symlink records a symbolic link: the digest and size are computed over
// the UTF-8 bytes of the link target, not over any file content.
type Symlink struct {
	Digest string
	Size   int64
}

func (Symlink) isEntry() {}
