package model

// Path represents a file system path.
type Path string

// File represents an IR source file on disk.
type File struct {
	Path Path
	Hash string
}

// Source pairs an IR file with the module name it was parsed into.
type Source struct {
	Origin *File
	Module string
}
