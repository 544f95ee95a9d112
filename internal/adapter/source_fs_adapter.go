// Package adapter contains infrastructure adapters for the irmut CLI.
package adapter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	m "irmut.dev/pkg/irmut/internal/model"
)

// SourceFSAdapter abstracts the filesystem operations the workflow relies
// on when scanning IR files, so domain logic stays testable off disk.
type SourceFSAdapter interface {
	// Scan resolves path arguments to IR files. A trailing /... scans
	// recursively; a directory is scanned non-recursively; a file is taken
	// as-is. Files matching any exclude regex are dropped.
	Scan(paths []m.Path, exclude []string) ([]m.File, error)

	// ReadFile loads a file from disk.
	ReadFile(path m.Path) ([]byte, error)

	// WriteFile writes content to a file with the given permissions.
	WriteFile(path m.Path, content []byte, perm os.FileMode) error

	// HashFile returns a stable fingerprint for the file at path.
	HashFile(path m.Path) (string, error)
}

// LocalSourceFSAdapter backs SourceFSAdapter with the local filesystem.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// IRExt is the IR source file extension.
const IRExt = ".ir"

// Scan resolves path patterns to IR files.
func (a *LocalSourceFSAdapter) Scan(paths []m.Path, exclude []string) ([]m.File, error) {
	if len(paths) == 0 {
		paths = []m.Path{"./..."}
	}

	excludes := make([]*regexp.Regexp, 0, len(exclude))

	for _, pat := range exclude {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("bad exclude pattern %q: %w", pat, err)
		}

		excludes = append(excludes, re)
	}

	var files []m.File

	add := func(path string) error {
		for _, re := range excludes {
			if re.MatchString(path) {
				return nil
			}
		}

		hash, err := a.HashFile(m.Path(path))
		if err != nil {
			return err
		}

		files = append(files, m.File{Path: m.Path(path), Hash: hash})

		return nil
	}

	for _, p := range paths {
		root := string(p)
		recursive := false

		if strings.HasSuffix(root, "/...") {
			root = strings.TrimSuffix(root, "/...")
			recursive = true

			if root == "" {
				root = "."
			}
		}

		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}

		if !info.IsDir() {
			if err := add(root); err != nil {
				return nil, err
			}

			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				if !recursive && path != root {
					return filepath.SkipDir
				}

				return nil
			}

			if filepath.Ext(path) != IRExt {
				return nil
			}

			return add(path)
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
	}

	return files, nil
}

// ReadFile loads a file from disk.
func (a *LocalSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	content, err := os.ReadFile(string(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return content, nil
}

// WriteFile writes content, creating parent directories.
func (a *LocalSourceFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(string(path)), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := os.WriteFile(string(path), content, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// HashFile returns the SHA-256 fingerprint of the file at path.
func (a *LocalSourceFSAdapter) HashFile(path m.Path) (string, error) {
	content, err := a.ReadFile(path)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(content)

	return hex.EncodeToString(sum[:]), nil
}
