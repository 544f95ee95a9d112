// Package pkg provides generic utilities for irmut.
package pkg

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// FileSpill is a generic append-only store that spills items of type T to
// disk, used to buffer large mutation batches without holding them all in
// memory.
type FileSpill[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	AppendBatch(items []T) error
	Range(f func(index uint64, item T) error) error
	Close() error
}

type fileSpill[T any] struct {
	path    string
	file    *os.File
	encoder *gob.Encoder
	mu      sync.Mutex
	length  uint64
}

// NewFileSpill creates a FileSpill backed by a temp file.
func NewFileSpill[T any]() (FileSpill[T], error) {
	dir := os.TempDir()

	file, err := os.CreateTemp(dir, "irmut-spill-*.gob")
	if err != nil {
		return nil, fmt.Errorf("filespill: create temp file: %w", err)
	}

	slog.Debug("created filespill", "path", file.Name())

	return &fileSpill[T]{
		path:    file.Name(),
		file:    file,
		encoder: gob.NewEncoder(file),
	}, nil
}

// Path returns the backing file's path.
func (f *fileSpill[T]) Path() string { return f.path }

// Len returns the number of spilled items.
func (f *fileSpill[T]) Len() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.length
}

// Append encodes one item to the backing file.
func (f *fileSpill[T]) Append(item T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.encoder.Encode(item); err != nil {
		slog.Error("failed to encode item", "path", f.path, "index", f.length, "error", err)
		return fmt.Errorf("filespill: encode: %w", err)
	}

	f.length++

	return nil
}

// AppendBatch appends items in order.
func (f *fileSpill[T]) AppendBatch(items []T) error {
	for _, item := range items {
		if err := f.Append(item); err != nil {
			return err
		}
	}

	return nil
}

// Range replays every spilled item through fn, stopping on its error.
func (f *fileSpill[T]) Range(fn func(index uint64, item T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("filespill: open: %w", err)
	}

	defer func() {
		if cerr := file.Close(); cerr != nil {
			slog.Error("failed to close file", "path", f.path, "error", cerr)
		}
	}()

	dec := gob.NewDecoder(file)

	var item T

	for i := uint64(0); i < f.length; i++ {
		if err := dec.Decode(&item); err != nil {
			return fmt.Errorf("filespill: decode item %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}

// Close closes and removes the backing file.
func (f *fileSpill[T]) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}

	if err := f.file.Close(); err != nil {
		return fmt.Errorf("filespill: close: %w", err)
	}

	f.file = nil

	if err := os.Remove(f.path); err != nil {
		slog.Warn("failed to remove spill file", "path", f.path, "error", err)
	}

	return nil
}
