// Package staging downloads every file an installer declares before any
// directive runs, holding each in memory or in a temp file.
package staging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
)

// File is one staged download. Open returns an independent reader each call.
type File interface {
	Filename() string
	URL() string
	Size() int64
	// Path is the on-disk location for disk-backed files, "" for memory.
	Path() string
	Open() (io.ReadSeekCloser, error)
	Release() error
}

var ErrReleased = errors.New("staged file released")

type memoryFile struct {
	name, url string

	mu   sync.Mutex
	data []byte
	gone bool
}

// NewMemoryFile stages data that is already in memory.
func NewMemoryFile(name, url string, data []byte) File {
	return &memoryFile{name: name, url: url, data: data}
}

func (f *memoryFile) Filename() string { return f.name }
func (f *memoryFile) URL() string      { return f.url }
func (f *memoryFile) Path() string     { return "" }

func (f *memoryFile) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.data))
}

func (f *memoryFile) Open() (io.ReadSeekCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone {
		return nil, ErrReleased
	}
	return nopCloser{bytes.NewReader(f.data)}, nil
}

func (f *memoryFile) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = nil
	f.gone = true
	return nil
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

type diskFile struct {
	name, url string
	path      string
	size      int64

	mu   sync.Mutex
	gone bool
}

func (f *diskFile) Filename() string { return f.name }
func (f *diskFile) URL() string      { return f.url }
func (f *diskFile) Path() string     { return f.path }
func (f *diskFile) Size() int64      { return f.size }

func (f *diskFile) Open() (io.ReadSeekCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone {
		return nil, ErrReleased
	}
	return os.Open(f.path)
}

func (f *diskFile) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone {
		return nil
	}
	f.gone = true
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Set is the staged files of one install, in declaration order.
type Set struct {
	files []File
}

func NewSet(files ...File) *Set { return &Set{files: files} }

func (s *Set) Files() []File {
	if s == nil {
		return nil
	}
	return s.files
}

// Lookup finds a staged file by filename. With duplicate names the first
// declared wins.
func (s *Set) Lookup(name string) (File, bool) {
	if s == nil {
		return nil, false
	}
	for _, f := range s.files {
		if f.Filename() == name {
			return f, true
		}
	}
	return nil, false
}

// Release frees every file and reports all failures together. Safe to call
// more than once.
func (s *Set) Release() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, f := range s.files {
		if f == nil {
			continue
		}
		if err := f.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
