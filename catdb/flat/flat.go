// Package flat lays out the data directory.
package flat

import (
	"os"
	"path/filepath"

	"github.com/rotblauer/catmode/catz"
)

const (
	ExportsDir  = "exports"
	DatasetsDir = "datasets"
)

type Flat struct {
	// path includes the root directory.
	path string
}

func NewFlatWithRoot(root string) *Flat {
	root = filepath.Clean(root)
	// If root is not absolute, make it absolute.
	if !filepath.IsAbs(root) {
		root, _ = filepath.Abs(root)
	}
	return &Flat{path: root}
}

// Joining returns a new Flat for a subdirectory.
func (f *Flat) Joining(paths ...string) *Flat {
	return &Flat{path: filepath.Join(append([]string{f.path}, paths...)...)}
}

func (f *Flat) Exports() *Flat {
	return f.Joining(ExportsDir)
}

func (f *Flat) Datasets() *Flat {
	return f.Joining(DatasetsDir)
}

// Exists returns true if the directory exists.
func (f *Flat) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *Flat) MkdirAll() error {
	return os.MkdirAll(f.path, 0770)
}

func (f *Flat) Path() string {
	return f.path
}

func (f *Flat) Join(name string) string {
	return filepath.Join(f.path, name)
}

// NamedGZWriter truncates and opens name for gzipped writing.
func (f *Flat) NamedGZWriter(name string) (*catz.GZFileWriter, error) {
	config := catz.DefaultGZFileWriterConfig()
	config.Flag = os.O_WRONLY | os.O_TRUNC | os.O_CREATE
	return catz.NewGZFileWriter(f.Join(name), config)
}

// NamedReader opens name, gzipped or not.
func (f *Flat) NamedReader(name string) (*catz.Reader, error) {
	return catz.Open(f.Join(name))
}
