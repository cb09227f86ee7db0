// Package datadir encapsulates the path knowledge for the .mmpa/ data
// directory: the config file, the .env file, and the anchor and sequence
// stores for each storage backend.
package datadir

import (
	"os"
	"path/filepath"
)

// DefaultRoot is the data directory used when none is configured.
const DefaultRoot = ".mmpa"

// Dir is a value object that resolves paths within a data directory.
type Dir struct {
	root string
}

// New creates a Dir rooted at the given path, made absolute. No I/O is
// performed; use EnsureStructure to create the directory.
func New(root string) Dir {
	if root == "" {
		root = DefaultRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	return Dir{root: abs}
}

// Root returns the absolute path to the data directory.
func (d Dir) Root() string { return d.root }

// ConfigPath returns the path to the main config file.
func (d Dir) ConfigPath() string { return filepath.Join(d.root, "config.yaml") }

// EnvPath returns the path to the optional .env file.
func (d Dir) EnvPath() string { return filepath.Join(d.root, ".env") }

// AnchorsPath returns the anchor file used by the json backend.
func (d Dir) AnchorsPath() string { return filepath.Join(d.root, "anchors.json") }

// SequencesPath returns the sequence file used by the json backend.
func (d Dir) SequencesPath() string { return filepath.Join(d.root, "sequences.json") }

// DatabasePath returns the database used by the sqlite backend.
func (d Dir) DatabasePath() string { return filepath.Join(d.root, "mmpa.db") }

func (d Dir) GitignorePath() string { return filepath.Join(d.root, ".gitignore") }

// Exists reports whether the root directory exists on disk.
func (d Dir) Exists() bool {
	info, err := os.Stat(d.root)

	return err == nil && info.IsDir()
}
