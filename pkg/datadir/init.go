package datadir

import (
	"fmt"
	"os"
)

// Databases and secrets stay out of version control; anchor and sequence
// exports do not.
const gitignoreContent = "*.db\n*.db-*\n.env\n"

// EnsureStructure creates the root directory and its .gitignore if they are
// missing. It is idempotent.
func EnsureStructure(d Dir) error {
	if err := os.MkdirAll(d.Root(), 0o750); err != nil {
		return fmt.Errorf("datadir: create root: %w", err)
	}

	if err := ensureGitignore(d); err != nil {
		return fmt.Errorf("datadir: gitignore: %w", err)
	}

	return nil
}

func ensureGitignore(d Dir) error {
	path := d.GitignorePath()

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.WriteFile(path, []byte(gitignoreContent), 0o600)
}
