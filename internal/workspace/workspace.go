// Package workspace manages the on-disk layout that holds the database, logs and exports.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Directories created under every workspace root.
const (
	ExportsDir = "exports"
	LogsDir    = "logs"
)

// Handle implements app.WorkspaceHandle and provides helper methods.
type Handle struct {
	Root string
}

// Path joins workspace root with provided parts.
func (h Handle) Path(parts ...string) string {
	all := append([]string{h.Root}, parts...)
	return filepath.Join(all...)
}

// Ensure creates the workspace directory structure if missing.
func Ensure(root string) (Handle, error) {
	if root == "" {
		return Handle{}, fmt.Errorf("workspace root is required")
	}
	h := Handle{Root: root}
	for _, d := range []string{root, h.Path(ExportsDir), h.Path(LogsDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return h, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return h, nil
}
