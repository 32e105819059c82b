package module

import (
	"os"
	"path/filepath"
	"strings"

	"portage/internal/logger"

	"go.uber.org/zap"
)

// Discover scans dir for executable transfer modules and registers
// each one. Directories, hidden files and non-executables are skipped.
// Returns the number of modules registered.
func Discover(dir string, reg *Registry) int {
	if dir == "" {
		return 0
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Log.Warn("cannot read module directory",
			zap.String("dir", dir),
			zap.Error(err))
		return 0
	}

	count := 0
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !eligible(entry, path) {
			continue
		}

		m, err := NewExternal(path)
		if err != nil {
			logger.Log.Warn("skipping module",
				zap.String("path", path),
				zap.Error(err))
			continue
		}

		reg.Register(m)
		count++
	}

	if count == 0 {
		logger.Log.Warn("no external modules found",
			zap.String("dir", dir))
	}

	return count
}

func eligible(entry os.DirEntry, path string) bool {
	if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().Perm()&0111 != 0
}
