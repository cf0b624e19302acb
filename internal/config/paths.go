package config

import (
	"os"
	"path/filepath"
	"strings"
)

// baseDir is where relative runtime paths are anchored: RATIONABLE_HOME when set, else the
// directory of the running binary, else the working directory.
func baseDir() string {
	if home := envValue("HOME"); home != "" {
		return expandHome(home)
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// ResolveRuntimePath turns a configured directory into an absolute path. An empty value
// falls back to fallbackSubdir under the base directory; "~/" expands to the user's home.
func ResolveRuntimePath(raw, fallbackSubdir string) string {
	target := expandHome(strings.TrimSpace(raw))
	if target == "" {
		target = strings.TrimSpace(fallbackSubdir)
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(baseDir(), target)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
