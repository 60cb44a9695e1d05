package table

import (
	"os"
	"path/filepath"
)

// DefaultFileName is the mapping table looked up when no path is given.
const DefaultFileName = "pvl.yaml"

// Resolve locates the mapping table file. Candidates are tried in order:
// the explicit path, then its base name (or DefaultFileName) in the
// working directory, the executable's directory and that directory's
// parent. The first existing file wins.
func Resolve(explicit string) (string, error) {
	candidates := searchPath(explicit)
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	name := explicit
	if name == "" {
		name = DefaultFileName
	}
	return "", &ConfigError{
		Code:    ErrFileNotFound,
		Path:    name,
		Message: "mapping table not found",
	}
}

func searchPath(explicit string) []string {
	var out []string
	base := DefaultFileName
	if explicit != "" {
		out = append(out, explicit)
		base = filepath.Base(explicit)
	}
	if wd, err := os.Getwd(); err == nil {
		out = append(out, filepath.Join(wd, base))
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		out = append(out, filepath.Join(dir, base), filepath.Join(filepath.Dir(dir), base))
	}
	return out
}
