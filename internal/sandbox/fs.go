package sandbox

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tagflow/engine/internal/flowerr"
)

const maxScriptFileBytes = 10 << 20 // 10 MiB

// RestrictedFS implements FS over a fixed set of allow-listed root
// directories. Every path is resolved to an absolute path and must fall
// inside one of the roots; ".." segments are rejected outright rather than
// relying on the resolved path check alone, since a symlink inside an
// allowed root could otherwise escape it.
type RestrictedFS struct {
	roots []string
}

func NewRestrictedFS(allowedRoots []string) (*RestrictedFS, error) {
	resolved := make([]string, 0, len(allowedRoots))
	for _, r := range allowedRoots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, flowerr.Wrap(flowerr.Validation, err, "resolve allowed fs root")
		}
		resolved = append(resolved, abs)
	}
	return &RestrictedFS{roots: resolved}, nil
}

func (r *RestrictedFS) resolve(path string) (string, error) {
	if strings.Contains(path, "..") {
		return "", flowerr.Newf(flowerr.Validation, "path %q may not contain ..", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", flowerr.Wrap(flowerr.Validation, err, "resolve path")
	}
	for _, root := range r.roots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", flowerr.Newf(flowerr.Validation, "path %q is outside the allowed roots", path)
}

func (r *RestrictedFS) ReadFile(path string) (string, error) {
	abs, err := r.resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", flowerr.Wrap(flowerr.NotFound, err, "stat file")
	}
	if info.Size() > maxScriptFileBytes {
		return "", flowerr.Newf(flowerr.Validation, "file %q exceeds the %d byte limit", path, maxScriptFileBytes)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", flowerr.Wrap(flowerr.NotFound, err, "read file")
	}
	return string(data), nil
}

func (r *RestrictedFS) WriteFile(path string, content string) error {
	abs, err := r.resolve(path)
	if err != nil {
		return err
	}
	if len(content) > maxScriptFileBytes {
		return flowerr.Newf(flowerr.Validation, "content for %q exceeds the %d byte limit", path, maxScriptFileBytes)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return flowerr.Wrap(flowerr.Fatal, err, "write file")
	}
	return nil
}

func (r *RestrictedFS) Exists(path string) (bool, error) {
	abs, err := r.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, flowerr.Wrap(flowerr.Fatal, err, "stat file")
	}
	return true, nil
}

func (r *RestrictedFS) ReadDir(path string) ([]string, error) {
	abs, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.NotFound, err, "read dir")
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}
