package utils

import (
	"path"
	"path/filepath"
	"strings"
)

// FileName возвращает имя файла из локального пути
func FileName(sourcePath string) string {
	return filepath.Base(sourcePath)
}

// RemotePath склеивает удалённую директорию и имя файла.
// Удалённые пути всегда используют "/" независимо от ОС.
func RemotePath(dir, name string) string {
	dir = filepath.ToSlash(dir)
	if dir == "" {
		return name
	}
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return path.Clean(dir + name)
}

// ResolveRemote приводит p к абсолютному пути относительно cwd
func ResolveRemote(cwd, p string) string {
	p = filepath.ToSlash(p)
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	if cwd == "" {
		cwd = "/"
	}
	return path.Join(cwd, p)
}
