package vfs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type DirectoryDriver struct {
	path string
}

func NewDirectoryDriver(path string) *DirectoryDriver {
	return &DirectoryDriver{path: path}
}

func (dd *DirectoryDriver) Name() string {
	return filepath.Base(dd.path)
}

func (dd *DirectoryDriver) IsDirectory() bool {
	return true
}

func (dd *DirectoryDriver) Path() string {
	return dd.path
}

func (dd *DirectoryDriver) List() ([]string, error) {
	entries, err := os.ReadDir(dd.path)
	if err != nil {
		return nil, errors.Wrapf(err, "Error getting directory '%s' info", dd.path)
	}
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.Name())
	}
	return result, nil
}

// GetElement resolves a direct child. Names that would leave the directory are refused.
func (dd *DirectoryDriver) GetElement(name string) (Element, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, errors.Errorf("Invalid element name %q", name)
	}
	newPath := filepath.Join(dd.path, name)
	s, err := os.Stat(newPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Stat error")
	}
	if s.IsDir() {
		return NewDirectoryDriver(newPath), nil
	}
	return &DirectoryDriverFile{path: newPath}, nil
}

type DirectoryDriverFile struct {
	path string
}

func NewDirectoryDriverFile(path string) *DirectoryDriverFile {
	return &DirectoryDriverFile{path: path}
}

func (ddf *DirectoryDriverFile) Name() string {
	return filepath.Base(ddf.path)
}

func (ddf *DirectoryDriverFile) IsDirectory() bool {
	return false
}

func (ddf *DirectoryDriverFile) Path() string {
	return ddf.path
}

func (ddf *DirectoryDriverFile) Size() int64 {
	stat, err := os.Stat(ddf.path)
	if err != nil {
		return 0
	}
	return stat.Size()
}

func (ddf *DirectoryDriverFile) Open() (Stream, error) {
	f, err := os.Open(ddf.path)
	if err != nil {
		return nil, errors.Wrapf(err, "os.Open('%s')", ddf.path)
	}
	return f, nil
}
