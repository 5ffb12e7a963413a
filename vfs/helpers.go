package vfs

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	MeshExt = ".mesh"
	RigExt  = ".rig"
)

func DirectoryGetFile(d Directory, name string) (File, error) {
	e, err := d.GetElement(name)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot open file '%s'", name)
	}
	if e.IsDirectory() {
		return nil, errors.Errorf("File '%s' is directory, not a file!", name)
	}
	return e.(File), nil
}

// ListByExt returns sorted names of entries with one of the given extensions.
func ListByExt(d Directory, exts ...string) ([]string, error) {
	names, err := d.List()
	if err != nil {
		return nil, err
	}
	var result []string
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		for _, want := range exts {
			if ext == want {
				result = append(result, name)
				break
			}
		}
	}
	sort.Strings(result)
	return result, nil
}

// OpenFile opens a file of d and returns its path with the stream.
func OpenFile(d Directory, name string) (string, Stream, error) {
	f, err := DirectoryGetFile(d, name)
	if err != nil {
		return "", nil, err
	}
	s, err := f.Open()
	if err != nil {
		return "", nil, err
	}
	return f.Path(), s, nil
}
