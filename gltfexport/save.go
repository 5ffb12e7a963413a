package gltfexport

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// Encode writes doc to w, as glb when asBinary is set. Text output embeds the
// buffer as a data uri since there is no place for a sidecar file.
func Encode(w io.Writer, doc *gltf.Document, asBinary bool) error {
	if !asBinary {
		for _, b := range doc.Buffers {
			if b.URI == "" {
				b.EmbeddedResource()
			}
		}
	}
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = asBinary
	return encoder.Encode(doc)
}

// Save writes doc to path. Text output goes next to a <name>.bin buffer file.
func Save(doc *gltf.Document, path string, asBinary bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return errors.Wrapf(err, "Failed to create output directory for %q", path)
	}
	if asBinary {
		if err := gltf.SaveBinary(doc, path); err != nil {
			return errors.Wrapf(err, "Failed to write %q", path)
		}
		return nil
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, b := range doc.Buffers {
		if b.URI == "" {
			b.URI = base + ".bin"
			if i > 0 {
				b.URI = fmt.Sprintf("%s_%d.bin", base, i)
			}
		}
	}
	if err := gltf.Save(doc, path); err != nil {
		return errors.Wrapf(err, "Failed to write %q", path)
	}
	return nil
}
