package red4

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Parser turns a container stream into its chunk metadata.
// A nil Resource with a nil error means the stream is not a container at all.
type Parser interface {
	Parse(r io.ReadSeeker, name string) (*Resource, error)
}

type ParserFunc func(r io.ReadSeeker, name string) (*Resource, error)

func (f ParserFunc) Parse(r io.ReadSeeker, name string) (*Resource, error) {
	return f(r, name)
}

const SidecarExt = ".yaml"

// SidecarParser reads metadata dumped by the reflection system into <name>.yaml
// next to the container. The container stream itself is only used for buffers.
type SidecarParser struct {
	// ReadFile defaults to os.ReadFile
	ReadFile func(name string) ([]byte, error)
}

func (sp *SidecarParser) Parse(r io.ReadSeeker, name string) (*Resource, error) {
	readFile := os.ReadFile
	if sp != nil && sp.ReadFile != nil {
		readFile = sp.ReadFile
	}

	data, err := readFile(name + SidecarExt)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "Failed to read metadata for %q", name)
	}
	return DecodeMetadata(bytes.NewReader(data), name)
}

func DecodeMetadata(r io.Reader, name string) (*Resource, error) {
	var res Resource
	if err := yaml.NewDecoder(r).Decode(&res); err != nil {
		return nil, errors.Wrapf(err, "Failed to unmarshal metadata for %q", name)
	}
	if res.Name == "" {
		res.Name = name
	}
	return &res, nil
}

func EncodeMetadata(w io.Writer, res *Resource) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return errors.Wrapf(err, "Failed to marshal yaml")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrapf(err, "Failed to close yaml encoder")
	}
	return nil
}
