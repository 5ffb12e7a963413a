// Package compress holds the decompressors used for container buffer segments.
package compress

import (
	"sort"
	"sync"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Decompressor expands a compressed segment into exactly memSize bytes.
type Decompressor interface {
	Decompress(src []byte, memSize int) ([]byte, error)
}

type DecompressorFunc func(src []byte, memSize int) ([]byte, error)

func (f DecompressorFunc) Decompress(src []byte, memSize int) ([]byte, error) {
	return f(src, memSize)
}

// Passthrough accepts only segments stored without compression.
var Passthrough = DecompressorFunc(func(src []byte, memSize int) ([]byte, error) {
	if len(src) != memSize {
		return nil, errors.Errorf("Segment is compressed (%d -> %d bytes) and no codec is configured", len(src), memSize)
	}
	out := make([]byte, memSize)
	copy(out, src)
	return out, nil
})

// LZ4Block decodes raw lz4 blocks.
var LZ4Block = DecompressorFunc(func(src []byte, memSize int) ([]byte, error) {
	out := make([]byte, memSize)
	n, err := lz4.UncompressBlock(src, out)
	if err != nil {
		return nil, errors.Wrapf(err, "lz4 block")
	}
	if n != memSize {
		return nil, errors.Errorf("lz4 block expanded to %d bytes, expected %d", n, memSize)
	}
	return out, nil
})

var (
	codecsLock sync.RWMutex
	codecs     = map[string]Decompressor{
		"none": Passthrough,
		"lz4":  LZ4Block,
	}
)

// Register makes a codec available by name, e.g. a native binding for the engine's own compressor.
func Register(name string, d Decompressor) {
	codecsLock.Lock()
	defer codecsLock.Unlock()
	codecs[name] = d
}

func Get(name string) (Decompressor, error) {
	codecsLock.RLock()
	defer codecsLock.RUnlock()
	if d, ok := codecs[name]; ok {
		return d, nil
	}
	return nil, errors.Errorf("Unknown decompressor %q (available: %v)", name, namesLocked())
}

func namesLocked() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
