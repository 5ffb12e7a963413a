package utils

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

var ErrOutOfBounds = errors.New("read out of buffer bounds")

// BufStack is a little-endian view over a decompressed buffer segment.
// Sub buffers keep a link to their parent so errors can print the whole chain.
// Offset readers do not check bounds; callers validate a range with Check first.
type BufStack struct {
	parent         *BufStack
	buf            []byte
	relativeOffset int
	absoluteOffset int
	kind           string
	name           string
}

func NewBufStack(kind string, b []byte) *BufStack {
	return &BufStack{
		buf:  b,
		kind: kind,
	}
}

func (bs *BufStack) SubBuf(kind string, offset, size int) (*BufStack, error) {
	if err := bs.Check(offset, size); err != nil {
		return nil, err
	}
	return &BufStack{
		parent:         bs,
		buf:            bs.buf[offset : offset+size],
		relativeOffset: offset,
		absoluteOffset: bs.absoluteOffset + offset,
		kind:           kind,
	}, nil
}

func (bs *BufStack) SetName(name string) *BufStack {
	bs.name = name
	return bs
}

func (bs *BufStack) Name() string {
	return bs.name
}

func (bs *BufStack) Kind() string {
	return bs.kind
}

func (bs *BufStack) Size() int {
	return len(bs.buf)
}

func (bs *BufStack) Parent() *BufStack {
	return bs.parent
}

func (bs *BufStack) Raw() []byte {
	return bs.buf
}

func (bs *BufStack) String() string {
	return fmt.Sprintf("buf<%v>(%v)[o:0x%x,s:0x%x,ao:0x%x,ae:0x%x]",
		bs.kind, bs.name, bs.relativeOffset, len(bs.buf), bs.absoluteOffset, bs.absoluteOffset+len(bs.buf))
}

func (bs *BufStack) StringChain() string {
	s := bs.String()
	if bs.parent != nil {
		s += fmt.Sprintf("::%s", bs.parent.StringChain())
	}
	return s
}

// Check reports whether [off, off+size) lies inside the buffer.
func (bs *BufStack) Check(off, size int) error {
	if off < 0 || size < 0 || off+size > len(bs.buf) {
		return errors.Wrapf(ErrOutOfBounds, "range [0x%x,0x%x) in %s", off, off+size, bs.StringChain())
	}
	return nil
}

// CheckStrided validates count elements of elemSize bytes placed every stride bytes from off.
func (bs *BufStack) CheckStrided(off, stride, elemSize, count int) error {
	if count == 0 {
		return nil
	}
	return bs.Check(off, stride*(count-1)+elemSize)
}

func (bs *BufStack) LU32(off int) uint32 {
	return binary.LittleEndian.Uint32(bs.buf[off:])
}

func (bs *BufStack) LU16(off int) uint16 {
	return binary.LittleEndian.Uint16(bs.buf[off:])
}

func (bs *BufStack) LI16(off int) int16 {
	return int16(bs.LU16(off))
}

func (bs *BufStack) Byte(off int) byte {
	return bs.buf[off]
}

func (bs *BufStack) LF(off int) float32 {
	return math.Float32frombits(bs.LU32(off))
}

func (bs *BufStack) LHalf(off int) float32 {
	return HalfToFloat(bs.LU16(off))
}
