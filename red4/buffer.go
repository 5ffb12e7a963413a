package red4

import (
	"io"

	"github.com/pkg/errors"

	"github.com/red4tools/meshexport/compress"
)

// ReadBuffer reads one segment from the container stream and returns its decompressed bytes.
func ReadBuffer(r io.ReadSeeker, info BufferInfo, d compress.Decompressor) ([]byte, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to get stream size")
	}
	if uint64(info.Offset)+uint64(info.DiskSize) > uint64(end) {
		return nil, errors.Errorf("Segment at 0x%x (0x%x bytes) past stream end 0x%x", info.Offset, info.DiskSize, end)
	}
	if _, err := r.Seek(int64(info.Offset), io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "Failed to seek to segment at 0x%x", info.Offset)
	}
	raw := make([]byte, info.DiskSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrapf(err, "Failed to read segment at 0x%x (0x%x bytes)", info.Offset, info.DiskSize)
	}
	if info.DiskSize == info.MemSize {
		return raw, nil
	}
	if d == nil {
		d = compress.Passthrough
	}
	data, err := d.Decompress(raw, int(info.MemSize))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decompress segment at 0x%x", info.Offset)
	}
	return data, nil
}

// ReadIndexedBuffer reads the segment referenced by a 1-based buffer index.
func (r *Resource) ReadIndexedBuffer(stream io.ReadSeeker, index uint32, d compress.Decompressor) ([]byte, error) {
	info, err := r.Buffer(index)
	if err != nil {
		return nil, err
	}
	return ReadBuffer(stream, info, d)
}
