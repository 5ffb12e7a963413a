package gltfexport

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/binary"
)

// bufferWriter owns the document's single buffer and its running offset.
// Each append writes one block and creates its buffer view and accessor,
// so accessor order always equals write order.
type bufferWriter struct {
	doc    *gltf.Document
	buffer uint32
	data   []byte
}

func newBufferWriter(doc *gltf.Document) *bufferWriter {
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	return &bufferWriter{doc: doc, buffer: uint32(len(doc.Buffers) - 1)}
}

type block struct {
	data      interface{}
	count     int
	component gltf.ComponentType
	kind      gltf.AccessorType
	target    gltf.Target
	// vertex attributes declare their element size as view stride
	strided  bool
	min, max []float32
}

func elementSize(c gltf.ComponentType, t gltf.AccessorType) int {
	var comp int
	switch c {
	case gltf.ComponentUbyte, gltf.ComponentByte:
		comp = 1
	case gltf.ComponentUshort, gltf.ComponentShort:
		comp = 2
	default:
		comp = 4
	}
	switch t {
	case gltf.AccessorVec2:
		return 2 * comp
	case gltf.AccessorVec3:
		return 3 * comp
	case gltf.AccessorVec4:
		return 4 * comp
	case gltf.AccessorMat4:
		return 16 * comp
	}
	return comp
}

// append writes b and pads the buffer to 4 bytes. The padding belongs to the
// block's view so views stay contiguous.
func (w *bufferWriter) append(b block) (uint32, error) {
	elem := elementSize(b.component, b.kind)
	size := elem * b.count
	viewLen := (size + 3) &^ 3

	offset := len(w.data)
	w.data = append(w.data, make([]byte, viewLen)...)
	if size > 0 {
		if err := binary.Write(w.data[offset:offset+size], uint32(elem), b.data); err != nil {
			return 0, errors.Wrapf(err, "Failed to pack %d elements at 0x%x", b.count, offset)
		}
	}

	view := &gltf.BufferView{
		Buffer:     w.buffer,
		ByteOffset: uint32(offset),
		ByteLength: uint32(viewLen),
		Target:     b.target,
	}
	if b.strided {
		view.ByteStride = uint32(elem)
	}
	w.doc.BufferViews = append(w.doc.BufferViews, view)

	w.doc.Accessors = append(w.doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(uint32(len(w.doc.BufferViews) - 1)),
		ComponentType: b.component,
		Count:         uint32(b.count),
		Type:          b.kind,
		Min:           b.min,
		Max:           b.max,
	})
	return uint32(len(w.doc.Accessors) - 1), nil
}

func (w *bufferWriter) Offset() int {
	return len(w.data)
}

func (w *bufferWriter) vec2(v []mgl32.Vec2) (uint32, error) {
	data := make([][2]float32, len(v))
	for i := range v {
		data[i] = v[i]
	}
	return w.append(block{data: data, count: len(v), component: gltf.ComponentFloat,
		kind: gltf.AccessorVec2, target: gltf.TargetArrayBuffer, strided: true})
}

func (w *bufferWriter) vec3(v []mgl32.Vec3, bounds bool) (uint32, error) {
	data := make([][3]float32, len(v))
	for i := range v {
		data[i] = v[i]
	}
	b := block{data: data, count: len(v), component: gltf.ComponentFloat,
		kind: gltf.AccessorVec3, target: gltf.TargetArrayBuffer, strided: true}
	if bounds && len(v) > 0 {
		b.min, b.max = boundsOf(v)
	}
	return w.append(b)
}

func (w *bufferWriter) vec4(v []mgl32.Vec4) (uint32, error) {
	data := make([][4]float32, len(v))
	for i := range v {
		data[i] = v[i]
	}
	return w.append(block{data: data, count: len(v), component: gltf.ComponentFloat,
		kind: gltf.AccessorVec4, target: gltf.TargetArrayBuffer, strided: true})
}

func (w *bufferWriter) joints(j [][4]uint16) (uint32, error) {
	return w.append(block{data: j, count: len(j), component: gltf.ComponentUshort,
		kind: gltf.AccessorVec4, target: gltf.TargetArrayBuffer, strided: true})
}

func (w *bufferWriter) weights(wt [][4]float32) (uint32, error) {
	return w.append(block{data: wt, count: len(wt), component: gltf.ComponentFloat,
		kind: gltf.AccessorVec4, target: gltf.TargetArrayBuffer, strided: true})
}

func (w *bufferWriter) indices(idx []uint16) (uint32, error) {
	return w.append(block{data: idx, count: len(idx), component: gltf.ComponentUshort,
		kind: gltf.AccessorScalar, target: gltf.TargetElementArrayBuffer})
}

func (w *bufferWriter) matrices(m []mgl32.Mat4) (uint32, error) {
	data := make([][4][4]float32, len(m))
	for i := range m {
		for c := 0; c < 4; c++ {
			data[i][c] = m[i].Col(c)
		}
	}
	return w.append(block{data: data, count: len(m), component: gltf.ComponentFloat, kind: gltf.AccessorMat4})
}

// finish attaches the written bytes; an empty buffer is removed.
func (w *bufferWriter) finish() {
	if len(w.data) == 0 {
		w.doc.Buffers = w.doc.Buffers[:w.buffer]
		return
	}
	buf := w.doc.Buffers[w.buffer]
	buf.ByteLength = uint32(len(w.data))
	buf.Data = w.data
}

func boundsOf(v []mgl32.Vec3) ([]float32, []float32) {
	min := []float32{v[0][0], v[0][1], v[0][2]}
	max := []float32{v[0][0], v[0][1], v[0][2]}
	for _, p := range v[1:] {
		for a := 0; a < 3; a++ {
			if p[a] < min[a] {
				min[a] = p[a]
			}
			if p[a] > max[a] {
				max[a] = p[a]
			}
		}
	}
	return min, max
}
