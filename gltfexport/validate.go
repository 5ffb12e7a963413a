package gltfexport

import (
	"fmt"
	"log"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/binary"

	"github.com/red4tools/meshexport/config"
	"github.com/red4tools/meshexport/utils"
)

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	const shown = 5
	list := e.Problems
	if len(list) > shown {
		list = list[:shown]
	}
	return fmt.Sprintf("glTF validation failed with %d problem(s): %s", len(e.Problems), strings.Join(list, "; "))
}

type validator struct {
	doc      *gltf.Document
	problems []string
}

func (v *validator) fail(format string, a ...interface{}) {
	v.problems = append(v.problems, fmt.Sprintf(format, a...))
}

// accessorData returns the bytes an accessor covers and its element stride,
// or nil when the accessor is out of bounds.
func (v *validator) accessorData(i uint32) ([]byte, uint32) {
	if int(i) >= len(v.doc.Accessors) {
		return nil, 0
	}
	acc := v.doc.Accessors[i]
	if acc.BufferView == nil || int(*acc.BufferView) >= len(v.doc.BufferViews) {
		return nil, 0
	}
	view := v.doc.BufferViews[*acc.BufferView]
	if int(view.Buffer) >= len(v.doc.Buffers) {
		return nil, 0
	}
	data := v.doc.Buffers[view.Buffer].Data
	elem := uint32(elementSize(acc.ComponentType, acc.Type))
	stride := elem
	if view.ByteStride != 0 {
		stride = view.ByteStride
	}
	if acc.Count == 0 {
		return nil, stride
	}
	need := acc.ByteOffset + (acc.Count-1)*stride + elem
	start := view.ByteOffset + acc.ByteOffset
	if need > view.ByteLength || int(view.ByteOffset+view.ByteLength) > len(data) {
		return nil, stride
	}
	return data[start : view.ByteOffset+view.ByteLength], stride
}

func (v *validator) buffers() {
	for i, b := range v.doc.Buffers {
		if b.Data != nil && int(b.ByteLength) != len(b.Data) {
			v.fail("buffer %d: byteLength %d, %d bytes of data", i, b.ByteLength, len(b.Data))
		}
	}
	end := map[uint32]uint32{}
	for i, view := range v.doc.BufferViews {
		if int(view.Buffer) >= len(v.doc.Buffers) {
			v.fail("bufferView %d: buffer %d missing", i, view.Buffer)
			continue
		}
		if view.ByteOffset+view.ByteLength > v.doc.Buffers[view.Buffer].ByteLength {
			v.fail("bufferView %d: range [%d,%d) past buffer end", i, view.ByteOffset, view.ByteOffset+view.ByteLength)
		}
		if view.ByteOffset != end[view.Buffer] {
			v.fail("bufferView %d: starts at %d, previous view ends at %d", i, view.ByteOffset, end[view.Buffer])
		}
		end[view.Buffer] = view.ByteOffset + view.ByteLength
	}
	for i, acc := range v.doc.Accessors {
		if acc.Count == 0 {
			v.fail("accessor %d: empty", i)
			continue
		}
		if data, _ := v.accessorData(uint32(i)); data == nil {
			v.fail("accessor %d: %d elements do not fit its buffer view", i, acc.Count)
		}
	}
}

func (v *validator) count(i uint32) uint32 {
	if int(i) >= len(v.doc.Accessors) {
		return 0
	}
	return v.doc.Accessors[i].Count
}

func (v *validator) primitive(name string, prim *gltf.Primitive, skin *gltf.Skin) {
	pos, ok := prim.Attributes["POSITION"]
	if !ok {
		v.fail("%s: no POSITION attribute", name)
		return
	}
	vertices := v.count(pos)
	for attr, acc := range prim.Attributes {
		if c := v.count(acc); c != vertices {
			v.fail("%s: %s has %d elements, POSITION %d", name, attr, c, vertices)
		}
	}
	for t, target := range prim.Targets {
		for attr, acc := range target {
			if c := v.count(acc); c != vertices {
				v.fail("%s: target %d %s has %d elements, POSITION %d", name, t, attr, c, vertices)
			}
		}
	}

	if prim.Indices != nil {
		count := v.count(*prim.Indices)
		if count%3 != 0 {
			v.fail("%s: %d indices is not a triangle list", name, count)
		}
		if data, stride := v.accessorData(*prim.Indices); data != nil {
			indices := make([]uint16, count)
			if err := binary.Read(data, stride, indices); err != nil {
				v.fail("%s: indices: %v", name, err)
			}
			for i, idx := range indices {
				if uint32(idx) >= vertices {
					v.fail("%s: index %d references vertex %d of %d", name, i, idx, vertices)
					break
				}
			}
		}
	}

	for _, attr := range []string{"JOINTS_0", "JOINTS_1"} {
		acc, ok := prim.Attributes[attr]
		if !ok {
			continue
		}
		if skin == nil {
			v.fail("%s: %s without a skin", name, attr)
			continue
		}
		data, stride := v.accessorData(acc)
		if data == nil {
			continue
		}
		joints := make([][4]uint16, v.count(acc))
		if err := binary.Read(data, stride, joints); err != nil {
			v.fail("%s: %s: %v", name, attr, err)
			continue
		}
		for vert, j := range joints {
			for _, ji := range j {
				if int(ji) >= len(skin.Joints) {
					v.fail("%s: %s vertex %d joint %d, skin has %d", name, attr, vert, ji, len(skin.Joints))
					break
				}
			}
		}
	}
}

func (v *validator) nodes() {
	for i, node := range v.doc.Nodes {
		var skin *gltf.Skin
		if node.Skin != nil {
			if int(*node.Skin) >= len(v.doc.Skins) {
				v.fail("node %d: skin %d missing", i, *node.Skin)
			} else {
				skin = v.doc.Skins[*node.Skin]
			}
		}
		if node.Mesh == nil {
			continue
		}
		if int(*node.Mesh) >= len(v.doc.Meshes) {
			v.fail("node %d: mesh %d missing", i, *node.Mesh)
			continue
		}
		m := v.doc.Meshes[*node.Mesh]
		for _, prim := range m.Primitives {
			v.primitive(m.Name, prim, skin)
		}
	}
	for i, skin := range v.doc.Skins {
		for _, j := range skin.Joints {
			if int(j) >= len(v.doc.Nodes) {
				v.fail("skin %d: joint node %d missing", i, j)
			}
		}
		if skin.InverseBindMatrices != nil && v.count(*skin.InverseBindMatrices) != uint32(len(skin.Joints)) {
			v.fail("skin %d: %d inverse bind matrices for %d joints", i,
				v.count(*skin.InverseBindMatrices), len(skin.Joints))
		}
	}
}

// Validate reports structural problems of an assembled document.
func Validate(doc *gltf.Document) []string {
	v := &validator{doc: doc}
	v.buffers()
	v.nodes()
	return v.problems
}

// Check applies a validation mode: strict turns problems into a
// *ValidationError, tryfix logs them and lets the write go on. Without a
// logger tryfix problems go to the standard logger.
func Check(doc *gltf.Document, mode config.ValidationMode, logger *utils.Logger) error {
	if mode == config.ValidationSkip {
		return nil
	}
	problems := Validate(doc)
	if len(problems) == 0 {
		return nil
	}
	if mode == config.ValidationStrict {
		return &ValidationError{Problems: problems}
	}
	for _, p := range problems {
		if logger != nil {
			logger.Printf("validation: %s", p)
		} else {
			log.Printf("[gltfexport] validation: %s", p)
		}
	}
	return nil
}
