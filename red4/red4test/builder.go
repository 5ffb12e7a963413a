// Package red4test builds small containers with real vertex and index bytes for tests.
package red4test

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/red4tools/meshexport/red4"
	"github.com/red4tools/meshexport/utils"
)

// DegenerateNormal is the packed word the engine writes for missing normals.
const DegenerateNormal = 0x5FF7FDFF

type Vertex struct {
	Position [3]int16
	Normal   uint32
	Tangent  uint32
	UV0      [2]float32
	UV1      [2]float32
	Color    [4]byte
	Joints   []byte
	Weights  []byte
	Morph    [3]float32
}

type Submesh struct {
	LOD      uint32
	Vertices []Vertex
	Indices  []uint16

	// SkinSlots is the per-vertex joint count, a multiple of 4
	SkinSlots int
	Normals   bool
	Tangents  bool
	UV0       bool
	UV1       bool
	Colors    bool
	Morph     bool
	// IndexSubOffset declares a per-chunk index offset instead of the shared base
	IndexSubOffset bool
}

type Mesh struct {
	Submeshes      []Submesh
	BoneNames      []string
	BonePositions  [][4]float32
	Appearances    []red4.Appearance
	GarmentSupport bool
	Scale          [4]float32
	Offset         [4]float32
	Cloth          *red4.ClothParams
	ClothGraphical *red4.ClothParams
	// ExtraBuffers are appended after the render buffer as buffers 2, 3, ...
	ExtraBuffers [][]byte
}

const containerHeaderSize = 0x20

func (m *Mesh) vertexStride(sm *Submesh) int {
	stride := 8 + 2*sm.SkinSlots
	if sm.Morph {
		stride += 6
	}
	// keep records 4-byte aligned
	return (stride + 3) &^ 3
}

// Build returns the container bytes and matching metadata.
func (m *Mesh) Build() ([]byte, *red4.Resource) {
	var vb, ib bytes.Buffer
	le := binary.LittleEndian

	chunks := make([]red4.RenderChunkInfo, len(m.Submeshes))
	indexOffsets := make([]uint32, len(m.Submeshes))

	for iSub := range m.Submeshes {
		sm := &m.Submeshes[iSub]
		stride := m.vertexStride(sm)
		offsets := make([]uint32, 5)
		elements := []red4.VertexElement{{Usage: red4.UsagePosition}}

		offsets[0] = uint32(vb.Len())
		for _, v := range sm.Vertices {
			rec := make([]byte, stride)
			le.PutUint16(rec[0:], uint16(v.Position[0]))
			le.PutUint16(rec[2:], uint16(v.Position[1]))
			le.PutUint16(rec[4:], uint16(v.Position[2]))
			copy(rec[8:8+sm.SkinSlots], v.Joints)
			copy(rec[8+sm.SkinSlots:8+2*sm.SkinSlots], v.Weights)
			if sm.Morph {
				o := 8 + 2*sm.SkinSlots
				for i := 0; i < 3; i++ {
					le.PutUint16(rec[o+2*i:], utils.FloatToHalf(v.Morph[i]))
				}
			}
			vb.Write(rec)
		}
		for i := 0; i < sm.SkinSlots/4; i++ {
			elements = append(elements,
				red4.VertexElement{Usage: red4.UsageSkinIndices},
				red4.VertexElement{Usage: red4.UsageSkinWeights})
		}
		if sm.Morph {
			elements = append(elements, red4.VertexElement{Usage: red4.UsageExtraData})
		}

		if sm.UV0 {
			offsets[1] = uint32(vb.Len())
			for _, v := range sm.Vertices {
				writeHalves(&vb, v.UV0[:])
			}
			elements = append(elements, red4.VertexElement{Usage: red4.UsageTexCoord, StreamIndex: 1})
		}

		if sm.Normals || sm.Tangents {
			offsets[2] = uint32(vb.Len())
			for _, v := range sm.Vertices {
				if sm.Normals {
					binary.Write(&vb, le, v.Normal)
				}
				if sm.Tangents {
					binary.Write(&vb, le, v.Tangent)
				}
			}
			if sm.Normals {
				elements = append(elements, red4.VertexElement{Usage: red4.UsageNormal, StreamIndex: 2})
			}
			if sm.Tangents {
				elements = append(elements, red4.VertexElement{Usage: red4.UsageTangent, StreamIndex: 2})
			}
		}

		if sm.Colors || sm.UV1 {
			offsets[3] = uint32(vb.Len())
			for _, v := range sm.Vertices {
				if sm.Colors {
					vb.Write(v.Color[:])
				}
				if sm.UV1 {
					writeHalves(&vb, v.UV1[:])
					if !sm.Colors {
						vb.Write(make([]byte, 4))
					}
				}
			}
			if sm.Colors {
				elements = append(elements, red4.VertexElement{Usage: red4.UsageColor, StreamIndex: 3})
			}
			if sm.UV1 {
				elements = append(elements, red4.VertexElement{Usage: red4.UsageTexCoord, StreamIndex: 3})
			}
		}

		indexOffsets[iSub] = uint32(ib.Len())
		for _, idx := range sm.Indices {
			binary.Write(&ib, le, idx)
		}

		chunks[iSub] = red4.RenderChunkInfo{
			NumVertices: uint32(len(sm.Vertices)),
			NumIndices:  uint32(len(sm.Indices)),
			LodMask:     sm.LOD,
			ChunkVertices: red4.ChunkVertices{
				ByteOffsets: offsets,
				VertexLayout: red4.VertexLayout{
					Elements:    elements,
					SlotStrides: []uint32{uint32(stride)},
				},
			},
		}
	}

	// the shared-base index layout only works when every chunk starts at the base
	for iSub := range m.Submeshes {
		if m.Submeshes[iSub].IndexSubOffset || indexOffsets[iSub] != 0 {
			sub := indexOffsets[iSub]
			chunks[iSub].ChunkIndices.TeOffset = &sub
		}
	}

	for vb.Len()%4 != 0 {
		vb.WriteByte(0)
	}
	indexBase := uint32(vb.Len())
	render := append(vb.Bytes(), ib.Bytes()...)

	var container bytes.Buffer
	container.Write(make([]byte, containerHeaderSize))
	buffers := []red4.BufferInfo{{
		Offset:   uint32(container.Len()),
		DiskSize: uint32(len(render)),
		MemSize:  uint32(len(render)),
	}}
	container.Write(render)
	for _, extra := range m.ExtraBuffers {
		buffers = append(buffers, red4.BufferInfo{
			Offset:   uint32(container.Len()),
			DiskSize: uint32(len(extra)),
			MemSize:  uint32(len(extra)),
		})
		container.Write(extra)
	}

	scale := m.Scale
	if scale == ([4]float32{}) {
		scale = [4]float32{1, 1, 1, 1}
	}

	res := &red4.Resource{
		Buffers: buffers,
		RenderBlob: &red4.RenderMeshBlob{
			RenderBuffer: 1,
			Header: red4.RenderMeshHeader{
				VertexBufferSize:   indexBase,
				IndexBufferOffset:  indexBase,
				IndexBufferSize:    uint32(ib.Len()),
				QuantizationScale:  scale,
				QuantizationOffset: m.Offset,
				BonePositions:      m.BonePositions,
				RenderChunkInfos:   chunks,
			},
		},
		Mesh: &red4.MeshType{
			BoneNames:   m.BoneNames,
			Appearances: m.Appearances,
		},
		GarmentSupport: m.GarmentSupport,
		Cloth:          m.Cloth,
		ClothGraphical: m.ClothGraphical,
	}
	return container.Bytes(), res
}

func writeHalves(b *bytes.Buffer, values []float32) {
	for _, v := range values {
		binary.Write(b, binary.LittleEndian, utils.FloatToHalf(v))
	}
}

// JointBytes encodes per-vertex cloth joint records.
func JointBytes(joints [][4]byte) []byte {
	out := make([]byte, 0, 4*len(joints))
	for _, j := range joints {
		out = append(out, j[:]...)
	}
	return out
}

// WeightBytes encodes per-vertex cloth weight records as little-endian float32.
func WeightBytes(weights [][4]float32) []byte {
	out := make([]byte, 4*4*len(weights))
	for i, w := range weights {
		for j := 0; j < 4; j++ {
			binary.LittleEndian.PutUint32(out[16*i+4*j:], math.Float32bits(w[j]))
		}
	}
	return out
}

// Rig returns a rig container. Transforms default to identity when nil.
func Rig(names []string, parents []int16, transforms []red4.BoneTransform) *red4.Resource {
	if transforms == nil {
		transforms = make([]red4.BoneTransform, len(names))
		for i := range transforms {
			transforms[i] = red4.BoneTransform{
				Rotation: [4]float32{0, 0, 0, 1},
				Scale:    [4]float32{1, 1, 1, 1},
			}
		}
	}
	return &red4.Resource{
		Rig: &red4.RigChunk{
			BoneNames:         names,
			BoneParentIndexes: parents,
			BoneTransforms:    transforms,
		},
	}
}

// Parser serves prebuilt resources by name.
func Parser(resources map[string]*red4.Resource) red4.Parser {
	return red4.ParserFunc(func(_ io.ReadSeeker, name string) (*red4.Resource, error) {
		return resources[name], nil
	})
}
