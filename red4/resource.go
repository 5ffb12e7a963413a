// Package red4 describes the decoded chunk metadata of a render-mesh container.
// Parsing the container's reflection data is done elsewhere; this package only
// holds the result and reads the raw buffer segments it points to.
package red4

import (
	"github.com/pkg/errors"
)

type Usage string

const (
	UsagePosition    Usage = "PS_Position"
	UsageNormal      Usage = "PS_Normal"
	UsageTangent     Usage = "PS_Tangent"
	UsageColor       Usage = "PS_Color"
	UsageTexCoord    Usage = "PS_TexCoord"
	UsageSkinIndices Usage = "PS_SkinIndices"
	UsageSkinWeights Usage = "PS_SkinWeights"
	UsageExtraData   Usage = "PS_ExtraData"
)

// BufferInfo locates one buffer segment inside the container stream.
type BufferInfo struct {
	Offset   uint32 `yaml:"offset" json:"offset"`
	DiskSize uint32 `yaml:"diskSize" json:"diskSize"`
	MemSize  uint32 `yaml:"memSize" json:"memSize"`
}

type VertexElement struct {
	Usage       Usage `yaml:"usage" json:"usage"`
	StreamIndex uint8 `yaml:"streamIndex" json:"streamIndex"`
}

type VertexLayout struct {
	Elements    []VertexElement `yaml:"elements" json:"elements"`
	SlotStrides []uint32        `yaml:"slotStrides" json:"slotStrides"`
}

type ChunkVertices struct {
	ByteOffsets  []uint32     `yaml:"byteOffsets" json:"byteOffsets"`
	VertexLayout VertexLayout `yaml:"vertexLayout" json:"vertexLayout"`
}

type ChunkIndices struct {
	// nil when the chunk starts at the index buffer base
	TeOffset *uint32 `yaml:"teOffset,omitempty" json:"teOffset,omitempty"`
}

type RenderChunkInfo struct {
	NumVertices   uint32        `yaml:"numVertices" json:"numVertices"`
	NumIndices    uint32        `yaml:"numIndices" json:"numIndices"`
	LodMask       uint32        `yaml:"lodMask" json:"lodMask"`
	ChunkVertices ChunkVertices `yaml:"chunkVertices" json:"chunkVertices"`
	ChunkIndices  ChunkIndices  `yaml:"chunkIndices" json:"chunkIndices"`
}

type RenderMeshHeader struct {
	VertexBufferSize   uint32            `yaml:"vertexBufferSize" json:"vertexBufferSize"`
	IndexBufferOffset  uint32            `yaml:"indexBufferOffset" json:"indexBufferOffset"`
	IndexBufferSize    uint32            `yaml:"indexBufferSize" json:"indexBufferSize"`
	QuantizationScale  [4]float32        `yaml:"quantizationScale" json:"quantizationScale"`
	QuantizationOffset [4]float32        `yaml:"quantizationOffset" json:"quantizationOffset"`
	BonePositions      [][4]float32      `yaml:"bonePositions,omitempty" json:"bonePositions,omitempty"`
	RenderChunkInfos   []RenderChunkInfo `yaml:"renderChunkInfos" json:"renderChunkInfos"`
}

type RenderMeshBlob struct {
	// 1-based index into Resource.Buffers
	RenderBuffer uint32           `yaml:"renderBuffer" json:"renderBuffer"`
	Header       RenderMeshHeader `yaml:"header" json:"header"`
}

type Appearance struct {
	Name           string   `yaml:"name" json:"name"`
	ChunkMaterials []string `yaml:"chunkMaterials" json:"chunkMaterials"`
}

// MeshType is the mesh-type chunk: bone names and appearance material tables.
type MeshType struct {
	BoneNames   []string     `yaml:"boneNames,omitempty" json:"boneNames,omitempty"`
	Appearances []Appearance `yaml:"appearances,omitempty" json:"appearances,omitempty"`
}

// SerializedBuffer references a buffer by 1-based index, 0 means not serialized.
type SerializedBuffer struct {
	Buffer uint32 `yaml:"buffer" json:"buffer"`
}

func (sb SerializedBuffer) IsSerialized() bool {
	return sb.Buffer != 0
}

type ClothChunk struct {
	SkinIndices    SerializedBuffer `yaml:"skinIndices" json:"skinIndices"`
	SkinWeights    SerializedBuffer `yaml:"skinWeights" json:"skinWeights"`
	SkinIndicesExt SerializedBuffer `yaml:"skinIndicesExt" json:"skinIndicesExt"`
	SkinWeightsExt SerializedBuffer `yaml:"skinWeightsExt" json:"skinWeightsExt"`
	// vertex indices taking part in simulation, graphical cloth only
	Simulation []uint16 `yaml:"simulation,omitempty" json:"simulation,omitempty"`
}

type ClothParams struct {
	Chunks []ClothChunk `yaml:"chunks" json:"chunks"`
}

// BoneTransform is a bone local transform in engine axes. Rotation is (i, j, k, r).
type BoneTransform struct {
	Rotation    [4]float32 `yaml:"rotation" json:"rotation"`
	Translation [4]float32 `yaml:"translation" json:"translation"`
	Scale       [4]float32 `yaml:"scale" json:"scale"`
}

type RigChunk struct {
	BoneNames         []string        `yaml:"boneNames" json:"boneNames"`
	BoneParentIndexes []int16         `yaml:"boneParentIndexes" json:"boneParentIndexes"`
	BoneTransforms    []BoneTransform `yaml:"boneTransforms" json:"boneTransforms"`
}

// Resource is everything the mesh codec needs from one container file.
type Resource struct {
	Name           string          `yaml:"name,omitempty" json:"name,omitempty"`
	Buffers        []BufferInfo    `yaml:"buffers" json:"buffers"`
	RenderBlob     *RenderMeshBlob `yaml:"renderMeshBlob,omitempty" json:"renderMeshBlob,omitempty"`
	Mesh           *MeshType       `yaml:"mesh,omitempty" json:"mesh,omitempty"`
	GarmentSupport bool            `yaml:"garmentSupport,omitempty" json:"garmentSupport,omitempty"`
	Cloth          *ClothParams    `yaml:"clothParams,omitempty" json:"clothParams,omitempty"`
	ClothGraphical *ClothParams    `yaml:"clothGraphicalParams,omitempty" json:"clothGraphicalParams,omitempty"`
	Rig            *RigChunk       `yaml:"rig,omitempty" json:"rig,omitempty"`
}

func (r *Resource) Buffer(index uint32) (BufferInfo, error) {
	if index == 0 || int(index) > len(r.Buffers) {
		return BufferInfo{}, errors.Errorf("Buffer index %d out of range [1,%d]", index, len(r.Buffers))
	}
	return r.Buffers[index-1], nil
}

// HasMeshData reports whether the resource carries both a render-mesh blob and a mesh-type chunk.
func (r *Resource) HasMeshData() bool {
	return r != nil && r.RenderBlob != nil && r.Mesh != nil
}
