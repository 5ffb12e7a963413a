package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
)

// MaxWeightSlots is the widest skin record: two groups of four influences.
const MaxWeightSlots = 8

// SkinInfluence holds the joint slots of one vertex. Slots 0-3 are the primary
// group, 4-7 the extended one; only the first WeightSlots entries are meaningful.
type SkinInfluence struct {
	Joints  [MaxWeightSlots]uint16
	Weights [MaxWeightSlots]float32
}

func (si *SkinInfluence) Primary() ([4]uint16, [4]float32) {
	var j [4]uint16
	var w [4]float32
	copy(j[:], si.Joints[0:4])
	copy(w[:], si.Weights[0:4])
	return j, w
}

func (si *SkinInfluence) Extended() ([4]uint16, [4]float32) {
	var j [4]uint16
	var w [4]float32
	copy(j[:], si.Joints[4:8])
	copy(w[:], si.Weights[4:8])
	return j, w
}

// Normalize scales the first slots weights to sum to one.
// A vertex without any weight is bound fully to joint 0.
func (si *SkinInfluence) Normalize(slots int) {
	if slots <= 0 {
		return
	}
	var sum float32
	for i := 0; i < slots; i++ {
		sum += si.Weights[i]
	}
	if sum == 0 {
		si.Joints[0] = 0
		si.Weights[0] = 1
		return
	}
	for i := 0; i < slots; i++ {
		si.Weights[i] /= sum
	}
}

// Submesh is one decoded render chunk. Every non-empty attribute has one entry per vertex.
type Submesh struct {
	Name  string
	Index int
	LOD   uint32

	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Tangents  []mgl32.Vec4
	Colors0   []mgl32.Vec4
	Colors1   []mgl32.Vec4
	UV0       []mgl32.Vec2
	UV1       []mgl32.Vec2

	WeightSlots int
	Skin        []SkinInfluence

	// garment support morph deltas
	Morph []mgl32.Vec3

	Indices []uint16

	MaterialNames []string
}

func (sm *Submesh) VertexCount() int {
	return len(sm.Positions)
}

// DropSkin removes all skinning data; used when no rig will be bound.
func (sm *Submesh) DropSkin() {
	sm.WeightSlots = 0
	sm.Skin = nil
}

// NormalizeSkin normalizes every vertex influence row.
func (sm *Submesh) NormalizeSkin() {
	for i := range sm.Skin {
		sm.Skin[i].Normalize(sm.WeightSlots)
	}
}
