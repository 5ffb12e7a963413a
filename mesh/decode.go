package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/red4tools/meshexport/utils"
)

const (
	degenerateNormal  = 0x5FF7FDFF
	degenerateTangent = 0
)

type DecodeOptions struct {
	// LodFilter keeps only full detail chunks
	LodFilter bool
	// PositionsOnly skips every vertex attribute except positions
	PositionsOnly bool
	Logger        *utils.Logger
}

// Decode reads every selected submesh from the decompressed render buffer.
func Decode(render []byte, layouts []SubmeshLayout, opts DecodeOptions) ([]*Submesh, error) {
	bs := utils.NewBufStack("render", render)
	submeshes := make([]*Submesh, 0, len(layouts))

	for i := range layouts {
		l := &layouts[i]
		if opts.LodFilter && l.LOD != FullDetailLOD {
			opts.Logger.Printf("submesh %d: skipped, lod mask %d", l.Index, l.LOD)
			continue
		}
		sm, err := DecodeSubmesh(bs, l, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to decode submesh %d", l.Index)
		}
		submeshes = append(submeshes, sm)
	}
	return submeshes, nil
}

func SubmeshName(index int, lod uint32) string {
	return fmt.Sprintf("submesh_%.2d_LOD_%d", index, lod)
}

func DecodeSubmesh(bs *utils.BufStack, l *SubmeshLayout, opts DecodeOptions) (*Submesh, error) {
	log := opts.Logger
	sm := &Submesh{
		Name:          SubmeshName(l.Index, l.LOD),
		Index:         l.Index,
		LOD:           l.LOD,
		MaterialNames: l.MaterialNames,
	}

	var err error
	if sm.Positions, err = decodePositions(bs, l); err != nil {
		return nil, errors.Wrapf(err, "positions")
	}
	if sm.Indices, err = decodeIndices(bs, l); err != nil {
		return nil, errors.Wrapf(err, "indices")
	}
	log.Printf("%s: %d vertices, %d indices", sm.Name, len(sm.Positions), len(sm.Indices))
	if opts.PositionsOnly {
		return sm, nil
	}

	if l.UV0Offset != 0 {
		if sm.UV0, err = decodeHalfUVs(bs, int(l.UV0Offset), 4, int(l.VertexCount)); err != nil {
			return nil, errors.Wrapf(err, "uv0")
		}
	}

	if l.NormalOffset != 0 {
		var invalid int
		if sm.Normals, invalid, err = decodeNormals(bs, l); err != nil {
			return nil, errors.Wrapf(err, "normals")
		}
		if invalid > int(l.VertexCount)/2 {
			log.Printf("%s: dropping normals, %d of %d degenerate", sm.Name, invalid, l.VertexCount)
			sm.Normals = []mgl32.Vec3{}
		}

		if l.TangentOffset != 0 {
			if sm.Tangents, invalid, err = decodeTangents(bs, l); err != nil {
				return nil, errors.Wrapf(err, "tangents")
			}
			if invalid > int(l.VertexCount)/2 {
				log.Printf("%s: dropping tangents, %d of %d degenerate", sm.Name, invalid, l.VertexCount)
				sm.Tangents = []mgl32.Vec4{}
			}
		}
	}

	if l.UV1Offset != 0 {
		off := int(l.UV1Offset)
		if l.ColorOffset != 0 {
			off += 4
		}
		if sm.UV1, err = decodeHalfUVs(bs, off, 8, int(l.VertexCount)); err != nil {
			return nil, errors.Wrapf(err, "uv1")
		}
	}

	if l.ColorOffset != 0 {
		stride := 4
		if l.UV1Offset != 0 {
			stride += 4
		}
		if sm.Colors0, err = decodeColors(bs, int(l.ColorOffset), stride, int(l.VertexCount)); err != nil {
			return nil, errors.Wrapf(err, "colors")
		}
	}

	if l.WeightSlots > 0 {
		sm.WeightSlots = int(l.WeightSlots)
		if sm.Skin, err = decodeSkin(bs, l); err != nil {
			return nil, errors.Wrapf(err, "skin")
		}
		sm.NormalizeSkin()
	}

	if l.HasMorph {
		if sm.Morph, err = decodeMorph(bs, l); err != nil {
			return nil, errors.Wrapf(err, "garment morph")
		}
	}

	return sm, nil
}

func decodePositions(bs *utils.BufStack, l *SubmeshLayout) ([]mgl32.Vec3, error) {
	count, stride := int(l.VertexCount), int(l.VertexStride)
	if err := bs.CheckStrided(int(l.VertexOffset), stride, 6, count); err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec3, count)
	for i := range out {
		off := int(l.VertexOffset) + i*stride
		x := utils.Dequantize(bs.LI16(off), l.QuantScale[0], l.QuantOffset[0])
		y := utils.Dequantize(bs.LI16(off+2), l.QuantScale[1], l.QuantOffset[1])
		z := utils.Dequantize(bs.LI16(off+4), l.QuantScale[2], l.QuantOffset[2])
		out[i] = utils.EngineToGLTF(x, y, z)
	}
	return out, nil
}

func decodeHalfUVs(bs *utils.BufStack, offset, stride, count int) ([]mgl32.Vec2, error) {
	if err := bs.CheckStrided(offset, stride, 4, count); err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec2, count)
	for i := range out {
		off := offset + i*stride
		out[i] = mgl32.Vec2{bs.LHalf(off), bs.LHalf(off + 2)}
	}
	return out, nil
}

// normals and tangents share one stream, tangent words follow normal words
func normalStride(l *SubmeshLayout) int {
	if l.TangentOffset != 0 {
		return 8
	}
	return 4
}

func decodeNormals(bs *utils.BufStack, l *SubmeshLayout) ([]mgl32.Vec3, int, error) {
	count, stride := int(l.VertexCount), normalStride(l)
	if err := bs.CheckStrided(int(l.NormalOffset), stride, 4, count); err != nil {
		return nil, 0, err
	}
	invalid := 0
	out := make([]mgl32.Vec3, count)
	for i := range out {
		packed := bs.LU32(int(l.NormalOffset) + i*stride)
		if packed == degenerateNormal {
			invalid++
		}
		v := utils.TenBitShifted(packed)
		out[i] = utils.NormalizeSafe(utils.EngineToGLTF(v[0], v[1], v[2]))
	}
	return out, invalid, nil
}

func decodeTangents(bs *utils.BufStack, l *SubmeshLayout) ([]mgl32.Vec4, int, error) {
	count := int(l.VertexCount)
	offset := int(l.TangentOffset) + 4
	if err := bs.CheckStrided(offset, 8, 4, count); err != nil {
		return nil, 0, err
	}
	invalid := 0
	out := make([]mgl32.Vec4, count)
	for i := range out {
		packed := bs.LU32(offset + i*8)
		if packed == degenerateTangent {
			invalid++
		}
		v := utils.TenBitShifted(packed)
		// handedness is not stored, w is always 1
		out[i] = utils.NormalizeSafe(utils.EngineToGLTF(v[0], v[1], v[2])).Vec4(1)
	}
	return out, invalid, nil
}

func decodeColors(bs *utils.BufStack, offset, stride, count int) ([]mgl32.Vec4, error) {
	if err := bs.CheckStrided(offset, stride, 4, count); err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec4, count)
	for i := range out {
		off := offset + i*stride
		out[i] = mgl32.Vec4{
			float32(bs.Byte(off)) / 255,
			float32(bs.Byte(off+1)) / 255,
			float32(bs.Byte(off+2)) / 255,
			float32(bs.Byte(off+3)) / 255,
		}
	}
	return out, nil
}

func decodeSkin(bs *utils.BufStack, l *SubmeshLayout) ([]SkinInfluence, error) {
	count, stride, slots := int(l.VertexCount), int(l.VertexStride), int(l.WeightSlots)
	if slots > MaxWeightSlots {
		return nil, errors.Errorf("%d weight slots, at most %d supported", slots, MaxWeightSlots)
	}
	if err := bs.CheckStrided(int(l.VertexOffset)+8, stride, 2*slots, count); err != nil {
		return nil, err
	}
	out := make([]SkinInfluence, count)
	for i := range out {
		off := int(l.VertexOffset) + i*stride + 8
		for e := 0; e < slots; e++ {
			out[i].Joints[e] = uint16(bs.Byte(off + e))
			out[i].Weights[e] = float32(bs.Byte(off+slots+e)) / 255
		}
	}
	return out, nil
}

func decodeMorph(bs *utils.BufStack, l *SubmeshLayout) ([]mgl32.Vec3, error) {
	count, stride := int(l.VertexCount), int(l.VertexStride)
	if err := bs.CheckStrided(int(l.MorphOffset), stride, 6, count); err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec3, count)
	for i := range out {
		off := int(l.MorphOffset) + i*stride
		out[i] = utils.EngineToGLTF(bs.LHalf(off), bs.LHalf(off+2), bs.LHalf(off+4))
	}
	return out, nil
}

func decodeIndices(bs *utils.BufStack, l *SubmeshLayout) ([]uint16, error) {
	count := int(l.IndexCount)
	if err := bs.Check(int(l.IndexOffset), 2*count); err != nil {
		return nil, err
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = bs.LU16(int(l.IndexOffset) + 2*i)
	}
	return out, nil
}
