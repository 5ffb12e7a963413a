package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/red4tools/meshexport/red4"
)

// FullDetailLOD is the lod mask of the highest detail chunks.
const FullDetailLOD = 1

// SubmeshLayout locates every attribute stream of one render chunk inside the
// decompressed render buffer. Optional stream offsets are 0 when absent.
type SubmeshLayout struct {
	Index       int
	VertexCount uint32
	IndexCount  uint32

	VertexOffset uint32
	VertexStride uint32

	NormalOffset  uint32
	TangentOffset uint32
	ColorOffset   uint32
	UV0Offset     uint32
	UV1Offset     uint32
	MorphOffset   uint32

	IndexOffset uint32
	LOD         uint32
	WeightSlots uint32

	QuantScale  mgl32.Vec4
	QuantOffset mgl32.Vec4

	HasMorph bool

	// one material per appearance, in appearance order
	MaterialNames []string
}

func streamOffset(cv *red4.ChunkVertices, el red4.VertexElement) (uint32, error) {
	if int(el.StreamIndex) >= len(cv.ByteOffsets) {
		return 0, errors.Errorf("%s element references stream %d, only %d declared",
			el.Usage, el.StreamIndex, len(cv.ByteOffsets))
	}
	return cv.ByteOffsets[el.StreamIndex], nil
}

// ExtractLayouts builds one SubmeshLayout per render chunk of the blob.
// garmentSupport tells whether the owning resource carries a garment-support
// parameter block; without it declared extra data streams are ignored.
func ExtractLayouts(blob *red4.RenderMeshBlob, meshType *red4.MeshType, garmentSupport bool) ([]SubmeshLayout, error) {
	hdr := &blob.Header
	qScale := mgl32.Vec4(hdr.QuantizationScale)
	qOffset := mgl32.Vec4(hdr.QuantizationOffset)

	layouts := make([]SubmeshLayout, len(hdr.RenderChunkInfos))
	for i := range hdr.RenderChunkInfos {
		chunk := &hdr.RenderChunkInfos[i]
		cv := &chunk.ChunkVertices

		if len(cv.ByteOffsets) == 0 {
			return nil, errors.Errorf("Chunk %d has no vertex stream offsets", i)
		}
		if len(cv.VertexLayout.SlotStrides) == 0 {
			return nil, errors.Errorf("Chunk %d has no slot strides", i)
		}

		l := SubmeshLayout{
			Index:        i,
			VertexCount:  chunk.NumVertices,
			IndexCount:   chunk.NumIndices,
			VertexOffset: cv.ByteOffsets[0],
			VertexStride: cv.VertexLayout.SlotStrides[0],
			LOD:          chunk.LodMask,
			QuantScale:   qScale,
			QuantOffset:  qOffset,
		}

		skinElements := uint32(0)
		texCoords := 0
		for _, el := range cv.VertexLayout.Elements {
			switch el.Usage {
			case red4.UsageNormal, red4.UsageTangent, red4.UsageColor, red4.UsageTexCoord:
				off, err := streamOffset(cv, el)
				if err != nil {
					return nil, errors.Wrapf(err, "Chunk %d", i)
				}
				switch el.Usage {
				case red4.UsageNormal:
					l.NormalOffset = off
				case red4.UsageTangent:
					l.TangentOffset = off
				case red4.UsageColor:
					l.ColorOffset = off
				case red4.UsageTexCoord:
					if texCoords == 0 {
						l.UV0Offset = off
					} else {
						l.UV1Offset = off
					}
					texCoords++
				}
			case red4.UsageSkinIndices:
				skinElements++
			case red4.UsageExtraData:
				if el.StreamIndex == 0 {
					l.HasMorph = true
				}
			}
		}
		l.WeightSlots = skinElements * 4

		if !garmentSupport {
			l.HasMorph = false
		}
		if l.HasMorph {
			l.MorphOffset = l.VertexOffset + 8 + 2*l.WeightSlots
		}

		if chunk.ChunkIndices.TeOffset == nil {
			l.IndexOffset = hdr.IndexBufferOffset
		} else {
			l.IndexOffset = hdr.IndexBufferOffset + *chunk.ChunkIndices.TeOffset
		}

		if meshType != nil {
			l.MaterialNames = make([]string, len(meshType.Appearances))
			for iApp, app := range meshType.Appearances {
				if i < len(app.ChunkMaterials) {
					l.MaterialNames[iApp] = app.ChunkMaterials[i]
				}
			}
		}

		layouts[i] = l
	}
	return layouts, nil
}
