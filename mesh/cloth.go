package mesh

import (
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/red4tools/meshexport/compress"
	"github.com/red4tools/meshexport/red4"
	"github.com/red4tools/meshexport/utils"
)

// ClothSource gives access to the serialized cloth buffers of a resource.
type ClothSource struct {
	Resource     *red4.Resource
	Stream       io.ReadSeeker
	Decompressor compress.Decompressor
	Logger       *utils.Logger
}

func (cs *ClothSource) read(sb red4.SerializedBuffer) (*utils.BufStack, error) {
	data, err := cs.Resource.ReadIndexedBuffer(cs.Stream, sb.Buffer, cs.Decompressor)
	if err != nil {
		return nil, err
	}
	return utils.NewBufStack("cloth", data), nil
}

// ApplyClothOverlay replaces decoded skinning with the cloth simulation
// parameters and marks simulated vertices in Colors1.X. Param chunks map to
// submeshes by position; extra entries on either side are ignored.
func ApplyClothOverlay(submeshes []*Submesh, cs *ClothSource) error {
	res := cs.Resource
	if res.Cloth != nil {
		for i := 0; i < len(res.Cloth.Chunks) && i < len(submeshes); i++ {
			if err := cs.overlaySkin(submeshes[i], &res.Cloth.Chunks[i]); err != nil {
				return errors.Wrapf(err, "Cloth params chunk %d", i)
			}
		}
	}
	if res.ClothGraphical != nil {
		for i := 0; i < len(res.ClothGraphical.Chunks) && i < len(submeshes); i++ {
			chunk := &res.ClothGraphical.Chunks[i]
			markSimulated(submeshes[i], chunk.Simulation, cs.Logger)
			if err := cs.overlaySkin(submeshes[i], chunk); err != nil {
				return errors.Wrapf(err, "Graphical cloth params chunk %d", i)
			}
		}
	}
	return nil
}

func markSimulated(sm *Submesh, simulated []uint16, log *utils.Logger) {
	if len(simulated) == 0 {
		return
	}
	sm.Colors1 = make([]mgl32.Vec4, sm.VertexCount())
	for _, v := range simulated {
		if int(v) >= len(sm.Colors1) {
			log.Printf("%s: simulated vertex %d out of range [0,%d)", sm.Name, v, len(sm.Colors1))
			continue
		}
		sm.Colors1[v][0] = 1
	}
}

// overlaySkin replaces the decoded skin rows of sm with the chunk's buffers.
// Rows start zeroed even when the chunk serializes nothing. The slot count is
// kept unless a complete indices/weights pair sets it.
func (cs *ClothSource) overlaySkin(sm *Submesh, chunk *red4.ClothChunk) error {
	slots := sm.WeightSlots
	if chunk.SkinIndices.IsSerialized() && chunk.SkinWeights.IsSerialized() {
		slots = 4
	}
	if chunk.SkinIndicesExt.IsSerialized() && chunk.SkinWeightsExt.IsSerialized() {
		// extended influences always live in slots 4-7
		slots = MaxWeightSlots
	}

	count := sm.VertexCount()
	skin := make([]SkinInfluence, count)
	groups := []struct {
		indices, weights red4.SerializedBuffer
		base             int
	}{
		{chunk.SkinIndices, chunk.SkinWeights, 0},
		{chunk.SkinIndicesExt, chunk.SkinWeightsExt, 4},
	}
	for _, g := range groups {
		if g.indices.IsSerialized() {
			bs, err := cs.read(g.indices)
			if err != nil {
				return errors.Wrapf(err, "skin indices")
			}
			if err := bs.Check(0, 4*count); err != nil {
				return errors.Wrapf(err, "skin indices")
			}
			for v := 0; v < count; v++ {
				for e := 0; e < 4; e++ {
					skin[v].Joints[g.base+e] = uint16(bs.Byte(4*v + e))
				}
			}
		}
		if g.weights.IsSerialized() {
			bs, err := cs.read(g.weights)
			if err != nil {
				return errors.Wrapf(err, "skin weights")
			}
			if err := bs.Check(0, 16*count); err != nil {
				return errors.Wrapf(err, "skin weights")
			}
			for v := 0; v < count; v++ {
				for e := 0; e < 4; e++ {
					skin[v].Weights[g.base+e] = bs.LF(16*v + 4*e)
				}
			}
		}
	}

	cs.Logger.Printf("%s: cloth overlay, %d weight slots", sm.Name, slots)
	sm.WeightSlots = slots
	sm.Skin = skin
	if slots == 0 {
		sm.Skin = nil
	}
	sm.NormalizeSkin()
	return nil
}
