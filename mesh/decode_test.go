package mesh

import (
	"bytes"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/red4tools/meshexport/red4"
	"github.com/red4tools/meshexport/red4/red4test"
	"github.com/red4tools/meshexport/utils"
)

func decodeFixture(t *testing.T, m *red4test.Mesh, opts DecodeOptions) []*Submesh {
	t.Helper()
	container, res := m.Build()
	layouts, err := ExtractLayouts(res.RenderBlob, res.Mesh, res.GarmentSupport)
	if err != nil {
		t.Fatal(err)
	}
	render, err := red4.ReadBuffer(bytes.NewReader(container), res.Buffers[0], nil)
	if err != nil {
		t.Fatal(err)
	}
	subs, err := Decode(render, layouts, opts)
	if err != nil {
		t.Fatal(err)
	}
	return subs
}

func triangle(lod uint32) red4test.Submesh {
	return red4test.Submesh{
		LOD: lod,
		Vertices: []red4test.Vertex{
			{Position: [3]int16{0, 0, 0}},
			{Position: [3]int16{32767, 0, 0}},
			{Position: [3]int16{0, 32767, 0}},
		},
		Indices: []uint16{0, 1, 2},
	}
}

func TestDecodePositionAxisRemap(t *testing.T) {
	m := &red4test.Mesh{Submeshes: []red4test.Submesh{{
		LOD:      1,
		Vertices: []red4test.Vertex{{Position: [3]int16{32767, 32767, 32767}}},
		Indices:  []uint16{0, 0, 0},
	}}}
	subs := decodeFixture(t, m, DecodeOptions{LodFilter: true})
	if got := subs[0].Positions[0]; got != (mgl32.Vec3{1, 1, -1}) {
		t.Errorf("position = %v; expected [1 1 -1]", got)
	}
}

func TestDecodeQuantization(t *testing.T) {
	m := &red4test.Mesh{
		Scale:  [4]float32{2, 4, 8, 0},
		Offset: [4]float32{1, 1, 1, 0},
		Submeshes: []red4test.Submesh{{
			LOD:      1,
			Vertices: []red4test.Vertex{{Position: [3]int16{-32767, 0, 32767}}},
			Indices:  []uint16{0, 0, 0},
		}},
	}
	subs := decodeFixture(t, m, DecodeOptions{})
	// engine (x, y, z) = (-1, 1, 9) -> (x, z, -y)
	if got := subs[0].Positions[0]; !got.ApproxEqual(mgl32.Vec3{-1, 9, -1}) {
		t.Errorf("position = %v", got)
	}
}

func TestLodFilter(t *testing.T) {
	m := &red4test.Mesh{Submeshes: []red4test.Submesh{triangle(1), triangle(1), triangle(2)}}

	var tests = []struct {
		filter bool
		names  []string
	}{
		{true, []string{"submesh_00_LOD_1", "submesh_01_LOD_1"}},
		{false, []string{"submesh_00_LOD_1", "submesh_01_LOD_1", "submesh_02_LOD_2"}},
	}
	for _, test := range tests {
		subs := decodeFixture(t, m, DecodeOptions{LodFilter: test.filter})
		if len(subs) != len(test.names) {
			t.Errorf("filter=%v: %d submeshes; expected %d", test.filter, len(subs), len(test.names))
			continue
		}
		for i, sm := range subs {
			if sm.Name != test.names[i] {
				t.Errorf("filter=%v: submesh %d name %q; expected %q", test.filter, i, sm.Name, test.names[i])
			}
		}
	}
}

func TestNormalsAndTangents(t *testing.T) {
	sm := triangle(1)
	sm.Normals = true
	sm.Tangents = true
	dirs := []mgl32.Vec3{{0, 0, 1}, {0.6, 0.8, 0}, {-1, 0, 0}}
	for i := range sm.Vertices {
		sm.Vertices[i].Normal = utils.PackTenBit(dirs[i], 0)
		sm.Vertices[i].Tangent = utils.PackTenBit(mgl32.Vec3{1, 0, 0}, 0)
	}
	subs := decodeFixture(t, &red4test.Mesh{Submeshes: []red4test.Submesh{sm}}, DecodeOptions{})

	if len(subs[0].Normals) != 3 || len(subs[0].Tangents) != 3 {
		t.Fatalf("normals %d, tangents %d; expected 3 each", len(subs[0].Normals), len(subs[0].Tangents))
	}
	for i, n := range subs[0].Normals {
		if math.Abs(float64(n.Len()-1)) > 1e-5 {
			t.Errorf("normal %d length %v", i, n.Len())
		}
		d := dirs[i]
		if !n.ApproxEqualThreshold(mgl32.Vec3{d[0], d[2], -d[1]}, 0.01) {
			t.Errorf("normal %d = %v", i, n)
		}
	}
	for i, tg := range subs[0].Tangents {
		if math.Abs(float64(tg.Vec3().Len()-1)) > 1e-5 || tg[3] != 1 {
			t.Errorf("tangent %d = %v", i, tg)
		}
	}
}

func TestDegenerateNormalsDropped(t *testing.T) {
	build := func(degenerate int) *red4test.Mesh {
		sm := red4test.Submesh{LOD: 1, Normals: true, Indices: []uint16{0, 1, 2}}
		for i := 0; i < 4; i++ {
			v := red4test.Vertex{Normal: utils.PackTenBit(mgl32.Vec3{0, 0, 1}, 0)}
			if i < degenerate {
				v.Normal = red4test.DegenerateNormal
			}
			sm.Vertices = append(sm.Vertices, v)
		}
		return &red4test.Mesh{Submeshes: []red4test.Submesh{sm}}
	}

	if subs := decodeFixture(t, build(3), DecodeOptions{}); len(subs[0].Normals) != 0 {
		t.Errorf("3/4 degenerate: %d normals kept", len(subs[0].Normals))
	}
	if subs := decodeFixture(t, build(2), DecodeOptions{}); len(subs[0].Normals) != 4 {
		t.Errorf("2/4 degenerate: %d normals; expected 4", len(subs[0].Normals))
	}
}

func TestDegenerateTangentsDropped(t *testing.T) {
	sm := triangle(1)
	sm.Normals = true
	sm.Tangents = true
	for i := range sm.Vertices {
		sm.Vertices[i].Normal = utils.PackTenBit(mgl32.Vec3{0, 0, 1}, 0)
	}
	subs := decodeFixture(t, &red4test.Mesh{Submeshes: []red4test.Submesh{sm}}, DecodeOptions{})
	if len(subs[0].Tangents) != 0 || len(subs[0].Normals) != 3 {
		t.Errorf("tangents %d, normals %d", len(subs[0].Tangents), len(subs[0].Normals))
	}
}

func TestTexCoordsAndColors(t *testing.T) {
	sm := triangle(1)
	sm.UV0 = true
	sm.UV1 = true
	sm.Colors = true
	for i := range sm.Vertices {
		sm.Vertices[i].UV0 = [2]float32{0.5, -2.25}
		sm.Vertices[i].UV1 = [2]float32{float32(i), 0.25}
		sm.Vertices[i].Color = [4]byte{255, 0, 51, 255}
	}
	subs := decodeFixture(t, &red4test.Mesh{Submeshes: []red4test.Submesh{sm}}, DecodeOptions{})
	got := subs[0]
	for i := range got.Positions {
		if got.UV0[i] != (mgl32.Vec2{0.5, -2.25}) {
			t.Errorf("uv0[%d] = %v", i, got.UV0[i])
		}
		if got.UV1[i] != (mgl32.Vec2{float32(i), 0.25}) {
			t.Errorf("uv1[%d] = %v", i, got.UV1[i])
		}
		if got.Colors0[i] != (mgl32.Vec4{1, 0, 0.2, 1}) {
			t.Errorf("color[%d] = %v", i, got.Colors0[i])
		}
	}
	if len(got.Colors1) != 0 {
		t.Errorf("colors1 should be empty, got %d", len(got.Colors1))
	}
}

func TestUV1WithoutColor(t *testing.T) {
	sm := triangle(1)
	sm.UV1 = true
	sm.UV0 = true
	for i := range sm.Vertices {
		sm.Vertices[i].UV1 = [2]float32{0.75, float32(i)}
	}
	subs := decodeFixture(t, &red4test.Mesh{Submeshes: []red4test.Submesh{sm}}, DecodeOptions{})
	for i, uv := range subs[0].UV1 {
		if uv != (mgl32.Vec2{0.75, float32(i)}) {
			t.Errorf("uv1[%d] = %v", i, uv)
		}
	}
}

func TestSkinNormalization(t *testing.T) {
	sm := triangle(1)
	sm.SkinSlots = 8
	sm.Vertices[0].Joints = []byte{3, 4, 5, 6, 7, 8, 9, 10}
	sm.Vertices[0].Weights = []byte{0, 0, 0, 0, 0, 0, 0, 0}
	sm.Vertices[1].Joints = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	sm.Vertices[1].Weights = []byte{100, 50, 50, 55, 0, 0, 0, 0}
	sm.Vertices[2].Joints = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	sm.Vertices[2].Weights = []byte{10, 20, 30, 40, 50, 60, 70, 80}

	subs := decodeFixture(t, &red4test.Mesh{Submeshes: []red4test.Submesh{sm}}, DecodeOptions{})
	got := subs[0]
	if got.WeightSlots != 8 || len(got.Skin) != 3 {
		t.Fatalf("weight slots %d, skin rows %d", got.WeightSlots, len(got.Skin))
	}
	if got.Skin[0].Joints[0] != 0 || got.Skin[0].Weights[0] != 1 {
		t.Errorf("zero weight vertex = %+v", got.Skin[0])
	}
	for i, si := range got.Skin {
		var sum float32
		for _, w := range si.Weights {
			sum += w
		}
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Errorf("vertex %d weight sum %v", i, sum)
		}
	}
	if j, _ := got.Skin[2].Extended(); j != [4]uint16{5, 6, 7, 8} {
		t.Errorf("extended joints = %v", j)
	}
}

func TestGarmentMorphRequiresSupport(t *testing.T) {
	sm := triangle(1)
	sm.SkinSlots = 4
	sm.Morph = true
	for i := range sm.Vertices {
		sm.Vertices[i].Joints = []byte{0, 0, 0, 0}
		sm.Vertices[i].Weights = []byte{255, 0, 0, 0}
		sm.Vertices[i].Morph = [3]float32{0.5, 0.25, -2.25}
	}

	without := decodeFixture(t, &red4test.Mesh{Submeshes: []red4test.Submesh{sm}}, DecodeOptions{})
	if len(without[0].Morph) != 0 {
		t.Errorf("morph decoded without garment support block")
	}

	with := decodeFixture(t, &red4test.Mesh{Submeshes: []red4test.Submesh{sm}, GarmentSupport: true}, DecodeOptions{})
	if len(with[0].Morph) != 3 {
		t.Fatalf("morph rows %d; expected 3", len(with[0].Morph))
	}
	if got := with[0].Morph[1]; got != (mgl32.Vec3{0.5, -2.25, -0.25}) {
		t.Errorf("morph = %v", got)
	}
}

func TestPositionsOnly(t *testing.T) {
	sm := triangle(2)
	sm.UV0 = true
	sm.Colors = true
	sm.SkinSlots = 4
	subs := decodeFixture(t, &red4test.Mesh{Submeshes: []red4test.Submesh{sm}}, DecodeOptions{PositionsOnly: true})
	got := subs[0]
	if len(got.Positions) != 3 || len(got.Indices) != 3 {
		t.Fatalf("positions %d, indices %d", len(got.Positions), len(got.Indices))
	}
	if got.UV0 != nil || got.Colors0 != nil || got.Skin != nil || got.WeightSlots != 0 {
		t.Errorf("attributes decoded in positions only mode: %+v", got)
	}
}

func TestIndexSubOffsets(t *testing.T) {
	a, b := triangle(1), triangle(1)
	b.Indices = []uint16{2, 1, 0}
	b.IndexSubOffset = true
	subs := decodeFixture(t, &red4test.Mesh{Submeshes: []red4test.Submesh{a, b}}, DecodeOptions{})
	if got := subs[1].Indices; got[0] != 2 || got[2] != 0 {
		t.Errorf("second chunk indices = %v", got)
	}
}

func TestDecodeOutOfBounds(t *testing.T) {
	container, res := (&red4test.Mesh{Submeshes: []red4test.Submesh{triangle(1)}}).Build()
	layouts, err := ExtractLayouts(res.RenderBlob, res.Mesh, false)
	if err != nil {
		t.Fatal(err)
	}
	render, _ := red4.ReadBuffer(bytes.NewReader(container), res.Buffers[0], nil)
	if _, err := Decode(render[:10], layouts, DecodeOptions{}); err == nil {
		t.Errorf("expected out of bounds error")
	}
}

func TestExtractLayouts(t *testing.T) {
	sm := triangle(1)
	sm.UV0, sm.UV1, sm.Colors, sm.Normals, sm.Tangents = true, true, true, true, true
	sm.SkinSlots = 8
	sm.Morph = true
	_, res := (&red4test.Mesh{
		Submeshes:      []red4test.Submesh{sm},
		GarmentSupport: true,
		Appearances: []red4.Appearance{
			{Name: "default", ChunkMaterials: []string{"body"}},
			{Name: "damaged", ChunkMaterials: []string{}},
		},
	}).Build()

	layouts, err := ExtractLayouts(res.RenderBlob, res.Mesh, res.GarmentSupport)
	if err != nil {
		t.Fatal(err)
	}
	l := layouts[0]
	offsets := res.RenderBlob.Header.RenderChunkInfos[0].ChunkVertices.ByteOffsets
	if l.UV0Offset != offsets[1] || l.UV1Offset != offsets[3] || l.ColorOffset != offsets[3] {
		t.Errorf("texcoord/color offsets %+v", l)
	}
	if l.NormalOffset != offsets[2] || l.TangentOffset != offsets[2] {
		t.Errorf("normal/tangent offsets %+v", l)
	}
	if l.WeightSlots != 8 {
		t.Errorf("weight slots %d", l.WeightSlots)
	}
	if !l.HasMorph || l.MorphOffset != l.VertexOffset+8+16 {
		t.Errorf("morph %v at %d", l.HasMorph, l.MorphOffset)
	}
	if len(l.MaterialNames) != 2 || l.MaterialNames[0] != "body" || l.MaterialNames[1] != "" {
		t.Errorf("materials %q", l.MaterialNames)
	}
	if l.IndexOffset != res.RenderBlob.Header.IndexBufferOffset {
		t.Errorf("index offset %d", l.IndexOffset)
	}

	bad := *res.RenderBlob
	bad.Header.RenderChunkInfos = []red4.RenderChunkInfo{res.RenderBlob.Header.RenderChunkInfos[0]}
	bad.Header.RenderChunkInfos[0].ChunkVertices.VertexLayout.Elements = append(
		[]red4.VertexElement{}, red4.VertexElement{Usage: red4.UsageNormal, StreamIndex: 9})
	if _, err := ExtractLayouts(&bad, nil, false); err == nil {
		t.Errorf("expected stream index error")
	}
}
