package red4

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/red4tools/meshexport/compress"
)

func TestMetadataRoundTrip(t *testing.T) {
	te := uint32(24)
	res := &Resource{
		Name:    "jacket.mesh",
		Buffers: []BufferInfo{{Offset: 16, DiskSize: 64, MemSize: 64}},
		RenderBlob: &RenderMeshBlob{
			RenderBuffer: 1,
			Header: RenderMeshHeader{
				QuantizationScale: [4]float32{1, 1, 1, 0},
				RenderChunkInfos: []RenderChunkInfo{{
					NumVertices: 3,
					NumIndices:  3,
					LodMask:     1,
					ChunkVertices: ChunkVertices{
						ByteOffsets: []uint32{0, 0, 0, 0, 0},
						VertexLayout: VertexLayout{
							Elements:    []VertexElement{{Usage: UsagePosition}, {Usage: UsageTexCoord, StreamIndex: 1}},
							SlotStrides: []uint32{8},
						},
					},
					ChunkIndices: ChunkIndices{TeOffset: &te},
				}},
			},
		},
		Mesh:           &MeshType{BoneNames: []string{"Root"}},
		GarmentSupport: true,
	}

	var buf bytes.Buffer
	if err := EncodeMetadata(&buf, res); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeMetadata(&buf, "ignored")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "jacket.mesh" || !got.GarmentSupport || !got.HasMeshData() {
		t.Errorf("decoded %+v", got)
	}
	chunk := got.RenderBlob.Header.RenderChunkInfos[0]
	if chunk.ChunkIndices.TeOffset == nil || *chunk.ChunkIndices.TeOffset != 24 {
		t.Errorf("TeOffset lost: %v", chunk.ChunkIndices.TeOffset)
	}
	if chunk.ChunkVertices.VertexLayout.Elements[1].Usage != UsageTexCoord {
		t.Errorf("usage lost: %+v", chunk.ChunkVertices.VertexLayout.Elements)
	}
}

func TestSidecarParserMissing(t *testing.T) {
	sp := &SidecarParser{ReadFile: func(name string) ([]byte, error) {
		return nil, os.ErrNotExist
	}}
	res, err := sp.Parse(bytes.NewReader(nil), "missing.mesh")
	if res != nil || err != nil {
		t.Errorf("Parse = %v, %v; expected nil, nil", res, err)
	}
}

func TestReadBuffer(t *testing.T) {
	stream := bytes.NewReader([]byte{0xff, 0xff, 1, 2, 3, 4, 0xff})
	data, err := ReadBuffer(stream, BufferInfo{Offset: 2, DiskSize: 4, MemSize: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3, 4}) {
		t.Errorf("ReadBuffer = %v", data)
	}

	if _, err := ReadBuffer(stream, BufferInfo{Offset: 2, DiskSize: 4, MemSize: 16}, compress.Passthrough); err == nil {
		t.Errorf("expected decompress error")
	}
	if _, err := ReadBuffer(stream, BufferInfo{Offset: 6, DiskSize: 4, MemSize: 4}, nil); err == nil {
		t.Errorf("expected short read error")
	}
	if _, err := ReadBuffer(stream, BufferInfo{Offset: 2, DiskSize: 0xfffffff0, MemSize: 0xfffffff0}, nil); err == nil ||
		!strings.Contains(err.Error(), "past stream end") {
		t.Errorf("expected size check error, got %v", err)
	}

	res := &Resource{Buffers: []BufferInfo{{Offset: 2, DiskSize: 2, MemSize: 2}}}
	if _, err := res.ReadIndexedBuffer(stream, 0, nil); err == nil {
		t.Errorf("expected error for buffer index 0")
	}
	if data, err := res.ReadIndexedBuffer(stream, 1, nil); err != nil || !bytes.Equal(data, []byte{1, 2}) {
		t.Errorf("ReadIndexedBuffer = %v, %v", data, err)
	}
}
