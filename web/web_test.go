package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/red4tools/meshexport/export"
	"github.com/red4tools/meshexport/red4"
	"github.com/red4tools/meshexport/red4/red4test"
	"github.com/red4tools/meshexport/vfs"
)

func testMesh() *red4test.Mesh {
	sm := red4test.Submesh{LOD: 1, SkinSlots: 4}
	for i := 0; i < 3; i++ {
		sm.Vertices = append(sm.Vertices, red4test.Vertex{
			Position: [3]int16{int16(i * 100), 0, 0},
			Joints:   []byte{1, 0, 0, 0},
			Weights:  []byte{255, 0, 0, 0},
		})
	}
	sm.Indices = []uint16{0, 1, 2}
	return &red4test.Mesh{
		BoneNames:     []string{"pelvis", "spine"},
		BonePositions: [][4]float32{{0, 0, 0, 1}, {0, 0, 1, 1}},
		Submeshes:     []red4test.Submesh{sm},
	}
}

func setupServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	resources := map[string]*red4.Resource{}

	data, res := testMesh().Build()
	meshPath := filepath.Join(dir, "body.mesh")
	if err := os.WriteFile(meshPath, data, 0666); err != nil {
		t.Fatal(err)
	}
	resources[meshPath] = res

	rigPath := filepath.Join(dir, "body.rig")
	if err := os.WriteFile(rigPath, nil, 0666); err != nil {
		t.Fatal(err)
	}
	resources[rigPath] = red4test.Rig([]string{"root", "pelvis", "spine"}, []int16{-1, 0, 1}, nil)

	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), nil, 0666); err != nil {
		t.Fatal(err)
	}

	ServerDirectory = vfs.NewDirectoryDriver(dir)
	ServerExporter = export.New(red4test.Parser(resources), nil)
	return dir
}

func serve(method, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewRouter().ServeHTTP(rec, httptest.NewRequest(method, url, nil))
	return rec
}

func TestHandlerAjaxList(t *testing.T) {
	setupServer(t)
	rec := serve("GET", "/json/list")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Meshes []string `json:"meshes"`
		Rigs   []string `json:"rigs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Meshes) != 1 || list.Meshes[0] != "body.mesh" {
		t.Errorf("meshes %v", list.Meshes)
	}
	if len(list.Rigs) != 1 || list.Rigs[0] != "body.rig" {
		t.Errorf("rigs %v", list.Rigs)
	}
}

func TestHandlerExportFile(t *testing.T) {
	setupServer(t)

	var tests = []struct {
		url      string
		filename string
		skins    int
	}{
		{"/export/body.mesh", "body.glb", 0},
		{"/export/body.mesh?rig=body.rig", "body.glb", 1},
		{"/export/body.mesh?rig=body.rig&text=true", "body.gltf", 1},
		{"/export/body.mesh?preview=1&text=true", "body.glb", 0},
	}
	for _, test := range tests {
		rec := serve("GET", test.url)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d: %s", test.url, rec.Code, rec.Body.String())
			continue
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, test.filename) {
			t.Errorf("%s: content disposition %q", test.url, cd)
		}
		var doc gltf.Document
		if err := gltf.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&doc); err != nil {
			t.Errorf("%s: %v", test.url, err)
			continue
		}
		if len(doc.Skins) != test.skins {
			t.Errorf("%s: %d skins; expected %d", test.url, len(doc.Skins), test.skins)
		}
	}
}

func TestHandlerExportFileErrors(t *testing.T) {
	setupServer(t)
	for _, url := range []string{
		"/export/missing.mesh",
		"/export/body.mesh?lod=maybe",
		"/export/body.mesh?validation=loose",
		"/export/body.mesh?rig=missing.rig",
	} {
		if rec := serve("GET", url); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d; expected 400", url, rec.Code)
		}
	}
}

func TestHandlerBatch(t *testing.T) {
	dir := setupServer(t)
	if rec := serve("POST", "/batch"); rec.Code != http.StatusBadRequest {
		t.Errorf("batch without out: status %d", rec.Code)
	}

	out := filepath.Join(dir, "out")
	rec := serve("POST", "/batch?wait=true&rig=body.rig&out="+out)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var report []batchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if len(report) != 1 || !report[0].Exported || report[0].Error != "" {
		t.Fatalf("report %+v", report)
	}
	if _, err := os.Stat(filepath.Join(out, "body.glb")); err != nil {
		t.Error(err)
	}
}
