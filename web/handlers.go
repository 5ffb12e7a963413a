package web

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/red4tools/meshexport/config"
	"github.com/red4tools/meshexport/export"
	"github.com/red4tools/meshexport/gltfexport"
	"github.com/red4tools/meshexport/vfs"
	"github.com/red4tools/meshexport/webutils"
)

func HandlerAjaxList(w http.ResponseWriter, r *http.Request) {
	meshes, err := vfs.ListByExt(ServerDirectory, vfs.MeshExt)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	rigs, err := vfs.ListByExt(ServerDirectory, vfs.RigExt)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, struct {
		Meshes []string `json:"meshes"`
		Rigs   []string `json:"rigs"`
	}{meshes, rigs})
}

// requestOptions applies the lod, text and validation query overrides to the current config.
func requestOptions(r *http.Request) (export.Options, error) {
	o := export.OptionsFromConfig(config.Get())
	q := r.URL.Query()
	if v := q.Get("lod"); v != "" {
		lod, err := strconv.ParseBool(v)
		if err != nil {
			return o, errors.Errorf("param 'lod' is not boolean: %q", v)
		}
		o.LodFilter = lod
	}
	if v := q.Get("text"); v != "" {
		text, err := strconv.ParseBool(v)
		if err != nil {
			return o, errors.Errorf("param 'text' is not boolean: %q", v)
		}
		o.Binary = !text
	}
	if v := q.Get("validation"); v != "" {
		mode, err := config.ParseValidationMode(v)
		if err != nil {
			return o, err
		}
		o.Validation = mode
	}
	return o, nil
}

func openSources(names ...string) ([]export.Source, func(), error) {
	sources := make([]export.Source, 0, len(names))
	release := func() {
		for _, s := range sources {
			s.Stream.(vfs.Stream).Close()
		}
	}
	for _, name := range names {
		path, stream, err := vfs.OpenFile(ServerDirectory, name)
		if err != nil {
			release()
			return nil, nil, err
		}
		sources = append(sources, export.Source{Name: path, Stream: stream})
	}
	return sources, release, nil
}

func buildDocument(file string, rigs []string, preview bool, o export.Options) (*gltf.Document, error) {
	sources, release, err := openSources(append([]string{file}, rigs...)...)
	if err != nil {
		return nil, err
	}
	defer release()

	switch {
	case preview:
		return ServerExporter.BuildPreview(sources[0])
	case len(rigs) == 0:
		return ServerExporter.BuildMesh(sources[0], o)
	default:
		return ServerExporter.BuildWithRig(sources[:1], sources[1:], o, false)
	}
}

// HandlerExportFile streams the document of one mesh. Query: rig (repeatable),
// preview, lod, text, validation.
func HandlerExportFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	o, err := requestOptions(r)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	preview := r.URL.Query().Get("preview") != ""
	if preview {
		o.Binary = true
		o.Validation = config.ValidationStrict
	}

	doc, err := buildDocument(file, r.URL.Query()["rig"], preview, o)
	if err != nil {
		log.Printf("[web] Error exporting %q: %v", file, err)
		webutils.WriteError(w, err)
		return
	}
	if doc == nil {
		webutils.WriteError(w, errors.Errorf("File '%s' has no mesh data", file))
		return
	}
	if err := gltfexport.Check(doc, o.Validation, nil); err != nil {
		webutils.WriteError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := gltfexport.Encode(&buf, doc, o.Binary); err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteFile(w, &buf, export.OutputName(file, o.Binary))
}

// HandlerBatch exports every mesh of the directory into the 'out' form value
// in the background, or before answering when 'wait' is set. Progress goes
// to /ws/status.
func HandlerBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		webutils.WriteError(w, err)
		return
	}
	out := r.Form.Get("out")
	if out == "" {
		webutils.WriteError(w, errors.New("param 'out' is required"))
		return
	}
	o, err := requestOptions(r)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}

	jobs, err := export.JobsFromDirectory(ServerDirectory, out, r.Form["rig"], o)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}

	workers := config.Get().Workers
	if wait, _ := strconv.ParseBool(r.Form.Get("wait")); wait {
		results := ServerExporter.Batch(r.Context(), jobs, workers, export.StatusProgress(len(jobs)))
		webutils.WriteJson(w, batchReport(results))
		return
	}

	go func() {
		results := ServerExporter.Batch(context.Background(), jobs, workers, export.StatusProgress(len(jobs)))
		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
			}
		}
		log.Printf("[web] Batch into %q done: %d jobs, %d failed", out, len(results), failed)
	}()

	webutils.WriteJson(w, struct {
		Jobs int `json:"jobs"`
	}{len(jobs)})
}

type batchResult struct {
	File     string `json:"file"`
	Exported bool   `json:"exported"`
	Error    string `json:"error,omitempty"`
}

func batchReport(results []export.Result) []batchResult {
	report := make([]batchResult, len(results))
	for i, res := range results {
		report[i] = batchResult{File: res.Job.Out, Exported: res.Exported}
		if res.Err != nil {
			report[i].Error = res.Err.Error()
		}
	}
	return report
}
