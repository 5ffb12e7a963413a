// Package export drives decoding, skeleton resolution and document assembly
// for the supported export scenarios.
package export

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/red4tools/meshexport/compress"
	"github.com/red4tools/meshexport/config"
	"github.com/red4tools/meshexport/gltfexport"
	"github.com/red4tools/meshexport/mesh"
	"github.com/red4tools/meshexport/red4"
	"github.com/red4tools/meshexport/utils"
)

// Source is one named container stream. Exporters close streams that implement io.Closer.
type Source struct {
	Name   string
	Stream io.ReadSeeker
}

type Options struct {
	LodFilter        bool
	Binary           bool
	WritePlaceholder bool
	Validation       config.ValidationMode
	// Logger receives decode traces. When nil and Exporter.LogDir is set a
	// per-resource log file is used instead.
	Logger *utils.Logger
}

func OptionsFromConfig(c config.Config) Options {
	return Options{
		LodFilter:        c.LodFilter,
		Binary:           c.Binary,
		WritePlaceholder: c.WritePlaceholder,
		Validation:       c.Validation,
	}
}

type Exporter struct {
	parser       red4.Parser
	decompressor compress.Decompressor

	PreviewCacheLimit int
	LogDir            string
}

func New(p red4.Parser, d compress.Decompressor) *Exporter {
	return &Exporter{
		parser:            p,
		decompressor:      d,
		PreviewCacheLimit: config.Default().PreviewCacheLimit,
	}
}

// NewFromConfig builds an exporter with the configured decompressor, cache limit and log dir.
func NewFromConfig(p red4.Parser, c config.Config) (*Exporter, error) {
	d, err := compress.Get(c.Decompressor)
	if err != nil {
		return nil, err
	}
	e := New(p, d)
	e.PreviewCacheLimit = c.PreviewCacheLimit
	e.LogDir = c.LogDir
	return e, nil
}

func closeSources(sources ...Source) {
	for _, s := range sources {
		if c, ok := s.Stream.(io.Closer); ok {
			c.Close()
		}
	}
}

func (e *Exporter) parse(src Source) (*red4.Resource, error) {
	if src.Stream == nil {
		return nil, errors.Errorf("Source %q has no stream", src.Name)
	}
	res, err := e.parser.Parse(src.Stream, src.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse %q", src.Name)
	}
	return res, nil
}

// logger returns the decode logger for one resource and a function releasing it.
func (e *Exporter) logger(name string, o Options) (*utils.Logger, func()) {
	if o.Logger != nil || e.LogDir == "" {
		return o.Logger, func() {}
	}
	if err := os.MkdirAll(e.LogDir, 0777); err != nil {
		log.Printf("[export] Cannot create log dir %q: %v", e.LogDir, err)
		return nil, func() {}
	}
	f, err := os.Create(filepath.Join(e.LogDir, filepath.Base(name)+".decode.log"))
	if err != nil {
		log.Printf("[export] Cannot create decode log for %q: %v", name, err)
		return nil, func() {}
	}
	return &utils.Logger{Writer: f}, func() { f.Close() }
}

// decode reads every submesh of a resource that has a render blob. Preview
// decoding keeps every lod and only positions; full decoding applies cloth params.
func (e *Exporter) decode(src Source, res *red4.Resource, o Options, preview bool) ([]*mesh.Submesh, error) {
	logger, release := e.logger(src.Name, o)
	defer release()

	info, err := res.Buffer(res.RenderBlob.RenderBuffer)
	if err != nil {
		return nil, errors.Wrapf(err, "Render buffer of %q", src.Name)
	}
	render, err := red4.ReadBuffer(src.Stream, info, e.decompressor)
	if err != nil {
		return nil, errors.Wrapf(err, "Render buffer of %q", src.Name)
	}

	layouts, err := mesh.ExtractLayouts(res.RenderBlob, res.Mesh, res.GarmentSupport)
	if err != nil {
		return nil, errors.Wrapf(err, "Layouts of %q", src.Name)
	}
	if logger != nil {
		logger.Println(utils.SDump(layouts))
	}

	submeshes, err := mesh.Decode(render, layouts, mesh.DecodeOptions{
		LodFilter:     o.LodFilter && !preview,
		PositionsOnly: preview,
		Logger:        logger,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode %q", src.Name)
	}
	if preview {
		return submeshes, nil
	}

	err = mesh.ApplyClothOverlay(submeshes, &mesh.ClothSource{
		Resource:     res,
		Stream:       src.Stream,
		Decompressor: e.decompressor,
		Logger:       logger,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "Cloth params of %q", src.Name)
	}
	return submeshes, nil
}

func (e *Exporter) write(doc *gltf.Document, out string, o Options) error {
	if err := gltfexport.Check(doc, o.Validation, o.Logger); err != nil {
		return errors.Wrapf(err, "Refusing to write %q", out)
	}
	return gltfexport.Save(doc, out, o.Binary)
}

// prunePreviewCache clears the preview directory once it holds more than
// PreviewCacheLimit files. Failures are ignored.
func (e *Exporter) prunePreviewCache(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) <= e.PreviewCacheLimit {
		return
	}
	for _, f := range files {
		os.Remove(f)
	}
}
