package export

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/red4tools/meshexport/config"
	"github.com/red4tools/meshexport/gltfexport"
	"github.com/red4tools/meshexport/mesh"
	"github.com/red4tools/meshexport/rig"
)

// BuildPreview returns a positions-only document of every lod, or nil when
// the stream has no render blob.
func (e *Exporter) BuildPreview(src Source) (*gltf.Document, error) {
	res, err := e.parse(src)
	if err != nil {
		return nil, err
	}
	if res == nil || res.RenderBlob == nil {
		return nil, nil
	}
	submeshes, err := e.decode(src, res, Options{}, true)
	if err != nil {
		return nil, err
	}
	return gltfexport.BuildPreview(submeshes)
}

func (e *Exporter) ExportPreview(stream Source, out string) (bool, error) {
	defer closeSources(stream)

	doc, err := e.BuildPreview(stream)
	if err != nil || doc == nil {
		return false, err
	}
	e.prunePreviewCache(filepath.Dir(out))
	if err := e.write(doc, out, Options{Binary: true, Validation: config.ValidationStrict}); err != nil {
		return false, err
	}
	return true, nil
}

// BuildMesh decodes one mesh without skinning. A mesh chunk without render
// blob yields the empty placeholder document when o.WritePlaceholder is set.
func (e *Exporter) BuildMesh(src Source, o Options) (*gltf.Document, error) {
	res, err := e.parse(src)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Mesh == nil {
		return nil, nil
	}
	if res.RenderBlob == nil {
		if o.WritePlaceholder {
			return gltfexport.BuildEmpty(), nil
		}
		return nil, nil
	}

	submeshes, err := e.decode(src, res, o, false)
	if err != nil {
		return nil, err
	}
	rig.DropSkinning(submeshes)
	return gltfexport.Build(submeshes, nil)
}

func (e *Exporter) ExportMesh(src Source, out string, o Options) (bool, error) {
	defer closeSources(src)
	doc, err := e.BuildMesh(src, o)
	return e.finish(doc, err, out, o)
}

func (e *Exporter) loadRigs(rigs []Source) (*rig.Skeleton, error) {
	skeletons := make([]*rig.Skeleton, 0, len(rigs))
	for _, src := range rigs {
		res, err := e.parse(src)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errors.Errorf("Rig %q is not a container", src.Name)
		}
		s, err := rig.FromRigChunk(res.Rig)
		if err != nil {
			return nil, errors.Wrapf(err, "Rig %q", src.Name)
		}
		skeletons = append(skeletons, s)
	}
	return rig.Combine(skeletons...)
}

// BuildWithRig unions the rigs, remaps every mesh against the union and binds
// one skin. Submesh names get a "<mesh index>_" prefix when prefix is set.
// Meshes without data are skipped; nil is returned when none had any.
// Without any bone in the rigs skinning is dropped.
func (e *Exporter) BuildWithRig(meshes, rigs []Source, o Options, prefix bool) (*gltf.Document, error) {
	union, err := e.loadRigs(rigs)
	if err != nil {
		return nil, err
	}
	if union.Len() == 0 {
		// nothing to bind to
		return e.BuildWithoutRig(meshes, o, prefix)
	}

	var all []*mesh.Submesh
	found := false
	for m, src := range meshes {
		res, err := e.parse(src)
		if err != nil {
			return nil, err
		}
		if !res.HasMeshData() {
			log.Printf("[export] %q has no mesh data, skipped", src.Name)
			continue
		}
		submeshes, err := e.decode(src, res, o, false)
		if err != nil {
			return nil, err
		}

		orphan := rig.FromOrphan(res.RenderBlob, res.Mesh)
		if orphan == nil {
			rig.DropSkinning(submeshes)
		} else if err := rig.RemapJoints(submeshes, orphan, union); err != nil {
			return nil, errors.Wrapf(err, "Failed to remap joints of %q", src.Name)
		}

		if prefix {
			for _, sm := range submeshes {
				sm.Name = fmt.Sprintf("%d_%s", m, sm.Name)
			}
		}
		all = append(all, submeshes...)
		found = true
	}
	if !found {
		return nil, nil
	}
	return gltfexport.Build(all, union)
}

// BuildWithoutRig combines geometry only; skinning is always dropped.
func (e *Exporter) BuildWithoutRig(meshes []Source, o Options, prefix bool) (*gltf.Document, error) {
	var all []*mesh.Submesh
	found := false
	for m, src := range meshes {
		res, err := e.parse(src)
		if err != nil {
			return nil, err
		}
		if !res.HasMeshData() {
			log.Printf("[export] %q has no mesh data, skipped", src.Name)
			continue
		}
		submeshes, err := e.decode(src, res, o, false)
		if err != nil {
			return nil, err
		}
		rig.DropSkinning(submeshes)
		if prefix {
			for _, sm := range submeshes {
				sm.Name = fmt.Sprintf("%d_%s", m, sm.Name)
			}
		}
		all = append(all, submeshes...)
		found = true
	}
	if !found {
		return nil, nil
	}
	return gltfexport.Build(all, nil)
}

func (e *Exporter) finish(doc *gltf.Document, err error, out string, o Options) (bool, error) {
	if err != nil || doc == nil {
		return false, err
	}
	if err := e.write(doc, out, o); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Exporter) ExportMeshWithRig(src, rigSrc Source, out string, o Options) (bool, error) {
	defer closeSources(src, rigSrc)
	doc, err := e.BuildWithRig([]Source{src}, []Source{rigSrc}, o, false)
	return e.finish(doc, err, out, o)
}

func (e *Exporter) ExportMultiMeshWithRig(meshes, rigs []Source, out string, o Options) (bool, error) {
	defer closeSources(append(append([]Source{}, meshes...), rigs...)...)
	doc, err := e.BuildWithRig(meshes, rigs, o, true)
	return e.finish(doc, err, out, o)
}

func (e *Exporter) ExportMeshWithoutRig(src Source, out string, o Options) (bool, error) {
	defer closeSources(src)
	doc, err := e.BuildWithoutRig([]Source{src}, o, false)
	return e.finish(doc, err, out, o)
}

func (e *Exporter) ExportMultiMeshWithoutRig(meshes []Source, out string, o Options) (bool, error) {
	defer closeSources(meshes...)
	doc, err := e.BuildWithoutRig(meshes, o, true)
	return e.finish(doc, err, out, o)
}
