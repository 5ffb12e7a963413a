// Package gltfexport lays decoded submeshes out as a glTF 2.0 document.
package gltfexport

import (
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/red4tools/meshexport/mesh"
	"github.com/red4tools/meshexport/rig"
)

const (
	Generator = "meshexport"
	// GarmentTarget names the only morph target a mesh can carry.
	GarmentTarget = "GarmentSupport"
)

func newDocument() *gltf.Document {
	doc := gltf.NewDocument()
	doc.Asset.Generator = Generator
	doc.Scenes[0].Name = "Scene"
	return doc
}

// BuildEmpty returns a document with an empty scene, used as placeholder
// output for resources without geometry.
func BuildEmpty() *gltf.Document {
	return newDocument()
}

// flipWinding reverses triangle winding as (i+1, i, i+2). A trailing
// incomplete triangle is dropped.
func flipWinding(indices []uint16) []uint16 {
	n := len(indices) - len(indices)%3
	out := make([]uint16, n)
	for i := 0; i < n; i += 3 {
		out[i] = indices[i+1]
		out[i+1] = indices[i]
		out[i+2] = indices[i+2]
	}
	return out
}

func addDefaultMaterial(doc *gltf.Document) uint32 {
	doc.Materials = append(doc.Materials, &gltf.Material{
		Name:        "Default",
		DoubleSided: true,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
		},
	})
	return uint32(len(doc.Materials) - 1)
}

// addSkin creates one node per bone and a skin binding all of them.
func addSkin(doc *gltf.Document, w *bufferWriter, skel *rig.Skeleton) (uint32, error) {
	base := uint32(len(doc.Nodes))
	joints := make([]uint32, skel.Len())
	for i := 0; i < skel.Len(); i++ {
		bone := skel.Bone(i)
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:        bone.Name,
			Translation: bone.Translation,
			Rotation:    bone.Rotation.V.Vec4(bone.Rotation.W),
			Scale:       bone.Scale,
		})
		joints[i] = base + uint32(i)
	}
	for i := 0; i < skel.Len(); i++ {
		for _, child := range skel.Children(i) {
			doc.Nodes[base+uint32(i)].Children = append(doc.Nodes[base+uint32(i)].Children, base+uint32(child))
		}
	}
	for _, root := range skel.Roots() {
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, base+uint32(root))
	}

	ibm, err := w.matrices(skel.InverseBindMatrices())
	if err != nil {
		return 0, errors.Wrapf(err, "inverse bind matrices")
	}
	doc.Skins = append(doc.Skins, &gltf.Skin{
		Name:                "Armature",
		Joints:              joints,
		InverseBindMatrices: gltf.Index(ibm),
	})
	return uint32(len(doc.Skins) - 1), nil
}

func splitSkin(sm *mesh.Submesh) (j0, j1 [][4]uint16, w0, w1 [][4]float32) {
	n := len(sm.Skin)
	j0, w0 = make([][4]uint16, n), make([][4]float32, n)
	if sm.WeightSlots > 4 {
		j1, w1 = make([][4]uint16, n), make([][4]float32, n)
	}
	for v := range sm.Skin {
		j0[v], w0[v] = sm.Skin[v].Primary()
		if sm.WeightSlots > 4 {
			j1[v], w1[v] = sm.Skin[v].Extended()
		}
	}
	return
}

type attributeWrite struct {
	name  string
	write func() (uint32, error)
}

func addSubmesh(doc *gltf.Document, w *bufferWriter, sm *mesh.Submesh, material uint32, skin *uint32) error {
	n := sm.VertexCount()
	skinned := skin != nil && sm.WeightSlots > 0
	if skinned && len(sm.Skin) != n {
		return errors.Errorf("%d skin rows for %d vertices", len(sm.Skin), n)
	}

	// buffer order: positions, normals, tangents, colors, uvs, skin, then indices
	writes := []attributeWrite{
		{"POSITION", func() (uint32, error) { return w.vec3(sm.Positions, true) }},
	}
	if len(sm.Normals) > 0 {
		writes = append(writes, attributeWrite{"NORMAL", func() (uint32, error) { return w.vec3(sm.Normals, false) }})
	}
	if len(sm.Tangents) > 0 {
		writes = append(writes, attributeWrite{"TANGENT", func() (uint32, error) { return w.vec4(sm.Tangents) }})
	}
	if len(sm.Colors0) > 0 {
		writes = append(writes, attributeWrite{"COLOR_0", func() (uint32, error) { return w.vec4(sm.Colors0) }})
	}
	if len(sm.Colors1) > 0 {
		writes = append(writes, attributeWrite{"COLOR_1", func() (uint32, error) { return w.vec4(sm.Colors1) }})
	}
	if len(sm.UV0) > 0 {
		writes = append(writes, attributeWrite{"TEXCOORD_0", func() (uint32, error) { return w.vec2(sm.UV0) }})
	}
	if len(sm.UV1) > 0 {
		writes = append(writes, attributeWrite{"TEXCOORD_1", func() (uint32, error) { return w.vec2(sm.UV1) }})
	}
	if skinned {
		j0, j1, w0, w1 := splitSkin(sm)
		writes = append(writes,
			attributeWrite{"JOINTS_0", func() (uint32, error) { return w.joints(j0) }},
			attributeWrite{"WEIGHTS_0", func() (uint32, error) { return w.weights(w0) }})
		if sm.WeightSlots > 4 {
			writes = append(writes,
				attributeWrite{"JOINTS_1", func() (uint32, error) { return w.joints(j1) }},
				attributeWrite{"WEIGHTS_1", func() (uint32, error) { return w.weights(w1) }})
		}
	}

	attributes := make(map[string]uint32, len(writes))
	for _, aw := range writes {
		acc, err := aw.write()
		if err != nil {
			return errors.Wrapf(err, "%s", aw.name)
		}
		attributes[aw.name] = acc
	}

	indices, err := w.indices(flipWinding(sm.Indices))
	if err != nil {
		return errors.Wrapf(err, "indices")
	}

	prim := &gltf.Primitive{
		Attributes: attributes,
		Indices:    gltf.Index(indices),
		Material:   gltf.Index(material),
	}

	materialNames := sm.MaterialNames
	if materialNames == nil {
		materialNames = []string{}
	}
	extras := map[string]interface{}{"materialNames": materialNames}

	if len(sm.Morph) > 0 {
		morph, err := w.vec3(sm.Morph, true)
		if err != nil {
			return errors.Wrapf(err, "garment morph")
		}
		prim.Targets = append(prim.Targets, map[string]uint32{"POSITION": morph})
		extras["targetNames"] = []string{GarmentTarget}
	}

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name:       sm.Name,
		Primitives: []*gltf.Primitive{prim},
		Extras:     extras,
	})
	node := &gltf.Node{
		Name: sm.Name,
		Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
	}
	if skinned {
		node.Skin = skin
	}
	doc.Nodes = append(doc.Nodes, node)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	return nil
}

// Build assembles the full document. With a non-empty skeleton one skin binds
// every bone and skinned submeshes reference it; without one no skinning is written.
func Build(submeshes []*mesh.Submesh, skel *rig.Skeleton) (*gltf.Document, error) {
	doc := newDocument()
	w := newBufferWriter(doc)
	material := addDefaultMaterial(doc)

	var skin *uint32
	if skel.Len() > 0 {
		idx, err := addSkin(doc, w, skel)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to add skin")
		}
		skin = gltf.Index(idx)
	}

	for _, sm := range submeshes {
		if err := addSubmesh(doc, w, sm, material, skin); err != nil {
			return nil, errors.Wrapf(err, "Failed to add %s", sm.Name)
		}
	}
	w.finish()
	return doc, nil
}

// BuildPreview writes positions and triangles only.
func BuildPreview(submeshes []*mesh.Submesh) (*gltf.Document, error) {
	doc := newDocument()
	w := newBufferWriter(doc)

	for _, sm := range submeshes {
		pos, err := w.vec3(sm.Positions, true)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to add %s positions", sm.Name)
		}
		indices, err := w.indices(flipWinding(sm.Indices))
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to add %s indices", sm.Name)
		}
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: sm.Name,
			Primitives: []*gltf.Primitive{{
				Attributes: map[string]uint32{"POSITION": pos},
				Indices:    gltf.Index(indices),
			}},
		})
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name: sm.Name,
			Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}
	w.finish()
	return doc, nil
}
