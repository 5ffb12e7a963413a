package rig

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/red4tools/meshexport/red4"
	"github.com/red4tools/meshexport/utils"
)

// FromOrphan builds the flat skeleton implied by the render-mesh header bone
// positions. It only carries names for joint remapping and is never bound.
// Returns nil when the header has no bones.
func FromOrphan(blob *red4.RenderMeshBlob, meshType *red4.MeshType) *Skeleton {
	positions := blob.Header.BonePositions
	if len(positions) == 0 {
		return nil
	}
	b := NewBuilder(len(positions))
	for i, p := range positions {
		name := fmt.Sprintf("bone_%d", i)
		if meshType != nil && i < len(meshType.BoneNames) {
			name = meshType.BoneNames[i]
		}
		b.Add(Bone{
			Name:        name,
			Parent:      -1,
			Translation: utils.EngineToGLTF(p[0], p[1], p[2]),
			Rotation:    mgl32.QuatIdent(),
			Scale:       mgl32.Vec3{1, 1, 1},
		})
	}
	s, _ := b.Build() // roots only, cannot fail
	return s
}

// FromRigChunk converts a rig file's bone list to target axes.
func FromRigChunk(rc *red4.RigChunk) (*Skeleton, error) {
	if rc == nil {
		return nil, errors.New("Resource has no rig chunk")
	}
	n := len(rc.BoneNames)
	if len(rc.BoneParentIndexes) < n || len(rc.BoneTransforms) < n {
		return nil, errors.Errorf("Rig has %d bone names, %d parents, %d transforms",
			n, len(rc.BoneParentIndexes), len(rc.BoneTransforms))
	}

	b := NewBuilder(n)
	for i, name := range rc.BoneNames {
		t := &rc.BoneTransforms[i]
		b.Add(Bone{
			Name:        name,
			Parent:      int(rc.BoneParentIndexes[i]),
			Translation: utils.EngineToGLTF(t.Translation[0], t.Translation[1], t.Translation[2]),
			Rotation: mgl32.Quat{
				W: t.Rotation[3],
				V: utils.EngineToGLTF(t.Rotation[0], t.Rotation[1], t.Rotation[2]),
			},
			// scale has no sign, only the axes swap
			Scale: mgl32.Vec3{t.Scale[0], t.Scale[2], t.Scale[1]},
		})
	}
	s, err := b.Build()
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid rig")
	}
	return s, nil
}

// Combine appends every bone of every rig in order. Bones with equal names in
// different rigs stay separate; joint lookups by name resolve to the first one.
func Combine(rigs ...*Skeleton) (*Skeleton, error) {
	total := 0
	for _, r := range rigs {
		total += r.Len()
	}
	b := NewBuilder(total)
	for _, r := range rigs {
		base := b.Len()
		for i := 0; i < r.Len(); i++ {
			bone := r.Bone(i)
			if bone.Parent >= 0 {
				bone.Parent += base
			}
			b.Add(bone)
		}
	}
	return b.Build()
}
