package rig

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/red4tools/meshexport/mesh"
)

var ErrJointOutOfRange = errors.New("joint index out of range with nonzero weight")

// MissingBoneError means a mesh joint has no bone of the same name in the export rig.
type MissingBoneError struct {
	Bone string
}

func (e *MissingBoneError) Error() string {
	return fmt.Sprintf("bone %q not present in export rig(s)/import mesh", e.Bone)
}

// RemapJoints rewrites joint indices of every submesh from the `from` skeleton
// to the bone of the same name in `to`. Unused out of range slots are clamped
// to 0. Any other unresolved joint aborts the remap.
func RemapJoints(submeshes []*mesh.Submesh, from, to *Skeleton) error {
	table := make([]int, from.Len())
	for i := range table {
		table[i] = -1
		if j, ok := to.Index(from.Name(i)); ok {
			table[i] = j
		}
	}

	for _, sm := range submeshes {
		for v := range sm.Skin {
			si := &sm.Skin[v]
			for e := 0; e < sm.WeightSlots; e++ {
				old := int(si.Joints[e])
				if old >= len(table) {
					if si.Weights[e] == 0 {
						si.Joints[e] = 0
						continue
					}
					return errors.Wrapf(ErrJointOutOfRange, "%s vertex %d slot %d: joint %d, skeleton has %d bones",
						sm.Name, v, e, old, len(table))
				}
				if table[old] < 0 {
					return errors.Wrapf(&MissingBoneError{Bone: from.Name(old)}, "%s vertex %d", sm.Name, v)
				}
				si.Joints[e] = uint16(table[old])
			}
		}
	}
	return nil
}

// DropSkinning removes skinning from every submesh.
func DropSkinning(submeshes []*mesh.Submesh) {
	for _, sm := range submeshes {
		sm.DropSkin()
	}
}
