// Package rig resolves bone hierarchies from render-mesh headers and rig files,
// unions them, and remaps submesh joint indices between skeletons.
package rig

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Bone is one joint in target axes. Parent is -1 for roots.
type Bone struct {
	Name        string
	Parent      int
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

func (b *Bone) LocalMatrix() mgl32.Mat4 {
	return mgl32.Translate3D(b.Translation[0], b.Translation[1], b.Translation[2]).
		Mul4(b.Rotation.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(b.Scale[0], b.Scale[1], b.Scale[2]))
}

// Skeleton is an immutable bone list produced by Builder. A nil *Skeleton is empty.
type Skeleton struct {
	bones []Bone
	index map[string]int
}

func (s *Skeleton) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bones)
}

func (s *Skeleton) Bone(i int) Bone {
	return s.bones[i]
}

func (s *Skeleton) Name(i int) string {
	return s.bones[i].Name
}

func (s *Skeleton) Names() []string {
	names := make([]string, s.Len())
	for i := range names {
		names[i] = s.bones[i].Name
	}
	return names
}

// Index returns the first bone with the given name.
func (s *Skeleton) Index(name string) (int, bool) {
	if s == nil {
		return 0, false
	}
	i, ok := s.index[name]
	return i, ok
}

func (s *Skeleton) Children(parent int) []int {
	var out []int
	for i := range s.bones {
		if s.bones[i].Parent == parent {
			out = append(out, i)
		}
	}
	return out
}

func (s *Skeleton) Roots() []int {
	return s.Children(-1)
}

// WorldMatrices composes local transforms along the parent chain.
// Parents may be declared after their children.
func (s *Skeleton) WorldMatrices() []mgl32.Mat4 {
	world := make([]mgl32.Mat4, s.Len())
	done := make([]bool, s.Len())
	var resolve func(i int) mgl32.Mat4
	resolve = func(i int) mgl32.Mat4 {
		if done[i] {
			return world[i]
		}
		m := s.bones[i].LocalMatrix()
		if p := s.bones[i].Parent; p >= 0 {
			m = resolve(p).Mul4(m)
		}
		world[i] = m
		done[i] = true
		return m
	}
	for i := range world {
		resolve(i)
	}
	return world
}

func (s *Skeleton) InverseBindMatrices() []mgl32.Mat4 {
	world := s.WorldMatrices()
	for i := range world {
		world[i] = world[i].Inv()
	}
	return world
}
