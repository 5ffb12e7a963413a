package rig

import (
	"github.com/pkg/errors"
)

// Builder accumulates bones and freezes them into a Skeleton once every
// parent reference has been checked.
type Builder struct {
	bones []Bone
}

func NewBuilder(capacity int) *Builder {
	return &Builder{bones: make([]Bone, 0, capacity)}
}

// Add appends a bone and returns its index.
func (b *Builder) Add(bone Bone) int {
	b.bones = append(b.bones, bone)
	return len(b.bones) - 1
}

func (b *Builder) Len() int {
	return len(b.bones)
}

func (b *Builder) Build() (*Skeleton, error) {
	n := len(b.bones)
	for i := range b.bones {
		if p := b.bones[i].Parent; p < -1 || p >= n {
			return nil, errors.Errorf("Bone %d (%q) parent %d out of range [-1,%d)", i, b.bones[i].Name, p, n)
		}
	}

	// any chain longer than n bones loops
	for i := range b.bones {
		steps := 0
		for p := b.bones[i].Parent; p != -1; p = b.bones[p].Parent {
			if steps++; steps > n {
				return nil, errors.Errorf("Bone %d (%q) is part of a parent cycle", i, b.bones[i].Name)
			}
		}
	}

	s := &Skeleton{
		bones: make([]Bone, n),
		index: make(map[string]int, n),
	}
	copy(s.bones, b.bones)
	for i := range s.bones {
		if _, dup := s.index[s.bones[i].Name]; !dup {
			s.index[s.bones[i].Name] = i
		}
	}
	return s, nil
}
