package rig

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/red4tools/meshexport/mesh"
	"github.com/red4tools/meshexport/red4"
	"github.com/red4tools/meshexport/red4/red4test"
)

func flat(t *testing.T, names ...string) *Skeleton {
	t.Helper()
	b := NewBuilder(len(names))
	for _, n := range names {
		b.Add(Bone{Name: n, Parent: -1, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}})
	}
	s, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func skinned(joint uint16, weight float32) *mesh.Submesh {
	sm := &mesh.Submesh{Name: "submesh_00_LOD_1", WeightSlots: 4, Skin: make([]mesh.SkinInfluence, 1)}
	sm.Skin[0].Joints[0] = joint
	sm.Skin[0].Weights[0] = weight
	return sm
}

func TestRemapJoints(t *testing.T) {
	from := flat(t, "pelvis", "spine", "head")
	to := flat(t, "root", "pelvis", "spine")

	sm := skinned(0, 1)
	if err := RemapJoints([]*mesh.Submesh{sm}, from, to); err != nil {
		t.Fatal(err)
	}
	if got := sm.Skin[0].Joints[0]; got != 1 {
		t.Errorf("pelvis remapped to %d; expected 1", got)
	}

	err := RemapJoints([]*mesh.Submesh{skinned(2, 1)}, from, to)
	var missing *MissingBoneError
	if !errors.As(err, &missing) || missing.Bone != "head" {
		t.Errorf("expected missing bone head, got %v", err)
	}
}

func TestRemapOutOfRangeSlots(t *testing.T) {
	from := flat(t, "pelvis", "spine")
	to := flat(t, "spine", "pelvis")

	var tests = []struct {
		joint   uint16
		weight  float32
		want    uint16
		wantErr error
	}{
		{joint: 1, weight: 1, want: 0},
		{joint: 200, weight: 0, want: 0},
		{joint: 200, weight: 0.5, wantErr: ErrJointOutOfRange},
	}
	for _, test := range tests {
		sm := skinned(test.joint, test.weight)
		err := RemapJoints([]*mesh.Submesh{sm}, from, to)
		if test.wantErr != nil {
			if !errors.Is(err, test.wantErr) {
				t.Errorf("joint %d weight %v: error %v; expected %v", test.joint, test.weight, err, test.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("joint %d: %v", test.joint, err)
		} else if got := sm.Skin[0].Joints[0]; got != test.want {
			t.Errorf("joint %d remapped to %d; expected %d", test.joint, got, test.want)
		}
	}
}

func TestRemapIgnoresSlotsPastWidth(t *testing.T) {
	sm := skinned(0, 1)
	sm.Skin[0].Joints[5] = 99
	sm.Skin[0].Weights[5] = 1
	if err := RemapJoints([]*mesh.Submesh{sm}, flat(t, "a"), flat(t, "b", "a")); err != nil {
		t.Fatal(err)
	}
	if sm.Skin[0].Joints[5] != 99 {
		t.Errorf("slot outside weight width was touched")
	}
}

func TestDropSkinning(t *testing.T) {
	subs := []*mesh.Submesh{skinned(0, 1), skinned(1, 1)}
	DropSkinning(subs)
	for i, sm := range subs {
		if sm.WeightSlots != 0 || sm.Skin != nil {
			t.Errorf("submesh %d still skinned", i)
		}
	}
}

func TestBuilderValidation(t *testing.T) {
	var tests = []struct {
		name    string
		parents []int
		ok      bool
	}{
		{"chain", []int{-1, 0, 1}, true},
		{"parent declared later", []int{2, -1, 1}, true},
		{"out of range", []int{-1, 3}, false},
		{"below root", []int{-2}, false},
		{"cycle", []int{1, 2, 0}, false},
		{"self", []int{0}, false},
	}
	for _, test := range tests {
		b := NewBuilder(len(test.parents))
		for i, p := range test.parents {
			b.Add(Bone{Name: string(rune('a' + i)), Parent: p})
		}
		_, err := b.Build()
		if (err == nil) != test.ok {
			t.Errorf("%s: err = %v", test.name, err)
		}
	}
}

func TestCombineKeepsDuplicates(t *testing.T) {
	a, err := FromRigChunk(red4test.Rig([]string{"root", "spine"}, []int16{-1, 0}, nil).Rig)
	if err != nil {
		t.Fatal(err)
	}
	b, err := FromRigChunk(red4test.Rig([]string{"root", "head"}, []int16{-1, 0}, nil).Rig)
	if err != nil {
		t.Fatal(err)
	}

	u, err := Combine(a, nil, b)
	if err != nil {
		t.Fatal(err)
	}
	if u.Len() != 4 {
		t.Fatalf("combined %d bones; expected 4", u.Len())
	}
	wantParents := []int{-1, 0, -1, 2}
	for i, p := range wantParents {
		if u.Bone(i).Parent != p {
			t.Errorf("bone %d parent %d; expected %d", i, u.Bone(i).Parent, p)
		}
	}
	if i, _ := u.Index("root"); i != 0 {
		t.Errorf("root resolves to %d; expected first occurrence", i)
	}
	if i, _ := u.Index("head"); i != 3 {
		t.Errorf("head index %d", i)
	}
}

func TestFromRigChunkAxes(t *testing.T) {
	transforms := []red4.BoneTransform{
		{Translation: [4]float32{0, 0, 1, 0}, Rotation: [4]float32{0, 0, 0, 1}, Scale: [4]float32{1, 2, 3, 1}},
		{Translation: [4]float32{0, 1, 0, 0}, Rotation: [4]float32{0, 0, 0, 1}, Scale: [4]float32{1, 1, 1, 1}},
	}
	s, err := FromRigChunk(red4test.Rig([]string{"root", "child"}, []int16{-1, 0}, transforms).Rig)
	if err != nil {
		t.Fatal(err)
	}
	root := s.Bone(0)
	if root.Translation != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("root translation %v", root.Translation)
	}
	if root.Scale != (mgl32.Vec3{1, 3, 2}) {
		t.Errorf("root scale %v", root.Scale)
	}
	if s.Bone(1).Translation != (mgl32.Vec3{0, 0, -1}) {
		t.Errorf("child translation %v", s.Bone(1).Translation)
	}

	world := s.WorldMatrices()
	// child offset is scaled by the root: (0,0,-1) * (1,3,2) + (0,1,0)
	if got := world[1].Col(3).Vec3(); !got.ApproxEqual(mgl32.Vec3{0, 1, -2}) {
		t.Errorf("child world position %v", got)
	}
	for i, ibm := range s.InverseBindMatrices() {
		if !ibm.Mul4(world[i]).ApproxEqualThreshold(mgl32.Ident4(), 1e-5) {
			t.Errorf("bone %d inverse bind does not invert world", i)
		}
	}
}

func TestFromRigChunkErrors(t *testing.T) {
	if _, err := FromRigChunk(nil); err == nil {
		t.Errorf("expected error for missing chunk")
	}
	rc := red4test.Rig([]string{"a", "b"}, []int16{-1}, nil).Rig
	if _, err := FromRigChunk(rc); err == nil {
		t.Errorf("expected error for short parent list")
	}
	rc = red4test.Rig([]string{"a", "b"}, []int16{1, 0}, nil).Rig
	if _, err := FromRigChunk(rc); err == nil {
		t.Errorf("expected cycle error")
	}
}

func TestFromOrphan(t *testing.T) {
	_, res := (&red4test.Mesh{
		BonePositions: [][4]float32{{1, 2, 3, 1}, {0, 0, 0, 1}},
		BoneNames:     []string{"pelvis"},
	}).Build()

	s := FromOrphan(res.RenderBlob, res.Mesh)
	if s.Len() != 2 {
		t.Fatalf("orphan bones %d", s.Len())
	}
	if s.Name(0) != "pelvis" || s.Name(1) != "bone_1" {
		t.Errorf("names %q", s.Names())
	}
	b := s.Bone(0)
	if b.Parent != -1 || b.Translation != (mgl32.Vec3{1, 3, -2}) || b.Rotation != mgl32.QuatIdent() {
		t.Errorf("bone 0 %+v", b)
	}

	_, empty := (&red4test.Mesh{}).Build()
	if FromOrphan(empty.RenderBlob, empty.Mesh) != nil {
		t.Errorf("expected nil skeleton without bone positions")
	}
}
