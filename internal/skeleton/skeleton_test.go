package skeleton

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmesh-tool/internal/fixture"
	"xmesh-tool/internal/mathutil"
)

var identity = [4]float32{0, 0, 0, 1}
var unit = [4]float32{1, 1, 1, 0}

func assertVec(t *testing.T, want, got mathutil.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-6, "component %d of %v", i, got)
	}
}

func TestReadChildBeforeParent(t *testing.T) {
	data := fixture.BuildXPPS(fixture.XPPS{
		Bones: []fixture.Bone{
			{Rot: identity, Pos: [4]float32{0, 2, 0, 0}, Scl: unit, Parent: 1},
			{Rot: identity, Pos: [4]float32{0, 0, 1, 0}, Scl: unit, Parent: -1},
		},
	})
	s, err := Read(data)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, []int{1, 0}, s.Order())
	assert.Equal(t, 1, s.Bones[0].Parent)
	assert.Equal(t, -1, s.Bones[1].Parent)

	w := s.WorldMatrices()
	assertVec(t, mathutil.Vec3{0, 0, 1}, w[1].Translation())
	assertVec(t, mathutil.Vec3{0, 2, 1}, w[0].Translation())
}

func TestReadRotatedParent(t *testing.T) {
	// 90 degrees about Z, engine order x, y, z, w
	s2 := float32(math.Sqrt2 / 2)
	data := fixture.BuildXPPS(fixture.XPPS{
		Bones: []fixture.Bone{
			{Rot: [4]float32{0, 0, s2, s2}, Scl: unit, Parent: -1},
			{Rot: identity, Pos: [4]float32{1, 0, 0, 0}, Scl: unit, Parent: 0},
		},
	})
	s, err := Read(data)
	require.NoError(t, err)
	w := s.WorldMatrices()
	assertVec(t, mathutil.Vec3{0, 1, 0}, w[1].Translation())
}

func TestReadBadSignatureIsNoSkeleton(t *testing.T) {
	data := fixture.BuildXPPS(fixture.XPPS{
		Bones:                []fixture.Bone{{Rot: identity, Scl: unit, Parent: -1}},
		BadSkeletonSignature: true,
	})
	s, err := Read(data)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestReadNoSkeleton(t *testing.T) {
	s, err := Read(fixture.BuildXPPS(fixture.XPPS{}))
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestNewRejectsCycle(t *testing.T) {
	_, err := New([]Bone{
		{Index: 0, Parent: -1},
		{Index: 1, Parent: 2},
		{Index: 2, Parent: 1},
	})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestNewRejectsOutOfRangeParent(t *testing.T) {
	_, err := New([]Bone{{Index: 0, Parent: 5}})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestNewRejectsSelfParent(t *testing.T) {
	_, err := New([]Bone{{Index: 0, Parent: 0}})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestBindPose(t *testing.T) {
	s, err := New([]Bone{{
		Rotation: mathutil.Quat{0, 0, 0, 1},
		Position: mathutil.Vec3{0, 0, 1},
		Scale:    mathutil.Vec3{1, 1, 1},
		Parent:   -1,
	}})
	require.NoError(t, err)
	j := s.BindPose()
	require.Len(t, j, 1)
	assert.Equal(t, "Bone_0", j[0].Name)
	// engine +Z becomes host -Y under Rx(+90)
	assertVec(t, mathutil.Vec3{0, -1, 0}, j[0].Head)
	assertVec(t, mathutil.Vec3{0, -1, 6}, j[0].Tail)
	assert.Equal(t, [4]float64{1, 0, 0, 0}, j[0].LocalRotation)
}

func TestBindPoseLocalRotationIsUnitScalarFirst(t *testing.T) {
	s, err := New([]Bone{{
		Rotation: mathutil.Quat{0, 0, 2, 0},
		Scale:    mathutil.Vec3{1, 1, 1},
		Parent:   -1,
	}})
	require.NoError(t, err)
	j := s.BindPose()
	require.Len(t, j, 1)
	assert.Equal(t, [4]float64{0, 0, 0, 1}, j[0].LocalRotation)
}
