package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec3Ops(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, 5, 6}

	assert.Equal(t, Vec3{5, 7, 9}, a.Add(b))
	assert.Equal(t, Vec3{-3, -3, -3}, a.Sub(b))
	assert.Equal(t, Vec3{2, 4, 6}, a.Scale(2))
	assert.Equal(t, Vec3{-1, -2, -3}, a.Neg())
	assert.Equal(t, 32.0, a.Dot(b))
}

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	assert.Equal(t, Vec3{0, 0, 1}, x.Cross(y))
	assert.Equal(t, Vec3{0, 0, -1}, y.Cross(x))
}

func TestNormalize(t *testing.T) {
	v := Vec3{3, 0, 4}.Normalize()
	require.InDelta(t, 1.0, v.Length(), 1e-12)
	assert.InDelta(t, 0.6, v.X, 1e-12)
	assert.InDelta(t, 0.8, v.Z, 1e-12)

	zero := Vec3{}
	assert.Equal(t, zero, zero.Normalize())
}

func TestIsFinite(t *testing.T) {
	assert.True(t, Vec3{1, 2, 3}.IsFinite())
	assert.False(t, Vec3{math.NaN(), 0, 0}.IsFinite())
	assert.False(t, Vec3{0, math.Inf(1), 0}.IsFinite())
	assert.False(t, Vec3{0, 0, math.Inf(-1)}.IsFinite())
}

func TestAllFinite(t *testing.T) {
	assert.True(t, AllFinite(nil))
	assert.True(t, AllFinite([]Vec3{{1, 2, 3}}))
	assert.False(t, AllFinite([]Vec3{{1, 2, 3}, {math.NaN(), 0, 0}}))
}

func TestTrianglesFinite(t *testing.T) {
	good := Triangle{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	bad := Triangle{{0, 0, 0}, {1, 0, 0}, {0, math.Inf(1), 0}}
	assert.True(t, TrianglesFinite([]Triangle{good}))
	assert.False(t, TrianglesFinite([]Triangle{good, bad}))
}
