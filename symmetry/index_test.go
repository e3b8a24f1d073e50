package symmetry

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func hitIDs(hits []Hit) []int {
	ids := make([]int, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	sort.Ints(ids)
	return ids
}

func TestSpatialIndex_Empty(t *testing.T) {
	idx := NewSpatialIndex(nil)
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.QueryRadius(r3.Vec{}, 10))
}

func TestSpatialIndex_InvalidRadius(t *testing.T) {
	idx := NewSpatialIndex([]Point{pt(0, 0, 0, 0)})
	assert.Empty(t, idx.QueryRadius(r3.Vec{}, -1))
	assert.Empty(t, idx.QueryRadius(r3.Vec{}, math.NaN()))
}

func TestSpatialIndex_QueryRadius(t *testing.T) {
	idx := NewSpatialIndex([]Point{
		pt(10, 0, 0, 0),
		pt(11, 1, 0, 0),
		pt(12, 0, 2, 0),
		pt(13, 0, 0, 3),
	})
	require.Equal(t, 4, idx.Len())

	tests := []struct {
		name   string
		center r3.Vec
		radius float64
		want   []int
	}{
		{"origin only", r3.Vec{}, 0.5, []int{10}},
		{"boundary is inclusive", r3.Vec{}, 1, []int{10, 11}},
		{"exact hit with zero radius", r3.Vec{Y: 2}, 0, []int{12}},
		{"nothing in range", r3.Vec{X: 10}, 1, []int{}},
		{"everything", r3.Vec{}, 5, []int{10, 11, 12, 13}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hitIDs(idx.QueryRadius(tt.center, tt.radius)))
		})
	}
}

func TestSpatialIndex_DistancesAreEuclidean(t *testing.T) {
	idx := NewSpatialIndex([]Point{pt(0, 3, 4, 0)})
	hits := idx.QueryRadius(r3.Vec{}, 6)
	require.Len(t, hits, 1)
	assert.InDelta(t, 5.0, hits[0].Distance, 1e-12)
}

func TestSpatialIndex_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var points []Point
	for i := 0; i < 300; i++ {
		points = append(points, pt(i, rng.Float64(), rng.Float64(), rng.Float64()))
	}
	idx := NewSpatialIndex(points)

	for q := 0; q < 50; q++ {
		center := r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
		radius := rng.Float64() * 0.3

		want := []int{}
		for _, p := range points {
			if r3.Norm(r3.Sub(p.Co, center)) <= radius {
				want = append(want, p.ID)
			}
		}
		hits := idx.QueryRadius(center, radius)
		assert.Equal(t, want, hitIDs(hits), "query %d", q)
		for _, h := range hits {
			assert.LessOrEqual(t, h.Distance, radius)
		}
	}
}
