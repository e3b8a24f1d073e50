package symmetry

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Hit is one radius query result
type Hit struct {
	ID       int
	Distance float64
}

// SpatialIndex is a static KD-tree over a point set supporting radius queries.
// It is never mutated after construction and is safe for concurrent queries.
type SpatialIndex struct {
	tree *kdtree.Tree
	n    int
}

// NewSpatialIndex builds an index over points. Zero points yields an empty index.
func NewSpatialIndex(points []Point) *SpatialIndex {
	if len(points) == 0 {
		return &SpatialIndex{}
	}
	nodes := make(indexedPoints, len(points))
	for i, p := range points {
		nodes[i] = indexedPoint{id: p.ID, co: p.Co}
	}
	return &SpatialIndex{tree: kdtree.New(nodes, false), n: len(points)}
}

// Len returns the number of indexed points.
func (s *SpatialIndex) Len() int {
	return s.n
}

// QueryRadius returns every indexed point within radius of center (inclusive).
// Distances are euclidean, not squared. Order is unspecified.
func (s *SpatialIndex) QueryRadius(center r3.Vec, radius float64) []Hit {
	if s.tree == nil || s.n == 0 || radius < 0 || math.IsNaN(radius) {
		return nil
	}

	// The tree compares squared distances, so the keeper bound is squared too.
	keep := kdtree.NewDistKeeper(radius * radius)
	s.tree.NearestSet(keep, indexedPoint{id: -1, co: center})

	var hits []Hit
	for _, c := range keep.Heap {
		// The keeper's sentinel has no Comparable
		if c.Comparable == nil {
			continue
		}
		p := c.Comparable.(indexedPoint)
		// Membership was decided on squared distance; keep the root within bounds.
		d := math.Min(math.Sqrt(c.Dist), radius)
		hits = append(hits, Hit{ID: p.id, Distance: d})
	}
	return hits
}

// indexedPoint adapts a Point to kdtree.Comparable
type indexedPoint struct {
	id int
	co r3.Vec
}

func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(indexedPoint)
	return Axis(d).Component(p.co) - Axis(d).Component(q.co)
}

func (p indexedPoint) Dims() int { return 3 }

func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(indexedPoint)
	d := r3.Sub(p.co, q.co)
	return r3.Dot(d, d)
}

type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Pivot(d kdtree.Dim) int                { return plane{indexedPoints: p, Dim: d}.Pivot() }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane orders points along one dimension for median partitioning
type plane struct {
	kdtree.Dim
	indexedPoints
}

func (p plane) Less(i, j int) bool {
	a := Axis(p.Dim)
	return a.Component(p.indexedPoints[i].co) < a.Component(p.indexedPoints[j].co)
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.indexedPoints = p.indexedPoints[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}
