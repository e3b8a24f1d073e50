package symmetry

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// sideDecimals is the rounding applied to the axis coordinate before classification
const sideDecimals = 8

// Reflect negates the component of v along axis and keeps the others.
func Reflect(v r3.Vec, axis Axis) r3.Vec {
	switch axis {
	case AxisY:
		v.Y = -v.Y
	case AxisZ:
		v.Z = -v.Z
	default:
		v.X = -v.X
	}
	return v
}

// DeriveSign returns -1 when the selected points lie mostly on the negative side of
// the plane (their axis coordinates sum below zero) and +1 otherwise.
// Each distinct id counts once.
func DeriveSign(points map[int]r3.Vec, selected []int, axis Axis) float64 {
	seen := make(map[int]bool, len(selected))
	sum := 0.0
	for _, id := range selected {
		if seen[id] {
			continue
		}
		seen[id] = true
		if co, ok := points[id]; ok {
			sum += axis.Component(co)
		}
	}
	if sum < 0 {
		return -1
	}
	return 1
}

// Classify places co on the selected side, the opposite side, or on the plane.
func Classify(co r3.Vec, axis Axis, sign float64) Side {
	scale := math.Pow(10, sideDecimals)
	v := sign * math.RoundToEven(axis.Component(co)*scale) / scale
	switch {
	case v > 0:
		return SideSelected
	case v < 0:
		return SideOpposite
	}
	return SideNone
}

// BipartiteGraph is the candidate graph between selected points and candidates.
// Selected keeps every selected id in input order, including those with no edges.
type BipartiteGraph struct {
	Selected []int
	Edges    []CandidateEdge
}

// Len returns the number of edges.
func (g *BipartiteGraph) Len() int {
	return len(g.Edges)
}

// Degree returns the number of edges incident to a selected id.
func (g *BipartiteGraph) Degree(selected int) int {
	n := 0
	for _, e := range g.Edges {
		if e.Selected == selected {
			n++
		}
	}
	return n
}

// Candidates returns the distinct candidate ids in order of first appearance.
func (g *BipartiteGraph) Candidates() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, e := range g.Edges {
		if !seen[e.Candidate] {
			seen[e.Candidate] = true
			ids = append(ids, e.Candidate)
		}
	}
	return ids
}

// BuildCandidateGraph queries index around the mirror of every selected point with
// radius th. Queries run concurrently on up to workers goroutines; each writes only its
// own slot so the edge order depends on input order alone.
func BuildCandidateGraph(ctx context.Context, selected []Point, index *SpatialIndex, axis Axis, th float64, workers int) (*BipartiteGraph, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	slots := make([][]CandidateEdge, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, s := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hits := index.QueryRadius(Reflect(s.Co, axis), th)
			sort.Slice(hits, func(a, b int) bool {
				if hits[a].Distance != hits[b].Distance {
					return hits[a].Distance < hits[b].Distance
				}
				return hits[a].ID < hits[b].ID
			})
			edges := make([]CandidateEdge, len(hits))
			for j, h := range hits {
				edges[j] = CandidateEdge{Selected: s.ID, Candidate: h.ID, Distance: h.Distance}
			}
			slots[i] = edges
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	graph := &BipartiteGraph{Selected: make([]int, len(selected))}
	for i, s := range selected {
		graph.Selected[i] = s.ID
		graph.Edges = append(graph.Edges, slots[i]...)
	}
	return graph, nil
}
