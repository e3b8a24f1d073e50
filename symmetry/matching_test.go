package symmetry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bruteForce enumerates every matching of g and returns the maximum cardinality
// and the least cost among matchings of that cardinality.
func bruteForce(g *BipartiteGraph, th float64) (int, float64) {
	bySel := make(map[int][]CandidateEdge)
	for _, e := range g.Edges {
		bySel[e.Selected] = append(bySel[e.Selected], e)
	}
	bestN, bestCost := 0, 0.0
	used := make(map[int]bool)

	var walk func(i, n int, cost float64)
	walk = func(i, n int, cost float64) {
		if i == len(g.Selected) {
			if n > bestN || (n == bestN && cost < bestCost) {
				bestN, bestCost = n, cost
			}
			return
		}
		walk(i+1, n, cost)
		for _, e := range bySel[g.Selected[i]] {
			if used[e.Candidate] {
				continue
			}
			used[e.Candidate] = true
			walk(i+1, n+1, cost+edgeCost(e.Distance, th))
			used[e.Candidate] = false
		}
	}
	walk(0, 0, 0)
	return bestN, bestCost
}

// randomGraph builds a random bipartite graph with up to maxSide nodes per side.
func randomGraph(rng *rand.Rand, maxSide int, th float64) *BipartiteGraph {
	nl := 1 + rng.Intn(maxSide)
	nr := 1 + rng.Intn(maxSide)
	g := &BipartiteGraph{}
	for u := 0; u < nl; u++ {
		g.Selected = append(g.Selected, u)
		for v := 0; v < nr; v++ {
			if rng.Float64() < 0.45 {
				g.Edges = append(g.Edges, CandidateEdge{Selected: u, Candidate: 100 + v, Distance: rng.Float64() * th})
			}
		}
	}
	return g
}

func TestEdgeCost(t *testing.T) {
	assert.Equal(t, 0.0, edgeCost(0, 0.05))
	assert.InDelta(t, 1.0, edgeCost(0.05, 0.05), 1e-12)
	assert.InDelta(t, 0.25, edgeCost(0.5, 1), 1e-12)
	assert.Equal(t, 0.0, edgeCost(0, 0), "zero threshold admits exact hits at no cost")
}

func TestSolveMatching_Empty(t *testing.T) {
	m, err := SolveMatching(context.Background(), &BipartiteGraph{Selected: []int{1, 2}}, 0.05)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())

	m, err = SolveMatching(context.Background(), nil, 0.05)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestSolveMatching_CloserSelectedWins(t *testing.T) {
	g := &BipartiteGraph{
		Selected: []int{0, 1},
		Edges: []CandidateEdge{
			{Selected: 0, Candidate: 9, Distance: 0.04},
			{Selected: 1, Candidate: 9, Distance: 0.01},
		},
	}
	m, err := SolveMatching(context.Background(), g, 0.05)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())
	assert.Equal(t, Pair{Selected: 1, Candidate: 9, Distance: 0.01}, m.Pairs[0])
	assert.InDelta(t, 0.04, m.Cost, 1e-12)
}

func TestSolveMatching_CardinalityBeforeCost(t *testing.T) {
	// The cheapest single edge (0-10) blocks a perfect matching; cardinality wins.
	g := &BipartiteGraph{
		Selected: []int{0, 1},
		Edges: []CandidateEdge{
			{Selected: 0, Candidate: 10, Distance: 0.0},
			{Selected: 0, Candidate: 11, Distance: 0.049},
			{Selected: 1, Candidate: 10, Distance: 0.049},
		},
	}
	m, err := SolveMatching(context.Background(), g, 0.05)
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())
	assert.ElementsMatch(t, []Pair{
		{Selected: 0, Candidate: 11, Distance: 0.049},
		{Selected: 1, Candidate: 10, Distance: 0.049},
	}, m.Pairs)
}

func TestSolveMatching_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const th = 0.05
	for trial := 0; trial < 300; trial++ {
		g := randomGraph(rng, 7, th)

		wantN, wantCost := bruteForce(g, th)
		m, err := SolveMatching(context.Background(), g, th)
		require.NoError(t, err, "trial %d", trial)

		assert.Equal(t, wantN, m.Len(), "trial %d cardinality", trial)
		assert.InDelta(t, wantCost, m.Cost, 1e-9, "trial %d cost", trial)
		assert.NoError(t, checkOneToOne(m), "trial %d", trial)

		// Every pair must be an edge of the graph
		edges := make(map[[2]int]bool)
		for _, e := range g.Edges {
			edges[[2]int{e.Selected, e.Candidate}] = true
		}
		for _, p := range m.Pairs {
			assert.True(t, edges[[2]int{p.Selected, p.Candidate}], "trial %d pair %v", trial, p)
		}
	}
}

func TestSolveMatching_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	g := randomGraph(rng, 7, 1)
	first, err := SolveMatching(context.Background(), g, 1)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := SolveMatching(context.Background(), g, 1)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSolveMatching_NonFiniteCost(t *testing.T) {
	g := &BipartiteGraph{
		Selected: []int{0},
		Edges:    []CandidateEdge{{Selected: 0, Candidate: 1, Distance: math.Inf(1)}},
	}
	m, err := SolveMatching(context.Background(), g, 0.05)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInfeasibleSolve))
	assert.Equal(t, 0, m.Len())
}

func TestSolveMatching_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	g := &BipartiteGraph{
		Selected: []int{0},
		Edges:    []CandidateEdge{{Selected: 0, Candidate: 1, Distance: 0.01}},
	}
	m, err := SolveMatching(ctx, g, 0.05)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSolveTimeout))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 0, m.Len(), "no partial result on timeout")
}

func TestSolveMatching_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := &BipartiteGraph{
		Selected: []int{0},
		Edges:    []CandidateEdge{{Selected: 0, Candidate: 1, Distance: 0.01}},
	}
	_, err := SolveMatching(ctx, g, 0.05)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrSolveTimeout))
}

func TestMaxCardinality_StopsOnDeadline(t *testing.T) {
	g := &BipartiteGraph{
		Selected: []int{0, 1},
		Edges: []CandidateEdge{
			{Selected: 0, Candidate: 2, Distance: 0.01},
			{Selected: 1, Candidate: 3, Distance: 0.01},
		},
	}
	p := newAssignment(g, 0.05)

	n, err := p.maxCardinality(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("maxCardinality() = %d, %v; want 2, nil", n, err)
	}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if _, err := p.maxCardinality(ctx); !errors.Is(err, ErrSolveTimeout) {
		t.Errorf("expected ErrSolveTimeout, got %v", err)
	}
}

func TestCheckOneToOne(t *testing.T) {
	assert.NoError(t, checkOneToOne(Matching{Pairs: []Pair{{Selected: 0, Candidate: 1}, {Selected: 2, Candidate: 3}}}))
	err := checkOneToOne(Matching{Pairs: []Pair{{Selected: 0, Candidate: 1}, {Selected: 2, Candidate: 1}}})
	assert.True(t, errors.Is(err, ErrInfeasibleSolve))
}
