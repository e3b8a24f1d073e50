package symmetry

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
)

// edgeCost weights an edge by its squared normalized displacement so that
// near-threshold matches are strongly disfavoured. A zero threshold only admits
// exact hits, which cost nothing.
func edgeCost(distance, th float64) float64 {
	if th == 0 {
		return 0
	}
	r := distance / th
	return r * r
}

// SolveMatching finds, among all maximum-cardinality matchings of g, one with the
// least total edgeCost. Phase 1 counts the maximum cardinality; phase 2 runs
// successive shortest augmenting paths and must reach the same count.
//
// On any failure the returned Matching is empty; a partial result is never returned.
func SolveMatching(ctx context.Context, g *BipartiteGraph, th float64) (Matching, error) {
	if g == nil || len(g.Edges) == 0 {
		return Matching{}, nil
	}

	p := newAssignment(g, th)
	for _, e := range p.edges {
		if math.IsNaN(e.cost) || math.IsInf(e.cost, 0) {
			return Matching{}, fmt.Errorf("%w: non-finite cost on edge %d-%d", ErrInfeasibleSolve, e.Selected, e.Candidate)
		}
	}

	n, err := p.maxCardinality(ctx)
	if err != nil {
		return Matching{}, err
	}

	flow, err := p.minCostFlow(ctx)
	if err != nil {
		return Matching{}, err
	}
	if flow != n {
		return Matching{}, fmt.Errorf("%w: phase 2 matched %d pairs, phase 1 found %d", ErrInfeasibleSolve, flow, n)
	}

	m := p.matching()
	if err := checkOneToOne(m); err != nil {
		return Matching{}, err
	}
	return m, nil
}

// contextError converts a context failure into the package error kinds.
func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrSolveTimeout, err)
	}
	return fmt.Errorf("solve canceled: %w", err)
}

func checkOneToOne(m Matching) error {
	sel := make(map[int]bool, len(m.Pairs))
	cand := make(map[int]bool, len(m.Pairs))
	for _, pr := range m.Pairs {
		if sel[pr.Selected] || cand[pr.Candidate] {
			return fmt.Errorf("%w: pair %d-%d violates the one-to-one constraint", ErrInfeasibleSolve, pr.Selected, pr.Candidate)
		}
		sel[pr.Selected] = true
		cand[pr.Candidate] = true
	}
	return nil
}

type weightedEdge struct {
	CandidateEdge
	left, right int
	cost        float64
}

// assignment is the dense-indexed form of a BipartiteGraph.
// Left nodes follow g.Selected, right nodes follow first appearance in g.Edges.
type assignment struct {
	edges  []weightedEdge
	adj    [][]int // left node -> indices into edges, in edge order
	nLeft  int
	nRight int
	net    *network
}

func newAssignment(g *BipartiteGraph, th float64) *assignment {
	left := make(map[int]int, len(g.Selected))
	for _, id := range g.Selected {
		if _, ok := left[id]; !ok {
			left[id] = len(left)
		}
	}
	right := make(map[int]int)

	p := &assignment{}
	for _, e := range g.Edges {
		l, ok := left[e.Selected]
		if !ok {
			l = len(left)
			left[e.Selected] = l
		}
		r, ok := right[e.Candidate]
		if !ok {
			r = len(right)
			right[e.Candidate] = r
		}
		p.edges = append(p.edges, weightedEdge{CandidateEdge: e, left: l, right: r, cost: edgeCost(e.Distance, th)})
	}

	p.nLeft = len(left)
	p.nRight = len(right)
	p.adj = make([][]int, p.nLeft)
	for i, e := range p.edges {
		p.adj[e.left] = append(p.adj[e.left], i)
	}
	return p
}

// maxCardinality runs Kuhn's augmenting path algorithm.
func (p *assignment) maxCardinality(ctx context.Context) (int, error) {
	owner := make([]int, p.nRight)
	for i := range owner {
		owner[i] = -1
	}
	n := 0
	for u := 0; u < p.nLeft; u++ {
		if err := ctx.Err(); err != nil {
			return 0, contextError(err)
		}
		visited := make([]bool, p.nRight)
		if p.augment(u, visited, owner) {
			n++
		}
	}
	return n, nil
}

func (p *assignment) augment(u int, visited []bool, owner []int) bool {
	for _, ei := range p.adj[u] {
		v := p.edges[ei].right
		if visited[v] {
			continue
		}
		visited[v] = true
		if owner[v] < 0 || p.augment(owner[v], visited, owner) {
			owner[v] = u
			return true
		}
	}
	return false
}

// arc is a residual arc; edge indexes p.edges for forward selected->candidate arcs
type arc struct {
	to, rev int
	cap     int
	cost    float64
	edge    int
}

type network struct {
	nodes [][]arc
}

func (n *network) addArc(from, to int, cost float64, edge int) {
	n.nodes[from] = append(n.nodes[from], arc{to: to, rev: len(n.nodes[to]), cap: 1, cost: cost, edge: edge})
	n.nodes[to] = append(n.nodes[to], arc{to: from, rev: len(n.nodes[from]) - 1, cap: 0, cost: -cost, edge: -1})
}

// Node layout: source, left nodes, right nodes, sink.
func (p *assignment) source() int { return 0 }
func (p *assignment) sink() int   { return p.nLeft + p.nRight + 1 }

func (p *assignment) buildNetwork() *network {
	net := &network{nodes: make([][]arc, p.nLeft+p.nRight+2)}
	for u := 0; u < p.nLeft; u++ {
		net.addArc(p.source(), 1+u, 0, -1)
	}
	for u := 0; u < p.nLeft; u++ {
		for _, ei := range p.adj[u] {
			e := p.edges[ei]
			net.addArc(1+u, 1+p.nLeft+e.right, e.cost, ei)
		}
	}
	for v := 0; v < p.nRight; v++ {
		net.addArc(1+p.nLeft+v, p.sink(), 0, -1)
	}
	return net
}

// minCostFlow augments one unit at a time along shortest paths under reduced costs
// until the sink is unreachable. After k augmentations the flow is a min-cost k-flow,
// so the final flow is a min-cost maximum matching.
func (p *assignment) minCostFlow(ctx context.Context) (int, error) {
	p.net = p.buildNetwork()
	nodes := p.net.nodes
	size := len(nodes)
	s, t := p.source(), p.sink()

	potential := make([]float64, size)
	dist := make([]float64, size)
	prevNode := make([]int, size)
	prevArc := make([]int, size)
	done := make([]bool, size)

	flow := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, contextError(err)
		}

		for i := range dist {
			dist[i] = math.Inf(1)
			prevNode[i] = -1
			done[i] = false
		}
		dist[s] = 0
		pq := &nodeQueue{{node: s}}
		for pq.Len() > 0 {
			it := heap.Pop(pq).(queued)
			if done[it.node] {
				continue
			}
			done[it.node] = true
			for ai, a := range nodes[it.node] {
				if a.cap == 0 || done[a.to] {
					continue
				}
				// Reduced costs are non-negative in exact arithmetic; clamp rounding noise.
				rc := a.cost + potential[it.node] - potential[a.to]
				if rc < 0 {
					rc = 0
				}
				if nd := dist[it.node] + rc; nd < dist[a.to] {
					dist[a.to] = nd
					prevNode[a.to] = it.node
					prevArc[a.to] = ai
					heap.Push(pq, queued{node: a.to, dist: nd})
				}
			}
		}

		if math.IsInf(dist[t], 1) {
			return flow, nil
		}
		for v := range potential {
			if !math.IsInf(dist[v], 1) {
				potential[v] += dist[v]
			}
		}
		for v := t; v != s; v = prevNode[v] {
			u := prevNode[v]
			a := &nodes[u][prevArc[v]]
			a.cap--
			nodes[v][a.rev].cap++
		}
		flow++
	}
}

// matching reads the saturated selected->candidate arcs, in left node order.
func (p *assignment) matching() Matching {
	var m Matching
	if p.net == nil {
		return m
	}
	for u := 0; u < p.nLeft; u++ {
		for _, a := range p.net.nodes[1+u] {
			if a.edge < 0 || a.cap != 0 {
				continue
			}
			e := p.edges[a.edge]
			m.Pairs = append(m.Pairs, Pair{Selected: e.Selected, Candidate: e.Candidate, Distance: e.Distance})
			m.Cost += e.cost
		}
	}
	return m
}

type queued struct {
	node int
	dist float64
}

// nodeQueue is a min-heap on distance, ties broken by node index for determinism
type nodeQueue []queued

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)   { *q = append(*q, x.(queued)) }
func (q *nodeQueue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}
