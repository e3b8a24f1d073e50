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
	"gonum.org/v1/gonum/spatial/r3"
)

func mirror(t *testing.T, req Request) *Result {
	t.Helper()
	res, err := Mirror(context.Background(), req, Options{Workers: 2})
	require.NoError(t, err)
	return res
}

// applyResult returns req with the result applied, the way a caller would
func applyResult(req Request, res *Result) Request {
	next := Request{Axis: req.Axis, Threshold: req.Threshold, Selected: req.Selected}
	for _, p := range req.Points {
		if co, ok := res.Updated[p.ID]; ok {
			p.Co = co
		}
		next.Points = append(next.Points, p)
	}
	return next
}

func TestMirror_SnapsNearCandidate(t *testing.T) {
	res := mirror(t, Request{
		Points:    []Point{pt(0, 1, 0, 0), pt(1, -1.01, 0, 0)},
		Selected:  []int{0},
		Axis:      AxisX,
		Threshold: 0.05,
	})

	assert.Equal(t, 1, res.MovedCount)
	assert.Equal(t, map[int]r3.Vec{1: {X: -1, Y: 0, Z: 0}}, res.Updated)
	assert.Empty(t, res.UnmatchedSelected)
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, 0, res.Pairs[0].Selected)
	assert.Equal(t, 1, res.Pairs[0].Candidate)
	assert.Equal(t, 1.0, res.Sign)
	assert.Equal(t, AxisX, res.Axis)
}

func TestMirror_NoCandidateInRange(t *testing.T) {
	res := mirror(t, Request{
		Points:    []Point{pt(0, 1, 0, 0), pt(1, -1.5, 0, 0)},
		Selected:  []int{0},
		Axis:      AxisX,
		Threshold: 0.05,
	})
	assert.Equal(t, 0, res.MovedCount)
	assert.Empty(t, res.Updated)
	assert.Equal(t, []int{0}, res.UnmatchedSelected)
}

func TestMirror_CompetingSelected(t *testing.T) {
	res := mirror(t, Request{
		Points: []Point{
			pt(0, 1, 0, 0),
			pt(1, 1.03, 0, 0),
			pt(2, -1.02, 0, 0),
		},
		Selected:  []int{0, 1},
		Axis:      AxisX,
		Threshold: 0.05,
	})
	require.Len(t, res.Pairs, 1)
	// Point 1 mirrors to -1.03, 0.01 away; point 0 is 0.02 away
	assert.Equal(t, 1, res.Pairs[0].Selected)
	assert.Equal(t, []int{0}, res.UnmatchedSelected)
	assert.InDelta(t, -1.03, res.Updated[2].X, 1e-12)
}

func TestMirror_EmptyInputs(t *testing.T) {
	t.Run("no selection", func(t *testing.T) {
		res := mirror(t, Request{Points: []Point{pt(0, 1, 0, 0)}, Axis: AxisX, Threshold: 0.05})
		assert.Equal(t, 0, res.MovedCount)
		assert.Empty(t, res.UnmatchedSelected)
		assert.Empty(t, res.Pairs)
	})
	t.Run("no candidates", func(t *testing.T) {
		res := mirror(t, Request{
			Points:    []Point{pt(0, 1, 0, 0), pt(1, 2, 0, 0)},
			Selected:  []int{1, 0},
			Axis:      AxisX,
			Threshold: 0.05,
		})
		assert.Equal(t, 0, res.MovedCount)
		assert.Equal(t, []int{0, 1}, res.UnmatchedSelected)
	})
	t.Run("no points", func(t *testing.T) {
		res := mirror(t, Request{Axis: AxisZ})
		assert.Equal(t, 0, res.MovedCount)
		assert.Empty(t, res.Updated)
	})
}

func TestMirror_ExcludesSelectedOffSide(t *testing.T) {
	res := mirror(t, Request{
		Points: []Point{
			pt(0, 1, 0, 0),  // selected side
			pt(1, 0, 1, 0),  // on the plane
			pt(2, -3, 0, 0), // opposite side but selected
			pt(3, -1, 0, 0), // candidate
		},
		Selected:  []int{0, 1, 2},
		Axis:      AxisX,
		Threshold: 0.05,
	})
	// Sum of selected x is 1+0-3 = -2, so the selected side is negative and 3 is
	// on it too, leaving no candidates
	assert.Equal(t, -1.0, res.Sign)
	assert.Equal(t, []int{0, 1}, res.Excluded)
	assert.Equal(t, []int{2}, res.UnmatchedSelected)
	assert.Equal(t, 0, res.MovedCount)
}

func TestMirror_RepeatedSelectedIDs(t *testing.T) {
	points := []Point{
		pt(0, 1, 0, 0),    // selected side
		pt(1, -0.6, 5, 0), // selected but off-side
		pt(2, -1, 0, 0),   // mirror of 0
	}
	once := mirror(t, Request{Points: points, Selected: []int{0, 1}, Axis: AxisX, Threshold: 0.05})
	twice := mirror(t, Request{Points: points, Selected: []int{0, 1, 1}, Axis: AxisX, Threshold: 0.05})

	if once.Sign != 1 {
		t.Fatalf("sign = %v, want 1", once.Sign)
	}
	if twice.Sign != once.Sign {
		t.Errorf("repeated id changed sign: %v, want %v", twice.Sign, once.Sign)
	}
	if len(twice.Pairs) != 1 || twice.Pairs[0].Selected != 0 || twice.Pairs[0].Candidate != 2 {
		t.Errorf("pairs = %v, want 0-2", twice.Pairs)
	}
	if len(twice.Excluded) != 1 || twice.Excluded[0] != 1 {
		t.Errorf("excluded = %v, want [1]", twice.Excluded)
	}
	if len(twice.UnmatchedSelected) != 0 {
		t.Errorf("unmatched = %v, want none", twice.UnmatchedSelected)
	}
}

func TestMirror_NegativeSide(t *testing.T) {
	res := mirror(t, Request{
		Points:    []Point{pt(0, 0, -2, 1), pt(1, 0, 2.02, 1), pt(2, 0, 2.5, 1)},
		Selected:  []int{0},
		Axis:      AxisY,
		Threshold: 0.05,
	})
	assert.Equal(t, -1.0, res.Sign)
	assert.Equal(t, map[int]r3.Vec{1: {X: 0, Y: 2, Z: 1}}, res.Updated)
}

func TestMirror_AlreadyAlignedIsNotMoved(t *testing.T) {
	res := mirror(t, Request{
		Points:    []Point{pt(0, 1, 2, 3), pt(1, -1, 2, 3)},
		Selected:  []int{0},
		Axis:      AxisX,
		Threshold: 0.05,
	})
	assert.Len(t, res.Pairs, 1)
	assert.Equal(t, 0, res.MovedCount)
	assert.Empty(t, res.Updated)
	assert.Empty(t, res.UnmatchedSelected)
}

func TestMirror_SelectedPointsAreNeverCandidates(t *testing.T) {
	// 1 is selected and would otherwise be the only candidate of 0
	res := mirror(t, Request{
		Points:    []Point{pt(0, 1, 0, 0), pt(1, -1, 0, 0), pt(2, 5, 0, 0)},
		Selected:  []int{0, 1, 2},
		Axis:      AxisX,
		Threshold: 0.05,
	})
	assert.Empty(t, res.Pairs)
	assert.Equal(t, []int{1}, res.Excluded)
}

func TestMirror_ZeroThreshold(t *testing.T) {
	res := mirror(t, Request{
		Points:    []Point{pt(0, 1, 0, 0), pt(1, -1, 0, 0), pt(2, 2, 0, 0), pt(3, -2.001, 0, 0)},
		Selected:  []int{0, 2},
		Axis:      AxisX,
		Threshold: 0,
	})
	assert.Len(t, res.Pairs, 1)
	assert.Equal(t, []int{2}, res.UnmatchedSelected)
}

func TestMirror_Validation(t *testing.T) {
	points := []Point{pt(0, 1, 0, 0), pt(1, -1, 0, 0)}
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"bad axis", Request{Points: points, Axis: Axis(7)}, ErrInvalidAxis},
		{"negative threshold", Request{Points: points, Threshold: -0.1}, ErrInvalidThreshold},
		{"NaN threshold", Request{Points: points, Threshold: math.NaN()}, ErrInvalidThreshold},
		{"infinite threshold", Request{Points: points, Threshold: math.Inf(1)}, ErrInvalidThreshold},
		{"duplicate id", Request{Points: []Point{pt(0, 1, 0, 0), pt(0, -1, 0, 0)}}, ErrDuplicatePoint},
		{"unknown selected", Request{Points: points, Selected: []int{5}}, ErrUnknownPoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Mirror(context.Background(), tt.req, Options{})
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, "invalid", ErrorKind(err))
		})
	}
}

func TestMirror_Timeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := Mirror(ctx, Request{
		Points:    []Point{pt(0, 1, 0, 0), pt(1, -1, 0, 0)},
		Selected:  []int{0},
		Axis:      AxisX,
		Threshold: 0.05,
	}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSolveTimeout))
}

func TestMirror_DoesNotMutateRequest(t *testing.T) {
	points := []Point{pt(0, 1, 0, 0), pt(1, -1.01, 0, 0)}
	selected := []int{0}
	mirror(t, Request{Points: points, Selected: selected, Axis: AxisX, Threshold: 0.05})
	assert.Equal(t, []Point{pt(0, 1, 0, 0), pt(1, -1.01, 0, 0)}, points)
	assert.Equal(t, []int{0}, selected)
}

func TestMirror_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 100; trial++ {
		n := 1 + rng.Intn(7)
		points, selected := randomMirrorSet(rng, n, 0.04)
		th := 0.02 + rng.Float64()*0.06
		req := Request{Points: points, Selected: selected, Axis: AxisX, Threshold: th}

		res := mirror(t, req)

		// Counts are consistent
		assert.Equal(t, len(res.Updated), res.MovedCount, "trial %d", trial)
		assert.Equal(t, len(selected), len(res.Pairs)+len(res.UnmatchedSelected), "trial %d", trial)

		// Unmatched complement the matched selected ids
		matched := make(map[int]bool)
		for _, p := range res.Pairs {
			matched[p.Selected] = true
			assert.LessOrEqual(t, p.Distance, th, "trial %d", trial)
		}
		for _, id := range res.UnmatchedSelected {
			assert.False(t, matched[id], "trial %d", trial)
		}

		// Every moved candidate sits on its partner's exact mirror
		coords := make(map[int]r3.Vec)
		for _, p := range points {
			coords[p.ID] = p.Co
		}
		for _, p := range res.Pairs {
			if co, ok := res.Updated[p.Candidate]; ok {
				assert.Equal(t, Reflect(coords[p.Selected], AxisX), co, "trial %d", trial)
			}
		}

		// Applying the result and mirroring again moves nothing
		again := mirror(t, applyResult(req, res))
		assert.Equal(t, 0, again.MovedCount, "trial %d idempotence", trial)
		assert.Equal(t, len(res.Pairs), len(again.Pairs), "trial %d idempotence", trial)

		// A larger threshold never matches fewer points
		wider := req
		wider.Threshold = th * 2
		assert.GreaterOrEqual(t, len(mirror(t, wider).Pairs), len(res.Pairs), "trial %d monotonicity", trial)
	}
}
