package symmetry

import (
	"context"
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mirror matches the selected points to unselected points on the opposite side of
// the plane perpendicular to req.Axis and snaps each matched candidate onto the exact
// mirror of its partner. It reads req only; the returned Result describes the changes.
//
// Selected points on the plane or on the opposite side are reported in Excluded and
// take no part in matching. With nothing to match the result moves nothing and reports
// the whole effective selection as unmatched.
func Mirror(ctx context.Context, req Request, opts Options) (*Result, error) {
	if !req.Axis.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAxis, int(req.Axis))
	}
	if req.Threshold < 0 || math.IsNaN(req.Threshold) || math.IsInf(req.Threshold, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, req.Threshold)
	}

	coords := make(map[int]r3.Vec, len(req.Points))
	for _, p := range req.Points {
		if _, dup := coords[p.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicatePoint, p.ID)
		}
		coords[p.ID] = p.Co
	}
	isSelected := make(map[int]bool, len(req.Selected))
	for _, id := range req.Selected {
		if _, ok := coords[id]; !ok {
			return nil, fmt.Errorf("%w: selected id %d", ErrUnknownPoint, id)
		}
		isSelected[id] = true
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	sign := DeriveSign(coords, req.Selected, req.Axis)

	var sels, cands []Point
	var selIDs, excluded []int
	for _, p := range req.Points {
		side := Classify(p.Co, req.Axis, sign)
		switch {
		case isSelected[p.ID] && side == SideSelected:
			sels = append(sels, p)
			selIDs = append(selIDs, p.ID)
		case isSelected[p.ID]:
			excluded = append(excluded, p.ID)
		case side == SideOpposite:
			cands = append(cands, p)
		}
	}

	var m Matching
	if len(sels) > 0 && len(cands) > 0 {
		index := NewSpatialIndex(cands)
		graph, err := BuildCandidateGraph(ctx, sels, index, req.Axis, req.Threshold, opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("building candidate graph: %w", contextError(err))
		}
		m, err = SolveMatching(ctx, graph, req.Threshold)
		if err != nil {
			return nil, fmt.Errorf("solving matching: %w", err)
		}
	}

	res := ApplyMirror(m, coords, selIDs, req.Axis)
	res.Sign = sign
	res.Excluded = setDifference(excluded, nil)

	log.Printf("[MIRROR] axis=%s sign=%+.0f selected=%d candidates=%d matched=%d: %d moved, %d unmatched",
		req.Axis, sign, len(sels), len(cands), len(m.Pairs), res.MovedCount, len(res.UnmatchedSelected))
	return res, nil
}
