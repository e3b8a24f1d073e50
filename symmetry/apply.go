package symmetry

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// ApplyMirror turns a matching into the changes the caller should apply.
// Each matched candidate is snapped to the mirror of its partner; candidates already
// exactly there are left out of Updated and not counted as moved.
func ApplyMirror(m Matching, coords map[int]r3.Vec, selected []int, axis Axis) *Result {
	res := &Result{
		Updated: make(map[int]r3.Vec),
		Pairs:   append([]Pair(nil), m.Pairs...),
		Axis:    axis,
		Sign:    1,
	}

	matched := make(map[int]bool, len(m.Pairs))
	for _, pr := range m.Pairs {
		matched[pr.Selected] = true
		target := Reflect(coords[pr.Selected], axis)
		if coords[pr.Candidate] != target {
			res.Updated[pr.Candidate] = target
			res.MovedCount++
		}
	}

	res.UnmatchedSelected = setDifference(selected, matched)
	return res
}

// setDifference returns the distinct ids not in exclude, ascending.
func setDifference(ids []int, exclude map[int]bool) []int {
	seen := make(map[int]bool, len(ids))
	out := []int{}
	for _, id := range ids {
		if exclude[id] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// MatchedSelected returns the selected ids that received a partner, ascending.
func (r *Result) MatchedSelected() []int {
	ids := make([]int, 0, len(r.Pairs))
	for _, p := range r.Pairs {
		ids = append(ids, p.Selected)
	}
	sort.Ints(ids)
	return ids
}

// UpdatedIDs returns the ids in Updated, ascending.
func (r *Result) UpdatedIDs() []int {
	ids := make([]int, 0, len(r.Updated))
	for id := range r.Updated {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
