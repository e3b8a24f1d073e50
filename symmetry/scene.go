package symmetry

import (
	"sort"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r3"
)

// Role is how a point took part in a Mirror call
type Role string

const (
	RoleMatched   Role = "matched"   // selected, has a partner
	RoleUnmatched Role = "unmatched" // selected, no partner
	RoleExcluded  Role = "excluded"  // selected, on the plane or opposite side
	RoleMoved     Role = "moved"     // candidate snapped to its partner's mirror
	RoleAligned   Role = "aligned"   // candidate already at its partner's mirror
	RoleOther     Role = "other"     // not selected, not matched
)

// Scene is one Mirror call seen in the plane spanned by the symmetry axis
// (horizontal) and the following axis (vertical). The plane itself is at x = 0.
type Scene struct {
	Axis   Axis
	Points []Point // coordinates before the result was applied
	Roles  map[int]Role
	Result *Result
}

// NewScene assigns a role to every point.
func NewScene(points []Point, result *Result) *Scene {
	s := &Scene{
		Axis:   result.Axis,
		Points: append([]Point(nil), points...),
		Roles:  make(map[int]Role, len(points)),
		Result: result,
	}
	sort.Slice(s.Points, func(i, j int) bool { return s.Points[i].ID < s.Points[j].ID })

	for _, p := range points {
		s.Roles[p.ID] = RoleOther
	}
	for _, id := range result.Excluded {
		s.Roles[id] = RoleExcluded
	}
	for _, id := range result.UnmatchedSelected {
		s.Roles[id] = RoleUnmatched
	}
	for _, pr := range result.Pairs {
		s.Roles[pr.Selected] = RoleMatched
		s.Roles[pr.Candidate] = RoleAligned
		if _, moved := result.Updated[pr.Candidate]; moved {
			s.Roles[pr.Candidate] = RoleMoved
		}
	}
	return s
}

// Project maps a 3D coordinate into the scene plane.
func (s *Scene) Project(v r3.Vec) orb.Point {
	return orb.Point{s.Axis.Component(v), s.Axis.Next().Component(v)}
}

// Move is a candidate displacement in scene coordinates
type Move struct {
	ID       int
	From, To orb.Point
}

// Moves lists the displacements of moved candidates, ordered by id.
func (s *Scene) Moves() []Move {
	var moves []Move
	for _, p := range s.Points {
		if to, ok := s.Result.Updated[p.ID]; ok {
			moves = append(moves, Move{ID: p.ID, From: s.Project(p.Co), To: s.Project(to)})
		}
	}
	return moves
}

// Bound covers every point, every move target and the plane, padded by pad.
func (s *Scene) Bound(pad float64) orb.Bound {
	mp := make(orb.MultiPoint, 0, len(s.Points)+len(s.Result.Updated)+1)
	mp = append(mp, orb.Point{0, 0})
	for _, p := range s.Points {
		mp = append(mp, s.Project(p.Co))
	}
	for _, co := range s.Result.Updated {
		mp = append(mp, s.Project(co))
	}
	return mp.Bound().Pad(pad)
}
