package symmetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// PointRecord is the wire form of a Point
type PointRecord struct {
	ID int        `json:"id"`
	Co [3]float64 `json:"co"`
}

// Snapshot is the caller-owned point set plus selection, as exchanged over
// files, MQTT and HTTP. Axis and Threshold are optional and fall back to config.
type Snapshot struct {
	RequestID string        `json:"requestId,omitempty"`
	Axis      string        `json:"axis,omitempty"`
	Threshold *float64      `json:"threshold,omitempty"`
	Points    []PointRecord `json:"points"`
	Selected  []int         `json:"selected"`
}

func fromArray(c [3]float64) r3.Vec { return r3.Vec{X: c[0], Y: c[1], Z: c[2]} }
func toArray(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// ParseSnapshotFile reads and parses a snapshot JSON file
func ParseSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseSnapshotJSON(data)
}

// ParseSnapshotJSON parses snapshot JSON data
func ParseSnapshotJSON(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON: %v", ErrInvalidSnapshot, err)
	}
	return &s, nil
}

// NewSnapshot builds a snapshot from points and a selection.
func NewSnapshot(points []Point, selected []int) *Snapshot {
	s := &Snapshot{
		Points:   make([]PointRecord, len(points)),
		Selected: append([]int(nil), selected...),
	}
	for i, p := range points {
		s.Points[i] = PointRecord{ID: p.ID, Co: toArray(p.Co)}
	}
	return s
}

// CorePoints converts the wire points.
func (s *Snapshot) CorePoints() []Point {
	points := make([]Point, len(s.Points))
	for i, p := range s.Points {
		points[i] = Point{ID: p.ID, Co: fromArray(p.Co)}
	}
	return points
}

// Request resolves the snapshot into a Mirror request, filling the axis and
// threshold from the config when the snapshot does not carry them.
func (s *Snapshot) Request(defaults *Config) (Request, error) {
	req := Request{
		Points:   s.CorePoints(),
		Selected: append([]int(nil), s.Selected...),
		Axis:     AxisX,
	}
	if defaults != nil {
		req.Axis = defaults.DefaultAxis()
		req.Threshold = defaults.Mirror.Threshold
	}
	if s.Axis != "" {
		a, err := ParseAxis(s.Axis)
		if err != nil {
			return Request{}, err
		}
		req.Axis = a
	}
	if s.Threshold != nil {
		req.Threshold = *s.Threshold
	}
	return req, nil
}

// Apply writes the result's updated coordinates into the snapshot and replaces
// the selection with the unmatched selected points, mirroring what an editor does.
func (s *Snapshot) Apply(r *Result) {
	for i, p := range s.Points {
		if co, ok := r.Updated[p.ID]; ok {
			s.Points[i].Co = toArray(co)
		}
	}
	s.Selected = append([]int(nil), r.UnmatchedSelected...)
}

type resultWire struct {
	MovedCount        int           `json:"movedCount"`
	Updated           []PointRecord `json:"updated"`
	UnmatchedSelected []int         `json:"unmatchedSelected"`
	Pairs             []Pair        `json:"pairs"`
	Excluded          []int         `json:"excluded"`
	Sign              float64       `json:"sign"`
	Axis              string        `json:"axis"`
}

// MarshalJSON encodes the result with coordinates as [x, y, z] arrays and
// updated points sorted by id.
func (r *Result) MarshalJSON() ([]byte, error) {
	w := resultWire{
		MovedCount:        r.MovedCount,
		Updated:           make([]PointRecord, 0, len(r.Updated)),
		UnmatchedSelected: nonNil(r.UnmatchedSelected),
		Pairs:             r.Pairs,
		Excluded:          nonNil(r.Excluded),
		Sign:              r.Sign,
		Axis:              r.Axis.String(),
	}
	if w.Pairs == nil {
		w.Pairs = []Pair{}
	}
	for _, id := range r.UpdatedIDs() {
		w.Updated = append(w.Updated, PointRecord{ID: id, Co: toArray(r.Updated[id])})
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w resultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	axis, err := ParseAxis(w.Axis)
	if err != nil {
		return err
	}
	*r = Result{
		MovedCount:        w.MovedCount,
		Updated:           make(map[int]r3.Vec, len(w.Updated)),
		UnmatchedSelected: w.UnmatchedSelected,
		Pairs:             w.Pairs,
		Excluded:          w.Excluded,
		Sign:              w.Sign,
		Axis:              axis,
	}
	for _, p := range w.Updated {
		r.Updated[p.ID] = fromArray(p.Co)
	}
	return nil
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

// ParseSelection expands a comma-separated list of ids and inclusive ranges,
// e.g. "0,3,7-9". The result is sorted and deduplicated.
func ParseSelection(s string) ([]int, error) {
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if i := strings.Index(part, "-"); i > 0 {
			lo, hi = part[:i], part[i+1:]
		}
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("%w: selection %q", ErrInvalidSnapshot, part)
		}
		b, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || b < a {
			return nil, fmt.Errorf("%w: selection %q", ErrInvalidSnapshot, part)
		}
		for id := a; id <= b; id++ {
			seen[id] = true
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
