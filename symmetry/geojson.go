package symmetry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ExportGeoJSON describes the scene as a FeatureCollection in scene coordinates:
// one Point per vertex (properties id, role), one LineString per move
// (properties id, kind=move, length) and the symmetry plane (kind=plane).
func ExportGeoJSON(s *Scene, pad float64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	b := s.Bound(pad)
	plane := geojson.NewFeature(orb.LineString{{0, b.Min[1]}, {0, b.Max[1]}})
	plane.Properties["kind"] = "plane"
	plane.Properties["axis"] = s.Axis.String()
	fc.Append(plane)

	for _, p := range s.Points {
		f := geojson.NewFeature(s.Project(p.Co))
		f.Properties["id"] = p.ID
		f.Properties["role"] = string(s.Roles[p.ID])
		f.Properties["kind"] = "vertex"
		fc.Append(f)
	}

	for _, m := range s.Moves() {
		f := geojson.NewFeature(orb.LineString{m.From, m.To})
		f.Properties["id"] = m.ID
		f.Properties["kind"] = "move"
		f.Properties["length"] = planar.Distance(m.From, m.To)
		fc.Append(f)
	}
	return fc
}
