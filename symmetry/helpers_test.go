package symmetry

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

func pt(id int, x, y, z float64) Point {
	return Point{ID: id, Co: r3.Vec{X: x, Y: y, Z: z}}
}

// randomMirrorSet places n selected points on the positive x side and n noisy
// mirror candidates on the negative side. Ids are 0..n-1 selected, n..2n-1 candidates.
// Selected points are spread at least 0.5 apart in y so only one mirror is in reach.
func randomMirrorSet(rng *rand.Rand, n int, noise float64) ([]Point, []int) {
	var points []Point
	var selected []int
	for i := 0; i < n; i++ {
		co := r3.Vec{X: 0.1 + rng.Float64(), Y: float64(i) + rng.Float64()*0.5, Z: rng.Float64()}
		points = append(points, Point{ID: i, Co: co})
		selected = append(selected, i)
	}
	for i := 0; i < n; i++ {
		mir := Reflect(points[rng.Intn(n)].Co, AxisX)
		mir.X += (rng.Float64()*2 - 1) * noise
		mir.Y += (rng.Float64()*2 - 1) * noise
		mir.Z += (rng.Float64()*2 - 1) * noise
		if mir.X >= 0 {
			mir.X = -0.01
		}
		points = append(points, Point{ID: n + i, Co: mir})
	}
	return points, selected
}
