package symmetry

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const captionHeight = 20

// RenderPreview rasterizes the scene into a width x height image with a one-line
// caption ("N moved, M unmatched") along the top edge.
func RenderPreview(s *Scene, width, height int, pad float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	plotH := height - captionHeight
	if plotH < 1 || width < 1 {
		return img
	}

	b := s.Bound(pad)
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	scale := math.Min(float64(width)/math.Max(w, 1e-12), float64(plotH)/math.Max(h, 1e-12))
	toPixel := func(p orb.Point) (int, int) {
		x := (p[0] - b.Min[0]) * scale
		// Image y grows downwards
		y := float64(height) - (p[1]-b.Min[1])*scale
		return int(math.Round(x)), int(math.Round(y))
	}

	px, top := toPixel(orb.Point{0, b.Max[1]})
	_, bottom := toPixel(orb.Point{0, b.Min[1]})
	for y := top; y <= bottom; y += 2 {
		img.Set(px, y, color.RGBA{160, 160, 160, 255})
	}

	moved := RoleColors[RoleMoved]
	for _, m := range s.Moves() {
		fx, fy := toPixel(m.From)
		tx, ty := toPixel(m.To)
		drawLine(img, fx, fy, tx, ty, moved)
	}

	for _, p := range s.Points {
		at := s.Project(p.Co)
		if to, ok := s.Result.Updated[p.ID]; ok {
			at = s.Project(to)
		}
		x, y := toPixel(at)
		drawDot(img, x, y, 2, RoleColors[s.Roles[p.ID]])
	}

	caption := fmt.Sprintf("%d moved, %d unmatched (axis %s)",
		s.Result.MovedCount, len(s.Result.UnmatchedSelected), s.Axis)
	drawText(img, 6, 14, caption, color.RGBA{0, 0, 0, 255})
	return img
}

// drawDot fills a small disc
func drawDot(img *image.RGBA, cx, cy, radius int, c color.NRGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				img.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

// drawLine draws a Bresenham line
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
