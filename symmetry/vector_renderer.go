package symmetry

import (
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// RoleColors is the palette shared by the vector and raster renderers
var RoleColors = map[Role]color.NRGBA{
	RoleMatched:   {R: 30, G: 100, B: 220, A: 255},
	RoleUnmatched: {R: 220, G: 40, B: 40, A: 255},
	RoleExcluded:  {R: 150, G: 90, B: 200, A: 255},
	RoleMoved:     {R: 20, G: 160, B: 60, A: 255},
	RoleAligned:   {R: 90, G: 90, B: 90, A: 255},
	RoleOther:     {R: 190, G: 190, B: 190, A: 255},
}

// nrgbaToRGBA converts color.NRGBA to the premultiplied color.RGBA canvas expects
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{0, 0, 0, 0}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	alpha32 := uint32(c.A)
	return color.RGBA{
		R: uint8((uint32(c.R) * alpha32) / 255),
		G: uint8((uint32(c.G) * alpha32) / 255),
		B: uint8((uint32(c.B) * alpha32) / 255),
		A: c.A,
	}
}

// VectorRenderer draws a Scene as SVG or PNG
type VectorRenderer struct {
	Scene       *Scene
	Padding     float64           // world units around the content
	PointRadius float64           // world units; clamped to a visible minimum
	Size        float64           // canvas length of the longer side in mm
	Resolution  canvas.Resolution // PNG output only
}

// NewVectorRenderer creates a renderer using the render section of cfg
func NewVectorRenderer(scene *Scene, cfg RenderConfig) *VectorRenderer {
	r := &VectorRenderer{
		Scene:       scene,
		Padding:     cfg.Padding,
		PointRadius: cfg.PointRadius,
		Size:        200.0,
		Resolution:  canvas.DPI(150),
	}
	if cfg.Resolution > 0 {
		r.Resolution = canvas.DPI(cfg.Resolution)
	}
	return r
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// layout maps scene coordinates to canvas millimetres
type layout struct {
	bound         orb.Bound
	scale         float64
	width, height float64
}

func (r *VectorRenderer) layout() layout {
	b := r.Scene.Bound(r.Padding)
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	longest := math.Max(w, h)
	if longest <= 0 {
		longest = 1
	}
	scale := r.Size / longest
	return layout{bound: b, scale: scale, width: math.Max(w*scale, 1), height: math.Max(h*scale, 1)}
}

func (l layout) toCanvas(p orb.Point) (float64, float64) {
	return (p[0] - l.bound.Min[0]) * l.scale, (p[1] - l.bound.Min[1]) * l.scale
}

// RenderToSVG writes the scene as an SVG to the provided writer
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	l := r.layout()
	svgRenderer := svg.New(w, l.width, l.height, nil)
	r.renderToCanvas(svgRenderer, l)
	return svgRenderer.Close()
}

// RenderToPNG writes the scene as a PNG to the provided writer
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	l := r.layout()
	rast := rasterizer.New(l.width, l.height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, l)
	return png.Encode(w, rast)
}

func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, l layout) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(l.width, l.height), bgStyle, canvas.Identity)

	// Symmetry plane
	planeStyle := canvas.DefaultStyle
	planeStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	planeStyle.Stroke = canvas.Paint{Color: canvas.Gray}
	planeStyle.StrokeWidth = 0.4
	planeStyle.Dashes = []float64{2.0, 2.0}
	x0, y0 := l.toCanvas(orb.Point{0, l.bound.Min[1]})
	x1, y1 := l.toCanvas(orb.Point{0, l.bound.Max[1]})
	planePath := &canvas.Path{}
	planePath.MoveTo(x0, y0)
	planePath.LineTo(x1, y1)
	renderer.RenderPath(planePath, planeStyle, canvas.Identity)

	radius := math.Max(r.PointRadius*l.scale, 0.6)

	// Displacements, drawn under the points
	moveStyle := canvas.DefaultStyle
	moveStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	moveStyle.Stroke = canvas.Paint{Color: nrgbaToRGBA(RoleColors[RoleMoved])}
	moveStyle.StrokeWidth = radius / 2
	for _, m := range r.Scene.Moves() {
		fx, fy := l.toCanvas(m.From)
		tx, ty := l.toCanvas(m.To)
		p := &canvas.Path{}
		p.MoveTo(fx, fy)
		p.LineTo(tx, ty)
		renderer.RenderPath(p, moveStyle, canvas.Identity)

		ghost := canvas.DefaultStyle
		ghost.Fill = canvas.Paint{Color: canvas.Transparent}
		ghost.Stroke = canvas.Paint{Color: nrgbaToRGBA(RoleColors[RoleMoved])}
		ghost.StrokeWidth = radius / 3
		renderer.RenderPath(canvas.Circle(radius).Translate(fx, fy), ghost, canvas.Identity)
	}

	for _, p := range r.Scene.Points {
		role := r.Scene.Roles[p.ID]
		at := r.Scene.Project(p.Co)
		if to, ok := r.Scene.Result.Updated[p.ID]; ok {
			at = r.Scene.Project(to)
		}
		cx, cy := l.toCanvas(at)

		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: nrgbaToRGBA(RoleColors[role])}
		style.Stroke = canvas.Paint{Color: canvas.Transparent}
		renderer.RenderPath(canvas.Circle(radius).Translate(cx, cy), style, canvas.Identity)
	}
}
