package skins

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

const (
	DefaultVerticalAngle   = -25.0
	DefaultHorizontalAngle = 45.0
	DefaultHead3DScale     = 32
	MaxHead3DScale         = 64

	baseHalf    = 4.0
	overlayHalf = 4.5
	overlayTexX = 32

	// quads are grown by this many pixels so neighbours overlap and no seams show
	seamBleed = 0.35
)

// Angles orients the 3D head. Vertical is the camera pitch in degrees
// (negative looks down onto the top of the head), Horizontal the yaw.
type Angles struct {
	Vertical   float64
	Horizontal float64
}

// DefaultAngles returns the three-quarter view used when the caller gives none.
func DefaultAngles() Angles {
	return Angles{Vertical: DefaultVerticalAngle, Horizontal: DefaultHorizontalAngle}
}

type vec3 struct{ x, y, z float64 }

func (a vec3) add(b vec3) vec3      { return vec3{a.x + b.x, a.y + b.y, a.z + b.z} }
func (a vec3) scale(k float64) vec3 { return vec3{a.x * k, a.y * k, a.z * k} }

// cubeFace maps one 8x8 texture block onto one side of the unit head cube.
// origin is the corner under texel (0,0); u and v follow texture x and y.
type cubeFace struct {
	texX, texY int
	origin     vec3
	u, v       vec3
	normal     vec3
	shade      float64
}

var headFaces = []cubeFace{
	{texX: 8, texY: 8, origin: vec3{-1, 1, 1}, u: vec3{1, 0, 0}, v: vec3{0, -1, 0}, normal: vec3{0, 0, 1}, shade: 0.9},    // front
	{texX: 24, texY: 8, origin: vec3{1, 1, -1}, u: vec3{-1, 0, 0}, v: vec3{0, -1, 0}, normal: vec3{0, 0, -1}, shade: 0.9}, // back
	{texX: 0, texY: 8, origin: vec3{-1, 1, -1}, u: vec3{0, 0, 1}, v: vec3{0, -1, 0}, normal: vec3{-1, 0, 0}, shade: 0.8}, // right
	{texX: 16, texY: 8, origin: vec3{1, 1, 1}, u: vec3{0, 0, -1}, v: vec3{0, -1, 0}, normal: vec3{1, 0, 0}, shade: 0.8},  // left
	{texX: 8, texY: 0, origin: vec3{-1, 1, -1}, u: vec3{1, 0, 0}, v: vec3{0, 0, 1}, normal: vec3{0, 1, 0}, shade: 1.0},    // top
	{texX: 16, texY: 0, origin: vec3{-1, -1, -1}, u: vec3{1, 0, 0}, v: vec3{0, 0, 1}, normal: vec3{0, -1, 0}, shade: 0.7}, // bottom
}

type camera struct {
	cosH, sinH float64
	cosP, sinP float64
}

func newCamera(a Angles) camera {
	h := a.Horizontal * math.Pi / 180
	p := -a.Vertical * math.Pi / 180
	return camera{cosH: math.Cos(h), sinH: math.Sin(h), cosP: math.Cos(p), sinP: math.Sin(p)}
}

// view rotates a model space point into view space; +z points at the viewer.
func (c camera) view(p vec3) vec3 {
	x := p.x*c.cosH + p.z*c.sinH
	z := -p.x*c.sinH + p.z*c.cosH
	return vec3{
		x: x,
		y: p.y*c.cosP - z*c.sinP,
		z: p.y*c.sinP + z*c.cosP,
	}
}

type texelQuad struct {
	corners [4]vec3 // view space
	depth   float64
	fill    color.NRGBA
}

// RenderHead3D draws the head cube and its overlay from the given angles with
// an orthographic camera. scale is the edge length of one texel in output
// pixels. The background is transparent and the output is deterministic.
func RenderHead3D(skin []byte, angles Angles, scale int) ([]byte, error) {
	if scale <= 0 {
		scale = DefaultHead3DScale
	}
	if scale > MaxHead3DScale {
		return nil, fmt.Errorf("head scale %d exceeds %d", scale, MaxHead3DScale)
	}
	if angles.Vertical < -90 || angles.Vertical > 90 {
		return nil, fmt.Errorf("vertical angle %.1f out of range", angles.Vertical)
	}

	img, err := decodeSheet(skin, 64, 16)
	if err != nil {
		return nil, err
	}
	sheet := image.NewNRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	xdraw.Draw(sheet, sheet.Bounds(), img, img.Bounds().Min, xdraw.Src)

	cam := newCamera(angles)
	base := collectQuads(sheet, cam, baseHalf, 0)
	overlay := collectQuads(sheet, cam, overlayHalf, overlayTexX)

	size := int(math.Ceil(2*overlayHalf*math.Sqrt(3)*float64(scale))) + 2
	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	centre := float64(size) / 2

	project := func(p vec3) (float32, float32) {
		return float32(centre + p.x*float64(scale)), float32(centre - p.y*float64(scale))
	}

	var r vector.Rasterizer
	for _, layer := range [][]texelQuad{base, overlay} {
		for _, q := range layer {
			drawQuad(&r, canvas, q, project)
		}
	}

	return encodePNG(canvas.SubImage(contentBounds(cam, scale, centre, size)))
}

// collectQuads emits one quad per visible, non transparent texel of a cube
// with the given half edge, ordered back to front.
func collectQuads(sheet *image.NRGBA, cam camera, half float64, texOffset int) []texelQuad {
	step := 2 * half / faceTexels
	quads := make([]texelQuad, 0, 3*faceTexels*faceTexels)

	for _, f := range headFaces {
		if cam.view(f.normal).z <= 1e-9 {
			continue
		}
		origin := f.origin.scale(half)
		for ty := 0; ty < faceTexels; ty++ {
			for tx := 0; tx < faceTexels; tx++ {
				c := sheet.NRGBAAt(f.texX+texOffset+tx, f.texY+ty)
				if c.A == 0 {
					continue
				}
				p0 := origin.add(f.u.scale(float64(tx) * step)).add(f.v.scale(float64(ty) * step))
				p1 := p0.add(f.u.scale(step))
				p2 := p1.add(f.v.scale(step))
				p3 := p0.add(f.v.scale(step))

				q := texelQuad{fill: shadeColor(c, f.shade)}
				q.corners = [4]vec3{cam.view(p0), cam.view(p1), cam.view(p2), cam.view(p3)}
				for _, v := range q.corners {
					q.depth += v.z / 4
				}
				quads = append(quads, q)
			}
		}
	}

	sort.SliceStable(quads, func(i, j int) bool { return quads[i].depth < quads[j].depth })
	return quads
}

func drawQuad(r *vector.Rasterizer, dst *image.RGBA, q texelQuad, project func(vec3) (float32, float32)) {
	var xs, ys [4]float32
	var cx, cy float32
	for i, v := range q.corners {
		xs[i], ys[i] = project(v)
		cx += xs[i] / 4
		cy += ys[i] / 4
	}
	for i := range xs {
		dx, dy := xs[i]-cx, ys[i]-cy
		if l := float32(math.Hypot(float64(dx), float64(dy))); l > 0 {
			xs[i] += dx / l * seamBleed
			ys[i] += dy / l * seamBleed
		}
	}

	minX, minY := float32(math.Inf(1)), float32(math.Inf(1))
	maxX, maxY := float32(math.Inf(-1)), float32(math.Inf(-1))
	for i := range xs {
		minX, maxX = min(minX, xs[i]), max(maxX, xs[i])
		minY, maxY = min(minY, ys[i]), max(maxY, ys[i])
	}
	bounds := image.Rect(
		int(math.Floor(float64(minX))), int(math.Floor(float64(minY))),
		int(math.Ceil(float64(maxX))), int(math.Ceil(float64(maxY))),
	).Intersect(dst.Bounds())
	if bounds.Empty() {
		return
	}

	ox, oy := float32(bounds.Min.X), float32(bounds.Min.Y)
	r.Reset(bounds.Dx(), bounds.Dy())
	r.DrawOp = xdraw.Over
	r.MoveTo(xs[0]-ox, ys[0]-oy)
	for i := 1; i < 4; i++ {
		r.LineTo(xs[i]-ox, ys[i]-oy)
	}
	r.ClosePath()
	r.Draw(dst, bounds, image.NewUniform(q.fill), image.Point{})
}

func shadeColor(c color.NRGBA, k float64) color.NRGBA {
	mul := func(v uint8) uint8 { return uint8(math.Round(float64(v) * k)) }
	return color.NRGBA{R: mul(c.R), G: mul(c.G), B: mul(c.B), A: c.A}
}

// contentBounds is the projected extent of the overlay cube plus one pixel.
func contentBounds(cam camera, scale int, centre float64, size int) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				v := cam.view(vec3{sx, sy, sz}.scale(overlayHalf))
				x, y := centre+v.x*float64(scale), centre-v.y*float64(scale)
				minX, maxX = math.Min(minX, x), math.Max(maxX, x)
				minY, maxY = math.Min(minY, y), math.Max(maxY, y)
			}
		}
	}
	return image.Rect(
		int(math.Floor(minX))-1, int(math.Floor(minY))-1,
		int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1,
	).Intersect(image.Rect(0, 0, size, size))
}
