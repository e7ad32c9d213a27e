package viz

import "math"

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Embed maps the first three coordinates of a point of any dimension into
// 3D. Missing axes are zero; axes past the third are dropped.
func Embed(coords []float64) Vec3 {
	var v Vec3
	if len(coords) > 0 {
		v.X = coords[0]
	}
	if len(coords) > 1 {
		v.Y = coords[1]
	}
	if len(coords) > 2 {
		v.Z = coords[2]
	}
	return v
}

// Camera looks down -Z at the origin from Distance, in units where the
// simulation box spans [-1, 1].
type Camera struct {
	RotX, RotY float64
	Zoom       float64
	Distance   float64
}

func NewCamera() *Camera {
	return &Camera{Zoom: 1, Distance: 6}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.1, c.Zoom/1.2) }
func (c *Camera) Reset()            { *c = *NewCamera() }

func (c *Camera) rotate(p Vec3) Vec3 {
	cx, sx := math.Cos(c.RotX), math.Sin(c.RotX)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	cy, sy := math.Cos(c.RotY), math.Sin(c.RotY)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	return p
}

// Project maps p to a dot on a w x h canvas. It returns the dot, the depth
// after rotation (larger is closer) and whether the dot lands on the canvas.
func (c *Camera) Project(p Vec3, w, h int) (x, y int, depth float64, ok bool) {
	r := c.rotate(p).Scale(c.Zoom)
	if r.Z >= c.Distance {
		return 0, 0, 0, false
	}
	perspective := c.Distance / (c.Distance - r.Z)
	half := float64(min(w, h)) / 2.2

	x = int(math.Round(r.X*perspective*half)) + w/2
	y = int(math.Round(-r.Y*perspective*half)) + h/2
	return x, y, r.Z, x >= 0 && x < w && y >= 0 && y < h
}

// boxEdges returns the edges of the unit box [-1, 1]^dim for dim up to 3.
func boxEdges(dim int) [][2]Vec3 {
	dim = min(dim, 3)
	if dim < 1 {
		return nil
	}

	var corners []Vec3
	for i := 0; i < 1<<dim; i++ {
		var coords [3]float64
		for axis := 0; axis < dim; axis++ {
			coords[axis] = -1
			if i&(1<<axis) != 0 {
				coords[axis] = 1
			}
		}
		corners = append(corners, Embed(coords[:dim]))
	}

	var edges [][2]Vec3
	for i := range corners {
		for axis := 0; axis < dim; axis++ {
			if j := i | 1<<axis; j != i {
				edges = append(edges, [2]Vec3{corners[i], corners[j]})
			}
		}
	}
	return edges
}

// RenderParticles draws the simulation box and the particles inside it.
// Positions are scaled so the largest extent fills [-1, 1]; without extents
// the positions set their own scale.
func RenderParticles(c *Canvas, cam *Camera, positions [][]float64, extents []float64) {
	if c == nil || cam == nil {
		return
	}
	w, h := c.DotsX(), c.DotsY()

	dim := len(extents)
	half := 0.0
	for _, e := range extents {
		half = math.Max(half, e/2)
	}
	if half == 0 {
		for _, p := range positions {
			dim = max(dim, len(p))
			for _, x := range p {
				half = math.Max(half, math.Abs(x))
			}
		}
	}
	if half == 0 {
		half = 1
	}

	for _, e := range boxEdges(dim) {
		a, b := e[0], e[1]
		if len(extents) > 0 {
			a, b = boxScale(a, extents, half), boxScale(b, extents, half)
		}
		x0, y0, _, ok0 := cam.Project(a, w, h)
		x1, y1, _, ok1 := cam.Project(b, w, h)
		if ok0 || ok1 {
			c.DrawLine(x0, y0, x1, y1)
		}
	}

	for _, p := range positions {
		if x, y, _, ok := cam.Project(Embed(p).Scale(1/half), w, h); ok {
			c.Set(x, y)
		}
	}
}

// boxScale stretches a unit-box corner to the region's aspect ratio.
func boxScale(v Vec3, extents []float64, half float64) Vec3 {
	axis := func(i int) float64 {
		if i < len(extents) {
			return extents[i] / 2 / half
		}
		return 1
	}
	return Vec3{v.X * axis(0), v.Y * axis(1), v.Z * axis(2)}
}
