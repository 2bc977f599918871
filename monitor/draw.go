package monitor

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// A 2 dimensional position in screen pixels
type Vec2 struct {
	X, Y float32
}

// A single vertex with a position and color
type Vertex struct {
	Position Vec2
	Color    color.RGBA
}

// Colored geometry batched for a single DrawTriangles call
type DrawData struct {
	VtxBuffer []Vertex
}

func (dd *DrawData) PushVertices(vertices ...Vertex) {
	dd.VtxBuffer = append(dd.VtxBuffer, vertices...)
}

// Pushes the two triangles of a quad given as top left, top right,
// bottom left and bottom right
func (dd *DrawData) PushQuad(vertices ...Vertex) {
	if len(vertices) != 4 {
		panic("PushQuad takes 4 vertices")
	}
	dd.PushVertices(vertices[0:3]...)
	dd.PushVertices(vertices[1:4]...)
}

// Pushes an axis aligned rectangle
func (dd *DrawData) PushRect(x, y, w, h float32, clr color.RGBA) {
	dd.PushQuad(
		Vertex{Vec2{x, y}, clr},
		Vertex{Vec2{x + w, y}, clr},
		Vertex{Vec2{x, y + h}, clr},
		Vertex{Vec2{x + w, y + h}, clr},
	)
}

// Pushes a horizontal bar filled up to `ratio` (0 to 1)
func (dd *DrawData) PushBar(x, y, w, h float32, ratio float64, fill, empty color.RGBA) {
	ratio = min(max(ratio, 0), 1)
	filled := w * float32(ratio)
	dd.PushRect(x, y, filled, h, fill)
	dd.PushRect(x+filled, y, w-filled, h, empty)
}

var whiteImage *ebiten.Image

// Draws the batched geometry on `screen` and empties the buffer
func (dd *DrawData) Flush(screen *ebiten.Image) {
	if len(dd.VtxBuffer) == 0 {
		return
	}
	if whiteImage == nil {
		whiteImage = ebiten.NewImage(2, 2)
		whiteImage.Fill(color.White)
	}

	vertices := make([]ebiten.Vertex, len(dd.VtxBuffer))
	indices := make([]uint16, len(dd.VtxBuffer))
	for idx, vtx := range dd.VtxBuffer {
		vertices[idx] = ebiten.Vertex{
			DstX:   vtx.Position.X,
			DstY:   vtx.Position.Y,
			SrcX:   1,
			SrcY:   1,
			ColorR: float32(vtx.Color.R) / 255,
			ColorG: float32(vtx.Color.G) / 255,
			ColorB: float32(vtx.Color.B) / 255,
			ColorA: float32(vtx.Color.A) / 255,
		}
		indices[idx] = uint16(idx)
	}
	screen.DrawTriangles(vertices, indices, whiteImage, &ebiten.DrawTrianglesOptions{})
	dd.VtxBuffer = dd.VtxBuffer[:0]
}
