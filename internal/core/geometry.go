package core

import "image"

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is a detected face bounding box with its top-left corner at (X, Y).
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// RectPolygon returns the four corners of a rectangle in clockwise order
// starting from the top-left. Degenerate rectangles (zero width or height)
// yield repeated points rather than an error.
func RectPolygon(r Rect) [4]Point {
	return [4]Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.W, Y: r.Y},
		{X: r.X + r.W, Y: r.Y + r.H},
		{X: r.X, Y: r.Y + r.H},
	}
}

func (r Rect) bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}
