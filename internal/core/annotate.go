package core

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

func cropFace(img image.Image, r Rect) (image.Image, error) {
	region := r.bounds().Intersect(img.Bounds())
	if region.Empty() {
		return nil, fmt.Errorf("face rectangle (%d,%d %dx%d) is outside image bounds", r.X, r.Y, r.W, r.H)
	}

	dst := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Copy(dst, image.Point{}, img, region, draw.Src, nil)
	return dst, nil
}

// annotateFaces copies the image and draws a box around every detected face.
func annotateFaces(img image.Image, rects []Rect) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Copy(dst, bounds.Min, img, bounds, draw.Src, nil)

	boxColor := color.RGBA{R: 255, A: 255}
	for _, r := range rects {
		drawBox(dst, r, boxColor, 3)
	}
	return dst
}

func drawHLine(img *image.RGBA, x1, y, x2 int, col color.Color) {
	for ; x1 <= x2; x1++ {
		img.Set(x1, y, col)
	}
}

func drawVLine(img *image.RGBA, x, y1, y2 int, col color.Color) {
	for ; y1 <= y2; y1++ {
		img.Set(x, y1, col)
	}
}

func drawBox(img *image.RGBA, r Rect, col color.Color, thickness int) {
	for t := 0; t < thickness; t++ {
		drawHLine(img, r.X, r.Y+t, r.X+r.W, col)
		drawHLine(img, r.X, r.Y+r.H-t, r.X+r.W, col)
		drawVLine(img, r.X+t, r.Y, r.Y+r.H, col)
		drawVLine(img, r.X+r.W-t, r.Y, r.Y+r.H, col)
	}
}
