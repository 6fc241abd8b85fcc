package camera

import (
	"image"
	"image/draw"
)

// CropRegion is a centered scan rectangle expressed as margins in percent of the
// frame size.
type CropRegion struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

// DefaultCrop matches the scanner frame drawn by the UI.
var DefaultCrop = CropRegion{Top: 35, Bottom: 35, Left: 8, Right: 8}

// Rect returns the scan rectangle inside bounds. ok is false when the margins
// leave nothing to scan.
func (r CropRegion) Rect(bounds image.Rectangle) (image.Rectangle, bool) {
	w, h := bounds.Dx(), bounds.Dy()
	left := w * r.Left / 100
	top := h * r.Top / 100
	cw := w * (100 - r.Left - r.Right) / 100
	ch := h * (100 - r.Top - r.Bottom) / 100
	if cw <= 0 || ch <= 0 {
		return bounds, false
	}
	origin := bounds.Min.Add(image.Pt(left, top))
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(cw, ch))}, true
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop cuts img down to the scan region. Images that cannot be sliced in place are
// copied.
func Crop(img image.Image, r CropRegion) image.Image {
	rect, ok := r.Rect(img.Bounds())
	if !ok {
		return img
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}
