// removebg-square - batch background removal with XMP provenance tagging
// Copyright (C) 2026  The bg-remove-wpd authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package canvas places a background-removed cutout on a white square.
package canvas

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Margins is the whitespace kept around the subject, in output pixels.
type Margins struct {
	Left, Right, Top, Bottom int
}

// Uniform returns equal margins on all four sides.
func Uniform(px int) Margins {
	return Margins{Left: px, Right: px, Top: px, Bottom: px}
}

// ErrMarginsTooLarge reports margins that leave no room for the subject.
var ErrMarginsTooLarge = errors.New("canvas: inner area is too small; check margin values")

// Compose crops src to its non-transparent bounding box, scales the crop
// to fit the inner area (the square canvas minus margins, aspect ratio
// preserved, Catmull-Rom resampling), and composites it centered onto an
// opaque white canvas of size x size pixels.  A fully transparent src
// yields a plain white canvas.
func Compose(src image.Image, size int, m Margins) (image.Image, error) {
	innerW := size - m.Left - m.Right
	innerH := size - m.Top - m.Bottom
	if innerW <= 1 || innerH <= 1 {
		return nil, ErrMarginsTooLarge
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	rgba := toRGBA(src)
	bbox, ok := alphaBounds(rgba)
	if !ok {
		return dst, nil
	}
	cropped := rgba.SubImage(bbox).(*image.RGBA)

	cw := bbox.Dx()
	ch := bbox.Dy()
	scale := minf(float64(innerW)/float64(cw), float64(innerH)/float64(ch))
	newW := clamp(int(float64(cw)*scale), 1, innerW)
	newH := clamp(int(float64(ch)*scale), 1, innerH)

	x := m.Left + (innerW-newW)/2
	y := m.Top + (innerH-newH)/2
	target := image.Rect(x, y, x+newW, y+newH)

	xdraw.CatmullRom.Scale(dst, target, cropped, cropped.Bounds(), xdraw.Over, nil)
	return dst, nil
}

// alphaBounds returns the bounding box of all pixels with non-zero alpha.
func alphaBounds(img *image.RGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			if row[(x-b.Min.X)*4+3] == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	b := src.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, src, b.Min, draw.Src)
	return rgba
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
