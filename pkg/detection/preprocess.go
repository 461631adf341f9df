// Copyright 2026 SmartBin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package detection

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Preprocess resizes the given image to width x height and stretches its
// contrast.
func Preprocess(img image.Image, width, height int) image.Image {
	return Enhance(Resize(img, width, height))
}

// Resize scales the given image to width x height using bilinear
// interpolation. Images that already have the requested size are copied.
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	sb := img.Bounds()
	switch {
	case sb.Empty():
	case sb.Dx() == width && sb.Dy() == height:
		draw.Draw(dst, dst.Bounds(), img, sb.Min, draw.Src)
	default:
		draw.BiLinear.Scale(dst, dst.Bounds(), img, sb, draw.Src, nil)
	}
	return dst
}

// Enhance stretches the contrast of the given image so that the 1st and
// 99th percentile of all color samples map to 0 and 255.
// Images without contrast are returned unchanged.
func Enhance(img *image.RGBA) *image.RGBA {
	var hist [256]int
	b := img.Bounds()
	total := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			o := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				hist[img.Pix[o+c]]++
			}
			total += 3
		}
	}
	if total == 0 {
		return img
	}
	lo := percentile(hist, total, 0.01)
	hi := percentile(hist, total, 0.99)
	if hi <= lo {
		return img
	}
	var lut [256]uint8
	scale := 255 / float64(hi-lo)
	for v := range lut {
		lut[v] = uint8(clampf(math.Round(float64(v-lo)*scale), 0, 255))
	}
	result := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			o := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				result.Pix[o+c] = lut[img.Pix[o+c]]
			}
			result.Pix[o+3] = img.Pix[o+3]
		}
	}
	return result
}

// percentile returns the smallest value v for which at least p of all
// samples are <= v.
func percentile(hist [256]int, total int, p float64) int {
	limit := int(math.Ceil(p * float64(total)))
	sum := 0
	for v, n := range hist {
		sum += n
		if sum >= limit {
			return v
		}
	}
	return 255
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
