package contour

import (
	"math"

	"github.com/morfeuslab/dicomvol/internal/volume"
)

// Rasterize converts a contour set's physical-space polygons into a binary
// mask aligned to vol's pixel grid and cropped to the minimal bounding
// region.
//
// Every point maps through the volume's physical-to-pixel transform; all
// rounding is half-up (N.5 rounds to N+1), including the through-plane slice
// index. Overlapping or disjoint sub-contours on one slice accumulate by
// summation and the result is binarized, so holes and multi-blob structures
// all contribute. Polygons with fewer than 2 points are skipped, and a set
// with no usable geometry yields an empty Mask, never an error.
func Rasterize(vol *volume.Volume, set *ContourSet) *Mask {
	w, h, depth := vol.Cols(), vol.Rows(), vol.Depth()

	acc := make(map[int][]uint16)
	scratch := make([]uint8, w*h)
	region := Region{
		Min: [3]int{depth, h, w},
		Max: [3]int{-1, -1, -1},
	}

	xs := make([]int, 0, 64)
	ys := make([]int, 0, 64)
	for _, poly := range set.Polygons {
		if len(poly) < 2 {
			continue
		}

		xs, ys = xs[:0], ys[:0]
		z := -1
		for i, pt := range poly {
			pix := vol.Affine.PhysicalToPixel([3]float64(pt))
			xs = append(xs, roundHalfUp(pix[0]))
			ys = append(ys, roundHalfUp(pix[1]))
			if i == 0 {
				z = roundHalfUp(pix[2])
			}
		}
		if z < 0 || z >= depth {
			continue
		}

		clear(scratch)
		bbox, ok := fillPolygon(scratch, w, h, xs, ys)
		if !ok {
			continue
		}

		buf := acc[z]
		if buf == nil {
			buf = make([]uint16, w*h)
			acc[z] = buf
		}
		for i, v := range scratch {
			buf[i] += uint16(v)
		}

		region.Min[0] = min(region.Min[0], z)
		region.Max[0] = max(region.Max[0], z)
		region.Min[1] = min(region.Min[1], bbox[1])
		region.Max[1] = max(region.Max[1], bbox[3])
		region.Min[2] = min(region.Min[2], bbox[0])
		region.Max[2] = max(region.Max[2], bbox[2])
	}

	if region.Max[0] < 0 {
		return &Mask{}
	}

	// Convert the inclusive extremes to exclusive upper bounds.
	region.Max[0]++
	region.Max[1]++
	region.Max[2]++

	size := region.Size()
	data := make([]uint8, size[0]*size[1]*size[2])
	for z := region.Min[0]; z < region.Max[0]; z++ {
		buf := acc[z]
		if buf == nil {
			continue
		}
		for y := region.Min[1]; y < region.Max[1]; y++ {
			for x := region.Min[2]; x < region.Max[2]; x++ {
				if buf[y*w+x] > 0 {
					rz := z - region.Min[0]
					ry := y - region.Min[1]
					rx := x - region.Min[2]
					data[(rz*size[1]+ry)*size[2]+rx] = 1
				}
			}
		}
	}

	return &Mask{
		Data:   data,
		Region: region,
		Origin: vol.Affine.PixelToPhysical([3]float64{
			float64(region.Min[2]), float64(region.Min[1]), float64(region.Min[0]),
		}),
	}
}

// roundHalfUp rounds to the nearest integer with halves rounding up, pinning
// down slice assignment for coordinates landing exactly between two indices.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
