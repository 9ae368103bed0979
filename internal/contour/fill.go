package contour

import "sort"

// Scan-fill of integer-vertex polygons onto a binary 2D buffer. Interior
// coverage uses even-odd scanline filling over half-open edges; the outline
// itself is then traced so boundary pixels are covered, matching the integer
// polygon-fill semantics structure sets are authored against.

// fillPolygon rasterizes the polygon with vertices (xs[i], ys[i]) into buf
// (h rows by w cols, row-major), setting covered pixels to 1. It returns the
// inclusive bounding box of the pixels it touched; ok is false when nothing
// was covered. buf must be zeroed by the caller.
func fillPolygon(buf []uint8, w, h int, xs, ys []int) (bbox [4]int, ok bool) {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return bbox, false
	}

	minX, minY := w, h
	maxX, maxY := -1, -1
	set := func(x, y int) {
		if x < 0 || x >= w || y < 0 || y >= h {
			return
		}
		buf[y*w+x] = 1
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

	yLo, yHi := ys[0], ys[0]
	for _, y := range ys {
		if y < yLo {
			yLo = y
		}
		if y > yHi {
			yHi = y
		}
	}
	if yLo < 0 {
		yLo = 0
	}
	if yHi >= h {
		yHi = h - 1
	}

	// Interior: even-odd rule, one intersection list per scanline.
	var crossings []float64
	for y := yLo; y <= yHi; y++ {
		crossings = crossings[:0]
		for i := 0; i < n; i++ {
			x0, y0 := xs[i], ys[i]
			x1, y1 := xs[(i+1)%n], ys[(i+1)%n]
			if y0 == y1 {
				continue
			}
			if (y0 <= y && y < y1) || (y1 <= y && y < y0) {
				t := float64(y-y0) / float64(y1-y0)
				crossings = append(crossings, float64(x0)+t*float64(x1-x0))
			}
		}
		sort.Float64s(crossings)
		for i := 0; i+1 < len(crossings); i += 2 {
			lo := int(ceilf(crossings[i]))
			hi := int(ceilf(crossings[i+1])) - 1
			for x := lo; x <= hi; x++ {
				set(x, y)
			}
		}
	}

	// Outline: every edge traced so the boundary contributes.
	for i := 0; i < n; i++ {
		drawLine(set, xs[i], ys[i], xs[(i+1)%n], ys[(i+1)%n])
	}

	if maxX < 0 {
		return bbox, false
	}
	return [4]int{minX, minY, maxX, maxY}, true
}

func ceilf(v float64) float64 {
	iv := float64(int(v))
	if v > iv {
		return iv + 1
	}
	return iv
}

// drawLine walks the segment (x0,y0)-(x1,y1) with Bresenham's algorithm.
func drawLine(set func(x, y int), x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
