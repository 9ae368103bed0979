// Package preview renders volume slices as grayscale PNG images for quick
// visual inspection of reconstruction output.
package preview

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/morfeuslab/dicomvol/internal/volume"
)

// RenderSlice maps the z-th slice of v through its display window to an
// 8-bit grayscale image. Samples at or below the window floor render black,
// at or above the ceiling white.
func RenderSlice(v *volume.Volume, z int) (*image.Gray, error) {
	if v.Data == nil {
		return nil, fmt.Errorf("preview: volume has no sample data")
	}
	if z < 0 || z >= v.Depth() {
		return nil, fmt.Errorf("preview: slice %d out of range [0,%d)", z, v.Depth())
	}

	lo, hi := v.Window[0], v.Window[1]
	if hi <= lo {
		hi = lo + 1
	}
	scale := 255.0 / (hi - lo)

	w, h := v.Cols(), v.Rows()
	img := image.NewGray(image.Rect(0, 0, w, h))
	samples := v.Slice(z)
	for i, s := range samples {
		val := (float64(s) - lo) * scale
		if val < 0 {
			val = 0
		}
		if val > 255 {
			val = 255
		}
		img.Pix[i] = uint8(val)
	}
	return img, nil
}

// WritePNG renders the volume's middle slice, scales it by the given factor
// and writes it under dir, named after the series UID. It returns the path
// written.
func WritePNG(v *volume.Volume, dir string, scale float64) (string, error) {
	img, err := RenderSlice(v, v.Depth()/2)
	if err != nil {
		return "", err
	}

	var out image.Image = img
	if scale > 0 && scale != 1 {
		b := img.Bounds()
		dst := image.NewGray(image.Rect(0, 0,
			int(float64(b.Dx())*scale), int(float64(b.Dy())*scale)))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
		out = dst
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("preview: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.png", v.SeriesUID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("preview: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, out); err != nil {
		return "", fmt.Errorf("preview: encode %s: %w", path, err)
	}
	return path, nil
}
