package preview

import (
	"image/png"
	"os"
	"testing"

	"github.com/morfeuslab/dicomvol/internal/volume"
)

func grayVolume() *volume.Volume {
	return &volume.Volume{
		SeriesUID:  "1.2.3",
		Data:       []int16{-100, 0, 100, 300},
		Dimensions: [3]int{2, 2, 1},
		Window:     [2]float64{0, 200},
	}
}

func TestRenderSliceWindowing(t *testing.T) {
	img, err := RenderSlice(grayVolume(), 0)
	if err != nil {
		t.Fatalf("RenderSlice: %v", err)
	}

	// Below the floor clamps to black, above the ceiling to white.
	want := []uint8{0, 0, 127, 255}
	for i, w := range want {
		if img.Pix[i] != w {
			t.Errorf("Pix[%d] = %d, want %d", i, img.Pix[i], w)
		}
	}
}

func TestRenderSliceErrors(t *testing.T) {
	v := grayVolume()
	if _, err := RenderSlice(v, 5); err == nil {
		t.Error("out-of-range slice: want error")
	}
	v.Data = nil
	if _, err := RenderSlice(v, 0); err == nil {
		t.Error("tags-only volume: want error")
	}
}

func TestWritePNG(t *testing.T) {
	dir := t.TempDir()
	path, err := WritePNG(grayVolume(), dir, 2)
	if err != nil {
		t.Fatalf("WritePNG: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Errorf("bounds = %v, want 4x4 after 2x scaling", b)
	}
}
