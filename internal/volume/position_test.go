package volume

import "testing"

// proneVolume is a 3x2x1 volume (width 3, height 2) with distinct samples.
func proneVolume() *Volume {
	return &Volume{
		Data:       []int16{1, 2, 3, 4, 5, 6},
		Dimensions: [3]int{3, 2, 1},
		Spacing:    [3]float64{0.5, 2, 1},
		Orientation: [6]float64{
			1, 0, 0,
			0, 1, 0,
		},
		Origin: [3]float64{10, 20, 30},
	}
}

func TestCorrectionFor(t *testing.T) {
	for _, code := range []string{"HFS", "FFS", "", "UNKNOWN"} {
		if _, ok := CorrectionFor(code); ok {
			t.Errorf("CorrectionFor(%q) = ok, want no correction", code)
		}
	}
	for _, code := range []string{"HFDR", "FFDR", "HFP", "FFP", "HFDL", "FFDL"} {
		if _, ok := CorrectionFor(code); !ok {
			t.Errorf("CorrectionFor(%q): missing correction", code)
		}
	}
}

func TestApplyDecubitusLeft(t *testing.T) {
	v := proneVolume()
	c, _ := CorrectionFor("HFDL")
	c.Apply(v)

	// One counterclockwise quarter-turn swaps the in-plane extent.
	if v.Dimensions != [3]int{2, 3, 1} {
		t.Errorf("Dimensions = %v, want [2 3 1]", v.Dimensions)
	}
	if v.Spacing != [3]float64{2, 0.5, 1} {
		t.Errorf("Spacing = %v, want [2 0.5 1]", v.Spacing)
	}
	want := []int16{3, 6, 2, 5, 1, 4}
	for i, w := range want {
		if v.Data[i] != w {
			t.Fatalf("Data = %v, want %v", v.Data, want)
		}
	}
	// Column direction becomes the row direction, negated the other way.
	if v.Orientation != [6]float64{0, 1, 0, -1, 0, 0} {
		t.Errorf("Orientation = %v, want [0 1 0 -1 0 0]", v.Orientation)
	}
	// ShiftY moves the origin by the pre-rotation column extent.
	if v.Origin != [3]float64{10, 20 - 2*1, 30} {
		t.Errorf("Origin = %v, want [10 18 30]", v.Origin)
	}
}

func TestApplyProne(t *testing.T) {
	v := proneVolume()
	c, _ := CorrectionFor("FFP")
	c.Apply(v)

	// Two quarter-turns reverse the samples and keep the extent.
	if v.Dimensions != [3]int{3, 2, 1} {
		t.Errorf("Dimensions = %v, want [3 2 1]", v.Dimensions)
	}
	want := []int16{6, 5, 4, 3, 2, 1}
	for i, w := range want {
		if v.Data[i] != w {
			t.Fatalf("Data = %v, want %v", v.Data, want)
		}
	}
	if v.Orientation != [6]float64{-1, 0, 0, 0, -1, 0} {
		t.Errorf("Orientation = %v, want all negated", v.Orientation)
	}
	if v.Origin != [3]float64{10 - 0.5*2, 20 - 2*1, 30} {
		t.Errorf("Origin = %v, want [9 18 30]", v.Origin)
	}
}

func TestApplyUnapplyRoundTrip(t *testing.T) {
	for code := range positionCorrections {
		t.Run(code, func(t *testing.T) {
			v := proneVolume()
			orig := *v
			origData := append([]int16(nil), v.Data...)

			c, _ := CorrectionFor(code)
			c.Apply(v)
			c.Unapply(v)

			if v.Dimensions != orig.Dimensions {
				t.Errorf("Dimensions = %v, want %v", v.Dimensions, orig.Dimensions)
			}
			if v.Spacing != orig.Spacing {
				t.Errorf("Spacing = %v, want %v", v.Spacing, orig.Spacing)
			}
			if v.Orientation != orig.Orientation {
				t.Errorf("Orientation = %v, want %v", v.Orientation, orig.Orientation)
			}
			if v.Origin != orig.Origin {
				t.Errorf("Origin = %v, want %v", v.Origin, orig.Origin)
			}
			for i, w := range origData {
				if v.Data[i] != w {
					t.Fatalf("Data = %v, want %v", v.Data, origData)
				}
			}
		})
	}
}

func TestRotate90(t *testing.T) {
	// 2x3 source, counterclockwise: last column becomes the first row.
	src := []int16{
		1, 2, 3,
		4, 5, 6,
	}
	dst := make([]int16, 6)
	rotate90(dst, src, 2, 3)

	want := []int16{
		3, 6,
		2, 5,
		1, 4,
	}
	for i, w := range want {
		if dst[i] != w {
			t.Fatalf("rotate90 = %v, want %v", dst, want)
		}
	}
}
