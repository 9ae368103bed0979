package volume

import (
	"errors"
	"fmt"
	"math"
)

// spacingTol is the maximum deviation, in physical units, between the first
// inter-slice gap and the uniform gap before the sequence is treated as
// having a skipped slice.
const spacingTol = 0.01

// identityOrientation is the in-plane default when no orientation tag is
// present anywhere in a slice group.
var identityOrientation = [6]float64{1, 0, 0, 0, 1, 0}

// ResolveOptions control geometry resolution.
type ResolveOptions struct {
	// RepairSkippedSlices enables interpolation of a detected missing slice.
	// When false a detected gap only flags the volume as unverified.
	RepairSkippedSlices bool
}

// Resolve computes a Volume from one ordered slice group produced by
// GroupSlices. Missing orientation or spacing tags resolve to documented
// defaults and flag the volume unverified; they are never an error. An error
// is returned only for structurally unusable groups (empty, or pixel buffers
// that disagree with the row/column tags).
func Resolve(group []SliceRecord, opts ResolveOptions) (*Volume, error) {
	if len(group) == 0 {
		return nil, errors.New("volume: empty slice group")
	}

	first := group[0]
	v := &Volume{
		Modality:          first.Modality,
		SeriesUID:         first.SeriesUID,
		FrameOfRefUID:     first.FrameOfRefUID,
		PatientPosition:   first.PatientPosition,
		PatientName:       first.PatientName,
		PatientID:         first.PatientID,
		SeriesDate:        first.SeriesDate,
		SeriesDescription: first.SeriesDescription,
		Dimensions:        [3]int{first.Columns, first.Rows, len(group)},
		SkippedSlice:      -1,
	}

	if first.Modality.Is2D() {
		return resolve2D(v, first)
	}

	v.Spacing = [3]float64{1, 1, first.SliceThickness}
	if first.HasPixelSpacing {
		v.Spacing[0] = first.PixelSpacing[0]
		v.Spacing[1] = first.PixelSpacing[1]
	}

	v.Orientation = identityOrientation
	if first.HasOrientation {
		v.Orientation = first.Orientation
	} else {
		v.Unverified = "Orientation"
	}
	v.Plane = classifyPlane(v.Orientation)

	if err := gatherSamples(v, group); err != nil {
		return nil, err
	}

	v.Origin = first.Position
	if c, ok := CorrectionFor(first.PatientPosition); ok {
		c.Apply(v)
	}

	refineThroughPlaneSpacing(v, group, opts)

	aff, err := NewAffine(v.Orientation, v.Spacing, v.Origin)
	if err != nil {
		return nil, fmt.Errorf("volume %s: %w", v.SeriesUID, err)
	}
	v.Affine = aff

	v.Window = defaultWindow(first, v.Data)
	return v, nil
}

// resolve2D builds a standalone single-slice volume for 2D-per-file
// modalities. These carry no patient coordinate system: identity orientation,
// zero origin and a nominal through-plane spacing of one unit. The volume is
// flagged unverified since its geometry is conventional, not measured.
func resolve2D(v *Volume, r SliceRecord) (*Volume, error) {
	v.Spacing = [3]float64{1, 1, 1}
	if r.HasPixelSpacing {
		v.Spacing[0] = r.PixelSpacing[0]
		v.Spacing[1] = r.PixelSpacing[1]
	}
	v.Orientation = identityOrientation
	v.Plane = Axial
	v.Unverified = "Modality"

	if err := gatherSamples(v, []SliceRecord{r}); err != nil {
		return nil, err
	}

	aff, err := NewAffine(v.Orientation, v.Spacing, v.Origin)
	if err != nil {
		return nil, fmt.Errorf("volume %s: %w", v.SeriesUID, err)
	}
	v.Affine = aff

	v.Window = defaultWindow(r, v.Data)
	return v, nil
}

// gatherSamples concatenates the per-slice pixel buffers into the volume's
// slice-major array and records the per-slice identifiers. A group ingested
// tags-only (nil buffers throughout) produces a tags-only volume.
func gatherSamples(v *Volume, group []SliceRecord) error {
	n := v.Rows() * v.Cols()
	withPixels := 0
	for _, r := range group {
		if r.Pixels != nil {
			withPixels++
		}
	}

	v.FilePaths = make([]string, 0, len(group))
	v.SOPInstanceUIDs = make([]string, 0, len(group))
	if withPixels > 0 {
		v.Data = make([]int16, 0, n*len(group))
	}

	for i, r := range group {
		v.FilePaths = append(v.FilePaths, r.FilePath)
		v.SOPInstanceUIDs = append(v.SOPInstanceUIDs, r.SOPInstanceUID)
		if v.Data == nil {
			continue
		}
		if len(r.Pixels) != n {
			return fmt.Errorf("volume %s: slice %d has %d samples, want %d",
				v.SeriesUID, i, len(r.Pixels), n)
		}
		v.Data = append(v.Data, r.Pixels...)
	}
	return nil
}

// refineThroughPlaneSpacing replaces the nominal slice-thickness spacing with
// the measured inter-slice distance: the uniform (first-to-last)/(count-1)
// gap when the sequence is regular, otherwise the locally verified
// first-to-second gap, delegating to the skipped-slice repairer.
func refineThroughPlaneSpacing(v *Volume, group []SliceRecord, opts ResolveOptions) {
	if len(group) < 2 {
		return
	}
	dir := cross(
		[3]float64{v.Orientation[0], v.Orientation[1], v.Orientation[2]},
		[3]float64{v.Orientation[3], v.Orientation[4], v.Orientation[5]},
	)

	first := dot(dir, group[0].Position)
	second := dot(dir, group[1].Position)
	last := dot(dir, group[len(group)-1].Position)
	uniform := (last - first) / float64(len(group)-1)
	if uniform == 0 {
		// No usable position information; keep the nominal thickness.
		return
	}

	if math.Abs((second-first)-uniform) > spacingTol {
		repairSkippedSlice(v, group, dir, opts)
		v.Spacing[2] = second - first
	} else {
		v.Spacing[2] = uniform
	}
}

// defaultWindow derives the display window from the WindowCenter/Width tags,
// falling back to the sample range, then to [0,1].
func defaultWindow(r SliceRecord, data []int16) [2]float64 {
	if r.HasWindow {
		half := math.Round(r.WindowWidth / 2)
		return [2]float64{r.WindowCenter - half, r.WindowCenter + half}
	}
	if len(data) > 0 {
		lo, hi := data[0], data[0]
		for _, s := range data {
			if s < lo {
				lo = s
			}
			if s > hi {
				hi = s
			}
		}
		return [2]float64{float64(lo), float64(hi)}
	}
	return [2]float64{0, 1}
}
