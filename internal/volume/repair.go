package volume

import "math"

// repairSkippedSlice scans consecutive slice pairs for an inter-slice gap
// deviating from the first-observed gap by more than spacingTol and repairs
// the first such gap: the depth grows by one, a placeholder path/UID is
// inserted, and the missing samples are synthesized as the element-wise mean
// of the two neighbors. Only the first gap is repaired; the volume stays
// flagged "Skipped" either way, so callers can treat it as needing review.
// With repair disabled the gap is detected and flagged but nothing is
// inserted.
func repairSkippedSlice(v *Volume, group []SliceRecord, dir [3]float64, opts ResolveOptions) {
	base := 0.0
	for i := 0; i < len(group)-1; i++ {
		gap := dot(dir, group[i+1].Position) - dot(dir, group[i].Position)
		if i == 0 {
			base = gap
			continue
		}
		if math.Abs(base-gap) <= spacingTol {
			continue
		}

		v.Unverified = "Skipped"
		if !opts.RepairSkippedSlices {
			return
		}

		idx := i + 1
		v.SkippedSlice = idx
		v.Dimensions[2]++
		v.FilePaths = insertString(v.FilePaths, idx, "")
		v.SOPInstanceUIDs = insertString(v.SOPInstanceUIDs, idx, PlaceholderSOPUID)
		if v.Data != nil {
			v.Data = insertInterpolated(v.Data, v.Rows()*v.Cols(), idx)
		}
		return
	}
}

// insertInterpolated inserts a synthesized slice at index idx whose samples
// are the mean of the slices at idx-1 and idx.
func insertInterpolated(data []int16, sliceLen, idx int) []int16 {
	interp := make([]int16, sliceLen)
	prev := data[(idx-1)*sliceLen : idx*sliceLen]
	next := data[idx*sliceLen : (idx+1)*sliceLen]
	for i := range interp {
		interp[i] = int16((int(prev[i]) + int(next[i])) / 2)
	}

	out := make([]int16, 0, len(data)+sliceLen)
	out = append(out, data[:idx*sliceLen]...)
	out = append(out, interp...)
	out = append(out, data[idx*sliceLen:]...)
	return out
}

func insertString(s []string, idx int, val string) []string {
	out := make([]string, 0, len(s)+1)
	out = append(out, s[:idx]...)
	out = append(out, val)
	out = append(out, s[idx:]...)
	return out
}
