package volume

import (
	"math"
	"sort"
)

// groupKey identifies one candidate volume within a modality: slices share a
// series, an acquisition number and a bit-identical orientation. Orientation
// is compared on the raw tag values, not within a tolerance; slices with even
// slightly different direction cosines form separate volumes.
type groupKey struct {
	series      string
	acquisition int
	orientation [6]float64
}

// GroupSlices partitions records of a single modality into ordered slice
// lists, one per candidate volume.
//
// 2D-per-file modalities (US, DX, MG, XA, CR) never group across files: each
// record yields its own single-slice group. 3D modalities group by series
// and acquisition number (SentinelAcquisition substitutes when the tag was
// absent), then split on exact orientation equality, and each group is sorted
// ascending along the dominant physical axis — the axis not spanned by the
// in-plane directions. Empty input yields no groups.
func GroupSlices(records []SliceRecord) [][]SliceRecord {
	if len(records) == 0 {
		return nil
	}

	if records[0].Modality.Is2D() {
		groups := make([][]SliceRecord, 0, len(records))
		for _, r := range records {
			groups = append(groups, []SliceRecord{r})
		}
		return groups
	}

	byKey := make(map[groupKey][]SliceRecord)
	var order []groupKey
	for _, r := range records {
		key := groupKey{
			series:      r.SeriesUID,
			acquisition: r.AcquisitionNumber,
			orientation: r.Orientation,
		}
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], r)
	}

	groups := make([][]SliceRecord, 0, len(order))
	for _, key := range order {
		group := byKey[key]
		axis := dominantAxis(key.orientation)
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Position[axis] < group[j].Position[axis]
		})
		groups = append(groups, group)
	}
	return groups
}

// dominantAxis returns the index of the physical axis perpendicular to the
// slice plane: the axis whose row and column cosine components have the
// smallest combined magnitude.
func dominantAxis(o [6]float64) int {
	x := math.Abs(o[0]) + math.Abs(o[3])
	y := math.Abs(o[1]) + math.Abs(o[4])
	z := math.Abs(o[2]) + math.Abs(o[5])

	if x < y && x < z {
		return 0
	}
	if y < x && y < z {
		return 1
	}
	return 2
}

// classifyPlane maps the dominant axis to the anatomical view plane.
func classifyPlane(o [6]float64) Plane {
	switch dominantAxis(o) {
	case 0:
		return Sagittal
	case 1:
		return Coronal
	default:
		return Axial
	}
}
