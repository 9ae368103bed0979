package volume

// Patient-position normalization. Scans acquired with the patient prone or
// in a lateral decubitus position are rotated back to the supine coordinate
// convention: the pixel array turns by a multiple of 90 degrees in-plane,
// the orientation components are negated/reordered and the origin shifts by
// spacing*(dimension-1) along the affected axes. The per-position table below
// defines the coordinate convention every downstream consumer relies on.

// orientationRemap names one of the closed set of direction-cosine rewrites.
type orientationRemap int

const (
	remapNone orientationRemap = iota
	// remapDecubitusRight: [-c0,-c1,-c2, r0,r1,r2]
	remapDecubitusRight
	// remapProne: all six components negated
	remapProne
	// remapDecubitusLeft: [c0,c1,c2, -r0,-r1,-r2]
	remapDecubitusLeft
)

func (r orientationRemap) apply(o [6]float64) [6]float64 {
	switch r {
	case remapDecubitusRight:
		return [6]float64{-o[3], -o[4], -o[5], o[0], o[1], o[2]}
	case remapProne:
		return [6]float64{-o[0], -o[1], -o[2], -o[3], -o[4], -o[5]}
	case remapDecubitusLeft:
		return [6]float64{o[3], o[4], o[5], -o[0], -o[1], -o[2]}
	default:
		return o
	}
}

func (r orientationRemap) inverse() orientationRemap {
	switch r {
	case remapDecubitusRight:
		return remapDecubitusLeft
	case remapDecubitusLeft:
		return remapDecubitusRight
	default:
		return r
	}
}

// PositionCorrection is the normalization applied for one non-supine patient
// position.
type PositionCorrection struct {
	// Rotations is the number of counterclockwise quarter-turns applied to
	// each slice in-plane.
	Rotations int
	// ShiftX shifts the origin by spacing[0]*(width-1) along the row axis.
	ShiftX bool
	// ShiftY shifts the origin by spacing[1]*(height-1) along the column axis.
	ShiftY bool

	remap orientationRemap
}

// positionCorrections maps PatientPosition codes to their normalization.
// Head-first and feet-first variants of the same decubitus/prone posture
// share a correction.
var positionCorrections = map[string]PositionCorrection{
	"HFDR": {Rotations: 3, ShiftX: true, remap: remapDecubitusRight},
	"FFDR": {Rotations: 3, ShiftX: true, remap: remapDecubitusRight},
	"HFP":  {Rotations: 2, ShiftX: true, ShiftY: true, remap: remapProne},
	"FFP":  {Rotations: 2, ShiftX: true, ShiftY: true, remap: remapProne},
	"HFDL": {Rotations: 1, ShiftY: true, remap: remapDecubitusLeft},
	"FFDL": {Rotations: 1, ShiftY: true, remap: remapDecubitusLeft},
}

// CorrectionFor returns the correction for a PatientPosition code. Supine
// codes (HFS, FFS) and unknown codes need no correction; ok is false.
func CorrectionFor(position string) (PositionCorrection, bool) {
	c, ok := positionCorrections[position]
	return c, ok
}

// Apply normalizes v in place: origin shift (computed from the pre-rotation
// geometry), orientation remap, then the in-plane array rotation. Odd
// quarter-turn counts swap the in-plane dimensions and spacing.
func (c PositionCorrection) Apply(v *Volume) {
	if c.ShiftX {
		v.Origin[0] -= v.Spacing[0] * float64(v.Dimensions[0]-1)
	}
	if c.ShiftY {
		v.Origin[1] -= v.Spacing[1] * float64(v.Dimensions[1]-1)
	}
	v.Orientation = c.remap.apply(v.Orientation)
	rotateInPlane(v, c.Rotations)
}

// Unapply reverses Apply, restoring the original origin, orientation and
// sample layout.
func (c PositionCorrection) Unapply(v *Volume) {
	rotateInPlane(v, (4-c.Rotations)%4)
	v.Orientation = c.remap.inverse().apply(v.Orientation)
	if c.ShiftX {
		v.Origin[0] += v.Spacing[0] * float64(v.Dimensions[0]-1)
	}
	if c.ShiftY {
		v.Origin[1] += v.Spacing[1] * float64(v.Dimensions[1]-1)
	}
}

// rotateInPlane turns every slice of v counterclockwise by k quarter-turns
// and keeps the dimension/spacing bookkeeping consistent.
func rotateInPlane(v *Volume, k int) {
	k = ((k % 4) + 4) % 4
	if k == 0 {
		return
	}
	for i := 0; i < k; i++ {
		rows, cols := v.Rows(), v.Cols()
		if v.Data != nil {
			out := make([]int16, len(v.Data))
			n := rows * cols
			for z := 0; z < v.Depth(); z++ {
				src := v.Data[z*n : (z+1)*n]
				dst := out[z*n : (z+1)*n]
				rotate90(dst, src, rows, cols)
			}
			v.Data = out
		}
		v.Dimensions[0], v.Dimensions[1] = v.Dimensions[1], v.Dimensions[0]
		v.Spacing[0], v.Spacing[1] = v.Spacing[1], v.Spacing[0]
	}
}

// rotate90 writes a single counterclockwise quarter-turn of src (rows x cols,
// row-major) into dst (cols x rows): dst[i][j] = src[j][cols-1-i].
func rotate90(dst, src []int16, rows, cols int) {
	for i := 0; i < cols; i++ {
		for j := 0; j < rows; j++ {
			dst[i*rows+j] = src[j*cols+(cols-1-i)]
		}
	}
}
