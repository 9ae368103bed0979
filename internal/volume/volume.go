// Package volume reconstructs coherent 3D image volumes from loose per-slice
// DICOM records: grouping slices into candidate volumes, resolving physical
// geometry (orientation, spacing, origin, pixel/physical transforms),
// normalizing non-canonical patient positions and repairing skipped slices.
package volume

// Modality represents a DICOM imaging modality type.
type Modality string

const (
	CT Modality = "CT" // Computed Tomography
	MR Modality = "MR" // Magnetic Resonance
	PT Modality = "PT" // Positron Emission Tomography
	US Modality = "US" // Ultrasound
	DX Modality = "DX" // Digital Radiography
	MG Modality = "MG" // Mammography
	NM Modality = "NM" // Nuclear Medicine
	XA Modality = "XA" // X-Ray Angiography
	CR Modality = "CR" // Computed Radiography
)

// AllModalities returns all supported image modalities.
func AllModalities() []Modality {
	return []Modality{CT, MR, PT, US, DX, MG, NM, XA, CR}
}

// IsValid checks if a modality string is supported.
func IsValid(m string) bool {
	for _, valid := range AllModalities() {
		if string(valid) == m {
			return true
		}
	}
	return false
}

// Is2D reports whether the modality stores one standalone image per file.
// 2D modalities never group across files; every record becomes its own
// single-slice volume.
func (m Modality) Is2D() bool {
	switch m {
	case US, DX, MG, XA, CR:
		return true
	}
	return false
}

// Plane identifies the anatomical view plane of a volume's slices.
type Plane string

const (
	Axial    Plane = "Axial"
	Coronal  Plane = "Coronal"
	Sagittal Plane = "Sagittal"
)

// SentinelAcquisition substitutes for an absent or empty AcquisitionNumber
// tag so that all such slices of a series group together.
const SentinelAcquisition = 1001

// PlaceholderSOPUID marks a slice synthesized by the skipped-slice repairer.
const PlaceholderSOPUID = "1.123456789"

// SliceRecord is one acquired 2D slice extracted from a single file.
// Records are immutable once ingested.
type SliceRecord struct {
	Modality          Modality
	SeriesUID         string
	FrameOfRefUID     string
	AcquisitionNumber int
	SOPInstanceUID    string
	FilePath          string

	PatientName       string
	PatientID         string
	SeriesDate        string
	SeriesDescription string

	Orientation    [6]float64 // row direction cosines, then column
	HasOrientation bool
	Position       [3]float64 // physical coordinate of the first pixel
	HasPosition    bool

	PixelSpacing    [2]float64 // row spacing, column spacing
	HasPixelSpacing bool
	SliceThickness  float64

	PatientPosition string // DICOM PatientPosition code, e.g. "HFS"

	Rows    int
	Columns int

	WindowCenter float64
	WindowWidth  float64
	HasWindow    bool

	// Pixels holds row-major samples with rescale slope/intercept applied.
	// Nil when the file was ingested tags-only.
	Pixels []int16
}

// Volume is an ordered 3D sample array with a resolved coordinate system.
type Volume struct {
	Modality        Modality
	SeriesUID       string
	FrameOfRefUID   string
	PatientPosition string

	PatientName       string
	PatientID         string
	SeriesDate        string
	SeriesDescription string

	// Data is slice-major: Data[z*Rows*Cols + y*Cols + x] where x indexes
	// columns, y rows and z slices. Nil for tags-only volumes.
	Data []int16

	// Dimensions is width (columns), height (rows), depth (slices).
	Dimensions [3]int
	Spacing    [3]float64
	// Orientation holds the row and column direction cosines after any
	// patient-position correction.
	Orientation [6]float64
	Origin      [3]float64
	Plane       Plane
	Affine      *Affine

	// FilePaths and SOPInstanceUIDs run parallel to the depth axis. A
	// repaired slice carries an empty path and PlaceholderSOPUID.
	FilePaths       []string
	SOPInstanceUIDs []string

	// Unverified is empty for fully verified geometry, otherwise the reason:
	// "Orientation", "Skipped" or "Modality".
	Unverified string
	// SkippedSlice is the insertion index of the repaired slice, -1 if none.
	SkippedSlice int

	// Window is the default display range [low, high].
	Window [2]float64
}

// Rows returns the in-plane height of each slice.
func (v *Volume) Rows() int { return v.Dimensions[1] }

// Cols returns the in-plane width of each slice.
func (v *Volume) Cols() int { return v.Dimensions[0] }

// Depth returns the number of slices.
func (v *Volume) Depth() int { return v.Dimensions[2] }

// At returns the sample at column x, row y, slice z.
func (v *Volume) At(x, y, z int) int16 {
	return v.Data[(z*v.Rows()+y)*v.Cols()+x]
}

// Slice returns the z-th slice as a row-major view into Data.
func (v *Volume) Slice(z int) []int16 {
	n := v.Rows() * v.Cols()
	return v.Data[z*n : (z+1)*n]
}
