// Package contour overlays structure-set contour data onto reconstructed
// volumes as rasterized binary masks with tight bounding-box cropping.
package contour

// Point is a 3D physical-space coordinate.
type Point [3]float64

// Polygon is one ordered freeform contour loop in physical space. All points
// of a polygon lie on a single slice plane of the referenced volume.
type Polygon []Point

// ContourSet is one named structure for a frame of reference: an ordered
// collection of contour polygons referencing a volume it does not own.
type ContourSet struct {
	Name     string
	Color    [3]uint8
	Polygons []Polygon
}

// Region is an index-space bounding box with exclusive upper bounds.
// Axes are ordered slice, row, column.
type Region struct {
	Min [3]int
	Max [3]int
}

// Empty reports whether the region contains no voxels.
func (r Region) Empty() bool {
	for i := 0; i < 3; i++ {
		if r.Max[i] <= r.Min[i] {
			return true
		}
	}
	return false
}

// Size returns the voxel extent per axis (slice, row, column).
func (r Region) Size() [3]int {
	return [3]int{r.Max[0] - r.Min[0], r.Max[1] - r.Min[1], r.Max[2] - r.Min[2]}
}

// Mask is a binary 3D array cropped to the minimal bounding region of a
// rasterized structure, plus the physical coordinate of the region's first
// voxel. It is a derived artifact of a Volume and a ContourSet and carries no
// geometry of its own beyond the region and origin.
type Mask struct {
	// Data is the cropped binary array, slice-major within Region:
	// Data[(z*rows+y)*cols+x] with z, y, x relative to Region.Min.
	Data   []uint8
	Region Region
	// Origin is the physical-space coordinate of the voxel at Region.Min.
	Origin [3]float64
}

// Empty reports whether the structure produced no geometry on any slice.
func (m *Mask) Empty() bool { return len(m.Data) == 0 }

// At returns the mask value at region-relative slice z, row y, column x.
func (m *Mask) At(z, y, x int) uint8 {
	size := m.Region.Size()
	return m.Data[(z*size[1]+y)*size[2]+x]
}
