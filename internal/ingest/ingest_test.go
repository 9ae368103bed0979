package ingest

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/morfeuslab/dicomvol/internal/tags"
	"github.com/morfeuslab/dicomvol/internal/volume"
)

func mustNewElement(t *testing.T, tg tag.Tag, value interface{}) *dicom.Element {
	t.Helper()
	el, err := dicom.NewElement(tg, value)
	if err != nil {
		t.Fatalf("NewElement(%v): %v", tg, err)
	}
	return el
}

func pixelElement(t *testing.T, rows, cols int, samples []uint16) *dicom.Element {
	t.Helper()
	nf := frame.NativeFrame{BitsPerSample: 16, Rows: rows, Cols: cols, Data: make([][]int, rows*cols)}
	for i, s := range samples {
		nf.Data[i] = []int{int(s)}
	}
	info := dicom.PixelDataInfo{
		Frames: []*frame.Frame{{Encapsulated: false, NativeData: nf}},
	}
	return mustNewElement(t, tag.PixelData, info)
}

func ctDataset(t *testing.T) *dicom.Dataset {
	t.Helper()
	return &dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(t, tag.Modality, []string{"CT"}),
		mustNewElement(t, tag.SeriesInstanceUID, []string{"1.2.3"}),
		mustNewElement(t, tag.SOPInstanceUID, []string{"1.2.3.4"}),
		mustNewElement(t, tag.FrameOfReferenceUID, []string{"1.9"}),
		mustNewElement(t, tag.AcquisitionNumber, []string{"2"}),
		mustNewElement(t, tag.PatientPosition, []string{"HFS"}),
		mustNewElement(t, tag.PatientName, []string{"Doe^Jane"}),
		mustNewElement(t, tag.PatientID, []string{"PAT-1"}),
		mustNewElement(t, tag.SeriesDate, []string{"20240115"}),
		mustNewElement(t, tag.SeriesDescription, []string{"Abdomen"}),
		mustNewElement(t, tag.ImageOrientationPatient, []string{"1", "0", "0", "0", "1", "0"}),
		mustNewElement(t, tag.ImagePositionPatient, []string{"-200", "-180", "40"}),
		mustNewElement(t, tag.PixelSpacing, []string{"0.7", "0.8"}),
		mustNewElement(t, tag.SliceThickness, []string{"2.5"}),
		mustNewElement(t, tag.RescaleSlope, []string{"2"}),
		mustNewElement(t, tag.RescaleIntercept, []string{"-100"}),
		mustNewElement(t, tag.WindowCenter, []string{"40"}),
		mustNewElement(t, tag.WindowWidth, []string{"400"}),
		mustNewElement(t, tag.Rows, []int{2}),
		mustNewElement(t, tag.Columns, []int{2}),
		pixelElement(t, 2, 2, []uint16{100, 200, 300, 400}),
	}}
}

func TestRecordFromDataset(t *testing.T) {
	rec, err := recordFromDataset(ctDataset(t), volume.CT, "ct.dcm")
	if err != nil {
		t.Fatalf("recordFromDataset: %v", err)
	}

	if rec.SeriesUID != "1.2.3" || rec.SOPInstanceUID != "1.2.3.4" {
		t.Errorf("UIDs = %q/%q", rec.SeriesUID, rec.SOPInstanceUID)
	}
	if rec.AcquisitionNumber != 2 {
		t.Errorf("AcquisitionNumber = %d, want 2", rec.AcquisitionNumber)
	}
	if rec.PatientName != "Doe^Jane" || rec.PatientID != "PAT-1" {
		t.Errorf("patient = %q/%q", rec.PatientName, rec.PatientID)
	}
	if rec.SeriesDate != "20240115" || rec.SeriesDescription != "Abdomen" {
		t.Errorf("series = %q/%q", rec.SeriesDate, rec.SeriesDescription)
	}
	if !rec.HasOrientation || rec.Orientation != [6]float64{1, 0, 0, 0, 1, 0} {
		t.Errorf("Orientation = %v", rec.Orientation)
	}
	if !rec.HasPosition || rec.Position != [3]float64{-200, -180, 40} {
		t.Errorf("Position = %v", rec.Position)
	}
	if !rec.HasPixelSpacing || rec.PixelSpacing != [2]float64{0.7, 0.8} {
		t.Errorf("PixelSpacing = %v", rec.PixelSpacing)
	}
	if rec.SliceThickness != 2.5 {
		t.Errorf("SliceThickness = %v, want 2.5", rec.SliceThickness)
	}
	if !rec.HasWindow || rec.WindowCenter != 40 || rec.WindowWidth != 400 {
		t.Errorf("window = %v/%v", rec.WindowCenter, rec.WindowWidth)
	}

	// Rescale slope/intercept applied to the stored values.
	want := []int16{100, 300, 500, 700}
	for i, w := range want {
		if rec.Pixels[i] != w {
			t.Fatalf("Pixels = %v, want %v", rec.Pixels, want)
		}
	}
}

func TestRecordDefaults(t *testing.T) {
	ds := &dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(t, tag.Modality, []string{"CT"}),
		mustNewElement(t, tag.Rows, []int{1}),
		mustNewElement(t, tag.Columns, []int{2}),
		pixelElement(t, 1, 2, []uint16{5, 6}),
	}}

	rec, err := recordFromDataset(ds, volume.CT, "ct.dcm")
	if err != nil {
		t.Fatalf("recordFromDataset: %v", err)
	}
	if rec.SeriesUID != defaultSeriesUID {
		t.Errorf("SeriesUID = %q, want %q", rec.SeriesUID, defaultSeriesUID)
	}
	if rec.AcquisitionNumber != volume.SentinelAcquisition {
		t.Errorf("AcquisitionNumber = %d, want sentinel", rec.AcquisitionNumber)
	}
	if rec.HasOrientation || rec.HasPosition || rec.HasPixelSpacing || rec.HasWindow {
		t.Error("absent tags must not set Has flags")
	}
	if rec.SliceThickness != 1 {
		t.Errorf("SliceThickness = %v, want default 1", rec.SliceThickness)
	}
}

func TestRecordOrientationFromSharedGroups(t *testing.T) {
	plane := []*dicom.Element{
		mustNewElement(t, tag.ImageOrientationPatient, []string{"0", "1", "0", "0", "0", "-1"}),
	}
	shared := []*dicom.Element{
		mustNewElement(t, tags.PlaneOrientationSequence, [][]*dicom.Element{plane}),
	}
	ds := &dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(t, tag.Modality, []string{"MR"}),
		mustNewElement(t, tags.SharedFunctionalGroupsSequence, [][]*dicom.Element{shared}),
		mustNewElement(t, tag.Rows, []int{1}),
		mustNewElement(t, tag.Columns, []int{1}),
		pixelElement(t, 1, 1, []uint16{0}),
	}}

	rec, err := recordFromDataset(ds, volume.MR, "mr.dcm")
	if err != nil {
		t.Fatalf("recordFromDataset: %v", err)
	}
	if !rec.HasOrientation || rec.Orientation != [6]float64{0, 1, 0, 0, 0, -1} {
		t.Errorf("Orientation = %v, want shared functional group fallback", rec.Orientation)
	}
}

func TestUltrasoundSpacingFromRegions(t *testing.T) {
	region := []*dicom.Element{
		mustNewElement(t, tags.PhysicalDeltaX, []float64{0.05}),
		mustNewElement(t, tags.PhysicalDeltaY, []float64{0.03}),
	}
	ds := &dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(t, tags.SequenceOfUltrasoundRegions, [][]*dicom.Element{region}),
	}}

	got, ok := pixelSpacing(ds, volume.US)
	if !ok {
		t.Fatal("pixelSpacing: want ok")
	}
	// cm per pixel converted to mm, row spacing from the Y delta.
	if got != [2]float64{0.3, 0.5} {
		t.Errorf("spacing = %v, want [0.3 0.5]", got)
	}
}

func TestRadiographInversion(t *testing.T) {
	ds := &dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(t, tag.Modality, []string{"DX"}),
		mustNewElement(t, tag.PresentationLUTShape, []string{"INVERSE"}),
		mustNewElement(t, tag.Rows, []int{1}),
		mustNewElement(t, tag.Columns, []int{2}),
		pixelElement(t, 1, 2, []uint16{0, 1000}),
	}}

	rec, err := recordFromDataset(ds, volume.DX, "dx.dcm")
	if err != nil {
		t.Fatalf("recordFromDataset: %v", err)
	}
	want := []int16{16383, 15383}
	for i, w := range want {
		if rec.Pixels[i] != w {
			t.Fatalf("Pixels = %v, want %v", rec.Pixels, want)
		}
	}
}

func TestReadFilesDropsUnreadable(t *testing.T) {
	var progressed atomic.Int32
	res := ReadFiles(context.Background(),
		[]string{"does-not-exist-1.dcm", "does-not-exist-2.dcm"},
		Options{Workers: 2, Progress: func(string) { progressed.Add(1) }},
		zerolog.Nop())

	if len(res.Records) != 0 {
		t.Errorf("got %d records, want 0", len(res.Records))
	}
	if len(res.Dropped) != 2 {
		t.Fatalf("got %d drops, want 2", len(res.Dropped))
	}
	for _, d := range res.Dropped {
		if d.Reason == "" {
			t.Errorf("drop %s has empty reason", d.Path)
		}
	}
	if progressed.Load() != 2 {
		t.Errorf("progress called %d times, want 2", progressed.Load())
	}
}

func TestReadFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := ReadFiles(ctx, []string{"a.dcm", "b.dcm", "c.dcm"}, Options{Workers: 1}, zerolog.Nop())
	if len(res.Records) != 0 {
		t.Errorf("got %d records after cancel, want 0", len(res.Records))
	}
}
