// Package ingest reads DICOM files concurrently and converts them into slice
// records and structure sets for reconstruction. Files are independent, so
// ingestion fans out across a bounded worker pool and joins before anything
// downstream runs; a file that cannot be read, takes too long, or carries an
// unsupported modality is dropped with a reason and never aborts the batch.
package ingest

import (
	"context"
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/morfeuslab/dicomvol/internal/rtstruct"
	"github.com/morfeuslab/dicomvol/internal/tags"
	"github.com/morfeuslab/dicomvol/internal/volume"
)

const (
	defaultSeriesUID = "00000.00000"

	// Stored-value ceiling used when inverting MONOCHROME presentation
	// radiographs (14-bit detectors).
	inversionCeiling = 16383
)

// Drop records a file excluded from the batch and why.
type Drop struct {
	Path   string
	Reason string
}

// Result is the joined outcome of one ingestion batch. Record order is not
// meaningful; grouping and sorting happen downstream.
type Result struct {
	Records       []volume.SliceRecord
	StructureSets []*rtstruct.StructureSet
	Dropped       []Drop
}

// Options tunes the ingestion pool.
type Options struct {
	// Workers caps concurrent file reads. Zero means one per CPU.
	Workers int
	// FileTimeout bounds the wait on any single file. Zero disables the
	// bound. A file exceeding it is dropped, not retried.
	FileTimeout time.Duration
	// Progress, when set, is called after each file completes or drops.
	Progress func(path string)
}

type outcome struct {
	record *volume.SliceRecord
	set    *rtstruct.StructureSet
	err    error
}

// ReadFiles reads all paths through the worker pool and joins before
// returning. Cancelling ctx stops dispatch; files already in flight finish.
func ReadFiles(ctx context.Context, paths []string, opts Options, log zerolog.Logger) *Result {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	res := &Result{}
	var mu sync.Mutex
	drop := func(path, reason string) {
		mu.Lock()
		res.Dropped = append(res.Dropped, Drop{Path: path, Reason: reason})
		mu.Unlock()
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				out := readWithTimeout(ctx, path, opts.FileTimeout)
				switch {
				case out.err != nil:
					log.Warn().Str("file", path).Err(out.err).Msg("dropping file")
					drop(path, out.err.Error())
				case out.set != nil:
					mu.Lock()
					res.StructureSets = append(res.StructureSets, out.set)
					mu.Unlock()
				case out.record != nil:
					mu.Lock()
					res.Records = append(res.Records, *out.record)
					mu.Unlock()
				}
				if opts.Progress != nil {
					opts.Progress(path)
				}
			}
		}()
	}

dispatch:
	for _, path := range paths {
		select {
		case jobs <- path:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	return res
}

// readWithTimeout runs readFile under the per-file bound. On timeout the
// reading goroutine is abandoned; its eventual result is discarded.
func readWithTimeout(ctx context.Context, path string, timeout time.Duration) outcome {
	done := make(chan outcome, 1)
	go func() { done <- readFile(path) }()

	if timeout <= 0 {
		select {
		case out := <-done:
			return out
		case <-ctx.Done():
			return outcome{err: ctx.Err()}
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case out := <-done:
		return out
	case <-timer.C:
		return outcome{err: fmt.Errorf("read exceeded %s", timeout)}
	case <-ctx.Done():
		return outcome{err: ctx.Err()}
	}
}

func readFile(path string) outcome {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return outcome{err: fmt.Errorf("parse: %w", err)}
	}

	mod, ok := tags.String(&ds, tag.Modality)
	if !ok {
		return outcome{err: fmt.Errorf("no modality")}
	}
	if mod == "RTSTRUCT" {
		set, err := rtstruct.Parse(&ds, path)
		if err != nil {
			return outcome{err: err}
		}
		return outcome{set: set}
	}

	if !volume.IsValid(mod) {
		return outcome{err: fmt.Errorf("unsupported modality %q", mod)}
	}
	modality := volume.Modality(mod)

	rec, err := recordFromDataset(&ds, modality, path)
	if err != nil {
		return outcome{err: err}
	}
	return outcome{record: rec}
}

// recordFromDataset flattens one image dataset into a SliceRecord. Geometry
// tags are optional; each absent tag leaves its Has flag unset so resolution
// can substitute defaults and mark the volume unverified.
func recordFromDataset(ds *dicom.Dataset, modality volume.Modality, path string) (*volume.SliceRecord, error) {
	rec := &volume.SliceRecord{
		Modality:          modality,
		SeriesUID:         defaultSeriesUID,
		AcquisitionNumber: volume.SentinelAcquisition,
		FilePath:          path,
		SliceThickness:    1,
	}

	if uid, ok := tags.String(ds, tag.SeriesInstanceUID); ok && uid != "" {
		rec.SeriesUID = uid
	}
	if n, ok := tags.Int(ds, tag.AcquisitionNumber); ok {
		rec.AcquisitionNumber = n
	}
	rec.SOPInstanceUID, _ = tags.String(ds, tag.SOPInstanceUID)
	rec.FrameOfRefUID, _ = tags.String(ds, tag.FrameOfReferenceUID)
	rec.PatientPosition, _ = tags.String(ds, tag.PatientPosition)
	rec.PatientName, _ = tags.String(ds, tag.PatientName)
	rec.PatientID, _ = tags.String(ds, tag.PatientID)
	rec.SeriesDate, _ = tags.String(ds, tag.SeriesDate)
	rec.SeriesDescription, _ = tags.String(ds, tag.SeriesDescription)

	if v, ok := orientation(ds); ok {
		rec.Orientation = v
		rec.HasOrientation = true
	}
	if v, ok := tags.Floats(ds, tag.ImagePositionPatient); ok && len(v) == 3 {
		rec.Position = [3]float64{v[0], v[1], v[2]}
		rec.HasPosition = true
	}
	if v, ok := pixelSpacing(ds, modality); ok {
		rec.PixelSpacing = v
		rec.HasPixelSpacing = true
	}
	if v, ok := tags.Float(ds, tag.SliceThickness); ok && v > 0 {
		rec.SliceThickness = v
	}

	rec.Rows, _ = tags.Int(ds, tag.Rows)
	rec.Columns, _ = tags.Int(ds, tag.Columns)
	if rec.Rows <= 0 || rec.Columns <= 0 {
		return nil, fmt.Errorf("missing rows/columns")
	}

	if c, ok := tags.Float(ds, tag.WindowCenter); ok {
		if w, ok := tags.Float(ds, tag.WindowWidth); ok {
			rec.WindowCenter, rec.WindowWidth = c, w
			rec.HasWindow = true
		}
	}

	samples, err := pixelSamples(ds)
	if err != nil {
		return nil, err
	}
	if len(samples) != rec.Rows*rec.Columns {
		return nil, fmt.Errorf("pixel data has %d samples, want %d", len(samples), rec.Rows*rec.Columns)
	}

	if modality == volume.DX {
		if shape, ok := tags.String(ds, tag.PresentationLUTShape); ok && shape == "INVERSE" {
			for i, s := range samples {
				samples[i] = inversionCeiling - s
			}
		}
	}

	slope, intercept := 1.0, 0.0
	if v, ok := tags.Float(ds, tag.RescaleSlope); ok {
		slope = v
	}
	if v, ok := tags.Float(ds, tag.RescaleIntercept); ok {
		intercept = v
	}

	rec.Pixels = make([]int16, len(samples))
	for i, s := range samples {
		rec.Pixels[i] = clampInt16(slope*float64(s) + intercept)
	}
	return rec, nil
}

// orientation returns the row/column direction cosines, falling back to the
// shared functional groups of enhanced multi-frame objects.
func orientation(ds *dicom.Dataset) ([6]float64, bool) {
	if v, ok := tags.Floats(ds, tag.ImageOrientationPatient); ok && len(v) == 6 {
		return [6]float64{v[0], v[1], v[2], v[3], v[4], v[5]}, true
	}
	if items, ok := tags.Sequence(ds, tags.SharedFunctionalGroupsSequence); ok {
		for _, item := range items {
			planes, ok := item.Sequence(tags.PlaneOrientationSequence)
			if !ok {
				continue
			}
			for _, plane := range planes {
				if v, ok := plane.Floats(tag.ImageOrientationPatient); ok && len(v) == 6 {
					return [6]float64{v[0], v[1], v[2], v[3], v[4], v[5]}, true
				}
			}
		}
	}
	return [6]float64{}, false
}

// pixelSpacing resolves in-plane spacing through the per-modality fallback
// chain: the standard tag, then imager spacing, then detector element
// spacing from the contributing sources of synthesized radiographs, then the
// pixel measures of enhanced multi-frame objects. Ultrasound regions encode
// spacing in cm, converted here to mm.
func pixelSpacing(ds *dicom.Dataset, modality volume.Modality) ([2]float64, bool) {
	if modality == volume.US {
		if items, ok := tags.Sequence(ds, tags.SequenceOfUltrasoundRegions); ok {
			for _, item := range items {
				dx, okX := item.Floats(tags.PhysicalDeltaX)
				dy, okY := item.Floats(tags.PhysicalDeltaY)
				if okX && okY && len(dx) > 0 && len(dy) > 0 {
					return [2]float64{dy[0] * 10, dx[0] * 10}, true
				}
			}
		}
	}

	if v, ok := tags.Floats(ds, tag.PixelSpacing, tag.ImagerPixelSpacing); ok && len(v) == 2 {
		return [2]float64{v[0], v[1]}, true
	}

	if items, ok := tags.Sequence(ds, tags.ContributingSourcesSequence); ok {
		for _, item := range items {
			if v, ok := item.Floats(tags.DetectorElementSpacing); ok && len(v) == 2 {
				return [2]float64{v[0], v[1]}, true
			}
		}
	}

	if items, ok := tags.Sequence(ds, tags.PerFrameFunctionalGroupsSequence); ok {
		for _, item := range items {
			measures, ok := item.Sequence(tags.PixelMeasuresSequence)
			if !ok {
				continue
			}
			for _, m := range measures {
				if v, ok := m.Floats(tag.PixelSpacing); ok && len(v) == 2 {
					return [2]float64{v[0], v[1]}, true
				}
			}
		}
	}
	return [2]float64{}, false
}

// pixelSamples decodes the first frame's stored values. Grayscale frames are
// read at their native depth; anything else collapses to the red channel's
// high byte.
func pixelSamples(ds *dicom.Dataset) ([]int, error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("no pixel data")
	}
	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return nil, fmt.Errorf("no frames")
	}

	img, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	b := img.Bounds()
	out := make([]int, 0, b.Dx()*b.Dy())
	switch im := img.(type) {
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out = append(out, int(im.Gray16At(x, y).Y))
			}
		}
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out = append(out, int(im.GrayAt(x, y).Y))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, _, _, _ := img.At(x, y).RGBA()
				out = append(out, int(r>>8))
			}
		}
	}
	return out, nil
}

func clampInt16(v float64) int16 {
	r := math.Round(v)
	if r > math.MaxInt16 {
		return math.MaxInt16
	}
	if r < math.MinInt16 {
		return math.MinInt16
	}
	return int16(r)
}
