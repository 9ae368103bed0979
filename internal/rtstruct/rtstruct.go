// Package rtstruct parses DICOM RT Structure Set objects into named contour
// sets ready for rasterization against a reconstructed volume.
package rtstruct

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/morfeuslab/dicomvol/internal/contour"
	"github.com/morfeuslab/dicomvol/internal/tags"
)

// RT Structure Set module tags (group 0x3006), addressed by group/element.
var (
	structureSetLabel       = tag.Tag{Group: 0x3006, Element: 0x0002}
	referencedFrameOfRefSeq = tag.Tag{Group: 0x3006, Element: 0x0010}
	rtReferencedStudySeq    = tag.Tag{Group: 0x3006, Element: 0x0012}
	rtReferencedSeriesSeq   = tag.Tag{Group: 0x3006, Element: 0x0014}
	structureSetROISeq      = tag.Tag{Group: 0x3006, Element: 0x0020}
	roiNumber               = tag.Tag{Group: 0x3006, Element: 0x0022}
	roiName                 = tag.Tag{Group: 0x3006, Element: 0x0026}
	roiDisplayColor         = tag.Tag{Group: 0x3006, Element: 0x002A}
	roiContourSeq           = tag.Tag{Group: 0x3006, Element: 0x0039}
	contourSeq              = tag.Tag{Group: 0x3006, Element: 0x0040}
	contourData             = tag.Tag{Group: 0x3006, Element: 0x0050}
	referencedROINumber     = tag.Tag{Group: 0x3006, Element: 0x0084}
)

// StructureSet is one parsed RT Structure Set: the image series it annotates
// and its named structures with their contour geometry in physical space.
type StructureSet struct {
	FilePath      string
	Label         string
	SeriesUID     string
	FrameOfRefUID string
	Structures    []contour.ContourSet
}

// Parse extracts the structure set from an RTSTRUCT dataset. ROI names come
// from the Structure Set ROI sequence; geometry and display color come from
// the ROI Contour sequence, joined on ROI number. Structures whose contour
// entries reference an unknown ROI number keep a synthesized name so the
// geometry is never silently dropped.
func Parse(ds *dicom.Dataset, path string) (*StructureSet, error) {
	set := &StructureSet{FilePath: path}
	set.Label, _ = tags.String(ds, structureSetLabel)
	set.SeriesUID, set.FrameOfRefUID = referencedSeries(ds)

	names := make(map[int]string)
	if items, ok := tags.Sequence(ds, structureSetROISeq); ok {
		for _, item := range items {
			num, ok := item.Int(roiNumber)
			if !ok {
				continue
			}
			if name, ok := item.String(roiName); ok {
				names[num] = name
			}
		}
	}

	items, ok := tags.Sequence(ds, roiContourSeq)
	if !ok {
		return nil, fmt.Errorf("rtstruct %s: no ROI contour sequence", path)
	}
	for _, item := range items {
		cs := contour.ContourSet{}
		num, hasNum := item.Int(referencedROINumber)
		if name, ok := names[num]; hasNum && ok {
			cs.Name = name
		} else {
			cs.Name = fmt.Sprintf("ROI-%d", num)
		}
		if rgb, ok := item.Ints(roiDisplayColor); ok && len(rgb) == 3 {
			cs.Color = [3]uint8{uint8(rgb[0]), uint8(rgb[1]), uint8(rgb[2])}
		}
		if contours, ok := item.Sequence(contourSeq); ok {
			for _, c := range contours {
				data, ok := c.Floats(contourData)
				if !ok || len(data)%3 != 0 {
					continue
				}
				poly := make(contour.Polygon, 0, len(data)/3)
				for i := 0; i+2 < len(data); i += 3 {
					poly = append(poly, contour.Point{data[i], data[i+1], data[i+2]})
				}
				cs.Polygons = append(cs.Polygons, poly)
			}
		}
		set.Structures = append(set.Structures, cs)
	}
	return set, nil
}

// referencedSeries walks Referenced Frame of Reference -> RT Referenced
// Study -> RT Referenced Series to find the image series this structure set
// annotates. Either value may be absent; matching then falls back to the
// frame of reference UID alone.
func referencedSeries(ds *dicom.Dataset) (seriesUID, frameUID string) {
	frames, ok := tags.Sequence(ds, referencedFrameOfRefSeq)
	if !ok {
		return "", ""
	}
	for _, frame := range frames {
		if uid, ok := frame.String(tag.FrameOfReferenceUID); ok && frameUID == "" {
			frameUID = uid
		}
		studies, ok := frame.Sequence(rtReferencedStudySeq)
		if !ok {
			continue
		}
		for _, study := range studies {
			series, ok := study.Sequence(rtReferencedSeriesSeq)
			if !ok {
				continue
			}
			for _, s := range series {
				if uid, ok := s.String(tag.SeriesInstanceUID); ok {
					return uid, frameUID
				}
			}
		}
	}
	return "", frameUID
}
