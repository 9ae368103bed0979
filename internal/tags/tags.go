// Package tags provides absence-tolerant lookups over DICOM datasets. Each
// helper walks a priority list of candidate tags and returns the first value
// present, coercing between the string-encoded numeric representations
// (DS/IS) and native Go types. Tag absence is an ordinary outcome, never an
// error.
package tags

import (
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Tags outside the dictionary shipped with the parser, addressed by
// group/element. These appear in the per-modality spacing and orientation
// fallback chains.
var (
	SharedFunctionalGroupsSequence   = tag.Tag{Group: 0x5200, Element: 0x9229}
	PerFrameFunctionalGroupsSequence = tag.Tag{Group: 0x5200, Element: 0x9230}
	PixelMeasuresSequence            = tag.Tag{Group: 0x0028, Element: 0x9110}
	PlaneOrientationSequence         = tag.Tag{Group: 0x0020, Element: 0x9116}
	ContributingSourcesSequence      = tag.Tag{Group: 0x0018, Element: 0x9506}
	DetectorElementSpacing           = tag.Tag{Group: 0x0018, Element: 0x7022}
	SequenceOfUltrasoundRegions      = tag.Tag{Group: 0x0018, Element: 0x6011}
	PhysicalDeltaX                   = tag.Tag{Group: 0x0018, Element: 0x602C}
	PhysicalDeltaY                   = tag.Tag{Group: 0x0018, Element: 0x602E}
)

// Element returns the first present element among the candidate tags.
func Element(ds *dicom.Dataset, candidates ...tag.Tag) (*dicom.Element, bool) {
	for _, t := range candidates {
		if el, err := ds.FindElementByTag(t); err == nil && el != nil {
			return el, true
		}
	}
	return nil, false
}

// String returns the first string value among the candidate tags.
func String(ds *dicom.Dataset, candidates ...tag.Tag) (string, bool) {
	el, ok := Element(ds, candidates...)
	if !ok {
		return "", false
	}
	return elementString(el)
}

// Int returns the first integer value among the candidate tags, accepting
// both native integer values and IS-encoded strings.
func Int(ds *dicom.Dataset, candidates ...tag.Tag) (int, bool) {
	el, ok := Element(ds, candidates...)
	if !ok {
		return 0, false
	}
	return elementInt(el)
}

// Float returns the first floating-point value among the candidate tags,
// accepting native floats, integers and DS-encoded strings.
func Float(ds *dicom.Dataset, candidates ...tag.Tag) (float64, bool) {
	el, ok := Element(ds, candidates...)
	if !ok {
		return 0, false
	}
	vals, ok := elementFloats(el)
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// Floats returns all values of the first present candidate tag as floats.
func Floats(ds *dicom.Dataset, candidates ...tag.Tag) ([]float64, bool) {
	el, ok := Element(ds, candidates...)
	if !ok {
		return nil, false
	}
	return elementFloats(el)
}

// Item is one sequence item's element list.
type Item []*dicom.Element

// Sequence returns the items of the first present sequence tag.
func Sequence(ds *dicom.Dataset, candidates ...tag.Tag) ([]Item, bool) {
	el, ok := Element(ds, candidates...)
	if !ok {
		return nil, false
	}
	return SequenceItems(el)
}

// SequenceItems unpacks a sequence element into its per-item element lists.
func SequenceItems(el *dicom.Element) ([]Item, bool) {
	raw, ok := el.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil, false
	}
	items := make([]Item, 0, len(raw))
	for _, item := range raw {
		elems, ok := item.GetValue().([]*dicom.Element)
		if !ok {
			continue
		}
		items = append(items, Item(elems))
	}
	return items, true
}

// Element returns the item's element with the given tag.
func (it Item) Element(t tag.Tag) (*dicom.Element, bool) {
	for _, el := range it {
		if el.Tag == t {
			return el, true
		}
	}
	return nil, false
}

// String returns the item's first string value for the given tag.
func (it Item) String(t tag.Tag) (string, bool) {
	el, ok := it.Element(t)
	if !ok {
		return "", false
	}
	return elementString(el)
}

// Int returns the item's first integer value for the given tag.
func (it Item) Int(t tag.Tag) (int, bool) {
	el, ok := it.Element(t)
	if !ok {
		return 0, false
	}
	return elementInt(el)
}

// Floats returns all of the item's values for the given tag as floats.
func (it Item) Floats(t tag.Tag) ([]float64, bool) {
	el, ok := it.Element(t)
	if !ok {
		return nil, false
	}
	return elementFloats(el)
}

// Sequence returns the items of a nested sequence within the item.
func (it Item) Sequence(t tag.Tag) ([]Item, bool) {
	el, ok := it.Element(t)
	if !ok {
		return nil, false
	}
	return SequenceItems(el)
}

// Ints returns all of the item's values for the given tag as integers.
func (it Item) Ints(t tag.Tag) ([]int, bool) {
	el, ok := it.Element(t)
	if !ok {
		return nil, false
	}
	return elementInts(el)
}

func elementString(el *dicom.Element) (string, bool) {
	if vals, ok := el.Value.GetValue().([]string); ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0]), true
	}
	return "", false
}

func elementInt(el *dicom.Element) (int, bool) {
	switch vals := el.Value.GetValue().(type) {
	case []int:
		if len(vals) > 0 {
			return vals[0], true
		}
	case []string:
		if len(vals) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(vals[0])); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func elementInts(el *dicom.Element) ([]int, bool) {
	switch vals := el.Value.GetValue().(type) {
	case []int:
		return vals, len(vals) > 0
	case []string:
		out := make([]int, 0, len(vals))
		for _, s := range vals {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil, false
			}
			out = append(out, n)
		}
		return out, len(out) > 0
	}
	return nil, false
}

func elementFloats(el *dicom.Element) ([]float64, bool) {
	switch vals := el.Value.GetValue().(type) {
	case []float64:
		return vals, len(vals) > 0
	case []int:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, len(out) > 0
	case []string:
		out := make([]float64, 0, len(vals))
		for _, s := range vals {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, false
			}
			out = append(out, f)
		}
		return out, len(out) > 0
	}
	return nil, false
}
