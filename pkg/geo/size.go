package geo

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrUnmeasurable is returned by [FeatureCollection.SizeBytes] when a tag
// value has a type whose footprint cannot be estimated.
var ErrUnmeasurable = errors.New("size cannot be measured")

const (
	coordSize   = int64(unsafe.Sizeof(Coord{}))
	featureSize = int64(unsafe.Sizeof(Feature{}))
	sliceHeader = int64(unsafe.Sizeof([]Coord(nil)))
	stringHdr   = int64(unsafe.Sizeof(""))
	ifaceSize   = int64(unsafe.Sizeof(any(nil)))
	mapEntry    = 48
)

// SizeBytes estimates the heap footprint of the collection by walking every
// feature, geometry and tag. It fails on tag values of unknown type.
func (fc *FeatureCollection) SizeBytes() (int64, error) {
	if fc == nil {
		return 0, fmt.Errorf("%w: nil collection", ErrUnmeasurable)
	}
	total := int64(unsafe.Sizeof(*fc))
	for i := range fc.Features {
		n, err := fc.Features[i].sizeBytes()
		if err != nil {
			return 0, fmt.Errorf("feature %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}

func (f *Feature) sizeBytes() (int64, error) {
	n := featureSize + int64(len(f.ID))
	for _, l := range f.Geometry.Lines {
		n += sliceHeader + int64(len(l))*coordSize
	}
	for _, p := range f.Geometry.Polygons {
		n += sliceHeader
		for _, r := range p {
			n += sliceHeader + int64(len(r))*coordSize
		}
	}
	for k, v := range f.Tags {
		vs, err := valueSize(v)
		if err != nil {
			return 0, fmt.Errorf("tag %q: %w", k, err)
		}
		n += mapEntry + stringHdr + int64(len(k)) + vs
	}
	return n, nil
}

func valueSize(v any) (int64, error) {
	switch vv := v.(type) {
	case nil:
		return ifaceSize, nil
	case string:
		return ifaceSize + stringHdr + int64(len(vv)), nil
	case bool, int, int64, float64, float32, int32, uint64:
		return ifaceSize + 8, nil
	case []string:
		n := ifaceSize + sliceHeader
		for _, s := range vv {
			n += stringHdr + int64(len(s))
		}
		return n, nil
	case []any:
		n := ifaceSize + sliceHeader
		for _, e := range vv {
			es, err := valueSize(e)
			if err != nil {
				return 0, err
			}
			n += es
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnmeasurable, v)
	}
}
