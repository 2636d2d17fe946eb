package geo

import (
	"github.com/dhconnelly/rtreego"
)

// minExtent keeps degenerate (point or axis-aligned) features indexable;
// the R-tree rejects zero-length rectangles.
const minExtent = 1e-6

type indexedFeature struct {
	idx    int
	bounds Bounds
}

// Bounds implements rtreego.Spatial.
func (f *indexedFeature) Bounds() rtreego.Rect {
	return rect(f.bounds)
}

func rect(b Bounds) rtreego.Rect {
	point := rtreego.Point{b.MinX, b.MinY}
	lengths := []float64{max(b.Width(), minExtent), max(b.Height(), minExtent)}
	r, _ := rtreego.NewRect(point, lengths)
	return r
}

// Index is an R-tree over the features of one collection.
type Index struct {
	fc   *FeatureCollection
	tree *rtreego.Rtree
}

// NewIndex bulk-loads an R-tree over fc. Features without vertices are
// skipped.
func NewIndex(fc *FeatureCollection) *Index {
	objs := make([]rtreego.Spatial, 0, fc.Len())
	if fc != nil {
		for i := range fc.Features {
			b := fc.Features[i].Geometry.Bounds()
			if b.Empty() {
				continue
			}
			objs = append(objs, &indexedFeature{idx: i, bounds: b})
		}
	}
	return &Index{fc: fc, tree: rtreego.NewTree(2, 25, 50, objs...)}
}

// Size returns the number of indexed features.
func (ix *Index) Size() int { return ix.tree.Size() }

// Query returns the features whose bounding boxes intersect b, in their
// original order.
func (ix *Index) Query(b Bounds) []Feature {
	if b.Empty() || ix.fc == nil {
		return nil
	}
	hits := ix.tree.SearchIntersect(rect(b))
	seen := make([]bool, len(ix.fc.Features))
	for _, h := range hits {
		seen[h.(*indexedFeature).idx] = true
	}
	var out []Feature
	for i, ok := range seen {
		if ok {
			out = append(out, ix.fc.Features[i])
		}
	}
	return out
}

// Clip returns a collection restricted to features intersecting the
// viewport. Geometry is shared with fc.
func Clip(fc *FeatureCollection, viewport Bounds) *FeatureCollection {
	if fc == nil {
		return nil
	}
	return &FeatureCollection{
		Features:  NewIndex(fc).Query(viewport),
		Projected: fc.Projected,
	}
}
