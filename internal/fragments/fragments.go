package fragments

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/facet/api"
)

// ErrNilFilter is returned by DecodeFiltered when no target set is given.
var ErrNilFilter = errors.New("nil target id set")

// Transform kinds carried by a fragment record. Every known kind ends with a
// translation vector; unknown kinds mean the record has no usable placement.
const (
	xformTranslation  = 0
	xformRotation     = 1
	xformUniformScale = 2
	xformAffineMatrix = 3
	bboxOffsetVersion = 3 // record versions above this carry world-space boxes
)

// Decode parses a pack buffer and returns the location of every entity that
// has at least one fragment with a usable transform. Multiple fragments can
// share an entity id; the first occurrence wins.
func Decode(buf []byte) (map[int64]api.Location, error) {
	return decode(buf, nil)
}

// DecodeFiltered is Decode restricted to a target set of entity ids, for
// callers that already know which ids matter and want to skip the rest.
func DecodeFiltered(buf []byte, want *roaring.Bitmap) (map[int64]api.Location, error) {
	if want == nil {
		return nil, ErrNilFilter
	}
	return decode(buf, want)
}

func decode(buf []byte, want *roaring.Bitmap) (map[int64]api.Location, error) {
	pack, err := parsePack(buf)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]api.Location)
	r := pack.r
	for i := 0; i < pack.numEntries(); i++ {
		entry := pack.seekEntry(i)
		if r.err != nil {
			return nil, fmt.Errorf("fragment entry %d: %w", i, r.err)
		}
		// Entries referencing an unknown record type are skipped.
		if entry == nil {
			continue
		}

		// Flags plus material and geometry ids are consumed only to
		// advance the cursor.
		_ = r.uint8()
		_ = r.varint()
		_ = r.varint()

		translation, hasTransform := readTransform(r)

		var bbox [6]float32
		for j := range bbox {
			bbox[j] = r.float32()
		}
		if entry.version > bboxOffsetVersion && hasTransform {
			for j := range bbox {
				bbox[j] += translation[j%3]
			}
		}

		dbID := int64(r.varint())
		if r.err != nil {
			return nil, fmt.Errorf("fragment entry %d: %w", i, r.err)
		}

		if !hasTransform {
			continue
		}
		if want != nil && !want.Contains(uint32(dbID)) {
			continue
		}
		if _, seen := out[dbID]; seen {
			continue
		}
		out[dbID] = api.Location{
			X: translation[0], Y: translation[1], Z: translation[2],
			MinX: bbox[0], MinY: bbox[1], MinZ: bbox[2],
			MaxX: bbox[3], MaxY: bbox[4], MaxZ: bbox[5],
		}
	}
	return out, nil
}

// readTransform consumes a transform block and returns its translation. The
// rotation, scale and matrix payloads are skipped — placement only needs the
// translation. An unknown kind consumes just the kind byte and reports no
// transform.
func readTransform(r *reader) ([3]float32, bool) {
	switch r.uint8() {
	case xformTranslation:
		return r.vector3(), true
	case xformRotation:
		r.skipQuaternion()
		return r.vector3(), true
	case xformUniformScale:
		r.skipQuaternion()
		_ = r.float32() // uniform scale factor
		return r.vector3(), true
	case xformAffineMatrix:
		for i := 0; i < 9; i++ {
			_ = r.float32()
		}
		return r.vector3(), true
	default:
		return [3]float32{}, false
	}
}

// vector3 reads a float64 vector off the wire and narrows it to the float32
// precision everything downstream stores.
func (r *reader) vector3() [3]float32 {
	return [3]float32{
		float32(r.float64()),
		float32(r.float64()),
		float32(r.float64()),
	}
}

func (r *reader) skipQuaternion() {
	for i := 0; i < 4; i++ {
		_ = r.float32()
	}
}
