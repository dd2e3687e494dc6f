package wkb

import "fmt"

// ErrTruncated is returned when a blob is shorter than the counts inside
// it imply — a Malformed WKB condition per §7. The engine treats this as
// "this row has no geometry" and keeps iterating (§4.D failure modes).
type ErrTruncated struct {
	Shape Shape
	Want  int
	Have  int
}

func (e ErrTruncated) Error() string {
	return fmt.Sprintf("wkb: truncated %s geometry: need %d more bytes, have %d", e.Shape, e.Want, e.Have)
}

// ErrUnknownTag is returned for a top-level or nested tag outside the
// known ranges, or one with the compressed-geometry bit set.
type ErrUnknownTag struct{ Tag uint32 }

func (e ErrUnknownTag) Error() string {
	return fmt.Sprintf("wkb: unrecognized geometry tag %d", e.Tag)
}

// ErrMixedDimensionality is returned when a geometry collection or
// multi-geometry nests a sub-geometry whose declared dimensionality
// disagrees with its container's. The source implementation this package
// is modeled on never emits such blobs; rather than guess at the
// author's intent, mixed input is treated as malformed (§9 open
// question).
type ErrMixedDimensionality struct{ Shape Shape }

func (e ErrMixedDimensionality) Error() string {
	return fmt.Sprintf("wkb: %s sub-geometry has a different dimensionality than its container", e.Shape)
}

// ErrUnexpectedShape is returned when a Multi* container nests a
// sub-geometry that isn't its singular counterpart (e.g. a LineString
// inside a MultiPoint).
type ErrUnexpectedShape struct {
	Container, Got Shape
}

func (e ErrUnexpectedShape) Error() string {
	return fmt.Sprintf("wkb: %s contains unexpected sub-geometry shape %s", e.Container, e.Got)
}

// tagReader parses the shape+dimensionality prefix of a geometry at b[offset:]
// and reports how many bytes that prefix occupies (always 5: one endian
// byte plus a 4-byte tag), for both top-level geometries and the nested
// sub-geometries of a multi-geometry or collection.
type tagReader func(b []byte, offset int) (shape Shape, dim Dim, prefixLen int, err error)

func extendedTagReader(b []byte, offset int) (Shape, Dim, int, error) {
	if offset+5 > len(b) {
		return 0, 0, 0, ErrTruncated{Want: offset + 5 - len(b), Have: len(b) - offset}
	}
	e := Endian(b[offset])
	tag := loadU32(b[offset+1:offset+5], e)
	shape, dim, ok := SplitExtendedTag(tag)
	if !ok {
		return 0, 0, 0, ErrUnknownTag{Tag: tag}
	}
	return shape, dim, 5, nil
}

func nativeTagReader(b []byte, offset int) (Shape, Dim, int, error) {
	if offset+5 > len(b) {
		return 0, 0, 0, ErrTruncated{Want: offset + 5 - len(b), Have: len(b) - offset}
	}
	e := Endian(b[offset])
	tag := loadU32(b[offset+1:offset+5], e)
	shape, is3D, ok := SplitNativeTag(tag)
	if !ok {
		return 0, 0, 0, ErrUnknownTag{Tag: tag}
	}
	dim := DimXY
	if is3D {
		dim = DimXYZ
	}
	return shape, dim, 5, nil
}

// singularOf returns the singular counterpart every sub-geometry of a
// Multi* shape must have; ok is false for any other shape.
func singularOf(s Shape) (Shape, bool) {
	switch s {
	case ShapeMultiPoint:
		return ShapePoint, true
	case ShapeMultiLineString:
		return ShapeLineString, true
	case ShapeMultiPolygon:
		return ShapePolygon, true
	default:
		return 0, false
	}
}

// sizePayload walks the shape-specific body of a geometry (everything
// after its 5-byte endian+tag prefix) without writing anything, summing
// the bytes consumed from the source and the bytes the target encoding
// of the same structure would occupy. srcComponents/targetComponents are
// the per-point coordinate counts (2, 3 or 4) for the source and target
// dialect/dimensionality respectively. e is the byte order this
// geometry's prefix declared; its counts are read in that order.
func sizePayload(b []byte, offset int, shape Shape, srcDim Dim, e Endian, targetComponents int, read tagReader) (consumed, outBytes int, err error) {
	srcComponents := srcDim.Components()

	need := func(n int) error {
		if offset+consumed+n > len(b) {
			return ErrTruncated{Shape: shape, Want: offset + consumed + n - len(b), Have: len(b) - offset - consumed}
		}
		return nil
	}

	readCount := func() (int, error) {
		if err := need(4); err != nil {
			return 0, err
		}
		n := int(loadU32(b[offset+consumed:offset+consumed+4], e))
		consumed += 4
		return n, nil
	}

	switch shape {
	case ShapePoint:
		if err := need(srcComponents * 8); err != nil {
			return consumed, outBytes, err
		}
		consumed += srcComponents * 8
		outBytes += targetComponents * 8
		return consumed, outBytes, nil

	case ShapeLineString:
		n, err := readCount()
		if err != nil {
			return consumed, outBytes, err
		}
		if err := need(n * srcComponents * 8); err != nil {
			return consumed, outBytes, err
		}
		consumed += n * srcComponents * 8
		outBytes += 4 + n*targetComponents*8
		return consumed, outBytes, nil

	case ShapePolygon:
		rings, err := readCount()
		if err != nil {
			return consumed, outBytes, err
		}
		outBytes += 4
		for i := 0; i < rings; i++ {
			n, err := readCount()
			if err != nil {
				return consumed, outBytes, err
			}
			if err := need(n * srcComponents * 8); err != nil {
				return consumed, outBytes, err
			}
			consumed += n * srcComponents * 8
			outBytes += 4 + n*targetComponents*8
		}
		return consumed, outBytes, nil

	case ShapeMultiPoint, ShapeMultiLineString, ShapeMultiPolygon:
		want, _ := singularOf(shape)
		n, err := readCount()
		if err != nil {
			return consumed, outBytes, err
		}
		outBytes += 4
		for i := 0; i < n; i++ {
			subShape, subDim, prefixLen, err := read(b, offset+consumed)
			if err != nil {
				return consumed, outBytes, err
			}
			if subShape != want {
				return consumed, outBytes, ErrUnexpectedShape{Container: shape, Got: subShape}
			}
			if subDim != srcDim {
				return consumed, outBytes, ErrMixedDimensionality{Shape: shape}
			}
			subEndian := Endian(b[offset+consumed])
			consumed += prefixLen
			subConsumed, subOut, err := sizePayload(b, offset+consumed, subShape, subDim, subEndian, targetComponents, read)
			if err != nil {
				return consumed, outBytes, err
			}
			consumed += subConsumed
			outBytes += 5 + subOut
		}
		return consumed, outBytes, nil

	case ShapeGeometryCollection:
		n, err := readCount()
		if err != nil {
			return consumed, outBytes, err
		}
		outBytes += 4
		for i := 0; i < n; i++ {
			subShape, subDim, prefixLen, err := read(b, offset+consumed)
			if err != nil {
				return consumed, outBytes, err
			}
			if subDim != srcDim {
				return consumed, outBytes, ErrMixedDimensionality{Shape: shape}
			}
			subEndian := Endian(b[offset+consumed])
			consumed += prefixLen
			subConsumed, subOut, err := sizePayload(b, offset+consumed, subShape, subDim, subEndian, targetComponents, read)
			if err != nil {
				return consumed, outBytes, err
			}
			consumed += subConsumed
			outBytes += 5 + subOut
		}
		return consumed, outBytes, nil

	default:
		return consumed, outBytes, ErrUnknownTag{}
	}
}

// SizeExtendedToNative computes the number of bytes convert_to_native
// would write for the extended-dialect blob b, along with the source
// shape and dimensionality. When srcDim is DimXY the size is computed
// with two components per point, so for a well-formed blob it equals
// len(b): the codec copies such a blob through unchanged (§4.D) into a
// buffer of this size.
func SizeExtendedToNative(b []byte) (outSize int, shape Shape, srcDim Dim, err error) {
	if len(b) < 5 {
		return 0, 0, 0, ErrTruncated{Want: 5 - len(b), Have: len(b)}
	}
	e := Endian(b[0])
	tag := loadU32(b[1:5], e)
	shape, srcDim, ok := SplitExtendedTag(tag)
	if !ok {
		return 0, 0, 0, ErrUnknownTag{Tag: tag}
	}

	target := 3 // native dialect emits XYZ when Z/M is present
	if srcDim == DimXY {
		target = 2 // DimXY passes through unchanged: no Z to add
	}
	_, payload, err := sizePayload(b, 5, shape, srcDim, e, target, extendedTagReader)
	if err != nil {
		return 0, shape, srcDim, err
	}
	return 5 + payload, shape, srcDim, nil
}

// SizeNativeToExtended computes the number of bytes convert_from_native
// would write for the 3D-dialect blob b, targeting dimensionality
// targetDim, along with the source shape.
func SizeNativeToExtended(b []byte, targetDim Dim) (outSize int, shape Shape, err error) {
	if len(b) < 5 {
		return 0, 0, ErrTruncated{Want: 5 - len(b), Have: len(b)}
	}
	e := Endian(b[0])
	tag := loadU32(b[1:5], e)
	shape, is3D, ok := SplitNativeTag(tag)
	if !ok {
		return 0, 0, ErrUnknownTag{Tag: tag}
	}
	srcDim := DimXY
	if is3D {
		srcDim = DimXYZ
	}

	_, payload, err := sizePayload(b, 5, shape, srcDim, e, targetDim.Components(), nativeTagReader)
	if err != nil {
		return 0, shape, err
	}
	return 5 + payload, shape, nil
}
