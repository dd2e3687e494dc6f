package wkb

import "testing"

func TestSizeExtendedToNative_Point2D(t *testing.T) {
	b := extendedPoint(ExtendedTag(ShapePoint, DimXY), 1, 2)
	size, shape, dim, err := SizeExtendedToNative(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shape != ShapePoint || dim != DimXY {
		t.Fatalf("got shape=%v dim=%v", shape, dim)
	}
	if size != len(b) {
		t.Errorf("2D point size should match source length unchanged: got %d, want %d", size, len(b))
	}
}

func TestSizeExtendedToNative_PointXYM(t *testing.T) {
	// XYM source collapses to XYZ native (M dropped, 3 components).
	b := extendedPoint(ExtendedTag(ShapePoint, DimXYM), 1, 2, 3)
	size, shape, dim, err := SizeExtendedToNative(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shape != ShapePoint || dim != DimXYM {
		t.Fatalf("got shape=%v dim=%v", shape, dim)
	}
	if want := 5 + 3*8; size != want {
		t.Errorf("got %d, want %d", size, want)
	}
}

func TestSizeNativeToExtended_LineStringS3(t *testing.T) {
	b := []byte{byte(LittleEndian)}
	b = le4(b, NativeTag(ShapeLineString))
	b = le4(b, 2)
	for i := 0; i < 2*3; i++ {
		b = le8(b, float64(i))
	}
	size, shape, err := SizeNativeToExtended(b, DimXYZ)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shape != ShapeLineString {
		t.Fatalf("got shape %v", shape)
	}
	if size != 57 {
		t.Errorf("S3 expects 57 bytes, got %d", size)
	}
}

func TestSizeExtendedToNative_TruncatedLineString(t *testing.T) {
	b := []byte{byte(LittleEndian)}
	b = le4(b, ExtendedTag(ShapeLineString, DimXY))
	b = le4(b, 3) // claims 3 points, carries none
	if _, _, _, err := SizeExtendedToNative(b); err == nil {
		t.Fatal("expected a truncation error")
	} else if _, ok := err.(ErrTruncated); !ok {
		t.Errorf("expected ErrTruncated, got %T", err)
	}
}

func TestSizeExtendedToNative_UnknownTag(t *testing.T) {
	b := extendedPoint(9999, 1, 2)
	if _, _, _, err := SizeExtendedToNative(b); err == nil {
		t.Fatal("expected an unknown-tag error")
	} else if _, ok := err.(ErrUnknownTag); !ok {
		t.Errorf("expected ErrUnknownTag, got %T", err)
	}
}

func TestSizeExtendedToNative_CompressedBitRejected(t *testing.T) {
	b := extendedPoint(uint32(ShapePoint)|compressedBit, 1, 2)
	if _, _, _, err := SizeExtendedToNative(b); err == nil {
		t.Fatal("expected the compressed-geometry bit to be rejected")
	}
}

func TestSizeExtendedToNative_TooShort(t *testing.T) {
	if _, _, _, err := SizeExtendedToNative([]byte{1, 2}); err == nil {
		t.Fatal("expected a truncation error for a too-short blob")
	}
}

func TestSizeExtendedToNative_MultiPolygonHomogeneity(t *testing.T) {
	b := []byte{byte(LittleEndian)}
	b = le4(b, ExtendedTag(ShapeMultiPolygon, DimXY))
	b = le4(b, 1)
	// nest a LineString instead of a Polygon — should be rejected.
	b = append(b, extendedPoint(ExtendedTag(ShapeLineString, DimXY))...)
	b = le4(b, 0)

	if _, _, _, err := SizeExtendedToNative(b); err == nil {
		t.Fatal("expected ErrUnexpectedShape for a non-polygon inside a MultiPolygon")
	} else if _, ok := err.(ErrUnexpectedShape); !ok {
		t.Errorf("expected ErrUnexpectedShape, got %T", err)
	}
}

func TestExtendedTagAndSplitRoundTrip(t *testing.T) {
	dims := []Dim{DimXY, DimXYZ, DimXYM, DimXYZM}
	shapes := []Shape{ShapePoint, ShapeLineString, ShapePolygon, ShapeMultiPoint, ShapeMultiLineString, ShapeMultiPolygon, ShapeGeometryCollection}
	for _, d := range dims {
		for _, s := range shapes {
			tag := ExtendedTag(s, d)
			gotS, gotD, ok := SplitExtendedTag(tag)
			if !ok || gotS != s || gotD != d {
				t.Errorf("ExtendedTag(%v,%v)=%d round trip failed: got s=%v d=%v ok=%v", s, d, tag, gotS, gotD, ok)
			}
		}
	}
}

func TestShapeFromNameAndDimFromName(t *testing.T) {
	cases := map[string]Shape{
		"point":           ShapePoint,
		"LINESTRING":      ShapeLineString,
		"Polygon":         ShapePolygon,
		"MultiPoint":      ShapeMultiPoint,
		"multilinestring": ShapeMultiLineString,
		"MULTIPOLYGON":    ShapeMultiPolygon,
		"GeometryCollection": ShapeGeometryCollection,
	}
	for name, want := range cases {
		got, err := ShapeFromName(name)
		if err != nil || got != want {
			t.Errorf("ShapeFromName(%q) = (%v, %v), want %v", name, got, err, want)
		}
	}
	if _, err := ShapeFromName("bogus"); err == nil {
		t.Error("expected an error for an unrecognized shape name")
	}

	dimCases := map[string]Dim{"XY": DimXY, "2": DimXY, "xyz": DimXYZ, "3": DimXYZ, "XYM": DimXYM, "xyzm": DimXYZM}
	for name, want := range dimCases {
		got, err := DimFromName(name)
		if err != nil || got != want {
			t.Errorf("DimFromName(%q) = (%v, %v), want %v", name, got, err, want)
		}
	}
	if _, err := DimFromName("bogus"); err == nil {
		t.Error("expected an error for an unrecognized dimension name")
	}
}
