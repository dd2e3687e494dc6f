package wkb

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-test/deep"
)

// le8 appends the little-endian bytes of v to b.
func le8(b []byte, v float64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(b, tmp[:]...)
}

func le4(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func extendedPoint(tag uint32, coords ...float64) []byte {
	b := []byte{byte(LittleEndian)}
	b = le4(b, tag)
	for _, c := range coords {
		b = le8(b, c)
	}
	return b
}

func nativePoint(tag uint32, coords ...float64) []byte {
	return extendedPoint(tag, coords...)
}

// seed scenario S2's worked tag (1001 for a source XY point) contradicts
// §4.D/§6's explicit "the sole case the codec copies through verbatim"
// rule for 2D sources — see DESIGN.md's open-question decision. This
// suite follows the documented rule: a 2D source keeps its tags 1..7.
func TestConvertToNative_2DPassesThroughUnchanged(t *testing.T) {
	in := extendedPoint(ExtendedTag(ShapePoint, DimXY), 1.0, 2.0)
	out, err := ConvertToNative(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := extendedPoint(1, 1.0, 2.0) // native 2D overlap form == tag 1
	if diff := deep.Equal(out, want); diff != nil {
		t.Errorf("2D passthrough mismatch: %v", diff)
	}
}

func TestConvertToNative_XYZPreservesZ(t *testing.T) {
	in := extendedPoint(ExtendedTag(ShapePoint, DimXYZ), 1.0, 2.0, 9.5)
	out, err := ConvertToNative(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shape, is3D, ok := SplitNativeTag(loadU32(out[1:5], LittleEndian))
	if !ok || shape != ShapePoint || !is3D {
		t.Fatalf("expected native XYZ point tag, got shape=%v is3D=%v ok=%v", shape, is3D, ok)
	}
	x := loadF64(out[5:13], LittleEndian)
	y := loadF64(out[13:21], LittleEndian)
	z := loadF64(out[21:29], LittleEndian)
	if x != 1.0 || y != 2.0 || z != 9.5 {
		t.Errorf("got (%v,%v,%v), want (1,2,9.5)", x, y, z)
	}
}

func TestConvertToNative_XYMDropsM(t *testing.T) {
	in := extendedPoint(ExtendedTag(ShapePoint, DimXYM), 1.0, 2.0, 42.0)
	out, err := ConvertToNative(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 5+3*8 {
		t.Fatalf("expected 29 bytes (XYZ, M dropped), got %d", len(out))
	}
	z := loadF64(out[21:29], LittleEndian)
	if z != 0 {
		t.Errorf("expected Z=0 for a source with no Z, got %v", z)
	}
}

func TestConvertFromNative_LineStringXYZ(t *testing.T) {
	b := []byte{byte(LittleEndian)}
	b = le4(b, NativeTag(ShapeLineString))
	b = le4(b, 2)
	b = le8(b, 0)
	b = le8(b, 0)
	b = le8(b, 5)
	b = le8(b, 1)
	b = le8(b, 1)
	b = le8(b, 6)

	out, err := ConvertFromNative(b, DimXYZ)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 57 {
		t.Fatalf("expected 57 bytes per S3, got %d", len(out))
	}
	gotTag := loadU32(out[1:5], LittleEndian)
	if gotTag != 1002 {
		t.Errorf("expected tag 1002, got %d", gotTag)
	}
	z1 := loadF64(out[25:33], LittleEndian)
	z2 := loadF64(out[49:57], LittleEndian)
	if z1 != 5 || z2 != 6 {
		t.Errorf("Z values not preserved: got %v, %v", z1, z2)
	}
}

func TestConvertFromNative_ZeroFillsMAndZ(t *testing.T) {
	// A 2D-form native point (no Z available at all).
	in := nativePoint(uint32(ShapePoint), 3.0, 4.0)
	out, err := ConvertFromNative(in, DimXYZM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotTag := loadU32(out[1:5], LittleEndian)
	if gotTag != ExtendedTag(ShapePoint, DimXYZM) {
		t.Errorf("unexpected tag %d", gotTag)
	}
	x := loadF64(out[5:13], LittleEndian)
	y := loadF64(out[13:21], LittleEndian)
	z := loadF64(out[21:29], LittleEndian)
	m := loadF64(out[29:37], LittleEndian)
	if x != 3 || y != 4 || z != 0 || m != 0 {
		t.Errorf("got (%v,%v,%v,%v), want (3,4,0,0)", x, y, z, m)
	}
}

func TestMDropRoundTrip(t *testing.T) {
	// property 4: XYZM extended -> native -> XYZM extended zeroes M
	// everywhere while preserving Z.
	in := extendedPoint(ExtendedTag(ShapePoint, DimXYZM), 10, 20, 30, 999)
	native, err := ConvertToNative(in)
	if err != nil {
		t.Fatalf("to native: %v", err)
	}
	back, err := ConvertFromNative(native, DimXYZM)
	if err != nil {
		t.Fatalf("from native: %v", err)
	}
	x := loadF64(back[5:13], LittleEndian)
	y := loadF64(back[13:21], LittleEndian)
	z := loadF64(back[21:29], LittleEndian)
	m := loadF64(back[29:37], LittleEndian)
	if x != 10 || y != 20 || z != 30 || m != 0 {
		t.Errorf("got (%v,%v,%v,%v), want (10,20,30,0)", x, y, z, m)
	}
}

func TestRoundTrip2D(t *testing.T) {
	in := extendedPoint(ExtendedTag(ShapePoint, DimXY), 7, 8)
	native, err := ConvertToNative(in)
	if err != nil {
		t.Fatalf("to native: %v", err)
	}
	back, err := ConvertFromNative(native, DimXY)
	if err != nil {
		t.Fatalf("from native: %v", err)
	}
	if diff := deep.Equal(back, in); diff != nil {
		t.Errorf("2D round trip mismatch: %v", diff)
	}
}

func TestConvertToNative_TooShort(t *testing.T) {
	out, err := ConvertToNative([]byte{1, 2, 3})
	if err != nil || out != nil {
		t.Errorf("expected (nil, nil) for a too-short blob, got (%v, %v)", out, err)
	}
}

func TestConvertToNative_UnknownTag(t *testing.T) {
	in := extendedPoint(9999, 1, 2)
	out, err := ConvertToNative(in)
	if err != nil || out != nil {
		t.Errorf("expected (nil, nil) for an unknown tag, got (%v, %v)", out, err)
	}
}

func TestConvertToNative_TruncatedCountSurfacesError(t *testing.T) {
	b := []byte{byte(LittleEndian)}
	b = le4(b, ExtendedTag(ShapeLineString, DimXY))
	b = le4(b, 5) // claims 5 points but carries none
	_, err := ConvertToNative(b)
	if err == nil {
		t.Fatal("expected a truncation error")
	}
}

func TestMultiPointRoundTrip(t *testing.T) {
	b := []byte{byte(LittleEndian)}
	b = le4(b, ExtendedTag(ShapeMultiPoint, DimXYZ))
	b = le4(b, 2)
	// sub point 1
	b = append(b, extendedPoint(ExtendedTag(ShapePoint, DimXYZ), 1, 2, 3)...)
	// sub point 2
	b = append(b, extendedPoint(ExtendedTag(ShapePoint, DimXYZ), 4, 5, 6)...)

	native, err := ConvertToNative(b)
	if err != nil {
		t.Fatalf("to native: %v", err)
	}
	back, err := ConvertFromNative(native, DimXYZ)
	if err != nil {
		t.Fatalf("from native: %v", err)
	}
	if diff := deep.Equal(back, b); diff != nil {
		t.Errorf("multipoint XYZ round trip mismatch: %v", diff)
	}
}

func TestMultiPointMixedDimRejected(t *testing.T) {
	b := []byte{byte(LittleEndian)}
	b = le4(b, ExtendedTag(ShapeMultiPoint, DimXYZ))
	b = le4(b, 2)
	b = append(b, extendedPoint(ExtendedTag(ShapePoint, DimXYZ), 1, 2, 3)...)
	b = append(b, extendedPoint(ExtendedTag(ShapePoint, DimXY), 4, 5)...)

	if _, err := ConvertToNative(b); err == nil {
		t.Fatal("expected mixed-dimensionality sub-geometry to be rejected")
	}
}

func TestPolygonRoundTrip(t *testing.T) {
	b := []byte{byte(LittleEndian)}
	b = le4(b, ExtendedTag(ShapePolygon, DimXYZ))
	b = le4(b, 1) // one ring
	b = le4(b, 4) // four points
	pts := [][3]float64{{0, 0, 1}, {0, 1, 1}, {1, 1, 1}, {0, 0, 1}}
	for _, p := range pts {
		b = le8(b, p[0])
		b = le8(b, p[1])
		b = le8(b, p[2])
	}

	native, err := ConvertToNative(b)
	if err != nil {
		t.Fatalf("to native: %v", err)
	}
	back, err := ConvertFromNative(native, DimXYZ)
	if err != nil {
		t.Fatalf("from native: %v", err)
	}
	if diff := deep.Equal(back, b); diff != nil {
		t.Errorf("polygon XYZ round trip mismatch: %v", diff)
	}
}

func TestConvertFromNative_TooShortAndUnknown(t *testing.T) {
	if out, err := ConvertFromNative([]byte{1, 2}, DimXY); out != nil || err != nil {
		t.Errorf("expected (nil,nil), got (%v,%v)", out, err)
	}
	in := nativePoint(9999, 1, 2)
	if out, err := ConvertFromNative(in, DimXY); out != nil || err != nil {
		t.Errorf("expected (nil,nil) for unknown tag, got (%v,%v)", out, err)
	}
}

var _ = bytes.Equal // keep bytes imported for future fixture helpers
