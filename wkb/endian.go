// Package wkb translates geometry blobs between the extended WKB dialect
// (Z/M carried in the type tag) used by the storage engine and the 3D
// dialect (tags offset by 1000, three coordinates per point) used by the
// consuming geometry runtime. The 3D dialect also has a 2D overlap form
// (tags 1..7, two coordinates per point), which is what an XY source
// converts to.
package wkb

import (
	"encoding/binary"
	"math"
)

// Endian identifies the byte order a WKB blob declares in its leading
// marker byte.
type Endian byte

const (
	// BigEndian is the WKB "XDR" marker (0x00).
	BigEndian Endian = 0x00
	// LittleEndian is the WKB "NDR" marker (0x01).
	LittleEndian Endian = 0x01
)

// hostOrder is resolved once, the same way a C implementation probes
// host endianness at runtime rather than assuming it at compile time.
var hostOrder = func() binary.ByteOrder {
	var x uint16 = 1
	b := []byte{0, 0}
	binary.LittleEndian.PutUint16(b, x)
	if b[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

func byteOrderFor(e Endian) binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// loadU32 reads a 4-byte unsigned integer at the start of b, interpreting
// it according to src. Callers must ensure len(b) >= 4.
func loadU32(b []byte, src Endian) uint32 {
	return byteOrderFor(src).Uint32(b)
}

// storeU32 always writes little-endian, since every output blob produced
// by this package declares itself little-endian (§4.D canonical
// invariant). Callers must ensure len(b) >= 4.
func storeU32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// loadF64 reads an 8-byte IEEE-754 double at the start of b, interpreting
// it according to src. Callers must ensure len(b) >= 8.
func loadF64(b []byte, src Endian) float64 {
	return math.Float64frombits(byteOrderFor(src).Uint64(b))
}

// storeF64 always writes little-endian, matching storeU32. Callers must
// ensure len(b) >= 8.
func storeF64(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}
