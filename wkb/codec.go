package wkb

// cursor tracks read and write positions while walking a geometry tree.
// It is the bookkeeping a `goto error`-style C implementation would do
// with a couple of plain pointers; here it's just two ints threaded
// through the recursive walk so every return path can report exactly
// how far it got.
type cursor struct {
	in  []byte
	out []byte
	ri  int // read index into in
	wi  int // write index into out
}

func (c *cursor) readF64(e Endian) float64 {
	v := loadF64(c.in[c.ri:c.ri+8], e)
	c.ri += 8
	return v
}

func (c *cursor) readU32(e Endian) uint32 {
	v := loadU32(c.in[c.ri:c.ri+4], e)
	c.ri += 4
	return v
}

func (c *cursor) writeF64(v float64) {
	storeF64(c.out[c.wi:c.wi+8], v)
	c.wi += 8
}

func (c *cursor) writeU32(v uint32) {
	storeU32(c.out[c.wi:c.wi+4], v)
	c.wi += 4
}

func (c *cursor) writeTag(tag uint32) {
	c.out[c.wi] = byte(LittleEndian)
	c.wi++
	c.writeU32(tag)
}

// point3 is a fully-expanded coordinate; Z/M are only meaningful when
// the corresponding HasZ/HasM flag is set.
type point3 struct {
	X, Y, Z, M float64
	HasZ, HasM bool
}

func readPoint(c *cursor, e Endian, srcDim Dim) point3 {
	p := point3{}
	p.X = c.readF64(e)
	p.Y = c.readF64(e)
	if srcDim == DimXYZ {
		p.Z = c.readF64(e)
		p.HasZ = true
	} else if srcDim == DimXYM {
		p.M = c.readF64(e)
		p.HasM = true
	} else if srcDim == DimXYZM {
		p.Z = c.readF64(e)
		p.M = c.readF64(e)
		p.HasZ = true
		p.HasM = true
	}
	return p
}

// ConvertToNative implements convert_to_native (§4.D): translate an
// extended-dialect blob into the 3D dialect. A blob shorter than 5 bytes
// or carrying an unrecognized top-level tag yields (nil, nil) — "this
// row has no geometry" rather than an error (§4.D failure modes).
// Anything else wrong with the blob (truncation, mixed dimensionality)
// is returned as an error for the caller to log and skip.
func ConvertToNative(b []byte) ([]byte, error) {
	if len(b) < 5 {
		return nil, nil
	}
	srcEndian := Endian(b[0])
	tag := loadU32(b[1:5], srcEndian)
	shape, srcDim, ok := SplitExtendedTag(tag)
	if !ok {
		return nil, nil
	}

	if srcDim == DimXY {
		// Already the 3D dialect's 2D overlap form (§6): stream it
		// through unchanged, normalizing to canonical little-endian.
		return recodeExtendedToNative(b, shape, srcDim, 2, tag)
	}
	return recodeExtendedToNative(b, shape, srcDim, 3, NativeTag(shape))
}

func recodeExtendedToNative(b []byte, shape Shape, srcDim Dim, targetComponents int, topTag uint32) ([]byte, error) {
	outSize, _, _, err := SizeExtendedToNative(b)
	if err != nil {
		return nil, err
	}

	c := &cursor{in: b, out: make([]byte, outSize), ri: 5}
	c.writeTag(topTag)
	if err := convertShapeToNative(c, Endian(b[0]), shape, srcDim, targetComponents); err != nil {
		return nil, err
	}
	return c.out, nil
}

func convertShapeToNative(c *cursor, srcEndian Endian, shape Shape, srcDim Dim, targetComponents int) error {
	switch shape {
	case ShapePoint:
		p := readPoint(c, srcEndian, srcDim)
		writeNativeCoord(c, p, targetComponents)
		return nil

	case ShapeLineString:
		n := c.readU32(srcEndian)
		c.writeU32(n)
		for i := uint32(0); i < n; i++ {
			p := readPoint(c, srcEndian, srcDim)
			writeNativeCoord(c, p, targetComponents)
		}
		return nil

	case ShapePolygon:
		rings := c.readU32(srcEndian)
		c.writeU32(rings)
		for r := uint32(0); r < rings; r++ {
			n := c.readU32(srcEndian)
			c.writeU32(n)
			for i := uint32(0); i < n; i++ {
				p := readPoint(c, srcEndian, srcDim)
				writeNativeCoord(c, p, targetComponents)
			}
		}
		return nil

	case ShapeMultiPoint, ShapeMultiLineString, ShapeMultiPolygon:
		want, _ := singularOf(shape)
		n := c.readU32(srcEndian)
		c.writeU32(n)
		for i := uint32(0); i < n; i++ {
			subEndian := Endian(c.in[c.ri])
			subTag := c.readU32NoAdvanceEndian(subEndian)
			subShape, subDim, ok := SplitExtendedTag(subTag)
			if !ok {
				return ErrUnknownTag{Tag: subTag}
			}
			if subShape != want {
				return ErrUnexpectedShape{Container: shape, Got: subShape}
			}
			if subDim != srcDim {
				return ErrMixedDimensionality{Shape: shape}
			}
			c.writeTag(NativeTagFor(subShape, srcDim, targetComponents))
			if err := convertShapeToNative(c, subEndian, subShape, subDim, targetComponents); err != nil {
				return err
			}
		}
		return nil

	case ShapeGeometryCollection:
		n := c.readU32(srcEndian)
		c.writeU32(n)
		for i := uint32(0); i < n; i++ {
			subEndian := Endian(c.in[c.ri])
			subTag := c.readU32NoAdvanceEndian(subEndian)
			subShape, subDim, ok := SplitExtendedTag(subTag)
			if !ok {
				return ErrUnknownTag{Tag: subTag}
			}
			if subDim != srcDim {
				return ErrMixedDimensionality{Shape: shape}
			}
			c.writeTag(NativeTagFor(subShape, srcDim, targetComponents))
			if err := convertShapeToNative(c, subEndian, subShape, subDim, targetComponents); err != nil {
				return err
			}
		}
		return nil
	}
	return ErrUnknownTag{}
}

// readU32NoAdvanceEndian reads the endian byte and the following 4-byte
// tag of a nested sub-geometry prefix, advancing the read cursor past
// both (5 bytes total).
func (c *cursor) readU32NoAdvanceEndian(e Endian) uint32 {
	c.ri++ // skip the endian byte already inspected by the caller
	return c.readU32(e)
}

// NativeTagFor picks the tag a nested sub-geometry gets when the parent
// is re-targeted to the 3D dialect: the 2D overlap form when the whole
// tree is XY, otherwise the offset XYZ form.
func NativeTagFor(shape Shape, srcDim Dim, targetComponents int) uint32 {
	if srcDim == DimXY {
		return uint32(shape)
	}
	return NativeTag(shape)
}

func writeNativeCoord(c *cursor, p point3, targetComponents int) {
	c.writeF64(p.X)
	c.writeF64(p.Y)
	if targetComponents >= 3 {
		if p.HasZ {
			c.writeF64(p.Z)
		} else {
			c.writeF64(0)
		}
	}
}

// ConvertFromNative implements convert_from_native (§4.D): translate a
// 3D-dialect blob into the extended dialect at targetDim. Like
// ConvertToNative, a too-short or unrecognized blob yields (nil, nil).
func ConvertFromNative(b []byte, targetDim Dim) ([]byte, error) {
	if len(b) < 5 {
		return nil, nil
	}
	srcEndian := Endian(b[0])
	tag := loadU32(b[1:5], srcEndian)
	shape, is3D, ok := SplitNativeTag(tag)
	if !ok {
		return nil, nil
	}
	srcDim := DimXY
	if is3D {
		srcDim = DimXYZ
	}

	outSize, _, err := SizeNativeToExtended(b, targetDim)
	if err != nil {
		return nil, err
	}

	c := &cursor{in: b, out: make([]byte, outSize), ri: 5}
	c.writeTag(ExtendedTag(shape, targetDim))
	if err := convertShapeFromNative(c, srcEndian, shape, srcDim, targetDim); err != nil {
		return nil, err
	}
	return c.out, nil
}

func convertShapeFromNative(c *cursor, srcEndian Endian, shape Shape, srcDim Dim, targetDim Dim) error {
	switch shape {
	case ShapePoint:
		p := readPoint(c, srcEndian, srcDim)
		writeExtendedCoord(c, p, targetDim)
		return nil

	case ShapeLineString:
		n := c.readU32(srcEndian)
		c.writeU32(n)
		for i := uint32(0); i < n; i++ {
			p := readPoint(c, srcEndian, srcDim)
			writeExtendedCoord(c, p, targetDim)
		}
		return nil

	case ShapePolygon:
		rings := c.readU32(srcEndian)
		c.writeU32(rings)
		for r := uint32(0); r < rings; r++ {
			n := c.readU32(srcEndian)
			c.writeU32(n)
			for i := uint32(0); i < n; i++ {
				p := readPoint(c, srcEndian, srcDim)
				writeExtendedCoord(c, p, targetDim)
			}
		}
		return nil

	case ShapeMultiPoint, ShapeMultiLineString, ShapeMultiPolygon:
		want, _ := singularOf(shape)
		n := c.readU32(srcEndian)
		c.writeU32(n)
		for i := uint32(0); i < n; i++ {
			subEndian := Endian(c.in[c.ri])
			subTag := c.readU32NoAdvanceEndian(subEndian)
			subShape, subIs3D, ok := SplitNativeTag(subTag)
			if !ok {
				return ErrUnknownTag{Tag: subTag}
			}
			subDim := DimXY
			if subIs3D {
				subDim = DimXYZ
			}
			if subShape != want {
				return ErrUnexpectedShape{Container: shape, Got: subShape}
			}
			if subDim != srcDim {
				return ErrMixedDimensionality{Shape: shape}
			}
			c.writeTag(ExtendedTag(subShape, targetDim))
			if err := convertShapeFromNative(c, subEndian, subShape, subDim, targetDim); err != nil {
				return err
			}
		}
		return nil

	case ShapeGeometryCollection:
		n := c.readU32(srcEndian)
		c.writeU32(n)
		for i := uint32(0); i < n; i++ {
			subEndian := Endian(c.in[c.ri])
			subTag := c.readU32NoAdvanceEndian(subEndian)
			subShape, subIs3D, ok := SplitNativeTag(subTag)
			if !ok {
				return ErrUnknownTag{Tag: subTag}
			}
			subDim := DimXY
			if subIs3D {
				subDim = DimXYZ
			}
			if subDim != srcDim {
				return ErrMixedDimensionality{Shape: shape}
			}
			c.writeTag(ExtendedTag(subShape, targetDim))
			if err := convertShapeFromNative(c, subEndian, subShape, subDim, targetDim); err != nil {
				return err
			}
		}
		return nil
	}
	return ErrUnknownTag{}
}

func writeExtendedCoord(c *cursor, p point3, targetDim Dim) {
	c.writeF64(p.X)
	c.writeF64(p.Y)
	switch targetDim {
	case DimXYZ:
		if p.HasZ {
			c.writeF64(p.Z)
		} else {
			c.writeF64(0)
		}
	case DimXYM:
		c.writeF64(0) // M is zero-filled unconditionally (§4.D)
	case DimXYZM:
		if p.HasZ {
			c.writeF64(p.Z)
		} else {
			c.writeF64(0)
		}
		c.writeF64(0) // M
	}
}
